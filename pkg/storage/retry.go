package storage

import (
	"errors"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Write retries absorb transient lock contention only; any other error is
// propagated immediately.
var retryBackoff = []time.Duration{50 * time.Millisecond, 100 * time.Millisecond, 200 * time.Millisecond}

// isContention reports whether err is a transient lock-contention error
// worth retrying.
func isContention(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, bolt.ErrTimeout) || errors.Is(err, bolt.ErrDatabaseOpen) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "timeout")
}

// withRetry runs fn, retrying on contention with a fixed backoff schedule.
func withRetry(fn func() error) error {
	err := fn()
	for attempt := 0; isContention(err) && attempt < len(retryBackoff); attempt++ {
		time.Sleep(retryBackoff[attempt])
		err = fn()
	}
	return err
}
