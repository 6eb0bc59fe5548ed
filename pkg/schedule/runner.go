package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wardenhq/warden/pkg/log"
	"github.com/wardenhq/warden/pkg/policy"
	"github.com/wardenhq/warden/pkg/storage"
	"github.com/wardenhq/warden/pkg/types"
)

// minInterval clamps the configured cadence so a bad policy value cannot
// produce a tight loop.
const minInterval = 5 * time.Second

// tick is the stop-check granularity while sleeping between passes.
const tick = time.Second

// Scanner runs one healer pass.
type Scanner interface {
	ScanOnce(ctx context.Context) (*types.ScanResult, error)
}

// Status is a snapshot of the runner's state.
type Status struct {
	Active     bool              `json:"active"`
	Owner      string            `json:"owner"`
	LastRun    time.Time         `json:"lastRun,omitzero"`
	NextRun    time.Time         `json:"nextRun,omitzero"`
	LastError  string            `json:"lastError,omitempty"`
	LastResult *types.ScanResult `json:"lastResult,omitempty"`
}

// Runner executes healer passes on a configurable interval. The interval
// is re-read from policy before every sleep so operators can change the
// cadence without a restart. Stop interrupts within about one second.
type Runner struct {
	scanner  Scanner
	policies *policy.Store
	lock     *FileLock
	store    storage.Store
	owner    string
	logger   zerolog.Logger

	mu      sync.Mutex
	status  Status
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}

	now func() time.Time
}

// NewRunner creates a runner. store may be nil when no lease row is wanted.
func NewRunner(scanner Scanner, policies *policy.Store, lock *FileLock, store storage.Store) *Runner {
	return &Runner{
		scanner:  scanner,
		policies: policies,
		lock:     lock,
		store:    store,
		owner:    uuid.New().String(),
		logger:   log.WithComponent("schedule"),
		now:      time.Now,
	}
}

// Owner returns this runner's lock owner id.
func (r *Runner) Owner() string {
	return r.owner
}

// Start acquires the single-flight lock and launches the loop. It fails
// when another live process already holds the lock.
func (r *Runner) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return fmt.Errorf("runner already started")
	}

	ttl := r.lockTTL()
	acquired, err := r.lock.Acquire(r.owner, ttl)
	if err != nil {
		return fmt.Errorf("acquire healer lock: %w", err)
	}
	if !acquired {
		holder, _ := r.lock.Holder()
		return fmt.Errorf("healer lock held by %s", holder)
	}

	r.running = true
	r.status.Active = true
	r.status.Owner = r.owner
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})
	go r.loop(ctx)

	r.logger.Info().Str("owner", r.owner).Msg("healer runner started")
	return nil
}

// Stop interrupts the loop and releases the lock. Safe to call more than
// once.
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	close(r.stopCh)
	done := r.doneCh
	r.mu.Unlock()

	<-done
	if err := r.lock.Release(r.owner); err != nil {
		r.logger.Warn().Err(err).Msg("lock release failed")
	}
	r.releaseLease()
	r.logger.Info().Msg("healer runner stopped")
}

// Status returns a copy of the current runner state.
func (r *Runner) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.doneCh)
	for {
		r.runOnce(ctx)

		interval := r.interval()
		next := r.now().Add(interval)
		r.mu.Lock()
		r.status.NextRun = next
		r.mu.Unlock()

		if !r.sleep(ctx, interval) {
			r.mu.Lock()
			r.status.Active = false
			r.mu.Unlock()
			return
		}
	}
}

func (r *Runner) runOnce(ctx context.Context) {
	ttl := r.lockTTL()
	if _, err := r.lock.Acquire(r.owner, ttl); err != nil {
		r.logger.Warn().Err(err).Msg("lock refresh failed")
	}
	r.refreshLease(ttl)

	result, err := r.scanner.ScanOnce(ctx)

	r.mu.Lock()
	r.status.LastRun = r.now()
	r.status.LastResult = result
	if err != nil {
		r.status.LastError = err.Error()
	} else {
		r.status.LastError = ""
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Error().Err(err).Msg("scan pass failed")
	}
}

// sleep waits out d in one-second steps, returning false on stop.
func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	deadline := r.now().Add(d)
	for r.now().Before(deadline) {
		step := tick
		if remaining := deadline.Sub(r.now()); remaining < step {
			step = remaining
		}
		select {
		case <-r.stopCh:
			return false
		case <-ctx.Done():
			return false
		case <-time.After(step):
		}
	}
	return true
}

// interval reads the cadence from policy, clamped to the minimum. Read
// every cycle so a policy change takes effect on the next sleep.
func (r *Runner) interval() time.Duration {
	interval := r.policies.Seconds(policy.KeyHealerIntervalSec)
	if interval < minInterval {
		interval = minInterval
	}
	return interval
}

// lockTTL covers one full cycle plus slack so a live runner never loses
// its own lock mid-pass.
func (r *Runner) lockTTL() time.Duration {
	return 2*r.interval() + minInterval
}

// refreshLease mirrors lock ownership into the store so status readers in
// other processes can see who the healer is.
func (r *Runner) refreshLease(ttl time.Duration) {
	if r.store == nil {
		return
	}
	if _, _, err := r.store.AcquireLease(r.owner, ttl, r.now()); err != nil {
		r.logger.Warn().Err(err).Msg("lease refresh failed")
	}
}

func (r *Runner) releaseLease() {
	if r.store == nil {
		return
	}
	if err := r.store.ReleaseLease(r.owner); err != nil {
		r.logger.Warn().Err(err).Msg("lease release failed")
	}
}
