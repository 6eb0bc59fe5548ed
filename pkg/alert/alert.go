package alert

import (
	"sync"
	"time"
)

// Severity labels attached to pushed alerts.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert is one notification pushed to the sink.
type Alert struct {
	Name        string
	Severity    string
	Labels      map[string]string
	Annotations map[string]string
	StartsAt    time.Time
}

// Sink delivers alerts. Delivery is best-effort: implementations log
// failures but never propagate them, so a dead alerting backend cannot abort
// a remediation workflow.
type Sink interface {
	Push(a Alert)
}

// Noop is a Sink that drops everything.
type Noop struct{}

func (Noop) Push(Alert) {}

// Recorder is a Sink that captures alerts for tests.
type Recorder struct {
	mu     sync.Mutex
	alerts []Alert
}

func (r *Recorder) Push(a Alert) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts = append(r.alerts, a)
}

// Alerts returns a copy of everything pushed so far.
func (r *Recorder) Alerts() []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Alert, len(r.alerts))
	copy(out, r.alerts)
	return out
}

// Named returns the pushed alerts with the given name.
func (r *Recorder) Named(name string) []Alert {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Alert
	for _, a := range r.alerts {
		if a.Name == name {
			out = append(out, a)
		}
	}
	return out
}
