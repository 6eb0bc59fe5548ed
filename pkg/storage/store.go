package storage

import (
	"errors"
	"time"

	"github.com/wardenhq/warden/pkg/types"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the interface for Warden's durable state.
// This is implemented by BoltDB-backed storage.
type Store interface {
	// Deployment health
	GetHealth(key types.HealKey) (*types.DeploymentHealth, error)
	PutHealth(h *types.DeploymentHealth) error
	DeleteHealth(key types.HealKey) error
	ListHealth() ([]*types.DeploymentHealth, error)

	// Pending verification windows
	GetPending(key types.HealKey) (*types.PendingVerification, error)
	PutPending(p *types.PendingVerification) error
	DeletePending(key types.HealKey) error
	ListPending() ([]*types.PendingVerification, error)

	// Heal event log (append-only, TTL-purged)
	AppendHealEvent(e *types.HealEvent) error
	ListHealEvents(limit int) ([]*types.HealEvent, error)
	PurgeHealEventsBefore(cutoff time.Time) (int, error)

	// Action audit log (append-only, TTL-purged)
	AppendActionAudit(a *types.ActionAudit) error
	ListActionAudits(limit int) ([]*types.ActionAudit, error)
	PurgeActionAuditsBefore(cutoff time.Time) (int, error)

	// Cooldown marks, keyed by namespaced string keys
	MarkCooldown(key string, at time.Time) error
	LastCooldown(key string) (time.Time, bool, error)

	// Policy overrides
	SetOverride(key, value string) error
	GetOverride(key string) (string, bool, error)
	DeleteOverride(key string) error
	ListOverrides() (map[string]string, error)

	// Healer lease
	AcquireLease(owner string, ttl time.Duration, now time.Time) (bool, *types.Lease, error)
	ReleaseLease(owner string) error
	GetLease() (*types.Lease, error)

	// Utility
	Close() error
}
