package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/wardenhq/warden/pkg/types"
)

var (
	// Bucket names
	bucketHealth    = []byte("heal_state")
	bucketPending   = []byte("heal_pending")
	bucketEvents    = []byte("heal_events")
	bucketAudit     = []byte("action_audit")
	bucketCooldowns = []byte("cooldowns")
	bucketOverrides = []byte("policy_overrides")
	bucketLease     = []byte("lease")
)

var leaseKey = []byte("healer")

// BoltStore implements Store using BoltDB
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore creates a new BoltDB-backed store
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "warden.db")

	db, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Create buckets
	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketHealth,
			bucketPending,
			bucketEvents,
			bucketAudit,
			bucketCooldowns,
			bucketOverrides,
			bucketLease,
		}

		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})

	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// update wraps a write transaction in the contention-retry policy.
func (s *BoltStore) update(fn func(tx *bolt.Tx) error) error {
	return withRetry(func() error {
		return s.db.Update(fn)
	})
}

// Deployment health operations

func (s *BoltStore) PutHealth(h *types.DeploymentHealth) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketHealth)
		data, err := json.Marshal(h)
		if err != nil {
			return err
		}
		return b.Put([]byte(h.Key.String()), data)
	})
}

func (s *BoltStore) GetHealth(key types.HealKey) (*types.DeploymentHealth, error) {
	var health types.DeploymentHealth
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketHealth)
		data := b.Get([]byte(key.String()))
		if data == nil {
			return fmt.Errorf("health %s: %w", key, ErrNotFound)
		}
		return json.Unmarshal(data, &health)
	})
	if err != nil {
		return nil, err
	}
	return &health, nil
}

func (s *BoltStore) ListHealth() ([]*types.DeploymentHealth, error) {
	var healths []*types.DeploymentHealth
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketHealth)
		return b.ForEach(func(k, v []byte) error {
			var h types.DeploymentHealth
			if err := json.Unmarshal(v, &h); err != nil {
				return err
			}
			healths = append(healths, &h)
			return nil
		})
	})
	return healths, err
}

func (s *BoltStore) DeleteHealth(key types.HealKey) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketHealth)
		return b.Delete([]byte(key.String()))
	})
}

// Pending verification operations

func (s *BoltStore) PutPending(p *types.PendingVerification) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPending)
		data, err := json.Marshal(p)
		if err != nil {
			return err
		}
		return b.Put([]byte(p.Key.String()), data)
	})
}

func (s *BoltStore) GetPending(key types.HealKey) (*types.PendingVerification, error) {
	var pending types.PendingVerification
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPending)
		data := b.Get([]byte(key.String()))
		if data == nil {
			return fmt.Errorf("pending %s: %w", key, ErrNotFound)
		}
		return json.Unmarshal(data, &pending)
	})
	if err != nil {
		return nil, err
	}
	return &pending, nil
}

func (s *BoltStore) ListPending() ([]*types.PendingVerification, error) {
	var pendings []*types.PendingVerification
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPending)
		return b.ForEach(func(k, v []byte) error {
			var p types.PendingVerification
			if err := json.Unmarshal(v, &p); err != nil {
				return err
			}
			pendings = append(pendings, &p)
			return nil
		})
	})
	return pendings, err
}

func (s *BoltStore) DeletePending(key types.HealKey) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketPending)
		return b.Delete([]byte(key.String()))
	})
}

// Heal event log

// eventKey orders rows by timestamp with the id as a tiebreaker.
func eventKey(ts time.Time, id string) []byte {
	return []byte(fmt.Sprintf("%020d-%s", ts.UnixNano(), id))
}

func (s *BoltStore) AppendHealEvent(e *types.HealEvent) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketEvents)
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return b.Put(eventKey(e.Timestamp, e.ID), data)
	})
}

// ListHealEvents returns up to limit events, newest first. limit <= 0 means all.
func (s *BoltStore) ListHealEvents(limit int) ([]*types.HealEvent, error) {
	var events []*types.HealEvent
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketEvents).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var e types.HealEvent
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			events = append(events, &e)
			if limit > 0 && len(events) >= limit {
				return nil
			}
		}
		return nil
	})
	return events, err
}

func (s *BoltStore) PurgeHealEventsBefore(cutoff time.Time) (int, error) {
	return s.purgeBefore(bucketEvents, cutoff)
}

// Action audit log

func (s *BoltStore) AppendActionAudit(a *types.ActionAudit) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketAudit)
		data, err := json.Marshal(a)
		if err != nil {
			return err
		}
		return b.Put(eventKey(a.Timestamp, a.ID), data)
	})
}

// ListActionAudits returns up to limit records, newest first. limit <= 0 means all.
func (s *BoltStore) ListActionAudits(limit int) ([]*types.ActionAudit, error) {
	var audits []*types.ActionAudit
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucketAudit).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			var a types.ActionAudit
			if err := json.Unmarshal(v, &a); err != nil {
				return err
			}
			audits = append(audits, &a)
			if limit > 0 && len(audits) >= limit {
				return nil
			}
		}
		return nil
	})
	return audits, err
}

func (s *BoltStore) PurgeActionAuditsBefore(cutoff time.Time) (int, error) {
	return s.purgeBefore(bucketAudit, cutoff)
}

// purgeBefore deletes rows whose key sorts before the cutoff timestamp.
// Works for any bucket using eventKey ordering.
func (s *BoltStore) purgeBefore(bucket []byte, cutoff time.Time) (int, error) {
	max := eventKey(cutoff, "")
	purged := 0
	err := s.update(func(tx *bolt.Tx) error {
		c := tx.Bucket(bucket).Cursor()
		var stale [][]byte
		for k, _ := c.First(); k != nil && string(k) < string(max); k, _ = c.Next() {
			kc := make([]byte, len(k))
			copy(kc, k)
			stale = append(stale, kc)
		}
		b := tx.Bucket(bucket)
		for _, k := range stale {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		purged = len(stale)
		return nil
	})
	return purged, err
}

// Cooldown marks

func (s *BoltStore) MarkCooldown(key string, at time.Time) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCooldowns)
		return b.Put([]byte(key), []byte(at.UTC().Format(time.RFC3339Nano)))
	})
}

func (s *BoltStore) LastCooldown(key string) (time.Time, bool, error) {
	var raw []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketCooldowns)
		data := b.Get([]byte(key))
		if data != nil {
			raw = make([]byte, len(data))
			copy(raw, data)
		}
		return nil
	})
	if err != nil {
		return time.Time{}, false, err
	}
	if raw == nil {
		return time.Time{}, false, nil
	}
	at, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt cooldown mark %s: %w", key, err)
	}
	return at, true, nil
}

// Policy overrides

func (s *BoltStore) SetOverride(key, value string) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOverrides)
		return b.Put([]byte(key), []byte(value))
	})
}

func (s *BoltStore) GetOverride(key string) (string, bool, error) {
	var value string
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOverrides)
		data := b.Get([]byte(key))
		if data != nil {
			value = string(data)
			found = true
		}
		return nil
	})
	return value, found, err
}

func (s *BoltStore) DeleteOverride(key string) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOverrides)
		return b.Delete([]byte(key))
	})
}

func (s *BoltStore) ListOverrides() (map[string]string, error) {
	overrides := make(map[string]string)
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketOverrides)
		return b.ForEach(func(k, v []byte) error {
			overrides[string(k)] = string(v)
			return nil
		})
	})
	return overrides, err
}

// Healer lease

// AcquireLease attempts to take or refresh the healer lease. The check and
// write happen inside one transaction, so the acquire is atomic. A stale
// lease (expiry passed) is reclaimable by any owner; a live lease is only
// refreshable by its current owner.
func (s *BoltStore) AcquireLease(owner string, ttl time.Duration, now time.Time) (bool, *types.Lease, error) {
	var acquired bool
	var current types.Lease
	err := s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLease)
		data := b.Get(leaseKey)
		if data != nil {
			if err := json.Unmarshal(data, &current); err != nil {
				return err
			}
			if current.Owner != owner && !current.Expired(now) {
				acquired = false
				return nil
			}
		}
		lease := types.Lease{Owner: owner, ExpiresAt: now.Add(ttl), Acquired: now}
		if data != nil && current.Owner == owner {
			lease.Acquired = current.Acquired
		}
		out, err := json.Marshal(&lease)
		if err != nil {
			return err
		}
		if err := b.Put(leaseKey, out); err != nil {
			return err
		}
		current = lease
		acquired = true
		return nil
	})
	if err != nil {
		return false, nil, err
	}
	return acquired, &current, nil
}

// ReleaseLease drops the lease if held by owner.
func (s *BoltStore) ReleaseLease(owner string) error {
	return s.update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLease)
		data := b.Get(leaseKey)
		if data == nil {
			return nil
		}
		var current types.Lease
		if err := json.Unmarshal(data, &current); err != nil {
			return err
		}
		if current.Owner != owner {
			return nil
		}
		return b.Delete(leaseKey)
	})
}

func (s *BoltStore) GetLease() (*types.Lease, error) {
	var lease types.Lease
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketLease)
		data := b.Get(leaseKey)
		if data == nil {
			return fmt.Errorf("lease: %w", ErrNotFound)
		}
		return json.Unmarshal(data, &lease)
	})
	if err != nil {
		return nil, err
	}
	return &lease, nil
}
