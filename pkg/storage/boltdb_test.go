package storage

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/pkg/types"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	store, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testKey() types.HealKey {
	return types.HealKey{Namespace: "default", Name: "api", UID: "uid-1"}
}

func TestHealthRoundTrip(t *testing.T) {
	store := newTestStore(t)
	key := testKey()

	_, err := store.GetHealth(key)
	assert.ErrorIs(t, err, ErrNotFound)

	health := &types.DeploymentHealth{
		Key:       key,
		FailCount: 2,
		Reason:    types.ReasonCrashLoop,
		UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, store.PutHealth(health))

	got, err := store.GetHealth(key)
	require.NoError(t, err)
	assert.Equal(t, 2, got.FailCount)
	assert.False(t, got.IsFailing)
	assert.Equal(t, types.ReasonCrashLoop, got.Reason)

	listed, err := store.ListHealth()
	require.NoError(t, err)
	assert.Len(t, listed, 1)

	require.NoError(t, store.DeleteHealth(key))
	_, err = store.GetHealth(key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHealthKeyedByIdentity(t *testing.T) {
	store := newTestStore(t)

	// Same namespace and name, different UID: two independent records.
	oldGen := types.HealKey{Namespace: "default", Name: "api", UID: "uid-old"}
	newGen := types.HealKey{Namespace: "default", Name: "api", UID: "uid-new"}

	require.NoError(t, store.PutHealth(&types.DeploymentHealth{Key: oldGen, FailCount: 3}))
	require.NoError(t, store.PutHealth(&types.DeploymentHealth{Key: newGen, FailCount: 0}))

	got, err := store.GetHealth(newGen)
	require.NoError(t, err)
	assert.Equal(t, 0, got.FailCount)

	got, err = store.GetHealth(oldGen)
	require.NoError(t, err)
	assert.Equal(t, 3, got.FailCount)
}

func TestPendingRoundTrip(t *testing.T) {
	store := newTestStore(t)
	key := testKey()

	pending := &types.PendingVerification{
		Key:          key,
		PendingUntil: time.Now().Add(30 * time.Second).UTC(),
		LastAction:   types.ActionDeletePod,
		LastPod:      "api-abc",
		LastReason:   types.ReasonCrashLoop,
	}
	require.NoError(t, store.PutPending(pending))

	got, err := store.GetPending(key)
	require.NoError(t, err)
	assert.Equal(t, "api-abc", got.LastPod)

	// A second put for the same key overwrites; there is never more
	// than one row per key.
	pending.LastPod = "api-def"
	require.NoError(t, store.PutPending(pending))
	listed, err := store.ListPending()
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, "api-def", listed[0].LastPod)

	require.NoError(t, store.DeletePending(key))
	_, err = store.GetPending(key)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHealEventsOrderingAndPurge(t *testing.T) {
	store := newTestStore(t)
	key := testKey()
	base := time.Now().UTC()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.AppendHealEvent(&types.HealEvent{
			ID:        string(rune('a' + i)),
			Key:       key,
			Action:    types.ActionDeletePod,
			Result:    types.ResultPending,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := store.ListHealEvents(3)
	require.NoError(t, err)
	require.Len(t, events, 3)
	// Newest first.
	assert.Equal(t, "e", events[0].ID)
	assert.Equal(t, "d", events[1].ID)

	purged, err := store.PurgeHealEventsBefore(base.Add(2 * time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, purged)

	events, err = store.ListHealEvents(0)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestActionAuditAppendOnly(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, store.AppendActionAudit(&types.ActionAudit{
		ID:        "audit-1",
		Action:    types.ActionScale,
		Target:    "default/api",
		Params:    map[string]string{"replicas": "3"},
		DryRun:    true,
		Result:    types.ResultDryRun,
		Timestamp: now,
	}))

	audits, err := store.ListActionAudits(10)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.True(t, audits[0].DryRun)
	assert.Equal(t, "3", audits[0].Params["replicas"])

	purged, err := store.PurgeActionAuditsBefore(now.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, purged)
}

func TestCooldownMarks(t *testing.T) {
	store := newTestStore(t)

	_, found, err := store.LastCooldown("heal:cooldown:default/api/uid-1")
	require.NoError(t, err)
	assert.False(t, found)

	at := time.Now().UTC().Truncate(time.Millisecond)
	require.NoError(t, store.MarkCooldown("heal:cooldown:default/api/uid-1", at))

	got, found, err := store.LastCooldown("heal:cooldown:default/api/uid-1")
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, got.Equal(at))

	// Independent cooldown domains do not collide.
	_, found, err = store.LastCooldown("autoscale:default/api/uid-1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestOverrides(t *testing.T) {
	store := newTestStore(t)

	_, found, err := store.GetOverride("healer.cooldown_seconds")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.SetOverride("healer.cooldown_seconds", "600"))
	value, found, err := store.GetOverride("healer.cooldown_seconds")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "600", value)

	all, err := store.ListOverrides()
	require.NoError(t, err)
	assert.Len(t, all, 1)

	require.NoError(t, store.DeleteOverride("healer.cooldown_seconds"))
	_, found, err = store.GetOverride("healer.cooldown_seconds")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestLeaseLifecycle(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	// First acquire wins.
	ok, lease, err := store.AcquireLease("owner-a", time.Minute, now)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "owner-a", lease.Owner)

	// A live lease blocks other owners.
	ok, _, err = store.AcquireLease("owner-b", time.Minute, now.Add(10*time.Second))
	require.NoError(t, err)
	assert.False(t, ok)

	// The owner can refresh; Acquired is preserved.
	ok, refreshed, err := store.AcquireLease("owner-a", time.Minute, now.Add(30*time.Second))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, refreshed.Acquired.Equal(lease.Acquired))
	assert.True(t, refreshed.ExpiresAt.After(lease.ExpiresAt))

	// Past expiry, anyone can reclaim.
	ok, reclaimed, err := store.AcquireLease("owner-b", time.Minute, now.Add(2*time.Minute))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "owner-b", reclaimed.Owner)

	// Release by a non-owner is a no-op.
	require.NoError(t, store.ReleaseLease("owner-a"))
	got, err := store.GetLease()
	require.NoError(t, err)
	assert.Equal(t, "owner-b", got.Owner)

	require.NoError(t, store.ReleaseLease("owner-b"))
	_, err = store.GetLease()
	assert.ErrorIs(t, err, ErrNotFound)
}
