package policy

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type fakeOverrides struct {
	values map[string]string
	err    error
}

func (f *fakeOverrides) GetOverride(key string) (string, bool, error) {
	if f.err != nil {
		return "", false, f.err
	}
	v, ok := f.values[key]
	return v, ok, nil
}

func TestPrecedence(t *testing.T) {
	overrides := &fakeOverrides{values: map[string]string{KeyHealerCooldownSec: "900"}}
	store := New(overrides)
	store.SetEnvValues(map[string]string{
		KeyHealerCooldownSec: "300",
		KeyHealerVerifySec:   "45",
	})

	// Override wins over environment.
	value, source := store.Get(KeyHealerCooldownSec)
	assert.Equal(t, "900", value)
	assert.Equal(t, SourceOverride, source)

	// Environment wins over default.
	value, source = store.Get(KeyHealerVerifySec)
	assert.Equal(t, "45", value)
	assert.Equal(t, SourceEnvironment, source)

	// Default when nothing else is set.
	value, source = store.Get(KeyHealerMaxActions)
	assert.Equal(t, "5", value)
	assert.Equal(t, SourceDefault, source)
}

func TestEnvVarTier(t *testing.T) {
	t.Setenv(EnvVarName(KeyHealerMaxActions), "9")
	store := New(nil)

	value, source := store.Get(KeyHealerMaxActions)
	assert.Equal(t, "9", value)
	assert.Equal(t, SourceEnvironment, source)
	assert.Equal(t, 9, store.Int(KeyHealerMaxActions))
}

func TestOverrideStoreFailureFallsBack(t *testing.T) {
	store := New(&fakeOverrides{err: errors.New("database is locked")})

	value, source := store.Get(KeyHealerCircuitFails)
	assert.Equal(t, "3", value)
	assert.Equal(t, SourceDefault, source)
}

func TestTypedAccessors(t *testing.T) {
	store := New(&fakeOverrides{values: map[string]string{
		KeyHealerExecute:        "true",
		KeyDiagnoseTriggerRatio: "0.85",
		KeyHealerVerifySec:      "60",
		KeyHealerDenyNamespaces: "kube-system, monitoring,",
	}})

	assert.True(t, store.Bool(KeyHealerExecute))
	assert.InDelta(t, 0.85, store.Float(KeyDiagnoseTriggerRatio), 1e-9)
	assert.Equal(t, 60*time.Second, store.Seconds(KeyHealerVerifySec))
	assert.Equal(t, []string{"kube-system", "monitoring"}, store.StringSlice(KeyHealerDenyNamespaces))

	set := store.StringSet(KeyHealerDenyNamespaces)
	assert.True(t, set["monitoring"])
	assert.False(t, set["default"])
}

func TestMalformedValueUsesDefault(t *testing.T) {
	store := New(&fakeOverrides{values: map[string]string{
		KeyHealerMaxActions:     "lots",
		KeyHealerEnabled:        "si",
		KeyDiagnoseObserveRatio: "NaN%",
	}})

	assert.Equal(t, 5, store.Int(KeyHealerMaxActions))
	assert.True(t, store.Bool(KeyHealerEnabled))
	assert.InDelta(t, 0.7, store.Float(KeyDiagnoseObserveRatio), 1e-9)
}

func TestEmptyAllowedReasonsMeansAll(t *testing.T) {
	store := New(nil)
	assert.Nil(t, store.StringSet(KeyHealerAllowedReasons))
}

func TestKnown(t *testing.T) {
	assert.True(t, Known(KeyAutoOpsCooldownSec))
	assert.False(t, Known("healer.no_such_key"))
}
