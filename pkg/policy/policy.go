package policy

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wardenhq/warden/pkg/log"
)

// Source tells where a resolved value came from.
type Source string

const (
	SourceOverride    Source = "override"
	SourceEnvironment Source = "environment"
	SourceDefault     Source = "default"
)

// Policy keys. Every tunable the engine reads goes through Store.Get so
// operators can retune without a restart.
const (
	KeyHealerEnabled         = "healer.enabled"
	KeyHealerExecute         = "healer.execute"
	KeyHealerMaxActions      = "healer.max_actions_per_cycle"
	KeyHealerCooldownSec     = "healer.cooldown_seconds"
	KeyHealerVerifySec       = "healer.verify_seconds"
	KeyHealerAlertCooldown   = "healer.alert_cooldown_seconds"
	KeyHealerDenyNamespaces  = "healer.deny_namespaces"
	KeyHealerAllowedReasons  = "healer.allowed_reasons"
	KeyHealerCircuitFails    = "healer.circuit_threshold"
	KeyHealerDecayOnRecover  = "healer.decay_on_recover"
	KeyHealerDecayStep       = "healer.decay_step"
	KeyHealerIntervalSec     = "healer.interval_seconds"
	KeyHealerEventTTLHours   = "healer.event_ttl_hours"
	KeyDiagnoseObserveRatio  = "diagnose.observe_ratio"
	KeyDiagnoseTriggerRatio  = "diagnose.trigger_ratio"
	KeyDiagnoseCriticalRatio = "diagnose.critical_ratio"
	KeyDiagnoseSustainMin    = "diagnose.sustain_minutes"
	KeyDiagnoseNodeCPUPct    = "diagnose.node_cpu_threshold_pct"
	KeyDiagnoseNodeMemPct    = "diagnose.node_mem_threshold_pct"
	KeyDiagnoseNodeSustain   = "diagnose.node_sustain_minutes"
	KeyAutoOpsExecute        = "autoops.execute"
	KeyAutoOpsCooldownSec    = "autoops.cooldown_seconds"
)

// Compiled defaults; the last tier of resolution.
var defaults = map[string]string{
	KeyHealerEnabled:         "true",
	KeyHealerExecute:         "false",
	KeyHealerMaxActions:      "5",
	KeyHealerCooldownSec:     "600",
	KeyHealerVerifySec:       "30",
	KeyHealerAlertCooldown:   "1800",
	KeyHealerDenyNamespaces:  "kube-system,kube-public,kube-node-lease",
	KeyHealerAllowedReasons:  "",
	KeyHealerCircuitFails:    "3",
	KeyHealerDecayOnRecover:  "false",
	KeyHealerDecayStep:       "1",
	KeyHealerIntervalSec:     "60",
	KeyHealerEventTTLHours:   "168",
	KeyDiagnoseObserveRatio:  "0.7",
	KeyDiagnoseTriggerRatio:  "0.9",
	KeyDiagnoseCriticalRatio: "1.1",
	KeyDiagnoseSustainMin:    "5",
	KeyDiagnoseNodeCPUPct:    "80",
	KeyDiagnoseNodeMemPct:    "85",
	KeyDiagnoseNodeSustain:   "10",
	KeyAutoOpsExecute:        "false",
	KeyAutoOpsCooldownSec:    "900",
}

// OverrideReader is the slice of the state store the policy layer needs.
type OverrideReader interface {
	GetOverride(key string) (string, bool, error)
}

// Store resolves policy values with precedence override, then environment
// (process env vars and config-file values), then compiled default. Override
// lookup failures fall back silently to the next tier; a scan pass is never
// aborted because the state store is unavailable.
type Store struct {
	overrides OverrideReader
	env       map[string]string
}

// New creates a policy store. overrides may be nil (no override tier).
func New(overrides OverrideReader) *Store {
	return &Store{overrides: overrides, env: make(map[string]string)}
}

// SetEnvValues installs config-file values into the environment tier.
// Process env vars still take precedence within the tier.
func (s *Store) SetEnvValues(values map[string]string) {
	for k, v := range values {
		s.env[k] = v
	}
}

// EnvVarName maps a policy key to its process environment variable,
// e.g. healer.cooldown_seconds -> WARDEN_HEALER_COOLDOWN_SECONDS.
func EnvVarName(key string) string {
	return "WARDEN_" + strings.ToUpper(strings.NewReplacer(".", "_", "-", "_").Replace(key))
}

// Get resolves a policy value and reports which tier supplied it.
func (s *Store) Get(key string) (string, Source) {
	if s.overrides != nil {
		if value, found, err := s.overrides.GetOverride(key); err == nil && found {
			return value, SourceOverride
		} else if err != nil {
			logger := log.WithComponent("policy")
			logger.Warn().Err(err).Str("key", key).Msg("override lookup failed, falling back")
		}
	}
	if value, ok := os.LookupEnv(EnvVarName(key)); ok && value != "" {
		return value, SourceEnvironment
	}
	if value, ok := s.env[key]; ok && value != "" {
		return value, SourceEnvironment
	}
	return defaults[key], SourceDefault
}

// Default returns the compiled default for a key.
func Default(key string) string {
	return defaults[key]
}

// Known reports whether key has a compiled default, i.e. is a real tunable.
func Known(key string) bool {
	_, ok := defaults[key]
	return ok
}

// Keys returns every known policy key, in no particular order.
func Keys() []string {
	out := make([]string, 0, len(defaults))
	for key := range defaults {
		out = append(out, key)
	}
	return out
}

// Int resolves key as an integer, falling back to the compiled default on a
// malformed value.
func (s *Store) Int(key string) int {
	value, _ := s.Get(key)
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		logger := log.WithComponent("policy")
		logger.Warn().Str("key", key).Str("value", value).Msg("malformed int, using default")
		n, _ = strconv.Atoi(defaults[key])
	}
	return n
}

// Float resolves key as a float64.
func (s *Store) Float(key string) float64 {
	value, _ := s.Get(key)
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		logger := log.WithComponent("policy")
		logger.Warn().Str("key", key).Str("value", value).Msg("malformed float, using default")
		f, _ = strconv.ParseFloat(defaults[key], 64)
	}
	return f
}

// Bool resolves key as a boolean.
func (s *Store) Bool(key string) bool {
	value, _ := s.Get(key)
	b, err := strconv.ParseBool(strings.TrimSpace(value))
	if err != nil {
		logger := log.WithComponent("policy")
		logger.Warn().Str("key", key).Str("value", value).Msg("malformed bool, using default")
		b, _ = strconv.ParseBool(defaults[key])
	}
	return b
}

// Seconds resolves key as a duration expressed in whole seconds.
func (s *Store) Seconds(key string) time.Duration {
	return time.Duration(s.Int(key)) * time.Second
}

// StringSlice resolves key as a comma-separated list. Empty entries are
// dropped; an empty value yields a nil slice.
func (s *Store) StringSlice(key string) []string {
	value, _ := s.Get(key)
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

// StringSet resolves key as a membership set.
func (s *Store) StringSet(key string) map[string]bool {
	items := s.StringSlice(key)
	if len(items) == 0 {
		return nil
	}
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[item] = true
	}
	return set
}
