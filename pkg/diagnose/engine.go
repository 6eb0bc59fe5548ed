package diagnose

import (
	"fmt"
	"time"

	"github.com/wardenhq/warden/pkg/forecast"
	"github.com/wardenhq/warden/pkg/log"
	"github.com/wardenhq/warden/pkg/metrics"
	"github.com/wardenhq/warden/pkg/policy"
	"github.com/wardenhq/warden/pkg/types"
)

// Thresholds are the policy values one diagnosis call runs under, resolved
// once per call so a pass is internally consistent.
type Thresholds struct {
	ObserveRatio       float64
	TriggerRatio       float64
	CriticalRatio      float64
	SustainMinutes     int
	NodeCPUPct         float64
	NodeMemPct         float64
	NodeSustainMinutes int
}

// Context is the evidence one rule evaluation sees. Rules are pure reads of
// this structure.
type Context struct {
	Target     string
	Key        string
	Band       *forecast.Band
	Thresholds Thresholds

	// limit resolution, computed once before rules run
	limit          float64
	limitKnown     bool
	limitEstimated bool
	estimate       forecast.Estimate
}

// RuleFunc evaluates one independent rule. Returning nil defers to later
// rules; every non-nil result is collected, so multiple rules may fire for
// the same call.
type RuleFunc func(*Context) *types.Suggestion

type rule struct {
	name    string
	targets map[string]bool
	eval    RuleFunc
}

// Engine runs an ordered list of diagnosis rules over a forecast band.
// The rule list is fixed at construction.
type Engine struct {
	policies *policy.Store
	rules    []rule
}

// Replica scaling strategies. Only stair has a specified formula; linear is
// an extension point.
const (
	ScaleStrategyStair  = "stair"
	ScaleStrategyLinear = "linear"
)

// NewEngine constructs the engine with the standard rule order: node
// capacity, pod limit classification, pod resource recommendation, pod
// triggered scale.
func NewEngine(policies *policy.Store) *Engine {
	e := &Engine{policies: policies}
	e.rules = []rule{
		{
			name:    "node_capacity",
			targets: map[string]bool{types.TargetNodeCPU: true, types.TargetNodeMemory: true},
			eval:    ruleNodeCapacity,
		},
		{
			name:    "pod_cpu_limit",
			targets: map[string]bool{types.TargetPodCPU: true},
			eval:    rulePodCPULimit,
		},
		{
			name:    "pod_cpu_resources",
			targets: map[string]bool{types.TargetPodCPU: true},
			eval:    rulePodCPUResources,
		},
		{
			name:    "pod_cpu_scale",
			targets: map[string]bool{types.TargetPodCPU: true},
			eval:    rulePodCPUScale,
		},
	}
	return e
}

func (e *Engine) thresholds() Thresholds {
	return Thresholds{
		ObserveRatio:       e.policies.Float(policy.KeyDiagnoseObserveRatio),
		TriggerRatio:       e.policies.Float(policy.KeyDiagnoseTriggerRatio),
		CriticalRatio:      e.policies.Float(policy.KeyDiagnoseCriticalRatio),
		SustainMinutes:     e.policies.Int(policy.KeyDiagnoseSustainMin),
		NodeCPUPct:         e.policies.Float(policy.KeyDiagnoseNodeCPUPct),
		NodeMemPct:         e.policies.Float(policy.KeyDiagnoseNodeMemPct),
		NodeSustainMinutes: e.policies.Int(policy.KeyDiagnoseNodeSustain),
	}
}

// Diagnose evaluates every applicable rule for the target and collects the
// fired suggestions in rule order.
func (e *Engine) Diagnose(target, key string, band *forecast.Band) (*types.SuggestionsResp, error) {
	switch target {
	case types.TargetNodeCPU, types.TargetNodeMemory, types.TargetPodCPU:
	default:
		return nil, fmt.Errorf("unknown diagnosis target %q", target)
	}
	if band == nil {
		return nil, fmt.Errorf("nil forecast band")
	}

	ctx := &Context{
		Target:     target,
		Key:        key,
		Band:       band,
		Thresholds: e.thresholds(),
	}
	ctx.resolveLimit()

	resp := &types.SuggestionsResp{
		Target:      target,
		Key:         key,
		GeneratedAt: time.Now().UTC(),
	}
	logger := log.WithComponent("diagnose")
	for _, r := range e.rules {
		if !r.targets[target] {
			continue
		}
		if s := r.eval(ctx); s != nil {
			s.Rule = r.name
			resp.Suggestions = append(resp.Suggestions, *s)
			metrics.SuggestionsTotal.WithLabelValues(r.name, string(s.Severity)).Inc()
			logger.Debug().Str("rule", r.name).Str("key", key).Str("severity", string(s.Severity)).Msg("rule fired")
		}
	}
	return resp, nil
}

// resolveLimit determines the CPU limit evidence for pod rules: the
// configured limit from forecast metadata when present, otherwise a
// synthetic estimate from historical (or peer) usage samples.
func (c *Context) resolveLimit() {
	if c.Target != types.TargetPodCPU {
		return
	}
	if c.Band.Meta.LimitMilliCPU != nil && *c.Band.Meta.LimitMilliCPU > 0 {
		c.limit = *c.Band.Meta.LimitMilliCPU
		c.limitKnown = true
		return
	}
	samples := c.Band.HistoryValues()
	if len(samples) == 0 {
		samples = c.Band.Meta.PeerUsageMilliCPU
	}
	if est, ok := forecast.EstimateResources(samples); ok {
		c.estimate = est
		c.limit = est.Limit
		c.limitKnown = true
		c.limitEstimated = true
	}
}

// limitSource names the origin of the limit for evidence annotations.
func (c *Context) limitSource() string {
	if c.limitEstimated {
		return "estimated"
	}
	return "configured"
}

func formatFloat(v float64) string {
	return fmt.Sprintf("%g", v)
}
