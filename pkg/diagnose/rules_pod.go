package diagnose

import (
	"fmt"
	"math"
	"strings"

	"github.com/wardenhq/warden/pkg/types"
)

// rulePodCPULimit classifies the predicted peak against escalating ratios of
// the (configured or estimated) CPU limit.
func rulePodCPULimit(c *Context) *types.Suggestion {
	if !c.limitKnown {
		return &types.Suggestion{
			Severity:  types.SeverityInfo,
			Title:     "insufficient data for CPU diagnosis",
			Evidence:  map[string]string{"history_samples": "0"},
			Rationale: "no CPU limit is configured and no usage history is available to estimate one",
			Action:    types.SuggestionAction{Kind: types.SuggestNone},
		}
	}

	peak := c.Band.Peak()
	ratio := peak / c.limit
	evidence := map[string]string{
		"peak_mcpu":    formatFloat(peak),
		"limit_mcpu":   formatFloat(c.limit),
		"ratio":        fmt.Sprintf("%.3f", ratio),
		"limit_source": c.limitSource(),
	}

	switch {
	case ratio < c.Thresholds.ObserveRatio:
		return &types.Suggestion{
			Severity:  types.SeverityInfo,
			Title:     "CPU usage within normal range",
			Evidence:  evidence,
			Rationale: fmt.Sprintf("predicted peak is %.0f%% of the %s limit", ratio*100, c.limitSource()),
			Action:    types.SuggestionAction{Kind: types.SuggestNone},
		}
	case ratio < c.Thresholds.TriggerRatio:
		return &types.Suggestion{
			Severity:  types.SeverityInfo,
			Title:     "CPU usage approaching limit",
			Evidence:  evidence,
			Rationale: fmt.Sprintf("predicted peak is %.0f%% of the %s limit, below the trigger threshold", ratio*100, c.limitSource()),
			Action:    types.SuggestionAction{Kind: types.SuggestNone},
		}
	case ratio < c.Thresholds.CriticalRatio:
		return &types.Suggestion{
			Severity:  types.SeverityWarning,
			Title:     "CPU usage crossing trigger threshold",
			Evidence:  evidence,
			Rationale: fmt.Sprintf("predicted peak is %.0f%% of the %s limit", ratio*100, c.limitSource()),
			Action:    types.SuggestionAction{Kind: types.SuggestInvestigateLogs},
		}
	default:
		return &types.Suggestion{
			Severity:  types.SeverityCritical,
			Title:     "CPU usage predicted to breach limit",
			Evidence:  evidence,
			Rationale: fmt.Sprintf("predicted peak is %.0f%% of the %s limit", ratio*100, c.limitSource()),
			Action:    types.SuggestionAction{Kind: types.SuggestInvestigateLogs},
		}
	}
}

// rulePodCPUResources recommends request/limit values when no real limit is
// configured. For a Deployment the hint is directly actionable; for other
// controllers it degrades to a ready-to-apply patch manifest in evidence.
func rulePodCPUResources(c *Context) *types.Suggestion {
	if !c.limitEstimated {
		return nil
	}

	request := c.estimate.Request
	limit := c.estimate.Limit
	evidence := map[string]string{
		"p95_mcpu":     formatFloat(c.estimate.P95),
		"p99_mcpu":     formatFloat(c.estimate.P99),
		"request_mcpu": formatFloat(request),
		"limit_mcpu":   formatFloat(limit),
		"limit_source": "estimated",
	}

	if c.Band.Meta.ControllerKind == types.ControllerReplicaSet && c.Band.Meta.DeploymentName != "" {
		return &types.Suggestion{
			Severity: types.SeverityWarning,
			Title:    "no CPU limit configured, set resources",
			Evidence: evidence,
			Rationale: fmt.Sprintf("workload has no CPU limit; recommend request=%sm limit=%sm from usage history",
				millicores(request), millicores(limit)),
			Action: types.SuggestionAction{
				Kind: types.SuggestPatchResources,
				Params: map[string]string{
					"namespace":   namespaceOf(c.Key),
					"deployment":  c.Band.Meta.DeploymentName,
					"cpu_request": millicores(request) + "m",
					"cpu_limit":   millicores(limit) + "m",
				},
			},
		}
	}

	evidence["patch_manifest"] = resourcePatchManifest(c.Band.Meta.ControllerName, request, limit)
	return &types.Suggestion{
		Severity: types.SeverityWarning,
		Title:    "no CPU limit configured",
		Evidence: evidence,
		Rationale: fmt.Sprintf("workload has no CPU limit and no one-click patch target; apply the generated manifest to set request=%sm limit=%sm",
			millicores(request), millicores(limit)),
		Action: types.SuggestionAction{Kind: types.SuggestNone},
	}
}

// rulePodCPUScale fires when the predicted peak crosses the trigger ratio of
// the limit, or sustains at it for the configured minutes. The replica delta
// follows the stair function.
func rulePodCPUScale(c *Context) *types.Suggestion {
	if !c.limitKnown {
		return nil
	}

	peak := c.Band.Peak()
	ratio := peak / c.limit
	triggerValue := c.Thresholds.TriggerRatio * c.limit
	sustain := c.Band.SustainMinutes(triggerValue)

	peakBreach := ratio >= c.Thresholds.TriggerRatio
	sustainBreach := sustain >= float64(c.Thresholds.SustainMinutes)
	if !peakBreach && !sustainBreach {
		return nil
	}

	delta := StairDelta(ratio, c.Thresholds.TriggerRatio)
	evidence := map[string]string{
		"peak_mcpu":       formatFloat(peak),
		"limit_mcpu":      formatFloat(c.limit),
		"ratio":           fmt.Sprintf("%.3f", ratio),
		"sustain_minutes": formatFloat(sustain),
		"replica_delta":   fmt.Sprintf("%d", delta),
		"limit_source":    c.limitSource(),
		"strategy":        ScaleStrategyStair,
	}

	isDeployment := c.Band.Meta.ControllerKind == types.ControllerReplicaSet && c.Band.Meta.DeploymentName != ""
	if !isDeployment {
		// StatefulSet, DaemonSet, bare pods: no one-click scale supported.
		return &types.Suggestion{
			Severity:  types.SeverityWarning,
			Title:     "predicted CPU overload on unscalable workload",
			Evidence:  evidence,
			Rationale: fmt.Sprintf("predicted load reaches %.0f%% of the limit but the controller kind %q has no automated scale path", ratio*100, string(c.Band.Meta.ControllerKind)),
			Action:    types.SuggestionAction{Kind: types.SuggestInvestigateLogs},
		}
	}
	if delta == 0 {
		return &types.Suggestion{
			Severity:  types.SeverityWarning,
			Title:     "sustained CPU pressure, scaling would not help",
			Evidence:  evidence,
			Rationale: "predicted load sustains near the limit but the peak ratio maps to a zero replica step",
			Action:    types.SuggestionAction{Kind: types.SuggestInvestigateLogs},
		}
	}

	params := map[string]string{
		"namespace":     namespaceOf(c.Key),
		"deployment":    c.Band.Meta.DeploymentName,
		"replica_delta": fmt.Sprintf("%d", delta),
	}
	if c.Band.Meta.DeploymentUID != "" {
		params["deployment_uid"] = c.Band.Meta.DeploymentUID
	}
	if c.Band.Meta.CurrentReplicas != nil {
		params["current_replicas"] = fmt.Sprintf("%d", *c.Band.Meta.CurrentReplicas)
	}
	severity := types.SeverityWarning
	if ratio >= c.Thresholds.CriticalRatio {
		severity = types.SeverityCritical
	}
	return &types.Suggestion{
		Severity: severity,
		Title:    fmt.Sprintf("scale %s by +%d replicas", c.Band.Meta.DeploymentName, delta),
		Evidence: evidence,
		Rationale: fmt.Sprintf("predicted load reaches %.0f%% of the %s limit (sustain %.0f min); stair step +%d",
			ratio*100, c.limitSource(), sustain, delta),
		Action: types.SuggestionAction{Kind: types.SuggestScaleDeployment, Params: params},
	}
}

// millicores renders a millicore quantity rounded up to a whole unit.
func millicores(v float64) string {
	return fmt.Sprintf("%d", int64(math.Ceil(v)))
}

// namespaceOf extracts the namespace from a "namespace/pod" diagnosis key.
func namespaceOf(key string) string {
	if i := strings.IndexByte(key, '/'); i >= 0 {
		return key[:i]
	}
	return key
}

// resourcePatchManifest renders a strategic-merge patch for workloads the
// engine cannot patch directly.
func resourcePatchManifest(container string, request, limit float64) string {
	if container == "" {
		container = "app"
	}
	return fmt.Sprintf(`spec:
  template:
    spec:
      containers:
        - name: %s
          resources:
            requests:
              cpu: %sm
            limits:
              cpu: %sm
`, container, millicores(request), millicores(limit))
}
