package diagnose

import (
	"fmt"

	"github.com/wardenhq/warden/pkg/types"
)

// ruleNodeCapacity evaluates node CPU/memory pressure against a flat
// percentage threshold with a sustain requirement. A breach that does not
// sustain long enough yields an informational no-action suggestion carrying
// the measured evidence.
func ruleNodeCapacity(c *Context) *types.Suggestion {
	var threshold float64
	var resource string
	switch c.Target {
	case types.TargetNodeCPU:
		threshold = c.Thresholds.NodeCPUPct
		resource = "cpu"
	case types.TargetNodeMemory:
		threshold = c.Thresholds.NodeMemPct
		resource = "memory"
	default:
		return nil
	}

	peak := c.Band.Peak()
	sustain := c.Band.SustainMinutes(threshold)
	required := float64(c.Thresholds.NodeSustainMinutes)

	evidence := map[string]string{
		"peak_pct":         formatFloat(peak),
		"threshold_pct":    formatFloat(threshold),
		"sustain_minutes":  formatFloat(sustain),
		"required_minutes": formatFloat(required),
		"resource":         resource,
	}

	if sustain < required {
		return &types.Suggestion{
			Severity: types.SeverityInfo,
			Title:    fmt.Sprintf("node %s below sustained pressure", resource),
			Evidence: evidence,
			Rationale: fmt.Sprintf("predicted %s stays at or above %.0f%% for %.0f of the required %.0f minutes; no action needed",
				resource, threshold, sustain, required),
			Action: types.SuggestionAction{Kind: types.SuggestNone},
		}
	}

	severity := types.SeverityWarning
	// More than 10 points over the threshold is treated as critical.
	if peak > threshold+10 {
		severity = types.SeverityCritical
	}
	return &types.Suggestion{
		Severity: severity,
		Title:    fmt.Sprintf("sustained node %s pressure, add capacity", resource),
		Evidence: evidence,
		Rationale: fmt.Sprintf("predicted %s peaks at %.1f%% and stays at or above %.0f%% for %.0f minutes",
			resource, peak, threshold, sustain),
		Action: types.SuggestionAction{
			Kind:   types.SuggestAddNode,
			Params: map[string]string{"node": c.Key, "resource": resource},
		},
	}
}
