package diagnose

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/pkg/forecast"
	"github.com/wardenhq/warden/pkg/policy"
	"github.com/wardenhq/warden/pkg/types"
)

func newEngine() *Engine {
	return NewEngine(policy.New(nil))
}

// bandOf builds a band with one-minute forecast steps and optional history.
func bandOf(history []float64, predicted []float64) *forecast.Band {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b := &forecast.Band{}
	for i, v := range history {
		b.History = append(b.History, forecast.Point{
			Timestamp: base.Add(time.Duration(i-len(history)) * time.Minute),
			Value:     v,
		})
	}
	for i, v := range predicted {
		b.Forecast = append(b.Forecast, forecast.BandPoint{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Predicted: v,
			Lower:     v * 0.9,
			Upper:     v * 1.1,
		})
	}
	return b
}

func limitPtr(v float64) *float64 { return &v }

func deploymentMeta(b *forecast.Band) *forecast.Band {
	b.Meta.ControllerKind = types.ControllerReplicaSet
	b.Meta.ControllerName = "api-5d9f"
	b.Meta.DeploymentName = "api"
	b.Meta.DeploymentUID = "dep-uid-1"
	return b
}

func findRule(resp *types.SuggestionsResp, rule string) *types.Suggestion {
	for i := range resp.Suggestions {
		if resp.Suggestions[i].Rule == rule {
			return &resp.Suggestions[i]
		}
	}
	return nil
}

func TestUnknownTarget(t *testing.T) {
	_, err := newEngine().Diagnose("disk", "node-1", bandOf(nil, nil))
	assert.Error(t, err)
}

func TestNodeCPUBelowSustainIsInformational(t *testing.T) {
	// Default node CPU threshold 80, sustain 10 minutes. Only the last 3
	// points breach, so no action is suggested.
	predicted := []float64{60, 60, 60, 60, 60, 60, 60, 85, 88, 90}
	resp, err := newEngine().Diagnose(types.TargetNodeCPU, "node-1", bandOf(nil, predicted))
	require.NoError(t, err)
	require.Len(t, resp.Suggestions, 1)

	s := resp.Suggestions[0]
	assert.Equal(t, types.SeverityInfo, s.Severity)
	assert.Equal(t, types.SuggestNone, s.Action.Kind)
	assert.Equal(t, "90", s.Evidence["peak_pct"])
	assert.Equal(t, "3", s.Evidence["sustain_minutes"])
}

func TestNodeCPUSustainedBreachSuggestsNode(t *testing.T) {
	predicted := make([]float64, 12)
	for i := range predicted {
		predicted[i] = 85
	}
	resp, err := newEngine().Diagnose(types.TargetNodeCPU, "node-1", bandOf(nil, predicted))
	require.NoError(t, err)
	require.Len(t, resp.Suggestions, 1)

	s := resp.Suggestions[0]
	assert.Equal(t, types.SeverityWarning, s.Severity)
	assert.Equal(t, types.SuggestAddNode, s.Action.Kind)
	assert.Equal(t, "node-1", s.Action.Params["node"])
}

func TestNodeMemoryCriticalOverTenPoints(t *testing.T) {
	// Memory threshold 85; peak 96 exceeds threshold+10.
	predicted := make([]float64, 12)
	for i := range predicted {
		predicted[i] = 96
	}
	resp, err := newEngine().Diagnose(types.TargetNodeMemory, "node-2", bandOf(nil, predicted))
	require.NoError(t, err)
	require.Len(t, resp.Suggestions, 1)
	assert.Equal(t, types.SeverityCritical, resp.Suggestions[0].Severity)
}

func TestPodCPUNoLimitNoHistory(t *testing.T) {
	resp, err := newEngine().Diagnose(types.TargetPodCPU, "default/api-abc", bandOf(nil, []float64{50}))
	require.NoError(t, err)
	require.Len(t, resp.Suggestions, 1)
	s := resp.Suggestions[0]
	assert.Equal(t, types.SeverityInfo, s.Severity)
	assert.Contains(t, s.Title, "insufficient data")
}

func TestPodCPUNormalWithConfiguredLimit(t *testing.T) {
	band := bandOf(nil, []float64{100, 120})
	band.Meta.LimitMilliCPU = limitPtr(500)

	resp, err := newEngine().Diagnose(types.TargetPodCPU, "default/api-abc", band)
	require.NoError(t, err)

	s := findRule(resp, "pod_cpu_limit")
	require.NotNil(t, s)
	assert.Equal(t, types.SeverityInfo, s.Severity)
	assert.Equal(t, "configured", s.Evidence["limit_source"])
	assert.Equal(t, types.SuggestNone, s.Action.Kind)

	// With a real limit there is no resource recommendation.
	assert.Nil(t, findRule(resp, "pod_cpu_resources"))
}

func TestPodCPUResourceRecommendationExactNumbers(t *testing.T) {
	// History 50..100 mCPU, no limit: p95=95, p99=99,
	// request=max(95, 90)=95, limit=max(99, 142.5)=142.5.
	band := deploymentMeta(bandOf([]float64{50, 60, 70, 80, 90, 100}, []float64{60}))

	resp, err := newEngine().Diagnose(types.TargetPodCPU, "default/api-abc", band)
	require.NoError(t, err)

	s := findRule(resp, "pod_cpu_resources")
	require.NotNil(t, s)
	assert.Equal(t, "95", s.Evidence["p95_mcpu"])
	assert.Equal(t, "99", s.Evidence["p99_mcpu"])
	assert.Equal(t, "95", s.Evidence["request_mcpu"])
	assert.Equal(t, "142.5", s.Evidence["limit_mcpu"])
	assert.Equal(t, types.SuggestPatchResources, s.Action.Kind)
	assert.Equal(t, "api", s.Action.Params["deployment"])
	assert.Equal(t, "default", s.Action.Params["namespace"])
	assert.Equal(t, "95m", s.Action.Params["cpu_request"])
	assert.Equal(t, "143m", s.Action.Params["cpu_limit"])
}

func TestPodCPUResourceRecommendationNonDeployment(t *testing.T) {
	band := bandOf([]float64{50, 60, 70, 80, 90, 100}, []float64{60})
	band.Meta.ControllerKind = types.ControllerStatefulSet
	band.Meta.ControllerName = "db"

	resp, err := newEngine().Diagnose(types.TargetPodCPU, "default/db-0", band)
	require.NoError(t, err)

	s := findRule(resp, "pod_cpu_resources")
	require.NotNil(t, s)
	assert.Equal(t, types.SuggestNone, s.Action.Kind)
	assert.Contains(t, s.Evidence["patch_manifest"], "name: db")
	assert.Contains(t, s.Evidence["patch_manifest"], "cpu: 95m")
	assert.Contains(t, s.Evidence["patch_manifest"], "cpu: 143m")
}

func TestPodCPUScaleRuleDeployment(t *testing.T) {
	// Limit 100, peak 110: ratio 1.1 -> stair +2, critical (>= 1.1 ratio).
	band := deploymentMeta(bandOf(nil, []float64{110}))
	band.Meta.LimitMilliCPU = limitPtr(100)
	replicas := int32(3)
	band.Meta.CurrentReplicas = &replicas

	resp, err := newEngine().Diagnose(types.TargetPodCPU, "default/api-abc", band)
	require.NoError(t, err)

	s := findRule(resp, "pod_cpu_scale")
	require.NotNil(t, s)
	assert.Equal(t, types.SeverityCritical, s.Severity)
	assert.Equal(t, types.SuggestScaleDeployment, s.Action.Kind)
	assert.Equal(t, "2", s.Action.Params["replica_delta"])
	assert.Equal(t, "3", s.Action.Params["current_replicas"])
	assert.Equal(t, "dep-uid-1", s.Action.Params["deployment_uid"])
}

func TestPodCPUScaleRuleSustainWithoutPeakBreach(t *testing.T) {
	// Limit 100, trigger at 90: predicted sits at 85 (below trigger) so the
	// peak branch does not fire, and neither does sustain; no scale rule.
	band := deploymentMeta(bandOf(nil, []float64{85, 85, 85, 85, 85, 85}))
	band.Meta.LimitMilliCPU = limitPtr(100)

	resp, err := newEngine().Diagnose(types.TargetPodCPU, "default/api-abc", band)
	require.NoError(t, err)
	assert.Nil(t, findRule(resp, "pod_cpu_scale"))

	// At 90 for the sustain window the rule fires with stair +1.
	band = deploymentMeta(bandOf(nil, []float64{90, 90, 90, 90, 90, 90}))
	band.Meta.LimitMilliCPU = limitPtr(100)
	resp, err = newEngine().Diagnose(types.TargetPodCPU, "default/api-abc", band)
	require.NoError(t, err)

	s := findRule(resp, "pod_cpu_scale")
	require.NotNil(t, s)
	assert.Equal(t, "1", s.Action.Params["replica_delta"])
}

func TestPodCPUScaleRuleStatefulSetDegradesToInvestigate(t *testing.T) {
	band := bandOf(nil, []float64{120})
	band.Meta.LimitMilliCPU = limitPtr(100)
	band.Meta.ControllerKind = types.ControllerStatefulSet

	resp, err := newEngine().Diagnose(types.TargetPodCPU, "default/db-0", band)
	require.NoError(t, err)

	s := findRule(resp, "pod_cpu_scale")
	require.NotNil(t, s)
	assert.Equal(t, types.SuggestInvestigateLogs, s.Action.Kind)
}

func TestEveryFiredRuleCarriesEvidence(t *testing.T) {
	band := deploymentMeta(bandOf([]float64{50, 60, 70, 80, 90, 100}, []float64{150, 150, 150, 150, 150, 150}))

	resp, err := newEngine().Diagnose(types.TargetPodCPU, "default/api-abc", band)
	require.NoError(t, err)
	require.NotEmpty(t, resp.Suggestions)
	for _, s := range resp.Suggestions {
		assert.NotEmpty(t, s.Evidence, "rule %s must carry evidence", s.Rule)
		assert.NotEmpty(t, s.Rationale)
	}
}
