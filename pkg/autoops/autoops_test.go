package autoops

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wardenhq/warden/pkg/alert"
	"github.com/wardenhq/warden/pkg/cluster"
	"github.com/wardenhq/warden/pkg/diagnose"
	"github.com/wardenhq/warden/pkg/forecast"
	"github.com/wardenhq/warden/pkg/policy"
	"github.com/wardenhq/warden/pkg/storage"
	"github.com/wardenhq/warden/pkg/types"
)

type harness struct {
	linker *Linker
	store  *storage.BoltStore
	gw     *cluster.FakeGateway
	alerts *alert.Recorder
	now    time.Time
}

func newHarness(t *testing.T, band *forecast.Band, env map[string]string) *harness {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	pol := policy.New(store)
	pol.SetEnvValues(env)

	gw := cluster.NewFakeGateway()
	alerts := &alert.Recorder{}
	linker := NewLinker(diagnose.NewEngine(pol), &forecast.StaticProvider{Band: band}, gw, store, pol, alerts, nil)

	hs := &harness{linker: linker, store: store, gw: gw, alerts: alerts, now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	linker.now = func() time.Time { return hs.now }
	return hs
}

func (hs *harness) calls(prefix string) []string {
	var out []string
	for _, c := range hs.gw.CallNames() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// overloadBand predicts a peak just above the configured limit for a pod
// backed by the "api" deployment, enough to fire the triggered-scale rule.
func overloadBand(peak float64) *forecast.Band {
	limit := 100.0
	replicas := int32(2)
	base := time.Date(2025, 6, 1, 11, 0, 0, 0, time.UTC)
	band := &forecast.Band{
		Target: types.TargetPodCPU,
		Key:    "prod/api-7d9f4-xk2p1",
		Meta: forecast.Meta{
			LimitMilliCPU:   &limit,
			ControllerKind:  types.ControllerReplicaSet,
			ControllerName:  "api-7d9f4",
			DeploymentName:  "api",
			DeploymentUID:   "dep-uid-api",
			CurrentReplicas: &replicas,
			StepSeconds:     60,
		},
	}
	for i := 0; i < 10; i++ {
		band.History = append(band.History, forecast.Point{Timestamp: base.Add(time.Duration(i) * time.Minute), Value: 60})
		band.Forecast = append(band.Forecast, forecast.BandPoint{
			Timestamp: base.Add(time.Duration(10+i) * time.Minute),
			Predicted: peak, Lower: peak * 0.9, Upper: peak * 1.1,
		})
	}
	return band
}

func TestEvaluateAppliesScale(t *testing.T) {
	hs := newHarness(t, overloadBand(105), map[string]string{policy.KeyAutoOpsExecute: "true"})
	hs.gw.AddDeployment("prod", "api", "dep-uid-api", 2)

	out, err := hs.linker.Evaluate(context.Background(), "prod", "api-7d9f4-xk2p1", 60, 10, 60)
	require.NoError(t, err)
	assert.True(t, out.Applied)
	assert.False(t, out.DryRun)
	// 105/100 = 1.05, below 1.2: stair step +2.
	assert.Equal(t, 2, out.Delta)
	assert.Equal(t, int32(2), out.Before)
	assert.Equal(t, int32(4), out.After)
	assert.Equal(t, []string{"GetDeploymentReplicas(prod/api)", "ScaleDeployment(prod/api,4)"}, hs.gw.CallNames())

	// Predictive-overload alert first, before/after alert second.
	require.Len(t, hs.alerts.Alerts(), 2)
	assert.Equal(t, "WardenPredictedOverload", hs.alerts.Alerts()[0].Name)
	assert.Equal(t, "WardenAutoScale", hs.alerts.Alerts()[1].Name)
	assert.Contains(t, hs.alerts.Alerts()[1].Annotations["summary"], "from 2 to 4")

	// The cooldown mark now gates an immediate re-run.
	hs.gw.Calls = nil
	out, err = hs.linker.Evaluate(context.Background(), "prod", "api-7d9f4-xk2p1", 60, 10, 60)
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, SkipCooldown, out.Skipped)
	assert.Empty(t, hs.gw.CallNames())
}

func TestEvaluateDryRunDoesNotMutateOrRefreshCooldown(t *testing.T) {
	hs := newHarness(t, overloadBand(105), nil)
	hs.gw.AddDeployment("prod", "api", "dep-uid-api", 2)

	out, err := hs.linker.Evaluate(context.Background(), "prod", "api-7d9f4-xk2p1", 60, 10, 60)
	require.NoError(t, err)
	assert.True(t, out.DryRun)
	assert.False(t, out.Applied)
	assert.Empty(t, hs.calls("ScaleDeployment"))

	audits, err := hs.store.ListActionAudits(10)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.True(t, audits[0].DryRun)

	// A dry run never refreshes the cooldown: a second evaluation still
	// reaches the scale decision rather than skipping.
	out, err = hs.linker.Evaluate(context.Background(), "prod", "api-7d9f4-xk2p1", 60, 10, 60)
	require.NoError(t, err)
	assert.True(t, out.DryRun)
	assert.NotEqual(t, SkipCooldown, out.Skipped)
}

func TestEvaluateNoBreachSkips(t *testing.T) {
	hs := newHarness(t, overloadBand(50), map[string]string{policy.KeyAutoOpsExecute: "true"})
	hs.gw.AddDeployment("prod", "api", "dep-uid-api", 2)

	out, err := hs.linker.Evaluate(context.Background(), "prod", "api-7d9f4-xk2p1", 60, 10, 60)
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, SkipNoSuggestion, out.Skipped)
	assert.Empty(t, hs.calls("ScaleDeployment"))
	require.Len(t, hs.alerts.Named("WardenAutoScaleSkipped"), 1)
}

func TestEvaluateUnscalableWorkloadSkips(t *testing.T) {
	band := overloadBand(105)
	band.Meta.ControllerKind = types.ControllerStatefulSet
	band.Meta.DeploymentName = ""
	band.Meta.DeploymentUID = ""
	hs := newHarness(t, band, map[string]string{policy.KeyAutoOpsExecute: "true"})

	out, err := hs.linker.Evaluate(context.Background(), "prod", "db-0", 60, 10, 60)
	require.NoError(t, err)
	assert.False(t, out.Applied)
	assert.Equal(t, SkipNoSuggestion, out.Skipped)
	assert.Empty(t, hs.gw.CallNames())
}

func TestEvaluateScaleFailureSurfacedNoCooldown(t *testing.T) {
	hs := newHarness(t, overloadBand(105), map[string]string{policy.KeyAutoOpsExecute: "true"})
	hs.gw.AddDeployment("prod", "api", "dep-uid-api", 2)
	hs.gw.Errs["ScaleDeployment"] = assert.AnError

	_, err := hs.linker.Evaluate(context.Background(), "prod", "api-7d9f4-xk2p1", 60, 10, 60)
	require.Error(t, err)

	// A failed execution must not refresh the cooldown.
	_, found, err := hs.store.LastCooldown(cooldownPrefix + "prod/api")
	require.NoError(t, err)
	assert.False(t, found)
}
