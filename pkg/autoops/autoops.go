package autoops

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wardenhq/warden/pkg/alert"
	"github.com/wardenhq/warden/pkg/cluster"
	"github.com/wardenhq/warden/pkg/diagnose"
	"github.com/wardenhq/warden/pkg/events"
	"github.com/wardenhq/warden/pkg/forecast"
	"github.com/wardenhq/warden/pkg/log"
	"github.com/wardenhq/warden/pkg/metrics"
	"github.com/wardenhq/warden/pkg/policy"
	"github.com/wardenhq/warden/pkg/storage"
	"github.com/wardenhq/warden/pkg/types"
)

// cooldownPrefix namespaces auto-ops cooldown marks away from the healer's.
const cooldownPrefix = "autoscale:"

// Skip reasons reported in Outcome and alerts.
const (
	SkipNoSuggestion = "no_scale_suggestion"
	SkipNoDeployment = "no_deployment_mapping"
	SkipCooldown     = "cooldown"
)

// Outcome describes what one auto-ops evaluation did.
type Outcome struct {
	Applied    bool              `json:"applied"`
	DryRun     bool              `json:"dryRun"`
	Skipped    string            `json:"skipped,omitempty"`
	Namespace  string            `json:"namespace"`
	Deployment string            `json:"deployment,omitempty"`
	Delta      int               `json:"delta,omitempty"`
	Before     int32             `json:"before,omitempty"`
	After      int32             `json:"after,omitempty"`
	Suggestion *types.Suggestion `json:"suggestion,omitempty"`
}

// Linker bridges pod-CPU diagnosis to real scale mutations. It owns its
// cooldown domain; the healer's remediation cooldowns are never consulted.
type Linker struct {
	engine   *diagnose.Engine
	provider forecast.Provider
	gateway  cluster.Gateway
	store    storage.Store
	policies *policy.Store
	alerts   alert.Sink
	broker   *events.Broker
	logger   zerolog.Logger
	now      func() time.Time
}

// NewLinker creates an auto-ops linker. broker may be nil.
func NewLinker(engine *diagnose.Engine, provider forecast.Provider, gateway cluster.Gateway, store storage.Store, policies *policy.Store, alerts alert.Sink, broker *events.Broker) *Linker {
	if alerts == nil {
		alerts = alert.Noop{}
	}
	return &Linker{
		engine:   engine,
		provider: provider,
		gateway:  gateway,
		store:    store,
		policies: policies,
		alerts:   alerts,
		broker:   broker,
		logger:   log.WithComponent("autoops"),
		now:      time.Now,
	}
}

// Evaluate runs the pod-CPU diagnosis for namespace/pod and, when it yields
// a scale-deployment suggestion, applies the scale under the auto-ops
// cooldown and execute gates. Every non-applying path emits an alert
// explaining why nothing was done.
func (l *Linker) Evaluate(ctx context.Context, namespace, pod string, historyMinutes, horizonMinutes, stepSeconds int) (*Outcome, error) {
	key := namespace + "/" + pod
	out := &Outcome{Namespace: namespace}

	band, err := l.provider.GetForecast(ctx, types.TargetPodCPU, key, historyMinutes, horizonMinutes, stepSeconds)
	if err != nil {
		return nil, fmt.Errorf("get forecast for %s: %w", key, err)
	}
	resp, err := l.engine.Diagnose(types.TargetPodCPU, key, band)
	if err != nil {
		return nil, fmt.Errorf("diagnose %s: %w", key, err)
	}

	suggestion := pickScaleSuggestion(resp)
	if suggestion == nil {
		out.Skipped = SkipNoSuggestion
		l.skip(key, out, summarizeNoAction(resp))
		return out, nil
	}
	out.Suggestion = suggestion
	out.Deployment = suggestion.Action.Params["deployment"]
	out.Delta, _ = strconv.Atoi(suggestion.Action.Params["replica_delta"])

	if out.Deployment == "" || out.Delta <= 0 {
		out.Skipped = SkipNoDeployment
		l.skip(key, out, "diagnosis produced a scale hint without a resolvable deployment")
		return out, nil
	}

	cooldownKey := cooldownPrefix + namespace + "/" + out.Deployment
	window := l.policies.Seconds(policy.KeyAutoOpsCooldownSec)
	if last, found, err := l.store.LastCooldown(cooldownKey); err == nil && found && l.now().Sub(last) < window {
		out.Skipped = SkipCooldown
		l.skip(key, out, fmt.Sprintf("scale for %s/%s is cooling down until %s", namespace, out.Deployment, last.Add(window).Format(time.RFC3339)))
		return out, nil
	}

	l.alerts.Push(alert.Alert{
		Name:     "WardenPredictedOverload",
		Severity: string(suggestion.Severity),
		Labels:   map[string]string{"namespace": namespace, "deployment": out.Deployment},
		Annotations: map[string]string{
			"summary":   suggestion.Title,
			"rationale": suggestion.Rationale,
		},
		StartsAt: l.now(),
	})

	return out, l.applyScale(ctx, key, out)
}

// applyScale performs (or simulates) the suggested scale and emits the
// before/after alert. Only a real successful scale refreshes the cooldown.
func (l *Linker) applyScale(ctx context.Context, key string, out *Outcome) error {
	target := out.Namespace + "/" + out.Deployment

	before, err := l.gateway.GetDeploymentReplicas(ctx, out.Namespace, out.Deployment)
	if err != nil {
		metrics.AutoScaleTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("read replicas for %s: %w", target, err)
	}
	out.Before = before
	out.After = before + int32(out.Delta)
	params := map[string]string{
		"replicas_before": strconv.Itoa(int(out.Before)),
		"replicas_after":  strconv.Itoa(int(out.After)),
		"delta":           strconv.Itoa(out.Delta),
	}

	execute := l.policies.Bool(policy.KeyAutoOpsExecute)
	if !execute {
		out.DryRun = true
		l.audit(types.ActionScale, target, params, true, types.ResultDryRun, "")
		metrics.AutoScaleTotal.WithLabelValues(types.ResultDryRun).Inc()
		l.alerts.Push(alert.Alert{
			Name:     "WardenAutoScale",
			Severity: alert.SeverityInfo,
			Labels:   map[string]string{"namespace": out.Namespace, "deployment": out.Deployment},
			Annotations: map[string]string{
				"summary": fmt.Sprintf("dry-run: would scale %s from %d to %d replicas", target, out.Before, out.After),
			},
			StartsAt: l.now(),
		})
		l.publish(events.EventAutoScaleSkipped, out.Namespace, out.Deployment,
			fmt.Sprintf("dry-run: would scale from %d to %d", out.Before, out.After))
		l.logger.Info().Str("target", target).Int32("before", out.Before).Int32("after", out.After).Msg("auto-scale simulated")
		return nil
	}

	if err := l.gateway.ScaleDeployment(ctx, out.Namespace, out.Deployment, out.After); err != nil {
		l.audit(types.ActionScale, target, params, false, types.ResultFailed, err.Error())
		metrics.AutoScaleTotal.WithLabelValues(types.ResultFailed).Inc()
		return fmt.Errorf("scale %s to %d: %w", target, out.After, err)
	}

	out.Applied = true
	if err := l.store.MarkCooldown(cooldownPrefix+out.Namespace+"/"+out.Deployment, l.now()); err != nil {
		l.logger.Warn().Err(err).Str("target", target).Msg("cooldown mark failed")
	}
	l.audit(types.ActionScale, target, params, false, types.ResultDone, "")
	metrics.AutoScaleTotal.WithLabelValues(types.ResultDone).Inc()
	l.alerts.Push(alert.Alert{
		Name:     "WardenAutoScale",
		Severity: alert.SeverityWarning,
		Labels:   map[string]string{"namespace": out.Namespace, "deployment": out.Deployment},
		Annotations: map[string]string{
			"summary": fmt.Sprintf("scaled %s from %d to %d replicas", target, out.Before, out.After),
		},
		StartsAt: l.now(),
	})
	l.publish(events.EventAutoScaleApplied, out.Namespace, out.Deployment,
		fmt.Sprintf("scaled from %d to %d replicas", out.Before, out.After))
	l.logger.Info().Str("target", target).Int32("before", out.Before).Int32("after", out.After).Msg("auto-scale applied")
	return nil
}

// skip records a non-applying evaluation: informational alert, skip metric,
// event. No mutation, no cooldown refresh.
func (l *Linker) skip(key string, out *Outcome, detail string) {
	metrics.AutoScaleTotal.WithLabelValues("skipped").Inc()
	l.alerts.Push(alert.Alert{
		Name:     "WardenAutoScaleSkipped",
		Severity: alert.SeverityInfo,
		Labels:   map[string]string{"namespace": out.Namespace, "reason": out.Skipped},
		Annotations: map[string]string{
			"summary": fmt.Sprintf("no scale action for %s: %s", key, detail),
		},
		StartsAt: l.now(),
	})
	l.publish(events.EventAutoScaleSkipped, out.Namespace, out.Deployment, detail)
	l.logger.Info().Str("key", key).Str("reason", out.Skipped).Str("detail", detail).Msg("auto-scale skipped")
}

func (l *Linker) audit(action, target string, params map[string]string, dryRun bool, result, detail string) {
	a := &types.ActionAudit{
		ID:        uuid.New().String(),
		Action:    action,
		Target:    target,
		Params:    params,
		DryRun:    dryRun,
		Result:    result,
		Detail:    detail,
		Timestamp: l.now().UTC(),
	}
	if err := l.store.AppendActionAudit(a); err != nil {
		l.logger.Warn().Err(err).Str("target", target).Msg("action audit append failed")
	}
}

func (l *Linker) publish(eventType events.EventType, namespace, target, message string) {
	if l.broker == nil {
		return
	}
	l.broker.Publish(&events.Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Namespace: namespace,
		Target:    target,
		Message:   message,
	})
}

// pickScaleSuggestion returns the first scale-deployment suggestion, or nil.
func pickScaleSuggestion(resp *types.SuggestionsResp) *types.Suggestion {
	for i := range resp.Suggestions {
		if resp.Suggestions[i].Action.Kind == types.SuggestScaleDeployment {
			return &resp.Suggestions[i]
		}
	}
	return nil
}

// summarizeNoAction explains why the diagnosis yielded nothing actionable.
func summarizeNoAction(resp *types.SuggestionsResp) string {
	if len(resp.Suggestions) == 0 {
		return "no rule fired (no limit evidence or no sustained breach)"
	}
	last := resp.Suggestions[len(resp.Suggestions)-1]
	return fmt.Sprintf("top finding %q (%s) has no scale action", last.Title, last.Rule)
}
