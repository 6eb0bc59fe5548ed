package healer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/wardenhq/warden/pkg/alert"
	"github.com/wardenhq/warden/pkg/cluster"
	"github.com/wardenhq/warden/pkg/events"
	"github.com/wardenhq/warden/pkg/log"
	"github.com/wardenhq/warden/pkg/metrics"
	"github.com/wardenhq/warden/pkg/policy"
	"github.com/wardenhq/warden/pkg/storage"
	"github.com/wardenhq/warden/pkg/types"
)

// Cooldown key namespaces. The three domains are independent: remediation,
// circuit-open alert repeats, and auto-ops scaling never share keys.
const (
	cooldownPrefix      = "heal:cooldown:"
	alertCooldownPrefix = "alert:circuit:"
)

// Healer runs scan passes over observed pods: classifying failures,
// applying remediation under policy gates, and driving the per-deployment
// verification state machine.
type Healer struct {
	store    storage.Store
	gateway  cluster.Gateway
	policies *policy.Store
	alerts   alert.Sink
	broker   *events.Broker
	logger   zerolog.Logger
	now      func() time.Time
}

// New creates a healer. broker may be nil when no event stream is wanted.
func New(store storage.Store, gateway cluster.Gateway, policies *policy.Store, alerts alert.Sink, broker *events.Broker) *Healer {
	if alerts == nil {
		alerts = alert.Noop{}
	}
	return &Healer{
		store:    store,
		gateway:  gateway,
		policies: policies,
		alerts:   alerts,
		broker:   broker,
		logger:   log.WithComponent("healer"),
		now:      time.Now,
	}
}

// scanPolicy is the policy snapshot one pass runs under. Resolved once at
// the start of a pass so mid-pass override changes cannot split behavior.
type scanPolicy struct {
	enabled          bool
	execute          bool
	maxActions       int
	cooldown         time.Duration
	verifyWindow     time.Duration
	alertCooldown    time.Duration
	denyNamespaces   map[string]bool
	allowedReasons   map[string]bool // nil means all reasons allowed
	circuitThreshold int
	decayOnRecover   bool
	decayStep        int
	eventTTL         time.Duration
}

func (h *Healer) resolvePolicy() scanPolicy {
	return scanPolicy{
		enabled:          h.policies.Bool(policy.KeyHealerEnabled),
		execute:          h.policies.Bool(policy.KeyHealerExecute),
		maxActions:       h.policies.Int(policy.KeyHealerMaxActions),
		cooldown:         h.policies.Seconds(policy.KeyHealerCooldownSec),
		verifyWindow:     h.policies.Seconds(policy.KeyHealerVerifySec),
		alertCooldown:    h.policies.Seconds(policy.KeyHealerAlertCooldown),
		denyNamespaces:   h.policies.StringSet(policy.KeyHealerDenyNamespaces),
		allowedReasons:   h.policies.StringSet(policy.KeyHealerAllowedReasons),
		circuitThreshold: h.policies.Int(policy.KeyHealerCircuitFails),
		decayOnRecover:   h.policies.Bool(policy.KeyHealerDecayOnRecover),
		decayStep:        h.policies.Int(policy.KeyHealerDecayStep),
		eventTTL:         time.Duration(h.policies.Int(policy.KeyHealerEventTTLHours)) * time.Hour,
	}
}

// ScanOnce performs one full pass: pending verifications first, then new
// detections bounded by maxActionsPerCycle, then housekeeping. A single
// pod's failure never aborts the pass.
func (h *Healer) ScanOnce(ctx context.Context) (*types.ScanResult, error) {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.ScanDuration)
		metrics.ScanCyclesTotal.Inc()
	}()

	pol := h.resolvePolicy()
	result := &types.ScanResult{StartedAt: h.now().UTC(), DryRun: !pol.execute}

	if !pol.enabled {
		result.FinishedAt = h.now().UTC()
		return result, nil
	}

	// Close the loop from the previous pass before opening new windows.
	h.processPending(ctx, pol, result)

	if err := h.scanPods(ctx, pol, result); err != nil {
		result.FinishedAt = h.now().UTC()
		return result, err
	}

	h.housekeep(pol)
	h.updateGauges()

	result.FinishedAt = h.now().UTC()
	h.publish(&events.Event{
		Type:    events.EventScanCompleted,
		Message: fmt.Sprintf("checked=%d attempted=%d healed=%d skipped=%d", result.Checked, result.Attempted, result.Healed, result.Skipped),
	})
	return result, nil
}

// scanPods detects fresh failures and applies remediation under the policy
// gates. Pending-window processing never counts against the action budget.
func (h *Healer) scanPods(ctx context.Context, pol scanPolicy, result *types.ScanResult) error {
	pods, err := h.gateway.ListPods(ctx, "")
	if err != nil {
		return fmt.Errorf("list pods: %w", err)
	}

	for i := range pods {
		pod := &pods[i]
		result.Checked++
		metrics.PodsChecked.Inc()

		if pol.denyNamespaces[pod.Namespace] {
			continue
		}
		reason := Classify(pod)
		if reason == "" {
			continue
		}
		if pol.allowedReasons != nil && !pol.allowedReasons[reason] {
			result.Skipped++
			result.Details = append(result.Details, types.ScanDetail{
				Key: pod.HealKey(), Pod: pod.Name, Reason: reason,
				Action: types.ActionNone, Result: "reason_not_allowed",
			})
			continue
		}

		key := pod.HealKey()

		if h.inCooldown(cooldownPrefix+key.String(), pol.cooldown) {
			result.Skipped++
			result.Details = append(result.Details, types.ScanDetail{
				Key: key, Pod: pod.Name, Reason: reason,
				Action: types.ActionNone, Result: types.ResultSkipCooldown,
			})
			continue
		}

		if health, err := h.store.GetHealth(key); err == nil && health.IsFailing {
			h.alertCircuitStillOpen(pol, key, reason)
			result.Skipped++
			result.Details = append(result.Details, types.ScanDetail{
				Key: key, Pod: pod.Name, Reason: reason,
				Action: types.ActionNone, Result: types.ResultSkipCircuit,
			})
			continue
		}

		if _, err := h.store.GetPending(key); err == nil {
			// One outstanding remediation per key at a time.
			result.Skipped++
			result.Details = append(result.Details, types.ScanDetail{
				Key: key, Pod: pod.Name, Reason: reason,
				Action: types.ActionNone, Result: types.ResultSkipPending,
			})
			continue
		}

		if !pod.HasController() {
			// Deleting an unmanaged pod destroys data with no self-healing
			// benefit: record and move on.
			h.recordEvent(key, reason, types.ActionNone, types.ResultSkipBarePod, 0)
			result.Skipped++
			result.Details = append(result.Details, types.ScanDetail{
				Key: key, Pod: pod.Name, Reason: reason,
				Action: types.ActionNone, Result: types.ResultSkipBarePod, Detail: "bare pod",
			})
			continue
		}

		if result.Attempted >= pol.maxActions {
			h.logger.Info().Int("max_actions", pol.maxActions).Msg("action budget exhausted for this pass")
			break
		}

		h.remediate(ctx, pol, pod, key, reason, result)
	}
	return nil
}

// remediate deletes one failing pod (or simulates it) and opens the
// verification window on real execution.
func (h *Healer) remediate(ctx context.Context, pol scanPolicy, pod *types.Pod, key types.HealKey, reason string, result *types.ScanResult) {
	result.Attempted++
	target := pod.Namespace + "/" + pod.Name

	h.publish(&events.Event{
		Type: events.EventPodFailureDetected, Namespace: pod.Namespace, Target: pod.Name,
		Message: fmt.Sprintf("pod failing with %s", reason),
	})

	if !pol.execute {
		h.recordAudit(types.ActionDeletePod, target, map[string]string{"reason": reason}, true, types.ResultDryRun, "")
		h.recordEvent(key, reason, types.ActionDeletePod, types.ResultDryRun, 0)
		h.publish(&events.Event{
			Type: events.EventRemediationDryRun, Namespace: pod.Namespace, Target: pod.Name,
			Message: fmt.Sprintf("would delete pod for %s", reason),
		})
		h.markCooldown(cooldownPrefix + key.String())
		result.Details = append(result.Details, types.ScanDetail{
			Key: key, Pod: pod.Name, Reason: reason,
			Action: types.ActionDeletePod, Result: types.ResultDryRun,
		})
		return
	}

	err := h.gateway.DeletePod(ctx, pod.Namespace, pod.Name)
	if err != nil {
		h.logger.Error().Err(err).Str("pod", target).Msg("pod delete failed")
		h.recordAudit(types.ActionDeletePod, target, map[string]string{"reason": reason}, false, types.ResultFailed, err.Error())
		h.recordEvent(key, reason, types.ActionDeletePod, types.ResultFailed, 0)
		h.markCooldown(cooldownPrefix + key.String())
		result.Details = append(result.Details, types.ScanDetail{
			Key: key, Pod: pod.Name, Reason: reason,
			Action: types.ActionDeletePod, Result: types.ResultFailed, Detail: err.Error(),
		})
		return
	}

	pending := &types.PendingVerification{
		Key:          key,
		PendingUntil: h.now().Add(pol.verifyWindow),
		LastAction:   types.ActionDeletePod,
		LastPod:      pod.Name,
		LastPodUID:   pod.UID,
		LastReason:   reason,
		CreatedAt:    h.now().UTC(),
	}
	if err := h.store.PutPending(pending); err != nil {
		h.logger.Error().Err(err).Str("key", key.String()).Msg("failed to open pending window")
	}
	h.recordAudit(types.ActionDeletePod, target, map[string]string{"reason": reason}, false, types.ResultDone, "")
	h.recordEvent(key, reason, types.ActionDeletePod, types.ResultPending, 0)
	h.markCooldown(cooldownPrefix + key.String())
	h.publish(&events.Event{
		Type: events.EventRemediationPending, Namespace: pod.Namespace, Target: pod.Name,
		Message: fmt.Sprintf("deleted pod for %s, verifying in %s", reason, pol.verifyWindow),
	})
	result.Details = append(result.Details, types.ScanDetail{
		Key: key, Pod: pod.Name, Reason: reason,
		Action: types.ActionDeletePod, Result: types.ResultPending,
	})
}

// alertCircuitStillOpen emits the periodic circuit-open reminder, rate
// limited on its own cooldown domain.
func (h *Healer) alertCircuitStillOpen(pol scanPolicy, key types.HealKey, reason string) {
	alertKey := alertCooldownPrefix + key.String()
	if h.inCooldown(alertKey, pol.alertCooldown) {
		return
	}
	h.markCooldown(alertKey)
	h.alerts.Push(alert.Alert{
		Name:     "WardenCircuitOpen",
		Severity: alert.SeverityWarning,
		Labels:   map[string]string{"namespace": key.Namespace, "deployment": key.Name},
		Annotations: map[string]string{
			"summary": fmt.Sprintf("remediation for %s/%s is paused (circuit open), latest reason %s", key.Namespace, key.Name, reason),
		},
		StartsAt: h.now(),
	})
}

// housekeep applies the event TTL to both log buckets.
func (h *Healer) housekeep(pol scanPolicy) {
	if pol.eventTTL <= 0 {
		return
	}
	cutoff := h.now().Add(-pol.eventTTL)
	if _, err := h.store.PurgeHealEventsBefore(cutoff); err != nil {
		h.logger.Warn().Err(err).Msg("heal event purge failed")
	}
	if _, err := h.store.PurgeActionAuditsBefore(cutoff); err != nil {
		h.logger.Warn().Err(err).Msg("action audit purge failed")
	}
}

func (h *Healer) updateGauges() {
	if pending, err := h.store.ListPending(); err == nil {
		metrics.PendingWindows.Set(float64(len(pending)))
	}
	if healths, err := h.store.ListHealth(); err == nil {
		failing := 0
		for _, health := range healths {
			if health.IsFailing {
				failing++
			}
		}
		metrics.FailingDeployments.Set(float64(failing))
	}
}

// inCooldown reports whether the mark for storageKey is younger than window.
func (h *Healer) inCooldown(storageKey string, window time.Duration) bool {
	last, found, err := h.store.LastCooldown(storageKey)
	if err != nil {
		h.logger.Warn().Err(err).Str("key", storageKey).Msg("cooldown read failed")
		return false
	}
	return found && h.now().Sub(last) < window
}

func (h *Healer) markCooldown(storageKey string) {
	if err := h.store.MarkCooldown(storageKey, h.now()); err != nil {
		h.logger.Warn().Err(err).Str("key", storageKey).Msg("cooldown mark failed")
	}
}

func (h *Healer) recordEvent(key types.HealKey, reason, action, result string, failCount int) {
	event := &types.HealEvent{
		ID:        uuid.New().String(),
		Key:       key,
		Reason:    reason,
		Action:    action,
		Result:    result,
		FailCount: failCount,
		Timestamp: h.now().UTC(),
	}
	if err := h.store.AppendHealEvent(event); err != nil {
		h.logger.Warn().Err(err).Str("key", key.String()).Msg("heal event append failed")
	}
	metrics.ActionsTotal.WithLabelValues(action, result).Inc()
}

func (h *Healer) recordAudit(action, target string, params map[string]string, dryRun bool, result, detail string) {
	audit := &types.ActionAudit{
		ID:        uuid.New().String(),
		Action:    action,
		Target:    target,
		Params:    params,
		DryRun:    dryRun,
		Result:    result,
		Detail:    detail,
		Timestamp: h.now().UTC(),
	}
	if err := h.store.AppendActionAudit(audit); err != nil {
		h.logger.Warn().Err(err).Str("target", target).Msg("action audit append failed")
	}
}

func (h *Healer) publish(event *events.Event) {
	if h.broker == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	h.broker.Publish(event)
}

// healthOrNew loads the health row for key, or returns a fresh zero record.
func (h *Healer) healthOrNew(key types.HealKey) *types.DeploymentHealth {
	health, err := h.store.GetHealth(key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			h.logger.Warn().Err(err).Str("key", key.String()).Msg("health read failed")
		}
		return &types.DeploymentHealth{Key: key}
	}
	return health
}
