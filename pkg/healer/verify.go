package healer

import (
	"context"

	"github.com/wardenhq/warden/pkg/events"
	"github.com/wardenhq/warden/pkg/types"
)

// processPending walks open verification windows and closes the ones that
// are due. Windows are independent; one failed check does not block the rest.
func (h *Healer) processPending(ctx context.Context, pol scanPolicy, result *types.ScanResult) {
	pendings, err := h.store.ListPending()
	if err != nil {
		h.logger.Error().Err(err).Msg("pending list failed")
		return
	}

	for _, pending := range pendings {
		if h.now().Before(pending.PendingUntil) {
			continue
		}
		h.verifyOne(ctx, pol, pending, result)
	}
}

// verifyOne closes a single due verification window. The outcome is one of:
// state purged (target gone or replaced), recovered (fail count decays),
// or verify failed (fail count grows, possibly opening the circuit).
func (h *Healer) verifyOne(ctx context.Context, pol scanPolicy, pending *types.PendingVerification, result *types.ScanResult) {
	key := pending.Key
	result.Verified++

	if deploymentKeyed(pending) {
		exists, err := h.gateway.DeploymentExists(ctx, key.Namespace, key.Name, key.UID)
		if err != nil {
			// Transient API failure: leave the window open, the next pass retries.
			h.logger.Warn().Err(err).Str("key", key.String()).Msg("deployment existence check failed")
			return
		}
		if !exists {
			h.purgeState(key, "deployment deleted or replaced")
			result.Details = append(result.Details, types.ScanDetail{
				Key: key, Action: types.ActionNone, Result: types.ResultPurged,
				Detail: "deployment deleted or replaced",
			})
			return
		}
	}

	recovered, reason, badPod, err := h.checkRecovered(ctx, pending)
	if err != nil {
		h.logger.Warn().Err(err).Str("key", key.String()).Msg("recovery check failed")
		return
	}

	if recovered {
		h.onRecovered(pol, pending)
		result.Healed++
		result.Details = append(result.Details, types.ScanDetail{
			Key: key, Reason: pending.LastReason,
			Action: pending.LastAction, Result: types.ResultRecovered,
		})
		return
	}

	h.onVerifyFailed(ctx, pol, pending, reason, badPod, result)
}

// deploymentKeyed reports whether the pending window tracks a Deployment
// identity. Pod-keyed windows carry the acted-on pod's own UID as the key.
func deploymentKeyed(pending *types.PendingVerification) bool {
	return pending.Key.UID != pending.LastPodUID
}

// checkRecovered reclassifies the key's current pods. Recovered means no
// pod for the key still exhibits a recognized failure reason; zero matching
// pods counts as recovered. On still-bad it returns the failing pod so the
// circuit breaker can target it.
func (h *Healer) checkRecovered(ctx context.Context, pending *types.PendingVerification) (bool, string, *types.Pod, error) {
	pods, err := h.gateway.ListPods(ctx, pending.Key.Namespace)
	if err != nil {
		return false, "", nil, err
	}

	for i := range pods {
		pod := &pods[i]
		if pod.HealKey() != pending.Key {
			continue
		}
		if reason := Classify(pod); reason != "" {
			return false, reason, pod, nil
		}
	}
	return true, "", nil, nil
}

// onRecovered closes the window on the happy path. The fail count decays
// rather than resetting so a flapping deployment still converges on the
// circuit threshold.
func (h *Healer) onRecovered(pol scanPolicy, pending *types.PendingVerification) {
	key := pending.Key
	health := h.healthOrNew(key)

	if pol.decayOnRecover {
		health.FailCount -= pol.decayStep
		if health.FailCount < 0 {
			health.FailCount = 0
		}
	} else {
		health.FailCount = 0
	}
	health.Reason = ""
	health.UpdatedAt = h.now().UTC()
	if err := h.store.PutHealth(health); err != nil {
		h.logger.Error().Err(err).Str("key", key.String()).Msg("health write failed")
	}
	if err := h.store.DeletePending(key); err != nil {
		h.logger.Warn().Err(err).Str("key", key.String()).Msg("pending delete failed")
	}

	h.recordEvent(key, pending.LastReason, pending.LastAction, types.ResultRecovered, health.FailCount)
	h.publish(&events.Event{
		Type: events.EventVerifyRecovered, Namespace: key.Namespace, Target: key.Name,
		Message: "replacement pod is healthy",
	})
	h.logger.Info().
		Str("key", key.String()).
		Int("fail_count", health.FailCount).
		Msg("remediation verified")
}

// onVerifyFailed is the only place the fail count grows. Crossing the
// circuit threshold under execute mode invokes the circuit breaker.
func (h *Healer) onVerifyFailed(ctx context.Context, pol scanPolicy, pending *types.PendingVerification, reason string, badPod *types.Pod, result *types.ScanResult) {
	key := pending.Key
	health := h.healthOrNew(key)

	health.FailCount++
	health.Reason = reason
	health.UpdatedAt = h.now().UTC()
	if err := h.store.PutHealth(health); err != nil {
		h.logger.Error().Err(err).Str("key", key.String()).Msg("health write failed")
	}
	if err := h.store.DeletePending(key); err != nil {
		h.logger.Warn().Err(err).Str("key", key.String()).Msg("pending delete failed")
	}

	h.recordEvent(key, reason, pending.LastAction, types.ResultVerifyFailed, health.FailCount)
	h.publish(&events.Event{
		Type: events.EventVerifyFailed, Namespace: key.Namespace, Target: key.Name,
		Message: "deployment still unhealthy after remediation: " + reason,
	})
	h.logger.Warn().
		Str("key", key.String()).
		Str("reason", reason).
		Int("fail_count", health.FailCount).
		Msg("remediation verification failed")

	if health.FailCount >= pol.circuitThreshold && pol.execute {
		h.breakCircuit(ctx, pol, health, pending, reason, badPod, result)
	}
}

// purgeState hard-deletes all durable state for a key. Used when the
// underlying deployment no longer exists or has a new identity.
func (h *Healer) purgeState(key types.HealKey, detail string) {
	if err := h.store.DeleteHealth(key); err != nil {
		h.logger.Warn().Err(err).Str("key", key.String()).Msg("health delete failed")
	}
	if err := h.store.DeletePending(key); err != nil {
		h.logger.Warn().Err(err).Str("key", key.String()).Msg("pending delete failed")
	}
	h.recordEvent(key, "", types.ActionNone, types.ResultPurged, 0)
	h.publish(&events.Event{
		Type: events.EventStatePurged, Namespace: key.Namespace, Target: key.Name,
		Message: detail,
	})
	h.logger.Info().Str("key", key.String()).Str("detail", detail).Msg("state purged")
}
