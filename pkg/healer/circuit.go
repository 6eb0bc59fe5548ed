package healer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/wardenhq/warden/pkg/alert"
	"github.com/wardenhq/warden/pkg/events"
	"github.com/wardenhq/warden/pkg/metrics"
	"github.com/wardenhq/warden/pkg/types"
)

// breakCircuit is invoked from the still-bad verification branch once the
// fail count crosses the threshold, in execute mode only. What it does
// depends on the key kind:
//
//   - Deployment-keyed: capture replicas, scale to zero, delete the
//     offending pod. IsFailing flips to true only after the scale call
//     succeeded; a failed scale leaves the record retryable.
//   - Pod-keyed under any other controller: no mutation. Scaling a
//     StatefulSet or DaemonSet to zero is not a safe default.
func (h *Healer) breakCircuit(ctx context.Context, pol scanPolicy, health *types.DeploymentHealth, pending *types.PendingVerification, reason string, badPod *types.Pod, result *types.ScanResult) {
	key := health.Key
	target := key.Namespace + "/" + key.Name

	if !deploymentKeyed(pending) {
		h.recordAudit(types.ActionScaleZero, target, map[string]string{"reason": reason}, false, types.ResultSkipController, "not a Deployment-managed workload")
		h.recordEvent(key, reason, types.ActionNone, types.ResultSkipController, health.FailCount)
		h.logger.Warn().
			Str("key", key.String()).
			Int("fail_count", health.FailCount).
			Msg("circuit threshold reached but workload is not Deployment-managed, leaving it alone")
		result.Details = append(result.Details, types.ScanDetail{
			Key: key, Reason: reason,
			Action: types.ActionNone, Result: types.ResultSkipController,
		})
		return
	}

	replicas, err := h.gateway.GetDeploymentReplicas(ctx, key.Namespace, key.Name)
	if err != nil {
		h.logger.Error().Err(err).Str("key", key.String()).Msg("replica read failed, circuit stays closed")
		h.recordAudit(types.ActionScaleZero, target, map[string]string{"reason": reason}, false, types.ResultFailed, err.Error())
		return
	}

	if err := h.gateway.ScaleDeployment(ctx, key.Namespace, key.Name, 0); err != nil {
		h.logger.Error().Err(err).Str("key", key.String()).Msg("scale to zero failed, circuit stays closed")
		h.recordAudit(types.ActionScaleZero, target, map[string]string{"reason": reason}, false, types.ResultFailed, err.Error())
		result.Details = append(result.Details, types.ScanDetail{
			Key: key, Reason: reason,
			Action: types.ActionScaleZero, Result: types.ResultFailed, Detail: err.Error(),
		})
		return
	}

	health.IsFailing = true
	health.FailCount = pol.circuitThreshold
	health.Reason = reason
	health.LastReplicas = replicas
	health.UpdatedAt = h.now().UTC()
	if err := h.store.PutHealth(health); err != nil {
		h.logger.Error().Err(err).Str("key", key.String()).Msg("health write failed after circuit open")
	}

	if badPod != nil {
		if err := h.gateway.DeletePod(ctx, badPod.Namespace, badPod.Name); err != nil {
			h.logger.Warn().Err(err).Str("pod", badPod.Namespace+"/"+badPod.Name).Msg("offending pod delete failed after scale to zero")
		}
	}

	metrics.CircuitOpens.Inc()
	h.recordAudit(types.ActionScaleZero, target, map[string]string{
		"reason":        reason,
		"last_replicas": strconv.Itoa(int(replicas)),
	}, false, types.ResultDone, "")
	h.recordEvent(key, reason, types.ActionScaleZero, types.ResultCircuitOpened, health.FailCount)

	h.markCooldown(alertCooldownPrefix + key.String())
	h.alerts.Push(alert.Alert{
		Name:     "WardenCircuitOpened",
		Severity: alert.SeverityCritical,
		Labels:   map[string]string{"namespace": key.Namespace, "deployment": key.Name},
		Annotations: map[string]string{
			"summary":     fmt.Sprintf("%s scaled to zero after %d failed remediations", target, health.FailCount),
			"reason":      reason,
			"replicas":    strconv.Itoa(int(replicas)),
			"remediation": fmt.Sprintf("inspect logs, then run: warden reset %s %s", key.Namespace, key.Name),
		},
		StartsAt: h.now(),
	})
	h.publish(&events.Event{
		Type: events.EventCircuitOpened, Namespace: key.Namespace, Target: key.Name,
		Message: fmt.Sprintf("scaled to zero after %d failed remediations (%s)", health.FailCount, reason),
		Metadata: map[string]string{
			"last_replicas": strconv.Itoa(int(replicas)),
		},
	})
	h.logger.Error().
		Str("key", key.String()).
		Int("fail_count", health.FailCount).
		Int32("last_replicas", replicas).
		Msg("circuit opened, deployment scaled to zero")

	result.Details = append(result.Details, types.ScanDetail{
		Key: key, Reason: reason,
		Action: types.ActionScaleZero, Result: types.ResultCircuitOpened,
		Detail: "last_replicas=" + strconv.Itoa(int(replicas)),
	})
}
