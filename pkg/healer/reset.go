package healer

import (
	"context"
	"fmt"
	"strconv"

	"github.com/wardenhq/warden/pkg/events"
	"github.com/wardenhq/warden/pkg/types"
)

// Reset is the operator acknowledgement path: it clears all durable heal
// state for the key and restores the deployment's replicas. replicas <= 0
// means restore the count captured at circuit open; if no count was
// captured either, the state is cleared without any scale mutation.
//
// State is cleared before the scale so a scale failure cannot leave a
// deployment both at zero and still marked failing. Scale failures are
// returned to the caller; the operator must see them.
func (h *Healer) Reset(ctx context.Context, key types.HealKey, replicas int32) error {
	health := h.healthOrNew(key)

	if replicas <= 0 {
		replicas = health.LastReplicas
	}

	if err := h.store.DeleteHealth(key); err != nil {
		h.logger.Warn().Err(err).Str("key", key.String()).Msg("health delete failed")
	}
	if err := h.store.DeletePending(key); err != nil {
		h.logger.Warn().Err(err).Str("key", key.String()).Msg("pending delete failed")
	}

	target := key.Namespace + "/" + key.Name
	h.recordEvent(key, health.Reason, types.ActionReset, types.ResultDone, 0)
	h.publish(&events.Event{
		Type: events.EventCircuitReset, Namespace: key.Namespace, Target: key.Name,
		Message: "heal state reset by operator",
	})

	if replicas <= 0 {
		h.recordAudit(types.ActionReset, target, nil, false, types.ResultDone, "")
		h.logger.Info().Str("key", key.String()).Msg("heal state reset, no replica count to restore")
		return nil
	}

	params := map[string]string{"replicas": strconv.Itoa(int(replicas))}
	if err := h.gateway.ScaleDeployment(ctx, key.Namespace, key.Name, replicas); err != nil {
		h.recordAudit(types.ActionScale, target, params, false, types.ResultFailed, err.Error())
		return fmt.Errorf("state cleared but scale to %d failed: %w", replicas, err)
	}
	h.recordAudit(types.ActionScale, target, params, false, types.ResultDone, "")
	h.logger.Info().
		Str("key", key.String()).
		Int32("replicas", replicas).
		Msg("circuit reset, deployment restored")
	return nil
}
