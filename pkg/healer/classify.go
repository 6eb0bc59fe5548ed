package healer

import (
	"github.com/wardenhq/warden/pkg/types"
)

// Classify returns the failure reason for a pod, or "" when the pod looks
// healthy. Container waiting reasons win; a Running pod whose Ready
// condition is not true classifies as NotReady.
func Classify(pod *types.Pod) string {
	for _, reason := range pod.WaitingReasons {
		if reason != "" {
			return reason
		}
	}
	if pod.Phase == "Running" && !pod.Ready {
		return types.ReasonNotReady
	}
	return ""
}
