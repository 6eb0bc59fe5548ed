package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/pkg/healer"
	"github.com/wardenhq/warden/pkg/log"
	"github.com/wardenhq/warden/pkg/types"
)

var resetCmd = &cobra.Command{
	Use:   "reset NAMESPACE NAME",
	Short: "Clear heal state for a deployment and restore its replicas",
	Long: `Acknowledge an open circuit: clear the fail count and failing flag
for the deployment and scale it back up. Without --replicas the replica
count captured when the circuit opened is restored.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		namespace, name := args[0], args[1]
		uid, _ := cmd.Flags().GetString("uid")
		replicas, _ := cmd.Flags().GetInt32("replicas")

		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		key := types.HealKey{Namespace: namespace, Name: name, UID: uid}
		if uid == "" {
			key, err = findKey(a, namespace, name)
			if err != nil {
				return err
			}
		}

		h := healer.New(a.store, a.gateway, a.policies, a.alerts, nil)
		if err := h.Reset(cmd.Context(), key, replicas); err != nil {
			return err
		}
		logger := log.WithDeployment(namespace, name)
		logger.Info().Str("uid", key.UID).Msg("circuit reset")
		fmt.Fprintf(cmd.OutOrStdout(), "reset %s\n", key.String())
		return nil
	},
}

func init() {
	resetCmd.Flags().String("uid", "", "Deployment UID (resolved from stored state when omitted)")
	resetCmd.Flags().Int32("replicas", 0, "Replica count to restore (default: count captured at circuit open)")
}

// findKey resolves the stored heal key for namespace/name. Errors when no
// state exists or the name is ambiguous across identities.
func findKey(a *app, namespace, name string) (types.HealKey, error) {
	healths, err := a.store.ListHealth()
	if err != nil {
		return types.HealKey{}, err
	}
	var matches []types.HealKey
	for _, h := range healths {
		if h.Key.Namespace == namespace && h.Key.Name == name {
			matches = append(matches, h.Key)
		}
	}
	switch len(matches) {
	case 0:
		return types.HealKey{}, fmt.Errorf("no heal state for %s/%s", namespace, name)
	case 1:
		return matches[0], nil
	default:
		return types.HealKey{}, fmt.Errorf("multiple identities stored for %s/%s, pass --uid", namespace, name)
	}
}
