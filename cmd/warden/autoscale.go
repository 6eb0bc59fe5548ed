package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/pkg/autoops"
	"github.com/wardenhq/warden/pkg/diagnose"
	"github.com/wardenhq/warden/pkg/forecast"
	"github.com/wardenhq/warden/pkg/log"
)

var autoscaleCmd = &cobra.Command{
	Use:   "autoscale NAMESPACE POD",
	Short: "Diagnose a pod's CPU forecast and apply the suggested scale",
	Long: `Run the pod-CPU diagnosis for a pod and, when it yields a
scale-deployment suggestion, apply it through the auto-ops gates: the
autoops.execute flag, and a per-deployment cooldown independent of the
healer's. Every skipped path is alerted with the reason.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		namespace, pod := args[0], args[1]
		historyMin, _ := cmd.Flags().GetInt("history-minutes")
		horizonMin, _ := cmd.Flags().GetInt("horizon-minutes")
		stepSec, _ := cmd.Flags().GetInt("step-seconds")

		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if a.cfg.Forecast.URL == "" {
			return fmt.Errorf("autoscale requires forecast.url in config")
		}

		linker := autoops.NewLinker(
			diagnose.NewEngine(a.policies),
			forecast.NewHTTPProvider(a.cfg.Forecast.URL),
			a.gateway, a.store, a.policies, a.alerts, nil,
		)
		outcome, err := linker.Evaluate(cmd.Context(), namespace, pod, historyMin, horizonMin, stepSec)
		if err != nil {
			return err
		}
		logger := log.WithPod(namespace, pod)
		logger.Info().
			Bool("applied", outcome.Applied).
			Str("skipped", outcome.Skipped).
			Msg("autoscale evaluated")

		out, err := json.MarshalIndent(outcome, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	autoscaleCmd.Flags().Int("history-minutes", 60, "History window to request from the forecast service")
	autoscaleCmd.Flags().Int("horizon-minutes", 15, "Forecast horizon to request")
	autoscaleCmd.Flags().Int("step-seconds", 60, "Forecast resolution to request")
}
