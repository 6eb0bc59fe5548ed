package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/pkg/diagnose"
	"github.com/wardenhq/warden/pkg/forecast"
)

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose TARGET KEY",
	Short: "Run the diagnosis rules for a target and print suggestions",
	Long: `Evaluate the rule engine against a forecast. TARGET is one of
node_cpu, node_memory, pod_cpu; KEY identifies the node or namespace/pod.
The forecast is fetched from the configured forecast service, or read from
a JSON file with --band.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, key := args[0], args[1]
		bandPath, _ := cmd.Flags().GetString("band")
		historyMin, _ := cmd.Flags().GetInt("history-minutes")
		horizonMin, _ := cmd.Flags().GetInt("horizon-minutes")
		stepSec, _ := cmd.Flags().GetInt("step-seconds")

		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		var band *forecast.Band
		switch {
		case bandPath != "":
			data, err := os.ReadFile(bandPath)
			if err != nil {
				return fmt.Errorf("read band file: %w", err)
			}
			band = &forecast.Band{}
			if err := json.Unmarshal(data, band); err != nil {
				return fmt.Errorf("parse band file: %w", err)
			}
		case a.cfg.Forecast.URL != "":
			provider := forecast.NewHTTPProvider(a.cfg.Forecast.URL)
			band, err = provider.GetForecast(cmd.Context(), target, key, historyMin, horizonMin, stepSec)
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("no forecast source: set forecast.url in config or pass --band")
		}

		engine := diagnose.NewEngine(a.policies)
		resp, err := engine.Diagnose(target, key, band)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(resp, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	diagnoseCmd.Flags().String("band", "", "Read the forecast band from a JSON file instead of the forecast service")
	diagnoseCmd.Flags().Int("history-minutes", 60, "History window to request from the forecast service")
	diagnoseCmd.Flags().Int("horizon-minutes", 15, "Forecast horizon to request")
	diagnoseCmd.Flags().Int("step-seconds", 60, "Forecast resolution to request")
}
