package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/pkg/healer"
)

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run a single healer pass and print the result",
	Long: `Run one scan pass outside the daemon loop. Respects the same policy
gates as the daemon, including dry-run mode and cooldowns. Useful for
verifying policy changes before enabling the loop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		h := healer.New(a.store, a.gateway, a.policies, a.alerts, nil)
		result, err := h.ScanOnce(cmd.Context())
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}
