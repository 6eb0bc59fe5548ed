package main

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/pkg/policy"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect and override policy values",
	Long: `Policy values resolve in three tiers: a persisted override wins over
environment and config-file values, which win over compiled defaults.
Overrides take effect on the next scan pass without a restart.`,
}

var policyGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Print a policy value and where it came from",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if !policy.Known(key) {
			return fmt.Errorf("unknown policy key %q", key)
		}
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		value, source := a.policies.Get(key)
		fmt.Fprintf(cmd.OutOrStdout(), "%s = %s (%s)\n", key, value, source)
		return nil
	},
}

var policySetCmd = &cobra.Command{
	Use:   "set KEY VALUE",
	Short: "Persist a policy override",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if !policy.Known(key) {
			return fmt.Errorf("unknown policy key %q", key)
		}
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.SetOverride(key, value); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "override %s = %s\n", key, value)
		return nil
	},
}

var policyUnsetCmd = &cobra.Command{
	Use:   "unset KEY",
	Short: "Remove a policy override",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.store.DeleteOverride(key); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "override %s removed\n", key)
		return nil
	},
}

var policyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all policy keys with their resolved values",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		keys := policy.Keys()
		sort.Strings(keys)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "KEY\tVALUE\tSOURCE")
		for _, key := range keys {
			value, source := a.policies.Get(key)
			fmt.Fprintf(w, "%s\t%s\t%s\n", key, value, source)
		}
		return w.Flush()
	},
}

func init() {
	policyCmd.AddCommand(policyGetCmd)
	policyCmd.AddCommand(policySetCmd)
	policyCmd.AddCommand(policyUnsetCmd)
	policyCmd.AddCommand(policyListCmd)
}
