package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wardenhq/warden/pkg/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show healer lease and per-deployment heal state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()

		lease, err := a.store.GetLease()
		switch {
		case errors.Is(err, storage.ErrNotFound):
			fmt.Fprintln(out, "Healer: no active lease")
		case err != nil:
			return err
		case lease.Expired(time.Now()):
			fmt.Fprintf(out, "Healer: lease by %s expired %s\n", lease.Owner, lease.ExpiresAt.Format(time.RFC3339))
		default:
			fmt.Fprintf(out, "Healer: active, owner %s, lease until %s\n", lease.Owner, lease.ExpiresAt.Format(time.RFC3339))
		}

		healths, err := a.store.ListHealth()
		if err != nil {
			return err
		}
		pendings, err := a.store.ListPending()
		if err != nil {
			return err
		}
		pendingByKey := make(map[string]time.Time, len(pendings))
		for _, p := range pendings {
			pendingByKey[p.Key.String()] = p.PendingUntil
		}

		if len(healths) == 0 && len(pendings) == 0 {
			fmt.Fprintln(out, "No tracked deployments.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAMESPACE\tNAME\tFAILS\tSTATE\tREASON\tPENDING UNTIL")
		for _, h := range healths {
			state := "normal"
			if h.IsFailing {
				state = "circuit-open"
			}
			pendingUntil := ""
			if until, ok := pendingByKey[h.Key.String()]; ok {
				state = "pending-verification"
				pendingUntil = until.Format(time.RFC3339)
				delete(pendingByKey, h.Key.String())
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\n", h.Key.Namespace, h.Key.Name, h.FailCount, state, h.Reason, pendingUntil)
		}
		for _, p := range pendings {
			if _, ok := pendingByKey[p.Key.String()]; !ok {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t0\tpending-verification\t%s\t%s\n", p.Key.Namespace, p.Key.Name, p.LastReason, p.PendingUntil.Format(time.RFC3339))
		}
		return w.Flush()
	},
}
