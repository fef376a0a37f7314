package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/devopstoday11/rpmdistro-gitoverlay/internal/history"
)

func newHistoryCmd() *cobra.Command {
	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded runs",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}
	historyCmd.Flags().IntP("limit", "n", 20, "Number of runs to show (0 for all)")

	historyCmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Remove all recorded runs",
		Args:  cobra.NoArgs,
		RunE:  runHistoryClear,
	})

	return historyCmd
}

func openHistory(cmd *cobra.Command) (*history.Store, error) {
	a, err := newApp(cmd)
	if err != nil {
		return nil, err
	}

	return history.Open(a.run.Layout.History())
}

func runHistory(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")

	records, err := store.List(limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		fmt.Fprintln(out, "No runs recorded")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tKIND\tDURATION\tCHANGED\tBUILT\tREUSED\tDIGEST")
	for _, rec := range records {
		digest := rec.TreeDigest
		if len(digest) > 12 {
			digest = digest[:12]
		}

		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%d\t%s\n",
			rec.Started.Local().Format(time.RFC3339),
			rec.Kind,
			rec.Finished.Sub(rec.Started).Round(time.Millisecond),
			rec.Changed,
			strings.Join(rec.Built, ","),
			len(rec.Reused),
			digest,
		)
	}

	return w.Flush()
}

func runHistoryClear(cmd *cobra.Command, args []string) error {
	store, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	count, _, err := store.Stats()
	if err != nil {
		return err
	}

	if err := store.Clear(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Removed %d runs\n", count)

	return nil
}
