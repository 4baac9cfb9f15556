package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Repair the calendar so every qualifying request has exactly one event",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		stats, err := a.Projector.Reconcile(ctx)
		if err != nil {
			return fmt.Errorf("reconcile: %w", err)
		}
		printResult(stats, fmt.Sprintf("created %d, deleted %d, repointed %d", stats.Created, stats.Deleted, stats.Repointed))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(reconcileCmd)
}
