package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var outboxCmd = &cobra.Command{
	Use:   "outbox",
	Short: "Inspect and replay post-commit side effects",
}

var outboxSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Replay notifications and calendar updates of every pending event",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close(ctx)

		n, err := a.Processor.Sweep(ctx)
		if err != nil {
			return fmt.Errorf("sweep: %w", err)
		}
		printResult(map[string]int{"completed": n}, fmt.Sprintf("completed %d pending events", n))
		return nil
	},
}

func init() {
	outboxCmd.AddCommand(outboxSweepCmd)
	rootCmd.AddCommand(outboxCmd)
}
