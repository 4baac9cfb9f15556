// Command hrctl runs operator tasks against the HR workflow stores: calendar
// reconciliation, outbox sweeps and directory seeding.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"hr-workflow/internal/app"
	"hr-workflow/internal/config"
	"hr-workflow/internal/i18n"
)

var jsonOutput bool

var rootCmd = &cobra.Command{
	Use:          "hrctl",
	Short:        "hrctl - operator tool for the HR workflow service",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
}

// openApp loads configuration from the environment and connects the stores.
func openApp(ctx context.Context) (*app.App, error) {
	cfg := config.Load()
	if err := i18n.Init(cfg.DefaultLocale); err != nil {
		return nil, err
	}
	return app.New(ctx, cfg)
}

func printResult(v any, text string) {
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(v)
		return
	}
	fmt.Println(text)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
