package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hr-workflow/internal/config"
	"hr-workflow/internal/directory"
)

var directoryCmd = &cobra.Command{
	Use:   "directory",
	Short: "Manage the employee directory",
}

var directorySeedCmd = &cobra.Command{
	Use:   "seed <id:role[:chef]>...",
	Short: "Insert or update employees in the Postgres directory",
	Long: `Insert or update employees in the Postgres directory named by
DIRECTORY_DATABASE_URL. Each argument is "id:role[:chef]"; with no
arguments DIRECTORY_SEED is used.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg := config.Load()
		if cfg.DirectoryDB == "" {
			return errors.New("DIRECTORY_DATABASE_URL is not set")
		}

		seed := cfg.DirectorySeed
		if len(args) > 0 {
			seed = strings.Join(args, ",")
		}
		employees, err := directory.ParseSeed(seed)
		if err != nil {
			return err
		}

		pg, err := directory.NewPostgres(ctx, cfg.DirectoryDB)
		if err != nil {
			return err
		}
		defer pg.Close()
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}

		// chefs referenced by chef_id must exist first
		for _, e := range employees {
			if err := pg.Upsert(ctx, directory.Employee{ID: e.ID, Role: e.Role}); err != nil {
				return err
			}
		}
		for _, e := range employees {
			if e.ChefID == "" {
				continue
			}
			if err := pg.Upsert(ctx, e); err != nil {
				return err
			}
		}
		printResult(map[string]int{"upserted": len(employees)}, fmt.Sprintf("upserted %d employees", len(employees)))
		return nil
	},
}

func init() {
	directoryCmd.AddCommand(directorySeedCmd)
	rootCmd.AddCommand(directoryCmd)
}
