package main

import (
	"database/sql"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/matiasleandrokruk/toolscope/internal/infra/sqlite"
)

func migrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the catalog database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := sqlite.NewDB(a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := sqlite.MigrateUp(db); err != nil {
				return err
			}
			return printVersion(cmd, db)
		},
	}

	down := &cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back the newest migrations (default 1, 0 rolls back everything)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n < 0 {
					return fmt.Errorf("steps must be a non-negative integer, got %q", args[0])
				}
				steps = n
			}
			db, err := sqlite.NewDB(a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := sqlite.MigrateDown(db, steps); err != nil {
				return err
			}
			return printVersion(cmd, db)
		},
	}

	status := &cobra.Command{
		Use:   "status",
		Short: "Show the schema version and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			db, err := sqlite.NewDB(a.cfg.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := printVersion(cmd, db); err != nil {
				return err
			}
			pending, err := sqlite.PendingMigrations(db)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "pending: %d\n", len(pending)) //nolint:errcheck
			for _, name := range pending {
				fmt.Fprintf(out, "  %s\n", name) //nolint:errcheck
			}
			return nil
		},
	}

	cmd.AddCommand(up, down, status)
	return cmd
}

func printVersion(cmd *cobra.Command, db *sql.DB) error {
	version, err := sqlite.MigrationVersion(db)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", version)
	return err
}
