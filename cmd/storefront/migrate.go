package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"storefront/internal/db"
	"storefront/internal/migrate"
)

func newMigrateCmd(rt *cliEnv) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the commission ledger schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := db.Connect(cmd.Context(), rt.cfg.DBConnString)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := migrate.Apply(cmd.Context(), pool); err != nil {
				return err
			}
			rt.logger.Info().Msg("migrations applied")
			return nil
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			pool, err := db.Connect(cmd.Context(), rt.cfg.DBConnString)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := migrate.Rollback(cmd.Context(), pool, steps); err != nil {
				return err
			}
			rt.logger.Info().Int("steps", steps).Msg("migrations rolled back")
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pool, err := db.Connect(cmd.Context(), rt.cfg.DBConnString)
			if err != nil {
				return err
			}
			defer pool.Close()

			v, dirty, ok, err := migrate.Version(cmd.Context(), pool)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case !ok:
				fmt.Fprintln(out, "no migrations applied")
			case dirty:
				fmt.Fprintf(out, "%d (dirty)\n", v)
			default:
				fmt.Fprintln(out, v)
			}
			return nil
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}
