package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/devsel/internal/infrastructure/database"
	"github.com/nerrad567/devsel/migrations"
)

func newDBCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Inspect and manage the history database schema",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := cmd.Root().PersistentPreRunE(cmd, nil); err != nil {
				return err
			}
			if !a.cfg.Database.Enabled {
				return errors.New("db commands need database.enabled")
			}
			return nil
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "List applied and pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withDatabase(func(db *database.DB) error {
					applied, pending, err := db.MigrationStatus(cmd.Context(), migrations.FS)
					if err != nil {
						return err
					}

					tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
					fmt.Fprintln(tw, "VERSION\tSTATE\tAPPLIED")
					for _, r := range applied {
						fmt.Fprintf(tw, "%s\tapplied\t%s\n", r.Version, r.AppliedAt.Local().Format(time.DateTime))
					}
					for _, m := range pending {
						fmt.Fprintf(tw, "%s\tpending\t-\n", m.Version)
					}
					return tw.Flush()
				})
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				db, err := a.openDatabase(cmd.Context())
				if err != nil {
					return err
				}
				defer db.Close() //nolint:errcheck // Schema already committed
				fmt.Fprintln(a.stdout, "schema up to date")
				return nil
			},
		},
		&cobra.Command{
			Use:   "rollback",
			Short: "Revert the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return a.withDatabase(func(db *database.DB) error {
					m, err := db.Rollback(cmd.Context(), migrations.FS)
					if err != nil {
						return err
					}
					if m.Version == "" {
						fmt.Fprintln(a.stdout, "nothing to roll back")
						return nil
					}
					a.log.Info("migration rolled back", "version", m.Version, "name", m.Name)
					fmt.Fprintf(a.stdout, "rolled back %s (%s)\n", m.Version, m.Name)
					return nil
				})
			},
		},
	)
	return cmd
}

// withDatabase opens the database without migrating and closes it after fn.
func (a *app) withDatabase(fn func(db *database.DB) error) error {
	db, err := a.dialDatabase()
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // Errors from fn take precedence
	return fn(db)
}
