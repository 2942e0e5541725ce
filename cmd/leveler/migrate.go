package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/ChatSift/Social/internal/infrastructure/persistence/postgres"
)

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	run := func(apply func(cmd *cobra.Command, m *postgres.Migrator) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			conn, err := openPostgres(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer conn.Close()
			return apply(cmd, postgres.NewMigrator(conn))
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			RunE: run(func(cmd *cobra.Command, m *postgres.Migrator) error {
				return m.Migrate(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: run(func(cmd *cobra.Command, m *postgres.Migrator) error {
				return m.Rollback(cmd.Context())
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			RunE: run(func(cmd *cobra.Command, m *postgres.Migrator) error {
				status, err := m.Status(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED AT")
				for _, mig := range status {
					applied := "pending"
					if mig.IsApplied {
						applied = mig.AppliedAt.Format(time.RFC3339)
					}
					fmt.Fprintf(w, "%d\t%s\t%s\n", mig.Version, mig.Name, applied)
				}
				return w.Flush()
			}),
		},
	)
	return cmd
}
