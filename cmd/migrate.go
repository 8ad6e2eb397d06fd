package cmd

import (
	"fmt"
	"strconv"

	"kzcasino/config"
	"kzcasino/database"

	"github.com/spf13/cobra"
)

func newMigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}

	migrateCmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return database.MigrateUp(config.Get().GetDatabaseURL())
			},
		},
		&cobra.Command{
			Use:   "down [steps]",
			Short: "Roll back migrations, one step by default",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				steps := 1
				if len(args) == 1 {
					n, err := strconv.Atoi(args[0])
					if err != nil || n < 1 {
						return fmt.Errorf("invalid step count %q", args[0])
					}
					steps = n
				}
				return database.MigrateDown(config.Get().GetDatabaseURL(), steps)
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show the current migration version",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				status, err := database.MigrateStatus(config.Get().GetDatabaseURL())
				if err != nil {
					return err
				}
				if !status.Applied {
					fmt.Fprintln(cmd.OutOrStdout(), "No migrations applied")
					return nil
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Version: %d (dirty: %t)\n", status.Version, status.Dirty)
				return nil
			},
		},
	)
	return migrateCmd
}
