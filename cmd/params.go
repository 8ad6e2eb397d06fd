package cmd

import (
	"fmt"
	"text/tabwriter"

	"kzcasino/config"

	"github.com/spf13/cobra"
)

func newParamsCmd() *cobra.Command {
	paramsCmd := &cobra.Command{
		Use:   "params",
		Short: "Inspect and override tunable parameters",
	}

	var all bool
	resetCmd := &cobra.Command{
		Use:   "reset [name]",
		Short: "Remove an override, or every override with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (len(args) == 1) {
				return fmt.Errorf("pass a parameter name or --all")
			}
			svc, err := buildServices(cmd.Context(), config.Get())
			if err != nil {
				return err
			}
			defer svc.Close()

			if all {
				return svc.params.ResetAll(cmd.Context())
			}
			return svc.params.Reset(cmd.Context(), args[0])
		},
	}
	resetCmd.Flags().BoolVar(&all, "all", false, "reset every parameter")

	paramsCmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List every parameter with its effective value",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := buildServices(cmd.Context(), config.Get())
				if err != nil {
					return err
				}
				defer svc.Close()

				states, err := svc.params.List(cmd.Context())
				if err != nil {
					return err
				}
				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "NAME\tVALUE\tDEFAULT\tOVERRIDDEN")
				for _, s := range states {
					fmt.Fprintf(w, "%s\t%s\t%s\t%t\n", s.Definition.Name, s.Value, s.Definition.DefaultValue().String(), s.Overridden)
				}
				return w.Flush()
			},
		},
		&cobra.Command{
			Use:   "get <name>",
			Short: "Show the effective value of a parameter",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := buildServices(cmd.Context(), config.Get())
				if err != nil {
					return err
				}
				defer svc.Close()

				value, err := svc.params.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), value.String())
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <name> <value>",
			Short: "Store a live override",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				svc, err := buildServices(cmd.Context(), config.Get())
				if err != nil {
					return err
				}
				defer svc.Close()

				value, err := svc.params.Set(cmd.Context(), args[0], args[1])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], value.String())
				return nil
			},
		},
		resetCmd,
	)
	return paramsCmd
}
