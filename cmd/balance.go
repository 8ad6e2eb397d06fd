package cmd

import (
	"fmt"
	"strconv"

	"kzcasino/config"

	"github.com/spf13/cobra"
)

func parseIDAndAmount(args []string) (int64, int64, error) {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid discord id %q", args[0])
	}
	if len(args) < 2 {
		return id, 0, nil
	}
	amount, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid amount %q", args[1])
	}
	return id, amount, nil
}

func newBalanceCmd() *cobra.Command {
	balanceCmd := &cobra.Command{
		Use:   "balance",
		Short: "Administer account balances",
	}

	var wipeAll bool
	wipeCmd := &cobra.Command{
		Use:   "wipe [discord-id]",
		Short: "Zero an account, or every account with --all",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if wipeAll == (len(args) == 1) {
				return fmt.Errorf("pass a discord id or --all")
			}
			svc, err := buildServices(cmd.Context(), config.Get())
			if err != nil {
				return err
			}
			defer svc.Close()

			if wipeAll {
				n, err := svc.ledger.WipeAll(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Wiped %d accounts\n", n)
				return nil
			}
			id, _, err := parseIDAndAmount(args)
			if err != nil {
				return err
			}
			return svc.ledger.WipeAccount(cmd.Context(), id)
		},
	}
	wipeCmd.Flags().BoolVar(&wipeAll, "all", false, "wipe every account")

	balanceCmd.AddCommand(
		&cobra.Command{
			Use:   "get <discord-id>",
			Short: "Show an account balance",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, _, err := parseIDAndAmount(args)
				if err != nil {
					return err
				}
				svc, err := buildServices(cmd.Context(), config.Get())
				if err != nil {
					return err
				}
				defer svc.Close()

				balance, err := svc.ledger.GetBalance(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), balance)
				return nil
			},
		},
		&cobra.Command{
			Use:   "set <discord-id> <amount>",
			Short: "Overwrite an account balance",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, amount, err := parseIDAndAmount(args)
				if err != nil {
					return err
				}
				svc, err := buildServices(cmd.Context(), config.Get())
				if err != nil {
					return err
				}
				defer svc.Close()

				balance, err := svc.ledger.SetBalance(cmd.Context(), id, amount)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), balance)
				return nil
			},
		},
		&cobra.Command{
			Use:   "add <discord-id> <delta>",
			Short: "Add to an account balance, clamping at zero",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				id, delta, err := parseIDAndAmount(args)
				if err != nil {
					return err
				}
				svc, err := buildServices(cmd.Context(), config.Get())
				if err != nil {
					return err
				}
				defer svc.Close()

				balance, err := svc.ledger.AddBalance(cmd.Context(), id, delta)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), balance)
				return nil
			},
		},
		&cobra.Command{
			Use:   "transfer <from-id> <to-id> <amount>",
			Short: "Move coins between accounts, burning the transfer tax",
			Args:  cobra.ExactArgs(3),
			RunE: func(cmd *cobra.Command, args []string) error {
				from, amount, err := parseIDAndAmount([]string{args[0], args[2]})
				if err != nil {
					return err
				}
				to, _, err := parseIDAndAmount(args[1:2])
				if err != nil {
					return err
				}
				svc, err := buildServices(cmd.Context(), config.Get())
				if err != nil {
					return err
				}
				defer svc.Close()

				result, err := svc.ledger.Transfer(cmd.Context(), from, to, amount)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Sent %d (tax %d), sender now %d, recipient now %d\n",
					result.Received, result.Tax, result.SenderBalance, result.RecipientBalance)
				return nil
			},
		},
		wipeCmd,
	)
	return balanceCmd
}
