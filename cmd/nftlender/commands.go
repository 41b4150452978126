package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/nftlender/backend/internal/app"
	"github.com/nftlender/backend/internal/apperr"
	"github.com/nftlender/backend/internal/config"
	"github.com/nftlender/backend/internal/domain/loan"
	"github.com/nftlender/backend/internal/observability"
	"github.com/nftlender/backend/internal/version"
	"github.com/spf13/cobra"
)

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "nftlender",
		Short:         "Operate the NFT lending contract from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(loansCmd(), sessionCmd(), historyCmd(), newsCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "nftlender version %s\n", version.Version)
		},
	})
	return cmd
}

// withApp wires the service for one command and tears it down afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) (any, error)) error {
	cfg := config.Load()
	logger := observability.NewLogger(cfg.Env)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := fn(ctx, a)
	if err != nil {
		if kind := apperr.KindOf(err); kind != "" {
			return fmt.Errorf("%s: %s", kind, apperr.Message(err))
		}
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

// ensureSession restores the persisted account or connects the configured
// wallet when there is none.
func ensureSession(ctx context.Context, a *app.App) error {
	account, err := a.Wallet.Restore(ctx)
	if err != nil {
		return err
	}
	if account != nil {
		return nil
	}
	_, err = a.Wallet.Connect(ctx)
	return err
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func parseLoanID(raw string) (uint64, error) {
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid loan id %q", raw)
	}
	return id, nil
}

func loansCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "loans", Short: "Read and act on loans"}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List open loan requests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				return a.Projection.ListOpenLoans(ctx)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <loan-id>",
		Short: "Show one loan regardless of status",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseLoanID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				return a.Projection.GetLoanDetail(ctx, id)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "events <loan-id>",
		Short: "Show the contract events of a loan",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseLoanID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				return a.Chain.LoanEvents(ctx, id)
			})
		},
	})

	var in loan.CreateInput
	request := &cobra.Command{
		Use:   "request",
		Short: "Approve an NFT and open a loan request against it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				if err := ensureSession(ctx, a); err != nil {
					return nil, err
				}
				return a.Actions.CreateLoanRequest(ctx, in)
			})
		},
	}
	request.Flags().StringVar(&in.NFTAddress, "nft-address", "", "NFT contract address")
	request.Flags().StringVar(&in.NFTID, "nft-id", "", "NFT token id")
	request.Flags().StringVar(&in.Amount, "amount", "", "Loan amount in ETH")
	request.Flags().StringVar(&in.Duration, "duration", "", "Loan duration in minutes")
	request.Flags().StringVar(&in.Interest, "interest", "", "Interest in percent")
	for _, f := range []string{"nft-address", "nft-id", "amount", "duration", "interest"} {
		_ = request.MarkFlagRequired(f)
	}
	cmd.AddCommand(request)

	cmd.AddCommand(loanAction("fund", "Fund an open loan request", func(ctx context.Context, a *app.App, id uint64) (any, error) {
		return a.Actions.FundLoan(ctx, id)
	}))
	cmd.AddCommand(loanAction("cancel", "Cancel your open loan request", func(ctx context.Context, a *app.App, id uint64) (any, error) {
		return a.Actions.CancelLoanRequest(ctx, id)
	}))

	var amount string
	repay := &cobra.Command{
		Use:   "repay <loan-id>",
		Short: "Repay a funded loan with the exact amount due",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseLoanID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				if err := ensureSession(ctx, a); err != nil {
					return nil, err
				}
				return a.Actions.RepayLoan(ctx, id, amount)
			})
		},
	}
	repay.Flags().StringVar(&amount, "amount", "", "Repayment amount in ETH")
	_ = repay.MarkFlagRequired("amount")
	cmd.AddCommand(repay)

	return cmd
}

func loanAction(use, short string, fn func(ctx context.Context, a *app.App, id uint64) (any, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <loan-id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseLoanID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				if err := ensureSession(ctx, a); err != nil {
					return nil, err
				}
				return fn(ctx, a, id)
			})
		},
	}
}

func sessionCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "session", Short: "Manage the wallet session"}

	cmd.AddCommand(&cobra.Command{
		Use:   "connect",
		Short: "Connect the configured wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				if _, err := a.Wallet.Connect(ctx); err != nil {
					return nil, err
				}
				return a.Wallet.Current(), nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the persisted session without prompting the wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				if _, err := a.Wallet.Restore(ctx); err != nil {
					return nil, err
				}
				return a.Wallet.Current(), nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "logout",
		Short: "Forget the persisted session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				if err := a.Wallet.Logout(ctx); err != nil {
					return nil, err
				}
				return a.Wallet.Current(), nil
			})
		},
	})
	return cmd
}

func historyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <address>",
		Short: "Show the last five transactions of an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				return a.History.FetchAddressHistory(ctx, args[0])
			})
		},
	}
}

func newsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "news",
		Short: "Show the latest NFT news",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) (any, error) {
				return a.News.FetchLatestNews(ctx), nil
			})
		},
	}
}
