package cli

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/tixly/tixly/internal/app"
	"github.com/tixly/tixly/internal/contracts"
	"github.com/tixly/tixly/internal/session"
	"github.com/tixly/tixly/internal/units"
	apperrors "github.com/tixly/tixly/pkg/errors"
	"github.com/tixly/tixly/pkg/types"
)

func (c *cli) printSession(s types.Session) error {
	if c.jsonOut {
		return c.printJSON(s)
	}

	c.printf("Status:   %s\n", s.Status)
	if s.Address != "" {
		c.printf("Address:  %s\n", s.Address)
		balance, err := units.FormatCurrency(s.Balance, 4)
		if err != nil {
			balance = s.Balance
		}
		c.printf("Balance:  %s ETH\n", balance)
		c.printf("Strategy: %s\n", s.Strategy)
	}
	if s.ReadOnly {
		c.printf("Mode:     read-only\n")
	}
	if s.Reason != "" {
		c.printf("Reason:   %s\n", s.Reason)
	}
	return nil
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCore(cmd, func(ctx context.Context, core *app.App) error {
				return c.printSession(core.Sessions.Snapshot())
			})
		},
	}
}

func (c *cli) connectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "connect <mock|local|external>",
		Short: "Connect a wallet with the given strategy",
		Long: `Connect a wallet. "local" creates a key on this machine (or imports the
configured development key); "external" hands off to a wallet app through a
deep link, shown here as a QR code; "mock" uses a fixed read-only address
and is only available without a chain endpoint.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := types.ParseStrategyKind(args[0])
			if err != nil {
				return err
			}
			return c.withCore(cmd, func(ctx context.Context, core *app.App) error {
				s, err := core.Sessions.Connect(ctx, kind)
				if err != nil {
					return err
				}
				return c.printSession(s)
			})
		},
	}
}

func (c *cli) importCmd() *cobra.Command {
	var mnemonic bool
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import a private key or recovery phrase",
		Long: `Import an existing wallet. The private key (or, with --mnemonic, the
recovery phrase) is read from stdin without echo.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCore(cmd, func(ctx context.Context, core *app.App) error {
				var req session.ImportRequest
				if mnemonic {
					phrase, err := c.readSecret("Recovery phrase: ")
					if err != nil {
						return err
					}
					req.Mnemonic = phrase
				} else {
					key, err := c.readSecret("Private key: ")
					if err != nil {
						return err
					}
					req.PrivateKey = key
				}

				s, err := core.Sessions.Import(ctx, req)
				if err != nil {
					return err
				}
				return c.printSession(s)
			})
		},
	}
	cmd.Flags().BoolVar(&mnemonic, "mnemonic", false, "read a BIP-39 recovery phrase instead of a private key")
	return cmd
}

func (c *cli) disconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "End the session and forget the stored wallet",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCore(cmd, func(ctx context.Context, core *app.App) error {
				return c.printSession(core.Sessions.Disconnect(ctx))
			})
		},
	}
}

func (c *cli) balanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Refresh and print the session balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCore(cmd, func(ctx context.Context, core *app.App) error {
				balance, err := core.Sessions.RefreshBalance(ctx)
				if err != nil {
					return err
				}
				if c.jsonOut {
					return c.printJSON(map[string]string{"balance": balance})
				}
				c.printf("%s ETH\n", balance)
				return nil
			})
		},
	}
}

// facade binds the contracts to the restored session
func facade(core *app.App) (*contracts.Facade, error) {
	s, signer := core.Sessions.Active()
	if !s.IsConnected() {
		return nil, fmt.Errorf("%w; run: tixctl connect local", apperrors.ErrNotConnected)
	}
	return core.Contracts.Bind(common.HexToAddress(s.Address), signer), nil
}
