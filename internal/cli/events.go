package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"github.com/tixly/tixly/internal/app"
	"github.com/tixly/tixly/internal/contracts"
	"github.com/tixly/tixly/internal/units"
	"github.com/tixly/tixly/pkg/types"
)

// parseCategory accepts a category name (any case) or its numeric value
func parseCategory(s string) (types.EventCategory, error) {
	if n, err := strconv.ParseUint(s, 10, 8); err == nil && types.EventCategory(n) <= types.CategoryOther {
		return types.EventCategory(n), nil
	}
	for c := types.CategoryMusic; c <= types.CategoryOther; c++ {
		if strings.EqualFold(c.String(), s) {
			return c, nil
		}
	}
	return 0, fmt.Errorf("unknown category %q", s)
}

func (c *cli) printEvents(events []types.Event) error {
	if c.jsonOut {
		return c.printJSON(events)
	}
	if len(events) == 0 {
		c.printf("No events.\n")
		return nil
	}

	tw := tabwriter.NewWriter(c.opts.Out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDATE\tPRICE\tLEFT\tCATEGORY")
	for _, e := range events {
		price, err := units.FormatCurrency(e.Price, 4)
		if err != nil {
			price = e.Price
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s ETH\t%d/%d\t%s\n",
			e.ID, e.Name, time.Unix(e.Date, 0).UTC().Format(time.DateOnly), price, e.TicketRemain, e.TicketCount, e.Category)
	}
	return tw.Flush()
}

func (c *cli) eventsCmd() *cobra.Command {
	var (
		category string
		count    uint64
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List featured events, or events in a category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var cat *types.EventCategory
			if category != "" {
				parsed, err := parseCategory(category)
				if err != nil {
					return err
				}
				cat = &parsed
			}
			return c.withCore(cmd, func(ctx context.Context, core *app.App) error {
				events, err := core.Contracts.ListEvents(ctx, cat, count)
				if err != nil {
					return err
				}
				return c.printEvents(events)
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "music, sports, arts, technology, business or other")
	cmd.Flags().Uint64Var(&count, "count", 10, "maximum number of events")
	return cmd
}

func (c *cli) eventCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "event <id>",
		Short: "Show one event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCore(cmd, func(ctx context.Context, core *app.App) error {
				e, err := core.Contracts.Event(ctx, args[0])
				if err != nil {
					return err
				}
				if c.jsonOut {
					return c.printJSON(e)
				}
				c.printf("%s (#%s)\n", e.Name, e.ID)
				c.printf("  When:      %s\n", time.Unix(e.Date, 0).UTC().Format(time.DateOnly))
				c.printf("  Where:     %s\n", e.Location)
				c.printf("  Price:     %s ETH\n", e.Price)
				c.printf("  Tickets:   %d of %d left\n", e.TicketRemain, e.TicketCount)
				c.printf("  Category:  %s\n", e.Category)
				c.printf("  Organizer: %s\n", units.FormatAddress(e.Organizer, 6, 4))
				if e.Description != "" {
					c.printf("\n%s\n", e.Description)
				}
				return nil
			})
		},
	}
}

// submitted prints the pending transaction, then waits for its receipt when
// wait is set.
func (c *cli) submitted(ctx context.Context, core *app.App, pending *contracts.PendingTx, wait bool) error {
	if !wait {
		if c.jsonOut {
			return c.printJSON(pending)
		}
		c.printf("Submitted %s: %s\n", pending.Method, pending.Hash.Hex())
		return nil
	}

	fmt.Fprintf(c.opts.Err, "Waiting for %s to be mined...\n", pending.Hash.Hex())
	receipt, err := core.Contracts.Confirm(ctx, *pending)
	if receipt != nil {
		if c.jsonOut {
			if perr := c.printJSON(receipt); perr != nil {
				return perr
			}
		} else {
			c.printf("Block %d: %s\n", receipt.BlockNumber, receipt.Status)
			if receipt.EventID != "" {
				c.printf("Event ID: %s\n", receipt.EventID)
			}
		}
	}
	return err
}

func (c *cli) createEventCmd() *cobra.Command {
	var (
		name    string
		date    string
		price   string
		tickets uint64
		wait    bool
	)
	cmd := &cobra.Command{
		Use:   "create-event",
		Short: "Create an event on the EventFactory contract",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			when, err := time.Parse(time.DateOnly, date)
			if err != nil {
				return fmt.Errorf("--date must be YYYY-MM-DD: %w", err)
			}
			return c.withCore(cmd, func(ctx context.Context, core *app.App) error {
				f, err := facade(core)
				if err != nil {
					return err
				}
				pending, err := f.CreateEvent(ctx, contracts.EventInput{
					Name:        name,
					Date:        when,
					Price:       price,
					TicketCount: tickets,
				})
				if err != nil {
					return err
				}
				return c.submitted(ctx, core, pending, wait)
			})
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "event name")
	cmd.Flags().StringVar(&date, "date", "", "event date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&price, "price", "", "ticket price in ETH")
	cmd.Flags().Uint64Var(&tickets, "tickets", 0, "number of tickets")
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the transaction receipt")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("price")
	_ = cmd.MarkFlagRequired("tickets")
	return cmd
}

func (c *cli) buyCmd() *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "buy <event-id> <quantity>",
		Short: "Buy tickets for an event",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("quantity must be a positive integer")
			}
			return c.withCore(cmd, func(ctx context.Context, core *app.App) error {
				f, err := facade(core)
				if err != nil {
					return err
				}
				pending, err := f.BuyTickets(ctx, args[0], quantity)
				if err != nil {
					return err
				}
				return c.submitted(ctx, core, pending, wait)
			})
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the transaction receipt")
	return cmd
}

func (c *cli) transferCmd() *cobra.Command {
	var wait bool
	cmd := &cobra.Command{
		Use:   "transfer <event-id> <to-address> <quantity>",
		Short: "Transfer tickets to another address",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			quantity, err := strconv.ParseUint(args[2], 10, 64)
			if err != nil {
				return fmt.Errorf("quantity must be a positive integer")
			}
			return c.withCore(cmd, func(ctx context.Context, core *app.App) error {
				f, err := facade(core)
				if err != nil {
					return err
				}
				pending, err := f.TransferTickets(ctx, args[0], args[1], quantity)
				if err != nil {
					return err
				}
				return c.submitted(ctx, core, pending, wait)
			})
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the transaction receipt")
	return cmd
}

func (c *cli) favoriteCmd(add bool) *cobra.Command {
	use, short := "favorite <event-id>", "Add an event to favorites"
	if !add {
		use, short = "unfavorite <event-id>", "Remove an event from favorites"
	}

	var wait bool
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCore(cmd, func(ctx context.Context, core *app.App) error {
				f, err := facade(core)
				if err != nil {
					return err
				}
				toggle := f.FavoriteEvent
				if !add {
					toggle = f.UnfavoriteEvent
				}
				pending, err := toggle(ctx, args[0])
				if err != nil {
					return err
				}
				return c.submitted(ctx, core, pending, wait)
			})
		},
	}
	cmd.Flags().BoolVar(&wait, "wait", false, "wait for the transaction receipt")
	return cmd
}

func (c *cli) ticketsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tickets",
		Short: "List the tickets held by the session address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.withCore(cmd, func(ctx context.Context, core *app.App) error {
				f, err := facade(core)
				if err != nil {
					return err
				}
				tickets, err := f.Tickets(ctx)
				if err != nil {
					return err
				}
				if c.jsonOut {
					return c.printJSON(tickets)
				}
				if len(tickets) == 0 {
					c.printf("No tickets.\n")
					return nil
				}

				tw := tabwriter.NewWriter(c.opts.Out, 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "EVENT\tNAME\tCOUNT")
				for _, t := range tickets {
					name := "-"
					if t.Event != nil {
						name = t.Event.Name
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\n", t.EventID, name, t.Count)
				}
				return tw.Flush()
			})
		},
	}
}

func (c *cli) confirmCmd() *cobra.Command {
	var method string
	cmd := &cobra.Command{
		Use:   "confirm <tx-hash>",
		Short: "Wait for a submitted transaction to be mined",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := hexutil.Decode(args[0])
			if err != nil || len(raw) != common.HashLength {
				return fmt.Errorf("transaction hash must be 32 bytes of 0x-prefixed hex")
			}
			return c.withCore(cmd, func(ctx context.Context, core *app.App) error {
				pending := &contracts.PendingTx{Hash: common.BytesToHash(raw), Method: method}
				return c.submitted(ctx, core, pending, true)
			})
		},
	}
	cmd.Flags().StringVar(&method, "method", "", "contract method of the transaction (createEvent reports the new event ID)")
	return cmd
}
