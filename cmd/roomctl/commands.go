package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/sheikh-saqib/room-billing-ledger/internal/app"
	"github.com/sheikh-saqib/room-billing-ledger/internal/config"
	"github.com/sheikh-saqib/room-billing-ledger/internal/ledger"
	"github.com/sheikh-saqib/room-billing-ledger/internal/models"
	"github.com/sheikh-saqib/room-billing-ledger/internal/report"
)

type amountOp func(ctx context.Context, room string, value decimal.Decimal) (models.RoomAccount, error)

// newApp builds the roomctl command tree. Every command loads the ledger from
// the configured store, applies one operation and prints the room statement.
func newApp(cfg *config.Config, out io.Writer) *cli.App {
	withLedger := func(fn func(ctx context.Context, l *ledger.Ledger, c *cli.Context) error) cli.ActionFunc {
		return func(c *cli.Context) error {
			if err := cfg.FromContext(c); err != nil {
				return err
			}
			a, err := app.Build(c.Context, cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := fn(c.Context, a.Ledger, c); err != nil {
				return userError(err)
			}
			return nil
		}
	}

	printRoom := func(account models.RoomAccount, err error) error {
		if err != nil {
			return err
		}
		return report.WriteStatement(out, account)
	}

	amountCommand := func(name, usage, argName string, op func(*ledger.Ledger) amountOp) *cli.Command {
		return &cli.Command{
			Name:      name,
			Usage:     usage,
			ArgsUsage: "ROOM " + argName,
			Action: withLedger(func(ctx context.Context, l *ledger.Ledger, c *cli.Context) error {
				if c.NArg() != 2 {
					return fmt.Errorf("expected ROOM %s", argName)
				}
				value, err := decimal.NewFromString(c.Args().Get(1))
				if err != nil {
					return fmt.Errorf("%s: %w", argName, err)
				}
				return printRoom(op(l)(ctx, c.Args().Get(0), value))
			}),
		}
	}

	return &cli.App{
		Name:      "roomctl",
		Usage:     "record rent, utilities and payments for rental rooms",
		Flags:     cfg.Flags(),
		Writer:    out,
		ErrWriter: out,
		Commands: []*cli.Command{
			{
				Name:      "show",
				Usage:     "print the statement of one room, or of every room",
				ArgsUsage: "[ROOM]",
				Action: withLedger(func(ctx context.Context, l *ledger.Ledger, c *cli.Context) error {
					if c.NArg() > 0 {
						return printRoom(l.Account(c.Args().First()))
					}
					for i, account := range l.Accounts() {
						if i > 0 {
							fmt.Fprintln(out)
						}
						if err := report.WriteStatement(out, account); err != nil {
							return err
						}
					}
					return nil
				}),
			},
			amountCommand("add-rent", "set the monthly rent of a room", "AMOUNT", func(l *ledger.Ledger) amountOp {
				return l.AddRent
			}),
			amountCommand("edit-rent", "change the monthly rent of a room", "AMOUNT", func(l *ledger.Ledger) amountOp {
				return l.EditRent
			}),
			amountCommand("add-electricity", "bill electricity consumption", "KWH", func(l *ledger.Ledger) amountOp {
				return l.AddElectricity
			}),
			amountCommand("add-water", "bill water consumption", "M3", func(l *ledger.Ledger) amountOp {
				return l.AddWater
			}),
			{
				Name:      "add-service",
				Usage:     "add the flat other-service charge",
				ArgsUsage: "ROOM",
				Action: withLedger(func(ctx context.Context, l *ledger.Ledger, c *cli.Context) error {
					if c.NArg() != 1 {
						return errors.New("expected ROOM")
					}
					return printRoom(l.AddOtherService(ctx, c.Args().First()))
				}),
			},
			{
				Name:      "set-status",
				Usage:     "mark a room Paid or Unpaid",
				ArgsUsage: "ROOM Paid|Unpaid",
				Action: withLedger(func(ctx context.Context, l *ledger.Ledger, c *cli.Context) error {
					if c.NArg() != 2 {
						return errors.New("expected ROOM Paid|Unpaid")
					}
					status, err := models.ParsePaymentStatus(c.Args().Get(1))
					if err != nil {
						return fmt.Errorf("%w: %v", ledger.ErrInvalidStatus, err)
					}
					return printRoom(l.SetPaymentStatus(ctx, c.Args().First(), status))
				}),
			},
			{
				Name:      "reset",
				Usage:     "clear every charge and payment of a room",
				ArgsUsage: "ROOM",
				Action: withLedger(func(ctx context.Context, l *ledger.Ledger, c *cli.Context) error {
					if c.NArg() != 1 {
						return errors.New("expected ROOM")
					}
					return printRoom(l.ResetRoom(ctx, c.Args().First()))
				}),
			},
			{
				Name:  "reset-all",
				Usage: "reset every room",
				Action: withLedger(func(ctx context.Context, l *ledger.Ledger, c *cli.Context) error {
					if err := l.ResetAll(ctx); err != nil {
						return err
					}
					fmt.Fprintf(out, "reset %d rooms\n", len(l.Rooms()))
					return nil
				}),
			},
		},
	}
}

// userError turns ledger rule violations into an informational exit.
func userError(err error) error {
	for _, known := range []error{
		ledger.ErrUnknownRoom,
		ledger.ErrDuplicateCharge,
		ledger.ErrMissingCharge,
		ledger.ErrIncompleteCharges,
		ledger.ErrAlreadySettled,
		ledger.ErrInvalidAmount,
		ledger.ErrInvalidStatus,
	} {
		if errors.Is(err, known) {
			return cli.Exit(err.Error(), 1)
		}
	}
	return err
}
