package main

import (
	"fmt"

	"github.com/bitcoincommons/govkit/govwire"
	"github.com/urfave/cli"
)

// signable is anything a maintainer can put a signature on.
type signable interface {
	// SigningBytes returns the bytes that are signed.
	SigningBytes() []byte

	// Description renders the signed statement for humans.
	Description() string
}

// messageAction runs a sign or verify command on the statement described by
// the subcommand flags.
type messageAction func(ctx *cli.Context, msg signable) error

// messageCommands returns one subcommand per governance message type. Each
// subcommand takes the message fields as flags, in addition to extraFlags,
// and hands the message to action.
func messageCommands(verb string, extraFlags []cli.Flag,
	action messageAction) []cli.Command {

	withExtra := func(flags ...cli.Flag) []cli.Flag {
		return append(flags, extraFlags...)
	}

	return []cli.Command{
		{
			Name:  "release",
			Usage: fmt.Sprintf("%s a release message", verb),
			Flags: withExtra(
				cli.StringFlag{
					Name:  "version",
					Usage: "the version string of the release",
				},
				cli.StringFlag{
					Name:  "commit",
					Usage: "the commit hash the release is built from",
				},
			),
			Action: actionDecorator(func(ctx *cli.Context) error {
				if err := requireFlags(ctx, "version", "commit"); err != nil {
					return err
				}

				return action(ctx, &govwire.Release{
					Version:    ctx.String("version"),
					CommitHash: ctx.String("commit"),
				})
			}),
		},
		{
			Name:  "module",
			Usage: fmt.Sprintf("%s a module approval message", verb),
			Flags: withExtra(
				cli.StringFlag{
					Name:  "name",
					Usage: "the name of the module",
				},
				cli.StringFlag{
					Name:  "version",
					Usage: "the approved version of the module",
				},
			),
			Action: actionDecorator(func(ctx *cli.Context) error {
				if err := requireFlags(ctx, "name", "version"); err != nil {
					return err
				}

				return action(ctx, &govwire.ModuleApproval{
					ModuleName: ctx.String("name"),
					Version:    ctx.String("version"),
				})
			}),
		},
		{
			Name:  "budget",
			Usage: fmt.Sprintf("%s a budget decision message", verb),
			Flags: withExtra(
				cli.Uint64Flag{
					Name:  "amount",
					Usage: "the amount in satoshis",
				},
				cli.StringFlag{
					Name:  "purpose",
					Usage: "what the budget is spent on",
				},
			),
			Action: actionDecorator(func(ctx *cli.Context) error {
				if err := requireFlags(ctx, "amount", "purpose"); err != nil {
					return err
				}

				return action(ctx, &govwire.BudgetDecision{
					Amount:  ctx.Uint64("amount"),
					Purpose: ctx.String("purpose"),
				})
			}),
		},
	}
}

// requireFlags fails unless every named flag was given.
func requireFlags(ctx *cli.Context, names ...string) error {
	for _, name := range names {
		if !ctx.IsSet(name) {
			return fmt.Errorf("--%s is required", name)
		}
	}

	return nil
}
