package main

import (
	"fmt"
	"strings"

	"github.com/bitcoincommons/govkit/bip32"
	"github.com/bitcoincommons/govkit/mnemonic"
	"github.com/urfave/cli"
)

var mnemonicFlag = cli.StringFlag{
	Name: "mnemonic",
	Usage: "the mnemonic sentence, if not given as the command " +
		"arguments",
}

var mnemonicCommand = cli.Command{
	Name:     "mnemonic",
	Category: "Keys",
	Usage:    "Create and check BIP 39 mnemonic sentences.",
	Subcommands: []cli.Command{
		{
			Name:  "new",
			Usage: "Generate a new mnemonic sentence.",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name: "words",
					Usage: "the number of words: 12, 15, 18, " +
						"21 or 24",
					Value: 24,
				},
			},
			Action: actionDecorator(newMnemonic),
		},
		{
			Name:      "validate",
			Usage:     "Check the words and checksum of a mnemonic.",
			ArgsUsage: "[word...]",
			Flags:     []cli.Flag{mnemonicFlag},
			Action:    actionDecorator(validateMnemonic),
		},
		{
			Name:      "seed",
			Usage:     "Print the seed and master key of a mnemonic.",
			ArgsUsage: "[word...]",
			Description: `
	Stretch a mnemonic and optional passphrase into the 64-byte BIP 39
	seed and print it together with the BIP 32 master key encoded for
	the active network.

	The output contains secrets.
	`,
			Flags: []cli.Flag{
				mnemonicFlag,
				cli.StringFlag{
					Name:  "passphrase",
					Usage: "the optional BIP 39 passphrase",
				},
			},
			Action: actionDecorator(mnemonicSeed),
		},
	},
}

// readMnemonic returns the mnemonic from --mnemonic or the positional
// arguments.
func readMnemonic(ctx *cli.Context) (mnemonic.Mnemonic, error) {
	var sentence string
	switch {
	case ctx.IsSet("mnemonic"):
		sentence = ctx.String("mnemonic")

	case ctx.NArg() > 0:
		sentence = strings.Join(ctx.Args(), " ")

	default:
		return nil, fmt.Errorf("mnemonic argument missing")
	}

	return mnemonic.Parse(sentence), nil
}

func newMnemonic(ctx *cli.Context) error {
	strength, err := mnemonic.StrengthFromWordCount(ctx.Int("words"))
	if err != nil {
		return err
	}

	m, err := mnemonic.Generate(strength)
	if err != nil {
		return err
	}

	w := stdout(ctx)
	if jsonOutput(ctx) {
		return printJSON(w, map[string]interface{}{
			"success":  true,
			"words":    len(m),
			"mnemonic": m.String(),
		})
	}

	fmt.Fprintln(w, m.String())

	return nil
}

func validateMnemonic(ctx *cli.Context) error {
	m, err := readMnemonic(ctx)
	if err != nil {
		return err
	}
	if err := mnemonic.Validate(m); err != nil {
		return err
	}

	w := stdout(ctx)
	if jsonOutput(ctx) {
		return printJSON(w, map[string]interface{}{
			"success": true,
			"valid":   true,
			"words":   len(m),
		})
	}

	fmt.Fprintf(w, "Mnemonic is valid (%d words)\n", len(m))

	return nil
}

func mnemonicSeed(ctx *cli.Context) error {
	m, err := readMnemonic(ctx)
	if err != nil {
		return err
	}
	if err := mnemonic.Validate(m); err != nil {
		return err
	}

	seed := mnemonic.ToSeed(m, ctx.String("passphrase"))
	master, err := bip32.NewMaster(seed)
	if err != nil {
		return err
	}
	fingerprint, err := master.Fingerprint()
	if err != nil {
		return err
	}

	net := getConfig(ctx).ActiveNetParams
	xprv := master.EncodePrivate(net)

	w := stdout(ctx)
	if jsonOutput(ctx) {
		return printJSON(w, map[string]interface{}{
			"success":     true,
			"seed":        fmt.Sprintf("%x", seed),
			"master_key":  xprv,
			"fingerprint": fmt.Sprintf("%x", fingerprint),
			"network":     net.Name,
		})
	}

	fmt.Fprintf(w, "Seed: %x\n", seed)
	fmt.Fprintf(w, "Master key: %s\n", xprv)
	fmt.Fprintf(w, "Master fingerprint: %x\n", fingerprint)

	return nil
}
