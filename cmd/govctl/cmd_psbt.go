package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"github.com/bitcoincommons/govkit/psbtcodec"
	"github.com/btcsuite/btcd/wire"
	"github.com/urfave/cli"
)

var psbtOutputFlag = cli.StringFlag{
	Name:      "output, o",
	Usage:     "write the base64 encoded packet to this file",
	TakesFile: true,
}

var psbtCommand = cli.Command{
	Name:     "psbt",
	Category: "Transactions",
	Usage:    "Work with partially signed transactions.",
	Description: `
	Create, inspect, finalize, combine and extract partially signed
	bitcoin transactions. Every command that reads a packet accepts a
	file holding the raw or base64 encoded packet, or the base64 string
	itself.
	`,
	Subcommands: []cli.Command{
		{
			Name:      "create",
			Usage:     "Create a packet from an unsigned transaction.",
			ArgsUsage: "tx_hex",
			Flags:     []cli.Flag{psbtOutputFlag},
			Action:    actionDecorator(createPsbt),
		},
		{
			Name:      "decode",
			Usage:     "Show the entries of a packet.",
			ArgsUsage: "psbt",
			Action:    actionDecorator(decodePsbt),
		},
		{
			Name:      "finalize",
			Usage:     "Set the final scripts of an input.",
			ArgsUsage: "psbt",
			Flags: []cli.Flag{
				cli.IntFlag{
					Name:  "input",
					Usage: "the index of the input to finalize",
				},
				cli.StringFlag{
					Name:  "scriptsig",
					Usage: "the hex encoded final script sig",
				},
				cli.StringFlag{
					Name: "witness",
					Usage: "the comma separated, hex encoded " +
						"final witness items",
				},
				psbtOutputFlag,
			},
			Action: actionDecorator(finalizePsbt),
		},
		{
			Name:      "combine",
			Usage:     "Merge the entries of several packets.",
			ArgsUsage: "psbt psbt...",
			Flags:     []cli.Flag{psbtOutputFlag},
			Action:    actionDecorator(combinePsbt),
		},
		{
			Name:      "extract",
			Usage:     "Extract the transaction of a finalized packet.",
			ArgsUsage: "psbt",
			Action:    actionDecorator(extractPsbt),
		},
	},
}

// readPacket loads a packet from a file or from a base64 argument. Files
// may hold either encoding.
func readPacket(arg string) (*psbtcodec.Packet, error) {
	data := []byte(arg)
	if b, err := os.ReadFile(arg); err == nil {
		data = b
	}

	if bytes.HasPrefix(data, psbtcodec.Magic[:]) {
		return psbtcodec.Deserialize(data)
	}

	return psbtcodec.NewFromRawBytes(
		bytes.NewReader(bytes.TrimSpace(data)), true,
	)
}

// packetArg reads the packet given as the single positional argument.
func packetArg(ctx *cli.Context) (*psbtcodec.Packet, error) {
	if ctx.NArg() != 1 {
		return nil, fmt.Errorf("expected a single packet argument")
	}

	return readPacket(ctx.Args().First())
}

// printPacket writes the base64 encoding of p to --output, if set, and
// reports it.
func printPacket(ctx *cli.Context, p *psbtcodec.Packet) error {
	encoded, err := p.B64Encode()
	if err != nil {
		return err
	}

	output := ctx.String("output")
	if output != "" {
		err := os.WriteFile(output, []byte(encoded+"\n"), 0644)
		if err != nil {
			return err
		}
	}

	w := stdout(ctx)
	if jsonOutput(ctx) {
		resp := map[string]interface{}{
			"success":   true,
			"psbt":      encoded,
			"finalized": p.IsFinalized(),
		}
		if output != "" {
			resp["output_file"] = output
		}

		return printJSON(w, resp)
	}

	fmt.Fprintln(w, encoded)

	return nil
}

func createPsbt(ctx *cli.Context) error {
	if ctx.NArg() != 1 {
		return fmt.Errorf("expected the hex encoded transaction")
	}

	raw, err := hex.DecodeString(ctx.Args().First())
	if err != nil {
		return fmt.Errorf("invalid transaction hex: %w", err)
	}

	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("unable to parse transaction: %w", err)
	}

	p, err := psbtcodec.NewFromTx(tx)
	if err != nil {
		return err
	}

	log.Debugf("Created packet for %v", tx.TxHash())

	return printPacket(ctx, p)
}

// psbtEntry is a single key-value pair of a decoded packet.
type psbtEntry struct {
	Section string `json:"section"`
	Index   int    `json:"index"`
	Key     string `json:"key"`
	Value   string `json:"value"`
}

func mapEntries(section string, index int, m psbtcodec.Map) []psbtEntry {
	var entries []psbtEntry
	for _, key := range m.Keys() {
		entries = append(entries, psbtEntry{
			Section: section,
			Index:   index,
			Key:     hex.EncodeToString(key),
			Value:   hex.EncodeToString(m.Get(key).UnwrapOr(nil)),
		})
	}

	return entries
}

func decodePsbt(ctx *cli.Context) error {
	p, err := packetArg(ctx)
	if err != nil {
		return err
	}

	entries := mapEntries("global", 0, p.Global)
	for i, input := range p.Inputs {
		entries = append(entries, mapEntries("input", i, input)...)
	}
	for i, output := range p.Outputs {
		entries = append(entries, mapEntries("output", i, output)...)
	}

	var txid string
	if tx, err := p.MsgTx(); err == nil {
		txid = tx.TxHash().String()
	}

	// The packet may hold entries btcutil's stricter parser refuses.
	_, stdErr := p.ToStandard()
	bip174Valid := stdErr == nil
	if stdErr != nil {
		log.Debugf("Packet is not BIP 174 compliant: %v", stdErr)
	}

	w := stdout(ctx)
	if jsonOutput(ctx) {
		return printJSON(w, map[string]interface{}{
			"success":      true,
			"txid":         txid,
			"inputs":       len(p.Inputs),
			"outputs":      len(p.Outputs),
			"finalized":    p.IsFinalized(),
			"bip174_valid": bip174Valid,
			"entries":      entries,
		})
	}

	if txid != "" {
		fmt.Fprintf(w, "Transaction: %s\n", txid)
	}
	fmt.Fprintf(w, "Inputs: %d, outputs: %d\n", len(p.Inputs),
		len(p.Outputs))
	fmt.Fprintf(w, "Finalized: %v\n", p.IsFinalized())
	fmt.Fprintf(w, "BIP 174 valid: %v\n", bip174Valid)

	t := newTable(w, "Section", "Index", "Key", "Value")
	for _, e := range entries {
		t.AppendRow([]interface{}{e.Section, e.Index, e.Key, e.Value})
	}
	t.Render()

	return nil
}

func finalizePsbt(ctx *cli.Context) error {
	p, err := packetArg(ctx)
	if err != nil {
		return err
	}
	if err := requireFlags(ctx, "input"); err != nil {
		return err
	}

	scriptSig, err := hex.DecodeString(ctx.String("scriptsig"))
	if err != nil {
		return fmt.Errorf("invalid script sig: %w", err)
	}

	var witness wire.TxWitness
	for _, item := range parseCommaSeparated(ctx.String("witness")) {
		b, err := hex.DecodeString(item)
		if err != nil {
			return fmt.Errorf("invalid witness item %q: %w",
				item, err)
		}
		witness = append(witness, b)
	}

	err = p.FinalizeInput(ctx.Int("input"), scriptSig, witness)
	if err != nil {
		return err
	}

	return printPacket(ctx, p)
}

func combinePsbt(ctx *cli.Context) error {
	if ctx.NArg() < 2 {
		return fmt.Errorf("expected at least two packets")
	}

	var combined *psbtcodec.Packet
	for _, arg := range ctx.Args() {
		p, err := readPacket(arg)
		if err != nil {
			return fmt.Errorf("%s: %w", shorten(arg), err)
		}

		if combined == nil {
			combined = p
			continue
		}
		if err := combined.Combine(p); err != nil {
			return err
		}
	}

	return printPacket(ctx, combined)
}

func extractPsbt(ctx *cli.Context) error {
	p, err := packetArg(ctx)
	if err != nil {
		return err
	}

	tx, err := p.ExtractMsgTx()
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return err
	}
	txHex := hex.EncodeToString(buf.Bytes())

	w := stdout(ctx)
	if jsonOutput(ctx) {
		return printJSON(w, map[string]interface{}{
			"success": true,
			"txid":    tx.TxHash().String(),
			"tx":      txHex,
		})
	}

	fmt.Fprintln(w, txHex)

	return nil
}

// shorten trims long base64 arguments for error messages.
func shorten(arg string) string {
	const maxLen = 32
	if len(arg) <= maxLen {
		return arg
	}

	return strings.TrimSpace(arg[:maxLen]) + "..."
}
