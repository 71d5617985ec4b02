package main

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/bitcoincommons/govkit/bip32"
	"github.com/bitcoincommons/govkit/bip44"
	"github.com/bitcoincommons/govkit/keychain"
	"github.com/bitcoincommons/govkit/keyfile"
	"github.com/bitcoincommons/govkit/mnemonic"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/urfave/cli"
)

var deriveCommand = cli.Command{
	Name:     "derive",
	Category: "Keys",
	Usage:    "Derive BIP 44 keys.",
	Description: `
	Derive keys along m/44'/coin'/account'/change/index from a mnemonic,
	a raw seed or a master xprv. Given an account level xpub instead,
	only public keys below that account are derived.

	The path is either given in full with --path or assembled from
	--coin, --account, --change and --index. The coin type defaults to
	0 on mainnet and 1 on every test network.

	With --output the first derived key is stored as a key file that
	can be used with the sign command.
	`,
	Flags: []cli.Flag{
		mnemonicFlag,
		cli.StringFlag{
			Name:  "passphrase",
			Usage: "the optional BIP 39 passphrase of --mnemonic",
		},
		cli.StringFlag{
			Name:  "seed",
			Usage: "a hex encoded BIP 32 seed",
		},
		cli.StringFlag{
			Name:  "xprv",
			Usage: "an encoded master private key",
		},
		cli.StringFlag{
			Name:  "xpub",
			Usage: "an encoded account level public key",
		},
		cli.StringFlag{
			Name:  "path",
			Usage: "the full path, e.g. m/44'/0'/0'/0/0",
		},
		cli.Uint64Flag{
			Name:  "coin",
			Usage: "the SLIP 44 coin type",
		},
		cli.Uint64Flag{
			Name:  "account",
			Usage: "the account number",
		},
		cli.Uint64Flag{
			Name:  "change",
			Usage: "0 for the external chain, 1 for the change chain",
		},
		cli.Uint64Flag{
			Name:  "index",
			Usage: "the first address index",
		},
		cli.IntFlag{
			Name:  "count",
			Usage: "the number of consecutive keys to derive",
			Value: 1,
		},
		cli.BoolFlag{
			Name:  "show_private",
			Usage: "also print the secret keys",
		},
		cli.StringFlag{
			Name:      "output, o",
			Usage:     "write the first derived key to this key file",
			TakesFile: true,
		},
		cli.BoolFlag{
			Name:  "encrypt",
			Usage: "seal the secret key of --output under a passphrase",
		},
		passphraseFileFlag,
	},
	Action: actionDecorator(derive),
}

// derivedKey is a single row of derive output.
type derivedKey struct {
	Path      string `json:"path"`
	PublicKey string `json:"public_key"`
	SecretKey string `json:"secret_key,omitempty"`

	keypair *keychain.Keypair
}

// masterFromFlags returns the master key given by exactly one of
// --mnemonic, --seed or --xprv. It returns None if --xpub was given
// instead.
func masterFromFlags(ctx *cli.Context,
	net *chaincfg.Params) (fn.Option[bip32.ExtendedPrivateKey], error) {

	none := fn.None[bip32.ExtendedPrivateKey]()

	var sources int
	for _, name := range []string{"mnemonic", "seed", "xprv", "xpub"} {
		if ctx.IsSet(name) {
			sources++
		}
	}
	if sources != 1 {
		return none, fmt.Errorf("exactly one of --mnemonic, --seed, " +
			"--xprv or --xpub is required")
	}

	var (
		master bip32.ExtendedPrivateKey
		err    error
	)
	switch {
	case ctx.IsSet("mnemonic"):
		m := mnemonic.Parse(ctx.String("mnemonic"))
		if err := mnemonic.Validate(m); err != nil {
			return none, err
		}
		master, err = bip32.NewMaster(
			mnemonic.ToSeed(m, ctx.String("passphrase")),
		)

	case ctx.IsSet("seed"):
		seed, decodeErr := hex.DecodeString(ctx.String("seed"))
		if decodeErr != nil {
			return none, fmt.Errorf("invalid seed: %w", decodeErr)
		}
		master, err = bip32.NewMaster(seed)

	case ctx.IsSet("xprv"):
		master, err = bip32.ParseExtendedPrivateKey(
			ctx.String("xprv"), net,
		)
		if err == nil && master.Depth != 0 {
			err = fmt.Errorf("--xprv must be a master key, got "+
				"depth %d", master.Depth)
		}

	default:
		return none, nil
	}
	if err != nil {
		return none, err
	}

	return fn.Some(master), nil
}

// pathFromFlags returns the path of the first key to derive.
func pathFromFlags(ctx *cli.Context, net *chaincfg.Params) (bip44.Path,
	error) {

	if ctx.IsSet("path") {
		return bip44.ParsePath(ctx.String("path"))
	}

	coin := bip44.CoinTypeForNet(net)
	if ctx.IsSet("coin") {
		coin = bip44.CoinType(ctx.Uint64("coin"))
	}

	// Wider values would be truncated silently below.
	for _, name := range []string{"coin", "account", "change", "index"} {
		if ctx.Uint64(name) > uint64(^uint32(0)) {
			return bip44.Path{}, fmt.Errorf("--%s out of range",
				name)
		}
	}

	path := bip44.NewPath(
		coin, uint32(ctx.Uint64("account")),
		bip44.ChangeChain(ctx.Uint64("change")),
		uint32(ctx.Uint64("index")),
	)

	return path, path.Validate()
}

// deriveKeys derives count keys starting at path. If master is None the
// keys are derived from the account xpub in --xpub.
func deriveKeys(ctx *cli.Context, net *chaincfg.Params,
	master fn.Option[bip32.ExtendedPrivateKey], path bip44.Path,
	count int) ([]derivedKey, error) {

	var acct bip32.ExtendedPublicKey
	if master.IsNone() {
		var err error
		acct, err = bip32.ParseExtendedPublicKey(
			ctx.String("xpub"), net,
		)
		if err != nil {
			return nil, err
		}
	}

	keys := make([]derivedKey, 0, count)
	for i := 0; i < count; i++ {
		p := path
		p.AddressIndex += uint32(i)
		if bip32.IsHardened(p.AddressIndex) {
			return nil, fmt.Errorf("address index %d out of range",
				p.AddressIndex)
		}

		var (
			key derivedKey
			err error
		)
		if master.IsSome() {
			key, err = privateChild(master.UnsafeFromSome(), p)
		} else {
			key, err = publicChild(acct, p)
		}
		if err != nil {
			return nil, err
		}

		keys = append(keys, key)
	}

	return keys, nil
}

func publicChild(acct bip32.ExtendedPublicKey, p bip44.Path) (derivedKey,
	error) {

	child, err := bip44.DeriveFromAccountXpub(
		acct, p.Change, p.AddressIndex,
	)
	if err != nil {
		return derivedKey{}, err
	}

	return derivedKey{
		Path:      fmt.Sprintf("%d/%d", uint32(p.Change), p.AddressIndex),
		PublicKey: child.PublicKey.String(),
	}, nil
}

func privateChild(master bip32.ExtendedPrivateKey,
	p bip44.Path) (derivedKey, error) {

	child, err := p.Derive(master)
	if err != nil {
		return derivedKey{}, err
	}
	kp, err := child.Keypair()
	if err != nil {
		return derivedKey{}, err
	}

	return derivedKey{
		Path:      p.String(),
		PublicKey: kp.PublicKey().String(),
		SecretKey: hex.EncodeToString(kp.SecretKeyBytes()),
		keypair:   kp,
	}, nil
}

func derive(ctx *cli.Context) error {
	net := getConfig(ctx).ActiveNetParams

	count := ctx.Int("count")
	if count < 1 {
		return fmt.Errorf("--count must be at least 1")
	}

	master, err := masterFromFlags(ctx, net)
	if err != nil {
		return err
	}
	path, err := pathFromFlags(ctx, net)
	if err != nil {
		return err
	}

	keys, err := deriveKeys(ctx, net, master, path, count)
	if err != nil {
		return err
	}

	var accountXpub string
	if master.IsSome() {
		wallet := bip44.NewWallet(master.UnsafeFromSome(), path.CoinType)
		acct, err := wallet.AccountXpub(path.Account)
		if err != nil {
			return err
		}
		accountXpub = acct.Encode(net)
	}

	output := ctx.String("output")
	if output != "" {
		if err := writeDerivedKey(ctx, output, keys[0]); err != nil {
			return err
		}
	}

	log.Debugf("Derived %d keys starting at %v", len(keys), keys[0].Path)

	showPrivate := ctx.Bool("show_private")
	if !showPrivate {
		for i := range keys {
			keys[i].SecretKey = ""
		}
	}

	w := stdout(ctx)
	if jsonOutput(ctx) {
		resp := map[string]interface{}{
			"success": true,
			"network": net.Name,
			"keys":    keys,
		}
		if accountXpub != "" {
			resp["account_xpub"] = accountXpub
		}
		if output != "" {
			resp["output_file"] = output
		}

		return printJSON(w, resp)
	}

	if accountXpub != "" {
		fmt.Fprintf(w, "Account xpub: %s\n", accountXpub)
	}

	header := []interface{}{"Path", "Public key"}
	if showPrivate {
		header = append(header, "Secret key")
	}
	t := newTable(w, header...)
	for _, key := range keys {
		row := []interface{}{key.Path, key.PublicKey}
		if showPrivate {
			row = append(row, key.SecretKey)
		}
		t.AppendRow(row)
	}
	t.Render()

	if output != "" {
		fmt.Fprintf(w, "Saved %s to: %s\n", keys[0].Path, output)
	}

	return nil
}

// writeDerivedKey stores key as a key file usable for signing.
func writeDerivedKey(ctx *cli.Context, output string, key derivedKey) error {
	if key.keypair == nil {
		return fmt.Errorf("--output needs a private key source")
	}
	if _, err := os.Stat(output); err == nil {
		return fmt.Errorf("%s already exists", output)
	}

	passphrase := fn.None[[]byte]()
	if ctx.Bool("encrypt") {
		pw, err := getPassphrase(ctx, true)
		if err != nil {
			return err
		}
		passphrase = fn.Some(pw)
	}

	kf, err := keyfile.NewKeyFile(
		key.keypair, passphrase, clock.NewDefaultClock(),
	)
	if err != nil {
		return err
	}

	return keyfile.WriteKeyFile(output, kf)
}
