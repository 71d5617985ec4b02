package main

import (
	"fmt"
	"os"

	"github.com/bitcoincommons/govkit/keychain"
	"github.com/bitcoincommons/govkit/keyfile"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/urfave/cli"
)

var keygenCommand = cli.Command{
	Name:     "keygen",
	Category: "Keys",
	Usage:    "Generate a governance keypair.",
	Description: `
	Generate a new secp256k1 keypair and store it as a JSON key file.

	With --seed the secret key is taken from the first 32 bytes of the
	given string instead of being drawn at random. With --encrypt the
	secret is sealed under a passphrase.
	`,
	Flags: []cli.Flag{
		cli.StringFlag{
			Name:      "output, o",
			Value:     "governance.key",
			Usage:     "the key file to write",
			TakesFile: true,
		},
		cli.StringFlag{
			Name: "seed",
			Usage: "derive the key from this string, which must " +
				"be at least 32 bytes long",
		},
		cli.BoolFlag{
			Name:  "show_private",
			Usage: "also print the secret key",
		},
		cli.BoolFlag{
			Name:  "encrypt",
			Usage: "seal the secret key under a passphrase",
		},
		cli.BoolFlag{
			Name:  "force",
			Usage: "overwrite an existing key file",
		},
		passphraseFileFlag,
	},
	Action: actionDecorator(keygen),
}

// keypairFromSeedString uses the first 32 bytes of seed as the secret key.
func keypairFromSeedString(seed string) (*keychain.Keypair, error) {
	if len(seed) < keychain.SecretKeyLen {
		return nil, fmt.Errorf("seed must be at least %d bytes",
			keychain.SecretKeyLen)
	}

	return keychain.KeypairFromSecret([]byte(seed)[:keychain.SecretKeyLen])
}

func keygen(ctx *cli.Context) error {
	output := ctx.String("output")
	if _, err := os.Stat(output); err == nil && !ctx.Bool("force") {
		return fmt.Errorf("%s already exists, use --force to "+
			"overwrite it", output)
	}

	var (
		kp  *keychain.Keypair
		err error
	)
	if ctx.IsSet("seed") {
		kp, err = keypairFromSeedString(ctx.String("seed"))
	} else {
		kp, err = keychain.GenerateKeypair()
	}
	if err != nil {
		return err
	}

	passphrase := fn.None[[]byte]()
	if ctx.Bool("encrypt") {
		pw, err := getPassphrase(ctx, true)
		if err != nil {
			return err
		}
		passphrase = fn.Some(pw)
	}

	kf, err := keyfile.NewKeyFile(kp, passphrase, clock.NewDefaultClock())
	if err != nil {
		return err
	}
	if err := keyfile.WriteKeyFile(output, kf); err != nil {
		return err
	}

	log.Infof("Generated key %v", kp.PublicKey())

	return printKeypair(ctx, kp, output, kf.Encrypted())
}

func printKeypair(ctx *cli.Context, kp *keychain.Keypair, output string,
	encrypted bool) error {

	showPrivate := ctx.Bool("show_private")
	w := stdout(ctx)

	if jsonOutput(ctx) {
		resp := map[string]interface{}{
			"success":     true,
			"public_key":  kp.PublicKey().String(),
			"output_file": output,
			"encrypted":   encrypted,
		}
		if showPrivate {
			resp["secret_key"] = fmt.Sprintf("%x",
				kp.SecretKeyBytes())
		}

		return printJSON(w, resp)
	}

	fmt.Fprintln(w, "Generated governance keypair")
	fmt.Fprintf(w, "Public key: %v\n", kp.PublicKey())
	if showPrivate {
		fmt.Fprintf(w, "Secret key: %x\n", kp.SecretKeyBytes())
	}
	fmt.Fprintf(w, "Encrypted: %v\n", encrypted)
	fmt.Fprintf(w, "Saved to: %s\n", output)

	return nil
}
