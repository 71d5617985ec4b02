package main

import (
	"fmt"

	"github.com/bitcoincommons/govkit/keyfile"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/tv42/zbase32"
	"github.com/urfave/cli"
)

var signFlags = []cli.Flag{
	cli.StringFlag{
		Name:      "key, k",
		Usage:     "the key file holding the signing key",
		TakesFile: true,
	},
	cli.StringFlag{
		Name:      "output, o",
		Value:     "signature.json",
		Usage:     "the signature file to write",
		TakesFile: true,
	},
	passphraseFileFlag,
}

var signCommand = cli.Command{
	Name:     "sign",
	Category: "Governance",
	Usage:    "Sign a governance message or release artifact.",
	Description: `
	Sign the canonical encoding of a release, module approval or budget
	decision message, or the attestation of a release artifact, with the
	key in --key and write the signature to --output.
	`,
	Subcommands: append(
		messageCommands("sign", signFlags, signMessage),
		artifactCommand("sign", signFlags, signMessage),
	),
}

func signMessage(ctx *cli.Context, msg signable) error {
	if err := requireFlags(ctx, "key"); err != nil {
		return err
	}

	kf, err := keyfile.ReadKeyFile(ctx.String("key"))
	if err != nil {
		return err
	}
	passphrase, err := optionalPassphrase(ctx, kf.Encrypted())
	if err != nil {
		return err
	}
	kp, err := kf.Keypair(passphrase)
	if err != nil {
		return err
	}

	sig, err := kp.Sign(msg.SigningBytes())
	if err != nil {
		return err
	}

	output := ctx.String("output")
	sf := keyfile.NewSignatureFile(sig, clock.NewDefaultClock())
	if err := keyfile.WriteSignatureFile(output, sf); err != nil {
		return err
	}

	log.Infof("Signed %q with key %v", msg.Description(), kp.PublicKey())

	w := stdout(ctx)
	if jsonOutput(ctx) {
		return printJSON(w, map[string]interface{}{
			"success":           true,
			"message":           msg.Description(),
			"public_key":        kp.PublicKey().String(),
			"signature":         sig.String(),
			"signature_zbase32": zbase32.EncodeToString(sig[:]),
			"output_file":       output,
		})
	}

	fmt.Fprintln(w, "Signed message successfully")
	fmt.Fprintf(w, "Message: %s\n", msg.Description())
	fmt.Fprintf(w, "Signature: %v\n", sig)
	fmt.Fprintf(w, "Signature (zbase32): %s\n",
		zbase32.EncodeToString(sig[:]))
	fmt.Fprintf(w, "Saved to: %s\n", output)

	return nil
}
