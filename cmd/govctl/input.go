package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/bitcoincommons/govkit/goverr"
	"github.com/bitcoincommons/govkit/keychain"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/tv42/zbase32"
	"github.com/urfave/cli"
	"golang.org/x/term"
)

var passphraseFileFlag = cli.StringFlag{
	Name: "passphrase_file",
	Usage: "Read the key file passphrase from the first line of " +
		"this file instead of prompting for it.",
	TakesFile: true,
}

// parseCommaSeparated splits a comma separated list, trimming blanks and
// dropping empty entries.
func parseCommaSeparated(s string) []string {
	var items []string
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item != "" {
			items = append(items, item)
		}
	}

	return items
}

// parseSignatureString accepts a signature as 128 hex characters or in the
// zbase32 encoding printed by the sign command.
func parseSignatureString(s string) (keychain.Signature, error) {
	s = strings.TrimSpace(s)
	if len(s) == 2*keychain.SignatureLen {
		if _, err := hex.DecodeString(s); err == nil {
			return keychain.SignatureFromHex(s)
		}
	}

	b, err := zbase32.DecodeString(s)
	if err != nil {
		return keychain.Signature{}, goverr.Errorf(
			goverr.ErrInvalidSignatureFormat,
			"signature is neither hex nor zbase32",
		)
	}

	return keychain.ParseSignature(b)
}

// readPassphraseFile returns the first line of the file at path.
func readPassphraseFile(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if i := bytes.IndexAny(b, "\r\n"); i >= 0 {
		b = b[:i]
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("passphrase file %s is empty", path)
	}

	return b, nil
}

// getPassphrase reads the passphrase from --passphrase_file or, on a
// terminal, prompts for it. With confirm set the prompt is repeated and
// both entries must match.
func getPassphrase(ctx *cli.Context, confirm bool) ([]byte, error) {
	if ctx.IsSet(passphraseFileFlag.Name) {
		return readPassphraseFile(ctx.String(passphraseFileFlag.Name))
	}

	if !term.IsTerminal(int(syscall.Stdin)) { // nolint:unconvert
		return nil, fmt.Errorf("no terminal to prompt for a " +
			"passphrase, use --passphrase_file")
	}

	pw, err := readPassword("Passphrase: ")
	if err != nil {
		return nil, err
	}
	if len(pw) == 0 {
		return nil, fmt.Errorf("passphrase must not be empty")
	}

	if confirm {
		again, err := readPassword("Confirm passphrase: ")
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(pw, again) {
			return nil, fmt.Errorf("passphrases do not match")
		}
	}

	return pw, nil
}

// optionalPassphrase returns a passphrase only if the secret needs one.
func optionalPassphrase(ctx *cli.Context,
	needed bool) (fn.Option[[]byte], error) {

	if !needed {
		return fn.None[[]byte](), nil
	}

	pw, err := getPassphrase(ctx, false)
	if err != nil {
		return fn.None[[]byte](), err
	}

	return fn.Some(pw), nil
}
