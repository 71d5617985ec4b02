package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/bitcoincommons/govkit/keychain"
	"github.com/bitcoincommons/govkit/keyfile"
	"github.com/bitcoincommons/govkit/multisig"
	"github.com/urfave/cli"
)

var verifyFlags = []cli.Flag{
	cli.StringFlag{
		Name: "signatures, s",
		Usage: "comma separated signatures, each either a signature " +
			"file or a hex or zbase32 encoded signature",
	},
	cli.StringFlag{
		Name: "pubkeys, p",
		Usage: "comma separated maintainer keys, each either a key " +
			"file or a hex encoded public key",
	},
	cli.StringFlag{
		Name: "threshold, t",
		Usage: "the required threshold as <threshold>-of-<total>; " +
			"without it a single valid signature is enough",
	},
}

var verifyCommand = cli.Command{
	Name:     "verify",
	Category: "Governance",
	Usage:    "Verify signatures on a governance message or artifact.",
	Description: `
	Check the given signatures of a release, module approval or budget
	decision message against the maintainer keys and report whether the
	threshold is met.

	Each key is credited for at most one signature, so a signature given
	twice counts once towards valid signatures. Signatures that match
	none of the keys are reported as invalid.

	For a release artifact the check passes only if the threshold is met
	and no signature is invalid. A failed artifact check exits with
	status 1.
	`,
	Subcommands: append(
		messageCommands("verify", verifyFlags, verifyMessage),
		artifactCommand("verify", verifyFlags, verifyMessage),
	),
}

// verifyResult is the outcome of a verify command.
type verifyResult struct {
	Success           bool   `json:"success"`
	Message           string `json:"message"`
	FilePath          string `json:"file_path,omitempty"`
	FileHash          string `json:"file_hash,omitempty"`
	Threshold         string `json:"threshold,omitempty"`
	ValidSignatures   int    `json:"valid_signatures"`
	InvalidSignatures int    `json:"invalid_signatures"`
	ThresholdMet      bool   `json:"threshold_met"`
}

// loadSignature reads a signature from a file, falling back to parsing the
// argument itself.
func loadSignature(arg string) (keychain.Signature, error) {
	sig, _, err := keyfile.ReadSignatureFile(arg)
	if err == nil {
		return sig, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return sig, err
	}

	return parseSignatureString(arg)
}

// loadPublicKey reads a key file, falling back to parsing the argument as a
// hex encoded key.
func loadPublicKey(arg string) (keychain.PublicKey, error) {
	if _, err := os.Stat(arg); err == nil {
		return keyfile.ReadPublicKey(arg)
	}

	return keychain.PublicKeyFromHex(arg)
}

// countInvalid returns how many signatures validate against none of keys.
func countInvalid(msg []byte, sigs []keychain.Signature,
	keys []keychain.PublicKey) int {

	var invalid int
	for i, sig := range sigs {
		matched := false
		for _, key := range keys {
			ok, err := keychain.Verify(sig, msg, key)
			if err != nil {
				log.Debugf("Signature %d: %v", i, err)
				break
			}
			if ok {
				matched = true
				break
			}
		}
		if !matched {
			invalid++
		}
	}

	return invalid
}

func verifyMessage(ctx *cli.Context, msg signable) error {
	if err := requireFlags(ctx, "signatures", "pubkeys"); err != nil {
		return err
	}

	var sigs []keychain.Signature
	for _, arg := range parseCommaSeparated(ctx.String("signatures")) {
		sig, err := loadSignature(arg)
		if err != nil {
			return fmt.Errorf("signature %s: %w", arg, err)
		}
		sigs = append(sigs, sig)
	}

	var keys []keychain.PublicKey
	for _, arg := range parseCommaSeparated(ctx.String("pubkeys")) {
		key, err := loadPublicKey(arg)
		if err != nil {
			return fmt.Errorf("public key %s: %w", arg, err)
		}
		keys = append(keys, key)
	}

	if len(sigs) == 0 || len(keys) == 0 {
		return fmt.Errorf("at least one signature and one public key " +
			"are required")
	}

	// Without a threshold a single credited signature is enough.
	threshold, total := 1, len(keys)
	if ctx.IsSet("threshold") {
		var err error
		threshold, total, err = multisig.ParseThreshold(
			ctx.String("threshold"),
		)
		if err != nil {
			return err
		}
	}

	policy, err := multisig.New(threshold, total, keys)
	if err != nil {
		return err
	}

	data := msg.SigningBytes()
	res := verifyResult{
		Success: true,
		Message: msg.Description(),
		ValidSignatures: len(
			policy.CollectValidSignatures(data, sigs),
		),
		InvalidSignatures: countInvalid(data, sigs, keys),
		ThresholdMet:      policy.Verify(data, sigs),
	}
	if ctx.IsSet("threshold") {
		res.Threshold = policy.String()
	}

	art, isArtifact := msg.(*attestedArtifact)
	if isArtifact {
		res.FilePath = art.path
		res.FileHash = art.att.DigestHex()
		res.Success = res.ThresholdMet && res.InvalidSignatures == 0
	}

	log.Infof("Verified %q: %d valid, %d invalid, threshold met: %v",
		res.Message, res.ValidSignatures, res.InvalidSignatures,
		res.ThresholdMet)

	if err := printVerifyResult(ctx, res, isArtifact); err != nil {
		return err
	}
	if !res.Success {
		return errReported
	}

	return nil
}

func printVerifyResult(ctx *cli.Context, res verifyResult,
	isArtifact bool) error {

	w := stdout(ctx)
	if jsonOutput(ctx) {
		return printJSON(w, res)
	}

	fmt.Fprintln(w, "Verification Results")
	fmt.Fprintf(w, "Message: %s\n", res.Message)
	if res.FilePath != "" {
		fmt.Fprintf(w, "File: %s\n", res.FilePath)
		fmt.Fprintf(w, "File hash: %s\n", res.FileHash)
	}
	if res.Threshold != "" {
		fmt.Fprintf(w, "Threshold: %s\n", res.Threshold)
	}
	fmt.Fprintf(w, "Valid signatures: %d\n", res.ValidSignatures)
	fmt.Fprintf(w, "Invalid signatures: %d\n", res.InvalidSignatures)
	fmt.Fprintf(w, "Threshold met: %v\n", res.ThresholdMet)

	if isArtifact {
		if res.Success {
			fmt.Fprintln(w, "Verification PASSED")
		} else {
			fmt.Fprintln(w, "Verification FAILED")
		}
	}

	return nil
}
