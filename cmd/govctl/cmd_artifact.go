package main

import (
	"fmt"

	"github.com/bitcoincommons/govkit/artifact"
	"github.com/urfave/cli"
)

// attestedArtifact is an artifact attestation ready to be signed or
// verified.
type attestedArtifact struct {
	path    string
	att     *artifact.Attestation
	encoded []byte
}

// SigningBytes returns the encoded attestation.
func (a *attestedArtifact) SigningBytes() []byte {
	return a.encoded
}

// Description renders the attestation for humans.
func (a *attestedArtifact) Description() string {
	return a.att.Description()
}

var artifactFileFlag = cli.StringFlag{
	Name:      "file, f",
	Usage:     "the artifact to hash",
	TakesFile: true,
}

// artifactAction hashes the file named by --file, lets fill set the
// optional fields and hands the attestation to action.
func artifactAction(kind artifact.Kind, action messageAction,
	fill func(*cli.Context, *artifact.Attestation)) func(*cli.Context) error {

	return actionDecorator(func(ctx *cli.Context) error {
		if err := requireFlags(ctx, "file"); err != nil {
			return err
		}

		path := ctx.String("file")
		att, err := artifact.New(kind, path)
		if err != nil {
			return err
		}
		fill(ctx, att)

		encoded, err := att.SigningBytes()
		if err != nil {
			return err
		}

		return action(ctx, &attestedArtifact{
			path:    path,
			att:     att,
			encoded: encoded,
		})
	})
}

var (
	binaryFlags = []cli.Flag{
		cli.StringFlag{
			Name:  "type",
			Usage: "consensus, protocol or application",
			Value: artifact.BinaryApplication,
		},
		cli.StringFlag{
			Name:  "version",
			Usage: "the version of the binary",
		},
		cli.StringFlag{
			Name:  "commit",
			Usage: "the commit the binary is built from",
		},
	}

	bundleFlags = []cli.Flag{
		cli.StringFlag{
			Name:  "source_hash",
			Usage: "hex SHA-256 of the source tree",
		},
		cli.StringFlag{
			Name:  "build_config_hash",
			Usage: "hex SHA-256 of the build configuration",
		},
		cli.StringFlag{
			Name:  "spec_hash",
			Usage: "hex SHA-256 of the specification",
		},
	}

	checksumsFlags = []cli.Flag{
		cli.StringFlag{
			Name:  "version",
			Usage: "the release the checksums belong to",
		},
	}
)

func fillBinary(ctx *cli.Context, a *artifact.Attestation) {
	a.BinaryType = ctx.String("type")
	a.Version = ctx.String("version")
	a.Commit = ctx.String("commit")
}

func fillBundle(ctx *cli.Context, a *artifact.Attestation) {
	a.SourceHash = ctx.String("source_hash")
	a.BuildConfigHash = ctx.String("build_config_hash")
	a.SpecHash = ctx.String("spec_hash")
}

func fillChecksums(ctx *cli.Context, a *artifact.Attestation) {
	a.Version = ctx.String("version")
}

// artifactCommand returns the artifact command of sign or verify. Its
// subcommands attest a binary, a verification bundle or a checksum file.
func artifactCommand(verb string, extraFlags []cli.Flag,
	action messageAction) cli.Command {

	withExtra := func(flags []cli.Flag) []cli.Flag {
		all := []cli.Flag{artifactFileFlag}
		all = append(all, flags...)
		return append(all, extraFlags...)
	}

	return cli.Command{
		Name:  "artifact",
		Usage: fmt.Sprintf("%s the SHA-256 digest of a release file", verb),
		Description: `
	The attestation covers the digest of --file together with the
	metadata given as flags, so verifying requires the same flags that
	were used for signing.
	`,
		Subcommands: []cli.Command{
			{
				Name:  "binary",
				Usage: fmt.Sprintf("%s a release binary", verb),
				Flags: withExtra(binaryFlags),
				Action: artifactAction(
					artifact.KindBinary, action, fillBinary,
				),
			},
			{
				Name:  "bundle",
				Usage: fmt.Sprintf("%s a verification bundle", verb),
				Flags: withExtra(bundleFlags),
				Action: artifactAction(
					artifact.KindBundle, action, fillBundle,
				),
			},
			{
				Name:  "checksums",
				Usage: fmt.Sprintf("%s a SHA256SUMS file", verb),
				Flags: withExtra(checksumsFlags),
				Action: artifactAction(
					artifact.KindChecksums, action,
					fillChecksums,
				),
			},
		},
	}
}
