package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/bitcoincommons/govkit/govcfg"
	"github.com/bitcoincommons/govkit/goverr"
	"github.com/bitcoincommons/govkit/keyfile"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli"
)

// jsonOutput reports whether command output should be JSON.
func jsonOutput(ctx *cli.Context) bool {
	return getConfig(ctx).Format == govcfg.FormatJSON
}

func stdout(ctx *cli.Context) io.Writer {
	if ctx.App.Writer != nil {
		return ctx.App.Writer
	}

	return os.Stdout
}

func stderr(ctx *cli.Context) io.Writer {
	if ctx.App.ErrWriter != nil {
		return ctx.App.ErrWriter
	}

	return os.Stderr
}

// printJSON writes resp as indented JSON followed by a newline.
func printJSON(w io.Writer, resp interface{}) error {
	b, err := json.Marshal(resp)
	if err != nil {
		return err
	}

	var out bytes.Buffer
	if err := json.Indent(&out, b, "", "    "); err != nil {
		return err
	}
	out.WriteString("\n")

	_, err = out.WriteTo(w)
	return err
}

// newTable returns a table that renders to w in the light box style.
func newTable(w io.Writer, header ...interface{}) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row(header))

	return t
}

// errorHint adds advice for the errors a user can fix from the command
// line.
func errorHint(err error) error {
	switch {
	case errors.Is(err, keyfile.ErrPassphraseRequired):
		return fmt.Errorf("%w (pass --passphrase_file or run in a "+
			"terminal)", err)

	case errors.Is(err, keyfile.ErrAuthFailed):
		return fmt.Errorf("%w (wrong passphrase?)", err)

	case errors.Is(err, os.ErrNotExist):
		return fmt.Errorf("file not found: %w", err)

	case errors.Is(err, goverr.ErrInvalidMultisig):
		return fmt.Errorf("%w (the threshold must be between 1 and "+
			"the number of public keys)", err)
	}

	return err
}

// actionDecorator is used to add additional information and error handling
// to command actions.
func actionDecorator(f func(*cli.Context) error) func(*cli.Context) error {
	return func(ctx *cli.Context) error {
		err := f(ctx)
		if err == nil || errors.Is(err, errReported) {
			return err
		}

		err = errorHint(err)
		log.Debugf("Command %v failed: %v", ctx.Command.FullName(), err)

		if !jsonOutput(ctx) {
			return err
		}

		// In JSON mode the error is reported as an object so that
		// scripts can parse every outcome.
		perr := printJSON(stderr(ctx), map[string]interface{}{
			"success": false,
			"error":   err.Error(),
		})
		if perr != nil {
			return err
		}

		return errReported
	}
}
