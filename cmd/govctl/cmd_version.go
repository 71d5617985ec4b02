package main

import (
	"fmt"

	"github.com/bitcoincommons/govkit/build"
	"github.com/urfave/cli"
)

var versionCommand = cli.Command{
	Name:   "version",
	Usage:  "Display govctl version info.",
	Action: actionDecorator(version),
}

func version(ctx *cli.Context) error {
	w := stdout(ctx)
	if jsonOutput(ctx) {
		return printJSON(w, map[string]interface{}{
			"version":     build.Version(),
			"commit":      build.Commit,
			"commit_hash": build.CommitHash,
			"go_version":  build.GoVersion,
		})
	}

	fmt.Fprintf(w, "govctl version %s commit=%s\n", build.Version(),
		build.Commit)
	fmt.Fprintf(w, "go version %s\n", build.GoVersion)

	return nil
}
