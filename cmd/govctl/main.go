package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"

	"github.com/bitcoincommons/govkit"
	"github.com/bitcoincommons/govkit/build"
	"github.com/bitcoincommons/govkit/govcfg"
	"github.com/btcsuite/btclog/v2"
	"github.com/urfave/cli"
	"golang.org/x/term"
)

const (
	// Subsystem is the logging code of the command line tool.
	Subsystem = "GCTL"

	configKey  = "config"
	rotatorKey = "rotator"
)

var (
	log = btclog.Disabled

	// errReported is returned by an action whose error has already been
	// written out in the requested format.
	errReported = errors.New("error already reported")
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[govctl] %v\n", err)
	os.Exit(1)
}

// readPassword reads a password from the terminal. This requires there to be
// an actual TTY so passing in a password from stdin won't work.
func readPassword(text string) ([]byte, error) {
	fmt.Fprint(os.Stderr, text)

	// The variable syscall.Stdin is of a different type in the Windows API
	// that's why we need the explicit cast. And of course the linter
	// doesn't like it either.
	pw, err := term.ReadPassword(int(syscall.Stdin)) // nolint:unconvert
	fmt.Fprintln(os.Stderr)

	return pw, err
}

// loadConfig builds the configuration from the defaults, the configuration
// file and finally the global command line flags.
func loadConfig(ctx *cli.Context) (*govcfg.Config, error) {
	// If the data directory was moved but the config file was not
	// named, look for the config file inside the new data directory.
	govDir := govcfg.CleanAndExpandPath(ctx.GlobalString("govdir"))
	configFile := ctx.GlobalString("configfile")
	if !ctx.GlobalIsSet("configfile") && govDir != govcfg.DefaultGovDir {
		configFile = filepath.Join(govDir, govcfg.DefaultConfigFilename)
	}

	cfg, err := govcfg.LoadConfigFile(configFile)
	if err != nil {
		return nil, err
	}

	if ctx.GlobalIsSet("govdir") {
		cfg.GovDir = govDir
	}
	if ctx.GlobalIsSet("network") {
		cfg.Network = ctx.GlobalString("network")
	}
	if ctx.GlobalIsSet("format") {
		cfg.Format = ctx.GlobalString("format")
	}
	if ctx.GlobalIsSet("debuglevel") {
		cfg.DebugLevel = ctx.GlobalString("debuglevel")
	}
	if ctx.GlobalBool("nologfile") {
		cfg.LogConfig.File.Disable = true
	}

	return cfg.Validate()
}

// setupLogging wires every subsystem logger to the console and, unless
// disabled, to the rotating log file of the active network.
func setupLogging(cfg *govcfg.Config) (*build.RotatingLogWriter, error) {
	var rotator *build.RotatingLogWriter
	if !cfg.LogConfig.File.Disable {
		rotator = build.NewRotatingLogWriter()
		err := rotator.InitLogRotator(cfg.LogConfig.File, cfg.LogFile())
		if err != nil {
			return nil, err
		}
	}

	root := build.NewSubLoggerManager(
		build.NewDefaultLoggers(cfg.LogConfig, rotator)...,
	)
	govkit.SetupLoggers(root)
	govkit.AddSubLogger(root, Subsystem, func(l btclog.Logger) {
		log = l
	})

	if err := build.ParseAndSetDebugLevels(cfg.DebugLevel, root); err != nil {
		_ = closeRotator(rotator)
		return nil, err
	}

	return rotator, nil
}

func closeRotator(rotator *build.RotatingLogWriter) error {
	if rotator == nil {
		return nil
	}

	return rotator.Close()
}

// getConfig returns the configuration loaded before the command ran, or the
// defaults if the command runs without the application hooks.
func getConfig(ctx *cli.Context) *govcfg.Config {
	if cfg, ok := ctx.App.Metadata[configKey].(*govcfg.Config); ok {
		return cfg
	}

	cfg, err := govcfg.DefaultConfig().Validate()
	if err != nil {
		fatal(err)
	}

	return cfg
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "govctl"
	app.Version = build.Version() + " commit=" + build.Commit
	app.Usage = "sign and verify maintainer governance decisions"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:      "govdir",
			Value:     govcfg.DefaultGovDir,
			Usage:     "The path to govctl's base directory.",
			TakesFile: true,
		},
		cli.StringFlag{
			Name:      "configfile, C",
			Value:     govcfg.DefaultConfigFile,
			Usage:     "The path to govctl's configuration file.",
			TakesFile: true,
		},
		cli.StringFlag{
			Name: "network, n",
			Usage: "The network keys are encoded for, e.g. " +
				"mainnet, testnet, regtest, simnet or signet.",
			Value: "mainnet",
		},
		cli.StringFlag{
			Name:  "format",
			Usage: "The output format, text or json.",
			Value: govcfg.FormatText,
		},
		cli.StringFlag{
			Name: "debuglevel, d",
			Usage: "Logging level for all subsystems, or " +
				"<global-level>,<subsystem>=<level>,...",
			Value: "info",
		},
		cli.BoolFlag{
			Name:  "nologfile",
			Usage: "Do not write a log file.",
		},
	}
	app.Metadata = make(map[string]interface{})
	app.Before = func(ctx *cli.Context) error {
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}

		rotator, err := setupLogging(cfg)
		if err != nil {
			return err
		}

		ctx.App.Metadata[configKey] = cfg
		ctx.App.Metadata[rotatorKey] = rotator

		log.Debugf("Using network %v, data dir %v", cfg.Network,
			cfg.GovDir)

		return nil
	}
	app.After = func(ctx *cli.Context) error {
		rotator, _ := ctx.App.Metadata[rotatorKey].(*build.RotatingLogWriter)
		return closeRotator(rotator)
	}
	app.Commands = []cli.Command{
		keygenCommand,
		signCommand,
		verifyCommand,
		mnemonicCommand,
		deriveCommand,
		psbtCommand,
		versionCommand,
	}

	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		if errors.Is(err, errReported) {
			os.Exit(1)
		}
		fatal(err)
	}
}
