package govkit

import (
	"github.com/bitcoincommons/govkit/artifact"
	"github.com/bitcoincommons/govkit/bip32"
	"github.com/bitcoincommons/govkit/bip44"
	"github.com/bitcoincommons/govkit/build"
	"github.com/bitcoincommons/govkit/keychain"
	"github.com/bitcoincommons/govkit/keyfile"
	"github.com/bitcoincommons/govkit/mnemonic"
	"github.com/bitcoincommons/govkit/multisig"
	"github.com/bitcoincommons/govkit/psbtcodec"
	"github.com/btcsuite/btclog/v2"
)

// SetupLoggers initializes all package-global logger variables.
func SetupLoggers(root *build.SubLoggerManager) {
	AddSubLogger(root, keychain.Subsystem, keychain.UseLogger)
	AddSubLogger(root, multisig.Subsystem, multisig.UseLogger)
	AddSubLogger(root, bip32.Subsystem, bip32.UseLogger)
	AddSubLogger(root, bip44.Subsystem, bip44.UseLogger)
	AddSubLogger(root, mnemonic.Subsystem, mnemonic.UseLogger)
	AddSubLogger(root, psbtcodec.Subsystem, psbtcodec.UseLogger)
	AddSubLogger(root, keyfile.Subsystem, keyfile.UseLogger)
	AddSubLogger(root, artifact.Subsystem, artifact.UseLogger)
}

// AddSubLogger is a helper method to conveniently create and register the
// logger of one or more sub systems.
func AddSubLogger(root *build.SubLoggerManager, subsystem string,
	useLoggers ...func(btclog.Logger)) {

	// Create and register just a single logger to prevent them from
	// overwriting each other internally.
	logger := build.NewSubLogger(subsystem, root.GenSubLogger)
	SetSubLogger(root, subsystem, logger, useLoggers...)
}

// SetSubLogger is a helper method to conveniently register the logger of a
// sub system.
func SetSubLogger(root *build.SubLoggerManager, subsystem string,
	logger btclog.Logger, useLoggers ...func(btclog.Logger)) {

	root.RegisterSubLogger(subsystem, logger)
	for _, useLogger := range useLoggers {
		useLogger(logger)
	}
}
