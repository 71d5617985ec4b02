package govkit

import (
	"bytes"
	"testing"

	"github.com/bitcoincommons/govkit/build"
	"github.com/btcsuite/btclog/v2"
	"github.com/stretchr/testify/require"
)

// TestSetupLoggers checks that every subsystem is registered and that the
// debug level string reaches the registered loggers.
func TestSetupLoggers(t *testing.T) {
	var buf bytes.Buffer
	root := build.NewSubLoggerManager(
		btclog.NewDefaultHandler(&buf, btclog.WithNoTimestamp()),
	)
	SetupLoggers(root)

	require.Equal(t, []string{
		"ARTF", "BP32", "BP44", "KCHN", "KEYF", "MNEM", "MSIG", "PSBT",
	}, root.SupportedSubsystems())

	require.NoError(t, build.ParseAndSetDebugLevels("warn,PSBT=trace",
		root))

	loggers := root.SubLoggers()
	require.Equal(t, btclog.LevelTrace, loggers["PSBT"].Level())
	require.Equal(t, btclog.LevelWarn, loggers["KCHN"].Level())

	loggers["PSBT"].Tracef("hello")
	loggers["KCHN"].Infof("suppressed")
	require.Contains(t, buf.String(), "PSBT: hello")
	require.NotContains(t, buf.String(), "suppressed")

	// Extra subsystems can be added next to the library ones.
	var got btclog.Logger
	AddSubLogger(root, "GCTL", func(l btclog.Logger) { got = l })
	require.NotNil(t, got)
	require.Contains(t, root.SupportedSubsystems(), "GCTL")
}
