package build

import (
	"bytes"
	"testing"

	btclogv1 "github.com/btcsuite/btclog"
	"github.com/btcsuite/btclog/v2"
	"github.com/stretchr/testify/require"
)

// newTestManager returns a manager writing to buf with two registered
// subsystems.
func newTestManager(t *testing.T, buf *bytes.Buffer) *SubLoggerManager {
	t.Helper()

	handler := btclog.NewDefaultHandler(buf, btclog.WithNoTimestamp())
	mgr := NewSubLoggerManager(handler)
	for _, subsystem := range []string{"MSIG", "BP32"} {
		mgr.RegisterSubLogger(subsystem, mgr.GenSubLogger(subsystem))
	}

	return mgr
}

// TestParseAndSetDebugLevels checks the accepted debug level syntax.
func TestParseAndSetDebugLevels(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		level   string
		wantErr bool
		want    map[string]btclogv1.Level
	}{
		{
			name:  "global",
			level: "debug",
			want: map[string]btclogv1.Level{
				"MSIG": btclog.LevelDebug,
				"BP32": btclog.LevelDebug,
			},
		},
		{
			name:  "global and subsystem",
			level: "warn,BP32=trace",
			want: map[string]btclogv1.Level{
				"MSIG": btclog.LevelWarn,
				"BP32": btclog.LevelTrace,
			},
		},
		{
			name:  "subsystem only",
			level: "MSIG=error",
			want: map[string]btclogv1.Level{
				"MSIG": btclog.LevelError,
				"BP32": btclog.LevelInfo,
			},
		},
		{name: "empty", level: "", wantErr: true},
		{name: "bad global", level: "loud", wantErr: true},
		{name: "unknown subsystem", level: "XXXX=info", wantErr: true},
		{name: "bad pair", level: "info,MSIG", wantErr: true},
		{name: "bad subsystem level", level: "MSIG=loud", wantErr: true},
		{name: "double equals", level: "MSIG=info=x", wantErr: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			var buf bytes.Buffer
			mgr := newTestManager(t, &buf)

			err := ParseAndSetDebugLevels(test.level, mgr)
			if test.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)

			loggers := mgr.SubLoggers()
			for subsystem, level := range test.want {
				require.Equal(
					t, level, loggers[subsystem].Level(),
					subsystem,
				)
			}
		})
	}
}

// TestSubLoggerManagerOutput checks that sub loggers tag their output and
// honor their own level.
func TestSubLoggerManagerOutput(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	mgr := newTestManager(t, &buf)
	require.Equal(t, []string{"BP32", "MSIG"}, mgr.SupportedSubsystems())

	mgr.SetLogLevel("MSIG", "debug")
	mgr.SetLogLevel("BP32", "error")

	loggers := mgr.SubLoggers()
	loggers["MSIG"].Debugf("counted %d signatures", 3)
	loggers["BP32"].Debugf("hidden")

	out := buf.String()
	require.Contains(t, out, "MSIG")
	require.Contains(t, out, "counted 3 signatures")
	require.NotContains(t, out, "hidden")

	// Unknown subsystems and levels are ignored.
	mgr.SetLogLevel("NONE", "debug")
	mgr.SetLogLevel("MSIG", "loud")
	require.Equal(t, btclog.LevelDebug, mgr.SubLoggers()["MSIG"].Level())
}

// TestHandlerSetFanOut checks that every handler in a set receives the
// record.
func TestHandlerSetFanOut(t *testing.T) {
	t.Parallel()

	var first, second bytes.Buffer
	mgr := NewSubLoggerManager(
		btclog.NewDefaultHandler(&first, btclog.WithNoTimestamp()),
		btclog.NewDefaultHandler(&second, btclog.WithNoTimestamp()),
	)

	logger := mgr.GenSubLogger("KEYF")
	logger.Infof("wrote key file")

	require.Contains(t, first.String(), "wrote key file")
	require.Contains(t, second.String(), "wrote key file")
}

// TestLogConfigValidate checks compressor and limit validation.
func TestLogConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := DefaultLogConfig()
	require.NoError(t, cfg.Validate())

	cfg.File.Compressor = Zstd
	require.NoError(t, cfg.Validate())

	cfg.File.Compressor = "lz4"
	require.Error(t, cfg.Validate())

	cfg = DefaultLogConfig()
	cfg.File.MaxLogFiles = -1
	require.Error(t, cfg.Validate())
}

// TestVersion checks the version string layout.
func TestVersion(t *testing.T) {
	t.Parallel()

	require.Regexp(t, `^\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?$`, Version())
}
