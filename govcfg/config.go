// Package govcfg holds the configuration shared by the govkit command line
// tools: where data and logs live, which network key encodings target and
// how output is rendered.
package govcfg

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"

	"github.com/bitcoincommons/govkit/build"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/jessevdk/go-flags"
)

const (
	// DefaultConfigFilename is the name of the configuration file
	// inside the data directory.
	DefaultConfigFilename = "govctl.conf"

	defaultLogDirname  = "logs"
	defaultLogFilename = "govctl.log"
	defaultLogLevel    = "info"
	defaultNetwork     = "mainnet"

	// FormatText renders command output for people.
	FormatText = "text"

	// FormatJSON renders command output as indented JSON.
	FormatJSON = "json"
)

var (
	// DefaultGovDir is the default directory for govctl's data, logs
	// and configuration file.
	DefaultGovDir = btcutil.AppDataDir("govctl", false)

	// DefaultConfigFile is the default configuration file path.
	DefaultConfigFile = filepath.Join(DefaultGovDir, DefaultConfigFilename)
)

// Config is the govctl configuration. Every field can be set in the
// configuration file; the command line overrides the file.
//
//nolint:lll
type Config struct {
	GovDir     string `long:"govdir" description:"The base directory that contains govctl's data, logs and configuration file."`
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file."`
	LogDir     string `long:"logdir" description:"Directory to log output."`

	DebugLevel string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <global-level>,<subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems."`

	Network string `long:"network" description:"The network extended keys and derivation paths are encoded for." choice:"mainnet" choice:"testnet" choice:"regtest" choice:"simnet" choice:"signet"`
	Format  string `long:"format" description:"Output format of commands." choice:"text" choice:"json"`

	LogConfig *build.LogConfig `group:"logging" namespace:"logging"`

	// ActiveNetParams is resolved from Network by Validate.
	ActiveNetParams *chaincfg.Params
}

// DefaultConfig returns the configuration with every default filled in.
func DefaultConfig() Config {
	return Config{
		GovDir:     DefaultGovDir,
		ConfigFile: DefaultConfigFile,
		LogDir:     filepath.Join(DefaultGovDir, defaultLogDirname),
		DebugLevel: defaultLogLevel,
		Network:    defaultNetwork,
		Format:     FormatText,
		LogConfig:  build.DefaultLogConfig(),
	}
}

// LoadConfigFile starts from the defaults and applies the options of the
// configuration file at path. A missing file is not an error, since all
// options have defaults; a malformed one is.
func LoadConfigFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	cfg.ConfigFile = path

	err := flags.IniParse(CleanAndExpandPath(path), &cfg)
	switch {
	case err == nil:

	case os.IsNotExist(err):
		return &cfg, nil

	default:
		return nil, fmt.Errorf("unable to load %s: %w", path, err)
	}

	return &cfg, nil
}

// NetParams maps a network name to its chain parameters.
func NetParams(network string) (*chaincfg.Params, error) {
	switch strings.ToLower(network) {
	case "mainnet", "main", "":
		return &chaincfg.MainNetParams, nil

	case "testnet", "testnet3":
		return &chaincfg.TestNet3Params, nil

	case "regtest":
		return &chaincfg.RegressionNetParams, nil

	case "simnet":
		return &chaincfg.SimNetParams, nil

	case "signet":
		return &chaincfg.SigNetParams, nil
	}

	return nil, fmt.Errorf("unknown network %q", network)
}

// Validate expands the paths, resolves the network and checks the
// remaining options. The returned config is a cleaned copy.
func (c Config) Validate() (*Config, error) {
	cfg := c

	// If the data directory moved but the log directory was left at
	// its default, keep the logs inside the new data directory.
	cfg.GovDir = CleanAndExpandPath(cfg.GovDir)
	defaultLogDir := filepath.Join(DefaultGovDir, defaultLogDirname)
	if cfg.GovDir != DefaultGovDir &&
		CleanAndExpandPath(cfg.LogDir) == defaultLogDir {

		cfg.LogDir = filepath.Join(cfg.GovDir, defaultLogDirname)
	}
	cfg.LogDir = CleanAndExpandPath(cfg.LogDir)
	cfg.ConfigFile = CleanAndExpandPath(cfg.ConfigFile)

	params, err := NetParams(cfg.Network)
	if err != nil {
		return nil, err
	}
	cfg.ActiveNetParams = params

	switch cfg.Format {
	case FormatText, FormatJSON:
	default:
		return nil, fmt.Errorf("unknown output format %q", cfg.Format)
	}

	if cfg.LogConfig == nil {
		cfg.LogConfig = build.DefaultLogConfig()
	}
	if err := cfg.LogConfig.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LogFile is the path of the log file for the active network.
func (c *Config) LogFile() string {
	return filepath.Join(
		c.LogDir, strings.ToLower(c.Network), defaultLogFilename,
	)
}

// CleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func CleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	return filepath.Clean(os.ExpandEnv(path))
}
