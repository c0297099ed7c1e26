/*
SPDX-License-Identifier: Apache-2.0
*/

// Package config holds the configuration of the auctiond dev node.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/nandlab/fabric-dutch-auction/internal/log"
)

const (
	// MemDBBackend keeps world state in memory, lost on exit
	MemDBBackend = "memdb"
	// GoLevelDBBackend keeps world state in a LevelDB directory
	GoLevelDBBackend = "goleveldb"
)

var (
	DefaultAuctiondDir = ".auctiond"
	defaultConfigDir   = "config"
	defaultDataDir     = "data"

	defaultConfigFileName  = "config.toml"
	defaultGenesisFileName = "genesis.yaml"

	defaultConfigFilePath  = filepath.Join(defaultConfigDir, defaultConfigFileName)
	defaultGenesisFilePath = filepath.Join(defaultConfigDir, defaultGenesisFileName)
)

// Config defines the configuration of an auctiond node
type Config struct {
	// The root directory for all data.
	// This should be set in viper so it can unmarshal into this struct
	RootDir string `mapstructure:"home"`

	// Output level for logging: debug, info or error
	LogLevel string `mapstructure:"log_level"`

	// Output format: 'plain' (colored text) or 'json'
	LogFormat string `mapstructure:"log_format"`

	// TCP address the HTTP API listens on
	ListenAddr string `mapstructure:"listen_addr"`

	// Database backend: memdb or goleveldb
	DBBackend string `mapstructure:"db_backend"`

	// Database directory, relative to RootDir
	DBPath string `mapstructure:"db_dir"`

	// Account that may cancel any auction and owns the token supply
	Organizer string `mapstructure:"organizer"`

	// Account holding listed assets and spending buyer allowances
	EscrowAccount string `mapstructure:"escrow_account"`

	// Path to the YAML genesis file, relative to RootDir
	Genesis string `mapstructure:"genesis_file"`

	// Origins allowed to call the HTTP API from a browser. "*" allows all
	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	// Prometheus namespace of the exported metrics
	MetricsNamespace string `mapstructure:"metrics_namespace"`

	// How long a receipt write to a websocket subscriber may take before
	// the subscriber is dropped
	WSWriteTimeout time.Duration `mapstructure:"ws_write_timeout"`
}

// DefaultConfig returns a default configuration for an auctiond node
func DefaultConfig() *Config {
	return &Config{
		LogLevel:           log.LogLevelInfo,
		LogFormat:          log.LogFormatPlain,
		ListenAddr:         "127.0.0.1:8080",
		DBBackend:          GoLevelDBBackend,
		DBPath:             defaultDataDir,
		Organizer:          "organizer",
		EscrowAccount:      "dutch-auction-escrow",
		Genesis:            defaultGenesisFilePath,
		CORSAllowedOrigins: []string{},
		MetricsNamespace:   "auctiond",
		WSWriteTimeout:     10 * time.Second,
	}
}

// TestConfig returns a configuration that can be used for testing
func TestConfig() *Config {
	cfg := DefaultConfig()
	cfg.LogLevel = log.LogLevelDebug
	cfg.ListenAddr = "127.0.0.1:0"
	cfg.DBBackend = MemDBBackend
	cfg.WSWriteTimeout = time.Second
	return cfg
}

// SetRoot sets the RootDir
func (cfg *Config) SetRoot(root string) *Config {
	cfg.RootDir = root
	return cfg
}

// DBDir returns the full path to the database directory
func (cfg *Config) DBDir() string {
	return rootify(cfg.DBPath, cfg.RootDir)
}

// GenesisFile returns the full path to the genesis file
func (cfg *Config) GenesisFile() string {
	return rootify(cfg.Genesis, cfg.RootDir)
}

// ConfigFile returns the full path to the config file
func (cfg *Config) ConfigFile() string {
	return rootify(defaultConfigFilePath, cfg.RootDir)
}

// ValidateBasic performs basic validation (checking param bounds, etc.) and
// returns an error if any check fails.
func (cfg *Config) ValidateBasic() error {
	switch cfg.LogFormat {
	case log.LogFormatPlain, log.LogFormatText, log.LogFormatJSON:
	default:
		return fmt.Errorf("unknown log_format %q (must be 'plain', 'text' or 'json')", cfg.LogFormat)
	}
	switch cfg.DBBackend {
	case MemDBBackend, GoLevelDBBackend:
	default:
		return fmt.Errorf("unknown db_backend %q (must be %q or %q)", cfg.DBBackend, MemDBBackend, GoLevelDBBackend)
	}
	if cfg.ListenAddr == "" {
		return errors.New("listen_addr can't be empty")
	}
	if cfg.Organizer == "" {
		return errors.New("organizer can't be empty")
	}
	if cfg.EscrowAccount == "" {
		return errors.New("escrow_account can't be empty")
	}
	if cfg.EscrowAccount == cfg.Organizer {
		return errors.New("escrow_account must differ from organizer")
	}
	if cfg.WSWriteTimeout < 0 {
		return errors.New("ws_write_timeout can't be negative")
	}
	return nil
}

// RegisterDefaults makes every key known to v with its default value, so
// that environment variables can override keys absent from the config file.
func RegisterDefaults(v *viper.Viper) {
	def := DefaultConfig()
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_format", def.LogFormat)
	v.SetDefault("listen_addr", def.ListenAddr)
	v.SetDefault("db_backend", def.DBBackend)
	v.SetDefault("db_dir", def.DBPath)
	v.SetDefault("organizer", def.Organizer)
	v.SetDefault("escrow_account", def.EscrowAccount)
	v.SetDefault("genesis_file", def.Genesis)
	v.SetDefault("cors_allowed_origins", def.CORSAllowedOrigins)
	v.SetDefault("metrics_namespace", def.MetricsNamespace)
	v.SetDefault("ws_write_timeout", def.WSWriteTimeout)
}

// Load unmarshals the settings held by v over the defaults and validates
// the result.
func Load(v *viper.Viper) (*Config, error) {
	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error decoding config: %w", err)
	}
	if err := cfg.ValidateBasic(); err != nil {
		return nil, fmt.Errorf("error in config file: %w", err)
	}
	return cfg, nil
}

// helper function to make config creation independent of root dir
func rootify(path, root string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
