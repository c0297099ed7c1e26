/*
SPDX-License-Identifier: Apache-2.0
*/

package commands

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cfg "github.com/nandlab/fabric-dutch-auction/internal/config"
	"github.com/nandlab/fabric-dutch-auction/internal/log"
)

const envPrefix = "AUCTIOND"

var (
	config = cfg.DefaultConfig()
	logger = log.MustNewDefaultLogger(log.LogFormatPlain, log.LogLevelInfo)
)

func init() {
	registerFlagsRootCmd(RootCmd)
}

func registerFlagsRootCmd(cmd *cobra.Command) {
	cmd.PersistentFlags().String("home", os.ExpandEnv(filepath.Join("$HOME", cfg.DefaultAuctiondDir)), "directory for config and data")
	cmd.PersistentFlags().String("log_level", config.LogLevel, "log level (debug, info or error)")
	cmd.PersistentFlags().String("log_format", config.LogFormat, "log format (plain, text or json)")
}

// ParseConfig retrieves the default environment configuration, sets up the
// root and ensures that the root exists
func ParseConfig(cmd *cobra.Command) (*cfg.Config, error) {
	v := viper.GetViper()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	cfg.RegisterDefaults(v)
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}

	home := v.GetString("home")
	configFile := filepath.Join(home, "config", "config.toml")
	if _, err := os.Stat(configFile); err == nil {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("could not read %s: %w", configFile, err)
		}
	}

	conf, err := cfg.Load(v)
	if err != nil {
		return nil, err
	}
	conf.SetRoot(home)
	if err := cfg.EnsureRoot(conf.RootDir); err != nil {
		return nil, err
	}
	return conf, nil
}

// RootCmd is the root command for the auction dev node.
var RootCmd = &cobra.Command{
	Use:   "auctiond",
	Short: "Dutch auction settlement dev node",
	Long: "auctiond runs the Dutch auction settlement engine together with its token ledger and " +
		"asset registry in a single process, serving them over HTTP. It is the off-Fabric " +
		"counterpart of the dutch-auction chaincode.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) (err error) {
		if cmd.Name() == VersionCmd.Name() {
			return nil
		}

		config, err = ParseConfig(cmd)
		if err != nil {
			return err
		}

		logger, err = log.NewDefaultLogger(config.LogFormat, config.LogLevel)
		if err != nil {
			return err
		}
		logger = logger.With("module", "main")
		return nil
	},
}
