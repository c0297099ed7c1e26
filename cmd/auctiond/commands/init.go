/*
SPDX-License-Identifier: Apache-2.0
*/

package commands

import (
	"os"

	"github.com/spf13/cobra"

	cfg "github.com/nandlab/fabric-dutch-auction/internal/config"
	"github.com/nandlab/fabric-dutch-auction/internal/node"
)

// InitFilesCmd initializes a fresh auctiond home directory
var InitFilesCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the config and genesis files",
	RunE:  initFiles,
}

func initFiles(cmd *cobra.Command, args []string) error {
	configFile := config.ConfigFile()
	if fileExists(configFile) {
		logger.Info("found config file", "path", configFile)
	} else {
		if err := cfg.WriteConfigFile(configFile, config); err != nil {
			return err
		}
		logger.Info("generated config file", "path", configFile)
	}

	genFile := config.GenesisFile()
	if fileExists(genFile) {
		logger.Info("found genesis file", "path", genFile)
		return nil
	}
	if err := node.DefaultGenesisDoc().SaveAs(genFile); err != nil {
		return err
	}
	logger.Info("generated genesis file", "path", genFile)
	return nil
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
