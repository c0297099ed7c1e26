/*
SPDX-License-Identifier: Apache-2.0
*/

package main

import (
	"os"

	"github.com/nandlab/fabric-dutch-auction/cmd/auctiond/commands"
)

func main() {
	rootCmd := commands.RootCmd
	rootCmd.AddCommand(
		commands.InitFilesCmd,
		commands.StartCmd,
		commands.VersionCmd,
	)
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
