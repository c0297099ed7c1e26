/*
SPDX-License-Identifier: Apache-2.0
*/

package commands

import (
	"encoding/json"
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Version is set at build time
var Version = "dev"

var verbose bool

// VersionCmd ...
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	Run: func(cmd *cobra.Command, args []string) {
		if verbose {
			values, _ := json.MarshalIndent(struct {
				Auctiond string `json:"auctiond"`
				Go       string `json:"go"`
				Platform string `json:"platform"`
			}{
				Auctiond: Version,
				Go:       runtime.Version(),
				Platform: runtime.GOOS + "/" + runtime.GOARCH,
			}, "", "  ")
			fmt.Println(string(values))
		} else {
			fmt.Println(Version)
		}
	},
}

func init() {
	VersionCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Show build details")
}
