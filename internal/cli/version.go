package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of ScanHub",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scanhub version %s\n", version)
	},
}
