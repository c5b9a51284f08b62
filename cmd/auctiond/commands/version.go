package commands

import (
	"github.com/spf13/cobra"

	"github.com/wallymathieu/auctions-site/version"
)

// VersionCmd prints the daemon version.
var VersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version info",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println(version.Version)
	},
}
