package commands

import (
	"github.com/spf13/cobra"

	"github.com/wallymathieu/auctions-site/config"
)

// InitFilesCommand constructs a command that sets up the home directory with
// a default config file.
func InitFilesCommand(conf *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the home directory and write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.EnsureRoot(conf.RootDir)
		},
	}
}
