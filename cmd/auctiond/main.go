package main

import (
	"os"
	"path/filepath"

	"github.com/wallymathieu/auctions-site/cmd/auctiond/commands"
	"github.com/wallymathieu/auctions-site/config"
	"github.com/wallymathieu/auctions-site/libs/log"
)

func main() {
	conf := config.DefaultConfig()
	conf.SetRoot(os.ExpandEnv(filepath.Join("$HOME", config.DefaultAuctionDir)))

	logger, err := log.NewDefaultLogger(conf.LogFormat, conf.LogLevel)
	if err != nil {
		panic(err)
	}

	rcmd := commands.RootCommand(conf)
	rcmd.AddCommand(
		commands.InitFilesCommand(conf),
		commands.RunCommand(conf),
		commands.ReplayCommand(conf),
		commands.VersionCmd,
	)

	if err := rcmd.Execute(); err != nil {
		logger.Error("command failed", "err", err)
		os.Exit(1)
	}
}
