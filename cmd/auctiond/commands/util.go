package commands

import (
	"fmt"

	dbm "github.com/tendermint/tm-db"

	"github.com/wallymathieu/auctions-site/config"
	"github.com/wallymathieu/auctions-site/internal/eventlog"
)

// openEventLog opens the durable command log named by the config.
func openEventLog(conf *config.Config) (eventlog.Log, error) {
	openFile := func() (eventlog.Log, error) {
		return eventlog.OpenFileLog(conf.EventLog.File())
	}
	openKV := func() (eventlog.Log, error) {
		db, err := dbm.NewDB("commands", dbm.GoLevelDBBackend, conf.EventLog.DBDir())
		if err != nil {
			return nil, fmt.Errorf("opening command db: %w", err)
		}
		return eventlog.NewKVLog(db), nil
	}

	switch conf.EventLog.Backend {
	case config.EventLogBackendFile:
		return openFile()
	case config.EventLogBackendKV:
		return openKV()
	case config.EventLogBackendMulti:
		fileLog, err := openFile()
		if err != nil {
			return nil, err
		}
		kvLog, err := openKV()
		if err != nil {
			fileLog.Close()
			return nil, err
		}
		return eventlog.NewMultiLog(fileLog, kvLog), nil
	default:
		return nil, fmt.Errorf("unknown event log backend %q", conf.EventLog.Backend)
	}
}
