package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wallymathieu/auctions-site/config"
)

func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	require.NotNil(t, cfg)
	assert.NoError(t, cfg.ValidateBasic())

	// check the root dir flows through to the sub configs
	cfg.SetRoot("/foo")
	assert.Equal(t, "/foo/data/commands.json", cfg.EventLog.File())
	assert.Equal(t, "/foo/data", cfg.EventLog.DBDir())
}

func TestConfigValidateBasic(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(*config.Config)
		wantErr bool
	}{
		{name: "default", mutate: func(*config.Config) {}},
		{name: "kv backend", mutate: func(cfg *config.Config) {
			cfg.EventLog.Backend = config.EventLogBackendKV
		}},
		{name: "unknown backend", mutate: func(cfg *config.Config) {
			cfg.EventLog.Backend = "s3"
		}, wantErr: true},
		{name: "file backend without path", mutate: func(cfg *config.Config) {
			cfg.EventLog.Path = ""
		}, wantErr: true},
		{name: "empty rpc laddr", mutate: func(cfg *config.Config) {
			cfg.RPC.ListenAddress = ""
		}, wantErr: true},
		{name: "webhook urls", mutate: func(cfg *config.Config) {
			cfg.Webhook.URLs = []string{"http://localhost:9000/hook"}
		}},
		{name: "invalid webhook url", mutate: func(cfg *config.Config) {
			cfg.Webhook.URLs = []string{"not a url"}
		}, wantErr: true},
		{name: "non-positive webhook timeout", mutate: func(cfg *config.Config) {
			cfg.Webhook.Timeout = 0
		}, wantErr: true},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tc.mutate(cfg)
			err := cfg.ValidateBasic()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTestConfig(t *testing.T) {
	cfg := config.TestConfig()
	assert.NoError(t, cfg.ValidateBasic())
	assert.Equal(t, config.EventLogBackendKV, cfg.EventLog.Backend)
	assert.Equal(t, 10*time.Second, cfg.Webhook.Timeout)
}
