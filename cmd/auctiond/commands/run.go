package commands

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/wallymathieu/auctions-site/config"
	"github.com/wallymathieu/auctions-site/internal/delegator"
	"github.com/wallymathieu/auctions-site/internal/eventbus"
	"github.com/wallymathieu/auctions-site/internal/rpc"
	"github.com/wallymathieu/auctions-site/internal/webhook"
	"github.com/wallymathieu/auctions-site/libs/log"
	tmos "github.com/wallymathieu/auctions-site/libs/os"
	"github.com/wallymathieu/auctions-site/libs/service"
)

// RunCommand constructs the command that assembles and runs the daemon.
func RunCommand(conf *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the auction daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := log.NewDefaultLogger(conf.LogFormat, conf.LogLevel)
			if err != nil {
				return err
			}
			return runNode(cmd.Context(), conf, logger)
		},
	}

	cmd.Flags().String("moniker", conf.Moniker, "node name")
	cmd.Flags().String("eventlog.backend", conf.EventLog.Backend, "command log backend (file | kv | multi)")
	cmd.Flags().String("rpc.laddr", conf.RPC.ListenAddress, "RPC listen address. Port required")
	return cmd
}

func runNode(ctx context.Context, conf *config.Config, logger log.Logger) error {
	if err := config.EnsureRoot(conf.RootDir); err != nil {
		return fmt.Errorf("ensuring root directory: %w", err)
	}

	commandLog, err := openEventLog(conf)
	if err != nil {
		return err
	}
	defer commandLog.Close()

	bus := eventbus.NewDefault(logger)
	if err := bus.Start(ctx); err != nil {
		return fmt.Errorf("starting event bus: %w", err)
	}

	sink := webhook.NewSink(logger, bus, conf.Webhook.URLs,
		webhook.WithClient(&http.Client{Timeout: conf.Webhook.Timeout}))
	if len(conf.Webhook.URLs) > 0 {
		if err := sink.Start(ctx); err != nil {
			return fmt.Errorf("starting webhook sink: %w", err)
		}
	}

	metrics := delegator.NopMetrics()
	if conf.Instrumentation.Prometheus {
		metrics = delegator.PrometheusMetrics(conf.Instrumentation.Namespace, "moniker", conf.Moniker)
		go func() {
			srv := &http.Server{
				Addr:              conf.Instrumentation.PrometheusListenAddr,
				Handler:           promhttp.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
			}
			logger.Info("serving prometheus metrics", "addr", conf.Instrumentation.PrometheusListenAddr)
			if err := srv.ListenAndServe(); err != nil {
				logger.Error("prometheus server stopped", "err", err)
			}
		}()
	}

	d := delegator.New(logger, commandLog, bus, delegator.WithMetrics(metrics))
	if err := d.Start(ctx); err != nil {
		return fmt.Errorf("starting delegator: %w", err)
	}

	var opts []rpc.Option
	if conf.RPC.IsCorsEnabled() {
		opts = append(opts, rpc.WithCORSOrigins(conf.RPC.CORSAllowedOrigins))
	}
	server := rpc.NewServer(logger, d, conf.RPC.ListenAddress, opts...)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting rpc server: %w", err)
	}

	tmos.TrapSignal(logger, func() {
		// shut down in dependency order: no new requests, then no new
		// commands, then the observers
		type stoppable interface {
			service.Service
			Stop() error
		}
		for _, svc := range []stoppable{server, d, sink, bus} {
			if svc.IsRunning() {
				if err := svc.Stop(); err != nil {
					logger.Error("error during shutdown", "service", svc.String(), "err", err)
				}
			}
		}
	})

	logger.Info("auction daemon started", "moniker", conf.Moniker)

	// Run until the delegator dies or the context is canceled.
	d.Wait()
	return nil
}
