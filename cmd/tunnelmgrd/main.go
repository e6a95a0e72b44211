// Package main is the entry point for the tunnelmgrd binary: it loads
// configuration, wires the chisel driver and Prometheus telemetry
// into a tunnel manager core, and runs it until signalled to stop.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/relaymesh/tunnelmgr/internal/config"
	"github.com/relaymesh/tunnelmgr/internal/driver/chiseldriver"
	"github.com/relaymesh/tunnelmgr/internal/manager"
	"github.com/relaymesh/tunnelmgr/internal/telemetry"
)

// version is injected at build time via -ldflags
// (e.g. -ldflags "-X main.version=v1.2.3").
var version = "devel"

const metricsShutdownTimeout = 5 * time.Second

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	conf, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	root := &cobra.Command{
		Use:           "tunnelmgrd",
		Short:         "Tunnel manager: maintains a pool of redundant packet tunnels and forwards traffic across them.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context(), conf)
		},
	}

	if err := conf.BindFlags(root.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	return root.ExecuteContext(ctx)
}

// serve constructs the manager and the metrics endpoint and runs both
// until ctx is cancelled.
func serve(ctx context.Context, conf *config.Config) error {
	drv := chiseldriver.New()
	tel := telemetry.New(nil)

	m := manager.New(conf.ManagerConfig(), drv, tel)
	m.Init()

	metricsSrv := &http.Server{
		Addr:    conf.MetricsAddress(),
		Handler: promhttp.Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- metricsSrv.ListenAndServe()
	}()

	managerErr := m.Run(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
	defer cancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	default:
	}

	return managerErr
}
