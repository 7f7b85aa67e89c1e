package commands

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the agent as a long-lived daemon",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func runServe(cmd *cobra.Command) error {
	a, err := newAgent(configFile())
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := a.terminus.Discover(ctx, a.discoveredEIDs()); err != nil {
		return err
	}

	go a.pump.Run(ctx)

	var srv *http.Server
	if handler := a.metricsHandler(); handler != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", handler)
		srv = &http.Server{Addr: a.cfg.Metrics.Listen, Handler: mux}
		ln, err := net.Listen("tcp", srv.Addr)
		if err != nil {
			return err
		}
		go func() {
			a.logger.Info("metrics listening", "addr", srv.Addr)
			if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
				a.logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	a.logger.Info("received shutdown signal")
	cancel()

	if srv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer shutdownCancel()
		_ = srv.Shutdown(shutdownCtx)
	}
	return nil
}
