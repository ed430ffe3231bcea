// Command relayerd is the relayer daemon entrypoint: load config, build
// the Orchestrator, start the Prometheus /metrics endpoint, run until a
// shutdown signal arrives. Grounded in
// stellar-live-source/go/main.go's "listen, start a background health
// server, wait for the blocking call" shape, substituting a graceful
// os/signal shutdown for the gRPC server's blocking Serve call since the
// relayer has no wire-level transport of its own (§13 Non-goals).
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/withobsrvr/zkvote-relayer/internal/config"
	"github.com/withobsrvr/zkvote-relayer/internal/logging"
	"github.com/withobsrvr/zkvote-relayer/internal/orchestrator"
)

func main() {
	configPath := flag.String("config", "relayer.yaml", "path to the relayer's YAML config file")
	metricsAddr := flag.String("metrics-addr", ":9090", "address the /metrics endpoint listens on")
	dev := flag.Bool("dev", false, "use human-readable development logging instead of JSON")
	flag.Parse()

	logger, err := logging.New(*dev)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	orch, err := orchestrator.New(cfg, logger)
	if err != nil {
		logger.Fatal("failed to construct orchestrator", zap.Error(err))
	}

	metricsServer := &http.Server{Addr: *metricsAddr, Handler: promhttp.Handler()}
	go func() {
		logger.Info("metrics endpoint listening", zap.String("addr", *metricsAddr))
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics server stopped unexpectedly", zap.Error(err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	orch.Start(ctx)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutdown signal received")
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer stopCancel()
	if err := orch.Stop(stopCtx); err != nil {
		logger.Error("error during orchestrator shutdown", zap.Error(err))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("error shutting down metrics server", zap.Error(err))
	}

	logger.Info("relayerd stopped")
}
