// This app implements a WSP (Wireless Session Protocol) gateway core:
// PDU codec, per-session state machine, and delivery-report
// correlation, as the session layer above an external WTP transport.

package main

import (
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mellowdrifter/wspd/internal/config"
	"github.com/mellowdrifter/wspd/internal/dlr"
	"github.com/mellowdrifter/wspd/internal/headers"
	"github.com/mellowdrifter/wspd/internal/wspcaps"
	"github.com/mellowdrifter/wspd/internal/wsphttp"
	"github.com/mellowdrifter/wspd/internal/wspmetrics"
	"github.com/mellowdrifter/wspd/internal/wsplog"
	"github.com/mellowdrifter/wspd/internal/wspserver"
)

func reportDLRSize(store *dlr.Store, metrics *wspmetrics.Collector) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		metrics.SetDLRWaiting(store.Count())
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger := wsplog.New(cfg.LogLevel, cfg.LogEncoding)
	logger.Info("Starting wspd...")

	registry := prometheus.NewRegistry()
	metrics := wspmetrics.New(registry)

	dlrStore := dlr.New(cfg.DLRMatchDestination)
	dlrHandler := dlr.NewHandler(dlrStore, logger)

	go reportDLRSize(dlrStore, metrics)

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
		mux.Handle("/register", dlrHandler)
		mux.Handle("/report", dlrHandler)
		logger.Infof("metrics/DLR listening on %s", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Errorf("metrics server failed: %v", err)
		}
	}()

	srv := wspserver.New(wspserver.Config{
		ListenAddr: cfg.ListenAddr,
		Limits: wspcaps.Limits{
			MaxClientSDU:    cfg.MaxClientSDU,
			MaxServerSDU:    cfg.MaxServerSDU,
			ProtocolOptions: cfg.ProtocolOptions,
			MaxMORMethod:    cfg.MaxMORMethod,
			MaxMORPush:      cfg.MaxMORPush,
		},
		Fetcher: wsphttp.NewHTTPFetcher(),
		Headers: headers.Passthrough{},
		Metrics: metrics,
	}, logger)

	go func() {
		if err := srv.Start(); err != nil {
			logger.Fatalf("server failed: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Infof("Signal received: %s, shutting down gracefully...", sig)

	shutdownTimeout := 5 * time.Second
	if err := srv.Stop(shutdownTimeout); err != nil {
		logger.Errorf("Shutdown error: %v", err)
	} else {
		logger.Info("wspd shut down cleanly")
	}
}
