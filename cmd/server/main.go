// Server runs the metering collector: the gRPC intake (MeteringService and grpc.health.v1),
// the Prometheus endpoint and the storage readiness watcher.
package main

import (
	"context"
	"errors"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	"metering-collector/internal/collector"
	"metering-collector/internal/config"
	healthwatch "metering-collector/internal/health"
	"metering-collector/internal/logger"
	meteringhandler "metering-collector/internal/metering/handler"
	"metering-collector/internal/security"
	"metering-collector/internal/server"
	"metering-collector/internal/telemetry"
	"metering-collector/internal/telemetry/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zl, err := logger.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c, err := collector.New(ctx, cfg, zl)
	if err != nil {
		log.Fatalf("collector: %v", err)
	}

	var tokens *security.TokenProvider
	if cfg.AuthEnabled() {
		tokens, err = security.NewTokenProvider(cfg.IngestTokenSecret, cfg.ServiceName, cfg.IngestTokenAudience, security.DefaultTTL)
		if err != nil {
			log.Fatalf("tokens: %v", err)
		}
	}

	hs := health.NewServer()
	go healthwatch.NewWatcher(hs, c.Pinger, zl, meteringhandler.ServiceName).Run(ctx)

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		log.Fatalf("listen: %v", err)
	}
	defer lis.Close()

	s := grpc.NewServer(server.ServerOptions(zl, tokens)...)
	server.RegisterServices(s, server.Deps{Recorder: c.Dispatcher, Health: hs})

	go func() {
		log.Printf("gRPC server listening on %s (storage %s, auth %v)", cfg.GRPCAddr, cfg.StorageDriver, tokens != nil)
		if err := s.Serve(lis); err != nil {
			log.Fatalf("serve: %v", err)
		}
	}()

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler(c.Registry))
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			log.Printf("metrics listening on %s", cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Fatalf("metrics: %v", err)
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down gRPC server...")
	hs.Shutdown()
	s.GracefulStop()
	cancel()
	if metricsSrv != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = metricsSrv.Shutdown(shutdownCtx)
		shutdownCancel()
	}

	time.Sleep(telemetry.ShutdownDrainDuration)
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer closeCancel()
	if err := c.Close(closeCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	log.Println("gRPC server stopped")
}
