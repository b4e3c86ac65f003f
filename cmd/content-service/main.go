package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pribylovaa/go-content-platform/internal/cache"
	"github.com/pribylovaa/go-content-platform/internal/config"
	"github.com/pribylovaa/go-content-platform/internal/hasher"
	"github.com/pribylovaa/go-content-platform/internal/monitor"
	"github.com/pribylovaa/go-content-platform/internal/service"
	csmongo "github.com/pribylovaa/go-content-platform/internal/storage/mongo"
	"github.com/pribylovaa/go-content-platform/internal/telemetry"
	"github.com/pribylovaa/go-content-platform/internal/token"
	grpctransport "github.com/pribylovaa/go-content-platform/internal/transport/grpc"
	httptransport "github.com/pribylovaa/go-content-platform/internal/transport/http"
	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file (overrides CONFIG_PATH env)")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	log := setupLogger(cfg.Env)
	slog.SetDefault(log)
	log.Info("starting content-service", "env", cfg.Env)

	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer rootCancel()

	shutdownTracing, err := telemetry.Init(rootCtx, cfg.Telemetry)
	if err != nil {
		log.Error("telemetry_init_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}

	mon := monitor.New(monitor.WithThreshold(cfg.Monitor.SlowThreshold))

	dbCtx, dbCancel := context.WithTimeout(rootCtx, 10*time.Second)
	store, err := csmongo.New(dbCtx, cfg, mon)
	dbCancel()
	if err != nil {
		log.Error("mongo_connect_failed", slog.String("err", err.Error()))
		os.Exit(1)
	}
	log.Info("mongo_connected")

	var categories cache.CategoryCache
	if cfg.Redis.URL != "" {
		rc, err := cache.NewRedisCache(rootCtx, cfg.Redis.URL, cfg.Redis.Prefix, cfg.Redis.TTL)
		if err != nil {
			log.Error("redis_connect_failed", slog.String("err", err.Error()))
			_ = store.Close(context.Background())
			os.Exit(1)
		}
		defer func() { _ = rc.Close() }()

		cache.MustRegisterMetrics(prometheus.DefaultRegisterer)
		categories = rc
		log.Info("redis_connected")
	}

	svc := service.New(store, *cfg, hasher.New(cfg.Hash.Cost), categories)
	log.Info("service_initialized")

	var ready atomic.Bool

	routerOpts := httptransport.Options{
		Logger:   log,
		Timeout:  cfg.Timeouts.Service,
		BasePath: cfg.HTTP.BasePath,
		Ready:    ready.Load,
	}
	if cfg.Auth.JWTSecret != "" {
		routerOpts.Tokens = token.New(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	} else {
		log.Warn("admin_routes_disabled", "reason", "auth.jwt_secret is empty")
	}

	httpAddr := cfg.HTTP.Addr()
	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           httptransport.NewRouter(svc, routerOpts),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info("http_listen_start", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}()

	grpcServer, hs := grpctransport.NewServer(log, grpctransport.Options{
		Timeout:    cfg.Timeouts.Service,
		Reflection: cfg.Env == envLocal || cfg.Env == envDev,
	})

	addr := cfg.GRPC.Addr()
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Error("grpc_listen_failed",
			slog.String("addr", addr),
			slog.String("err", err.Error()),
		)
		_ = httpSrv.Shutdown(context.Background())
		_ = store.Close(context.Background())
		os.Exit(1)
	}
	log.Info("grpc_listen_start", slog.String("addr", addr))

	reportDone := make(chan struct{})
	go func() {
		grpctransport.NewHealthReporter(hs, store, grpctransport.DefaultHealthInterval).Run(rootCtx)
		close(reportDone)
	}()

	ready.Store(true)

	serveErrCh := make(chan error, 1)
	go func() {
		if err := grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			serveErrCh <- err
		}
		close(serveErrCh)
	}()

	select {
	case <-rootCtx.Done():
		log.Info("shutdown_requested")
	case err := <-serveErrCh:
		if err != nil {
			log.Error("grpc_serve_failed", slog.String("err", err.Error()))
		}
	}

	ready.Store(false)
	rootCancel()
	<-reportDone

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		log.Info("grpc_stopped")
	case <-shutdownCtx.Done():
		log.Warn("grpc_force_stop")
		grpcServer.Stop()
	}

	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http_shutdown_failed", slog.String("err", err.Error()))
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Warn("telemetry_shutdown_failed", slog.String("err", err.Error()))
	}

	_ = store.Close(context.Background())

	log.Info("service_stopped")
}

func setupLogger(env string) *slog.Logger {
	switch env {
	case envLocal:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envDev:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case envProd:
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	default:
		return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
}
