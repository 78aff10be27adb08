package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/elysia-dev/elysia-korea-pf/config"
	"github.com/elysia-dev/elysia-korea-pf/core"
	"github.com/elysia-dev/elysia-korea-pf/core/events"
	nativecommon "github.com/elysia-dev/elysia-korea-pf/native/common"
	"github.com/elysia-dev/elysia-korea-pf/observability/logging"
	telemetry "github.com/elysia-dev/elysia-korea-pf/observability/otel"
	"github.com/elysia-dev/elysia-korea-pf/services/bondd/auth"
	"github.com/elysia-dev/elysia-korea-pf/services/bondd/indexer"
	bondmw "github.com/elysia-dev/elysia-korea-pf/services/bondd/middleware"
	"github.com/elysia-dev/elysia-korea-pf/services/bondd/models"
	"github.com/elysia-dev/elysia-korea-pf/services/bondd/server"
	"github.com/elysia-dev/elysia-korea-pf/services/bondd/stream"
	"github.com/elysia-dev/elysia-korea-pf/storage"
)

const serviceName = "bondd"

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "bondd.toml", "path to bondd config")
	flag.Parse()

	if err := run(cfgPath); err != nil {
		log.Fatalf("bondd: %v", err)
	}
}

// run owns every resource it opens so deferred cleanup runs on all exits.
func run(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	logger := logging.Setup(serviceName, cfg.Environment, logging.Output{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(rootCtx, telemetry.FromEnv(serviceName, cfg.Environment))
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(ctx); err != nil {
			logger.Warn("telemetry shutdown", "error", err)
		}
	}()

	db, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("open state store: %w", err)
	}
	defer db.Close()

	indexDB, err := models.Open(cfg.Indexer.Driver, cfg.Indexer.DSN)
	if err != nil {
		return fmt.Errorf("open indexer: %w", err)
	}
	if sqlDB, err := indexDB.DB(); err == nil {
		defer sqlDB.Close()
	}
	idx, err := indexer.New(indexDB, logger)
	if err != nil {
		return fmt.Errorf("indexer: %w", err)
	}
	hub := stream.NewHub()

	opts := core.Options{
		Admin:   common.HexToAddress(cfg.AdminAddress),
		Emitter: events.Multi{idx, hub},
		Pauses:  nativecommon.NewPauseSet(cfg.Pauses.Modules()...),
		Logger:  logger,
	}
	if cfg.VaultAddress != "" {
		opts.Vault = common.HexToAddress(cfg.VaultAddress)
	}
	node, err := core.NewNode(db, opts)
	if err != nil {
		return fmt.Errorf("node: %w", err)
	}

	verifier, err := auth.NewVerifier(auth.Options{
		Secret:   []byte(cfg.JWT.Secret),
		Issuer:   cfg.JWT.Issuer,
		Audience: cfg.JWT.Audience,
		Leeway:   time.Duration(cfg.JWT.MaxSkewSeconds) * time.Second,
	})
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	srv, err := server.New(server.Config{
		Node:         node,
		DB:           indexDB,
		Indexer:      idx,
		Hub:          hub,
		Verifier:     verifier,
		ClaimLimiter: bondmw.NewRateLimiter("claim", cfg.ClaimRateLimit.PerSecond, cfg.ClaimRateLimit.Burst),
		Logger:       logger,
	})
	if err != nil {
		return fmt.Errorf("server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("bondd listening", "address", cfg.ListenAddress, "admin", node.Admin().Hex(), "vault", node.Vault().Hex())
		serverErr <- httpServer.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("serve: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	hub.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", "error", err)
	}
	return serveErr
}

func openStore(cfg *config.Config) (storage.Database, error) {
	if cfg.Database == "memory" {
		return storage.NewMemDB(), nil
	}
	db, err := storage.NewLevelDB(filepath.Join(cfg.DataDir, "state"))
	if err != nil {
		return nil, err
	}
	return db, nil
}
