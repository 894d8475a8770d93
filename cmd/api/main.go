package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/rulings-explorer/backend/internal/api"
	"github.com/rulings-explorer/backend/internal/cache/redis"
	"github.com/rulings-explorer/backend/internal/dashboard"
	"github.com/rulings-explorer/backend/internal/dataset"
	"github.com/rulings-explorer/backend/internal/metrics"
	"github.com/rulings-explorer/backend/internal/storage/sqlite"
	"github.com/rulings-explorer/backend/pkg/config"
	appLogger "github.com/rulings-explorer/backend/pkg/logger"
	"github.com/rulings-explorer/backend/pkg/retry"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	err = appLogger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.OutputPath)
	if err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer appLogger.Sync()

	appLogger.Info("Starting rulings explorer", zap.String("dataset", cfg.Dataset.Path))
	metrics.Init()

	ds, err := dataset.Load(cfg.Dataset.Path, dataset.LoadOptions{
		FillMissing: cfg.Dataset.FillMissing,
		StripHTML:   cfg.Dataset.StripHTML,
	})
	if err != nil {
		// Surface the failure on stderr too; the log may be going to a file.
		fmt.Fprintf(os.Stderr, "Error al cargar los datos: %v\n", err)
		appLogger.Fatal("Failed to load dataset", zap.Error(err))
	}

	opts := dashboard.Options{
		Sentinel:        cfg.Dataset.Sentinel,
		DateLayout:      cfg.Dataset.DateLayout,
		ChartLimit:      cfg.Dashboard.ChartLimit,
		ChartTerms:      cfg.Dashboard.ChartTerms,
		DefaultTopTerms: cfg.Dashboard.DefaultTopTerms,
		MinTopTerms:     cfg.Dashboard.MinTopTerms,
		MaxTopTerms:     cfg.Dashboard.MaxTopTerms,
		PageSize:        cfg.Dashboard.PageSize,
		MaxPageSize:     cfg.Dashboard.MaxPageSize,
		MaxSearchTerms:  cfg.Dashboard.MaxSearchTerms,
		MemoTTL:         time.Duration(cfg.Dashboard.MemoTTLSeconds) * time.Second,
		CacheTTL:        time.Duration(cfg.Redis.TTLSeconds) * time.Second,
	}
	ready := map[string]api.Pinger{}

	if cfg.Redis.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		redisClient, err := redis.NewClient(ctx, cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB)
		cancel()
		if err != nil {
			appLogger.Warn("Redis unavailable, using in-process cache only", zap.Error(err))
		} else {
			defer redisClient.Close()
			opts.Cache = redisClient
			ready["redis"] = redisClient
		}
	}

	engine := dashboard.NewEngine(ds, opts)

	var audit *sqlite.Client
	if cfg.SQLite.Enabled {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		audit, err = sqlite.Open(ctx, cfg.SQLite.Path, retry.Config{MaxAttempts: 5, Logger: appLogger.Log})
		cancel()
		if err != nil {
			appLogger.Fatal("Failed to open SQLite audit store", zap.Error(err))
		}
		defer audit.Close()
		ready["sqlite"] = audit
	}

	srvOpts := api.Options{
		Engine:            engine,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:      time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:         cfg.Server.BodyLimit,
		RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
		Development:       cfg.Server.Development,
		AccessLog:         true,
		Ready:             ready,
	}
	if audit != nil {
		srvOpts.Audit = audit
	}
	server := api.New(srvOpts)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	appLogger.Info("Server starting", zap.String("address", addr), zap.Int("rows", ds.Len()))

	go func() {
		if err := server.Listen(addr); err != nil {
			appLogger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("Server shutting down gracefully...")
	if err := server.Shutdown(); err != nil {
		appLogger.Error("Shutdown failed", zap.Error(err))
	}
	appLogger.Info("Server stopped")
}
