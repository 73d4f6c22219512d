package main

import (
	"context"
	"errors"
	"net/http"
	"os"

	"github.com/circularlabs/rfid-trace/api/controllers"
	"github.com/circularlabs/rfid-trace/api/routes"
	"github.com/circularlabs/rfid-trace/internal/orders"
	"github.com/circularlabs/rfid-trace/internal/scan"
	"github.com/circularlabs/rfid-trace/pkg/config"
	"github.com/circularlabs/rfid-trace/pkg/db"
	"github.com/circularlabs/rfid-trace/pkg/instance"
	"github.com/circularlabs/rfid-trace/pkg/lock"
	"github.com/circularlabs/rfid-trace/pkg/logger"
	"github.com/circularlabs/rfid-trace/pkg/metrics"
	"github.com/circularlabs/rfid-trace/pkg/migrate"
	"github.com/circularlabs/rfid-trace/pkg/redis"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = redis.New(context.Background(), cfg.Redis)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap redis", err)
			os.Exit(1)
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
	}

	var locker lock.KeyLocker
	switch cfg.Scan.LockBackend {
	case "redis":
		if redisClient == nil {
			logg.Error(context.Background(), "redis lock backend requires a redis connection", errors.New("redis is not configured"))
			os.Exit(1)
		}
		locker = lock.NewRedisLocker(redisClient.Raw(), cfg.Scan.LockTTL)
	default:
		locker = lock.NewLocalLocker()
	}

	registry := prometheus.NewRegistry()
	scanMetrics := metrics.NewScanMetrics(registry)

	ledger, err := orders.NewLedger(orders.NewRepository(dbClient.DB()), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create order ledger", err)
		os.Exit(1)
	}

	scanService, err := scan.NewService(scan.ServiceParams{
		DB:      dbClient,
		Repo:    scan.NewRepository(dbClient.DB()),
		Orders:  ledger,
		Locker:  locker,
		Scan:    cfg.Scan,
		Logger:  logg,
		Metrics: scanMetrics,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create scan service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"instance":     instance.GetID(),
		"lock_backend": cfg.Scan.LockBackend,
	})
	logg.Info(ctx, "starting api server")

	var redisPinger controllers.Pinger
	if redisClient != nil {
		redisPinger = redisClient
	}

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisPinger, scanService, registry),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
