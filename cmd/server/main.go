package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/JonMunkholm/merchant-import/internal/config"
	"github.com/JonMunkholm/merchant-import/internal/core"
	_ "github.com/JonMunkholm/merchant-import/internal/core/processors" // Register import domains
	"github.com/JonMunkholm/merchant-import/internal/database"
	"github.com/JonMunkholm/merchant-import/internal/logging"
	"github.com/JonMunkholm/merchant-import/internal/pubsub"
	"github.com/JonMunkholm/merchant-import/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"upload_max_concurrent", cfg.Upload.MaxConcurrent,
		"batch_size", cfg.Upload.BatchSize,
		"redis_enabled", cfg.Redis.Enabled,
	)

	ctx := context.Background()
	pool, err := database.Open(ctx, cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		slog.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	// Background jobs stop when this context is cancelled
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	opts := core.ServiceOptions{History: database.NewJobStore(pool)}

	var rdb *redis.Client
	origin := pubsub.NewOrigin()
	if cfg.Redis.Enabled {
		rdb, err = pubsub.NewClient(ctx, cfg.Redis)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()

		opts.Broadcasters = append(opts.Broadcasters, pubsub.NewBroadcaster(rdb, cfg.Redis, origin))
		slog.Info("redis progress fan-out enabled", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	}

	service := core.NewService(database.NewStore(pool, cfg.Database.StatementTimeout), cfg, opts)

	keys := core.Keys()
	slog.Info("import domains registered", "count", len(keys), "domains", keys)

	go service.StartHistoryPruner(jobCtx, cfg.History)

	// Events from jobs on other instances reach local progress streams
	if rdb != nil {
		relay := pubsub.NewRelay(rdb, cfg.Redis.Channel, origin, service.Hub())
		go func() {
			if err := relay.Run(jobCtx); err != nil {
				slog.Error("progress relay failed", "error", err)
			}
		}()
	}

	server := web.NewServer(service, cfg)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if status := service.LimiterStatus(); status.Active > 0 {
			slog.Info("waiting for imports to complete", "active", status.Active)
			if err := service.WaitForJobs(shutdownCtx); err != nil {
				slog.Warn("imports did not complete in time", "error", err)
			} else {
				slog.Info("all imports completed")
			}
		}
		service.Close()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
	}()

	slog.Info("server starting", "addr", cfg.Server.Addr())
	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server stopped", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}
