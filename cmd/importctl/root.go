package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/merchant-import/internal/config"
	"github.com/JonMunkholm/merchant-import/internal/database"
	"github.com/JonMunkholm/merchant-import/internal/logging"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "importctl",
	Short: "Run merchant CSV imports from the command line",
	Long: `importctl runs the same import pipelines as the HTTP server against the
configured database. Configuration is read from the environment and .env.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		_ = godotenv.Load()
	},
}

func execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		logging.New(os.Stderr, "info", "text").Error("command failed", "error", err)
		os.Exit(1)
	}
}

// connect loads configuration, sets up logging to stderr and opens the
// pool. Stdout is kept for command output.
func connect(ctx context.Context) (*config.Config, *pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}
	slog.SetDefault(logging.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))

	pool, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return cfg, pool, nil
}
