package main

import (
	"context"
	"fmt"
	"os"

	"dashboard/config"
	"dashboard/database"
	"dashboard/logger"
	"dashboard/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Bahiran restaurant and admin dashboard backend",
	// Errors are logged by the commands themselves.
	SilenceUsage: true,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the dashboard HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync()
		return serve(cmd.Context(), cfg, log)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the session tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync()

		db, err := database.Connect(cfg.Database)
		if err != nil {
			return err
		}
		defer database.Close(db)
		return database.Migrate(db, log)
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge-sessions",
	Short: "Delete expired dashboard sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log, err := bootstrap()
		if err != nil {
			return err
		}
		defer log.Sync()

		db, err := database.Connect(cfg.Database)
		if err != nil {
			return err
		}
		defer database.Close(db)

		key, err := cfg.Session.SealKeyBytes()
		if err != nil {
			return fmt.Errorf("decoding seal key: %w", err)
		}
		sealer, err := utils.NewSealer(key)
		if err != nil {
			return err
		}
		n, err := database.NewSessionRepository(db, sealer).PurgeExpired(cmd.Context())
		if err != nil {
			return err
		}
		log.Info("expired sessions purged", zap.Int64("count", n))
		return nil
	},
}

func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	log = log.With(zap.String("app", cfg.App.Name), zap.String("env", cfg.App.Environment))
	return cfg, log, nil
}

func main() {
	rootCmd.AddCommand(serveCmd, migrateCmd, purgeCmd)
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
