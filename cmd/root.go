package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	postgresdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	cfg           Config
	logger        *slog.Logger
	closeLogger   func() error
	migrateFirst  bool
	withDirectory bool
)

var rootCmd = &cobra.Command{
	Use:     "routeopt",
	Short:   "Route optimisation service",
	Version: Version,
	Long: `routeopt plans delivery routes for a merchant's drivers and keeps them
consistent while jobs are moved, reordered, delivered or cancelled.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "help" || cmd.Name() == "version" {
			return nil
		}
		var err error
		cfg, err = LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger, closeLogger = SetupLogger(cfg.LogFile, cfg.LogLevel)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if closeLogger != nil {
			if err := closeLogger(); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close log file: %v\n", err)
			}
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	serveCmd.Flags().BoolVar(&migrateFirst, "migrate", false, "migrate the schema before serving")
	migrateCmd.Flags().BoolVar(&withDirectory, "with-directory", false, "also create the replicated directory tables")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

func openDB(cfg Config) (*gorm.DB, error) {
	db, err := gorm.Open(postgresdriver.Open(cfg.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

// openRedis returns nil when no address is configured.
func openRedis(ctx context.Context, cfg Config) (goredis.UniversalClient, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	client := goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs:    []string{cfg.RedisAddr},
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis %s: %w", cfg.RedisAddr, err)
	}
	return client, nil
}

func closeDB(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		return
	}
	if err = sqlDB.Close(); err != nil {
		logger.Warn("failed to close database", "error", err)
	}
}
