package main

import (
	"context"
	"log"
	"os"

	"gigradar/common/database"
	"gigradar/common/database/schema"
	"gigradar/common/database/schema/migrations"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("Failed to load .env file", zap.Error(err))
	}

	ctx := context.Background()

	dsn := os.Getenv("DATABASE_DSN")
	if dsn == "" {
		dsn = "sqlite://data/gigradar.db"
	}

	db, err := database.New(ctx, database.Options{DSN: dsn}, logger)
	if err != nil {
		logger.Fatal("Failed to open database", zap.Error(err))
	}
	defer db.Close()

	applied, err := schema.NewMigrator(db, logger).Migrate(ctx, migrations.Relational)
	if err != nil {
		logger.Fatal("Failed to apply relational migrations", zap.Error(err))
	}
	logger.Info("Relational migrations completed", zap.Int("applied", applied))

	chDSN := os.Getenv("CLICKHOUSE_DSN")
	if chDSN == "" {
		logger.Info("CLICKHOUSE_DSN not set, skipping analytics migrations")
		return
	}

	ch, err := database.NewClickHouse(ctx, database.Options{
		DSN:      chDSN,
		Database: envOr("CLICKHOUSE_DATABASE", "gigradar"),
		Username: envOr("CLICKHOUSE_USERNAME", "default"),
		Password: os.Getenv("CLICKHOUSE_PASSWORD"),
	}, logger)
	if err != nil {
		logger.Fatal("Failed to connect to ClickHouse", zap.Error(err))
	}
	defer ch.Close()

	applied, err = schema.NewMigrator(ch, logger).Migrate(ctx, migrations.Analytics)
	if err != nil {
		logger.Fatal("Failed to apply analytics migrations", zap.Error(err))
	}

	logger.Info("All migrations completed successfully", zap.Int("analytics_applied", applied))
}

func envOr(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}
