package main

import (
	"context"
	"os"

	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/config"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/database"
	"github.com/ATHARV-YOGI/jaipur-book-bazaar/internal/logging"
	"go.uber.org/zap"
)

func main() {
	logger, err := logging.New("info", true)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	if len(os.Args) < 2 {
		logger.Fatal("usage: go run scripts/run_migrations.go [up|down]")
	}
	direction := os.Args[1]

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	db, err := database.NewConnection(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("connect to database", zap.Error(err))
	}
	defer db.Close()

	applied, err := database.RunMigrations(ctx, db, "migrations", direction)
	if err != nil {
		logger.Fatal("run migrations", zap.Error(err))
	}

	for _, name := range applied {
		logger.Info("applied migration", zap.String("file", name))
	}
	logger.Info("migrations complete", zap.Int("count", len(applied)), zap.String("direction", direction))
}
