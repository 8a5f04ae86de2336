package main

import (
	"log"

	"connect-gateway/internal/config"
	"connect-gateway/internal/database"
	"connect-gateway/internal/logger"

	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()
	zl, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	if err := database.InitGorm(cfg); err != nil {
		zl.Fatal("database init failed", zap.Error(err))
	}

	zl.Info("syncing sequences", zap.String("driver", cfg.DBDriver), zap.Strings("tables", database.SerialTables))
	if err := database.SyncSequences(database.GormDB); err != nil {
		zl.Fatal("sequence sync failed", zap.Error(err))
	}
	zl.Info("sequences synced")
}
