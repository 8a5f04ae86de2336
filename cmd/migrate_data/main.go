package main

import (
	"log"

	"connect-gateway/internal/config"
	"connect-gateway/internal/database"
	"connect-gateway/internal/logger"
	"connect-gateway/internal/models"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Copies every table from the SQLite database at DB_PATH into the
// PostgreSQL database described by DB_HOST and friends.
func main() {
	cfg := config.LoadConfig()
	zl, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	// 1. Connect to SQLite (Source)
	sqliteDB, err := gorm.Open(sqlite.Open(cfg.DBPath), &gorm.Config{})
	if err != nil {
		zl.Fatal("failed to open sqlite", zap.String("path", cfg.DBPath), zap.Error(err))
	}
	zl.Info("connected to sqlite", zap.String("path", cfg.DBPath))

	// 2. Connect to PostgreSQL (Destination)
	cfg.DBDriver = config.DriverPostgres
	if err := database.InitGorm(cfg); err != nil {
		zl.Fatal("failed to open postgres", zap.Error(err))
	}
	pgDB := database.GormDB

	failed := 0
	migrateTable := func(tableName string, rows interface{}) {
		if err := sqliteDB.Find(rows).Error; err != nil {
			zl.Error("read failed", zap.String("table", tableName), zap.Error(err))
			failed++
			return
		}
		err := pgDB.Transaction(func(tx *gorm.DB) error {
			return tx.CreateInBatches(rows, 500).Error
		})
		if err != nil {
			zl.Error("write failed", zap.String("table", tableName), zap.Error(err))
			failed++
			return
		}
		zl.Info("table migrated", zap.String("table", tableName))
	}

	// Businesses first; everything else refers to them by code.
	var businesses []models.Business
	migrateTable("businesses", &businesses)

	var contacts []models.Contact
	migrateTable("contacts", &contacts)

	var scheduled []models.ScheduledMessage
	migrateTable("scheduled_messages", &scheduled)

	var logs []models.AutomationLog
	migrateTable("automation_logs", &logs)

	var consent []models.ConsentEvent
	migrateTable("consent_events", &consent)

	if err := database.SyncSequences(pgDB); err != nil {
		zl.Fatal("sequence sync failed", zap.Error(err))
	}
	if failed > 0 {
		zl.Fatal("migration finished with errors", zap.Int("failed_tables", failed))
	}
	zl.Info("migration completed")
}
