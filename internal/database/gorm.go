package database

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"connect-gateway/internal/catalog"
	"connect-gateway/internal/config"
	"connect-gateway/internal/models"
	"connect-gateway/internal/policy"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var GormDB *gorm.DB

// Open connects to the database selected by DB_DRIVER.
func Open(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch cfg.DBDriver {
	case config.DriverPostgres:
		dialector = postgres.Open(cfg.PostgresDSN())
	case config.DriverSQLite, "":
		dialector = sqlite.Open(cfg.DBPath)
	default:
		return nil, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.New(log.New(os.Stdout, "\r\n", log.LstdFlags), logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormLogLevel(cfg.LogLevel),
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", cfg.DBDriver, err)
	}
	return db, nil
}

// InitGorm opens the database, migrates it and stores it in GormDB.
func InitGorm(cfg *config.Config) error {
	db, err := Open(cfg)
	if err != nil {
		return err
	}
	if err := Migrate(db); err != nil {
		return err
	}
	GormDB = db
	return nil
}

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(models.All()...); err != nil {
		return fmt.Errorf("auto-migration: %w", err)
	}
	return nil
}

// SeedBusinesses inserts the catalog's sample businesses that do not exist
// yet and reports how many were created. Existing rows are left untouched.
func SeedBusinesses(db *gorm.DB, c *catalog.Catalog, quiet policy.QuietHours) (int, error) {
	created := 0
	for _, sample := range c.Businesses() {
		var existing models.Business
		err := db.Where("code = ?", sample.Code).First(&existing).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return created, err
		}

		settings, err := c.Settings(sample, quiet)
		if err != nil {
			return created, fmt.Errorf("seed %s: %w", sample.Code, err)
		}
		biz := models.Business{
			Code:             sample.Code,
			Name:             sample.Name,
			PhoneNumberID:    sample.PhoneNumberID,
			OpsPhoneNumberID: sample.OpsPhoneNumberID,
			Ruleset:          sample.Ruleset,
		}
		if err := biz.SetPolicySettings(settings); err != nil {
			return created, err
		}
		if err := db.Create(&biz).Error; err != nil {
			return created, fmt.Errorf("seed %s: %w", sample.Code, err)
		}
		created++
	}
	return created, nil
}

func gormLogLevel(level string) logger.LogLevel {
	switch level {
	case "debug":
		return logger.Info
	case "warn":
		return logger.Warn
	case "error":
		return logger.Error
	}
	return logger.Silent
}
