package database

import (
	"fmt"

	"gorm.io/gorm"
)

// SerialTables lists the tables with an auto-increment id column.
var SerialTables = []string{
	"scheduled_messages",
	"automation_logs",
	"consent_events",
}

// SyncSequences moves each PostgreSQL id sequence past the largest id
// present, as needed after rows were copied in with explicit ids. Other
// dialects need no adjustment.
func SyncSequences(db *gorm.DB) error {
	if db.Dialector.Name() != "postgres" {
		return nil
	}
	for _, table := range SerialTables {
		query := "SELECT setval(pg_get_serial_sequence('" + table + "', 'id'), coalesce(max(id), 0) + 1, false) FROM " + table
		if err := db.Exec(query).Error; err != nil {
			return fmt.Errorf("sync sequence for %s: %w", table, err)
		}
	}
	return nil
}
