package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// EventRecord is an indexed, committed settlement event.
type EventRecord struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	Seq       int64     `gorm:"uniqueIndex"`
	Type      string    `gorm:"size:64;index"`
	ProductID *uint64   `gorm:"index"`
	Holder    string    `gorm:"size:42;index"`
	// Attributes holds the JSON encoded event attributes.
	Attributes string `gorm:"type:text"`
	CreatedAt  time.Time
}

// IdempotencyKey stores request idempotency metadata. Fingerprint is the
// blake3 digest of the method, path, caller and body of the first request.
type IdempotencyKey struct {
	Key         string `gorm:"primaryKey;size:128"`
	RequestID   string `gorm:"size:64"`
	Fingerprint string `gorm:"size:64"`
	Method      string `gorm:"size:8"`
	Path        string `gorm:"size:255"`
	Status      int
	Response    string `gorm:"type:text"`
	CreatedAt   time.Time
}

// AutoMigrate performs all schema migrations for the service.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&EventRecord{},
		&IdempotencyKey{},
	)
}

// Open connects to the configured relational store and migrates the schema.
func Open(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("models: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)})
	if err != nil {
		return nil, fmt.Errorf("models: open %s: %w", driver, err)
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("models: migrate: %w", err)
	}
	return db, nil
}
