// Package testing provides test utilities and database setup for testing the automation engine
package testing

import (
	"context"
	"fmt"

	"github.com/arvand/adpilot/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB represents an in-memory test database instance
type TestDB struct {
	DB *gorm.DB
}

// SetupTestDB creates an in-memory sqlite database and migrates the schema.
// Every call gets its own database, so tests stay isolated.
func SetupTestDB() (*TestDB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open test database: %w", err)
	}

	// A single connection keeps the in-memory database alive for the
	// lifetime of the handle and serializes concurrent test writes.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.Admin{},
		&models.AdAccount{},
		&models.AdCampaign{},
		&models.AdSet{},
		&models.Ad{},
		&models.MetricSnapshot{},
		&models.AutomationRule{},
		&models.AutomationLog{},
		&models.Insight{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate test database: %w", err)
	}

	return &TestDB{DB: db}, nil
}

// TeardownTestDB closes the database connection
func (tdb *TestDB) TeardownTestDB() error {
	if tdb.DB == nil {
		return nil
	}
	sqlDB, err := tdb.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// CreateTestContext creates a context for testing
func CreateTestContext() context.Context {
	return context.Background()
}
