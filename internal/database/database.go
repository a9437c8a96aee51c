package database

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/alpes214/crawler/internal/config"
	"github.com/alpes214/crawler/internal/logging"
	"github.com/alpes214/crawler/internal/model"
)

var db *gorm.DB

// InitDB opens the Postgres connection and migrates the orchestration
// core's four primary relations.
func InitDB(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s TimeZone=UTC",
		cfg.Host, cfg.User, cfg.Password, cfg.DBName, cfg.Port, cfg.SSLMode)

	db, err = gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	logging.Logger.Info("database connection established")

	err = db.AutoMigrate(
		&model.Host{},
		&model.CrawlTask{},
		&model.Proxy{},
		&model.HostProxyBinding{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}

	// AutoMigrate can't express a partial unique index from struct tags
	// alone, so the "at most one live task per (host, fingerprint)"
	// invariant is enforced here directly: this is the actual backstop
	// against two concurrent CreateTask calls both racing past their
	// in-transaction duplicate check.
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_crawl_tasks_host_fp_live
		ON crawl_tasks (host_id, url_fp)
		WHERE status NOT IN ('completed', 'failed', 'cancelled')
	`).Error; err != nil {
		return nil, fmt.Errorf("failed to create live-task uniqueness index: %w", err)
	}
	logging.Logger.Info("database migration complete")
	return db, nil
}

// GetDB returns the process-wide *gorm.DB, panicking if InitDB hasn't run.
func GetDB() *gorm.DB {
	if db == nil {
		panic("database not initialized")
	}
	return db
}
