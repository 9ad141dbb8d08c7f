// Package postgres backs the job, playbook and diff stores with PostgreSQL
// through GORM. The in-memory stores remain the default; this package is
// selected when a database URL is configured.
package postgres

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB wraps the shared GORM handle the stores hang off.
type DB struct {
	gorm *gorm.DB
}

// Open connects to the database and migrates the schema.
func Open(dsn string) (*DB, error) {
	g, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connecting to postgres: %w", err)
	}

	if err := g.AutoMigrate(
		&scanJobRecord{},
		&playbookRecord{},
		&diffReportRecord{},
	); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &DB{gorm: g}, nil
}

// Close releases the underlying connection pool.
func (d *DB) Close() error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Jobs returns the job store backed by this database.
func (d *DB) Jobs() *JobStore { return &JobStore{db: d.gorm} }

// Playbooks returns the playbook store backed by this database.
func (d *DB) Playbooks() *PlaybookStore { return &PlaybookStore{db: d.gorm} }

// Diffs returns the diff report store backed by this database.
func (d *DB) Diffs() *DiffStore { return &DiffStore{db: d.gorm} }
