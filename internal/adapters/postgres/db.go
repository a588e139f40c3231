package postgres

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// PoolConfig sizes the connection pool behind the archive. Zero values fall
// back to the defaults applied by withDefaults.
type PoolConfig struct {
	MaxOpenConns    int32
	MaxIdleConns    int32
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

func (p PoolConfig) withDefaults() PoolConfig {
	if p.MaxIdleConns <= 0 && p.MaxOpenConns > 0 {
		p.MaxIdleConns = p.MaxOpenConns / 2
	}
	if p.ConnMaxIdleTime <= 0 {
		p.ConnMaxIdleTime = 15 * time.Minute
	}
	if p.ConnMaxLifetime <= 0 {
		p.ConnMaxLifetime = time.Hour
	}
	if p.PingTimeout <= 0 {
		p.PingTimeout = 5 * time.Second
	}
	return p
}

func (p PoolConfig) apply(sqlDB *sql.DB) {
	if p.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(int(p.MaxOpenConns))
	}
	if p.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(int(p.MaxIdleConns))
	}
	sqlDB.SetConnMaxIdleTime(p.ConnMaxIdleTime)
	sqlDB.SetConnMaxLifetime(p.ConnMaxLifetime)
}

// Connect opens the archive database, sizes its pool and checks that it
// answers within the ping timeout.
func Connect(ctx context.Context, databaseURL string, pool PoolConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(databaseURL), &gorm.Config{
		PrepareStmt:    true,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("connect archive database: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("archive sql db: %w", err)
	}
	pool = pool.withDefaults()
	pool.apply(sqlDB)
	pingCtx, cancel := context.WithTimeout(ctx, pool.PingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping archive database: %w", err)
	}
	return db, nil
}

const (
	createSchemaMigrationsSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version    TEXT PRIMARY KEY,
    applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`
	selectSchemaMigrationsSQL = `SELECT version FROM schema_migrations`
	insertSchemaMigrationSQL  = `INSERT INTO schema_migrations (version) VALUES (?)`
)

// RunMigrations applies the embedded migrations that schema_migrations does
// not list yet, in file name order. Each file and its bookkeeping row commit
// together, so a worker restart resumes after the last applied file.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	names, err := migrationNames()
	if err != nil {
		return err
	}
	db = db.WithContext(ctx)
	if err := db.Exec(createSchemaMigrationsSQL).Error; err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}
	var versions []string
	if err := db.Raw(selectSchemaMigrationsSQL).Scan(&versions).Error; err != nil {
		return fmt.Errorf("list applied migrations: %w", err)
	}
	applied := make(map[string]bool, len(versions))
	for _, v := range versions {
		applied[v] = true
	}

	for _, name := range names {
		if applied[name] {
			continue
		}
		raw, readErr := migrationFS.ReadFile("migrations/" + name)
		if readErr != nil {
			return fmt.Errorf("read migration %s: %w", name, readErr)
		}
		txErr := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(string(raw)).Error; err != nil {
				return err
			}
			return tx.Exec(insertSchemaMigrationSQL, name).Error
		})
		if txErr != nil {
			return fmt.Errorf("apply migration %s: %w", name, txErr)
		}
	}
	return nil
}

func migrationNames() ([]string, error) {
	entries, err := migrationFS.ReadDir("migrations")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}
