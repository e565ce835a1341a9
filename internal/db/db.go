// Package db stores the optional broadcast history in PostgreSQL.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/unklstewy/adsb-xgps/pkg/config"
)

//go:embed schema.sql
var schemaSQL embed.FS

// DB wraps a database connection with helper methods.
type DB struct {
	*sql.DB
	config config.DatabaseConfig
}

// ConnString builds the lib/pq keyword/value connection string.
func ConnString(cfg config.DatabaseConfig) string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host,
		cfg.Port,
		cfg.Username,
		cfg.Password,
		cfg.Database,
		cfg.SSLMode,
	)
}

// Connect establishes a connection to the PostgreSQL database.
func Connect(cfg config.DatabaseConfig) (*DB, error) {
	sqlDB, err := sql.Open("postgres", ConnString(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{
		DB:     sqlDB,
		config: cfg,
	}, nil
}

// InitSchema creates the broadcast history table if needed.
// This should be called once at application startup.
func (db *DB) InitSchema(ctx context.Context) error {
	schemaBytes, err := schemaSQL.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema file: %w", err)
	}

	if _, err := db.ExecContext(ctx, string(schemaBytes)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	return nil
}

// CleanupOldData deletes broadcast history older than maxAge and returns
// the number of rows removed.
func (db *DB) CleanupOldData(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-maxAge)

	res, err := db.ExecContext(ctx, `DELETE FROM broadcasts WHERE sent_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to delete old broadcasts: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted broadcasts: %w", err)
	}
	return n, nil
}

// RunCleanup calls CleanupOldData every interval until ctx is cancelled.
// Failures are logged and retried on the next interval.
func (db *DB) RunCleanup(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cctx, cancel := context.WithTimeout(ctx, 30*time.Second)
			n, err := db.CleanupOldData(cctx, db.config.Retention())
			cancel()
			if err != nil {
				if IsConnectionError(err) {
					log.Printf("⚠️  Broadcast history database unreachable: %v", err)
				} else {
					log.Printf("Error cleaning broadcast history: %v", err)
				}
				continue
			}
			if n > 0 {
				log.Printf("  ℹ Removed %d broadcast records older than %v", n, db.config.Retention())
			}
		}
	}
}

// GetStats returns database statistics.
func (db *DB) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var total int64
	var aircraft int
	var last sql.NullTime
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT icao), MAX(sent_at) FROM broadcasts`,
	).Scan(&total, &aircraft, &last)
	if err != nil {
		return nil, err
	}

	stats["broadcast_records"] = total
	stats["distinct_aircraft"] = aircraft
	if last.Valid {
		stats["last_broadcast"] = last.Time.UTC()
	}

	return stats, nil
}
