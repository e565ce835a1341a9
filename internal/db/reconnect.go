package db

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/unklstewy/adsb-xgps/pkg/config"
	"github.com/unklstewy/adsb-xgps/pkg/retry"
)

// ReconnectWithRetry connects with exponential backoff.
// This provides resilience against a database that starts after us.
//
// Parameters:
//   - ctx: Cancels the remaining attempts
//   - cfg: Database configuration
//   - maxRetries: Maximum number of retries after the first attempt
//
// Returns: Connected database or error if all retries exhausted
func ReconnectWithRetry(ctx context.Context, cfg config.DatabaseConfig, maxRetries int) (*DB, error) {
	rc := retry.DefaultConfig()
	rc.MaxRetries = maxRetries
	rc.OnRetry = func(attempt int, err error, delay time.Duration) {
		log.Printf("Database connection failed: %v (retry %d in %v)", err, attempt, delay)
	}

	db, err := retry.DoResult(ctx, rc, func() (*DB, error) {
		return Connect(cfg)
	})
	if err != nil {
		return nil, err
	}
	log.Println("✓ Database connected")
	return db, nil
}

// HealthCheck performs a health check on the database.
// Returns true if the database is healthy and ready for operations.
func HealthCheck(ctx context.Context, db *DB) bool {
	if db == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	var result int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		log.Printf("Database health check failed: %v", err)
		return false
	}
	return result == 1
}

// IsConnectionError reports whether err looks like a lost connection
// rather than a problem with the statement.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"connection refused",
		"broken pipe",
		"no connection",
		"connection reset",
		"bad connection",
		"eof",
		"timeout",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
