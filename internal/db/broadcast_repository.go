package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unklstewy/adsb-xgps/pkg/xgps"
)

// ErrDisabled is returned by a nil repository.
var ErrDisabled = errors.New("broadcast history disabled")

// Limits for Recent.
const (
	DefaultRecentLimit = 50
	MaxRecentLimit     = 1000
)

// BroadcastRecord is one stored XGPS sentence.
type BroadcastRecord struct {
	ID             int64     `json:"id"`
	SentAt         time.Time `json:"sent_at"`
	ICAO           string    `json:"icao"`
	Callsign       string    `json:"callsign"`
	Latitude       float64   `json:"latitude"`
	Longitude      float64   `json:"longitude"`
	AltitudeFt     float64   `json:"altitude_ft"`
	GroundSpeedKts float64   `json:"ground_speed_kts"`
	TrackDeg       float64   `json:"track_deg"`
	Payload        string    `json:"payload"`
}

// BroadcastRepository records sent broadcasts. A nil repository is valid
// and reports ErrDisabled.
type BroadcastRepository struct {
	db *DB
}

// NewBroadcastRepository creates a new broadcast repository.
func NewBroadcastRepository(db *DB) *BroadcastRepository {
	return &BroadcastRepository{db: db}
}

// RecordBroadcast stores one sent sentence. It satisfies xgps.Recorder.
func (r *BroadcastRepository) RecordBroadcast(ctx context.Context, b xgps.Broadcast) error {
	if r == nil {
		return ErrDisabled
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO broadcasts (
			sent_at, icao, callsign, latitude, longitude,
			altitude_ft, ground_speed_kts, track_deg, payload
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		b.SentAt.UTC(), b.ICAO, b.Callsign,
		b.Position.Latitude, b.Position.Longitude,
		b.Position.AltitudeFt, b.Position.GroundSpeed, b.Position.TrackDeg,
		b.Payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert broadcast: %w", err)
	}
	return nil
}

// Recent returns up to limit broadcasts, newest first.
func (r *BroadcastRepository) Recent(ctx context.Context, limit int) ([]BroadcastRecord, error) {
	if r == nil {
		return nil, ErrDisabled
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, sent_at, icao, callsign, latitude, longitude,
		        altitude_ft, ground_speed_kts, track_deg, payload
		 FROM broadcasts
		 ORDER BY sent_at DESC, id DESC
		 LIMIT $1`,
		ClampLimit(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query broadcasts: %w", err)
	}
	defer rows.Close()

	records := []BroadcastRecord{}
	for rows.Next() {
		var rec BroadcastRecord
		if err := rows.Scan(
			&rec.ID, &rec.SentAt, &rec.ICAO, &rec.Callsign,
			&rec.Latitude, &rec.Longitude, &rec.AltitudeFt,
			&rec.GroundSpeedKts, &rec.TrackDeg, &rec.Payload,
		); err != nil {
			return nil, fmt.Errorf("failed to scan broadcast: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read broadcasts: %w", err)
	}
	return records, nil
}

// Stats returns history statistics.
func (r *BroadcastRepository) Stats(ctx context.Context) (map[string]interface{}, error) {
	if r == nil {
		return nil, ErrDisabled
	}
	return r.db.GetStats(ctx)
}

// ClampLimit maps a requested row count into [1, MaxRecentLimit], using
// DefaultRecentLimit for zero or negative values.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultRecentLimit
	case limit > MaxRecentLimit:
		return MaxRecentLimit
	default:
		return limit
	}
}
