package adsb

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"
	"time"
)

// Optional holds a value that may not have been reported yet.
// The zero value is unknown, which is distinct from a known zero.
type Optional[T any] struct {
	value T
	known bool
}

// Known returns an Optional holding v.
func Known[T any](v T) Optional[T] {
	return Optional[T]{value: v, known: true}
}

// Get returns the value and whether it is known.
func (o Optional[T]) Get() (T, bool) {
	return o.value, o.known
}

// IsKnown reports whether a value has been set.
func (o Optional[T]) IsKnown() bool {
	return o.known
}

// OrElse returns the value if known, def otherwise.
func (o Optional[T]) OrElse(def T) T {
	if o.known {
		return o.value
	}
	return def
}

// Merge overwrites o with other only when other is known.
func (o *Optional[T]) Merge(other Optional[T]) {
	if other.known {
		*o = other
	}
}

// MarshalJSON encodes an unknown value as null. NaN and infinities have
// no JSON form and are encoded as null too.
func (o Optional[T]) MarshalJSON() ([]byte, error) {
	if !o.known || !finite(o.value) {
		return []byte("null"), nil
	}
	return json.Marshal(o.value)
}

// UnmarshalJSON decodes null as unknown and anything else as a known value.
func (o *Optional[T]) UnmarshalJSON(b []byte) error {
	if string(bytes.TrimSpace(b)) == "null" {
		*o = Optional[T]{}
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	*o = Known(v)
	return nil
}

func finite(v any) bool {
	switch f := v.(type) {
	case float64:
		return !math.IsNaN(f) && !math.IsInf(f, 0)
	case float32:
		return finite(float64(f))
	default:
		return true
	}
}

// Aircraft is the aggregated state of one aircraft built from SBS reports.
// Every positional field is independently optional; a report only ever
// fills fields in, it never clears them.
type Aircraft struct {
	// ICAO is the 24-bit address in hex as it appears in the feed (e.g., "A12345")
	ICAO string

	// Callsign is the flight number, set only by transmission type 1
	Callsign Optional[string]

	// Latitude in decimal degrees (-90 to +90)
	Latitude Optional[float64]

	// Longitude in decimal degrees (-180 to +180)
	Longitude Optional[float64]

	// Altitude in feet
	Altitude Optional[float64]

	// GroundSpeed in knots
	GroundSpeed Optional[float64]

	// Track is the ground track in degrees (0 = North, 90 = East)
	Track Optional[float64]

	// LastUpdated is refreshed on every report attributed to this aircraft,
	// whether or not the report carried a usable field.
	LastUpdated time.Time
}

// Position is a complete fix suitable for broadcasting.
type Position struct {
	Longitude   float64
	Latitude    float64
	AltitudeFt  float64
	TrackDeg    float64
	GroundSpeed float64 // knots
}

// Position returns the aircraft's fix if all five of longitude, latitude,
// altitude, track and ground speed are known.
func (a Aircraft) Position() (Position, bool) {
	lon, ok1 := a.Longitude.Get()
	lat, ok2 := a.Latitude.Get()
	alt, ok3 := a.Altitude.Get()
	trk, ok4 := a.Track.Get()
	gs, ok5 := a.GroundSpeed.Get()
	if !(ok1 && ok2 && ok3 && ok4 && ok5) {
		return Position{}, false
	}
	return Position{
		Longitude:   lon,
		Latitude:    lat,
		AltitudeFt:  alt,
		TrackDeg:    trk,
		GroundSpeed: gs,
	}, true
}

// MatchesCallsign compares the stored callsign against cs ignoring case.
// An unknown callsign or an empty cs never matches.
func (a Aircraft) MatchesCallsign(cs string) bool {
	stored, ok := a.Callsign.Get()
	if !ok || stored == "" || cs == "" {
		return false
	}
	return strings.EqualFold(stored, cs)
}

// Age returns how long ago the aircraft was last heard relative to now.
func (a Aircraft) Age(now time.Time) time.Duration {
	return now.Sub(a.LastUpdated)
}
