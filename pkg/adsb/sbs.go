package adsb

import (
	"strconv"
	"strings"
	"time"
)

// SBS-1 (BaseStation) field positions, 0-indexed.
//
//	0: MSG
//	1: Transmission type (1-8)
//	4: ICAO hex
//	10: Callsign
//	11: Altitude
//	12: Ground speed
//	13: Track
//	14: Latitude
//	15: Longitude
const (
	fieldMessageType  = 0
	fieldTransmission = 1
	fieldICAO         = 4
	fieldCallsign     = 10
	fieldAltitude     = 11
	fieldGroundSpeed  = 12
	fieldTrack        = 13
	fieldLatitude     = 14
	fieldLongitude    = 15

	// MinFields is the shortest record accepted.
	MinFields = 22
)

// Report is one decoded SBS record. Only the fields its transmission type
// carries are populated, and only when the cell parsed.
type Report struct {
	Kind        uint8
	ICAO        string
	Callsign    Optional[string]
	Altitude    Optional[float64]
	GroundSpeed Optional[float64]
	Track       Optional[float64]
	Latitude    Optional[float64]
	Longitude   Optional[float64]
}

// ParseReport decodes one line of the SBS feed. It returns false when the
// line must be discarded: too few fields, not a MSG record, a non-numeric
// transmission type or an empty ICAO address. A bad value in an individual
// cell is not a discard; that field is simply left unknown.
func ParseReport(line string) (Report, bool) {
	fields := strings.Split(line, ",")
	if len(fields) < MinFields {
		return Report{}, false
	}
	if fields[fieldMessageType] != "MSG" {
		return Report{}, false
	}

	kind, err := strconv.ParseUint(strings.TrimSpace(fields[fieldTransmission]), 10, 8)
	if err != nil {
		return Report{}, false
	}

	icao := strings.TrimSpace(fields[fieldICAO])
	if icao == "" {
		return Report{}, false
	}

	r := Report{Kind: uint8(kind), ICAO: icao}

	switch r.Kind {
	case 1:
		if cs := strings.TrimSpace(fields[fieldCallsign]); cs != "" {
			r.Callsign = Known(cs)
		}
	case 2:
		r.Altitude = parseFloat(fields[fieldAltitude])
		r.GroundSpeed = parseFloat(fields[fieldGroundSpeed])
		r.Track = parseFloat(fields[fieldTrack])
		r.Latitude = parseFloat(fields[fieldLatitude])
		r.Longitude = parseFloat(fields[fieldLongitude])
	case 3:
		r.Altitude = parseFloat(fields[fieldAltitude])
		r.Latitude = parseFloat(fields[fieldLatitude])
		r.Longitude = parseFloat(fields[fieldLongitude])
	case 4:
		r.GroundSpeed = parseFloat(fields[fieldGroundSpeed])
		r.Track = parseFloat(fields[fieldTrack])
	case 5, 7:
		r.Altitude = parseFloat(fields[fieldAltitude])
	}

	return r, true
}

// ApplyTo merges the report into a and stamps it with now.
func (r Report) ApplyTo(a *Aircraft, now time.Time) {
	a.Callsign.Merge(r.Callsign)
	a.Altitude.Merge(r.Altitude)
	a.GroundSpeed.Merge(r.GroundSpeed)
	a.Track.Merge(r.Track)
	a.Latitude.Merge(r.Latitude)
	a.Longitude.Merge(r.Longitude)

	// Always update timestamp
	a.LastUpdated = now
}

// Table is the plain map the registry guards. It is exported so the merge
// can be exercised against a bare snapshot without any locking.
type Table map[string]*Aircraft

// GetOrCreate returns the entry for icao, creating an empty one if needed.
func (t Table) GetOrCreate(icao string, now time.Time) *Aircraft {
	ac, ok := t[icao]
	if !ok {
		ac = &Aircraft{ICAO: icao, LastUpdated: now}
		t[icao] = ac
	}
	return ac
}

// Merge parses line and applies it to t. It reports whether the line was
// attributed to an aircraft; discarded lines leave t untouched.
func Merge(line string, t Table, now time.Time) bool {
	r, ok := ParseReport(line)
	if !ok {
		return false
	}
	r.ApplyTo(t.GetOrCreate(r.ICAO, now), now)
	return true
}

func parseFloat(cell string) Optional[float64] {
	v, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
	if err != nil {
		return Optional[float64]{}
	}
	return Known(v)
}
