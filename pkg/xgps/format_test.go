package xgps

import (
	"math"
	"strconv"
	"strings"
	"testing"

	"github.com/unklstewy/adsb-xgps/pkg/adsb"
)

// TestFormatMessage tests the sentence layout and unit conversion.
func TestFormatMessage(t *testing.T) {
	pos := adsb.Position{
		Latitude:    34.55,
		Longitude:   -80.11,
		AltitudeFt:  3937,
		TrackDeg:    359.05,
		GroundSpeed: 108.089,
	}

	got := FormatMessage("adsb_xgps", pos)
	// 3937 ft is 1199.9976 m.
	want := "XGPSadsb_xgps,-80.11,34.55,1200.0,359.05,55.6"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}

	fields := strings.Split(got, ",")
	if len(fields) != 6 {
		t.Fatalf("Expected 6 fields, got %d", len(fields))
	}
	alt, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		t.Fatalf("Altitude not numeric: %v", err)
	}
	if math.Abs(alt-1200.1) > 0.2 {
		t.Errorf("Expected altitude within 0.2 of 1200.1, got %v", alt)
	}
}

// TestFormatMessageCoordinates tests shortest round-trip coordinates.
func TestFormatMessageCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		lat     float64
		lon     float64
		wantLon string
		wantLat string
	}{
		{"Integers", 40, -74, "-74", "40"},
		{"Many decimals", 51.47795, -0.461388, "-0.461388", "51.47795"},
		{"Zero", 0, 0, "0", "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := FormatMessage("x", adsb.Position{Latitude: tt.lat, Longitude: tt.lon})
			fields := strings.Split(msg, ",")
			if fields[0] != "XGPSx" {
				t.Errorf("Expected prefix XGPSx, got %s", fields[0])
			}
			if fields[1] != tt.wantLon {
				t.Errorf("Expected lon %s, got %s", tt.wantLon, fields[1])
			}
			if fields[2] != tt.wantLat {
				t.Errorf("Expected lat %s, got %s", tt.wantLat, fields[2])
			}
			if fields[3] != "0.0" || fields[4] != "0.00" || fields[5] != "0.0" {
				t.Errorf("Expected zero alt/track/speed, got %v", fields[3:])
			}
		})
	}
}
