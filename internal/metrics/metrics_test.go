package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestCounters tests that recording methods reach the collectors.
func TestCounters(t *testing.T) {
	m := New()

	m.ConnectAttempt(nil)
	m.ConnectAttempt(errors.New("connection refused"))
	m.ConnectAttempt(errors.New("connection refused"))
	m.Disconnected()
	m.SetFeedState(2)
	m.Line(true)
	m.Line(true)
	m.Line(false)
	m.BroadcastSent()
	m.BroadcastSkipped("stale")
	m.SendError()

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"connects", testutil.ToFloat64(m.feedConnects), 1},
		{"connect failures", testutil.ToFloat64(m.feedConnectFailure), 2},
		{"disconnects", testutil.ToFloat64(m.feedDisconnects), 1},
		{"feed state", testutil.ToFloat64(m.feedState), 2},
		{"applied lines", testutil.ToFloat64(m.lines.WithLabelValues(LineApplied)), 2},
		{"discarded lines", testutil.ToFloat64(m.lines.WithLabelValues(LineDiscarded)), 1},
		{"broadcasts", testutil.ToFloat64(m.broadcasts), 1},
		{"stale skips", testutil.ToFloat64(m.broadcastSkips.WithLabelValues("stale")), 1},
		{"send errors", testutil.ToFloat64(m.sendErrors), 1},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s: expected %v, got %v", c.name, c.want, c.got)
		}
	}
}

// TestNilMetrics tests that a nil *Metrics is a no-op.
func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.ConnectAttempt(nil)
	m.Disconnected()
	m.SetFeedState(1)
	m.Line(false)
	m.BroadcastSent()
	m.BroadcastSkipped("no_match")
	m.SendError()
	m.WatchAircraft(func() int { return 0 })
}

// TestHandler tests the exposition endpoint.
func TestHandler(t *testing.T) {
	m := New()
	m.WatchAircraft(func() int { return 7 })
	m.BroadcastSent()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("Failed to scrape: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{
		"adsb_xgps_aircraft 7",
		"adsb_xgps_broadcasts_total 1",
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("Expected exposition to contain %q", want)
		}
	}
}
