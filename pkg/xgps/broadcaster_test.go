package xgps

import (
	"context"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/unklstewy/adsb-xgps/internal/metrics"
	"github.com/unklstewy/adsb-xgps/pkg/adsb"
)

func sbs(kind int, icao string, cells map[int]string) string {
	fields := make([]string, 22)
	fields[0] = "MSG"
	fields[1] = strconv.Itoa(kind)
	fields[4] = icao
	for i, v := range cells {
		fields[i] = v
	}
	return strings.Join(fields, ",")
}

// applyFull gives icao a callsign and every field the sentence needs.
func applyFull(r *adsb.Registry, icao, callsign string) {
	r.Apply(sbs(1, icao, map[int]string{10: callsign}))
	r.Apply(sbs(3, icao, map[int]string{11: "3937", 14: "34.55", 15: "-80.11"}))
	r.Apply(sbs(4, icao, map[int]string{12: "108.089", 13: "359.05"}))
}

type fixture struct {
	registry    *adsb.Registry
	tracked     *adsb.TrackedCallsign
	broadcaster *Broadcaster
	listener    net.PacketConn
}

func newFixture(t *testing.T, callsign string, m *metrics.Metrics) *fixture {
	t.Helper()

	ln, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	cfg := DefaultConfig()
	cfg.Address = "127.0.0.1"
	cfg.Port = ln.LocalAddr().(*net.UDPAddr).Port
	cfg.Interval = 10 * time.Millisecond

	registry := adsb.NewRegistry()
	tracked := adsb.NewTrackedCallsign(callsign)
	b, err := NewBroadcaster(context.Background(), cfg, registry, tracked, m)
	if err != nil {
		t.Fatalf("Failed to create broadcaster: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	return &fixture{registry: registry, tracked: tracked, broadcaster: b, listener: ln}
}

// receive reads one datagram, or returns "" on timeout.
func (f *fixture) receive(t *testing.T, timeout time.Duration) string {
	t.Helper()
	buf := make([]byte, 512)
	f.listener.SetReadDeadline(time.Now().Add(timeout))
	n, _, err := f.listener.ReadFrom(buf)
	if err != nil {
		return ""
	}
	return string(buf[:n])
}

// TestNewBroadcasterBadAddress tests that an unusable destination is
// rejected before anything is sent.
func TestNewBroadcasterBadAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		port    int
	}{
		{"Port out of range", "127.0.0.1", 70000},
		{"Negative port", "127.0.0.1", -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Address = tt.address
			cfg.Port = tt.port
			b, err := NewBroadcaster(context.Background(), cfg, adsb.NewRegistry(), adsb.NewTrackedCallsign("UAL123"), nil)
			if err == nil {
				b.Close()
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), "failed to resolve broadcast address") {
				t.Errorf("Expected resolve error, got: %v", err)
			}
		})
	}
}

// TestTarget tests destination resolution.
func TestTarget(t *testing.T) {
	f := newFixture(t, "UAL123", nil)
	want := f.listener.LocalAddr().String()
	if got := f.broadcaster.Target().String(); got != want {
		t.Errorf("Expected target %s, got %s", want, got)
	}
}

// TestTickSends tests the end-to-end datagram.
func TestTickSends(t *testing.T) {
	m := metrics.New()
	f := newFixture(t, "UAL123", m)
	applyFull(f.registry, "ABC123", "UAL123")

	if reason := f.broadcaster.Tick(context.Background(), time.Now()); reason != Sent {
		t.Fatalf("Expected sent, got %q", reason)
	}

	got := f.receive(t, time.Second)
	want := "XGPSadsb_xgps,-80.11,34.55,1200.0,359.05,55.6"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

// TestSelect tests the selection rules.
func TestSelect(t *testing.T) {
	f := newFixture(t, "ual123", nil)

	t.Run("No match", func(t *testing.T) {
		if _, _, reason := f.broadcaster.Select(time.Now()); reason != SkipNoMatch {
			t.Errorf("Expected no_match, got %q", reason)
		}
	})

	t.Run("Incomplete", func(t *testing.T) {
		f.registry.Apply(sbs(1, "ABC123", map[int]string{10: "UAL123"}))
		f.registry.Apply(sbs(3, "ABC123", map[int]string{11: "3937", 14: "34.55", 15: "-80.11"}))
		if _, _, reason := f.broadcaster.Select(time.Now()); reason != SkipIncomplete {
			t.Errorf("Expected incomplete, got %q", reason)
		}
	})

	t.Run("Case-insensitive match", func(t *testing.T) {
		f.registry.Apply(sbs(4, "ABC123", map[int]string{12: "108.089", 13: "359.05"}))
		pos, ac, reason := f.broadcaster.Select(time.Now())
		if reason != Sent {
			t.Fatalf("Expected sent, got %q", reason)
		}
		if ac.ICAO != "ABC123" {
			t.Errorf("Expected ABC123, got %s", ac.ICAO)
		}
		if pos.AltitudeFt != 3937 {
			t.Errorf("Expected altitude 3937, got %v", pos.AltitudeFt)
		}
	})

	t.Run("Stale after five seconds", func(t *testing.T) {
		if _, _, reason := f.broadcaster.Select(time.Now().Add(4 * time.Second)); reason != Sent {
			t.Errorf("Expected sent at 4s, got %q", reason)
		}
		if _, _, reason := f.broadcaster.Select(time.Now().Add(6 * time.Second)); reason != SkipStale {
			t.Errorf("Expected stale at 6s, got %q", reason)
		}
	})

	t.Run("Retargeting", func(t *testing.T) {
		f.tracked.Set("DAL9")
		if _, _, reason := f.broadcaster.Select(time.Now()); reason != SkipNoMatch {
			t.Errorf("Expected no_match after retargeting, got %q", reason)
		}
	})
}

// TestTickStaleSendsNothing tests that a stale aircraft produces no datagram.
func TestTickStaleSendsNothing(t *testing.T) {
	f := newFixture(t, "UAL123", nil)
	applyFull(f.registry, "ABC123", "UAL123")

	if reason := f.broadcaster.Tick(context.Background(), time.Now().Add(10*time.Second)); reason != SkipStale {
		t.Fatalf("Expected stale, got %q", reason)
	}
	if got := f.receive(t, 50*time.Millisecond); got != "" {
		t.Errorf("Expected no datagram, got %q", got)
	}
}

// TestTickSendError tests that a send failure is reported and not fatal.
func TestTickSendError(t *testing.T) {
	m := metrics.New()
	f := newFixture(t, "UAL123", m)
	applyFull(f.registry, "ABC123", "UAL123")

	f.broadcaster.conn.Close()
	for i := 0; i < 3; i++ {
		if reason := f.broadcaster.Tick(context.Background(), time.Now()); reason != SkipSendFailed {
			t.Errorf("Tick %d: expected send_failed, got %q", i, reason)
		}
	}
}

type recorder struct {
	mu   sync.Mutex
	sent []Broadcast
	err  error
}

func (r *recorder) RecordBroadcast(ctx context.Context, b Broadcast) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, b)
	return r.err
}

// TestTickRecords tests that sent broadcasts reach the recorder.
func TestTickRecords(t *testing.T) {
	f := newFixture(t, "UAL123", nil)
	applyFull(f.registry, "ABC123", "UAL123")

	rec := &recorder{err: errors.New("database unavailable")}
	f.broadcaster.SetRecorder(rec)

	// A recorder error does not turn a sent tick into a failure.
	if reason := f.broadcaster.Tick(context.Background(), time.Now()); reason != Sent {
		t.Fatalf("Expected sent, got %q", reason)
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.sent) != 1 {
		t.Fatalf("Expected 1 recorded broadcast, got %d", len(rec.sent))
	}
	b := rec.sent[0]
	if b.ICAO != "ABC123" || b.Callsign != "UAL123" {
		t.Errorf("Unexpected broadcast identity %s/%s", b.ICAO, b.Callsign)
	}
	if !strings.HasPrefix(b.Payload, "XGPSadsb_xgps,") {
		t.Errorf("Unexpected payload %q", b.Payload)
	}
}

// TestRun tests that Run keeps sending until cancelled.
func TestRun(t *testing.T) {
	f := newFixture(t, "UAL123", nil)
	applyFull(f.registry, "ABC123", "UAL123")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.broadcaster.Run(ctx) }()

	for i := 0; i < 2; i++ {
		if got := f.receive(t, time.Second); !strings.HasPrefix(got, "XGPSadsb_xgps,") {
			t.Fatalf("Datagram %d: unexpected %q", i, got)
		}
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}
