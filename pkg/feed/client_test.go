package feed

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/unklstewy/adsb-xgps/internal/metrics"
	"github.com/unklstewy/adsb-xgps/pkg/adsb"
)

// sbs builds a 22-field SBS line with the given cells filled in.
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

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

func startClient(t *testing.T, addr string, sink Sink, m *metrics.Metrics) (*Client, context.CancelFunc, <-chan error) {
	t.Helper()
	cfg := DefaultConfig(addr)
	cfg.RetryDelay = 10 * time.Millisecond
	cfg.DialTimeout = time.Second

	client := NewClient(cfg, sink, m)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- client.Run(ctx) }()
	t.Cleanup(cancel)
	return client, cancel, done
}

// TestClientStreamsLines tests that lines reach the sink and bad lines are skipped.
func TestClientStreamsLines(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer ln.Close()

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		fmt.Fprintf(conn, "%s\r\n", sbs(1, "ABC123", map[int]string{10: "UAL123"}))
		fmt.Fprint(conn, "this is not sbs\r\n")
		fmt.Fprintf(conn, "%s\r\n", sbs(3, "ABC123", map[int]string{11: "36000", 14: "40.5", 15: "-74.25"}))
		// Hold the connection open until the client goes away.
		buf := make([]byte, 1)
		conn.Read(buf)
	}()

	registry := adsb.NewRegistry()
	m := metrics.New()
	client, cancel, done := startClient(t, ln.Addr().String(), registry, m)

	ok := waitFor(t, 2*time.Second, func() bool {
		ac, found := registry.Get("ABC123")
		return found && ac.Latitude.IsKnown()
	})
	if !ok {
		t.Fatal("Timed out waiting for lines to be applied")
	}

	ac, _ := registry.Get("ABC123")
	if cs, _ := ac.Callsign.Get(); cs != "UAL123" {
		t.Errorf("Expected callsign UAL123, got %q", cs)
	}
	if alt, _ := ac.Altitude.Get(); alt != 36000 {
		t.Errorf("Expected altitude 36000, got %v", alt)
	}
	if registry.Len() != 1 {
		t.Errorf("Expected malformed line to be ignored, got %d aircraft", registry.Len())
	}
	if client.State() != Streaming {
		t.Errorf("Expected state streaming, got %s", client.State())
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
	if client.State() != Disconnected {
		t.Errorf("Expected state disconnected after Run, got %s", client.State())
	}
}

// TestClientReconnects tests that the client reconnects after the feed closes.
func TestClientReconnects(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	defer ln.Close()

	go func() {
		for _, icao := range []string{"AAA001", "BBB002"} {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			fmt.Fprintf(conn, "%s\n", sbs(8, icao, nil))
			conn.Close()
		}
	}()

	registry := adsb.NewRegistry()
	_, cancel, done := startClient(t, ln.Addr().String(), registry, nil)

	ok := waitFor(t, 2*time.Second, func() bool { return registry.Len() == 2 })
	if !ok {
		t.Fatalf("Expected 2 aircraft across reconnects, got %d", registry.Len())
	}

	cancel()
	<-done
}

// TestClientRetriesUntilCancelled tests that an unreachable feed never ends Run.
func TestClientRetriesUntilCancelled(t *testing.T) {
	// Reserve a port and release it so nothing is listening.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	m := metrics.New()
	client, cancel, done := startClient(t, addr, adsb.NewRegistry(), m)

	time.Sleep(100 * time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("Run returned early: %v", err)
	default:
	}
	if client.State() == Streaming {
		t.Error("Expected client not to be streaming")
	}

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

// TestStateString tests state names.
func TestStateString(t *testing.T) {
	tests := map[State]string{
		Disconnected: "disconnected",
		Connecting:   "connecting",
		Streaming:    "streaming",
		State(42):    "unknown",
	}
	for state, want := range tests {
		if state.String() != want {
			t.Errorf("Expected %s, got %s", want, state.String())
		}
	}
}
