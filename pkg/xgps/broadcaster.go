// Package xgps broadcasts the position of one tracked aircraft as an XGPS
// UDP sentence, the format moving-map apps accept from an external GPS.
package xgps

import (
	"context"
	"fmt"
	"log"
	"net"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/unklstewy/adsb-xgps/internal/metrics"
	"github.com/unklstewy/adsb-xgps/pkg/adsb"
)

// DefaultPort is the UDP port XGPS receivers listen on.
const DefaultPort = 49002

// SkipReason says why a tick sent nothing. The empty reason means the
// sentence was sent.
type SkipReason string

const (
	Sent           SkipReason = ""
	SkipNoMatch    SkipReason = "no_match"
	SkipStale      SkipReason = "stale"
	SkipIncomplete SkipReason = "incomplete"
	SkipSendFailed SkipReason = "send_failed"
)

// Config configures the broadcaster.
type Config struct {
	// Address is the destination, normally the limited broadcast address
	Address string

	// Port is the destination port (default: 49002)
	Port int

	// DeviceID follows the XGPS prefix in every sentence
	DeviceID string

	// Interval between ticks (default: 1 second)
	Interval time.Duration

	// StaleAfter is the report age past which nothing is sent (default: 5 seconds)
	StaleAfter time.Duration

	// Verbose logs every sentence sent
	Verbose bool
}

// DefaultConfig returns the broadcaster defaults.
func DefaultConfig() Config {
	return Config{
		Address:    "255.255.255.255",
		Port:       DefaultPort,
		DeviceID:   "adsb_xgps",
		Interval:   time.Second,
		StaleAfter: 5 * time.Second,
	}
}

// Broadcast describes one sentence that was sent.
type Broadcast struct {
	ICAO     string
	Callsign string
	Position adsb.Position
	Payload  string
	SentAt   time.Time
}

// Recorder persists sent broadcasts. Errors are logged and otherwise ignored.
type Recorder interface {
	RecordBroadcast(ctx context.Context, b Broadcast) error
}

// Broadcaster sends the tracked aircraft's position once per interval.
type Broadcaster struct {
	cfg      Config
	registry *adsb.Registry
	tracked  *adsb.TrackedCallsign
	metrics  *metrics.Metrics
	recorder Recorder

	conn   net.PacketConn
	target *net.UDPAddr

	errLog   rate.Sometimes
	lastSkip SkipReason
}

// NewBroadcaster binds an ephemeral UDP socket with broadcast enabled and
// resolves the destination. m may be nil.
func NewBroadcaster(ctx context.Context, cfg Config, registry *adsb.Registry, tracked *adsb.TrackedCallsign, m *metrics.Metrics) (*Broadcaster, error) {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 5 * time.Second
	}

	target, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(cfg.Address, strconv.Itoa(cfg.Port)))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve broadcast address: %w", err)
	}

	lc := net.ListenConfig{Control: enableBroadcast}
	conn, err := lc.ListenPacket(ctx, "udp4", "0.0.0.0:0")
	if err != nil {
		return nil, fmt.Errorf("failed to bind UDP socket: %w", err)
	}

	return &Broadcaster{
		cfg:      cfg,
		registry: registry,
		tracked:  tracked,
		metrics:  m,
		conn:     conn,
		target:   target,
		errLog:   rate.Sometimes{First: 1, Interval: 10 * time.Second},
		lastSkip: Sent,
	}, nil
}

// SetRecorder installs r to receive every sent broadcast.
func (b *Broadcaster) SetRecorder(r Recorder) {
	b.recorder = r
}

// Target returns the destination address.
func (b *Broadcaster) Target() *net.UDPAddr {
	return b.target
}

// Close releases the socket.
func (b *Broadcaster) Close() error {
	return b.conn.Close()
}

// Select picks the aircraft to broadcast at now. When the reason is not
// Sent, there is nothing to send.
func (b *Broadcaster) Select(now time.Time) (adsb.Position, adsb.Aircraft, SkipReason) {
	ac, ok := b.registry.FindByCallsign(b.tracked.Get())
	if !ok {
		return adsb.Position{}, adsb.Aircraft{}, SkipNoMatch
	}
	if ac.Age(now) > b.cfg.StaleAfter {
		return adsb.Position{}, ac, SkipStale
	}
	pos, ok := ac.Position()
	if !ok {
		return adsb.Position{}, ac, SkipIncomplete
	}
	return pos, ac, Sent
}

// Tick runs one selection and send.
func (b *Broadcaster) Tick(ctx context.Context, now time.Time) SkipReason {
	pos, ac, reason := b.Select(now)
	if reason != Sent {
		b.skipped(reason)
		return reason
	}

	payload := FormatMessage(b.cfg.DeviceID, pos)
	if _, err := b.conn.WriteTo([]byte(payload), b.target); err != nil {
		b.metrics.SendError()
		b.errLog.Do(func() {
			log.Printf("✗ Failed to send XGPS to %s: %v", b.target, err)
		})
		b.skipped(SkipSendFailed)
		return SkipSendFailed
	}

	b.metrics.BroadcastSent()
	if b.lastSkip != Sent {
		log.Printf("✓ Broadcasting %s (%s) to %s", ac.Callsign.OrElse(""), ac.ICAO, b.target)
		b.lastSkip = Sent
	}
	if b.cfg.Verbose {
		log.Printf("XGPS → %s", payload)
	}

	if b.recorder != nil {
		rctx, cancel := context.WithTimeout(ctx, time.Second)
		err := b.recorder.RecordBroadcast(rctx, Broadcast{
			ICAO:     ac.ICAO,
			Callsign: ac.Callsign.OrElse(""),
			Position: pos,
			Payload:  payload,
			SentAt:   now,
		})
		cancel()
		if err != nil {
			log.Printf("Error recording broadcast: %v", err)
		}
	}
	return Sent
}

// skipped counts a skipped tick and logs when the reason changes.
func (b *Broadcaster) skipped(reason SkipReason) {
	b.metrics.BroadcastSkipped(string(reason))
	if reason == b.lastSkip {
		return
	}
	b.lastSkip = reason

	cs := b.tracked.Get()
	switch reason {
	case SkipNoMatch:
		log.Printf("  ℹ No aircraft with callsign %q yet", cs)
	case SkipStale:
		log.Printf("  ℹ %s: last report older than %v, holding", cs, b.cfg.StaleAfter)
	case SkipIncomplete:
		log.Printf("  ℹ %s: waiting for position, altitude, speed and track", cs)
	}
}

// Run ticks every interval until ctx is cancelled. Send failures never
// stop it.
func (b *Broadcaster) Run(ctx context.Context) error {
	ticker := time.NewTicker(b.cfg.Interval)
	defer ticker.Stop()

	log.Printf("✓ XGPS broadcaster sending to %s every %v", b.target, b.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			b.Tick(ctx, now)
		}
	}
}
