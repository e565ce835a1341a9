// Package feed reads an SBS-1 (BaseStation) stream from a dump1090-style
// receiver and hands each line to a Sink. The connection is re-established
// forever until the context is cancelled.
package feed

import (
	"bufio"
	"context"
	"io"
	"log"
	"net"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/unklstewy/adsb-xgps/internal/metrics"
	"github.com/unklstewy/adsb-xgps/pkg/retry"
)

// DefaultPort is the SBS-1 output port of dump1090.
const DefaultPort = 30003

// State is the connection state of the client.
type State int32

const (
	Disconnected State = iota
	Connecting
	Streaming
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	default:
		return "unknown"
	}
}

// Sink consumes one line of the stream. It reports whether the line was used.
type Sink interface {
	Apply(line string) bool
}

// Config configures the feed client.
type Config struct {
	// Address is host:port of the SBS output
	Address string

	// RetryDelay is the pause before every reconnect attempt (default: 1 second)
	RetryDelay time.Duration

	// DialTimeout bounds a single connection attempt (default: 10 seconds)
	DialTimeout time.Duration

	// MaxLineBytes is the longest line accepted before the stream is
	// treated as broken (default: 1 MiB)
	MaxLineBytes int
}

// DefaultConfig returns the defaults for a feed at address.
func DefaultConfig(address string) Config {
	return Config{
		Address:      address,
		RetryDelay:   time.Second,
		DialTimeout:  10 * time.Second,
		MaxLineBytes: 1 << 20,
	}
}

// Client streams lines from the feed into a Sink.
type Client struct {
	cfg     Config
	sink    Sink
	metrics *metrics.Metrics
	dialer  net.Dialer
	state   atomic.Int32

	// failLog throttles connect-failure logging while the receiver is down.
	failLog rate.Sometimes
}

// NewClient creates a client. m may be nil.
func NewClient(cfg Config, sink Sink, m *metrics.Metrics) *Client {
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = 1 << 20
	}
	c := &Client{
		cfg:     cfg,
		sink:    sink,
		metrics: m,
		dialer:  net.Dialer{Timeout: cfg.DialTimeout},
	}
	c.resetFailLog()
	return c
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	c.state.Store(int32(s))
	c.metrics.SetFeedState(int(s))
}

func (c *Client) resetFailLog() {
	c.failLog = rate.Sometimes{First: 3, Interval: 30 * time.Second}
}

// Run connects, streams and reconnects until ctx is cancelled. It returns
// ctx.Err() and never gives up on its own.
func (c *Client) Run(ctx context.Context) error {
	defer c.setState(Disconnected)

	for {
		conn, err := c.connect(ctx)
		if err != nil {
			return ctx.Err()
		}

		err = c.stream(ctx, conn)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.setState(Disconnected)
		log.Printf("⚠️  SBS feed %s ended: %v (reconnecting in %v)", c.cfg.Address, err, c.cfg.RetryDelay)
		if err := retry.Sleep(ctx, c.cfg.RetryDelay); err != nil {
			return err
		}
	}
}

// connect dials until it succeeds or ctx is done.
func (c *Client) connect(ctx context.Context) (net.Conn, error) {
	cfg := retry.Fixed(c.cfg.RetryDelay)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		c.setState(Disconnected)
		c.failLog.Do(func() {
			log.Printf("✗ Failed to connect to SBS feed %s (attempt %d): %v (retrying every %v)",
				c.cfg.Address, attempt, err, delay)
		})
	}

	conn, err := retry.DoResult(ctx, cfg, func() (net.Conn, error) {
		c.setState(Connecting)
		conn, err := c.dialer.DialContext(ctx, "tcp", c.cfg.Address)
		c.metrics.ConnectAttempt(err)
		return conn, err
	})
	if err != nil {
		return nil, err
	}

	c.resetFailLog()
	log.Printf("✓ Connected to SBS feed at %s", c.cfg.Address)
	return conn, nil
}

// stream reads lines until EOF, a read error or cancellation. It always
// closes conn and returns a non-nil error describing why the stream ended.
func (c *Client) stream(ctx context.Context, conn net.Conn) error {
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	defer stop()
	defer conn.Close()

	c.setState(Streaming)

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), c.cfg.MaxLineBytes)
	for scanner.Scan() {
		c.metrics.Line(c.sink.Apply(scanner.Text()))
	}
	c.metrics.Disconnected()

	if err := scanner.Err(); err != nil {
		return err
	}
	return io.EOF
}
