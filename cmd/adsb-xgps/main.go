// adsb-xgps bridges a dump1090 SBS-1 feed to an XGPS UDP broadcast, so a
// moving-map app follows one aircraft as if it were its own GPS.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/unklstewy/adsb-xgps/internal/db"
	"github.com/unklstewy/adsb-xgps/internal/diag"
	"github.com/unklstewy/adsb-xgps/internal/logging"
	"github.com/unklstewy/adsb-xgps/internal/metrics"
	"github.com/unklstewy/adsb-xgps/internal/web"
	"github.com/unklstewy/adsb-xgps/pkg/adsb"
	"github.com/unklstewy/adsb-xgps/pkg/config"
	"github.com/unklstewy/adsb-xgps/pkg/feed"
	"github.com/unklstewy/adsb-xgps/pkg/supervisor"
	"github.com/unklstewy/adsb-xgps/pkg/xgps"
)

const cleanupInterval = 10 * time.Minute

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		os.Exit(0)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "adsb-xgps: %v\n", err)
		os.Exit(2)
	}

	if err := config.LoadDotEnv(opts.envPath); err != nil {
		log.Printf("Warning: %v", err)
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	opts.applyTo(cfg)

	if opts.writeConfig != "" {
		if err := cfg.Save(opts.writeConfig); err != nil {
			log.Fatalf("Failed to write configuration: %v", err)
		}
		log.Printf("✓ Configuration written to %s", opts.writeConfig)
		return
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "adsb-xgps: %v\n\n", err)
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	closer := logging.Setup(cfg.Logging)

	log.Println("===========================================")
	log.Println("  ADS-B → XGPS Bridge")
	log.Println("===========================================")
	log.Printf("SBS feed:  %s", cfg.Feed.Address())
	log.Printf("Tracking:  %s", cfg.Tracking.Callsign)

	if err := run(cfg); err != nil {
		log.Printf("✗ %v", err)
		closer.Close()
		os.Exit(1)
	}

	log.Println("✓ adsb-xgps stopped")
	closer.Close()
}

// run binds the sockets, starts every task and blocks until a signal or
// a task failure.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := adsb.NewRegistry()
	tracked := adsb.NewTrackedCallsign(cfg.Tracking.Callsign)

	m := metrics.New()
	m.WatchAircraft(registry.Len)

	// Bind failures are fatal before anything starts.
	broadcaster, err := xgps.NewBroadcaster(ctx, xgps.Config{
		Address:    cfg.Broadcast.Address,
		Port:       cfg.Broadcast.Port,
		DeviceID:   cfg.Broadcast.DeviceID,
		Interval:   cfg.Broadcast.Interval(),
		StaleAfter: cfg.Broadcast.StaleAfter(),
		Verbose:    cfg.Logging.Debug,
	}, registry, tracked, m)
	if err != nil {
		return err
	}
	defer broadcaster.Close()
	log.Printf("Broadcast: %s every %v", broadcaster.Target(), cfg.Broadcast.Interval())

	ln, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to bind dashboard on %s: %w", cfg.Server.Addr(), err)
	}

	feedCfg := feed.DefaultConfig(cfg.Feed.Address())
	feedCfg.RetryDelay = cfg.Feed.RetryDelay()
	feedCfg.DialTimeout = cfg.Feed.DialTimeout()
	client := feed.NewClient(feedCfg, registry, m)

	tasks := []supervisor.Task{
		{Name: "feed", Run: client.Run},
		{Name: "broadcaster", Run: broadcaster.Run},
	}

	var (
		history  web.History
		database *db.DB
	)
	if cfg.Database.Enabled {
		opened, err := openHistory(ctx, cfg.Database)
		if err != nil {
			log.Printf("⚠️  Broadcast history disabled: %v", err)
		} else {
			database = opened
			defer database.Close()
			repo := db.NewBroadcastRepository(database)
			broadcaster.SetRecorder(repo)
			history = repo
			tasks = append(tasks, supervisor.Task{
				Name: "tracklog-cleanup",
				Run: func(ctx context.Context) error {
					return database.RunCleanup(ctx, cleanupInterval)
				},
			})
			log.Printf("✓ Broadcast history enabled (%s retention)", cfg.Database.Retention())
		}
	}

	dashboard := web.NewServer(web.Options{
		Registry:       registry,
		Tracked:        tracked,
		FeedState:      func() string { return client.State().String() },
		Metrics:        m.Handler(),
		History:        history,
		Database:       database,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		LogRequests:    cfg.Logging.Debug,
	})
	tasks = append(tasks, supervisor.Task{
		Name: "web",
		Run: func(ctx context.Context) error {
			return dashboard.Serve(ctx, ln)
		},
	})

	if cfg.Logging.Debug {
		printer := diag.NewPrinter(registry, tracked, os.Stdout)
		tasks = append(tasks, supervisor.Task{Name: "diag", Run: printer.Run})
	}

	log.Println("  Press Ctrl+C to stop")
	return supervisor.Run(ctx, tasks...)
}

// openHistory connects to the history database and prepares its schema.
func openHistory(ctx context.Context, cfg config.DatabaseConfig) (*db.DB, error) {
	database, err := db.ReconnectWithRetry(ctx, cfg, 3)
	if err != nil {
		return nil, err
	}

	schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := database.InitSchema(schemaCtx); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}
