package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"strconv"

	"github.com/unklstewy/adsb-xgps/pkg/config"
)

const usage = `usage: adsb-xgps [flags] <server> <callsign> [flags]

  server    dump1090 host, optionally host:port (SBS-1 port defaults to 30003)
  callsign  callsign to broadcast, matched ignoring case

flags:`

type options struct {
	configPath  string
	envPath     string
	writeConfig string
	broadcast  string
	port       int
	debug      bool

	server   string
	callsign string
}

// parseFlags accepts flags before, between and after the positional
// arguments.
func parseFlags(args []string, output io.Writer) (options, error) {
	var opts options

	fs := flag.NewFlagSet("adsb-xgps", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.StringVar(&opts.configPath, "config", "adsb-xgps.json", "Path to configuration file")
	fs.StringVar(&opts.envPath, "env", ".env", "Path to .env file")
	fs.StringVar(&opts.writeConfig, "write-config", "", "Write the merged configuration to this path and exit")
	fs.StringVar(&opts.broadcast, "broadcast", "", "Broadcast address (default 255.255.255.255)")
	fs.IntVar(&opts.port, "port", 0, "Dashboard port (default 8081)")
	fs.BoolVar(&opts.debug, "debug", false, "Print the aircraft table every second and log every sentence")
	fs.Usage = func() {
		fmt.Fprintln(fs.Output(), usage)
		fs.PrintDefaults()
	}

	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return opts, err
		}
		if fs.NArg() == 0 {
			break
		}
		positional = append(positional, fs.Arg(0))
		args = fs.Args()[1:]
	}

	if len(positional) > 2 {
		return opts, fmt.Errorf("unexpected argument %q", positional[2])
	}
	if len(positional) > 0 {
		opts.server = positional[0]
	}
	if len(positional) > 1 {
		opts.callsign = positional[1]
	}
	if opts.port < 0 || opts.port > 65535 {
		return opts, errors.New("port out of range 1-65535")
	}
	return opts, nil
}

// applyTo overrides cfg with whatever was given on the command line.
func (o options) applyTo(cfg *config.Config) {
	if o.server != "" {
		if host, port, err := net.SplitHostPort(o.server); err == nil {
			cfg.Feed.Host = host
			if p, err := strconv.Atoi(port); err == nil {
				cfg.Feed.Port = p
			}
		} else {
			cfg.Feed.Host = o.server
		}
	}
	if o.callsign != "" {
		cfg.Tracking.Callsign = o.callsign
	}
	if o.broadcast != "" {
		cfg.Broadcast.Address = o.broadcast
	}
	if o.port != 0 {
		cfg.Server.Port = strconv.Itoa(o.port)
	}
	if o.debug {
		cfg.Logging.Debug = true
	}
}
