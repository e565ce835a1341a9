// Package logging configures the standard logger.
package logging

import (
	"io"
	"log"
	"os"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/unklstewy/adsb-xgps/pkg/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup points the standard logger at stderr and, when cfg.File is set,
// a size-rotated copy of the same output. The returned Closer flushes and
// closes the file.
func Setup(cfg config.LoggingConfig) io.Closer {
	return SetupTo(log.Default(), os.Stderr, cfg)
}

// SetupTo configures logger to write to console plus the optional file.
func SetupTo(logger *log.Logger, console io.Writer, cfg config.LoggingConfig) io.Closer {
	flags := log.LstdFlags
	if cfg.Debug {
		flags |= log.Lshortfile
	}
	logger.SetFlags(flags)

	if cfg.File == "" {
		logger.SetOutput(console)
		return nopCloser{}
	}

	w := &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB, // MB
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   true,
	}
	logger.SetOutput(io.MultiWriter(console, w))
	return w
}
