// Package diag prints the aircraft registry to the terminal when the
// bridge runs with --debug.
package diag

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"

	"github.com/unklstewy/adsb-xgps/pkg/adsb"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")).Padding(0, 1)
	cellStyle    = lipgloss.NewStyle().Padding(0, 1)
	trackedStyle = cellStyle.Foreground(lipgloss.Color("46")).Bold(true)
	borderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Printer renders every aircraft once per interval.
type Printer struct {
	registry *adsb.Registry
	tracked  *adsb.TrackedCallsign
	out      io.Writer
	interval time.Duration
}

// NewPrinter creates a printer writing to out every second.
func NewPrinter(registry *adsb.Registry, tracked *adsb.TrackedCallsign, out io.Writer) *Printer {
	return &Printer{
		registry: registry,
		tracked:  tracked,
		out:      out,
		interval: time.Second,
	}
}

// Render returns the table for now, or "" when no aircraft has been seen.
func (p *Printer) Render(now time.Time) string {
	list := p.registry.Snapshot()
	if len(list) == 0 {
		return ""
	}

	cs := p.tracked.Get()
	trackedRows := make(map[int]bool)
	rows := make([][]string, 0, len(list))
	for i, ac := range list {
		if ac.MatchesCallsign(cs) {
			trackedRows[i] = true
		}
		rows = append(rows, []string{
			ac.ICAO,
			ac.Callsign.OrElse("-"),
			formatOpt(ac.Latitude, "%.5f"),
			formatOpt(ac.Longitude, "%.5f"),
			formatOpt(ac.Altitude, "%.0fft"),
			formatOpt(ac.GroundSpeed, "%.0fkt"),
			formatOpt(ac.Track, "%.0f°"),
			humanize.RelTime(ac.LastUpdated, now, "ago", "from now"),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(borderStyle).
		Headers("HEX", "CALLSIGN", "LAT", "LON", "ALT", "GS", "TRK", "SEEN").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return headerStyle
			case trackedRows[row]:
				return trackedStyle
			default:
				return cellStyle
			}
		})

	title := titleStyle.Render(fmt.Sprintf("Aircraft (%d) tracking %s", len(list), cs))
	return title + "\n" + t.Render() + "\n"
}

// Run prints until ctx is cancelled. Ticks with an empty registry print nothing.
func (p *Printer) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if s := p.Render(now); s != "" {
				io.WriteString(p.out, s)
			}
		}
	}
}

func formatOpt(o adsb.Optional[float64], format string) string {
	v, ok := o.Get()
	if !ok {
		return "-"
	}
	return fmt.Sprintf(format, v)
}
