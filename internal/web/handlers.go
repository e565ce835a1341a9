package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/unklstewy/adsb-xgps/internal/db"
	"github.com/unklstewy/adsb-xgps/pkg/adsb"
)

// AircraftEntry is one row of the /data payload. Unknown values encode as null.
type AircraftEntry struct {
	Hex      string                 `json:"hex"`
	Callsign string                 `json:"callsign"`
	Lat      adsb.Optional[float64] `json:"lat"`
	Lon      adsb.Optional[float64] `json:"lon"`
	AltFt    adsb.Optional[float64] `json:"alt_ft"`
	GsKt     adsb.Optional[float64] `json:"gs_kt"`
	Track    adsb.Optional[float64] `json:"track"`
	Age      int64                  `json:"age"`
	Seen     string                 `json:"seen"`
	Tracking bool                   `json:"tracking"`
}

// DataResponse is the /data payload.
type DataResponse struct {
	Tracked  string          `json:"tracked"`
	Aircraft []AircraftEntry `json:"aircraft"`
}

// snapshot builds the /data payload, ordered by hex address.
func (s *Server) snapshot(now time.Time) DataResponse {
	tracked := s.tracked.Get()
	list := s.registry.Snapshot()

	entries := make([]AircraftEntry, 0, len(list))
	for _, ac := range list {
		entries = append(entries, AircraftEntry{
			Hex:      ac.ICAO,
			Callsign: ac.Callsign.OrElse(""),
			Lat:      ac.Latitude,
			Lon:      ac.Longitude,
			AltFt:    ac.Altitude,
			GsKt:     ac.GroundSpeed,
			Track:    ac.Track,
			Age:      int64(ac.Age(now) / time.Second),
			Seen:     humanize.RelTime(ac.LastUpdated, now, "ago", "from now"),
			Tracking: ac.MatchesCallsign(tracked),
		})
	}

	return DataResponse{Tracked: tracked, Aircraft: entries}
}

type pageRow struct {
	Hex      string
	Callsign string
	Lat      string
	Lon      string
	Alt      string
	GS       string
	Track    string
	Seen     string
	Tracking bool
}

type pageData struct {
	Tracked string
	Rows    []pageRow
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := s.snapshot(s.now())

	page := pageData{Tracked: data.Tracked, Rows: make([]pageRow, 0, len(data.Aircraft))}
	for _, a := range data.Aircraft {
		page.Rows = append(page.Rows, pageRow{
			Hex:      a.Hex,
			Callsign: a.Callsign,
			Lat:      formatOpt(a.Lat, 5),
			Lon:      formatOpt(a.Lon, 5),
			Alt:      formatOpt(a.AltFt, 0),
			GS:       formatOpt(a.GsKt, 0),
			Track:    formatOpt(a.Track, 0),
			Seen:     a.Seen,
			Tracking: a.Tracking,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := indexTemplate.Execute(w, page); err != nil {
		log.Printf("Error rendering dashboard: %v", err)
	}
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.snapshot(s.now()))
}

// handleTrack changes the tracked callsign. Blank input is ignored; the
// response always redirects to the dashboard.
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err == nil {
		if s.tracked.Set(r.PostForm.Get("callsign")) {
			log.Printf("✓ Web: now tracking callsign %q", s.tracked.Get())
		}
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	history := "disabled"
	if s.opts.History != nil {
		history = "enabled"
		if s.opts.Database != nil && !db.HealthCheck(r.Context(), s.opts.Database) {
			history = "unreachable"
		}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"feed_state": s.opts.FeedState(),
		"aircraft":   s.registry.Len(),
		"tracked":    s.tracked.Get(),
		"history":    history,
	})
}

func (s *Server) handleBroadcasts(w http.ResponseWriter, r *http.Request) {
	limit := db.DefaultRecentLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, fmt.Sprintf("invalid limit %q", v))
			return
		}
		limit = n
	}

	records, err := s.opts.History.Recent(r.Context(), limit)
	if err != nil {
		s.historyError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"broadcasts": records,
		"count":      len(records),
	})
}

func (s *Server) handleBroadcastStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.opts.History.Stats(r.Context())
	if err != nil {
		s.historyError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

func (s *Server) historyError(w http.ResponseWriter, err error) {
	if errors.Is(err, db.ErrDisabled) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	log.Printf("Error reading broadcast history: %v", err)
	respondError(w, http.StatusInternalServerError, "failed to read broadcast history")
}

func formatOpt(o adsb.Optional[float64], digits int) string {
	v, ok := o.Get()
	if !ok {
		return "-"
	}
	return strconv.FormatFloat(v, 'f', digits, 64)
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		log.Printf("Error encoding response: %v", err)
		http.Error(w, `{"error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(append(body, '\n'))
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
