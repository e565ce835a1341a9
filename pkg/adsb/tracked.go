package adsb

import (
	"strings"
	"sync"
)

// TrackedCallsign is the callsign the broadcaster follows. It is read on
// every broadcast tick and written by the dashboard.
type TrackedCallsign struct {
	mu    sync.RWMutex
	value string
}

// NewTrackedCallsign creates the cell with its startup value.
func NewTrackedCallsign(initial string) *TrackedCallsign {
	return &TrackedCallsign{value: strings.TrimSpace(initial)}
}

// Get returns the current callsign.
func (t *TrackedCallsign) Get() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.value
}

// Set trims cs and stores it. Empty input is ignored and Set returns false.
func (t *TrackedCallsign) Set(cs string) bool {
	cs = strings.TrimSpace(cs)
	if cs == "" {
		return false
	}

	t.mu.Lock()
	t.value = cs
	t.mu.Unlock()
	return true
}
