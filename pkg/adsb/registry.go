package adsb

import (
	"sort"
	"sync"
	"time"
)

// Registry is the shared aircraft table. The ingestion loop is its only
// writer; every write covers exactly one line so readers never see a
// half-applied report. Entries are never removed.
type Registry struct {
	mu       sync.RWMutex
	aircraft Table
	now      func() time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		aircraft: make(Table),
		now:      time.Now,
	}
}

// Apply merges one SBS line under the write lock.
func (r *Registry) Apply(line string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Merge(line, r.aircraft, r.now())
}

// Update gets or creates the entry for icao and calls fn on it while
// holding the write lock. fn must not retain the pointer.
func (r *Registry) Update(icao string, fn func(*Aircraft)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.aircraft.GetOrCreate(icao, r.now()))
}

// Get returns a copy of the entry for icao.
func (r *Registry) Get(icao string) (Aircraft, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ac, ok := r.aircraft[icao]
	if !ok {
		return Aircraft{}, false
	}
	return *ac, true
}

// Len returns the number of aircraft ever seen.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.aircraft)
}

// Snapshot returns copies of every entry ordered by ICAO address.
func (r *Registry) Snapshot() []Aircraft {
	r.mu.RLock()
	list := make([]Aircraft, 0, len(r.aircraft))
	for _, ac := range r.aircraft {
		list = append(list, *ac)
	}
	r.mu.RUnlock()

	sort.Slice(list, func(i, j int) bool { return list[i].ICAO < list[j].ICAO })
	return list
}

// FindByCallsign returns the entry whose callsign matches cs ignoring case.
// If several match, the one with the lowest ICAO address wins.
func (r *Registry) FindByCallsign(cs string) (Aircraft, bool) {
	if cs == "" {
		return Aircraft{}, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var found *Aircraft
	for _, ac := range r.aircraft {
		if !ac.MatchesCallsign(cs) {
			continue
		}
		if found == nil || ac.ICAO < found.ICAO {
			found = ac
		}
	}
	if found == nil {
		return Aircraft{}, false
	}
	return *found, true
}
