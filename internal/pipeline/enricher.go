package pipeline

import (
	"time"

	"nmea-bridge/internal/nmea"
)

// Enricher stamps records with arrival time and the session's vessel.
type Enricher struct {
	now func() time.Time
}

func NewEnricher(now func() time.Time) *Enricher {
	if now == nil {
		now = time.Now
	}
	return &Enricher{now: now}
}

// Enrich resolves the vessel identifier: the sentence's own identifier
// wins and is cached, else the cached one is used, else none.
func (e *Enricher) Enrich(rec *nmea.Record, cache *VesselCache) EnrichedRecord {
	out := EnrichedRecord{
		Record:    rec,
		Timestamp: e.now().UnixMilli(),
	}
	if id, ok := rec.Identifier(); ok {
		cache.Set(id)
	}
	out.VesselID, _ = cache.Get()
	return out
}

// Throttle limits how often each sentence type is published on a session.
// Types without an interval always pass.
type Throttle struct {
	intervals map[string]time.Duration
	last      map[string]int64
}

func NewThrottle(intervals map[string]time.Duration) *Throttle {
	return &Throttle{intervals: intervals, last: make(map[string]int64)}
}

// Allow reports whether a record of tag stamped at ts (ms) may go out, and
// records it if so.
func (t *Throttle) Allow(tag string, ts int64) bool {
	iv := t.intervals[tag]
	if iv <= 0 {
		return true
	}
	if last, ok := t.last[tag]; ok && ts-last < iv.Milliseconds() {
		return false
	}
	t.last[tag] = ts
	return true
}
