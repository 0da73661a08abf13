package pipeline

import "nmea-bridge/internal/nmea"

// EnrichedRecord is a decoded record plus arrival metadata.
type EnrichedRecord struct {
	Record *nmea.Record
	// Timestamp is the arrival time in milliseconds since the epoch.
	Timestamp int64
	// VesselID is empty when no identifier has been seen yet.
	VesselID string
}

func (e EnrichedRecord) SentenceType() string {
	return e.Record.SentenceType()
}

// VesselCache remembers the last vessel identifier seen on one session.
// It belongs to a single pipeline and is never shared.
type VesselCache struct {
	id string
}

func NewVesselCache(seed string) *VesselCache {
	return &VesselCache{id: seed}
}

func (c *VesselCache) Get() (string, bool) {
	return c.id, c.id != ""
}

func (c *VesselCache) Set(id string) {
	c.id = id
}

func (c *VesselCache) Clear() {
	c.id = ""
}
