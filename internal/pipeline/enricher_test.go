package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"nmea-bridge/internal/nmea"
)

func TestEnrichResolvesVessel(t *testing.T) {
	e := NewEnricher(func() time.Time { return fixedNow })
	cache := NewVesselCache("")

	plain := nmea.NewRecord()
	out := e.Enrich(plain, cache)
	assert.Empty(t, out.VesselID)
	assert.Equal(t, fixedNow.UnixMilli(), out.Timestamp)

	ident := nmea.NewRecord()
	ident.SetIdentifier("366999999")
	assert.Equal(t, "366999999", e.Enrich(ident, cache).VesselID)
	assert.Equal(t, "366999999", e.Enrich(plain, cache).VesselID)

	cache.Clear()
	_, ok := cache.Get()
	assert.False(t, ok)
}

func TestEnrichSeededCache(t *testing.T) {
	e := NewEnricher(nil)
	cache := NewVesselCache("123456789")
	out := e.Enrich(nmea.NewRecord(), cache)
	assert.Equal(t, "123456789", out.VesselID)
	assert.InDelta(t, time.Now().UnixMilli(), out.Timestamp, 5000)
}

func TestThrottle(t *testing.T) {
	th := NewThrottle(map[string]time.Duration{"GGA": 10 * time.Second})

	assert.True(t, th.Allow("GGA", 0))
	assert.False(t, th.Allow("GGA", 9_999))
	assert.True(t, th.Allow("GGA", 10_000))
	assert.False(t, th.Allow("GGA", 15_000))

	for i := int64(0); i < 5; i++ {
		assert.True(t, th.Allow("RMC", i))
	}
}

func TestStateAndEventNames(t *testing.T) {
	assert.Equal(t, "connecting", StateConnecting.String())
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "publish_failed", EventPublishFailed.String())
	assert.Equal(t, "transport: eof", (&TransportError{Err: errString("eof")}).Error())
}

type errString string

func (e errString) Error() string { return string(e) }
