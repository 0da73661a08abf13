package natsbus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubject(t *testing.T) {
	assert.Equal(t, "nmea.123456789.GLL", Subject("nmea/123456789/GLL"))
	assert.Equal(t, "nmea/unknown/RMC", Topic(Subject("nmea/unknown/RMC")))
}

func TestConnectFailsWithoutServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := Connect(ctx, Options{URL: "nats://127.0.0.1:1", Name: "test"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nats connect")
}
