package kafka

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roadmedic/reportsync/internal/domain"
)

func TestParseFix(t *testing.T) {
	fix, err := parseFix([]byte(`{"lat":12.9716,"lon":77.5946,"at":1700000000000}`), time.Now())
	require.NoError(t, err)

	assert.Equal(t, domain.Point{Lat: 12.9716, Lon: 77.5946}, fix.Point)
	assert.Equal(t, time.UnixMilli(1700000000000), fix.At)
}

func TestParseFix_BrokerTimeFallback(t *testing.T) {
	brokerTime := time.UnixMilli(1699999999999)
	fix, err := parseFix([]byte(`{"lat":1,"lon":2}`), brokerTime)
	require.NoError(t, err)
	assert.Equal(t, brokerTime, fix.At)
}

func TestParseFix_MalformedJSON(t *testing.T) {
	_, err := parseFix([]byte(`{lat:`), time.Now())
	assert.Error(t, err)
}

func TestParseFix_OutOfRange(t *testing.T) {
	_, err := parseFix([]byte(`{"lat":91,"lon":0}`), time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidPoint)

	_, err = parseFix([]byte(`{"lat":0,"lon":-181}`), time.Now())
	assert.ErrorIs(t, err, domain.ErrInvalidPoint)
}
