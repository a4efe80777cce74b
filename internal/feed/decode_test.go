package feed_test

import (
	"testing"

	"github.com/UnknownOlympus/trafficmodeler/internal/feed"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Run("obstacle event", func(t *testing.T) {
		evt, err := feed.Decode([]byte(`{"eventType":"obstacle","data":{"lat":19.1,"lng":72.9,"type":"accident"}}`))

		require.NoError(t, err)
		assert.Equal(t, "obstacle", evt.EventType)
		assert.InEpsilon(t, 19.1, evt.Data.Lat, 0.0001)
		assert.InEpsilon(t, 72.9, evt.Data.Lng, 0.0001)
		assert.Equal(t, "accident", evt.Data.Type)
	})

	t.Run("other event type is ignored", func(t *testing.T) {
		_, err := feed.Decode([]byte(`{"eventType":"heartbeat","data":{"lat":19.1,"lng":72.9,"type":"x"}}`))

		assert.ErrorIs(t, err, feed.ErrIgnored)
	})

	t.Run("missing event type is ignored", func(t *testing.T) {
		_, err := feed.Decode([]byte(`{"data":{"lat":19.1,"lng":72.9}}`))

		assert.ErrorIs(t, err, feed.ErrIgnored)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := feed.Decode([]byte(`{"eventType":`))

		assert.ErrorIs(t, err, feed.ErrMalformed)
	})

	t.Run("obstacle without data", func(t *testing.T) {
		_, err := feed.Decode([]byte(`{"eventType":"obstacle"}`))

		assert.ErrorIs(t, err, feed.ErrMalformed)
	})

	t.Run("obstacle with wrongly typed data", func(t *testing.T) {
		_, err := feed.Decode([]byte(`{"eventType":"obstacle","data":{"lat":"north","lng":72.9}}`))

		assert.ErrorIs(t, err, feed.ErrMalformed)
	})

	t.Run("obstacle without position", func(t *testing.T) {
		_, err := feed.Decode([]byte(`{"eventType":"obstacle","data":{"type":"hazard"}}`))

		assert.ErrorIs(t, err, feed.ErrMalformed)
	})
}
