package geocoding_test

import (
	"log/slog"
	"testing"

	"github.com/UnknownOlympus/trafficmodeler/internal/geocoding"
	"github.com/UnknownOlympus/trafficmodeler/test/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"googlemaps.github.io/maps"
)

func TestGoogleProvider_Geocode(t *testing.T) {
	mockClient := mocks.NewGoogleAPIClient(t)
	provider := geocoding.NewGoogleProvider(mockClient, slog.Default())
	ctx := t.Context()

	t.Run("api returns error", func(t *testing.T) {
		query := "Mumbai"
		req := &maps.GeocodingRequest{Address: query}

		mockClient.On("Geocode", ctx, req).Return(nil, assert.AnError).Once()

		_, err := provider.Geocode(ctx, query)

		require.ErrorIs(t, err, assert.AnError)
		assert.NotErrorIs(t, err, geocoding.ErrNotFound)
		mockClient.AssertExpectations(t)
	})

	t.Run("api returns empty response", func(t *testing.T) {
		query := "Xyzzyville"
		req := &maps.GeocodingRequest{Address: query}

		mockClient.On("Geocode", ctx, req).Return(nil, nil).Once()

		coords, err := provider.Geocode(ctx, query)

		require.Nil(t, coords)
		require.ErrorIs(t, err, geocoding.ErrNotFound)
		mockClient.AssertExpectations(t)
	})

	t.Run("blank query", func(t *testing.T) {
		coords, err := provider.Geocode(ctx, " \t")

		require.Nil(t, coords)
		require.ErrorIs(t, err, geocoding.ErrEmptyQuery)
	})

	t.Run("successful geocoding", func(t *testing.T) {
		query := "Pune"
		req := &maps.GeocodingRequest{Address: query}
		mockResponse := []maps.GeocodingResult{
			{Geometry: maps.AddressGeometry{Location: maps.LatLng{Lat: 18.5204, Lng: 73.8567}}},
		}

		mockClient.On("Geocode", ctx, req).Return(mockResponse, nil).Once()

		coords, err := provider.Geocode(ctx, " Pune ")

		require.NoError(t, err)
		require.NotNil(t, coords)
		require.InEpsilon(t, 18.5204, coords.Latitude, 0.0001)
		require.InEpsilon(t, 73.8567, coords.Longitude, 0.0001)
		mockClient.AssertExpectations(t)
	})
}
