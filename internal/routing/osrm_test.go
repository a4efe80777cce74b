package routing_test

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/UnknownOlympus/trafficmodeler/internal/models"
	"github.com/UnknownOlympus/trafficmodeler/internal/routing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func respond(status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

var (
	mumbai = models.Coordinates{Latitude: 19.076, Longitude: 72.8777}
	pune   = models.Coordinates{Latitude: 18.5204, Longitude: 73.8567}
)

const mumbaiPuneResponse = `{
	"code": "Ok",
	"routes": [
		{
			"distance": 150000,
			"duration": 10800,
			"geometry": {"type": "LineString", "coordinates": [[72.8777, 19.076], [73.2, 18.8], [73.8567, 18.5204]]}
		},
		{
			"distance": 162000,
			"duration": 11500,
			"geometry": {"type": "LineString", "coordinates": [[72.8777, 19.076], [73.8567, 18.5204]]}
		}
	]
}`

func TestOSRMRouter_Route(t *testing.T) {
	ctx := t.Context()
	logger := slog.Default()

	t.Run("successful route transposes coordinates", func(t *testing.T) {
		requestCount := 0
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				requestCount++
				assert.Equal(t, http.MethodGet, req.Method)
				assert.Equal(t, "/route/v1/driving/72.877700,19.076000;73.856700,18.520400", req.URL.Path)
				assert.Equal(t, "full", req.URL.Query().Get("overview"))
				assert.Equal(t, "geojson", req.URL.Query().Get("geometries"))
				assert.Equal(t, "false", req.URL.Query().Get("alternatives"))
				return respond(http.StatusOK, mumbaiPuneResponse), nil
			},
		}

		router := routing.NewOSRMRouterWithClient(mockClient, "", "", logger)
		route, err := router.Route(ctx, mumbai, pune)

		require.NoError(t, err)
		require.NotNil(t, route)
		assert.Equal(t, 1, requestCount)
		assert.InEpsilon(t, 150000.0, route.DistanceMeters, 0.0001)
		assert.InEpsilon(t, 10800.0, route.DurationSeconds, 0.0001)
		require.Len(t, route.Path, 3, "only the first route is used")
		assert.InEpsilon(t, 19.076, route.Path[0].Latitude, 0.0001)
		assert.InEpsilon(t, 72.8777, route.Path[0].Longitude, 0.0001)
		assert.InEpsilon(t, 18.5204, route.Path[2].Latitude, 0.0001)
		assert.InEpsilon(t, 73.8567, route.Path[2].Longitude, 0.0001)
	})

	t.Run("custom base url and profile", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(req *http.Request) (*http.Response, error) {
				assert.Equal(t, "osrm.internal:5000", req.URL.Host)
				assert.True(t, strings.HasPrefix(req.URL.Path, "/route/v1/car/"))
				return respond(http.StatusOK, mumbaiPuneResponse), nil
			},
		}

		router := routing.NewOSRMRouterWithClient(mockClient, "http://osrm.internal:5000/", "car", logger)
		_, err := router.Route(ctx, mumbai, pune)

		require.NoError(t, err)
	})

	t.Run("zero routes", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return respond(http.StatusOK, `{"code":"Ok","routes":[]}`), nil
			},
		}

		router := routing.NewOSRMRouterWithClient(mockClient, "", "", logger)
		route, err := router.Route(ctx, mumbai, pune)

		require.Nil(t, route)
		assert.ErrorIs(t, err, routing.ErrNoRoute)
	})

	t.Run("NoRoute code with bad request status", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return respond(http.StatusBadRequest, `{"code":"NoRoute","message":"Impossible route between points"}`), nil
			},
		}

		router := routing.NewOSRMRouterWithClient(mockClient, "", "", logger)
		route, err := router.Route(ctx, mumbai, pune)

		require.Nil(t, route)
		assert.ErrorIs(t, err, routing.ErrNoRoute)
	})

	t.Run("other error code", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return respond(http.StatusBadRequest, `{"code":"InvalidQuery","message":"Query string malformed"}`), nil
			},
		}

		router := routing.NewOSRMRouterWithClient(mockClient, "", "", logger)
		route, err := router.Route(ctx, mumbai, pune)

		require.Nil(t, route)
		require.Error(t, err)
		assert.NotErrorIs(t, err, routing.ErrNoRoute)
		assert.Contains(t, err.Error(), "OSRM API returned status 400")
	})

	t.Run("server error", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return respond(http.StatusBadGateway, `upstream unavailable`), nil
			},
		}

		router := routing.NewOSRMRouterWithClient(mockClient, "", "", logger)
		_, err := router.Route(ctx, mumbai, pune)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "OSRM API returned status 502")
	})

	t.Run("malformed body", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return respond(http.StatusOK, `not json`), nil
			},
		}

		router := routing.NewOSRMRouterWithClient(mockClient, "", "", logger)
		_, err := router.Route(ctx, mumbai, pune)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to decode OSRM response")
	})

	t.Run("geometry is not a line string", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return respond(http.StatusOK,
					`{"code":"Ok","routes":[{"distance":1,"duration":1,"geometry":{"type":"Point","coordinates":[72.8,19.0]}}]}`), nil
			},
		}

		router := routing.NewOSRMRouterWithClient(mockClient, "", "", logger)
		_, err := router.Route(ctx, mumbai, pune)

		assert.ErrorIs(t, err, routing.ErrInvalidGeometry)
	})

	t.Run("missing geometry", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return respond(http.StatusOK, `{"code":"Ok","routes":[{"distance":1,"duration":1}]}`), nil
			},
		}

		router := routing.NewOSRMRouterWithClient(mockClient, "", "", logger)
		_, err := router.Route(ctx, mumbai, pune)

		assert.ErrorIs(t, err, routing.ErrInvalidGeometry)
	})

	t.Run("HTTP client returns error", func(t *testing.T) {
		mockClient := &mockHTTPClient{
			doFunc: func(_ *http.Request) (*http.Response, error) {
				return nil, assert.AnError
			},
		}

		router := routing.NewOSRMRouterWithClient(mockClient, "", "", logger)
		_, err := router.Route(ctx, mumbai, pune)

		require.ErrorIs(t, err, assert.AnError)
		assert.Contains(t, err.Error(), "failed to call OSRM API")
	})
}

func TestNewOSRMRouter(t *testing.T) {
	require.NotNil(t, routing.NewOSRMRouter("", "", slog.Default()))
}
