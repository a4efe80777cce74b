package routing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/UnknownOlympus/trafficmodeler/internal/models"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	// OSRMBaseURL is the public OSRM demo server.
	OSRMBaseURL = "https://router.project-osrm.org"
	// DefaultProfile is the OSRM profile used for road routing.
	DefaultProfile = "driving"

	osrmCodeOK      = "Ok"
	osrmCodeNoRoute = "NoRoute"
)

// ErrInvalidGeometry is returned when a route geometry is not a GeoJSON LineString.
var ErrInvalidGeometry = errors.New("osrm route geometry is not a line string")

// OSRMRouter fetches driving routes from an OSRM HTTP API.
type OSRMRouter struct {
	client  HTTPClient
	baseURL string
	profile string
	log     *slog.Logger
}

// osrmResponse is the subset of the OSRM route service response used here.
type osrmResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Routes  []osrmRoute `json:"routes"`
}

type osrmRoute struct {
	Distance float64           `json:"distance"` // meters
	Duration float64           `json:"duration"` // seconds
	Geometry *geojson.Geometry `json:"geometry"` // coordinates are [lon, lat]
}

// NewOSRMRouter creates a router for the given OSRM server and profile.
// Empty values select OSRMBaseURL and DefaultProfile.
func NewOSRMRouter(baseURL, profile string, log *slog.Logger) *OSRMRouter {
	const timeout = 15
	return NewOSRMRouterWithClient(&http.Client{Timeout: timeout * time.Second}, baseURL, profile, log)
}

// NewOSRMRouterWithClient creates a router with a custom HTTP client.
func NewOSRMRouterWithClient(client HTTPClient, baseURL, profile string, log *slog.Logger) *OSRMRouter {
	if baseURL == "" {
		baseURL = OSRMBaseURL
	}
	if profile == "" {
		profile = DefaultProfile
	}

	return &OSRMRouter{
		client:  client,
		baseURL: strings.TrimRight(baseURL, "/"),
		profile: profile,
		log:     log,
	}
}

// Route requests the best driving route between origin and destination.
// Distance and duration are returned verbatim in meters and seconds.
func (r *OSRMRouter) Route(ctx context.Context, origin, destination models.Coordinates) (*models.Route, error) {
	reqURL := r.routeURL(origin, destination)
	r.log.DebugContext(ctx, "OSRM request URL", "url", reqURL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call OSRM API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var osrmResp osrmResponse
	decodeErr := json.Unmarshal(body, &osrmResp)

	// OSRM answers NoRoute with a 400, so the code is checked before the status.
	if decodeErr == nil && osrmResp.Code == osrmCodeNoRoute {
		return nil, ErrNoRoute
	}

	if resp.StatusCode != http.StatusOK {
		r.log.ErrorContext(ctx, "OSRM API error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("OSRM API returned status %d: %s", resp.StatusCode, string(body))
	}

	if decodeErr != nil {
		return nil, fmt.Errorf("failed to decode OSRM response: %w", decodeErr)
	}

	if osrmResp.Code != osrmCodeOK {
		return nil, fmt.Errorf("OSRM API returned code %s: %s", osrmResp.Code, osrmResp.Message)
	}

	if len(osrmResp.Routes) == 0 {
		return nil, ErrNoRoute
	}

	best := osrmResp.Routes[0]
	path, err := transpose(best.Geometry)
	if err != nil {
		return nil, err
	}

	r.log.DebugContext(ctx, "OSRM found route",
		"distance_m", best.Distance,
		"duration_s", best.Duration,
		"points", len(path),
		"alternatives_dropped", len(osrmResp.Routes)-1)

	return &models.Route{
		Path:            path,
		DistanceMeters:  best.Distance,
		DurationSeconds: best.Duration,
	}, nil
}

func (r *OSRMRouter) routeURL(origin, destination models.Coordinates) string {
	params := url.Values{}
	params.Set("overview", "full")
	params.Set("geometries", "geojson")
	params.Set("alternatives", "false")
	params.Set("steps", "false")

	return fmt.Sprintf("%s/route/v1/%s/%s;%s?%s",
		r.baseURL, r.profile, lonLat(origin), lonLat(destination), params.Encode())
}

// lonLat renders a coordinate in the lon,lat order OSRM expects.
func lonLat(c models.Coordinates) string {
	return strconv.FormatFloat(c.Longitude, 'f', 6, 64) + "," + strconv.FormatFloat(c.Latitude, 'f', 6, 64)
}

// transpose converts a GeoJSON line string of [lon, lat] points into [lat, lng] coordinates.
func transpose(geometry *geojson.Geometry) ([]models.Coordinates, error) {
	if geometry == nil {
		return nil, ErrInvalidGeometry
	}

	line, ok := geometry.Geometry().(orb.LineString)
	if !ok {
		return nil, fmt.Errorf("%w: got %s", ErrInvalidGeometry, geometry.Type)
	}

	path := make([]models.Coordinates, 0, len(line))
	for _, point := range line {
		path = append(path, models.Coordinates{Latitude: point.Lat(), Longitude: point.Lon()})
	}

	return path, nil
}
