package routing

import (
	"context"
	"errors"
	"net/http"

	"github.com/UnknownOlympus/trafficmodeler/internal/models"
)

// Router computes a driving route between two coordinates.
type Router interface {
	Route(ctx context.Context, origin, destination models.Coordinates) (*models.Route, error)
}

// HTTPClient defines the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrNoRoute is returned when the routing service has no candidate route between the points.
var ErrNoRoute = errors.New("no route found")
