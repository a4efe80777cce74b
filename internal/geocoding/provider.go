package geocoding

import (
	"context"
	"errors"
	"net/http"

	"github.com/UnknownOlympus/trafficmodeler/internal/models"
)

// Provider is an interface that defines a method for geocoding a free-text place name.
// The Geocode method takes a context and a query string as input, and returns the
// coordinates of the best match. A query without any match yields ErrNotFound.
type Provider interface {
	Geocode(ctx context.Context, query string) (*models.Coordinates, error)
}

// HTTPClient defines the interface for making HTTP requests.
// This allows for easy mocking in tests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Common errors shared by all providers.
var (
	// ErrNotFound is returned when the provider has no match for the query. It is a normal outcome.
	ErrNotFound = errors.New("no geocoding results for query")
	// ErrEmptyQuery is returned for a blank query, no request is issued.
	ErrEmptyQuery = errors.New("geocoding query is empty")
)
