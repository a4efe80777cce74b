package prediction

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/UnknownOlympus/trafficmodeler/internal/models"
)

// Predictor classifies the risk of a route from its converted metrics.
type Predictor interface {
	Predict(ctx context.Context, distanceKm, durationMin float64) (*models.RiskAssessment, error)
}

// HTTPClient defines the interface for making HTTP requests.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// ErrMalformedResponse is returned when the backend answers with a body that is not a risk assessment.
var ErrMalformedResponse = errors.New("prediction backend returned malformed response")

// HTTPPredictor posts route metrics to the prediction backend.
type HTTPPredictor struct {
	client   HTTPClient
	endpoint string
	log      *slog.Logger
}

type predictRequest struct {
	Route routeMetrics `json:"route"`
}

type routeMetrics struct {
	DistanceKm  float64 `json:"distanceKm"`
	DurationMin float64 `json:"durationMin"`
}

type predictResponse struct {
	RiskLevel *string  `json:"riskLevel"`
	Score     *float64 `json:"score"`
}

// NewHTTPPredictor creates a predictor for the given endpoint.
func NewHTTPPredictor(endpoint string, log *slog.Logger) *HTTPPredictor {
	const timeout = 10
	return NewHTTPPredictorWithClient(&http.Client{Timeout: timeout * time.Second}, endpoint, log)
}

// NewHTTPPredictorWithClient creates a predictor with a custom HTTP client.
func NewHTTPPredictorWithClient(client HTTPClient, endpoint string, log *slog.Logger) *HTTPPredictor {
	return &HTTPPredictor{client: client, endpoint: endpoint, log: log}
}

// Predict sends the route metrics and returns the backend's assessment verbatim.
func (p *HTTPPredictor) Predict(
	ctx context.Context,
	distanceKm, durationMin float64,
) (*models.RiskAssessment, error) {
	payload, err := json.Marshal(predictRequest{
		Route: routeMetrics{DistanceKm: distanceKm, DurationMin: durationMin},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode prediction request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	p.log.DebugContext(ctx, "Requesting risk prediction", "distance_km", distanceKm, "duration_min", durationMin)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute prediction request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		p.log.ErrorContext(ctx, "Prediction backend error", "status", resp.StatusCode, "body", string(body))
		return nil, fmt.Errorf("prediction backend returned status %d: %s", resp.StatusCode, string(body))
	}

	var result predictResponse
	if err = json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if result.RiskLevel == nil || result.Score == nil {
		return nil, fmt.Errorf("%w: missing riskLevel or score", ErrMalformedResponse)
	}

	return &models.RiskAssessment{RiskLevel: *result.RiskLevel, Score: *result.Score}, nil
}
