package planner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/UnknownOlympus/trafficmodeler/internal/geocoding"
	"github.com/UnknownOlympus/trafficmodeler/internal/metrics"
	"github.com/UnknownOlympus/trafficmodeler/internal/models"
	"github.com/UnknownOlympus/trafficmodeler/internal/prediction"
	"github.com/UnknownOlympus/trafficmodeler/internal/routing"
	"github.com/google/uuid"
)

// State is a phase of the planning state machine.
type State string

const (
	StateIdle       State = "idle"
	StateGeocoding  State = "geocoding"
	StateRouting    State = "routing"
	StatePredicting State = "predicting"
	StateDisplaying State = "displaying"
	StateError      State = "error"
)

// Outcomes of Submit.
var (
	ErrValidation    = errors.New("origin and destination are required")
	ErrNoCoordinates = errors.New("no coordinates found for location")
	ErrNoRoute       = errors.New("no route found between locations")
	ErrTransport     = errors.New("upstream service unavailable")
	ErrSuperseded    = errors.New("request superseded by a newer one")
	ErrClosed        = errors.New("planner is closed")
)

// Recorder stores displayed plans.
type Recorder interface {
	SavePlan(ctx context.Context, record models.PlanRecord) error
}

// Options configures an Orchestrator.
type Options struct {
	SessionID uuid.UUID
	// PredictionRequired aborts a request when the risk backend fails
	// instead of displaying the route without an assessment.
	PredictionRequired bool
	// Recorder is optional.
	Recorder Recorder
}

// Snapshot is a consistent view of the orchestrator.
type Snapshot struct {
	State   State                  `json:"state"`
	Plan    *models.Plan           `json:"plan,omitempty"`
	Markers []models.ObstacleEvent `json:"markers"`
	Error   string                 `json:"error,omitempty"`
}

// Orchestrator drives one planning session: geocode, route, predict, display.
// Only the result of the most recently submitted request is ever displayed.
type Orchestrator struct {
	geocoder  geocoding.Provider
	router    routing.Router
	predictor prediction.Predictor
	metrics   *metrics.Metrics
	log       *slog.Logger
	opts      Options

	mu      sync.Mutex
	seq     uint64
	cancel  context.CancelFunc
	state   State
	plan    *models.Plan
	markers []models.ObstacleEvent
	lastErr string
	closed  bool
}

// New creates an idle orchestrator.
func New(
	geocoder geocoding.Provider,
	router routing.Router,
	predictor prediction.Predictor,
	m *metrics.Metrics,
	log *slog.Logger,
	opts Options,
) *Orchestrator {
	return &Orchestrator{
		geocoder:  geocoder,
		router:    router,
		predictor: predictor,
		metrics:   m,
		log:       log.With("session", opts.SessionID.String()),
		opts:      opts,
		state:     StateIdle,
		markers:   []models.ObstacleEvent{},
	}
}

// Submit plans a route between two free-text places.
//
// A blank field fails with ErrValidation before any network call. Starting a
// request cancels the one in flight, whose Submit then returns ErrSuperseded.
func (o *Orchestrator) Submit(ctx context.Context, origin, destination string) (*models.Plan, error) {
	origin = strings.TrimSpace(origin)
	destination = strings.TrimSpace(destination)
	if origin == "" || destination == "" {
		o.metrics.PlansProcessed.WithLabelValues("invalid").Inc()
		return nil, ErrValidation
	}

	reqCtx, token, err := o.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer o.release(token)

	o.log.InfoContext(ctx, "Planning route", "origin", origin, "destination", destination, "request", token)

	from, err := o.geocode(reqCtx, origin)
	if err != nil {
		return nil, o.fail(ctx, token, err)
	}
	to, err := o.geocode(reqCtx, destination)
	if err != nil {
		return nil, o.fail(ctx, token, err)
	}

	if !o.transition(token, StateRouting) {
		return nil, o.superseded()
	}
	route, err := o.route(reqCtx, *from, *to)
	if err != nil {
		return nil, o.fail(ctx, token, err)
	}

	distanceKm := models.MetersToKm(route.DistanceMeters)
	durationMin := models.SecondsToMinutes(route.DurationSeconds)

	if !o.transition(token, StatePredicting) {
		return nil, o.superseded()
	}
	risk, err := o.predict(reqCtx, distanceKm, durationMin)
	riskErr := ""
	if err != nil {
		if o.opts.PredictionRequired || !o.current(token) {
			return nil, o.fail(ctx, token, err)
		}
		o.log.WarnContext(ctx, "Displaying route without risk assessment", "error", err)
		riskErr = err.Error()
	}

	plan := &models.Plan{
		ID:          uuid.New(),
		Origin:      origin,
		Destination: destination,
		From:        *from,
		To:          *to,
		Route:       *route,
		DistanceKm:  distanceKm,
		DurationMin: durationMin,
		Risk:        risk,
		RiskError:   riskErr,
		Summary:     models.Summarize(distanceKm, durationMin, risk),
		CreatedAt:   time.Now().UTC(),
	}

	if !o.commit(token, plan) {
		return nil, o.superseded()
	}

	status := "displayed"
	if risk == nil {
		status = "degraded"
	}
	o.metrics.PlansProcessed.WithLabelValues(status).Inc()
	o.log.InfoContext(ctx, "Route displayed",
		"plan", plan.ID, "distance", plan.Summary.Distance, "duration", plan.Summary.Duration, "risk", plan.Summary.Risk)

	o.record(ctx, plan)

	return plan, nil
}

// HandleObstacle adds a marker for an obstacle event. Other event types are ignored.
// It is safe to call in any state.
func (o *Orchestrator) HandleObstacle(_ context.Context, evt models.ObstacleEvent) {
	if evt.EventType != models.ObstacleEventType {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.closed {
		return
	}
	o.markers = append(o.markers, evt)
}

// Snapshot returns the current state, active plan and markers.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()

	markers := make([]models.ObstacleEvent, len(o.markers))
	copy(markers, o.markers)

	return Snapshot{
		State:   o.state,
		Plan:    o.plan,
		Markers: markers,
		Error:   o.lastErr,
	}
}

// Close cancels the request in flight. Later calls to Submit fail with ErrClosed.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return
	}
	o.closed = true
	o.seq++
	if o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

// begin takes a new request token, aborting the previous request and clearing the active plan.
func (o *Orchestrator) begin(ctx context.Context) (context.Context, uint64, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil, 0, ErrClosed
	}
	if o.cancel != nil {
		o.cancel()
	}

	reqCtx, cancel := context.WithCancel(ctx)
	o.seq++
	o.cancel = cancel
	o.state = StateGeocoding
	o.plan = nil
	o.lastErr = ""

	return reqCtx, o.seq, nil
}

// release frees the request context once the request has finished.
func (o *Orchestrator) release(token uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.seq == token && o.cancel != nil {
		o.cancel()
		o.cancel = nil
	}
}

func (o *Orchestrator) current(token uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.seq == token
}

func (o *Orchestrator) transition(token uint64, next State) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.seq != token {
		return false
	}
	o.state = next
	return true
}

func (o *Orchestrator) commit(token uint64, plan *models.Plan) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.seq != token {
		return false
	}
	o.state = StateDisplaying
	o.plan = plan
	return true
}

// fail moves a current request into the error state. Stale requests leave the state untouched.
func (o *Orchestrator) fail(ctx context.Context, token uint64, err error) error {
	classified := classify(err)

	o.mu.Lock()
	if o.seq != token {
		o.mu.Unlock()
		return o.superseded()
	}
	o.state = StateError
	o.lastErr = classified.Error()
	o.mu.Unlock()

	switch {
	case errors.Is(classified, ErrTransport):
		o.metrics.PlansProcessed.WithLabelValues("transport_error").Inc()
		o.log.ErrorContext(ctx, "Planning request failed", "error", classified)
	default:
		o.metrics.PlansProcessed.WithLabelValues("not_found").Inc()
		o.log.InfoContext(ctx, "Planning request rejected", "error", classified)
	}

	return classified
}

func (o *Orchestrator) superseded() error {
	o.metrics.PlansProcessed.WithLabelValues("superseded").Inc()
	return ErrSuperseded
}

func classify(err error) error {
	switch {
	case errors.Is(err, geocoding.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNoCoordinates, err)
	case errors.Is(err, routing.ErrNoRoute):
		return fmt.Errorf("%w: %w", ErrNoRoute, err)
	default:
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
}

func (o *Orchestrator) geocode(ctx context.Context, query string) (*models.Coordinates, error) {
	start := time.Now()
	coords, err := o.geocoder.Geocode(ctx, query)
	o.observe("geocoder", start, err, geocoding.ErrNotFound)
	if err != nil {
		return nil, fmt.Errorf("geocode %q: %w", query, err)
	}

	return coords, nil
}

func (o *Orchestrator) route(ctx context.Context, from, to models.Coordinates) (*models.Route, error) {
	start := time.Now()
	route, err := o.router.Route(ctx, from, to)
	o.observe("router", start, err, routing.ErrNoRoute)

	return route, err
}

func (o *Orchestrator) predict(ctx context.Context, distanceKm, durationMin float64) (*models.RiskAssessment, error) {
	start := time.Now()
	risk, err := o.predictor.Predict(ctx, distanceKm, durationMin)
	o.observe("predictor", start, err, nil)
	if err != nil {
		return nil, fmt.Errorf("predict risk: %w", err)
	}

	return risk, nil
}

// observe records the call latency and counts failures other than the expected outcome.
func (o *Orchestrator) observe(provider string, start time.Time, err, expected error) {
	o.metrics.RequestSeconds.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	if expected != nil && errors.Is(err, expected) {
		return
	}
	o.metrics.ProviderErrors.WithLabelValues(provider).Inc()
}

func (o *Orchestrator) record(ctx context.Context, plan *models.Plan) {
	if o.opts.Recorder == nil {
		return
	}

	if err := o.opts.Recorder.SavePlan(context.WithoutCancel(ctx), plan.Record(o.opts.SessionID)); err != nil {
		o.log.WarnContext(ctx, "Failed to record plan", "plan", plan.ID, "error", err)
	}
}
