package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/UnknownOlympus/trafficmodeler/internal/geocoding"
	"github.com/UnknownOlympus/trafficmodeler/internal/metrics"
	"github.com/UnknownOlympus/trafficmodeler/internal/models"
	"github.com/UnknownOlympus/trafficmodeler/internal/planner"
	"github.com/UnknownOlympus/trafficmodeler/internal/prediction"
	"github.com/UnknownOlympus/trafficmodeler/internal/routing"
	"github.com/google/uuid"
)

// ErrSessionNotFound is returned for unknown or already closed sessions.
var ErrSessionNotFound = errors.New("session not found")

// Defaults applied when Config leaves a duration unset.
const (
	DefaultIdleTimeout   = 30 * time.Minute
	DefaultSweepInterval = time.Minute
)

// Config holds the session lifecycle settings.
type Config struct {
	IdleTimeout        time.Duration // sessions untouched for longer are closed by Run
	SweepInterval      time.Duration // how often Run looks for idle sessions
	PredictionRequired bool          // passed to every orchestrator
}

type session struct {
	orch     *planner.Orchestrator
	lastSeen time.Time
}

// SessionService owns the planning sessions and fans obstacle events out to them.
type SessionService struct {
	log       *slog.Logger
	geocoder  geocoding.Provider
	router    routing.Router
	predictor prediction.Predictor
	recorder  planner.Recorder
	metrics   *metrics.Metrics
	cfg       Config
	now       func() time.Time

	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
}

// NewSessionService creates a session service. recorder may be nil to disable plan history.
func NewSessionService(
	log *slog.Logger,
	geocoder geocoding.Provider,
	router routing.Router,
	predictor prediction.Predictor,
	recorder planner.Recorder,
	metrics *metrics.Metrics,
	cfg Config,
) *SessionService {
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}

	return &SessionService{
		log:       log,
		geocoder:  geocoder,
		router:    router,
		predictor: predictor,
		recorder:  recorder,
		metrics:   metrics,
		cfg:       cfg,
		now:       time.Now,
		sessions:  make(map[uuid.UUID]*session),
	}
}

// Open creates a new idle planning session.
func (ss *SessionService) Open(ctx context.Context) (uuid.UUID, *planner.Orchestrator) {
	id := uuid.New()
	opts := planner.Options{
		SessionID:          id,
		PredictionRequired: ss.cfg.PredictionRequired,
		Recorder:           ss.recorder,
	}
	orch := planner.New(ss.geocoder, ss.router, ss.predictor, ss.metrics, ss.log, opts)

	ss.mu.Lock()
	ss.sessions[id] = &session{orch: orch, lastSeen: ss.now()}
	ss.mu.Unlock()

	ss.metrics.ActiveSessions.Inc()
	ss.log.InfoContext(ctx, "Session opened", "session", id)

	return id, orch
}

// Get returns the orchestrator of a session and marks it as active.
func (ss *SessionService) Get(id uuid.UUID) (*planner.Orchestrator, error) {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	sess, ok := ss.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	sess.lastSeen = ss.now()

	return sess.orch, nil
}

// Close tears a session down, cancelling its request in flight.
func (ss *SessionService) Close(ctx context.Context, id uuid.UUID) error {
	ss.mu.Lock()
	sess, ok := ss.sessions[id]
	if ok {
		delete(ss.sessions, id)
	}
	ss.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}

	sess.orch.Close()
	ss.metrics.ActiveSessions.Dec()
	ss.log.InfoContext(ctx, "Session closed", "session", id)

	return nil
}

// Len returns the number of open sessions.
func (ss *SessionService) Len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}

// HandleObstacle delivers an obstacle event to every open session.
func (ss *SessionService) HandleObstacle(ctx context.Context, evt models.ObstacleEvent) {
	ss.mu.RLock()
	targets := make([]*planner.Orchestrator, 0, len(ss.sessions))
	for _, sess := range ss.sessions {
		targets = append(targets, sess.orch)
	}
	ss.mu.RUnlock()

	for _, orch := range targets {
		orch.HandleObstacle(ctx, evt)
	}
}

// Run periodically closes idle sessions until ctx is cancelled, then closes all of them.
func (ss *SessionService) Run(ctx context.Context) {
	ticker := time.NewTicker(ss.cfg.SweepInterval)
	defer ticker.Stop()

	ss.log.InfoContext(ctx, "Session service started", "idle_timeout", ss.cfg.IdleTimeout)

	for {
		select {
		case <-ctx.Done():
			ss.closeAll(context.WithoutCancel(ctx))
			ss.log.InfoContext(ctx, "Session service stopped.")
			return
		case <-ticker.C:
			ss.sweep(ctx)
		}
	}
}

// sweep closes the sessions idle for longer than the configured timeout.
func (ss *SessionService) sweep(ctx context.Context) {
	deadline := ss.now().Add(-ss.cfg.IdleTimeout)

	ss.mu.RLock()
	var idle []uuid.UUID
	for id, sess := range ss.sessions {
		if sess.lastSeen.Before(deadline) {
			idle = append(idle, id)
		}
	}
	ss.mu.RUnlock()

	if len(idle) == 0 {
		return
	}

	ss.log.InfoContext(ctx, "Closing idle sessions", "count", len(idle))
	for _, id := range idle {
		if err := ss.Close(ctx, id); err != nil {
			ss.log.DebugContext(ctx, "Idle session already closed", "session", id)
		}
	}
}

func (ss *SessionService) closeAll(ctx context.Context) {
	ss.mu.RLock()
	ids := make([]uuid.UUID, 0, len(ss.sessions))
	for id := range ss.sessions {
		ids = append(ids, id)
	}
	ss.mu.RUnlock()

	for _, id := range ids {
		_ = ss.Close(ctx, id)
	}
}
