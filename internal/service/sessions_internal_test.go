package service

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/UnknownOlympus/trafficmodeler/internal/metrics"
	"github.com/UnknownOlympus/trafficmodeler/internal/models"
	"github.com/UnknownOlympus/trafficmodeler/internal/planner"
	"github.com/UnknownOlympus/trafficmodeler/test/mocks"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T) (*SessionService, *metrics.Metrics, *mocks.Provider) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	m := metrics.NewMetrics(prometheus.NewRegistry())
	provider := mocks.NewProvider(t)

	svc := NewSessionService(logger, provider, mocks.NewRouter(t), mocks.NewPredictor(t), nil, m, Config{
		IdleTimeout:   time.Minute,
		SweepInterval: 10 * time.Millisecond,
	})

	return svc, m, provider
}

func TestSessionLifecycle(t *testing.T) {
	svc, m, _ := newTestService(t)
	ctx := t.Context()

	id, orch := svc.Open(ctx)
	require.NotNil(t, orch)
	assert.Equal(t, 1, svc.Len())
	assert.InDelta(t, 1.0, testutil.ToFloat64(m.ActiveSessions), 0)

	got, err := svc.Get(id)
	require.NoError(t, err)
	assert.Same(t, orch, got)

	require.NoError(t, svc.Close(ctx, id))
	assert.Equal(t, 0, svc.Len())
	assert.InDelta(t, 0.0, testutil.ToFloat64(m.ActiveSessions), 0)

	_, err = svc.Get(id)
	require.ErrorIs(t, err, ErrSessionNotFound)
	require.ErrorIs(t, svc.Close(ctx, id), ErrSessionNotFound)

	_, err = orch.Submit(ctx, "Mumbai", "Pune")
	assert.ErrorIs(t, err, planner.ErrClosed, "closed session refuses requests")

	_, err = svc.Get(uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestHandleObstacleFanOut(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := t.Context()

	_, first := svc.Open(ctx)
	_, second := svc.Open(ctx)

	svc.HandleObstacle(ctx, models.ObstacleEvent{
		EventType: models.ObstacleEventType,
		Data:      models.ObstacleData{Lat: 19.1, Lng: 72.9, Type: "accident"},
	})

	assert.Len(t, first.Snapshot().Markers, 1)
	assert.Len(t, second.Snapshot().Markers, 1)

	_, third := svc.Open(ctx)
	assert.Empty(t, third.Snapshot().Markers, "events are not replayed to new sessions")
}

func TestSweepClosesIdleSessions(t *testing.T) {
	svc, _, _ := newTestService(t)
	clock := &fakeClock{now: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
	svc.now = clock.Now
	ctx := t.Context()

	idle, _ := svc.Open(ctx)
	clock.Advance(45 * time.Second)
	active, _ := svc.Open(ctx)
	clock.Advance(30 * time.Second)

	_, err := svc.Get(active)
	require.NoError(t, err)

	svc.sweep(ctx)

	assert.Equal(t, 1, svc.Len())
	_, err = svc.Get(idle)
	require.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.Get(active)
	assert.NoError(t, err)
}

func TestRun(t *testing.T) {
	t.Run("sweeps on every tick", func(t *testing.T) {
		svc, _, _ := newTestService(t)
		clock := &fakeClock{now: time.Now()}
		svc.now = clock.Now

		svc.Open(t.Context())
		clock.Advance(2 * time.Minute)

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()
		go svc.Run(ctx)

		assert.Eventually(t, func() bool { return svc.Len() == 0 }, time.Second, 5*time.Millisecond)
	})

	t.Run("cancellation closes every session", func(t *testing.T) {
		svc, m, _ := newTestService(t)
		tctx, cancel := context.WithTimeout(t.Context(), 30*time.Millisecond)
		defer cancel()

		_, orch := svc.Open(t.Context())

		svc.Run(tctx)

		assert.Equal(t, 0, svc.Len())
		assert.InDelta(t, 0.0, testutil.ToFloat64(m.ActiveSessions), 0)
		_, err := orch.Submit(t.Context(), "Mumbai", "Pune")
		assert.ErrorIs(t, err, planner.ErrClosed)
	})
}

func TestNewSessionService_UnsetDurations(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	m := metrics.NewMetrics(prometheus.NewRegistry())

	svc := NewSessionService(logger, mocks.NewProvider(t), mocks.NewRouter(t), mocks.NewPredictor(t), nil, m, Config{})

	assert.Equal(t, DefaultIdleTimeout, svc.cfg.IdleTimeout)
	assert.Equal(t, DefaultSweepInterval, svc.cfg.SweepInterval)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	assert.NotPanics(t, func() { svc.Run(ctx) })
}
