package feed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/UnknownOlympus/trafficmodeler/internal/metrics"
	"github.com/UnknownOlympus/trafficmodeler/internal/models"
	"github.com/cenkalti/backoff/v4"
	"github.com/fasthttp/websocket"
)

const (
	defaultPingInterval     = 30 * time.Second
	defaultPongWait         = 60 * time.Second
	defaultHandshakeTimeout = 10 * time.Second
	defaultMinBackoff       = time.Second
	defaultMaxBackoff       = 30 * time.Second
	writeWait               = 5 * time.Second
)

// Handler receives decoded obstacle events.
type Handler interface {
	HandleObstacle(ctx context.Context, evt models.ObstacleEvent)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, evt models.ObstacleEvent)

// HandleObstacle calls f(ctx, evt).
func (f HandlerFunc) HandleObstacle(ctx context.Context, evt models.ObstacleEvent) {
	f(ctx, evt)
}

// Handlers delivers every event to each handler in order.
type Handlers []Handler

// HandleObstacle implements Handler.
func (hs Handlers) HandleObstacle(ctx context.Context, evt models.ObstacleEvent) {
	for _, h := range hs {
		h.HandleObstacle(ctx, evt)
	}
}

// Options tunes the feed client. Zero durations select the defaults.
type Options struct {
	URL              string
	PingInterval     time.Duration
	PongWait         time.Duration
	HandshakeTimeout time.Duration
	MinBackoff       time.Duration
	MaxBackoff       time.Duration
}

// Client keeps a WebSocket subscription to the obstacle feed and
// forwards accepted events to its handler.
type Client struct {
	opts      Options
	dialer    *websocket.Dialer
	handler   Handler
	metrics   *metrics.Metrics
	log       *slog.Logger
	connected atomic.Bool
}

// NewClient creates a feed client. Run must be called to connect.
func NewClient(opts Options, handler Handler, m *metrics.Metrics, log *slog.Logger) *Client {
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	if opts.PongWait <= opts.PingInterval {
		opts.PongWait = opts.PingInterval * 2 //nolint:mnd // pong must outlive at least one ping
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opts.MinBackoff <= 0 {
		opts.MinBackoff = defaultMinBackoff
	}
	if opts.MaxBackoff < opts.MinBackoff {
		opts.MaxBackoff = max(defaultMaxBackoff, opts.MinBackoff)
	}

	return &Client{
		opts: opts,
		dialer: &websocket.Dialer{
			HandshakeTimeout: opts.HandshakeTimeout,
		},
		handler: handler,
		metrics: m,
		log:     log.With("component", "obstacle_feed"),
	}
}

// Connected reports whether the feed connection is currently open.
func (c *Client) Connected() bool {
	return c.connected.Load()
}

// Run connects to the feed and keeps reconnecting with exponential backoff
// until ctx is cancelled. It always returns nil after cancellation.
func (c *Client) Run(ctx context.Context) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.MinBackoff
	bo.MaxInterval = c.opts.MaxBackoff
	bo.MaxElapsedTime = 0
	bo.Reset()

	c.log.InfoContext(ctx, "Starting obstacle feed client", "url", c.opts.URL)

	for {
		err := c.session(ctx, bo)
		if ctx.Err() != nil {
			c.log.InfoContext(ctx, "Obstacle feed client stopped")
			return nil
		}

		wait := bo.NextBackOff()
		c.metrics.FeedReconnects.Inc()
		c.log.WarnContext(ctx, "Obstacle feed disconnected, reconnecting", "error", err, "retry_in", wait)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			c.log.InfoContext(ctx, "Obstacle feed client stopped")
			return nil
		case <-timer.C:
		}
	}
}

// session holds one connection until it fails or ctx is cancelled.
func (c *Client) session(ctx context.Context, bo backoff.BackOff) error {
	conn, resp, err := c.dialer.DialContext(ctx, c.opts.URL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return fmt.Errorf("failed to dial obstacle feed: %w", err)
	}
	defer conn.Close()

	bo.Reset()
	c.setConnected(true)
	defer c.setConnected(false)
	c.log.InfoContext(ctx, "Obstacle feed connected")

	_ = conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go c.keepalive(ctx, conn, done)

	for {
		_, data, readErr := conn.ReadMessage()
		if readErr != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("failed to read obstacle feed: %w", readErr)
		}
		_ = conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
		c.dispatch(ctx, data)
	}
}

// keepalive pings the server and closes the connection once ctx is done.
func (c *Client) keepalive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			_ = conn.WriteControl(
				websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			_ = conn.Close()
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.log.DebugContext(ctx, "Obstacle feed ping failed", "error", err)
				_ = conn.Close()
				return
			}
		}
	}
}

func (c *Client) dispatch(ctx context.Context, data []byte) {
	evt, err := Decode(data)
	switch {
	case errors.Is(err, ErrIgnored):
		c.metrics.ObstacleEvents.WithLabelValues("ignored").Inc()
		c.log.DebugContext(ctx, "Ignoring feed message", "error", err)
		return
	case err != nil:
		c.metrics.ObstacleEvents.WithLabelValues("malformed").Inc()
		c.log.DebugContext(ctx, "Dropping malformed feed message", "error", err)
		return
	}

	evt.ReceivedAt = time.Now().UTC()
	c.metrics.ObstacleEvents.WithLabelValues("accepted").Inc()
	c.log.DebugContext(ctx, "Obstacle received",
		"type", evt.Data.Type, "lat", evt.Data.Lat, "lng", evt.Data.Lng)

	if c.handler != nil {
		c.handler.HandleObstacle(ctx, evt)
	}
}

func (c *Client) setConnected(up bool) {
	c.connected.Store(up)
	if up {
		c.metrics.FeedConnected.Set(1)
	} else {
		c.metrics.FeedConnected.Set(0)
	}
}
