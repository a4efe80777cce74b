package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/UnknownOlympus/trafficmodeler/internal/metrics"
	"github.com/UnknownOlympus/trafficmodeler/internal/models"
	"github.com/nats-io/nats.go"
)

// SubjectPrefix is the root of the obstacle subjects, e.g. traffic.obstacles.accident.
const SubjectPrefix = "traffic.obstacles"

// Conn is the subset of *nats.Conn used by Publisher.
type Conn interface {
	Publish(subj string, data []byte) error
}

// Connect opens a NATS connection that keeps reconnecting in the background.
func Connect(url string, log *slog.Logger) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name("trafficmodeler"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			log.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return conn, nil
}

// Publisher republishes accepted obstacle events on NATS.
type Publisher struct {
	conn    Conn
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewPublisher creates a publisher on top of an open connection.
func NewPublisher(conn Conn, m *metrics.Metrics, log *slog.Logger) *Publisher {
	return &Publisher{conn: conn, metrics: m, log: log}
}

// Subject returns the subject an obstacle type is published on.
func Subject(obstacleType string) string {
	token := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, strings.TrimSpace(obstacleType))
	if token == "" {
		token = "unknown"
	}

	return SubjectPrefix + "." + token
}

// HandleObstacle publishes the event. Failures are logged and counted, never returned.
func (p *Publisher) HandleObstacle(ctx context.Context, evt models.ObstacleEvent) {
	data, err := json.Marshal(evt)
	if err != nil {
		p.metrics.PublishedEvents.WithLabelValues("failure").Inc()
		p.log.ErrorContext(ctx, "Failed to encode obstacle event", "error", err)
		return
	}

	subject := Subject(evt.Data.Type)
	if err = p.conn.Publish(subject, data); err != nil {
		p.metrics.PublishedEvents.WithLabelValues("failure").Inc()
		p.log.WarnContext(ctx, "Failed to publish obstacle event", "subject", subject, "error", err)
		return
	}

	p.metrics.PublishedEvents.WithLabelValues("success").Inc()
	p.log.DebugContext(ctx, "Obstacle event published", "subject", subject)
}
