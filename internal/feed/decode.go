package feed

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/UnknownOlympus/trafficmodeler/internal/models"
)

// Decode outcomes that are swallowed by the client.
var (
	// ErrMalformed is returned for messages that are not valid obstacle envelopes.
	ErrMalformed = errors.New("malformed feed message")
	// ErrIgnored is returned for well-formed messages of another event type.
	ErrIgnored = errors.New("feed message ignored")
)

type envelope struct {
	EventType string          `json:"eventType"`
	Data      json.RawMessage `json:"data"`
}

type obstaclePayload struct {
	Lat  *float64 `json:"lat"`
	Lng  *float64 `json:"lng"`
	Type string   `json:"type"`
}

// Decode parses a raw feed message into an obstacle event.
func Decode(raw []byte) (models.ObstacleEvent, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return models.ObstacleEvent{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	if env.EventType != models.ObstacleEventType {
		return models.ObstacleEvent{}, fmt.Errorf("%w: event type %q", ErrIgnored, env.EventType)
	}

	var payload obstaclePayload
	if len(env.Data) == 0 {
		return models.ObstacleEvent{}, fmt.Errorf("%w: obstacle without data", ErrMalformed)
	}
	if err := json.Unmarshal(env.Data, &payload); err != nil {
		return models.ObstacleEvent{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	if payload.Lat == nil || payload.Lng == nil {
		return models.ObstacleEvent{}, fmt.Errorf("%w: obstacle without position", ErrMalformed)
	}

	return models.ObstacleEvent{
		EventType: env.EventType,
		Data: models.ObstacleData{
			Lat:  *payload.Lat,
			Lng:  *payload.Lng,
			Type: payload.Type,
		},
	}, nil
}
