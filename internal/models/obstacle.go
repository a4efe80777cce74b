package models

import "time"

// ObstacleEventType is the only event type rendered as a map marker.
const ObstacleEventType = "obstacle"

// ObstacleEvent is a hazard pushed by the live feed.
type ObstacleEvent struct {
	EventType  string       `json:"eventType"`
	Data       ObstacleData `json:"data"`
	ReceivedAt time.Time    `json:"receivedAt"`
}

// ObstacleData holds the location and kind of a reported obstacle.
type ObstacleData struct {
	Lat  float64 `json:"lat"`
	Lng  float64 `json:"lng"`
	Type string  `json:"type"`
}
