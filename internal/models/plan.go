package models

import (
	"time"

	"github.com/google/uuid"
)

// Plan is the displayed result of one planning request.
type Plan struct {
	ID          uuid.UUID       `json:"id"`
	Origin      string          `json:"origin"`
	Destination string          `json:"destination"`
	From        Coordinates     `json:"from"`
	To          Coordinates     `json:"to"`
	Route       Route           `json:"route"`
	DistanceKm  float64         `json:"distanceKm"`
	DurationMin float64         `json:"durationMin"`
	Risk        *RiskAssessment `json:"risk,omitempty"`
	RiskError   string          `json:"riskError,omitempty"` // set when the plan is shown without a risk assessment
	Summary     Summary         `json:"summary"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// Summary holds the human readable metrics of a plan.
type Summary struct {
	Distance string `json:"distance"`
	Duration string `json:"duration"`
	Risk     string `json:"risk,omitempty"`
}

// PlanRecord is a row of the plan history.
type PlanRecord struct {
	ID          uuid.UUID `json:"id"`
	SessionID   uuid.UUID `json:"sessionId"`
	Origin      string    `json:"origin"`
	Destination string    `json:"destination"`
	DistanceKm  float64   `json:"distanceKm"`
	DurationMin float64   `json:"durationMin"`
	RiskLevel   *string   `json:"riskLevel,omitempty"`
	RiskScore   *float64  `json:"riskScore,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Record converts a displayed plan into a history row.
func (p *Plan) Record(sessionID uuid.UUID) PlanRecord {
	rec := PlanRecord{
		ID:          p.ID,
		SessionID:   sessionID,
		Origin:      p.Origin,
		Destination: p.Destination,
		DistanceKm:  p.DistanceKm,
		DurationMin: p.DurationMin,
		CreatedAt:   p.CreatedAt,
	}
	if p.Risk != nil {
		level, score := p.Risk.RiskLevel, p.Risk.Score
		rec.RiskLevel = &level
		rec.RiskScore = &score
	}

	return rec
}
