package repository

import (
	"context"
	"fmt"

	"github.com/UnknownOlympus/trafficmodeler/internal/models"
	"github.com/jackc/pgx/v5/pgtype"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS route_plans (
		id UUID PRIMARY KEY,
		session_id UUID NOT NULL,
		origin TEXT NOT NULL,
		destination TEXT NOT NULL,
		distance_km DOUBLE PRECISION NOT NULL,
		duration_min DOUBLE PRECISION NOT NULL,
		risk_level TEXT,
		risk_score DOUBLE PRECISION,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS route_plans_created_at_idx ON route_plans (created_at DESC);`,
}

// EnsureSchema creates the route_plans table and its index when missing.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	r.log.DebugContext(ctx, "Plan history schema is up to date")
	return nil
}

// SavePlan inserts a displayed plan. Saving the same plan twice is a no-op.
func (r *Repository) SavePlan(ctx context.Context, record models.PlanRecord) error {
	query := `
		INSERT INTO route_plans (
			id, session_id, origin, destination, distance_km, duration_min, risk_level, risk_score, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING;
	`

	_, err := r.db.Exec(ctx, query,
		record.ID,
		record.SessionID,
		record.Origin,
		record.Destination,
		record.DistanceKm,
		record.DurationMin,
		record.RiskLevel,
		record.RiskScore,
		record.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert plan: %w", err)
	}

	r.log.DebugContext(ctx, "Plan recorded", "plan", record.ID, "session", record.SessionID)
	return nil
}

// RecentPlans returns up to limit plans, newest first.
func (r *Repository) RecentPlans(ctx context.Context, limit int) ([]models.PlanRecord, error) {
	query := `
		SELECT id, session_id, origin, destination, distance_km, duration_min, risk_level, risk_score, created_at
		FROM route_plans
		ORDER BY created_at DESC
		LIMIT $1;
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent plans: %w", err)
	}
	defer rows.Close()

	plans := make([]models.PlanRecord, 0, limit)
	for rows.Next() {
		var (
			rec   models.PlanRecord
			level pgtype.Text
			score pgtype.Float8
		)
		if errScan := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.Origin,
			&rec.Destination,
			&rec.DistanceKm,
			&rec.DurationMin,
			&level,
			&score,
			&rec.CreatedAt,
		); errScan != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", errScan)
		}
		if level.Valid {
			rec.RiskLevel = &level.String
		}
		if score.Valid {
			rec.RiskScore = &score.Float64
		}
		plans = append(plans, rec)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read row: %w", err)
	}

	return plans, nil
}
