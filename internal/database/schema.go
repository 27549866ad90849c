package database

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// schemaStatements creates the diary and result tables. Every statement is
// idempotent so Migrate can run on each start.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS foods (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		trigger_tags TEXT[] NOT NULL DEFAULT '{}',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS meals (
		id UUID PRIMARY KEY,
		eaten_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_meals_eaten_at ON meals (eaten_at)`,
	`CREATE TABLE IF NOT EXISTS meal_items (
		meal_id UUID NOT NULL REFERENCES meals(id) ON DELETE CASCADE,
		position INTEGER NOT NULL,
		food_id UUID REFERENCES foods(id) ON DELETE SET NULL,
		portion_size NUMERIC(4,3) NOT NULL CHECK (portion_size >= 0 AND portion_size <= 1),
		PRIMARY KEY (meal_id, position)
	)`,
	`CREATE TABLE IF NOT EXISTS symptoms (
		id UUID PRIMARY KEY,
		occurred_at TIMESTAMPTZ NOT NULL,
		symptom_type TEXT NOT NULL,
		severity DOUBLE PRECISION NOT NULL CHECK (severity >= 0 AND severity <= 10),
		duration_minutes INTEGER
	)`,
	`CREATE INDEX IF NOT EXISTS idx_symptoms_occurred_at ON symptoms (occurred_at)`,
	`CREATE TABLE IF NOT EXISTS correlation_runs (
		id UUID PRIMARY KEY,
		created_at TIMESTAMPTZ NOT NULL,
		result_count INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_correlation_runs_created_at ON correlation_runs (created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS food_symptom_correlations (
		run_id UUID NOT NULL REFERENCES correlation_runs(id) ON DELETE CASCADE,
		food_id UUID NOT NULL,
		symptom_type TEXT NOT NULL,
		correlation_coefficient DOUBLE PRECISION NOT NULL,
		p_value DOUBLE PRECISION NOT NULL,
		sample_size INTEGER NOT NULL,
		ci_lower DOUBLE PRECISION NOT NULL,
		ci_upper DOUBLE PRECISION NOT NULL,
		average_delay_hours DOUBLE PRECISION NOT NULL,
		delay_stddev DOUBLE PRECISION NOT NULL,
		last_calculated TIMESTAMPTZ NOT NULL,
		PRIMARY KEY (run_id, food_id, symptom_type)
	)`,
}

// Migrate applies the schema in order and stops at the first failure.
func Migrate(ctx context.Context, pool DatabasePool) error {
	for i, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d failed: %w", i+1, err)
		}
	}
	logrus.WithField("statements", len(schemaStatements)).Info("Database schema is up to date")
	return nil
}
