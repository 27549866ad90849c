package database

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/irfndi/gutsense-go/internal/logging"
	"github.com/irfndi/gutsense-go/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

const (
	selectMealsSQL = `
		SELECT m.id, m.eaten_at, mi.food_id, mi.portion_size
		FROM meals m
		LEFT JOIN meal_items mi ON mi.meal_id = m.id
		WHERE m.eaten_at >= $1 AND m.eaten_at <= $2
		ORDER BY m.eaten_at, m.id, mi.position`

	selectSymptomsSQL = `
		SELECT id, occurred_at, symptom_type, severity, duration_minutes
		FROM symptoms
		WHERE occurred_at >= $1 AND occurred_at <= $2
		ORDER BY occurred_at, id`

	selectFoodsSQL = `
		SELECT id, name, category, trigger_tags
		FROM foods
		ORDER BY id`

	insertRunSQL = `
		INSERT INTO correlation_runs (id, created_at, result_count)
		VALUES ($1, $2, $3)`

	selectLatestRunSQL = `
		SELECT id, created_at, result_count
		FROM correlation_runs
		ORDER BY created_at DESC
		LIMIT 1`

	selectRunResultsSQL = `
		SELECT food_id, symptom_type, correlation_coefficient, p_value, sample_size,
		       ci_lower, ci_upper, average_delay_hours, delay_stddev, last_calculated
		FROM food_symptom_correlations
		WHERE run_id = $1
		ORDER BY food_id, symptom_type`

	pruneRunsSQL = `
		DELETE FROM correlation_runs
		WHERE id NOT IN (
			SELECT id FROM correlation_runs ORDER BY created_at DESC LIMIT $1
		)`
)

var correlationColumns = []string{
	"run_id", "food_id", "symptom_type", "correlation_coefficient", "p_value",
	"sample_size", "ci_lower", "ci_upper", "average_delay_hours", "delay_stddev",
	"last_calculated",
}

// DiaryRepository reads diary events from PostgreSQL and stores correlation
// runs. Each SaveCorrelations call creates a new run; readers see the latest.
type DiaryRepository struct {
	pool   DatabasePool
	logger *logging.StandardLogger
	now    func() time.Time
}

// NewDiaryRepository creates a new diary repository. A nil logger discards
// operation logs.
func NewDiaryRepository(pool DatabasePool, logger *logging.StandardLogger) *DiaryRepository {
	if logger == nil {
		logger = logging.NewStandardLoggerWithWriter(io.Discard, "error", "")
	}
	return &DiaryRepository{
		pool:   pool,
		logger: logger,
		now:    time.Now,
	}
}

func (r *DiaryRepository) logOperation(operation, table string, started time.Time, rows int64) {
	r.logger.LogDatabaseOperation(operation, table, time.Since(started).Milliseconds(), rows)
}

// LoadMeals returns the meals eaten in [from, to] with their items in entry order.
func (r *DiaryRepository) LoadMeals(ctx context.Context, from, to time.Time) ([]models.MealEvent, error) {
	started := time.Now()
	rows, err := r.pool.Query(ctx, selectMealsSQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query meals: %w", err)
	}
	defer rows.Close()

	var meals []models.MealEvent
	for rows.Next() {
		var (
			mealID  uuid.UUID
			eatenAt time.Time
			foodID  *uuid.UUID
			portion decimal.NullDecimal
		)
		if err := rows.Scan(&mealID, &eatenAt, &foodID, &portion); err != nil {
			return nil, fmt.Errorf("failed to scan meal: %w", err)
		}

		if len(meals) == 0 || meals[len(meals)-1].ID != mealID {
			meals = append(meals, models.MealEvent{ID: mealID, Timestamp: eatenAt})
		}
		// A meal without items yields one row with NULL item columns.
		if !portion.Valid {
			continue
		}
		current := &meals[len(meals)-1]
		current.Items = append(current.Items, models.NewMealItem(foodID, portion.Decimal))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate meals: %w", err)
	}

	r.logOperation("load_meals", "meals", started, int64(len(meals)))
	return meals, nil
}

// LoadSymptoms returns the symptoms logged in [from, to]. Rows with a symptom
// type outside the known enumeration are skipped.
func (r *DiaryRepository) LoadSymptoms(ctx context.Context, from, to time.Time) ([]models.SymptomEvent, error) {
	started := time.Now()
	rows, err := r.pool.Query(ctx, selectSymptomsSQL, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query symptoms: %w", err)
	}
	defer rows.Close()

	var symptoms []models.SymptomEvent
	for rows.Next() {
		var (
			id              uuid.UUID
			occurredAt      time.Time
			rawType         string
			severity        float64
			durationMinutes *int
		)
		if err := rows.Scan(&id, &occurredAt, &rawType, &severity, &durationMinutes); err != nil {
			return nil, fmt.Errorf("failed to scan symptom: %w", err)
		}

		symptomType, err := models.ParseSymptomType(rawType)
		if err != nil {
			r.logger.WithSymptomType(rawType).Warn("Skipping symptom with unknown type", "symptom_id", id.String())
			continue
		}
		symptoms = append(symptoms, models.NewSymptomEvent(id, occurredAt, symptomType, severity, durationMinutes))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate symptoms: %w", err)
	}

	r.logOperation("load_symptoms", "symptoms", started, int64(len(symptoms)))
	return symptoms, nil
}

// LoadFoods returns every known food.
func (r *DiaryRepository) LoadFoods(ctx context.Context) ([]models.FoodRef, error) {
	started := time.Now()
	rows, err := r.pool.Query(ctx, selectFoodsSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query foods: %w", err)
	}
	defer rows.Close()

	var foods []models.FoodRef
	for rows.Next() {
		var food models.FoodRef
		if err := rows.Scan(&food.ID, &food.Name, &food.Category, &food.TriggerTags); err != nil {
			return nil, fmt.Errorf("failed to scan food: %w", err)
		}
		foods = append(foods, food)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate foods: %w", err)
	}

	r.logOperation("load_foods", "foods", started, int64(len(foods)))
	return foods, nil
}

// SaveCorrelations stores results as a new run in one transaction. An empty
// result set still records a run so it supersedes the previous one.
func (r *DiaryRepository) SaveCorrelations(ctx context.Context, results []models.CorrelationResult) error {
	started := time.Now()
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	runID := uuid.New()
	if err := r.writeRun(ctx, tx, runID, results); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return errors.Join(err, fmt.Errorf("failed to rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit correlation run: %w", err)
	}
	r.logOperation("save_correlations", "food_symptom_correlations", started, int64(len(results)))
	return nil
}

func (r *DiaryRepository) writeRun(ctx context.Context, tx pgx.Tx, runID uuid.UUID, results []models.CorrelationResult) error {
	if _, err := tx.Exec(ctx, insertRunSQL, runID, r.now().UTC(), len(results)); err != nil {
		return fmt.Errorf("failed to insert correlation run: %w", err)
	}
	if len(results) == 0 {
		return nil
	}

	copied, err := tx.CopyFrom(ctx,
		pgx.Identifier{"food_symptom_correlations"},
		correlationColumns,
		pgx.CopyFromSlice(len(results), func(i int) ([]any, error) {
			res := results[i]
			return []any{
				runID,
				res.FoodID,
				string(res.SymptomType),
				res.CorrelationCoefficient,
				res.PValue,
				res.SampleSize,
				res.ConfidenceIntervalLower,
				res.ConfidenceIntervalUpper,
				res.AverageDelayHours,
				res.DelayStandardDeviation,
				res.LastCalculated,
			}, nil
		}),
	)
	if err != nil {
		return fmt.Errorf("failed to copy correlation results: %w", err)
	}
	if copied != int64(len(results)) {
		return fmt.Errorf("copied %d of %d correlation results", copied, len(results))
	}
	return nil
}

// LatestRun returns the most recent run or ErrNotFound.
func (r *DiaryRepository) LatestRun(ctx context.Context) (*models.CorrelationRun, error) {
	var run models.CorrelationRun
	err := r.pool.QueryRow(ctx, selectLatestRunSQL).Scan(&run.ID, &run.CreatedAt, &run.ResultCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest correlation run: %w", err)
	}
	return &run, nil
}

// LatestCorrelations returns the results of the most recent run.
func (r *DiaryRepository) LatestCorrelations(ctx context.Context) ([]models.CorrelationResult, error) {
	started := time.Now()
	run, err := r.LatestRun(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, selectRunResultsSQL, run.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query correlation results: %w", err)
	}
	defer rows.Close()

	results := make([]models.CorrelationResult, 0, run.ResultCount)
	for rows.Next() {
		var (
			res     models.CorrelationResult
			rawType string
		)
		if err := rows.Scan(
			&res.FoodID,
			&rawType,
			&res.CorrelationCoefficient,
			&res.PValue,
			&res.SampleSize,
			&res.ConfidenceIntervalLower,
			&res.ConfidenceIntervalUpper,
			&res.AverageDelayHours,
			&res.DelayStandardDeviation,
			&res.LastCalculated,
		); err != nil {
			return nil, fmt.Errorf("failed to scan correlation result: %w", err)
		}
		res.SymptomType = models.SymptomType(rawType)
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate correlation results: %w", err)
	}

	r.logOperation("latest_correlations", "food_symptom_correlations", started, int64(len(results)))
	return results, nil
}

// PruneRuns deletes all but the newest keep runs. Their results go with them.
func (r *DiaryRepository) PruneRuns(ctx context.Context, keep int) (int64, error) {
	if keep < 1 {
		return 0, fmt.Errorf("keep must be at least 1, got %d", keep)
	}
	started := time.Now()
	tag, err := r.pool.Exec(ctx, pruneRunsSQL, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune correlation runs: %w", err)
	}
	r.logOperation("prune_runs", "correlation_runs", started, tag.RowsAffected())
	return tag.RowsAffected(), nil
}
