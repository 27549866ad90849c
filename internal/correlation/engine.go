package correlation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/irfndi/gutsense-go/internal/config"
	"github.com/irfndi/gutsense-go/internal/logging"
	"github.com/irfndi/gutsense-go/internal/models"
	"github.com/irfndi/gutsense-go/internal/telemetry"
	"github.com/shirou/gopsutil/v3/cpu"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

// RunReport summarises one analysis run.
type RunReport struct {
	RunID          uuid.UUID                  `json:"run_id"`
	StartedAt      time.Time                  `json:"started_at"`
	FinishedAt     time.Time                  `json:"finished_at"`
	WindowFrom     time.Time                  `json:"window_from"`
	WindowTo       time.Time                  `json:"window_to"`
	Meals          int                        `json:"meals"`
	Symptoms       int                        `json:"symptoms"`
	Foods          int                        `json:"foods"`
	EvaluatedPairs int                        `json:"evaluated_pairs"`
	SkippedPairs   int                        `json:"skipped_pairs"`
	Significant    int                        `json:"significant"`
	Results        []models.CorrelationResult `json:"-"`
}

// Analysis is the in-memory outcome of analysing a snapshot.
type Analysis struct {
	Results        []models.CorrelationResult
	EvaluatedPairs int
	SkippedPairs   int
}

// Engine runs the food x symptom-type analysis against a Store.
type Engine struct {
	store     Store
	loader    *Loader
	evaluator *Evaluator
	cfg       config.CorrelationConfig
	workers   int
	logger    *logging.StandardLogger
	now       func() time.Time
}

// NewEngine creates an engine. cfg is expected to have passed Validate. A nil
// logger discards engine logs.
func NewEngine(store Store, cfg config.CorrelationConfig, logger *logging.StandardLogger) *Engine {
	if logger == nil {
		logger = logging.NewStandardLoggerWithWriter(io.Discard, "error", "")
	}
	return &Engine{
		store:     store,
		loader:    NewLoader(store, cfg.AnalysisWindowMonths),
		evaluator: NewEvaluator(cfg.MaxDelayHours, cfg.MinSampleSize),
		cfg:       cfg,
		workers:   resolveParallelism(cfg.Parallelism),
		logger:    logger,
		now:       time.Now,
	}
}

// resolveParallelism maps 0 to the number of logical CPUs.
func resolveParallelism(configured int) int {
	if configured > 0 {
		return configured
	}
	count, err := cpu.Counts(true)
	if err != nil || count < 1 {
		return 1
	}
	return count
}

// Run loads the trailing window, analyses every pair and saves all results in
// a single write. Nothing is saved if loading fails or ctx is done before the
// write.
func (e *Engine) Run(ctx context.Context) (report *RunReport, err error) {
	runID := uuid.New()
	ctx, span := telemetry.StartSpan(ctx, "correlation.Run", attribute.String("run_id", runID.String()))
	defer func() { telemetry.FinishSpan(span, err) }()

	logger := e.logger.WithRunID(runID)
	startedAt := e.now()

	snap, err := e.load(ctx, startedAt)
	if err != nil {
		logger.Error("Correlation run failed to load events", "error", err)
		return nil, err
	}

	analysis, err := e.Analyze(ctx, snap, e.now())
	if err != nil {
		logger.Warn("Correlation run aborted", "error", err)
		return nil, fmt.Errorf("analysis aborted: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis aborted before save: %w", err)
	}

	if err := e.save(ctx, analysis.Results); err != nil {
		logger.Error("Correlation run failed to save results", "error", err)
		return nil, err
	}

	report = &RunReport{
		RunID:          runID,
		StartedAt:      startedAt,
		FinishedAt:     e.now(),
		WindowFrom:     snap.From,
		WindowTo:       snap.To,
		Meals:          len(snap.Meals),
		Symptoms:       len(snap.Symptoms),
		Foods:          len(snap.Foods),
		EvaluatedPairs: analysis.EvaluatedPairs,
		SkippedPairs:   analysis.SkippedPairs,
		Results:        analysis.Results,
	}
	for _, r := range analysis.Results {
		if r.IsSignificantAt(e.cfg.SignificanceThreshold) {
			report.Significant++
		}
	}

	logger.Info("Correlation run completed",
		"meals", report.Meals,
		"symptoms", report.Symptoms,
		"foods", report.Foods,
		"evaluated_pairs", report.EvaluatedPairs,
		"skipped_pairs", report.SkippedPairs,
		"results", len(report.Results),
		"significant", report.Significant,
		"duration_ms", report.FinishedAt.Sub(report.StartedAt).Milliseconds(),
	)
	return report, nil
}

func (e *Engine) load(ctx context.Context, now time.Time) (snap *Snapshot, err error) {
	ctx, span := telemetry.StartSpan(ctx, "correlation.Load")
	defer func() { telemetry.FinishSpan(span, err) }()
	return e.loader.Load(ctx, now)
}

func (e *Engine) save(ctx context.Context, results []models.CorrelationResult) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "correlation.Save", attribute.Int("results", len(results)))
	defer func() { telemetry.FinishSpan(span, err) }()
	if err := e.store.SaveCorrelations(ctx, results); err != nil {
		return dataAccessError("save correlations", err)
	}
	return nil
}

// Analyze evaluates every food against every symptom type without any I/O.
// Results are ordered by food ID, then by symptom type declaration order.
func (e *Engine) Analyze(ctx context.Context, snap *Snapshot, calculatedAt time.Time) (*Analysis, error) {
	ctx, span := telemetry.StartSpan(ctx, "correlation.Analyze",
		attribute.Int("foods", len(snap.Foods)),
		attribute.Int("meals", len(snap.Meals)),
	)
	var err error
	defer func() { telemetry.FinishSpan(span, err) }()

	foods := make([]models.FoodRef, len(snap.Foods))
	copy(foods, snap.Foods)
	sort.SliceStable(foods, func(i, j int) bool {
		return bytes.Compare(foods[i].ID[:], foods[j].ID[:]) < 0
	})

	symptomTypes := models.AllSymptomTypes()
	timelines := buildTimelines(snap.Symptoms)
	outcomes := make(map[models.SymptomType][]mealOutcome, len(symptomTypes))
	for _, st := range symptomTypes {
		outcomes[st] = timelines[st].outcomes(snap.Meals, e.evaluator.maxDelay)
	}

	// Each shard writes only its own slot.
	slots := make([]Analysis, len(foods))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)
	for i, food := range foods {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			slots[i] = e.analyzeFood(food, symptomTypes, snap.Meals, outcomes, calculatedAt)
			return nil
		})
	}
	if err = g.Wait(); err != nil {
		return nil, err
	}

	analysis := &Analysis{}
	for _, slot := range slots {
		analysis.Results = append(analysis.Results, slot.Results...)
		analysis.EvaluatedPairs += slot.EvaluatedPairs
		analysis.SkippedPairs += slot.SkippedPairs
	}
	return analysis, nil
}

func (e *Engine) analyzeFood(food models.FoodRef, symptomTypes []models.SymptomType, meals []models.MealEvent, outcomes map[models.SymptomType][]mealOutcome, calculatedAt time.Time) Analysis {
	var out Analysis
	for _, st := range symptomTypes {
		obs, ok := e.evaluator.observe(food.ID, st, meals, outcomes[st])
		if !ok {
			out.SkippedPairs++
			continue
		}
		out.EvaluatedPairs++

		stats := Calculate(obs, e.cfg.ConfidenceZ)
		out.Results = append(out.Results, models.CorrelationResult{
			FoodID:                  food.ID,
			SymptomType:             st,
			CorrelationCoefficient:  stats.Coefficient,
			PValue:                  stats.PValue,
			SampleSize:              obs.SampleSize,
			ConfidenceIntervalLower: stats.ConfidenceLower,
			ConfidenceIntervalUpper: stats.ConfidenceUpper,
			AverageDelayHours:       stats.AverageDelayHours,
			DelayStandardDeviation:  stats.DelayStandardDeviation,
			LastCalculated:          calculatedAt,
		})

		if stats.PValue < e.cfg.SignificanceThreshold {
			e.logger.WithSymptomType(string(st)).Debug("Significant food-symptom association",
				"food_id", food.ID.String(),
				"food", food.Name,
				"coefficient", stats.Coefficient,
				"p_value", stats.PValue,
				"average_severity", stats.AverageSeverity,
			)
		}
	}
	if out.EvaluatedPairs == 0 {
		e.logger.WithFood(food.ID).Debug("Too few meals to analyse food",
			"food", food.Name,
			"min_sample_size", e.cfg.MinSampleSize,
		)
	}
	return out
}
