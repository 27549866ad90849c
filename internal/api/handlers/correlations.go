package handlers

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/irfndi/gutsense-go/internal/correlation"
	"github.com/irfndi/gutsense-go/internal/database"
	"github.com/irfndi/gutsense-go/internal/models"
	"github.com/irfndi/gutsense-go/internal/observability"
	"github.com/irfndi/gutsense-go/internal/presentation"
	"github.com/irfndi/gutsense-go/internal/services"
)

// AnalysisTrigger runs the engine on demand and reports scheduler state.
type AnalysisTrigger interface {
	RunNow(ctx context.Context) (*correlation.RunReport, error)
	Status() services.SchedulerStatus
}

// ResultsReader returns the latest persisted correlation results.
type ResultsReader interface {
	LatestCorrelations(ctx context.Context) ([]models.CorrelationResult, error)
}

// CorrelationHandler handles correlation-related API endpoints
type CorrelationHandler struct {
	trigger   AnalysisTrigger
	reader    ResultsReader
	threshold float64
}

// NewCorrelationHandler creates a new correlation handler. threshold is the
// p-value cutoff used for is_significant and the significant filter.
func NewCorrelationHandler(trigger AnalysisTrigger, reader ResultsReader, threshold float64) *CorrelationHandler {
	if threshold <= 0 || threshold >= 1 {
		threshold = models.DefaultSignificanceThreshold
	}
	return &CorrelationHandler{
		trigger:   trigger,
		reader:    reader,
		threshold: threshold,
	}
}

// CorrelationView is a stored result with its derived classifications.
type CorrelationView struct {
	models.CorrelationResult
	IsSignificant bool                        `json:"is_significant"`
	Strength      models.CorrelationStrength  `json:"strength"`
	Direction     models.CorrelationDirection `json:"direction"`
	Symptom       presentation.SymptomInfo    `json:"symptom"`
}

// CorrelationsResponse is the body of GET /correlations.
type CorrelationsResponse struct {
	Correlations []CorrelationView `json:"correlations"`
	Count        int               `json:"count"`
	Threshold    float64           `json:"significance_threshold"`
}

type correlationFilter struct {
	significant *bool
	symptomType *models.SymptomType
	foodID      *uuid.UUID
}

func (f correlationFilter) matches(view CorrelationView) bool {
	if f.significant != nil && view.IsSignificant != *f.significant {
		return false
	}
	if f.symptomType != nil && view.SymptomType != *f.symptomType {
		return false
	}
	if f.foodID != nil && view.FoodID != *f.foodID {
		return false
	}
	return true
}

func parseCorrelationFilter(c *gin.Context) (correlationFilter, error) {
	var filter correlationFilter

	if raw := c.Query("significant"); raw != "" {
		significant, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, errors.New("invalid significant parameter")
		}
		filter.significant = &significant
	}

	if raw := c.Query("symptom_type"); raw != "" {
		symptomType, err := models.ParseSymptomType(raw)
		if err != nil {
			return filter, err
		}
		filter.symptomType = &symptomType
	}

	if raw := c.Query("food_id"); raw != "" {
		foodID, err := uuid.Parse(raw)
		if err != nil {
			return filter, errors.New("invalid food_id parameter")
		}
		filter.foodID = &foodID
	}

	return filter, nil
}

// ListCorrelations returns the latest run's results, most significant first.
func (h *CorrelationHandler) ListCorrelations(c *gin.Context) {
	filter, err := parseCorrelationFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := h.reader.LatestCorrelations(c.Request.Context())
	if errors.Is(err, database.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "No correlation run has completed yet"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load correlations"})
		return
	}

	views := make([]CorrelationView, 0, len(results))
	for _, result := range results {
		view := CorrelationView{
			CorrelationResult: result,
			IsSignificant:     result.IsSignificantAt(h.threshold),
			Strength:          result.Strength(),
			Direction:         result.Direction(),
			Symptom:           presentation.Describe(result.SymptomType),
		}
		if filter.matches(view) {
			views = append(views, view)
		}
	}

	sort.SliceStable(views, func(i, j int) bool {
		if views[i].PValue != views[j].PValue {
			return views[i].PValue < views[j].PValue
		}
		if cmp := bytes.Compare(views[i].FoodID[:], views[j].FoodID[:]); cmp != 0 {
			return cmp < 0
		}
		return views[i].SymptomType < views[j].SymptomType
	})

	c.JSON(http.StatusOK, CorrelationsResponse{
		Correlations: views,
		Count:        len(views),
		Threshold:    h.threshold,
	})
}

// TriggerRun runs the analysis synchronously and returns the run summary.
func (h *CorrelationHandler) TriggerRun(c *gin.Context) {
	started := time.Now()
	report, err := h.trigger.RunNow(c.Request.Context())
	switch {
	case errors.Is(err, services.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{"error": "A correlation run is already in progress"})
		return
	case errors.Is(err, correlation.ErrDataAccess):
		observability.CaptureRunFailure(c.Request.Context(), "manual", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Diary data is unavailable", "details": err.Error()})
		return
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "Correlation run timed out"})
		return
	case err != nil:
		observability.CaptureRunFailure(c.Request.Context(), "manual", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Correlation run failed", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Correlation run completed",
		"report":      report,
		"duration_ms": time.Since(started).Milliseconds(),
	})
}

// GetStatus returns the scheduler state and last run summary.
func (h *CorrelationHandler) GetStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.trigger.Status())
}
