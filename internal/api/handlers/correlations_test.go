package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/irfndi/gutsense-go/internal/correlation"
	"github.com/irfndi/gutsense-go/internal/database"
	"github.com/irfndi/gutsense-go/internal/models"
	"github.com/irfndi/gutsense-go/internal/services"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockAnalysisTrigger mocks the analysis scheduler
type MockAnalysisTrigger struct {
	mock.Mock
}

func (m *MockAnalysisTrigger) RunNow(ctx context.Context) (*correlation.RunReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*correlation.RunReport), args.Error(1)
}

func (m *MockAnalysisTrigger) Status() services.SchedulerStatus {
	args := m.Called()
	return args.Get(0).(services.SchedulerStatus)
}

// MockResultsReader mocks the cached correlation reader
type MockResultsReader struct {
	mock.Mock
}

func (m *MockResultsReader) LatestCorrelations(ctx context.Context) ([]models.CorrelationResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.CorrelationResult), args.Error(1)
}

var (
	testFoodA = uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	testFoodB = uuid.MustParse("00000000-0000-0000-0000-00000000000b")
)

func sampleResults() []models.CorrelationResult {
	calculated := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return []models.CorrelationResult{
		{FoodID: testFoodB, SymptomType: models.SymptomBloating, CorrelationCoefficient: 0.1, PValue: 0.40, SampleSize: 12, LastCalculated: calculated},
		{FoodID: testFoodA, SymptomType: models.SymptomBloating, CorrelationCoefficient: 0.8, PValue: 0.001, SampleSize: 20, LastCalculated: calculated},
		{FoodID: testFoodA, SymptomType: models.SymptomHeadache, CorrelationCoefficient: -0.5, PValue: 0.03, SampleSize: 20, LastCalculated: calculated},
	}
}

func setupCorrelationRouter(trigger AnalysisTrigger, reader ResultsReader) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := NewCorrelationHandler(trigger, reader, 0.05)

	router := gin.New()
	router.GET("/correlations", handler.ListCorrelations)
	router.POST("/correlations/run", handler.TriggerRun)
	router.GET("/correlations/status", handler.GetStatus)
	return router
}

func TestNewCorrelationHandler_ThresholdFallback(t *testing.T) {
	for _, threshold := range []float64{0, -1, 1, 2} {
		handler := NewCorrelationHandler(nil, nil, threshold)
		assert.Equal(t, models.DefaultSignificanceThreshold, handler.threshold, "threshold %v", threshold)
	}
	assert.Equal(t, 0.01, NewCorrelationHandler(nil, nil, 0.01).threshold)
}

func TestCorrelationHandler_ListCorrelations(t *testing.T) {
	reader := &MockResultsReader{}
	reader.On("LatestCorrelations", mock.Anything).Return(sampleResults(), nil)
	router := setupCorrelationRouter(&MockAnalysisTrigger{}, reader)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/correlations", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var response CorrelationsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

	require.Equal(t, 3, response.Count)
	assert.Equal(t, 0.05, response.Threshold)

	first := response.Correlations[0]
	assert.Equal(t, testFoodA, first.FoodID)
	assert.Equal(t, models.SymptomBloating, first.SymptomType)
	assert.True(t, first.IsSignificant)
	assert.Equal(t, models.StrengthStrong, first.Strength)
	assert.Equal(t, models.DirectionPositive, first.Direction)
	assert.Equal(t, "Bloating", first.Symptom.Label)

	assert.Equal(t, models.SymptomHeadache, response.Correlations[1].SymptomType)
	assert.Equal(t, models.DirectionNegative, response.Correlations[1].Direction)
	assert.False(t, response.Correlations[2].IsSignificant)

	reader.AssertExpectations(t)
}

func TestCorrelationHandler_ListCorrelations_Filters(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected int
	}{
		{name: "significant only", query: "significant=true", expected: 2},
		{name: "not significant", query: "significant=false", expected: 1},
		{name: "by symptom type", query: "symptom_type=headache", expected: 1},
		{name: "by food", query: "food_id=" + testFoodB.String(), expected: 1},
		{name: "combined", query: fmt.Sprintf("food_id=%s&significant=true&symptom_type=bloating", testFoodA), expected: 1},
		{name: "no match", query: "symptom_type=hives", expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &MockResultsReader{}
			reader.On("LatestCorrelations", mock.Anything).Return(sampleResults(), nil)
			router := setupCorrelationRouter(&MockAnalysisTrigger{}, reader)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/correlations?"+tt.query, nil))
			require.Equal(t, http.StatusOK, w.Code)

			var response CorrelationsResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
			assert.Equal(t, tt.expected, response.Count)
			assert.Len(t, response.Correlations, tt.expected)
		})
	}
}

func TestCorrelationHandler_ListCorrelations_InvalidFilters(t *testing.T) {
	for _, query := range []string{"significant=maybe", "symptom_type=sneezing", "food_id=not-a-uuid"} {
		t.Run(query, func(t *testing.T) {
			reader := &MockResultsReader{}
			router := setupCorrelationRouter(&MockAnalysisTrigger{}, reader)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/correlations?"+query, nil))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "error")
			reader.AssertNotCalled(t, "LatestCorrelations", mock.Anything)
		})
	}
}

func TestCorrelationHandler_ListCorrelations_Errors(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedStatus int
	}{
		{name: "no run yet", err: database.ErrNotFound, expectedStatus: http.StatusNotFound},
		{name: "store failure", err: errors.New("connection reset"), expectedStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &MockResultsReader{}
			reader.On("LatestCorrelations", mock.Anything).Return(nil, tt.err)
			router := setupCorrelationRouter(&MockAnalysisTrigger{}, reader)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/correlations", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestCorrelationHandler_ListCorrelations_EmptyRun(t *testing.T) {
	reader := &MockResultsReader{}
	reader.On("LatestCorrelations", mock.Anything).Return([]models.CorrelationResult{}, nil)
	router := setupCorrelationRouter(&MockAnalysisTrigger{}, reader)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/correlations", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"correlations":[]`)
}

func TestCorrelationHandler_TriggerRun(t *testing.T) {
	report := &correlation.RunReport{
		RunID:          uuid.New(),
		Meals:          40,
		Symptoms:       12,
		Foods:          8,
		EvaluatedPairs: 10,
		Significant:    2,
	}

	tests := []struct {
		name           string
		report         *correlation.RunReport
		err            error
		expectedStatus int
		expectedBody   string
	}{
		{name: "success", report: report, expectedStatus: http.StatusOK, expectedBody: report.RunID.String()},
		{name: "already running", err: services.ErrRunInProgress, expectedStatus: http.StatusConflict, expectedBody: "already in progress"},
		{name: "data unavailable", err: fmt.Errorf("correlation run failed: %w", correlation.ErrDataAccess), expectedStatus: http.StatusServiceUnavailable, expectedBody: "unavailable"},
		{name: "timeout", err: fmt.Errorf("correlation run failed: %w", context.DeadlineExceeded), expectedStatus: http.StatusGatewayTimeout, expectedBody: "timed out"},
		{name: "other failure", err: errors.New("boom"), expectedStatus: http.StatusInternalServerError, expectedBody: "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trigger := &MockAnalysisTrigger{}
			if tt.report != nil {
				trigger.On("RunNow", mock.Anything).Return(tt.report, nil)
			} else {
				trigger.On("RunNow", mock.Anything).Return(nil, tt.err)
			}
			router := setupCorrelationRouter(trigger, &MockResultsReader{})

			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/correlations/run", nil))

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			trigger.AssertExpectations(t)
		})
	}
}

func TestCorrelationHandler_GetStatus(t *testing.T) {
	lastRun := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	trigger := &MockAnalysisTrigger{}
	trigger.On("Status").Return(services.SchedulerStatus{
		Interval:  "1h0m0s",
		LastRunAt: &lastRun,
		Runs:      3,
		Failures:  1,
		LastError: "correlation run failed: boom",
	})
	router := setupCorrelationRouter(trigger, &MockResultsReader{})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/correlations/status", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var status services.SchedulerStatus
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &status))
	assert.Equal(t, "1h0m0s", status.Interval)
	assert.Equal(t, int64(3), status.Runs)
	assert.Equal(t, int64(1), status.Failures)
	require.NotNil(t, status.LastRunAt)
	assert.True(t, lastRun.Equal(*status.LastRunAt))
	assert.Equal(t, "correlation run failed: boom", status.LastError)
}
