// Package correlation estimates, for every (food, symptom type) pair, whether
// eating the food is followed by the symptom more often than meals without it.
package correlation

import (
	"context"
	"errors"
	"time"

	"github.com/irfndi/gutsense-go/internal/models"
)

// ErrDataAccess marks failures of the backing store. A run that hits it
// produces no results and persists nothing.
var ErrDataAccess = errors.New("correlation data access failed")

// Store is the diary data the engine reads from and writes results to.
type Store interface {
	LoadMeals(ctx context.Context, from, to time.Time) ([]models.MealEvent, error)
	LoadSymptoms(ctx context.Context, from, to time.Time) ([]models.SymptomEvent, error)
	LoadFoods(ctx context.Context) ([]models.FoodRef, error)
	SaveCorrelations(ctx context.Context, results []models.CorrelationResult) error
}
