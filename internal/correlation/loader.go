package correlation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/irfndi/gutsense-go/internal/models"
)

// Snapshot is the immutable input of one analysis run.
type Snapshot struct {
	From     time.Time
	To       time.Time
	Meals    []models.MealEvent
	Symptoms []models.SymptomEvent
	Foods    []models.FoodRef
}

// Loader reads the trailing analysis window from a Store.
type Loader struct {
	store        Store
	windowMonths int
}

// NewLoader creates a loader for a window of windowMonths calendar months.
func NewLoader(store Store, windowMonths int) *Loader {
	return &Loader{store: store, windowMonths: windowMonths}
}

// Load fetches meals and symptoms in [now-window, now] and all known foods.
// Any store failure aborts the load; no partial snapshot is returned.
func (l *Loader) Load(ctx context.Context, now time.Time) (*Snapshot, error) {
	from := now.AddDate(0, -l.windowMonths, 0)

	meals, err := l.store.LoadMeals(ctx, from, now)
	if err != nil {
		return nil, dataAccessError("load meals", err)
	}

	symptoms, err := l.store.LoadSymptoms(ctx, from, now)
	if err != nil {
		return nil, dataAccessError("load symptoms", err)
	}

	foods, err := l.store.LoadFoods(ctx)
	if err != nil {
		return nil, dataAccessError("load foods", err)
	}

	return &Snapshot{
		From:     from,
		To:       now,
		Meals:    meals,
		Symptoms: symptoms,
		Foods:    foods,
	}, nil
}

func dataAccessError(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrDataAccess, err))
}
