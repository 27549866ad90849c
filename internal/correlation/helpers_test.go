package correlation

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/irfndi/gutsense-go/internal/models"
	"github.com/shopspring/decimal"
)

var baseTime = time.Date(2026, time.March, 1, 8, 0, 0, 0, time.UTC)

func mealWith(at time.Time, foods ...uuid.UUID) models.MealEvent {
	items := make([]models.MealItem, 0, len(foods))
	for _, f := range foods {
		id := f
		items = append(items, models.NewMealItem(&id, decimal.NewFromFloat(0.5)))
	}
	return models.MealEvent{ID: uuid.New(), Timestamp: at, Items: items}
}

func symptomAt(at time.Time, st models.SymptomType, severity float64) models.SymptomEvent {
	return models.NewSymptomEvent(uuid.New(), at, st, severity, nil)
}

// scenario builds spaced-out meals so that look-ahead windows never overlap.
type scenario struct {
	meals    []models.MealEvent
	symptoms []models.SymptomEvent
	next     time.Time
}

func newScenario() *scenario {
	return &scenario{next: baseTime}
}

// add appends count meals containing foods; the first withSymptom of them are
// followed by symptomType after delay.
func (s *scenario) add(count, withSymptom int, symptomType models.SymptomType, delay time.Duration, foods ...uuid.UUID) {
	for i := 0; i < count; i++ {
		meal := mealWith(s.next, foods...)
		s.meals = append(s.meals, meal)
		if i < withSymptom {
			s.symptoms = append(s.symptoms, symptomAt(meal.Timestamp.Add(delay), symptomType, 6))
		}
		s.next = s.next.Add(60 * time.Hour)
	}
}

type fakeStore struct {
	mu sync.Mutex

	meals    []models.MealEvent
	symptoms []models.SymptomEvent
	foods    []models.FoodRef

	mealsErr    error
	symptomsErr error
	foodsErr    error
	saveErr     error

	loadedFrom time.Time
	loadedTo   time.Time
	saveCalls  int
	saved      []models.CorrelationResult
}

func (f *fakeStore) LoadMeals(_ context.Context, from, to time.Time) ([]models.MealEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadedFrom, f.loadedTo = from, to
	if f.mealsErr != nil {
		return nil, f.mealsErr
	}
	var out []models.MealEvent
	for _, m := range f.meals {
		if !m.Timestamp.Before(from) && !m.Timestamp.After(to) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeStore) LoadSymptoms(_ context.Context, from, to time.Time) ([]models.SymptomEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.symptomsErr != nil {
		return nil, f.symptomsErr
	}
	var out []models.SymptomEvent
	for _, s := range f.symptoms {
		if !s.Timestamp.Before(from) && !s.Timestamp.After(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) LoadFoods(context.Context) ([]models.FoodRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.foodsErr != nil {
		return nil, f.foodsErr
	}
	return f.foods, nil
}

func (f *fakeStore) SaveCorrelations(_ context.Context, results []models.CorrelationResult) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveCalls++
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append([]models.CorrelationResult(nil), results...)
	return nil
}

func findResult(results []models.CorrelationResult, food uuid.UUID, st models.SymptomType) (models.CorrelationResult, bool) {
	for _, r := range results {
		if r.FoodID == food && r.SymptomType == st {
			return r, true
		}
	}
	return models.CorrelationResult{}, false
}
