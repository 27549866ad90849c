package correlation

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/irfndi/gutsense-go/internal/models"
)

// PairObservation is what the evaluator saw for one (food, symptom type) pair.
type PairObservation struct {
	FoodID              uuid.UUID
	SymptomType         models.SymptomType
	SampleSize          int
	Occurrences         int
	BaselineSize        int
	BaselineOccurrences int
	OccurrenceRate      float64
	BaselineRate        float64
	// Delays and Severities are recorded only for food-containing meals
	// followed by the symptom, in meal order.
	Delays     []float64
	Severities []float64
}

// mealOutcome says whether, and how soon, a symptom of one type followed a meal.
type mealOutcome struct {
	hadSymptom bool
	delayHours float64
	severity   float64
}

// symptomTimeline holds symptoms of a single type ordered by time.
type symptomTimeline []models.SymptomEvent

func buildTimelines(symptoms []models.SymptomEvent) map[models.SymptomType]symptomTimeline {
	timelines := make(map[models.SymptomType]symptomTimeline)
	for _, s := range symptoms {
		timelines[s.Type] = append(timelines[s.Type], s)
	}
	for _, tl := range timelines {
		sort.SliceStable(tl, func(i, j int) bool {
			if !tl[i].Timestamp.Equal(tl[j].Timestamp) {
				return tl[i].Timestamp.Before(tl[j].Timestamp)
			}
			return bytes.Compare(tl[i].ID[:], tl[j].ID[:]) < 0
		})
	}
	return timelines
}

// firstWithin returns the earliest symptom in (at, at+maxDelay].
func (tl symptomTimeline) firstWithin(at time.Time, maxDelay time.Duration) (models.SymptomEvent, bool) {
	i := sort.Search(len(tl), func(i int) bool {
		return tl[i].Timestamp.After(at)
	})
	if i == len(tl) || tl[i].Timestamp.After(at.Add(maxDelay)) {
		return models.SymptomEvent{}, false
	}
	return tl[i], true
}

func (tl symptomTimeline) outcomes(meals []models.MealEvent, maxDelay time.Duration) []mealOutcome {
	out := make([]mealOutcome, len(meals))
	for i, meal := range meals {
		symptom, ok := tl.firstWithin(meal.Timestamp, maxDelay)
		if !ok {
			continue
		}
		out[i] = mealOutcome{
			hadSymptom: true,
			delayHours: symptom.Timestamp.Sub(meal.Timestamp).Seconds() / 3600,
			severity:   symptom.Severity,
		}
	}
	return out
}

// Evaluator partitions meals by food and matches them against later symptoms.
type Evaluator struct {
	maxDelay      time.Duration
	minSampleSize int
}

// NewEvaluator creates an evaluator. A symptom counts for a meal when it occurs
// after the meal and no more than maxDelayHours later.
func NewEvaluator(maxDelayHours float64, minSampleSize int) *Evaluator {
	return &Evaluator{
		maxDelay:      time.Duration(maxDelayHours * float64(time.Hour)),
		minSampleSize: minSampleSize,
	}
}

// Evaluate observes one pair over the full meal and symptom collections.
// Symptoms of other types are ignored. ok is false when fewer than the
// minimum sample of meals contain the food; the pair must then be skipped.
func (e *Evaluator) Evaluate(foodID uuid.UUID, symptomType models.SymptomType, meals []models.MealEvent, symptoms []models.SymptomEvent) (PairObservation, bool) {
	var matching []models.SymptomEvent
	for _, s := range symptoms {
		if s.Type == symptomType {
			matching = append(matching, s)
		}
	}
	timeline := buildTimelines(matching)[symptomType]
	return e.observe(foodID, symptomType, meals, timeline.outcomes(meals, e.maxDelay))
}

// observe splits precomputed per-meal outcomes into food and baseline groups.
func (e *Evaluator) observe(foodID uuid.UUID, symptomType models.SymptomType, meals []models.MealEvent, outcomes []mealOutcome) (PairObservation, bool) {
	obs := PairObservation{
		FoodID:      foodID,
		SymptomType: symptomType,
	}

	for i, meal := range meals {
		outcome := outcomes[i]
		if !meal.ContainsFood(foodID) {
			obs.BaselineSize++
			if outcome.hadSymptom {
				obs.BaselineOccurrences++
			}
			continue
		}

		obs.SampleSize++
		if outcome.hadSymptom {
			obs.Occurrences++
			obs.Delays = append(obs.Delays, outcome.delayHours)
			obs.Severities = append(obs.Severities, outcome.severity)
		}
	}

	if obs.SampleSize == 0 || obs.SampleSize < e.minSampleSize {
		return obs, false
	}

	obs.OccurrenceRate = float64(obs.Occurrences) / float64(obs.SampleSize)
	if obs.BaselineSize > 0 {
		obs.BaselineRate = float64(obs.BaselineOccurrences) / float64(obs.BaselineSize)
	}
	return obs, true
}
