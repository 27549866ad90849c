package models

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// DefaultSignificanceThreshold is the p-value below which a result counts as significant.
const DefaultSignificanceThreshold = 0.05

// CorrelationStrength buckets the magnitude of a correlation coefficient.
type CorrelationStrength string

const (
	StrengthWeak     CorrelationStrength = "weak"
	StrengthModerate CorrelationStrength = "moderate"
	StrengthStrong   CorrelationStrength = "strong"
)

// CorrelationDirection is the sign of a correlation coefficient.
type CorrelationDirection string

const (
	DirectionPositive CorrelationDirection = "positive"
	DirectionNegative CorrelationDirection = "negative"
	DirectionNone     CorrelationDirection = "none"
)

// CorrelationResult is the outcome of analysing one (food, symptom type) pair.
//
// CorrelationCoefficient is the difference between the symptom rate after meals
// containing the food and the rate after meals without it. It is a rate
// difference, not a Pearson or phi coefficient.
//
// Results carry no identity of their own: the store decides how runs are
// versioned, so two runs over the same events differ only in LastCalculated.
type CorrelationResult struct {
	FoodID                  uuid.UUID   `json:"food_id" db:"food_id"`
	SymptomType             SymptomType `json:"symptom_type" db:"symptom_type"`
	CorrelationCoefficient  float64     `json:"correlation_coefficient" db:"correlation_coefficient"`
	PValue                  float64     `json:"p_value" db:"p_value"`
	SampleSize              int         `json:"sample_size" db:"sample_size"`
	ConfidenceIntervalLower float64     `json:"confidence_interval_lower" db:"ci_lower"`
	ConfidenceIntervalUpper float64     `json:"confidence_interval_upper" db:"ci_upper"`
	AverageDelayHours       float64     `json:"average_delay_hours" db:"average_delay_hours"`
	DelayStandardDeviation  float64     `json:"delay_standard_deviation" db:"delay_stddev"`
	LastCalculated          time.Time   `json:"last_calculated" db:"last_calculated"`
}

// IsSignificant reports whether the p-value is below the default 0.05 threshold.
func (r CorrelationResult) IsSignificant() bool {
	return r.IsSignificantAt(DefaultSignificanceThreshold)
}

// IsSignificantAt reports whether the p-value is below threshold.
func (r CorrelationResult) IsSignificantAt(threshold float64) bool {
	return r.PValue < threshold
}

// Strength classifies |coefficient|: weak below 0.3, moderate below 0.7, strong otherwise.
func (r CorrelationResult) Strength() CorrelationStrength {
	magnitude := math.Abs(r.CorrelationCoefficient)
	switch {
	case magnitude < 0.3:
		return StrengthWeak
	case magnitude < 0.7:
		return StrengthModerate
	default:
		return StrengthStrong
	}
}

// Direction returns the sign of the coefficient.
func (r CorrelationResult) Direction() CorrelationDirection {
	switch {
	case r.CorrelationCoefficient > 0:
		return DirectionPositive
	case r.CorrelationCoefficient < 0:
		return DirectionNegative
	default:
		return DirectionNone
	}
}

// CorrelationRun is one persisted batch of results.
type CorrelationRun struct {
	ID          uuid.UUID `json:"id" db:"id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	ResultCount int       `json:"result_count" db:"result_count"`
}
