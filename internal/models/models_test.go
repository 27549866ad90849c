package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSymptomType_IsValid(t *testing.T) {
	for _, st := range AllSymptomTypes() {
		assert.True(t, st.IsValid(), "expected %s to be valid", st)
	}
	assert.False(t, SymptomType("sneezing").IsValid())
	assert.False(t, SymptomType("").IsValid())
}

func TestAllSymptomTypes_ReturnsCopy(t *testing.T) {
	types := AllSymptomTypes()
	require.NotEmpty(t, types)
	types[0] = "tampered"

	assert.Equal(t, SymptomBloating, AllSymptomTypes()[0])
}

func TestParseSymptomType(t *testing.T) {
	st, err := ParseSymptomType("heartburn")
	require.NoError(t, err)
	assert.Equal(t, SymptomHeartburn, st)

	_, err = ParseSymptomType("HEARTBURN")
	assert.Error(t, err)
}

func TestNewSymptomEvent_ClampsSeverity(t *testing.T) {
	tests := []struct {
		name     string
		severity float64
		expected float64
	}{
		{"below range", -3, 0},
		{"lower bound", 0, 0},
		{"in range", 6.5, 6.5},
		{"upper bound", 10, 10},
		{"above range", 14.2, 10},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ev := NewSymptomEvent(uuid.New(), time.Now(), SymptomNausea, tc.severity, nil)
			assert.Equal(t, tc.expected, ev.Severity)
		})
	}
}

func TestNewMealItem_ClampsPortion(t *testing.T) {
	food := uuid.New()

	assert.True(t, NewMealItem(&food, decimal.NewFromFloat(-0.5)).PortionSize.Equal(decimal.Zero))
	assert.True(t, NewMealItem(&food, decimal.NewFromFloat(0.25)).PortionSize.Equal(decimal.NewFromFloat(0.25)))
	assert.True(t, NewMealItem(&food, decimal.NewFromFloat(3)).PortionSize.Equal(decimal.NewFromInt(1)))
}

func TestMealEvent_ContainsFood(t *testing.T) {
	dairy := uuid.New()
	wheat := uuid.New()
	other := uuid.New()

	meal := MealEvent{
		ID:        uuid.New(),
		Timestamp: time.Now(),
		Items: []MealItem{
			NewMealItem(&dairy, decimal.NewFromFloat(0.1)),
			NewMealItem(nil, decimal.NewFromInt(1)),
			NewMealItem(&wheat, decimal.Zero),
		},
	}

	assert.True(t, meal.ContainsFood(dairy))
	assert.True(t, meal.ContainsFood(wheat), "portion size does not affect containment")
	assert.False(t, meal.ContainsFood(other))
	assert.False(t, MealEvent{}.ContainsFood(dairy))
}

func TestCorrelationResult_Strength(t *testing.T) {
	tests := []struct {
		coefficient float64
		expected    CorrelationStrength
	}{
		{0, StrengthWeak},
		{0.29, StrengthWeak},
		{-0.29, StrengthWeak},
		{0.3, StrengthModerate},
		{-0.5, StrengthModerate},
		{0.69, StrengthModerate},
		{0.7, StrengthStrong},
		{-0.95, StrengthStrong},
		{1.2, StrengthStrong},
	}

	for _, tc := range tests {
		r := CorrelationResult{CorrelationCoefficient: tc.coefficient}
		assert.Equal(t, tc.expected, r.Strength(), "coefficient %v", tc.coefficient)
	}
}

func TestCorrelationResult_Direction(t *testing.T) {
	assert.Equal(t, DirectionPositive, CorrelationResult{CorrelationCoefficient: 0.01}.Direction())
	assert.Equal(t, DirectionNegative, CorrelationResult{CorrelationCoefficient: -0.01}.Direction())
	assert.Equal(t, DirectionNone, CorrelationResult{}.Direction())
}

func TestCorrelationResult_IsSignificant(t *testing.T) {
	assert.True(t, CorrelationResult{PValue: 0.049}.IsSignificant())
	assert.False(t, CorrelationResult{PValue: 0.05}.IsSignificant())
	assert.False(t, CorrelationResult{PValue: 1}.IsSignificant())

	assert.True(t, CorrelationResult{PValue: 0.009}.IsSignificantAt(0.01))
	assert.False(t, CorrelationResult{PValue: 0.02}.IsSignificantAt(0.01))
}
