package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	minPortion = decimal.Zero
	maxPortion = decimal.NewFromInt(1)
)

// MealItem is one food entry within a meal.
// FoodID is nil when the entry references a food that no longer exists.
type MealItem struct {
	FoodID      *uuid.UUID      `json:"food_id,omitempty" db:"food_id"`
	PortionSize decimal.Decimal `json:"portion_size" db:"portion_size"`
}

// NewMealItem builds a meal item with the portion clamped to [0,1].
func NewMealItem(foodID *uuid.UUID, portion decimal.Decimal) MealItem {
	if portion.LessThan(minPortion) {
		portion = minPortion
	}
	if portion.GreaterThan(maxPortion) {
		portion = maxPortion
	}
	return MealItem{FoodID: foodID, PortionSize: portion}
}

// MealEvent is a logged meal with the foods it contained.
type MealEvent struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Timestamp time.Time  `json:"timestamp" db:"eaten_at"`
	Items     []MealItem `json:"items"`
}

// ContainsFood reports whether any item of the meal references foodID.
// Items without a food reference never match.
func (m MealEvent) ContainsFood(foodID uuid.UUID) bool {
	for _, item := range m.Items {
		if item.FoodID != nil && *item.FoodID == foodID {
			return true
		}
	}
	return false
}
