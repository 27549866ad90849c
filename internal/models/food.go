package models

import "github.com/google/uuid"

// FoodRef is a known food. TriggerTags are informational and not used by analysis.
type FoodRef struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Category    string    `json:"category" db:"category"`
	TriggerTags []string  `json:"trigger_tags" db:"trigger_tags"`
}
