package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SymptomType is the closed set of symptom kinds a user can log.
type SymptomType string

const (
	SymptomBloating      SymptomType = "bloating"
	SymptomGas           SymptomType = "gas"
	SymptomAbdominalPain SymptomType = "abdominal_pain"
	SymptomCramping      SymptomType = "cramping"
	SymptomNausea        SymptomType = "nausea"
	SymptomDiarrhea      SymptomType = "diarrhea"
	SymptomConstipation  SymptomType = "constipation"
	SymptomHeartburn     SymptomType = "heartburn"
	SymptomAcidReflux    SymptomType = "acid_reflux"
	SymptomHeadache      SymptomType = "headache"
	SymptomMigraine      SymptomType = "migraine"
	SymptomFatigue       SymptomType = "fatigue"
	SymptomBrainFog      SymptomType = "brain_fog"
	SymptomSkinRash      SymptomType = "skin_rash"
	SymptomHives         SymptomType = "hives"
	SymptomItching       SymptomType = "itching"
	SymptomJointPain     SymptomType = "joint_pain"
	SymptomCongestion    SymptomType = "congestion"
	SymptomAnxiety       SymptomType = "anxiety"
	SymptomIrritability  SymptomType = "irritability"
)

var allSymptomTypes = []SymptomType{
	SymptomBloating,
	SymptomGas,
	SymptomAbdominalPain,
	SymptomCramping,
	SymptomNausea,
	SymptomDiarrhea,
	SymptomConstipation,
	SymptomHeartburn,
	SymptomAcidReflux,
	SymptomHeadache,
	SymptomMigraine,
	SymptomFatigue,
	SymptomBrainFog,
	SymptomSkinRash,
	SymptomHives,
	SymptomItching,
	SymptomJointPain,
	SymptomCongestion,
	SymptomAnxiety,
	SymptomIrritability,
}

// AllSymptomTypes returns every symptom type in declaration order.
// The returned slice is a copy and may be modified by the caller.
func AllSymptomTypes() []SymptomType {
	out := make([]SymptomType, len(allSymptomTypes))
	copy(out, allSymptomTypes)
	return out
}

// IsValid reports whether t is one of the known symptom types.
func (t SymptomType) IsValid() bool {
	for _, known := range allSymptomTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseSymptomType converts a raw string into a SymptomType.
func ParseSymptomType(raw string) (SymptomType, error) {
	t := SymptomType(raw)
	if !t.IsValid() {
		return "", fmt.Errorf("unknown symptom type %q", raw)
	}
	return t, nil
}

const (
	MinSeverity = 0.0
	MaxSeverity = 10.0
)

// SymptomEvent is a single logged symptom occurrence.
type SymptomEvent struct {
	ID              uuid.UUID   `json:"id" db:"id"`
	Timestamp       time.Time   `json:"timestamp" db:"occurred_at"`
	Type            SymptomType `json:"type" db:"symptom_type"`
	Severity        float64     `json:"severity" db:"severity"`
	DurationMinutes *int        `json:"duration_minutes,omitempty" db:"duration_minutes"`
}

// NewSymptomEvent builds a symptom event with severity clamped to [0,10].
func NewSymptomEvent(id uuid.UUID, ts time.Time, symptomType SymptomType, severity float64, durationMinutes *int) SymptomEvent {
	return SymptomEvent{
		ID:              id,
		Timestamp:       ts,
		Type:            symptomType,
		Severity:        ClampSeverity(severity),
		DurationMinutes: durationMinutes,
	}
}

// ClampSeverity bounds a severity value to [MinSeverity, MaxSeverity].
func ClampSeverity(severity float64) float64 {
	if severity < MinSeverity {
		return MinSeverity
	}
	if severity > MaxSeverity {
		return MaxSeverity
	}
	return severity
}
