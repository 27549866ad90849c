// Package presentation maps symptom types to the display metadata shown by
// clients. The analysis engine never imports it.
package presentation

import (
	"strings"

	"github.com/irfndi/gutsense-go/internal/models"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// SymptomCategory groups symptom types for display.
type SymptomCategory string

const (
	CategoryDigestive       SymptomCategory = "digestive"
	CategoryNeurological    SymptomCategory = "neurological"
	CategorySkin            SymptomCategory = "skin"
	CategoryRespiratory     SymptomCategory = "respiratory"
	CategoryMusculoskeletal SymptomCategory = "musculoskeletal"
	CategoryMood            SymptomCategory = "mood"
	CategoryOther           SymptomCategory = "other"
)

// SymptomInfo is the display metadata of one symptom type.
type SymptomInfo struct {
	Type     models.SymptomType `json:"type"`
	Label    string             `json:"label"`
	Category SymptomCategory    `json:"category"`
	Icon     string             `json:"icon"`
}

type symptomMeta struct {
	category SymptomCategory
	icon     string
}

var symptomTable = map[models.SymptomType]symptomMeta{
	models.SymptomBloating:      {CategoryDigestive, "🎈"},
	models.SymptomGas:           {CategoryDigestive, "💨"},
	models.SymptomAbdominalPain: {CategoryDigestive, "🤕"},
	models.SymptomCramping:      {CategoryDigestive, "😣"},
	models.SymptomNausea:        {CategoryDigestive, "🤢"},
	models.SymptomDiarrhea:      {CategoryDigestive, "🚽"},
	models.SymptomConstipation:  {CategoryDigestive, "🧱"},
	models.SymptomHeartburn:     {CategoryDigestive, "🔥"},
	models.SymptomAcidReflux:    {CategoryDigestive, "🌋"},
	models.SymptomHeadache:      {CategoryNeurological, "🤯"},
	models.SymptomMigraine:      {CategoryNeurological, "⚡"},
	models.SymptomFatigue:       {CategoryNeurological, "😴"},
	models.SymptomBrainFog:      {CategoryNeurological, "🌫️"},
	models.SymptomSkinRash:      {CategorySkin, "🔴"},
	models.SymptomHives:         {CategorySkin, "🟠"},
	models.SymptomItching:       {CategorySkin, "🪶"},
	models.SymptomJointPain:     {CategoryMusculoskeletal, "🦴"},
	models.SymptomCongestion:    {CategoryRespiratory, "🤧"},
	models.SymptomAnxiety:       {CategoryMood, "😰"},
	models.SymptomIrritability:  {CategoryMood, "😠"},
}

// Label turns a symptom type into a title-cased display label,
// e.g. "acid_reflux" becomes "Acid Reflux".
func Label(t models.SymptomType) string {
	return cases.Title(language.English).String(strings.ReplaceAll(string(t), "_", " "))
}

// Describe returns the display metadata for t. Types without an entry fall
// into CategoryOther with a generic icon.
func Describe(t models.SymptomType) SymptomInfo {
	meta, ok := symptomTable[t]
	if !ok {
		meta = symptomMeta{category: CategoryOther, icon: "❔"}
	}
	return SymptomInfo{
		Type:     t,
		Label:    Label(t),
		Category: meta.category,
		Icon:     meta.icon,
	}
}

// AllSymptoms describes every known symptom type in enumeration order.
func AllSymptoms() []SymptomInfo {
	types := models.AllSymptomTypes()
	infos := make([]SymptomInfo, 0, len(types))
	for _, t := range types {
		infos = append(infos, Describe(t))
	}
	return infos
}

// SymptomsByCategory returns the described symptom types of one category.
func SymptomsByCategory(category SymptomCategory) []SymptomInfo {
	var infos []SymptomInfo
	for _, info := range AllSymptoms() {
		if info.Category == category {
			infos = append(infos, info)
		}
	}
	return infos
}
