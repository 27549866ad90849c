package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/gutsense-go/internal/presentation"
)

// SymptomHandler serves the symptom type enumeration.
type SymptomHandler struct{}

func NewSymptomHandler() *SymptomHandler {
	return &SymptomHandler{}
}

// ListSymptomTypes returns every symptom type with its display metadata,
// optionally narrowed by ?category=.
func (h *SymptomHandler) ListSymptomTypes(c *gin.Context) {
	infos := presentation.AllSymptoms()
	if category := c.Query("category"); category != "" {
		infos = presentation.SymptomsByCategory(presentation.SymptomCategory(category))
		if infos == nil {
			infos = []presentation.SymptomInfo{}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"symptom_types": infos,
		"count":         len(infos),
	})
}
