package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/irfndi/gutsense-go/internal/models"
	"github.com/irfndi/gutsense-go/internal/presentation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type symptomTypesResponse struct {
	SymptomTypes []presentation.SymptomInfo `json:"symptom_types"`
	Count        int                        `json:"count"`
}

func serveSymptomTypes(t *testing.T, target string) symptomTypesResponse {
	t.Helper()
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/symptom-types", NewSymptomHandler().ListSymptomTypes)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, target, nil))
	require.Equal(t, http.StatusOK, w.Code)

	var response symptomTypesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func TestSymptomHandler_ListSymptomTypes(t *testing.T) {
	response := serveSymptomTypes(t, "/symptom-types")

	assert.Equal(t, len(models.AllSymptomTypes()), response.Count)
	assert.Len(t, response.SymptomTypes, response.Count)
	assert.Equal(t, models.SymptomBloating, response.SymptomTypes[0].Type)
}

func TestSymptomHandler_ListSymptomTypes_ByCategory(t *testing.T) {
	response := serveSymptomTypes(t, "/symptom-types?category=skin")

	assert.Equal(t, 3, response.Count)
	for _, info := range response.SymptomTypes {
		assert.Equal(t, presentation.CategorySkin, info.Category)
	}
}

func TestSymptomHandler_ListSymptomTypes_UnknownCategory(t *testing.T) {
	response := serveSymptomTypes(t, "/symptom-types?category=cardiac")

	assert.Equal(t, 0, response.Count)
	assert.NotNil(t, response.SymptomTypes)
}
