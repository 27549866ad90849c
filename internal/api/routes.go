package api

import (
	"github.com/gin-gonic/gin"

	"github.com/irfndi/gutsense-go/internal/api/handlers"
	"github.com/irfndi/gutsense-go/internal/logging"
	"github.com/irfndi/gutsense-go/internal/middleware"
)

// Dependencies are the collaborators the HTTP handlers need.
type Dependencies struct {
	DB          handlers.HealthChecker
	Redis       handlers.HealthChecker
	Trigger     handlers.AnalysisTrigger
	Reader      handlers.ResultsReader
	Logger      *logging.StandardLogger
	ServiceName string
	Version     string
	Threshold   float64
	// AllowedOrigins enables CORS when non-empty.
	AllowedOrigins []string
}

// SetupRoutes installs middleware and every endpoint on router.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	router.Use(middleware.Tracing(deps.ServiceName))
	router.Use(middleware.RequestID())
	if len(deps.AllowedOrigins) > 0 {
		router.Use(middleware.CORS(deps.AllowedOrigins))
	}
	if deps.Logger != nil {
		router.Use(middleware.RequestLogger(deps.Logger))
	}

	healthHandler := handlers.NewHealthHandler(deps.DB, deps.Redis, deps.Version)
	symptomHandler := handlers.NewSymptomHandler()
	correlationHandler := handlers.NewCorrelationHandler(deps.Trigger, deps.Reader, deps.Threshold)

	// Health check endpoints
	router.GET("/health", healthHandler.HealthCheck)
	router.HEAD("/health", healthHandler.HealthCheck)
	router.GET("/live", healthHandler.LivenessCheck)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		v1.GET("/symptom-types", symptomHandler.ListSymptomTypes)

		correlations := v1.Group("/correlations")
		{
			correlations.GET("", correlationHandler.ListCorrelations)
			correlations.POST("/run", correlationHandler.TriggerRun)
			correlations.GET("/status", correlationHandler.GetStatus)
		}
	}
}
