package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/irfndi/gutsense-go/internal/logging"
)

func setupRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func TestTracing(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := setupRecorder(t)

	router := gin.New()
	router.Use(Tracing("gutsense-test"))
	router.GET("/api/v1/test", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "test"})
	})
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy"})
	})

	t.Run("regular request is traced", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/test", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		spans := recorder.Ended()
		require.Len(t, spans, 1)
		assert.Contains(t, spans[0].Name(), "/api/v1/test")
	})

	t.Run("health endpoint is skipped", func(t *testing.T) {
		before := len(recorder.Ended())
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Len(t, recorder.Ended(), before)
	})
}

func TestRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestID())
	router.GET("/test", func(c *gin.Context) {
		c.String(http.StatusOK, GetRequestID(c))
	})

	t.Run("generates an ID", func(t *testing.T) {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/test", nil))

		generated := w.Header().Get(RequestIDHeader)
		assert.Len(t, generated, 36)
		assert.Equal(t, generated, w.Body.String())
	})

	t.Run("reuses the caller's ID", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.Header.Set(RequestIDHeader, "req-123")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, "req-123", w.Header().Get(RequestIDHeader))
		assert.Equal(t, "req-123", w.Body.String())
	})
}

func TestRequestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)

	var buf bytes.Buffer
	logger := logging.NewStandardLoggerWithWriter(&buf, "debug", "test")

	router := gin.New()
	router.Use(RequestID(), RequestLogger(logger))
	router.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	router.GET("/fail", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	router.GET("/live", func(c *gin.Context) { c.Status(http.StatusOK) })

	tests := []struct {
		path     string
		level    string
		expected string
	}{
		{path: "/ok", level: `"level":"INFO"`, expected: "API request"},
		{path: "/bad", level: `"level":"WARN"`, expected: "API request rejected"},
		{path: "/fail", level: `"level":"ERROR"`, expected: "API request failed"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			buf.Reset()
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			req.Header.Set(RequestIDHeader, "req-log")
			router.ServeHTTP(httptest.NewRecorder(), req)

			output := buf.String()
			assert.Contains(t, output, tt.level)
			assert.Contains(t, output, tt.expected)
			assert.Contains(t, output, `"path":"`+tt.path+`"`)
			assert.Contains(t, output, `"request_id":"req-log"`)
		})
	}

	t.Run("health endpoints are not logged", func(t *testing.T) {
		buf.Reset()
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/live", nil))
		assert.Empty(t, buf.String())
	})
}

func TestRecordError(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := setupRecorder(t)

	router := gin.New()
	router.Use(Tracing("gutsense-test"))
	router.GET("/error", func(c *gin.Context) {
		RecordError(c, errors.New("test error"), "Test error description")
		AddSpanAttribute(c, "custom.count", 3)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/error", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "Test error description", spans[0].Status().Description)
	require.NotEmpty(t, spans[0].Events())
	assert.Equal(t, "exception", spans[0].Events()[0].Name)
}

func TestRecordError_NoSpan(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.GET("/error", func(c *gin.Context) {
		RecordError(c, errors.New("test error"), "ignored")
		AddSpanAttribute(c, "ignored", struct{}{})
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/error", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}
