package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	contextutils "prepapp/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultErrorRecoveryConfig(t *testing.T) {
	config := DefaultErrorRecoveryConfig()

	assert.False(t, config.EnableCircuitBreaker)
	assert.Equal(t, 5, config.CircuitBreakerThreshold)
	assert.Equal(t, 30*time.Second, config.CircuitBreakerTimeout)
}

func TestErrorRecoveryMiddleware_PanicRecovery(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(ErrorRecoveryMiddleware(nil, nil))

	router.GET("/panic", func(_ *gin.Context) {
		panic("test panic")
	})

	req, _ := http.NewRequest("GET", "/panic", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), string(contextutils.ErrorCodeInternalError))
}

func TestErrorRecoveryMiddleware_NormalRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(ErrorRecoveryMiddleware(nil, nil))

	router.GET("/normal", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "success"})
	})

	req, _ := http.NewRequest("GET", "/normal", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestErrorRecoveryMiddleware_CircuitBreakerShedsLoad(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(ErrorRecoveryMiddleware(nil, &ErrorRecoveryConfig{
		EnableCircuitBreaker:    true,
		CircuitBreakerThreshold: 2,
		CircuitBreakerTimeout:   time.Minute,
	}))

	router.GET("/fail", func(c *gin.Context) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "boom"})
	})

	for i := 0; i < 2; i++ {
		req, _ := http.NewRequest("GET", "/fail", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		require.Equal(t, http.StatusInternalServerError, w.Code)
	}

	// The circuit is open, requests are rejected before the handler runs
	req, _ := http.NewRequest("GET", "/fail", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestCircuitBreaker_CanExecute(t *testing.T) {
	config := &ErrorRecoveryConfig{
		EnableCircuitBreaker:    true,
		CircuitBreakerThreshold: 2,
		CircuitBreakerTimeout:   100 * time.Millisecond,
	}

	cb := newCircuitBreaker(config)

	// Initially closed, should allow execution
	assert.True(t, cb.canExecute())
	assert.Equal(t, circuitClosed, cb.state)

	// Record failures
	cb.recordFailure()
	cb.recordFailure()

	// Should be open now
	assert.False(t, cb.canExecute())
	assert.Equal(t, circuitOpen, cb.state)

	// Wait for timeout
	time.Sleep(150 * time.Millisecond)

	// Should be half-open now
	assert.True(t, cb.canExecute())
	assert.Equal(t, circuitHalfOpen, cb.state)

	// Record success
	cb.recordSuccess()

	// Should be closed again
	assert.True(t, cb.canExecute())
	assert.Equal(t, circuitClosed, cb.state)
}

func TestHandleAppError_MapsCodesToStatuses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name     string
		code     contextutils.ErrorCode
		expected int
	}{
		{"validation", contextutils.ErrorCodeValidationFailed, http.StatusBadRequest},
		{"unauthorized", contextutils.ErrorCodeUnauthorized, http.StatusUnauthorized},
		{"deck not found", contextutils.ErrorCodeDeckNotFound, http.StatusNotFound},
		{"insufficient bank", contextutils.ErrorCodeInsufficientBank, http.StatusConflict},
		{"generator down", contextutils.ErrorCodeGeneratorUnavailable, http.StatusServiceUnavailable},
		{"generator bad response", contextutils.ErrorCodeGeneratorResponseInvalid, http.StatusBadGateway},
		{"database query", contextutils.ErrorCodeDatabaseQuery, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest("GET", "/", nil)

			HandleAppError(c, contextutils.NewAppError(tt.code, contextutils.SeverityError, "msg", ""))

			assert.Equal(t, tt.expected, w.Code)
		})
	}
}

func TestHandleAppError_PlainErrorBecomesInternal(t *testing.T) {
	gin.SetMode(gin.TestMode)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest("GET", "/", nil)

	HandleAppError(c, assert.AnError)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), string(contextutils.ErrorCodeInternalError))
}
