package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"prepapp/internal/config"
	"prepapp/internal/middleware"
	"prepapp/internal/observability"
	"prepapp/internal/services"
	"prepapp/internal/version"
)

// NewRouter creates a new router with all the necessary middleware and routes
func NewRouter(
	cfg *config.Config,
	trainingService services.TrainingServiceInterface,
	deckService services.DeckServiceInterface,
	flashcardService services.FlashcardServiceInterface,
	logger *observability.Logger,
) *gin.Engine {
	// Setup Gin mode
	gin.SetMode(gin.ReleaseMode)
	if cfg.Server.Debug {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.ErrorRecoveryMiddleware(logger, nil))

	// Add HTTP request logging middleware using our observability logger
	router.Use(func(c *gin.Context) {
		start := time.Now()

		c.Next()

		latency := time.Since(start)
		statusCode := c.Writer.Status()

		fields := map[string]interface{}{
			"http.method":      c.Request.Method,
			"http.path":        c.Request.URL.Path,
			"http.status_code": statusCode,
			"http.latency_ms":  latency.Milliseconds(),
			"http.client_ip":   c.ClientIP(),
			"http.user_agent":  c.Request.UserAgent(),
			"http.request_id":  middleware.GetRequestID(c),
		}
		if len(c.Errors) > 0 {
			fields["http.error"] = c.Errors.String()
		}

		// Log using our observability logger (goes to both stdout and OTLP)
		if statusCode >= 500 {
			logger.Error(c.Request.Context(), "HTTP request failed", nil, fields)
		} else if statusCode >= 400 {
			logger.Warn(c.Request.Context(), "HTTP request warning", fields)
		} else {
			logger.Info(c.Request.Context(), "HTTP request", fields)
		}
	})

	// Health check endpoint (defined before any middleware)
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "backend"})
	})

	// Add OpenTelemetry middleware for HTTP tracing and context propagation with automatic error attributes
	router.Use(observability.GinMiddlewareWithErrorHandling("prepapp-backend"))

	// Disable automatic redirection for trailing slashes, which is better for APIs
	router.RedirectTrailingSlash = false

	// Setup CORS middleware
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Requested-With", middleware.UserIDHeader}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Initialize handlers
	trainingHandler := NewTrainingHandler(trainingService, cfg, logger)
	deckHandler := NewDeckHandler(deckService, flashcardService, cfg, logger)
	flashcardHandler := NewFlashcardHandler(flashcardService, cfg, logger)

	v1 := router.Group("/v1")
	{
		v1.GET("/version", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"service":   "backend",
				"version":   version.Version,
				"commit":    version.Commit,
				"buildTime": version.BuildTime,
			})
		})

		training := v1.Group("/training")
		training.Use(middleware.RequireUser())
		{
			training.POST("/questions", trainingHandler.GetQuestions)
			training.POST("/results", trainingHandler.SubmitResult)
			training.GET("/evolution", trainingHandler.GetEvolution)
		}

		decks := v1.Group("/decks")
		decks.Use(middleware.RequireUser())
		{
			decks.GET("", deckHandler.ListDecks)
			decks.POST("", deckHandler.CreateDeck)
			decks.GET("/:id", deckHandler.GetDeck)
			decks.PUT("/:id", deckHandler.UpdateDeck)
			decks.DELETE("/:id", deckHandler.DeleteDeck)
			decks.GET("/:id/cards", deckHandler.GetDeckCards)
			decks.POST("/:id/cards", deckHandler.CreateCard)
		}

		flashcards := v1.Group("/flashcards")
		flashcards.Use(middleware.RequireUser())
		{
			flashcards.GET("/due", flashcardHandler.GetDueCards)
			flashcards.PUT("/:id", flashcardHandler.UpdateCard)
			flashcards.DELETE("/:id", flashcardHandler.DeleteCard)
			flashcards.POST("/:id/review", flashcardHandler.ReviewCard)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
	})

	return router
}
