// Package di provides dependency injection container for managing service lifecycle and dependencies.
package di

import (
	"context"
	"database/sql"
	"sync"

	"prepapp/internal/config"
	"prepapp/internal/database"
	"prepapp/internal/observability"
	"prepapp/internal/services"
	contextutils "prepapp/internal/utils"
)

// ServiceContainerInterface defines the interface for service containers
type ServiceContainerInterface interface {
	GetService(name string) (interface{}, error)
	GetTrainingService() (services.TrainingServiceInterface, error)
	GetQuestionBankService() (services.QuestionBankServiceInterface, error)
	GetExposureService() (services.ExposureServiceInterface, error)
	GetDeckService() (services.DeckServiceInterface, error)
	GetFlashcardService() (services.FlashcardServiceInterface, error)
	GetDatabase() *sql.DB
	GetConfig() *config.Config
	GetLogger() *observability.Logger
	Initialize(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

// ServiceContainer manages all service dependencies and lifecycle
type ServiceContainer struct {
	cfg           *config.Config
	logger        *observability.Logger
	dbManager     *database.Manager
	db            *sql.DB
	services      map[string]interface{}
	mu            sync.RWMutex
	shutdownFuncs []func(context.Context) error
}

// NewServiceContainer creates a new dependency injection container
func NewServiceContainer(cfg *config.Config, logger *observability.Logger) *ServiceContainer {
	return &ServiceContainer{
		cfg:      cfg,
		logger:   logger,
		services: make(map[string]interface{}),
	}
}

// Initialize sets up all services and their dependencies
func (sc *ServiceContainer) Initialize(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	// Initialize database
	sc.dbManager = database.NewManager(sc.logger)
	db, err := sc.dbManager.InitDBWithConfig(sc.cfg.Database)
	if err != nil {
		return contextutils.WrapErrorf(err, "failed to initialize database")
	}
	sc.db = db
	sc.shutdownFuncs = append(sc.shutdownFuncs, func(_ context.Context) error {
		return db.Close()
	})

	if err := sc.initializeServices(ctx); err != nil {
		_ = sc.cleanup(ctx)
		return contextutils.WrapErrorf(err, "failed to initialize services")
	}

	return nil
}

// GetService retrieves a service by name with type assertion
func (sc *ServiceContainer) GetService(name string) (interface{}, error) {
	sc.mu.RLock()
	defer sc.mu.RUnlock()

	service, exists := sc.services[name]
	if !exists {
		return nil, contextutils.ErrorWithContextf("service %s not found", name)
	}
	return service, nil
}

// GetServiceAs performs type-safe service retrieval
func GetServiceAs[T any](sc *ServiceContainer, name string) (T, error) {
	var zero T
	service, err := sc.GetService(name)
	if err != nil {
		return zero, err
	}

	typed, ok := service.(T)
	if !ok {
		return zero, contextutils.ErrorWithContextf("service %s is not of expected type %T", name, zero)
	}
	return typed, nil
}

// GetTrainingService returns the training orchestration service
func (sc *ServiceContainer) GetTrainingService() (services.TrainingServiceInterface, error) {
	return GetServiceAs[services.TrainingServiceInterface](sc, "training")
}

// GetQuestionBankService returns the question bank service
func (sc *ServiceContainer) GetQuestionBankService() (services.QuestionBankServiceInterface, error) {
	return GetServiceAs[services.QuestionBankServiceInterface](sc, "question_bank")
}

// GetExposureService returns the exposure tracking service
func (sc *ServiceContainer) GetExposureService() (services.ExposureServiceInterface, error) {
	return GetServiceAs[services.ExposureServiceInterface](sc, "exposure")
}

// GetDeckService returns the deck service
func (sc *ServiceContainer) GetDeckService() (services.DeckServiceInterface, error) {
	return GetServiceAs[services.DeckServiceInterface](sc, "deck")
}

// GetFlashcardService returns the flashcard service
func (sc *ServiceContainer) GetFlashcardService() (services.FlashcardServiceInterface, error) {
	return GetServiceAs[services.FlashcardServiceInterface](sc, "flashcard")
}

// GetDatabase returns the database instance
func (sc *ServiceContainer) GetDatabase() *sql.DB {
	return sc.db
}

// GetConfig returns the configuration
func (sc *ServiceContainer) GetConfig() *config.Config {
	return sc.cfg
}

// GetLogger returns the logger
func (sc *ServiceContainer) GetLogger() *observability.Logger {
	return sc.logger
}

// Shutdown gracefully shuts down all services
func (sc *ServiceContainer) Shutdown(ctx context.Context) error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	return sc.cleanup(ctx)
}

// cleanup handles shutdown of all services
func (sc *ServiceContainer) cleanup(ctx context.Context) error {
	var errs []error

	for name := range sc.services {
		if lifecycleService, ok := sc.services[name].(interface{ Shutdown(context.Context) error }); ok {
			sc.logger.Info(ctx, "Shutting down service", map[string]interface{}{"service": name})
			if err := lifecycleService.Shutdown(ctx); err != nil {
				sc.logger.Error(ctx, "Failed to shutdown service", err, map[string]interface{}{"service": name})
				errs = append(errs, contextutils.WrapErrorf(err, "service %s shutdown failed", name))
			}
		}
	}

	// Shutdown services in reverse order of initialization
	for i := len(sc.shutdownFuncs) - 1; i >= 0; i-- {
		if err := sc.shutdownFuncs[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return contextutils.ErrorWithContextf("shutdown errors: %v", errs)
	}
	return nil
}

// initializeServices sets up all service dependencies
func (sc *ServiceContainer) initializeServices(_ context.Context) error {
	// Core services that only depend on the database
	bankService := services.NewQuestionBankService(sc.db, sc.logger)
	sc.services["question_bank"] = bankService

	exposureService := services.NewExposureService(sc.db, sc.logger)
	sc.services["exposure"] = exposureService

	varietyService := services.NewVarietyServiceWithLogger(sc.cfg, sc.logger)
	sc.services["variety"] = varietyService

	deckService := services.NewDeckService(sc.db, sc.logger)
	sc.services["deck"] = deckService

	flashcardService := services.NewFlashcardService(sc.db, deckService, services.NewSpacedRepetitionService(), sc.logger)
	sc.services["flashcard"] = flashcardService

	// Generator is an external collaborator; the orchestrator degrades to
	// bank-only delivery when it is disabled or failing.
	var generator services.QuestionGeneratorInterface
	if sc.cfg.Generator.Enabled {
		httpGenerator, err := services.NewHTTPGenerator(sc.cfg.Generator, sc.logger)
		if err != nil {
			return contextutils.WrapErrorf(err, "failed to build question generator")
		}
		generator = httpGenerator
	} else {
		generator = services.NewDisabledGenerator()
	}
	sc.services["generator"] = generator

	trainingService := services.NewTrainingService(
		sc.db, bankService, exposureService, generator, varietyService, flashcardService, sc.cfg, sc.logger)
	sc.services["training"] = trainingService

	return nil
}
