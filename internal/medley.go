package internal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/medleyhq/medley/internal/aggregation"
	"github.com/medleyhq/medley/internal/api"
	"github.com/medleyhq/medley/internal/database"
	"github.com/medleyhq/medley/internal/event"
	"github.com/medleyhq/medley/internal/ingest"
	"github.com/medleyhq/medley/internal/search"
	"github.com/medleyhq/medley/pkg/logger"
)

var log = logger.Get("Core")

type (
	RunnableService interface {
		Run(context.Context) error
	}
)

// medleyImpl is the top-level object of the server, responsible for
// constructing the stores, the event bus and the services, wiring them
// together, and supervising their goroutines until shutdown.
type medleyImpl struct {
	eventBus event.EventCoordinator
	config   MedleyConfig
}

func New(config MedleyConfig) *medleyImpl {
	return &medleyImpl{
		eventBus: event.New(),
		config:   config,
	}
}

// Run brings up the database connection, the search index and every service,
// and blocks until the provided context is cancelled or a service crashes.
func (medley *medleyImpl) Run(parent context.Context) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	crashHandler := func(label string, err error) {
		log.Emit(logger.FATAL, "Service crash (%s)! %s\n", label, err.Error())
		cancel()
	}

	log.Emit(logger.NEW, "Connecting to database...\n")
	db := database.New()
	if err := db.Connect(medley.config.Database); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	store := newStoreOrchestrator(db)

	log.Emit(logger.NEW, "Opening search index at %s...\n", medley.config.Search.IndexPath)
	index, err := search.OpenIndex(medley.config.Search.IndexPath)
	if err != nil {
		return err
	}
	defer index.Close()

	synchronizer := search.NewSynchronizer(
		index, store, medley.eventBus,
		time.Minute*time.Duration(medley.config.Search.RebuildIntervalMinutes),
	)
	synchronizer.RegisterEventHandlers(medley.eventBus)

	aggregator := aggregation.New(
		store, medley.eventBus,
		time.Minute*time.Duration(medley.config.Aggregator.IntervalMinutes),
		medley.config.Aggregator.MaxGroupsPerRun,
	)

	healthMonitor := aggregation.NewHealthMonitor(
		store,
		time.Minute*time.Duration(medley.config.Ingest.SyncIntervalMinutes)*2,
	)

	ingestService, err := ingest.New(medley.config.Ingest, medley.config.Categories, store, medley.eventBus)
	if err != nil {
		return fmt.Errorf("failed to construct ingest service: %w", err)
	}

	restGateway := api.NewRestGateway(&medley.config.Rest, aggregator, synchronizer, healthMonitor)

	wg := &sync.WaitGroup{}
	medley.spawnAsyncService(ctx, wg, ingestService, "ingest-service", crashHandler)
	medley.spawnAsyncService(ctx, wg, aggregator, "aggregation-service", crashHandler)
	medley.spawnAsyncService(ctx, wg, synchronizer, "search-synchronizer", crashHandler)
	medley.spawnAsyncService(ctx, wg, restGateway, "rest-gateway", crashHandler)
	log.Emit(logger.SUCCESS, "Medley services spawned!\n")

	wg.Wait()
	return nil
}

// spawnAsyncService runs the provided service in its own goroutine, tracking
// it in the given waitgroup and reporting any error or panic to the crash
// handler.
func (medley *medleyImpl) spawnAsyncService(ctx context.Context, wg *sync.WaitGroup, service RunnableService, serviceLabel string, crashHandler func(string, error)) {
	log.Emit(logger.NEW, "Spawning %s\n", serviceLabel)
	wg.Add(1)

	go func(wg *sync.WaitGroup, label string, crash func(string, error)) {
		defer func() {
			if r := recover(); r != nil {
				crash(label, fmt.Errorf("panic %v", r))
			}
		}()

		defer wg.Done()
		if err := service.Run(ctx); err != nil {
			crash(label, err)
		}
	}(wg, serviceLabel, crashHandler)
}
