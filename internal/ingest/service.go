package ingest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medleyhq/medley/internal/event"
	"github.com/medleyhq/medley/internal/provider"
	"github.com/medleyhq/medley/internal/title"
	"github.com/medleyhq/medley/pkg/logger"
	"github.com/medleyhq/medley/pkg/worker"
)

var log = logger.Get("IngestServ")

type (
	dataStore interface {
		GetRecordByIdentity(titleNorm string, releaseYear *int) (*title.Record, error)
		SaveRecord(record *title.Record) error
	}

	Config struct {
		SyncIntervalMinutes int                      `yaml:"sync_interval_minutes" env:"SYNC_INTERVAL_MINUTES" env-default:"60" validate:"gt=0"`
		Parallelism         int                      `yaml:"parallelism" env:"INGEST_PARALLELISM" env-default:"2" validate:"gt=0"`
		Stations            []provider.StationConfig `yaml:"stations" validate:"min=1,dive"`
	}

	// ingestService polls every configured resource station on a schedule,
	// normalizes the records each station reports and upserts them into the
	// canonical store. Stations are synced concurrently by the worker pool;
	// a failure in one station (or one record) never affects the others.
	ingestService struct {
		*sync.Mutex

		store    dataStore
		eventBus event.EventDispatcher

		config     Config
		categories map[string]string
		jobs       []*stationJob
		workerPool worker.WorkerPool
	}
)

// New creates an ingest service with one sync job slot per configured
// station and a worker pool sized by the configs parallelism.
func New(config Config, categories map[string]string, store dataStore, eventBus event.EventDispatcher) (*ingestService, error) {
	if len(config.Stations) == 0 {
		return nil, fmt.Errorf("ingest service requires at least one configured station")
	}

	service := &ingestService{
		Mutex:      &sync.Mutex{},
		store:      store,
		eventBus:   eventBus,
		config:     config,
		categories: categories,
		jobs:       make([]*stationJob, 0),
		workerPool: *worker.NewWorkerPool(),
	}

	for i := 0; i < config.Parallelism; i++ {
		label := fmt.Sprintf("ingest-worker-%d", i)
		service.workerPool.PushWorker(worker.NewWorker(label, service.PerformStationSync))
	}

	return service, nil
}

// Run starts the worker pool and queues a sync of every station immediately
// and then on each interval tick, until the context is cancelled.
func (service *ingestService) Run(ctx context.Context) error {
	if err := service.workerPool.Start(); err != nil {
		return fmt.Errorf("failed to start ingest worker pool: %w", err)
	}
	defer service.workerPool.Close()

	ticker := time.NewTicker(time.Minute * time.Duration(service.config.SyncIntervalMinutes))
	defer ticker.Stop()

	service.QueueStationSyncs(ctx)
	for {
		select {
		case <-ticker.C:
			service.QueueStationSyncs(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

// QueueStationSyncs creates an idle sync job for every configured station
// that does not already have one pending or running, then wakes the pool.
//
// Note: this function takes ownership of the mutex and releases it on return.
func (service *ingestService) QueueStationSyncs(ctx context.Context) {
	service.Lock()
	defer service.Unlock()

	pending := make(map[string]bool, len(service.jobs))
	for _, job := range service.jobs {
		pending[job.client.Label()] = true
	}

	dirty := false
	for _, station := range service.config.Stations {
		if pending[station.Label] {
			log.Emit(logger.DEBUG, "Skipping sync queue for station %s as one is already pending\n", station.Label)
			continue
		}

		service.jobs = append(service.jobs, &stationJob{
			id:     uuid.New(),
			ctx:    ctx,
			client: provider.NewClient(station),
			state:  IDLE,
		})
		dirty = true
	}

	if dirty {
		service.workerPool.WakeupWorkers()
	}
}

// PerformStationSync is the worker function for the ingest service. It
// claims the first idle job it finds and syncs that station end to end.
func (service *ingestService) PerformStationSync(w worker.Worker) (bool, error) {
	job := service.claimIdleJob()
	if job == nil {
		return false, nil
	}

	summary := service.syncStation(job)
	log.Emit(logger.INFO, "Station %s sync complete: %d fetched, %d created, %d refreshed, %d skipped\n",
		job.client.Label(), summary.fetched, summary.created, summary.refreshed, summary.skipped)

	service.Lock()
	job.state = COMPLETE
	service.removeCompletedJobs()
	service.Unlock()

	return true, nil
}

// claimIdleJob finds the first IDLE job and transitions it to SYNCING,
// returning nil when no idle job remains.
//
// Note: this function takes ownership of the mutex and releases it on return.
func (service *ingestService) claimIdleJob() *stationJob {
	service.Lock()
	defer service.Unlock()

	for _, job := range service.jobs {
		if job.state == IDLE {
			job.state = SYNCING
			return job
		}
	}

	return nil
}

func (service *ingestService) removeCompletedJobs() {
	remaining := make([]*stationJob, 0, len(service.jobs))
	for _, job := range service.jobs {
		if job.state != COMPLETE {
			remaining = append(remaining, job)
		}
	}

	service.jobs = remaining
}
