package aggregation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/medleyhq/medley/internal/event"
	"github.com/medleyhq/medley/internal/title"
	"github.com/medleyhq/medley/pkg/logger"
)

var log = logger.Get("Aggregator")

const DefaultMaxGroupsPerRun = 50

type (
	// DataStore is the slice of the canonical store the aggregator needs:
	// a full scan for grouping, and the atomic update+delete pair that
	// persists one merge.
	DataStore interface {
		GetAllRecords() ([]*title.Record, error)
		ApplyMerge(primary *title.Record, loserIDs []uuid.UUID) error
	}

	// Summary reports the outcome of one aggregation batch.
	Summary struct {
		GroupsFound     int       `json:"groups_found"`
		GroupsProcessed int       `json:"groups_processed"`
		Merged          int       `json:"merged"`
		Deleted         int       `json:"deleted"`
		Errors          int       `json:"errors"`
		RanAt           time.Time `json:"ran_at"`
	}

	service struct {
		store           DataStore
		eventBus        event.EventDispatcher
		interval        time.Duration
		maxGroupsPerRun int

		lastSummary     *Summary
		lastSummaryLock sync.Mutex
	}
)

func New(store DataStore, eventBus event.EventDispatcher, interval time.Duration, maxGroupsPerRun int) *service {
	if maxGroupsPerRun <= 0 {
		maxGroupsPerRun = DefaultMaxGroupsPerRun
	}

	return &service{
		store:           store,
		eventBus:        eventBus,
		interval:        interval,
		maxGroupsPerRun: maxGroupsPerRun,
	}
}

// Run executes aggregation batches on the configured interval until the
// context is cancelled. A failed batch is logged and the service waits for
// the next tick; only context cancellation stops the loop.
func (service *service) Run(ctx context.Context) error {
	ticker := time.NewTicker(service.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if _, err := service.RunBatch(ctx); err != nil {
				log.Emit(logger.ERROR, "Aggregation batch FAILED: %v\n", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// RunBatch performs one bounded aggregation pass: scan, group, and merge up
// to maxGroupsPerRun duplicate groups. An error is returned only when the
// store cannot be read at batch start; that case is distinct from a batch
// that ran and found nothing to merge (summary with zero groups, nil error).
// Individual group failures are counted in the summary and never abort the
// remaining groups.
func (service *service) RunBatch(ctx context.Context) (*Summary, error) {
	records, err := service.store.GetAllRecords()
	if err != nil {
		return nil, fmt.Errorf("aggregation batch aborted, cannot read canonical store: %w", err)
	}

	groups := BuildGroups(records)
	summary := &Summary{GroupsFound: len(groups), RanAt: time.Now()}
	if len(groups) == 0 {
		log.Emit(logger.INFO, "Aggregation batch complete: no duplicate groups found (%d records scanned)\n", len(records))
		service.storeSummary(summary)
		return summary, nil
	}

	if len(groups) > service.maxGroupsPerRun {
		log.Emit(logger.INFO, "Found %d duplicate groups, bounding batch to %d\n", len(groups), service.maxGroupsPerRun)
		groups = groups[:service.maxGroupsPerRun]
	}

	for _, group := range groups {
		// No mid-group cancellation; a group completes or fails whole.
		if ctx.Err() != nil {
			log.Emit(logger.WARNING, "Aggregation batch cancelled after %d/%d groups\n", summary.GroupsProcessed, len(groups))
			break
		}

		result := Consolidate(group)
		if err := service.store.ApplyMerge(result.Primary, result.LoserIDs); err != nil {
			log.Emit(logger.ERROR, "Failed to merge duplicate group %s: %v\n", group.Key, err)
			summary.Errors++
			summary.GroupsProcessed++
			continue
		}

		log.Emit(logger.DEBUG, "Merged group %s: %d members consolidated into %s\n", group.Key, len(group.Members), result.Primary.ID)
		summary.Merged++
		summary.Deleted += len(result.LoserIDs)
		summary.GroupsProcessed++
	}

	log.Emit(logger.SUCCESS, "Aggregation batch complete: %d/%d groups merged, %d records removed, %d errors\n",
		summary.Merged, summary.GroupsProcessed, summary.Deleted, summary.Errors)
	service.storeSummary(summary)
	service.eventBus.Dispatch(event.MERGE_COMPLETE, summary.Merged)

	return summary, nil
}

// LastSummary returns the most recent batch summary, or nil if no batch has
// run since startup.
func (service *service) LastSummary() *Summary {
	service.lastSummaryLock.Lock()
	defer service.lastSummaryLock.Unlock()

	return service.lastSummary
}

func (service *service) storeSummary(summary *Summary) {
	service.lastSummaryLock.Lock()
	defer service.lastSummaryLock.Unlock()

	service.lastSummary = summary
}
