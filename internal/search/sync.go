package search

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/google/uuid"
	"github.com/medleyhq/medley/internal/event"
	"github.com/medleyhq/medley/internal/title"
	"github.com/medleyhq/medley/pkg/logger"
)

var log = logger.Get("Search")

const (
	rebuildBatchSize   = 500
	defaultSearchLimit = 30
)

type (
	// DataStore is the slice of the canonical store the synchronizer reads.
	DataStore interface {
		GetRecord(id uuid.UUID) (*title.Record, error)
		GetRecords(ids []uuid.UUID) ([]*title.Record, error)
		GetValidRecords(offset int, limit int) ([]*title.Record, error)
		SearchRecordTitles(fragment string, limit int) ([]*title.Record, error)
	}

	// Synchronizer keeps the search index trailing the canonical store:
	// incremental writes as records are created or updated, and periodic
	// full rebuilds to reconcile entries for records deleted by merges. The
	// index is an optimization with a bounded staleness window, never a
	// source of truth.
	Synchronizer struct {
		index           *Index
		store           DataStore
		eventBus        event.EventDispatcher
		rebuildInterval time.Duration
		rebuildRequests event.HandlerChannel
	}
)

func NewSynchronizer(index *Index, store DataStore, eventBus event.EventDispatcher, rebuildInterval time.Duration) *Synchronizer {
	return &Synchronizer{
		index:           index,
		store:           store,
		eventBus:        eventBus,
		rebuildInterval: rebuildInterval,
		rebuildRequests: make(event.HandlerChannel, 4),
	}
}

// RegisterEventHandlers subscribes the synchronizer to the events that drive
// it: record creation/update triggers an incremental index write, and a
// completed merge batch schedules a rebuild to reap the losers index rows.
func (sync *Synchronizer) RegisterEventHandlers(eventBus event.EventHandler) {
	eventBus.RegisterAsyncHandlerFunction(event.TITLE_NEW, sync.handleTitleEvent)
	eventBus.RegisterAsyncHandlerFunction(event.TITLE_UPDATE, sync.handleTitleEvent)
	eventBus.RegisterHandlerChannel(sync.rebuildRequests, event.MERGE_COMPLETE)
}

// Run performs an initial rebuild and then rebuilds whenever the interval
// elapses or a merge batch completes, until the context is cancelled.
func (sync *Synchronizer) Run(ctx context.Context) error {
	if err := sync.RebuildAll(ctx); err != nil {
		log.Emit(logger.ERROR, "Initial search index rebuild FAILED: %v\n", err)
	}

	ticker := time.NewTicker(sync.rebuildInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			sync.tryRebuild(ctx)
		case message := <-sync.rebuildRequests:
			if merged, ok := message.Payload.(int); ok && merged == 0 {
				continue
			}

			sync.tryRebuild(ctx)
		case <-ctx.Done():
			return nil
		}
	}
}

func (sync *Synchronizer) tryRebuild(ctx context.Context) {
	// Sync-level failures are logged and left for the next cycle; the
	// canonical store remains authoritative throughout.
	if err := sync.RebuildAll(ctx); err != nil && !errors.Is(err, context.Canceled) {
		log.Emit(logger.ERROR, "Search index rebuild FAILED (will retry next cycle): %v\n", err)
	}
}

// RebuildAll clears the index and repopulates it from the canonical store in
// bounded batches. Queries issued during the clear phase may see zero hits;
// the caller-side fallback (Search) keeps results available regardless.
func (sync *Synchronizer) RebuildAll(ctx context.Context) error {
	if err := sync.index.Clear(ctx); err != nil {
		return err
	}

	indexed := 0
	for offset := 0; ; offset += rebuildBatchSize {
		records, err := sync.store.GetValidRecords(offset, rebuildBatchSize)
		if err != nil {
			return fmt.Errorf("failed to read canonical records for index rebuild: %w", err)
		}

		if len(records) == 0 {
			break
		}

		entries := make([]Entry, 0, len(records))
		for _, record := range records {
			entries = append(entries, EntryFromRecord(record))
		}

		if err := sync.index.InsertBatch(ctx, entries); err != nil {
			return err
		}

		indexed += len(entries)
	}

	log.Emit(logger.SUCCESS, "Search index rebuilt with %d entries\n", indexed)
	sync.eventBus.Dispatch(event.SYNC_COMPLETE, indexed)
	return nil
}

// IndexRecord incrementally writes one record into the index.
func (sync *Synchronizer) IndexRecord(ctx context.Context, id uuid.UUID) error {
	record, err := sync.store.GetRecord(id)
	if err != nil {
		return fmt.Errorf("cannot index record %s: %w", id, err)
	}

	return sync.index.Upsert(ctx, EntryFromRecord(record))
}

// Search queries the index and enriches the hits from the canonical store,
// preserving the index's ranking. When the index errors or yields zero hits
// the canonical store is scanned directly, making the index an optimization
// rather than a correctness dependency.
func (sync *Synchronizer) Search(ctx context.Context, query string, limit int) ([]*title.Record, error) {
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	ids, err := sync.index.Query(ctx, query, limit)
	if err != nil {
		log.Emit(logger.WARNING, "Search index query failed (%v), falling back to canonical store scan\n", err)
		return sync.fallbackSearch(query, limit)
	}

	if len(ids) == 0 {
		return sync.fallbackSearch(query, limit)
	}

	records, err := sync.store.GetRecords(ids)
	if err != nil {
		return nil, err
	}

	rank := make(map[uuid.UUID]int, len(ids))
	for position, id := range ids {
		rank[id] = position
	}
	sort.Slice(records, func(i, j int) bool { return rank[records[i].ID] < rank[records[j].ID] })

	return records, nil
}

// fallbackSearch scans the canonical store's titles directly and orders the
// hits by textual similarity to the query, since the store itself only
// provides an unranked substring match.
func (sync *Synchronizer) fallbackSearch(query string, limit int) ([]*title.Record, error) {
	records, err := sync.store.SearchRecordTitles(query, limit)
	if err != nil {
		return nil, fmt.Errorf("canonical store fallback search failed: %w", err)
	}

	similarity := metrics.NewJaroWinkler()
	sort.SliceStable(records, func(i, j int) bool {
		return strutil.Similarity(query, records[i].Title, similarity) > strutil.Similarity(query, records[j].Title, similarity)
	})

	return records, nil
}

func (sync *Synchronizer) handleTitleEvent(ev event.Event, payload event.Payload) {
	id, ok := payload.(uuid.UUID)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	if err := sync.IndexRecord(ctx, id); err != nil {
		log.Emit(logger.WARNING, "Incremental index write for %s event failed: %v\n", ev, err)
	}
}
