package search_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/medleyhq/medley/internal/event"
	"github.com/medleyhq/medley/internal/search"
	"github.com/medleyhq/medley/internal/title"
	"github.com/medleyhq/medley/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var defaultEventBus = event.New()

func init() {
	logger.SetMinLoggingLevel(logger.ERROR.Level())
}

type mockDataStore struct {
	mock.Mock
}

func (store *mockDataStore) GetRecord(id uuid.UUID) (*title.Record, error) {
	args := store.Called(id)
	if v, ok := args.Get(0).(*title.Record); ok {
		return v, args.Error(1)
	}

	return nil, args.Error(1)
}

func (store *mockDataStore) GetRecords(ids []uuid.UUID) ([]*title.Record, error) {
	args := store.Called(ids)
	//nolint:forcetypeassert
	return args.Get(0).([]*title.Record), args.Error(1)
}

func (store *mockDataStore) GetValidRecords(offset int, limit int) ([]*title.Record, error) {
	args := store.Called(offset, limit)
	//nolint:forcetypeassert
	return args.Get(0).([]*title.Record), args.Error(1)
}

func (store *mockDataStore) SearchRecordTitles(fragment string, limit int) ([]*title.Record, error) {
	args := store.Called(fragment, limit)
	//nolint:forcetypeassert
	return args.Get(0).([]*title.Record), args.Error(1)
}

func indexedRecord(name string) *title.Record {
	return &title.Record{
		ID:        uuid.New(),
		Title:     name,
		TitleNorm: title.NormalizeTitle(name),
		IsValid:   true,
	}
}

func Test_RebuildAll_PopulatesIndexFromStore(t *testing.T) {
	index := newTestIndex(t)
	matrix := indexedRecord("The Matrix")
	inception := indexedRecord("Inception")

	store := new(mockDataStore)
	store.On("GetValidRecords", 0, mock.Anything).Return([]*title.Record{matrix, inception}, nil).Once()
	store.On("GetValidRecords", mock.Anything, mock.Anything).Return([]*title.Record{}, nil)

	sync := search.NewSynchronizer(index, store, defaultEventBus, time.Hour)
	require.NoError(t, sync.RebuildAll(context.Background()))

	ids, err := index.Query(context.Background(), "matrix", 10)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, matrix.ID, ids[0])
}

// A rebuild clears entries whose canonical records no longer exist.
func Test_RebuildAll_ReconcilesDeletedRecords(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()
	require.NoError(t, index.InsertBatch(ctx, []search.Entry{newEntry("Ghost Record")}))

	store := new(mockDataStore)
	store.On("GetValidRecords", mock.Anything, mock.Anything).Return([]*title.Record{}, nil)

	sync := search.NewSynchronizer(index, store, defaultEventBus, time.Hour)
	require.NoError(t, sync.RebuildAll(ctx))

	ids, err := index.Query(ctx, "ghost", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func Test_IndexRecord_IncrementalWrite(t *testing.T) {
	index := newTestIndex(t)
	record := indexedRecord("Arrival")

	store := new(mockDataStore)
	store.On("GetRecord", record.ID).Return(record, nil)

	sync := search.NewSynchronizer(index, store, defaultEventBus, time.Hour)
	require.NoError(t, sync.IndexRecord(context.Background(), record.ID))

	ids, err := index.Query(context.Background(), "arrival", 10)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, record.ID, ids[0])
}

func Test_Search_EnrichesHitsFromCanonicalStore(t *testing.T) {
	index := newTestIndex(t)
	record := indexedRecord("The Matrix")

	store := new(mockDataStore)
	store.On("GetRecord", record.ID).Return(record, nil)
	store.On("GetRecords", []uuid.UUID{record.ID}).Return([]*title.Record{record}, nil)

	sync := search.NewSynchronizer(index, store, defaultEventBus, time.Hour)
	require.NoError(t, sync.IndexRecord(context.Background(), record.ID))

	records, err := sync.Search(context.Background(), "matrix", 10)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, record.ID, records[0].ID)
	store.AssertNotCalled(t, "SearchRecordTitles", mock.Anything, mock.Anything)
}

// Zero index hits fall back to a direct scan of the canonical store, so a
// known-present title is still returned while the index is stale or empty.
func Test_Search_FallsBackToCanonicalStoreOnZeroHits(t *testing.T) {
	index := newTestIndex(t)
	record := indexedRecord("The Matrix")

	store := new(mockDataStore)
	store.On("SearchRecordTitles", "matrix", 10).Return([]*title.Record{record}, nil)

	sync := search.NewSynchronizer(index, store, defaultEventBus, time.Hour)
	records, err := sync.Search(context.Background(), "matrix", 10)

	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, record.ID, records[0].ID)
}

// Fallback hits are ordered by similarity to the query, best first.
func Test_Search_FallbackRanksBySimilarity(t *testing.T) {
	index := newTestIndex(t)
	exact := indexedRecord("Dune")
	loose := indexedRecord("Dune: Part Two Extended Cut")

	store := new(mockDataStore)
	store.On("SearchRecordTitles", "Dune", 10).Return([]*title.Record{loose, exact}, nil)

	sync := search.NewSynchronizer(index, store, defaultEventBus, time.Hour)
	records, err := sync.Search(context.Background(), "Dune", 10)

	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, exact.ID, records[0].ID)
}
