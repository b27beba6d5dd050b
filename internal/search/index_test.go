package search_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/medleyhq/medley/internal/search"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIndex(t *testing.T) *search.Index {
	index, err := search.OpenIndex(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { index.Close() })

	return index
}

func newEntry(titleText string) search.Entry {
	return search.Entry{
		ID:       uuid.New(),
		Title:    titleText,
		Actors:   "Some Actor",
		Director: "Some Director",
		Synopsis: "A film about " + titleText,
	}
}

func Test_Index_InsertAndQuery(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	matrix := newEntry("The Matrix")
	require.NoError(t, index.InsertBatch(ctx, []search.Entry{matrix, newEntry("Inception")}))

	ids, err := index.Query(ctx, "matrix", 10)
	require.NoError(t, err)
	require.Len(t, ids, 1)
	assert.Equal(t, matrix.ID, ids[0])
}

func Test_Index_QueryMatchesDescriptiveFields(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	entry := newEntry("Untitled")
	entry.Director = "Villeneuve"
	require.NoError(t, index.InsertBatch(ctx, []search.Entry{entry}))

	ids, err := index.Query(ctx, "villeneuve", 10)
	require.NoError(t, err)
	assert.Len(t, ids, 1)
}

func Test_Index_Clear(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.InsertBatch(ctx, []search.Entry{newEntry("The Matrix")}))
	require.NoError(t, index.Clear(ctx))

	ids, err := index.Query(ctx, "matrix", 10)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func Test_Index_UpsertReplacesExistingRows(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	entry := newEntry("Old Name")
	require.NoError(t, index.Upsert(ctx, entry))

	entry.Title = "New Name"
	require.NoError(t, index.Upsert(ctx, entry))

	stale, err := index.Query(ctx, "old", 10)
	require.NoError(t, err)
	assert.Empty(t, stale)

	fresh, err := index.Query(ctx, "new", 10)
	require.NoError(t, err)
	require.Len(t, fresh, 1)
	assert.Equal(t, entry.ID, fresh[0])
}

// Match-syntax metacharacters in user input must not break the query.
func Test_Index_QueryToleratesMetacharacters(t *testing.T) {
	index := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, index.InsertBatch(ctx, []search.Entry{newEntry("Plain")}))

	for _, hostile := range []string{`"quoted"`, "AND OR NOT", "a*b", "col:value", "("} {
		_, err := index.Query(ctx, hostile, 10)
		assert.NoErrorf(t, err, "query %q should not error", hostile)
	}
}

func Test_Index_EmptyBatchIsNoop(t *testing.T) {
	index := newTestIndex(t)
	assert.NoError(t, index.InsertBatch(context.Background(), nil))
}
