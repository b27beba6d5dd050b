package internal

import (
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/medleyhq/medley/internal/database"
	"github.com/medleyhq/medley/internal/title"
)

// storeOrchestrator is the single place that binds the dumb data stores to
// the live database connection. Consumers depend on narrow slices of this
// type (declared interface-side in each service package); transactional
// groupings of store calls live here and nowhere else.
type storeOrchestrator struct {
	db         database.Manager
	TitleStore *title.Store
}

func newStoreOrchestrator(db database.Manager) *storeOrchestrator {
	return &storeOrchestrator{
		db:         db,
		TitleStore: title.NewStore(),
	}
}

func (store *storeOrchestrator) GetRecord(id uuid.UUID) (*title.Record, error) {
	return store.TitleStore.Get(store.db.GetSqlxDb(), id)
}

func (store *storeOrchestrator) GetRecords(ids []uuid.UUID) ([]*title.Record, error) {
	return store.TitleStore.GetMany(store.db.GetSqlxDb(), ids)
}

func (store *storeOrchestrator) GetAllRecords() ([]*title.Record, error) {
	return store.TitleStore.GetAll(store.db.GetSqlxDb())
}

func (store *storeOrchestrator) GetValidRecords(offset int, limit int) ([]*title.Record, error) {
	return store.TitleStore.GetAllValid(store.db.GetSqlxDb(), offset, limit)
}

func (store *storeOrchestrator) GetRecordByIdentity(titleNorm string, releaseYear *int) (*title.Record, error) {
	return store.TitleStore.GetByIdentity(store.db.GetSqlxDb(), titleNorm, releaseYear)
}

func (store *storeOrchestrator) SaveRecord(record *title.Record) error {
	return store.TitleStore.Save(store.db.GetSqlxDb(), record)
}

func (store *storeOrchestrator) SearchRecordTitles(fragment string, limit int) ([]*title.Record, error) {
	return store.TitleStore.SearchByTitle(store.db.GetSqlxDb(), fragment, limit)
}

// ApplyMerge persists the outcome of one duplicate-group consolidation: the
// survivors update and the losers deletion are committed as one transaction
// so a partial merge can never be observed by readers. A crash before commit
// leaves the group intact for the next batch, which re-derives the same
// merge (consolidation is deterministic).
func (store *storeOrchestrator) ApplyMerge(primary *title.Record, loserIDs []uuid.UUID) error {
	return store.db.WrapTx(func(tx *sqlx.Tx) error {
		if err := store.TitleStore.Save(tx, primary); err != nil {
			return err
		}

		return store.TitleStore.DeleteMany(tx, loserIDs)
	})
}

func (store *storeOrchestrator) GetStats() (*title.Stats, error) {
	return store.TitleStore.GetStats(store.db.GetSqlxDb())
}

func (store *storeOrchestrator) GetProviderDistribution() ([]title.Distribution, error) {
	return store.TitleStore.GetProviderDistribution(store.db.GetSqlxDb())
}

func (store *storeOrchestrator) GetCategoryDistribution() ([]title.Distribution, error) {
	return store.TitleStore.GetCategoryDistribution(store.db.GetSqlxDb())
}

func (store *storeOrchestrator) GetScoreDistribution() ([]title.Distribution, error) {
	return store.TitleStore.GetScoreDistribution(store.db.GetSqlxDb())
}
