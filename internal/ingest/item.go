package ingest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/medleyhq/medley/internal/aggregation"
	"github.com/medleyhq/medley/internal/event"
	"github.com/medleyhq/medley/internal/provider"
	"github.com/medleyhq/medley/internal/title"
	"github.com/medleyhq/medley/pkg/logger"
)

type jobState int

const (
	IDLE jobState = iota
	SYNCING
	COMPLETE
)

type (
	// stationJob is one queued sync of a single station. Jobs are claimed
	// by pool workers and are discarded once complete.
	stationJob struct {
		id     uuid.UUID
		ctx    context.Context
		client *provider.Client
		state  jobState
	}

	syncSummary struct {
		fetched   int
		created   int
		refreshed int
		skipped   int
	}
)

// syncStation fetches the stations full record list and upserts each entry
// into the canonical store. Every record failure is a skip; an unreachable
// station yields an empty summary and is retried on the next interval.
func (service *ingestService) syncStation(job *stationJob) syncSummary {
	summary := syncSummary{}
	rawTitles, err := job.client.FetchAll(job.ctx)
	if err != nil {
		log.Emit(logger.ERROR, "Sync of station %s FAILED: %v\n", job.client.Label(), err)
		return summary
	}

	summary.fetched = len(rawTitles)
	for i := range rawTitles {
		if job.ctx.Err() != nil {
			return summary
		}

		created, err := service.ingestRecord(job.client, &rawTitles[i])
		if err != nil {
			log.Emit(logger.DEBUG, "Skipping record %s from station %s: %v\n", rawTitles[i].ID, job.client.Label(), err)
			summary.skipped++
			continue
		}

		if created {
			summary.created++
		} else {
			summary.refreshed++
		}
	}

	return summary
}

// ingestRecord upserts one upstream record: a title not yet present by
// identity key becomes a new canonical record; an existing one has its
// playback sources refreshed from this stations parse and any empty
// descriptive fields filled in.
func (service *ingestService) ingestRecord(client *provider.Client, raw *provider.RawTitle) (bool, error) {
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return false, errors.New("record has no title")
	}

	titleNorm := title.NormalizeTitle(name)
	releaseYear := raw.ReleaseYear()
	playSources := title.PlaySources(raw.PlaySources())

	existing, err := service.store.GetRecordByIdentity(titleNorm, releaseYear)
	if errors.Is(err, title.ErrTitleNotFound) {
		return true, service.createRecord(client, raw, name, titleNorm, releaseYear, playSources)
	} else if err != nil {
		return false, fmt.Errorf("identity lookup failed: %w", err)
	}

	return false, service.refreshRecord(client, raw, existing, playSources)
}

func (service *ingestService) createRecord(
	client *provider.Client,
	raw *provider.RawTitle,
	name string, titleNorm string, releaseYear *int,
	playSources title.PlaySources,
) error {
	record := &title.Record{
		ID:                    uuid.New(),
		Title:                 name,
		TitleNorm:             titleNorm,
		ReleaseYear:           releaseYear,
		Area:                  strings.TrimSpace(raw.Area),
		Actors:                strings.TrimSpace(raw.Actors),
		Director:              strings.TrimSpace(raw.Director),
		Writer:                strings.TrimSpace(raw.Writer),
		Synopsis:              strings.TrimSpace(raw.Synopsis),
		CoverURL:              provider.UpgradeURL(strings.TrimSpace(raw.CoverURL)),
		Category:              service.categoryName(raw.CategoryID.String()),
		PlaySources:           playSources,
		ContributingProviders: pq.StringArray{client.Label()},
		ProviderPriority:      client.Priority(),
	}
	record.QualityScore = aggregation.Score(record)
	record.IsValid = record.HasPlayableURL()

	if err := service.store.SaveRecord(record); err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}

	service.eventBus.Dispatch(event.TITLE_NEW, record.ID)
	return nil
}

func (service *ingestService) refreshRecord(
	client *provider.Client,
	raw *provider.RawTitle,
	record *title.Record,
	playSources title.PlaySources,
) error {
	if record.PlaySources == nil {
		record.PlaySources = title.PlaySources{}
	}

	// This stations parse replaces its own labels outright; episode lists
	// from one provider are complete, so no episode-level union is needed.
	for label, episodes := range playSources {
		record.PlaySources[label] = episodes
	}

	fillIfEmpty(&record.Area, raw.Area)
	fillIfEmpty(&record.Actors, raw.Actors)
	fillIfEmpty(&record.Director, raw.Director)
	fillIfEmpty(&record.Writer, raw.Writer)
	fillIfEmpty(&record.Synopsis, raw.Synopsis)
	fillIfEmpty(&record.CoverURL, provider.UpgradeURL(strings.TrimSpace(raw.CoverURL)))
	fillIfEmpty(&record.Category, service.categoryName(raw.CategoryID.String()))

	if !slices.Contains(record.ContributingProviders, client.Label()) {
		record.ContributingProviders = append(record.ContributingProviders, client.Label())
	}
	if client.Priority() > record.ProviderPriority {
		record.ProviderPriority = client.Priority()
	}

	record.QualityScore = aggregation.Score(record)
	record.IsValid = record.HasPlayableURL()

	if err := service.store.SaveRecord(record); err != nil {
		return fmt.Errorf("failed to refresh record %s: %w", record.ID, err)
	}

	service.eventBus.Dispatch(event.TITLE_UPDATE, record.ID)
	return nil
}

// categoryName maps a stations numeric category id to the unified category
// name from config; unmapped ids yield an empty category rather than leaking
// provider-specific ids into the canonical store.
func (service *ingestService) categoryName(categoryID string) string {
	if name, ok := service.categories[categoryID]; ok {
		return name
	}

	return ""
}

func fillIfEmpty(target *string, value string) {
	if strings.TrimSpace(*target) == "" {
		*target = strings.TrimSpace(value)
	}
}
