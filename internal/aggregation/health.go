package aggregation

import (
	"fmt"
	"time"

	"github.com/medleyhq/medley/internal/title"
)

// Health classification thresholds. A breach of a critical threshold marks
// the whole pipeline critical; any other breached threshold marks it warning.
const (
	validRateWarningFloor  = 0.8
	validRateCriticalFloor = 0.5

	averageScoreWarningFloor  = 40.0
	averageScoreCriticalFloor = 20.0
)

type (
	HealthStatus string

	// StatsStore is the read-only slice of the canonical store the health
	// monitor consumes. The monitor is never on the write path.
	StatsStore interface {
		GetStats() (*title.Stats, error)
		GetProviderDistribution() ([]title.Distribution, error)
		GetCategoryDistribution() ([]title.Distribution, error)
		GetScoreDistribution() ([]title.Distribution, error)
	}

	// HealthSnapshot is the reporting surface consumed by external
	// monitoring: aggregate counts, distributions, and a threshold-derived
	// classification with a human-readable issue per breached threshold.
	HealthSnapshot struct {
		Status         HealthStatus         `json:"status"`
		Issues         []string             `json:"issues"`
		TotalRecords   int                  `json:"total_records"`
		ValidRecords   int                  `json:"valid_records"`
		InvalidRecords int                  `json:"invalid_records"`
		ValidRate      float64              `json:"valid_rate"`
		AverageScore   float64              `json:"average_score"`
		ScoreBuckets   []title.Distribution `json:"score_buckets"`
		ProviderCounts []title.Distribution `json:"provider_counts"`
		CategoryCounts []title.Distribution `json:"category_counts"`
		LastIngestedAt *time.Time           `json:"last_ingested_at"`
		LastBatch      *Summary             `json:"last_batch"`
	}

	HealthMonitor struct {
		store        StatsStore
		ingestPeriod time.Duration
	}
)

const (
	HealthyStatus  HealthStatus = "healthy"
	WarningStatus  HealthStatus = "warning"
	CriticalStatus HealthStatus = "critical"
)

// NewHealthMonitor constructs a monitor which expects at least one record to
// have been written within each ingestPeriod window.
func NewHealthMonitor(store StatsStore, ingestPeriod time.Duration) *HealthMonitor {
	return &HealthMonitor{store: store, ingestPeriod: ingestPeriod}
}

// Snapshot reads the canonical store aggregates and classifies pipeline
// health. The lastBatch summary is provided by the batch runner (nil if no
// batch has run yet) and embedded for reporting only; it does not influence
// the classification.
func (monitor *HealthMonitor) Snapshot(lastBatch *Summary) (*HealthSnapshot, error) {
	stats, err := monitor.store.GetStats()
	if err != nil {
		return nil, fmt.Errorf("failed to read store statistics: %w", err)
	}

	scoreBuckets, err := monitor.store.GetScoreDistribution()
	if err != nil {
		return nil, fmt.Errorf("failed to read score distribution: %w", err)
	}

	providerCounts, err := monitor.store.GetProviderDistribution()
	if err != nil {
		return nil, fmt.Errorf("failed to read provider distribution: %w", err)
	}

	categoryCounts, err := monitor.store.GetCategoryDistribution()
	if err != nil {
		return nil, fmt.Errorf("failed to read category distribution: %w", err)
	}

	snapshot := &HealthSnapshot{
		TotalRecords:   stats.TotalCount,
		ValidRecords:   stats.ValidCount,
		InvalidRecords: stats.TotalCount - stats.ValidCount,
		AverageScore:   stats.AverageScore,
		ScoreBuckets:   scoreBuckets,
		ProviderCounts: providerCounts,
		CategoryCounts: categoryCounts,
		LastIngestedAt: stats.NewestUpdate,
		LastBatch:      lastBatch,
		Issues:         []string{},
	}
	if stats.TotalCount > 0 {
		snapshot.ValidRate = float64(stats.ValidCount) / float64(stats.TotalCount)
	}

	snapshot.Status = monitor.classify(snapshot)
	return snapshot, nil
}

func (monitor *HealthMonitor) classify(snapshot *HealthSnapshot) HealthStatus {
	status := HealthyStatus
	raise := func(to HealthStatus, issue string) {
		snapshot.Issues = append(snapshot.Issues, issue)
		if to == CriticalStatus || status == CriticalStatus {
			status = CriticalStatus
		} else {
			status = WarningStatus
		}
	}

	// An empty store is healthy; thresholds only apply once data exists.
	if snapshot.TotalRecords == 0 {
		return status
	}

	switch {
	case snapshot.ValidRate < validRateCriticalFloor:
		raise(CriticalStatus, fmt.Sprintf("valid-record rate %.2f is below the critical floor of %.2f", snapshot.ValidRate, validRateCriticalFloor))
	case snapshot.ValidRate < validRateWarningFloor:
		raise(WarningStatus, fmt.Sprintf("valid-record rate %.2f is below the expected floor of %.2f", snapshot.ValidRate, validRateWarningFloor))
	}

	switch {
	case snapshot.AverageScore < averageScoreCriticalFloor:
		raise(CriticalStatus, fmt.Sprintf("average quality score %.1f is below the critical floor of %.1f", snapshot.AverageScore, averageScoreCriticalFloor))
	case snapshot.AverageScore < averageScoreWarningFloor:
		raise(WarningStatus, fmt.Sprintf("average quality score %.1f is below the expected floor of %.1f", snapshot.AverageScore, averageScoreWarningFloor))
	}

	if snapshot.LastIngestedAt == nil {
		raise(WarningStatus, "no records have ever been ingested")
	} else if staleness := time.Since(*snapshot.LastIngestedAt); staleness > monitor.ingestPeriod {
		raise(WarningStatus, fmt.Sprintf("no new records ingested in the last %s (expected at least one per %s)", staleness.Round(time.Minute), monitor.ingestPeriod))
	}

	return status
}
