// Package changelog implements the control-surface query operations
// over change logs (spec §6): list, statistics, compare. These sit
// above C4's storage.ChangeLogStore rather than inside the Change
// Detector itself, which only produces ChangeLog rows — it never
// queries across them. Grounded on the original vigilant backend's
// backend/app/api/changelogs/statistics.py aggregation shape
// (totals-by-type, size aggregates, bucketed frequency series,
// top-N watchers) and the teacher's internal/storage query-then-
// aggregate-in-Go style (no aggregation pushed into badgerhold).
package changelog

import (
	"context"
	"sort"
	"time"

	"github.com/GabriWar/vigilant/internal/errs"
	"github.com/GabriWar/vigilant/internal/models"
	"github.com/GabriWar/vigilant/internal/storage"
)

// GroupBy is the bucketing granularity for Statistics' frequency
// series (spec §6).
type GroupBy string

const (
	GroupByDay   GroupBy = "day"
	GroupByWeek  GroupBy = "week"
	GroupByMonth GroupBy = "month"
)

// SizeStats aggregates NewSize across the matched change logs.
type SizeStats struct {
	Avg float64
	Min int
	Max int
	Sum int
}

// FrequencyBucket is one point in the time-bucketed change frequency
// series.
type FrequencyBucket struct {
	Period string
	Count  int
}

// WatcherChangeCount is one row of the top-10-by-change_count ranking.
type WatcherChangeCount struct {
	WatcherID   int64
	ChangeCount int
}

// Statistics is changelog.statistics's return value (spec §6).
type Statistics struct {
	TotalsByType map[models.ChangeType]int
	Size         SizeStats
	Frequency    []FrequencyBucket
	TopWatchers  []WatcherChangeCount
}

// Service implements the control-surface operations over change logs.
type Service struct {
	changelogs storage.ChangeLogStore
}

func New(changelogs storage.ChangeLogStore) *Service {
	return &Service{changelogs: changelogs}
}

// List runs changelog.list(filters) (spec §6) directly against the
// store; filter translation to badgerhold query terms happens in
// internal/storage/badger.
func (s *Service) List(ctx context.Context, filter storage.ChangeLogFilter) ([]*models.ChangeLog, error) {
	return s.changelogs.List(ctx, filter)
}

// Statistics runs changelog.statistics(watcher_id?, date_from?,
// date_to?, group_by) (spec §6): totals per change_type, size
// aggregates over new_size, a frequency series bucketed by group_by,
// and the top-10 watchers by change_count in range.
func (s *Service) Statistics(ctx context.Context, watcherID *int64, dateFrom, dateTo *time.Time, groupBy GroupBy) (*Statistics, error) {
	filter := storage.ChangeLogFilter{DateFrom: dateFrom, DateTo: dateTo}
	if watcherID != nil {
		filter.WatcherID = *watcherID
	}
	rows, err := s.changelogs.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	stats := &Statistics{TotalsByType: map[models.ChangeType]int{}}
	changeCountByWatcher := map[int64]int{}
	bucketCounts := map[string]int{}

	var sizeSum, sizeCount int
	sizeMin, sizeMax := 0, 0
	first := true

	for _, row := range rows {
		stats.TotalsByType[row.ChangeType]++
		if row.ChangeType == models.ChangeNew || row.ChangeType == models.ChangeModified {
			changeCountByWatcher[row.WatcherID]++
		}

		if row.NewSize > 0 {
			sizeSum += row.NewSize
			sizeCount++
			if first {
				sizeMin, sizeMax = row.NewSize, row.NewSize
				first = false
			} else {
				if row.NewSize < sizeMin {
					sizeMin = row.NewSize
				}
				if row.NewSize > sizeMax {
					sizeMax = row.NewSize
				}
			}
		}

		bucketCounts[bucketKey(row.DetectedAt, groupBy)]++
	}

	if sizeCount > 0 {
		stats.Size = SizeStats{Avg: float64(sizeSum) / float64(sizeCount), Min: sizeMin, Max: sizeMax, Sum: sizeSum}
	}

	for period, count := range bucketCounts {
		stats.Frequency = append(stats.Frequency, FrequencyBucket{Period: period, Count: count})
	}
	sort.Slice(stats.Frequency, func(i, j int) bool { return stats.Frequency[i].Period < stats.Frequency[j].Period })

	for id, count := range changeCountByWatcher {
		stats.TopWatchers = append(stats.TopWatchers, WatcherChangeCount{WatcherID: id, ChangeCount: count})
	}
	sort.Slice(stats.TopWatchers, func(i, j int) bool { return stats.TopWatchers[i].ChangeCount > stats.TopWatchers[j].ChangeCount })
	if len(stats.TopWatchers) > 10 {
		stats.TopWatchers = stats.TopWatchers[:10]
	}

	return stats, nil
}

func bucketKey(t time.Time, groupBy GroupBy) string {
	switch groupBy {
	case GroupByWeek:
		year, week := t.ISOWeek()
		return time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, (week-1)*7).Format("2006-01-02")
	case GroupByMonth:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

// Compare runs changelog.compare(ids[2..5]) (spec §6): returns the
// selected logs ordered by detected_at. 2-5 ids is a control-surface
// validation rule, enforced here rather than at storage.
func (s *Service) Compare(ctx context.Context, ids []int64) ([]*models.ChangeLog, error) {
	if len(ids) < 2 || len(ids) > 5 {
		return nil, errs.New(errs.Validation, "changelog.compare", nil)
	}
	rows := make([]*models.ChangeLog, 0, len(ids))
	for _, id := range ids {
		row, err := s.changelogs.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].DetectedAt.Before(rows[j].DetectedAt) })
	return rows, nil
}
