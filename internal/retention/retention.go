package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/multierr"

	"github.com/mr1hm/go-weather-warnings/internal/feed"
	"github.com/mr1hm/go-weather-warnings/internal/repository"
)

// Result reports what one retention run did. RecordsPurged counts warning
// records only; purged report-file rows are tallied separately.
type Result struct {
	RecordsSoftDeleted int64
	RecordsPurged      int64
	ReportRowsPurged   int64
	FilesQuarantined   int
	FilesPurged        int
}

// Manager ages out cancelled warning state and cached report files in two
// phases: a soft-delete pass after the grace period, then a physical purge
// after the retention window. Both sweeps are idempotent and a failure on
// one item never stops the sweep over the rest.
type Manager struct {
	warnings repository.WarningRepository
	reports  repository.ReportFileRepository
	cache    *feed.FileCache
	grace    time.Duration
	window   time.Duration
	clock    clockwork.Clock
}

func NewManager(warnings repository.WarningRepository, reports repository.ReportFileRepository,
	cache *feed.FileCache, grace, window time.Duration, clock clockwork.Clock) *Manager {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		warnings: warnings,
		reports:  reports,
		cache:    cache,
		grace:    grace,
		window:   window,
		clock:    clock,
	}
}

func (m *Manager) Run(ctx context.Context) (Result, error) {
	var res Result
	now := m.clock.Now()

	softErr := m.softDeleteSweep(ctx, now, &res)
	purgeErr := m.purgeSweep(ctx, now, &res)

	return res, multierr.Append(softErr, purgeErr)
}

// softDeleteSweep marks cancelled records past the grace period as deleted
// and quarantines cache files whose metadata has aged out. Report URLs are
// one-shot, so any row not fetched within the grace period is superseded;
// the outer feed row is touched every tick and never ages here.
func (m *Manager) softDeleteSweep(ctx context.Context, now time.Time, res *Result) error {
	cutoff := now.Add(-m.grace)

	n, err := m.warnings.SoftDeleteCancelledBefore(ctx, cutoff, now)
	if err != nil {
		return err
	}
	res.RecordsSoftDeleted = n

	stale, err := m.reports.ListReportFilesBefore(ctx, cutoff)
	if err != nil {
		return err
	}

	var errs error
	for _, rf := range stale {
		if err := m.cache.Quarantine(rf.FileName, now); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if err := m.reports.SoftDeleteReportFile(ctx, rf.ID, now); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		res.FilesQuarantined++
	}
	return errs
}

// purgeSweep permanently removes soft-deleted rows and quarantined files
// older than the retention window. Files are only ever unlinked from
// quarantine, never from the live cache.
func (m *Manager) purgeSweep(ctx context.Context, now time.Time, res *Result) error {
	cutoff := now.Add(-m.window)
	var errs error

	n, err := m.warnings.PurgeWarningsDeletedBefore(ctx, cutoff)
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	res.RecordsPurged = n

	n, err = m.reports.PurgeReportFilesDeletedBefore(ctx, cutoff)
	if err != nil {
		errs = multierr.Append(errs, err)
	}
	res.ReportRowsPurged = n

	names, err := m.cache.QuarantinedBefore(cutoff)
	if err != nil {
		return multierr.Append(errs, err)
	}
	for _, name := range names {
		if err := m.cache.RemoveQuarantined(name); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		slog.Debug("purged quarantined file", "file", name)
		res.FilesPurged++
	}
	return errs
}
