package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"

	"github.com/mr1hm/go-weather-warnings/internal/config"
	"github.com/mr1hm/go-weather-warnings/internal/detector"
	"github.com/mr1hm/go-weather-warnings/internal/feed"
	"github.com/mr1hm/go-weather-warnings/internal/models"
	"github.com/mr1hm/go-weather-warnings/internal/notify"
	"github.com/mr1hm/go-weather-warnings/internal/observability"
	"github.com/mr1hm/go-weather-warnings/internal/report"
	"github.com/mr1hm/go-weather-warnings/internal/repository"
	"github.com/mr1hm/go-weather-warnings/internal/retention"
)

// feedFileName is the cache name for the outer feed document.
const feedFileName = "extra.xml"

// Options wires the watcher's collaborators. Clock defaults to real time.
type Options struct {
	FeedURL         string
	Targets         []config.MonitorTarget
	PollInterval    time.Duration
	CleanupSchedule string

	Fetcher    *feed.Fetcher
	Cache      *feed.FileCache
	Reports    repository.ReportFileRepository
	Detector   *detector.Detector
	Retention  *retention.Manager
	Dispatcher *notify.Dispatcher
	Metrics    *observability.Metrics
	Clock      clockwork.Clock
}

// Watcher drives the check tick and the cleanup tick. One mutex guards both
// tick bodies so they never overlap against the same storage; a tick that
// overruns its interval delays the next one instead of running concurrently.
type Watcher struct {
	opts    Options
	offices []string
	clock   clockwork.Clock

	mu   sync.Mutex
	cron *cron.Cron
	wg   sync.WaitGroup
}

func New(opts Options) *Watcher {
	clock := opts.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	offices := make([]string, 0, len(opts.Targets))
	for _, t := range opts.Targets {
		offices = append(offices, t.Office)
	}

	return &Watcher{
		opts:    opts,
		offices: offices,
		clock:   clock,
	}
}

// Start runs one check tick immediately, then schedules the poll loop and
// the daily cleanup.
func (w *Watcher) Start(ctx context.Context) error {
	w.opts.Dispatcher.Start(ctx)

	w.CheckTick(ctx)

	w.wg.Add(1)
	go w.run(ctx)

	w.cron = cron.New()
	if _, err := w.cron.AddFunc(w.opts.CleanupSchedule, func() {
		w.CleanupTick(context.Background())
	}); err != nil {
		return fmt.Errorf("error scheduling cleanup: %w", err)
	}
	w.cron.Start()

	slog.Info("watcher started",
		"poll_interval", w.opts.PollInterval,
		"cleanup_schedule", w.opts.CleanupSchedule,
		"offices", strings.Join(w.offices, ","))
	return nil
}

func (w *Watcher) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("watcher poll loop shutting down")
			return
		case <-ticker.C:
			w.CheckTick(ctx)
		}
	}
}

// Stop waits for an in-flight tick to finish and drains the dispatcher.
func (w *Watcher) Stop() {
	if w.cron != nil {
		<-w.cron.Stop().Done()
	}
	w.wg.Wait()
	w.opts.Dispatcher.Stop()
	slog.Info("watcher stopped")
}

// CheckTick fetches the outer feed conditionally and, when it changed,
// processes any new report per monitored office. Fetch failures end the
// tick with state untouched; the next tick retries naturally.
func (w *Watcher) CheckTick(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.opts.Metrics.TicksTotal.Inc()
	now := w.clock.Now()

	meta, err := w.opts.Reports.GetReportFile(ctx, w.opts.FeedURL)
	if err != nil {
		slog.Error("error loading feed metadata", "error", err)
		return
	}
	validator := ""
	if meta != nil && !meta.IsDeleted {
		validator = meta.LastModified
	}

	res, err := w.opts.Fetcher.Fetch(ctx, w.opts.FeedURL, validator)
	if err != nil {
		w.opts.Metrics.FetchErrors.Inc()
		slog.Error("feed fetch failed", "url", w.opts.FeedURL, "error", err)
		return
	}

	if res.NotModified {
		w.opts.Metrics.FeedNotModified.Inc()
		if err := w.opts.Reports.TouchReportFetched(ctx, w.opts.FeedURL, now); err != nil {
			slog.Error("error touching feed metadata", "error", err)
		}
		w.opts.Metrics.LastTickUnix.Set(float64(now.Unix()))
		slog.Debug("feed not modified")
		return
	}

	if _, err := w.opts.Cache.Write(feedFileName, res.Body); err != nil {
		slog.Error("error caching feed", "error", err)
		return
	}

	refs, err := feed.FindLatestReports(res.Body, w.offices)
	if err != nil {
		w.opts.Metrics.ParseErrors.Inc()
		slog.Error("error scanning feed", "error", err)
		return
	}

	failed := false
	for _, target := range w.opts.Targets {
		ref, ok := refs[target.Office]
		if !ok {
			continue
		}
		if err := w.processReport(ctx, target, ref, now); err != nil {
			failed = true
		}
	}

	// The validator is committed only once every monitored report landed.
	// A withheld validator makes the next conditional GET answer 200 again,
	// and reports that did land are skipped by their stored one-shot URLs,
	// so only the failed ones are refetched.
	if failed {
		slog.Warn("feed validator withheld, a report fetch failed")
	} else if err := w.opts.Reports.PutReportFile(ctx, feedRow(w.opts.FeedURL, res.LastModified, now)); err != nil {
		slog.Error("error storing feed metadata", "error", err)
		return
	}

	w.opts.Metrics.LastTickUnix.Set(float64(now.Unix()))
}

// processReport fetches and diffs one report. A non-nil return means a
// transient failure before the report row was stored, so the caller must
// withhold the feed validator and let the next tick retry.
func (w *Watcher) processReport(ctx context.Context, target config.MonitorTarget, ref feed.ReportRef, now time.Time) error {
	existing, err := w.opts.Reports.GetReportFile(ctx, ref.URL)
	if err != nil {
		slog.Error("error checking report", "url", ref.URL, "error", err)
		return err
	}
	if existing != nil {
		// Report URL already seen; each report has a one-shot URL.
		return nil
	}

	res, err := w.opts.Fetcher.Fetch(ctx, ref.URL, "")
	if err != nil {
		w.opts.Metrics.FetchErrors.Inc()
		slog.Error("report fetch failed", "url", ref.URL, "error", err)
		return err
	}

	fileName := path.Base(ref.URL)
	if _, err := w.opts.Cache.Write(fileName, res.Body); err != nil {
		slog.Error("error caching report", "file", fileName, "error", err)
		return err
	}
	if err := w.opts.Reports.PutReportFile(ctx, reportRow(ref, fileName, res.LastModified, now)); err != nil {
		slog.Error("error storing report metadata", "url", ref.URL, "error", err)
		return err
	}
	w.opts.Metrics.ReportsFetched.Inc()

	parsed, perr := report.Parse(res.Body, fileName, target.Cities)
	if perr != nil {
		skipped := len(multierr.Errors(perr))
		w.opts.Metrics.ParseErrors.Add(float64(skipped))
		slog.Warn("report parsed with errors", "file", fileName, "skipped", skipped, "error", perr)
	}

	transitions, err := w.opts.Detector.Diff(ctx, parsed)
	if err != nil {
		slog.Error("state diff aborted", "file", fileName, "error", err)
	}
	for _, t := range transitions {
		w.opts.Metrics.Transitions.WithLabelValues(strings.ToLower(string(t.Kind))).Inc()
		w.opts.Dispatcher.Submit(t)
	}

	slog.Info("report processed",
		"office", target.Office,
		"file", fileName,
		"parsed", len(parsed),
		"transitions", len(transitions))
	return nil
}

func feedRow(url, lastModified string, now time.Time) *models.ReportFile {
	return &models.ReportFile{
		URL:          url,
		FileName:     feedFileName,
		LastModified: lastModified,
		FetchedAt:    now,
		UpdatedAt:    now,
	}
}

func reportRow(ref feed.ReportRef, fileName, lastModified string, now time.Time) *models.ReportFile {
	return &models.ReportFile{
		URL:          ref.URL,
		LMO:          ref.Office,
		FileName:     fileName,
		LastModified: lastModified,
		FetchedAt:    now,
		UpdatedAt:    now,
	}
}

// CleanupTick runs the retention sweeps under the same tick mutex.
func (w *Watcher) CleanupTick(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()

	res, err := w.opts.Retention.Run(ctx)
	w.opts.Metrics.RetentionRuns.Inc()
	w.opts.Metrics.RecordsPurged.Add(float64(res.RecordsPurged))
	w.opts.Metrics.FilesQuarantined.Add(float64(res.FilesQuarantined))
	if err != nil {
		slog.Error("cleanup completed with errors", "error", err)
	}
	slog.Info("cleanup complete",
		"records_soft_deleted", res.RecordsSoftDeleted,
		"records_purged", res.RecordsPurged,
		"report_rows_purged", res.ReportRowsPurged,
		"files_quarantined", res.FilesQuarantined,
		"files_purged", res.FilesPurged)
}
