package repository

import (
	"context"
	"time"

	"github.com/mr1hm/go-weather-warnings/internal/models"
)

// WarningRepository is the durable record of last known warning state.
// GetWarning never returns soft-deleted records; they are invisible to
// comparison until the retention purge removes them for good.
type WarningRepository interface {
	GetWarning(ctx context.Context, city, kind string) (*models.WarningRecord, error)
	UpsertWarning(ctx context.Context, rec *models.WarningRecord) error
	SoftDeleteWarning(ctx context.Context, city, kind string, now time.Time) error
	SoftDeleteCancelledBefore(ctx context.Context, cutoff, now time.Time) (int64, error)
	PurgeWarningsDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// ReportFileRepository tracks fetched documents and their cache metadata.
type ReportFileRepository interface {
	GetReportFile(ctx context.Context, url string) (*models.ReportFile, error)
	PutReportFile(ctx context.Context, rf *models.ReportFile) error
	TouchReportFetched(ctx context.Context, url string, at time.Time) error
	ListReportFilesBefore(ctx context.Context, cutoff time.Time) ([]models.ReportFile, error)
	SoftDeleteReportFile(ctx context.Context, id int64, now time.Time) error
	PurgeReportFilesDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
