package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mr1hm/go-weather-warnings/internal/models"
)

type SQLiteDB struct {
	db *sql.DB
}

func NewSQLiteDB(path string) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("error while pinging database: %w", err)
	}

	s := &SQLiteDB{
		db: db,
	}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("error while migrating to database: %w", err)
	}

	return s, nil
}

func (s *SQLiteDB) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS warning_records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			city TEXT NOT NULL,
			lmo TEXT NOT NULL,
			kind TEXT NOT NULL,
			status TEXT NOT NULL,
			xml_file TEXT NOT NULL,
			is_deleted INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS report_files (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			url TEXT NOT NULL UNIQUE,
			lmo TEXT NOT NULL,
			file_name TEXT NOT NULL,
			last_modified TEXT NOT NULL DEFAULT '',
			is_deleted INTEGER NOT NULL DEFAULT 0,
			fetched_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_warning_active
			ON warning_records(city, kind) WHERE is_deleted = 0;
		CREATE INDEX IF NOT EXISTS idx_warning_status ON warning_records(status, is_deleted);
		CREATE INDEX IF NOT EXISTS idx_report_fetched ON report_files(fetched_at, is_deleted);
  	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

func (s *SQLiteDB) GetWarning(ctx context.Context, city, kind string) (*models.WarningRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, city, lmo, kind, status, xml_file, is_deleted, created_at, updated_at
		FROM warning_records
		WHERE city = ? AND kind = ? AND is_deleted = 0`, city, kind)

	var rec models.WarningRecord
	var status string
	err := row.Scan(&rec.ID, &rec.City, &rec.LMO, &rec.Kind, &status, &rec.XMLFile,
		&rec.IsDeleted, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying warning record: %w", err)
	}
	rec.Status = models.WarningStatus(status)
	return &rec, nil
}

// UpsertWarning replaces the single non-deleted record for (city, kind) inside one
// transaction. CreatedAt/UpdatedAt are taken from rec so callers control the
// clock.
func (s *SQLiteDB) UpsertWarning(ctx context.Context, rec *models.WarningRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE warning_records
		SET lmo = ?, status = ?, xml_file = ?, created_at = ?, updated_at = ?
		WHERE city = ? AND kind = ? AND is_deleted = 0`,
		rec.LMO, string(rec.Status), rec.XMLFile, rec.CreatedAt, rec.UpdatedAt,
		rec.City, rec.Kind)
	if err != nil {
		return fmt.Errorf("error updating warning record: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error reading rows affected: %w", err)
	}
	if n == 0 {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO warning_records (city, lmo, kind, status, xml_file, is_deleted, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
			rec.City, rec.LMO, rec.Kind, string(rec.Status), rec.XMLFile,
			rec.CreatedAt, rec.UpdatedAt)
		if err != nil {
			return fmt.Errorf("error inserting warning record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing upsert: %w", err)
	}
	return nil
}

func (s *SQLiteDB) SoftDeleteWarning(ctx context.Context, city, kind string, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE warning_records SET is_deleted = 1, updated_at = ?
		WHERE city = ? AND kind = ? AND is_deleted = 0`, now, city, kind)
	if err != nil {
		return fmt.Errorf("error soft-deleting warning record: %w", err)
	}
	return nil
}

// SoftDeleteCancelledBefore marks cancelled records past the grace cutoff as
// deleted. Active (non-cancelled) records are never touched.
func (s *SQLiteDB) SoftDeleteCancelledBefore(ctx context.Context, cutoff, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE warning_records SET is_deleted = 1, updated_at = ?
		WHERE is_deleted = 0 AND status = ? AND created_at < ?`,
		now, string(models.StatusCancelled), cutoff)
	if err != nil {
		return 0, fmt.Errorf("error soft-deleting cancelled records: %w", err)
	}
	return res.RowsAffected()
}

// PurgeDeletedBefore removes soft-deleted records whose deletion is older
// than the cutoff. It never touches active records.
func (s *SQLiteDB) PurgeWarningsDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM warning_records WHERE is_deleted = 1 AND updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error purging warning records: %w", err)
	}
	return res.RowsAffected()
}

func (s *SQLiteDB) GetReportFile(ctx context.Context, url string) (*models.ReportFile, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, url, lmo, file_name, last_modified, is_deleted, fetched_at, updated_at
		FROM report_files WHERE url = ?`, url)

	var rf models.ReportFile
	err := row.Scan(&rf.ID, &rf.URL, &rf.LMO, &rf.FileName, &rf.LastModified,
		&rf.IsDeleted, &rf.FetchedAt, &rf.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("error querying report file: %w", err)
	}
	return &rf, nil
}

func (s *SQLiteDB) PutReportFile(ctx context.Context, rf *models.ReportFile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO report_files (url, lmo, file_name, last_modified, is_deleted, fetched_at, updated_at)
		VALUES (?, ?, ?, ?, 0, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			lmo = excluded.lmo,
			file_name = excluded.file_name,
			last_modified = excluded.last_modified,
			is_deleted = 0,
			fetched_at = excluded.fetched_at,
			updated_at = excluded.updated_at`,
		rf.URL, rf.LMO, rf.FileName, rf.LastModified, rf.FetchedAt, rf.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error storing report file: %w", err)
	}
	return nil
}

// TouchReportFetched bumps fetched_at without altering the validator or the cached
// bytes, which is all a 304 response is allowed to do.
func (s *SQLiteDB) TouchReportFetched(ctx context.Context, url string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE report_files SET fetched_at = ?, updated_at = ? WHERE url = ?`, at, at, url)
	if err != nil {
		return fmt.Errorf("error touching report file: %w", err)
	}
	return nil
}

func (s *SQLiteDB) ListReportFilesBefore(ctx context.Context, cutoff time.Time) ([]models.ReportFile, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, lmo, file_name, last_modified, is_deleted, fetched_at, updated_at
		FROM report_files WHERE is_deleted = 0 AND fetched_at < ?
		ORDER BY fetched_at`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("error listing report files: %w", err)
	}
	defer rows.Close()

	var files []models.ReportFile
	for rows.Next() {
		var rf models.ReportFile
		if err := rows.Scan(&rf.ID, &rf.URL, &rf.LMO, &rf.FileName, &rf.LastModified,
			&rf.IsDeleted, &rf.FetchedAt, &rf.UpdatedAt); err != nil {
			return nil, fmt.Errorf("error scanning report file: %w", err)
		}
		files = append(files, rf)
	}
	return files, rows.Err()
}

func (s *SQLiteDB) SoftDeleteReportFile(ctx context.Context, id int64, now time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE report_files SET is_deleted = 1, updated_at = ? WHERE id = ?`, now, id)
	if err != nil {
		return fmt.Errorf("error soft-deleting report file: %w", err)
	}
	return nil
}

func (s *SQLiteDB) PurgeReportFilesDeletedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM report_files WHERE is_deleted = 1 AND updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("error purging report files: %w", err)
	}
	return res.RowsAffected()
}
