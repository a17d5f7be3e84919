// Package sqlite provides SQLite-backed implementations of the
// repository ports: export job records plus the project/track/clip
// tables the renderer resolves from.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/calliope-audio/stemforge/internal/core/domain"
	_ "github.com/mattn/go-sqlite3" // Import the driver anonymously
)

// Adapter implements the repository ports for SQLite
type Adapter struct {
	db *sql.DB
}

// NewAdapter creates a connection and runs the schema migration
func NewAdapter(storagePath string) (*Adapter, error) {
	db, err := sql.Open("sqlite3", storagePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	adapter := &Adapter{db: db}

	// Auto-migrate on startup for local dev
	if err := adapter.migrate(); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	return adapter, nil
}

// Close ensures the DB connection is closed gracefully
func (a *Adapter) Close() error {
	return a.db.Close()
}

func (a *Adapter) Create(ctx context.Context, job domain.ExportJob) error {
	request, err := json.Marshal(job.Request)
	if err != nil {
		return fmt.Errorf("failed to encode export request: %w", err)
	}

	query := `
		INSERT INTO exports (
			id, project_id, user_id, request, status, progress,
			current_track_label, zip_location, zip_size, total_duration,
			total_file_size, error_message, created_at, started_at, completed_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	if _, err := a.db.ExecContext(ctx, query,
		job.ID,
		job.ProjectID,
		job.UserID,
		string(request),
		string(job.Status),
		job.Progress,
		job.CurrentTrackLabel,
		job.ZipLocation,
		job.ZipSize,
		job.TotalDuration,
		job.TotalFileSize,
		job.ErrorMessage,
		job.CreatedAt.UTC(),
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
	); err != nil {
		return fmt.Errorf("failed to create export job: %w", err)
	}

	return a.saveFiles(ctx, job.ID, job.IndividualFiles)
}

func (a *Adapter) Get(ctx context.Context, id string) (domain.ExportJob, error) {
	query := `
		SELECT id, project_id, user_id, request, status, progress,
			current_track_label, zip_location, zip_size, total_duration,
			total_file_size, error_message, created_at, started_at, completed_at
		FROM exports WHERE id = ?
	`
	job, err := scanJob(a.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return domain.ExportJob{}, err
	}

	files, err := a.loadFiles(ctx, id)
	if err != nil {
		return domain.ExportJob{}, err
	}
	job.IndividualFiles = files
	return job, nil
}

func (a *Adapter) Update(ctx context.Context, job domain.ExportJob) error {
	request, err := json.Marshal(job.Request)
	if err != nil {
		return fmt.Errorf("failed to encode export request: %w", err)
	}

	query := `
		UPDATE exports SET
			request = ?, status = ?, progress = ?, current_track_label = ?,
			zip_location = ?, zip_size = ?, total_duration = ?,
			total_file_size = ?, error_message = ?, started_at = ?, completed_at = ?
		WHERE id = ?
	`
	res, err := a.db.ExecContext(ctx, query,
		string(request),
		string(job.Status),
		job.Progress,
		job.CurrentTrackLabel,
		job.ZipLocation,
		job.ZipSize,
		job.TotalDuration,
		job.TotalFileSize,
		job.ErrorMessage,
		nullTime(job.StartedAt),
		nullTime(job.CompletedAt),
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update export job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}

	// Rewrite the file list; it only grows during processing and a full
	// replace keeps the update idempotent.
	if _, err := a.db.ExecContext(ctx, "DELETE FROM export_files WHERE job_id = ?", job.ID); err != nil {
		return fmt.Errorf("failed to clear export files: %w", err)
	}
	return a.saveFiles(ctx, job.ID, job.IndividualFiles)
}

func (a *Adapter) Delete(ctx context.Context, id string) error {
	res, err := a.db.ExecContext(ctx, "DELETE FROM exports WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete export job: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	if _, err := a.db.ExecContext(ctx, "DELETE FROM export_files WHERE job_id = ?", id); err != nil {
		return fmt.Errorf("failed to delete export files: %w", err)
	}
	return nil
}

func (a *Adapter) List(ctx context.Context, projectID string, limit, offset int) ([]domain.ExportJob, int, error) {
	var total int
	if err := a.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM exports WHERE project_id = ?", projectID,
	).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count export jobs: %w", err)
	}

	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	query := `
		SELECT id, project_id, user_id, request, status, progress,
			current_track_label, zip_location, zip_size, total_duration,
			total_file_size, error_message, created_at, started_at, completed_at
		FROM exports
		WHERE project_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?
	`
	rows, err := a.db.QueryContext(ctx, query, projectID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list export jobs: %w", err)
	}
	defer rows.Close()

	jobs := []domain.ExportJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate export jobs: %w", err)
	}

	for i := range jobs {
		files, err := a.loadFiles(ctx, jobs[i].ID)
		if err != nil {
			return nil, 0, err
		}
		jobs[i].IndividualFiles = files
	}
	return jobs, total, nil
}

func (a *Adapter) saveFiles(ctx context.Context, jobID string, files []domain.FileDescriptor) error {
	if len(files) == 0 {
		return nil
	}
	stmt, err := a.db.PrepareContext(ctx, `
		INSERT INTO export_files (job_id, position, track_id, file_name, storage_key, size, duration, peak_db, lufs)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, f := range files {
		if _, err := stmt.ExecContext(ctx, jobID, i, f.TrackID, f.FileName, f.StorageKey, f.Size, f.Duration, f.PeakDB, f.LUFS); err != nil {
			return fmt.Errorf("failed to save export file %s: %w", f.FileName, err)
		}
	}
	return nil
}

func (a *Adapter) loadFiles(ctx context.Context, jobID string) ([]domain.FileDescriptor, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT track_id, file_name, storage_key, size, duration, peak_db, lufs
		FROM export_files WHERE job_id = ? ORDER BY position ASC
	`, jobID)
	if err != nil {
		return nil, fmt.Errorf("failed to load export files: %w", err)
	}
	defer rows.Close()

	files := []domain.FileDescriptor{}
	for rows.Next() {
		var f domain.FileDescriptor
		if err := rows.Scan(&f.TrackID, &f.FileName, &f.StorageKey, &f.Size, &f.Duration, &f.PeakDB, &f.LUFS); err != nil {
			return nil, fmt.Errorf("failed to scan export file: %w", err)
		}
		files = append(files, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate export files: %w", err)
	}
	return files, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (domain.ExportJob, error) {
	var job domain.ExportJob
	var request string
	var status string
	var label, zipLocation, errorMessage sql.NullString
	var startedAt, completedAt sql.NullTime

	if err := row.Scan(
		&job.ID,
		&job.ProjectID,
		&job.UserID,
		&request,
		&status,
		&job.Progress,
		&label,
		&zipLocation,
		&job.ZipSize,
		&job.TotalDuration,
		&job.TotalFileSize,
		&errorMessage,
		&job.CreatedAt,
		&startedAt,
		&completedAt,
	); err != nil {
		if err == sql.ErrNoRows {
			return domain.ExportJob{}, domain.ErrNotFound
		}
		return domain.ExportJob{}, fmt.Errorf("failed to scan export job: %w", err)
	}

	if err := json.Unmarshal([]byte(request), &job.Request); err != nil {
		return domain.ExportJob{}, fmt.Errorf("failed to decode export request: %w", err)
	}
	job.Status = domain.JobStatus(status)
	if label.Valid {
		job.CurrentTrackLabel = label.String
	}
	if zipLocation.Valid {
		job.ZipLocation = zipLocation.String
	}
	if errorMessage.Valid {
		job.ErrorMessage = errorMessage.String
	}
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return job, nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func (a *Adapter) migrate() error {
	query := `
	CREATE TABLE IF NOT EXISTS exports (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		request TEXT NOT NULL,
		status TEXT NOT NULL,
		progress INTEGER NOT NULL DEFAULT 0,
		current_track_label TEXT,
		zip_location TEXT,
		zip_size INTEGER NOT NULL DEFAULT 0,
		total_duration REAL NOT NULL DEFAULT 0,
		total_file_size INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		created_at DATETIME NOT NULL,
		started_at DATETIME,
		completed_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_exports_project ON exports(project_id, created_at DESC);

	CREATE TABLE IF NOT EXISTS export_files (
		job_id TEXT NOT NULL,
		position INTEGER NOT NULL,
		track_id TEXT NOT NULL,
		file_name TEXT NOT NULL,
		storage_key TEXT NOT NULL,
		size INTEGER NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0,
		peak_db REAL NOT NULL DEFAULT 0,
		lufs REAL NOT NULL DEFAULT 0,
		PRIMARY KEY (job_id, position),
		FOREIGN KEY(job_id) REFERENCES exports(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS projects (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS tracks (
		id TEXT PRIMARY KEY,
		project_id TEXT NOT NULL,
		name TEXT NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		volume REAL NOT NULL DEFAULT 1,
		pan REAL NOT NULL DEFAULT 0,
		mute INTEGER NOT NULL DEFAULT 0,
		effects_chain TEXT,
		FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE CASCADE
	);

	CREATE TABLE IF NOT EXISTS clips (
		id TEXT PRIMARY KEY,
		track_id TEXT NOT NULL,
		file_reference TEXT NOT NULL,
		start_time REAL NOT NULL DEFAULT 0,
		duration REAL NOT NULL DEFAULT 0,
		gain REAL NOT NULL DEFAULT 1,
		position INTEGER NOT NULL DEFAULT 0,
		FOREIGN KEY(track_id) REFERENCES tracks(id) ON DELETE CASCADE
	);
	`
	if _, err := a.db.Exec(query); err != nil {
		return err
	}
	return nil
}
