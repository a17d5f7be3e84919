package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/calliope-audio/stemforge/internal/core/domain"
)

// ResolveTracks loads the tracks an export targets, with their clips.
// An empty trackIDs slice means every track in the project, in project
// order. Requesting a track that does not belong to the project is a
// not-found error rather than a silent skip.
func (a *Adapter) ResolveTracks(ctx context.Context, projectID string, trackIDs []string) ([]domain.Track, error) {
	row := a.db.QueryRowContext(ctx, "SELECT id FROM projects WHERE id = ?", projectID)
	var id string
	if err := row.Scan(&id); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to load project: %w", err)
	}

	query := "SELECT id, project_id, name, volume, pan, mute, effects_chain FROM tracks WHERE project_id = ?"
	args := []any{projectID}
	if len(trackIDs) > 0 {
		query += " AND id IN (?" + strings.Repeat(",?", len(trackIDs)-1) + ")"
		for _, tid := range trackIDs {
			args = append(args, tid)
		}
	}
	query += " ORDER BY position ASC"

	rows, err := a.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load tracks: %w", err)
	}
	defer rows.Close()

	tracks := []domain.Track{}
	for rows.Next() {
		var t domain.Track
		var effects sql.NullString
		var mute int
		if err := rows.Scan(&t.ID, &t.ProjectID, &t.Name, &t.Volume, &t.Pan, &mute, &effects); err != nil {
			return nil, fmt.Errorf("failed to scan track: %w", err)
		}
		t.Mute = mute != 0
		if effects.Valid {
			t.EffectsChain = effects.String
		}
		tracks = append(tracks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tracks: %w", err)
	}

	if len(trackIDs) > 0 && len(tracks) != len(trackIDs) {
		return nil, domain.ErrNotFound
	}

	for i := range tracks {
		clips, err := a.loadClips(ctx, tracks[i].ID)
		if err != nil {
			return nil, err
		}
		tracks[i].Clips = clips
	}
	return tracks, nil
}

func (a *Adapter) loadClips(ctx context.Context, trackID string) ([]domain.AudioClip, error) {
	rows, err := a.db.QueryContext(ctx, `
		SELECT id, file_reference, start_time, duration, gain
		FROM clips WHERE track_id = ? ORDER BY position ASC
	`, trackID)
	if err != nil {
		return nil, fmt.Errorf("failed to load clips: %w", err)
	}
	defer rows.Close()

	clips := []domain.AudioClip{}
	for rows.Next() {
		var c domain.AudioClip
		if err := rows.Scan(&c.ID, &c.FileReference, &c.StartTime, &c.Duration, &c.Gain); err != nil {
			return nil, fmt.Errorf("failed to scan clip: %w", err)
		}
		clips = append(clips, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clips: %w", err)
	}
	return clips, nil
}

// SaveProject upserts a project with its tracks and clips in one
// transaction. Used by the import path and by tests to seed fixtures.
func (a *Adapter) SaveProject(ctx context.Context, projectID, name string, tracks []domain.Track) error {
	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // Safety net: auto-rollback if we error/panic before commit

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projects (id, name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET name=excluded.name;
	`, projectID, name); err != nil {
		return fmt.Errorf("failed to save project: %w", err)
	}

	// Reset the track list: the snapshot being written wins.
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM clips WHERE track_id IN (SELECT id FROM tracks WHERE project_id = ?)
	`, projectID); err != nil {
		return fmt.Errorf("failed to clear old clips: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM tracks WHERE project_id = ?", projectID); err != nil {
		return fmt.Errorf("failed to clear old tracks: %w", err)
	}

	stmtTrack, err := tx.PrepareContext(ctx, `
		INSERT INTO tracks (id, project_id, name, position, volume, pan, mute, effects_chain)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmtTrack.Close()

	stmtClip, err := tx.PrepareContext(ctx, `
		INSERT INTO clips (id, track_id, file_reference, start_time, duration, gain, position)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmtClip.Close()

	for i, t := range tracks {
		mute := 0
		if t.Mute {
			mute = 1
		}
		volume := t.Volume
		if volume == 0 {
			volume = 1 // unset volume defaults to unity
		}
		if _, err := stmtTrack.ExecContext(ctx, t.ID, projectID, t.Name, i, volume, t.Pan, mute, t.EffectsChain); err != nil {
			return fmt.Errorf("failed to save track %s: %w", t.ID, err)
		}
		for j, c := range t.Clips {
			if _, err := stmtClip.ExecContext(ctx, c.ID, t.ID, c.FileReference, c.StartTime, c.Duration, c.Gain, j); err != nil {
				return fmt.Errorf("failed to save clip %s: %w", c.ID, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("transaction commit failed: %w", err)
	}
	return nil
}
