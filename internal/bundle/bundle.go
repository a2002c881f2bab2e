// Package bundle implements the export/import interchange format: a JSON
// payload of tasks, artifacts, time entries and entry-artifact links.
// Folders are not part of the format.
package bundle

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lmoretti/punchcard/internal/apperr"
	"github.com/lmoretti/punchcard/internal/models"
	"github.com/lmoretti/punchcard/internal/timeutil"
)

const FormatVersion = "1.0"

type Service struct {
	db  *sql.DB
	now func() time.Time
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// SetClock overrides the service clock. Tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Export snapshots the full ledger. The running entry, if any, exports
// with ended_at = null and duration_seconds = null.
func (s *Service) Export() (*models.Bundle, error) {
	tasks, err := s.exportTasks()
	if err != nil {
		return nil, err
	}
	artifacts, err := s.exportArtifacts()
	if err != nil {
		return nil, err
	}
	entries, err := s.exportEntries()
	if err != nil {
		return nil, err
	}
	links, err := s.exportLinks()
	if err != nil {
		return nil, err
	}

	return &models.Bundle{
		Version:        FormatVersion,
		ExportedAt:     s.now(),
		Tasks:          tasks,
		Artifacts:      artifacts,
		TimeEntries:    entries,
		EntryArtifacts: links,
	}, nil
}

// Import reconciles a bundle with the local ledger inside one transaction.
// Replace mode clears the four collections first; merge mode keeps local
// records and skips any incoming record whose id already exists, without
// counting it. The bundle shape is validated before anything is written.
func (s *Service) Import(b *models.Bundle, merge bool) (*models.ImportResult, error) {
	if err := validate(b); err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if !merge {
		for _, table := range []string{"entry_artifacts", "time_entries", "artifacts", "tasks"} {
			if _, err := tx.Exec("DELETE FROM " + table); err != nil {
				return nil, err
			}
		}
	}

	result := &models.ImportResult{}

	for i := range b.Tasks {
		t := &b.Tasks[i]
		if merge {
			exists, err := rowExists(tx, "SELECT COUNT(*) FROM tasks WHERE id = ?", t.ID)
			if err != nil {
				return nil, err
			}
			if exists {
				continue
			}
		}
		_, err := tx.Exec(`
			INSERT INTO tasks (id, folder_id, name, description, color, archived, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, t.ID, t.FolderID, t.Name, t.Description, t.Color, t.Archived, t.CreatedAt, t.UpdatedAt)
		if err != nil {
			return nil, err
		}
		result.TasksImported++
	}

	for i := range b.Artifacts {
		a := &b.Artifacts[i]
		if merge {
			exists, err := rowExists(tx, "SELECT COUNT(*) FROM artifacts WHERE id = ?", a.ID)
			if err != nil {
				return nil, err
			}
			if exists {
				continue
			}
		}
		var metadata *string
		if a.Metadata != nil {
			raw, err := json.Marshal(a.Metadata)
			if err != nil {
				return nil, err
			}
			s := string(raw)
			metadata = &s
		}
		_, err := tx.Exec(`
			INSERT INTO artifacts (id, name, artifact_type, reference, metadata, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, a.ID, a.Name, a.ArtifactType, a.Reference, metadata, a.CreatedAt)
		if err != nil {
			return nil, err
		}
		result.ArtifactsImported++
	}

	for i := range b.TimeEntries {
		e := &b.TimeEntries[i]
		if merge {
			exists, err := rowExists(tx, "SELECT COUNT(*) FROM time_entries WHERE id = ?", e.ID)
			if err != nil {
				return nil, err
			}
			if exists {
				continue
			}
		}
		_, err := tx.Exec(`
			INSERT INTO time_entries (id, task_id, started_at, ended_at, memo, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, e.ID, e.TaskID, e.StartedAt, e.EndedAt, e.Memo, e.CreatedAt, e.UpdatedAt)
		if err != nil {
			return nil, err
		}
		result.EntriesImported++
	}

	for _, link := range b.EntryArtifacts {
		if merge {
			exists, err := rowExists(tx,
				"SELECT COUNT(*) FROM entry_artifacts WHERE entry_id = ? AND artifact_id = ?",
				link.EntryID, link.ArtifactID)
			if err != nil {
				return nil, err
			}
			if exists {
				continue
			}
		}

		// Only link records whose two ends made it into the ledger.
		entryOK, err := rowExists(tx, "SELECT COUNT(*) FROM time_entries WHERE id = ?", link.EntryID)
		if err != nil {
			return nil, err
		}
		artifactOK, err := rowExists(tx, "SELECT COUNT(*) FROM artifacts WHERE id = ?", link.ArtifactID)
		if err != nil {
			return nil, err
		}
		if !entryOK || !artifactOK {
			continue
		}

		_, err = tx.Exec(
			"INSERT INTO entry_artifacts (entry_id, artifact_id) VALUES (?, ?)",
			link.EntryID, link.ArtifactID)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

func validate(b *models.Bundle) error {
	if b == nil {
		return fmt.Errorf("empty payload: %w", apperr.ErrMalformedBundle)
	}
	if b.Version == "" {
		return fmt.Errorf("missing version: %w", apperr.ErrMalformedBundle)
	}
	if b.Tasks == nil {
		return fmt.Errorf("missing tasks: %w", apperr.ErrMalformedBundle)
	}
	if b.TimeEntries == nil {
		return fmt.Errorf("missing time_entries: %w", apperr.ErrMalformedBundle)
	}
	return nil
}

func rowExists(tx *sql.Tx, query string, args ...any) (bool, error) {
	var count int64
	if err := tx.QueryRow(query, args...).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *Service) exportTasks() ([]models.Task, error) {
	rows, err := s.db.Query(`
		SELECT id, folder_id, name, description, color, archived, created_at, updated_at
		FROM tasks
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var t models.Task
		var folderID, description sql.NullString
		if err := rows.Scan(&t.ID, &folderID, &t.Name, &description, &t.Color, &t.Archived, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		if folderID.Valid {
			t.FolderID = &folderID.String
		}
		if description.Valid {
			t.Description = &description.String
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Service) exportArtifacts() ([]models.Artifact, error) {
	rows, err := s.db.Query(`
		SELECT id, name, artifact_type, reference, metadata, created_at
		FROM artifacts
		ORDER BY created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	artifacts := []models.Artifact{}
	for rows.Next() {
		var a models.Artifact
		var reference, metadata sql.NullString
		if err := rows.Scan(&a.ID, &a.Name, &a.ArtifactType, &reference, &metadata, &a.CreatedAt); err != nil {
			return nil, err
		}
		if reference.Valid {
			a.Reference = &reference.String
		}
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &a.Metadata); err != nil {
				return nil, err
			}
		}
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

func (s *Service) exportEntries() ([]models.BundleEntry, error) {
	rows, err := s.db.Query(`
		SELECT id, task_id, started_at, ended_at, memo, created_at, updated_at
		FROM time_entries
		ORDER BY started_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := []models.BundleEntry{}
	for rows.Next() {
		var e models.BundleEntry
		var taskID, memo sql.NullString
		var endedAt sql.NullTime
		if err := rows.Scan(&e.ID, &taskID, &e.StartedAt, &endedAt, &memo, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, err
		}
		if taskID.Valid {
			e.TaskID = &taskID.String
		}
		if memo.Valid {
			e.Memo = &memo.String
		}
		if endedAt.Valid {
			t := endedAt.Time
			e.EndedAt = &t
			d := timeutil.ElapsedSecondsAt(e.StartedAt, &t, t)
			e.DurationSeconds = &d
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *Service) exportLinks() ([]models.EntryArtifact, error) {
	rows, err := s.db.Query("SELECT entry_id, artifact_id FROM entry_artifacts")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	links := []models.EntryArtifact{}
	for rows.Next() {
		var l models.EntryArtifact
		if err := rows.Scan(&l.EntryID, &l.ArtifactID); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}
