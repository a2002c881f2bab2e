package repository

import (
	"database/sql"
	"encoding/json"
	"strconv"

	"github.com/lmoretti/punchcard/internal/models"
)

type ArtifactRepo struct {
	db *sql.DB
}

func NewArtifactRepo(db *sql.DB) *ArtifactRepo {
	return &ArtifactRepo{db: db}
}

func (r *ArtifactRepo) Insert(a *models.Artifact) error {
	metadata, err := marshalMetadata(a.Metadata)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT INTO artifacts (id, name, artifact_type, reference, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, a.ID, a.Name, a.ArtifactType, a.Reference, metadata, a.CreatedAt)
	return err
}

func (r *ArtifactRepo) GetByID(id string) (*models.Artifact, error) {
	row := r.db.QueryRow(`
		SELECT id, name, artifact_type, reference, metadata, created_at
		FROM artifacts
		WHERE id = ?
	`, id)

	a, err := scanArtifact(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

func (r *ArtifactRepo) GetAll(limit *int64) ([]models.Artifact, error) {
	query := `
		SELECT id, name, artifact_type, reference, metadata, created_at
		FROM artifacts
		ORDER BY created_at DESC
	`
	if limit != nil {
		query += " LIMIT " + strconv.FormatInt(*limit, 10)
	}

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []models.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, *a)
	}
	return artifacts, rows.Err()
}

func (r *ArtifactRepo) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM artifacts WHERE id = ?", id)
	return err
}

func (r *ArtifactRepo) Link(entryID, artifactID string) error {
	_, err := r.db.Exec(`
		INSERT INTO entry_artifacts (entry_id, artifact_id) VALUES (?, ?)
	`, entryID, artifactID)
	return err
}

// Unlink removes the link row and reports whether one existed.
func (r *ArtifactRepo) Unlink(entryID, artifactID string) (bool, error) {
	result, err := r.db.Exec(`
		DELETE FROM entry_artifacts WHERE entry_id = ? AND artifact_id = ?
	`, entryID, artifactID)
	if err != nil {
		return false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

// ForEntry returns the artifacts linked to an entry.
func (r *ArtifactRepo) ForEntry(entryID string) ([]models.Artifact, error) {
	rows, err := r.db.Query(`
		SELECT a.id, a.name, a.artifact_type, a.reference, a.metadata, a.created_at
		FROM artifacts a
		JOIN entry_artifacts ea ON ea.artifact_id = a.id
		WHERE ea.entry_id = ?
		ORDER BY a.created_at ASC
	`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []models.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, *a)
	}
	return artifacts, rows.Err()
}

// DeleteLinksForEntry cascades link removal on entry deletion. The
// referenced artifacts are left alone.
func (r *ArtifactRepo) DeleteLinksForEntry(entryID string) error {
	_, err := r.db.Exec("DELETE FROM entry_artifacts WHERE entry_id = ?", entryID)
	return err
}

func (r *ArtifactRepo) DeleteLinksForArtifact(artifactID string) error {
	_, err := r.db.Exec("DELETE FROM entry_artifacts WHERE artifact_id = ?", artifactID)
	return err
}

func (r *ArtifactRepo) AllLinks() ([]models.EntryArtifact, error) {
	rows, err := r.db.Query("SELECT entry_id, artifact_id FROM entry_artifacts")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []models.EntryArtifact
	for rows.Next() {
		var l models.EntryArtifact
		if err := rows.Scan(&l.EntryID, &l.ArtifactID); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func scanArtifact(row rowScanner) (*models.Artifact, error) {
	var a models.Artifact
	var reference sql.NullString
	var metadata sql.NullString

	err := row.Scan(&a.ID, &a.Name, &a.ArtifactType, &reference, &metadata, &a.CreatedAt)
	if err != nil {
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

	return &a, nil
}

func marshalMetadata(m map[string]any) (*string, error) {
	if m == nil {
		return nil, nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	s := string(raw)
	return &s, nil
}
