package repository

import (
	"database/sql"
	"time"

	"github.com/lmoretti/punchcard/internal/models"
)

type TaskRepo struct {
	db *sql.DB
}

func NewTaskRepo(db *sql.DB) *TaskRepo {
	return &TaskRepo{db: db}
}

func (r *TaskRepo) Insert(t *models.Task) error {
	_, err := r.db.Exec(`
		INSERT INTO tasks (id, folder_id, name, description, color, archived, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.FolderID, t.Name, t.Description, t.Color, t.Archived, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r *TaskRepo) GetByID(id string) (*models.Task, error) {
	row := r.db.QueryRow(`
		SELECT id, folder_id, name, description, color, archived, created_at, updated_at
		FROM tasks
		WHERE id = ?
	`, id)

	t, err := scanTask(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// GetAll returns tasks newest first, hiding archived ones unless asked.
func (r *TaskRepo) GetAll(includeArchived bool) ([]models.Task, error) {
	query := `
		SELECT id, folder_id, name, description, color, archived, created_at, updated_at
		FROM tasks
		WHERE archived = 0
		ORDER BY created_at DESC
	`
	if includeArchived {
		query = `
			SELECT id, folder_id, name, description, color, archived, created_at, updated_at
			FROM tasks
			ORDER BY created_at DESC
		`
	}

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

func (r *TaskRepo) Update(t *models.Task) error {
	_, err := r.db.Exec(`
		UPDATE tasks
		SET folder_id = ?, name = ?, description = ?, color = ?, archived = ?, updated_at = ?
		WHERE id = ?
	`, t.FolderID, t.Name, t.Description, t.Color, t.Archived, t.UpdatedAt, t.ID)
	return err
}

func (r *TaskRepo) SetArchived(id string, archived bool, now time.Time) error {
	_, err := r.db.Exec(`
		UPDATE tasks SET archived = ?, updated_at = ? WHERE id = ?
	`, archived, now, id)
	return err
}

// UnassignFolder moves every task in the folder back to unclassified.
// Called when the folder is deleted; the tasks themselves survive.
func (r *TaskRepo) UnassignFolder(folderID string, now time.Time) error {
	_, err := r.db.Exec(`
		UPDATE tasks SET folder_id = NULL, updated_at = ? WHERE folder_id = ?
	`, now, folderID)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*models.Task, error) {
	var t models.Task
	var folderID sql.NullString
	var description sql.NullString

	err := row.Scan(&t.ID, &folderID, &t.Name, &description, &t.Color, &t.Archived, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if folderID.Valid {
		t.FolderID = &folderID.String
	}
	if description.Valid {
		t.Description = &description.String
	}

	return &t, nil
}
