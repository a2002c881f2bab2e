package repository

import (
	"database/sql"

	"github.com/lmoretti/punchcard/internal/models"
)

type FolderRepo struct {
	db *sql.DB
}

func NewFolderRepo(db *sql.DB) *FolderRepo {
	return &FolderRepo{db: db}
}

func (r *FolderRepo) Insert(f *models.Folder) error {
	_, err := r.db.Exec(`
		INSERT INTO folders (id, name, color, icon, sort_order, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, f.ID, f.Name, f.Color, f.Icon, f.SortOrder, f.CreatedAt, f.UpdatedAt)
	return err
}

func (r *FolderRepo) GetByID(id string) (*models.Folder, error) {
	row := r.db.QueryRow(`
		SELECT id, name, color, icon, sort_order, created_at, updated_at
		FROM folders
		WHERE id = ?
	`, id)

	f, err := scanFolder(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (r *FolderRepo) GetAll() ([]models.Folder, error) {
	rows, err := r.db.Query(`
		SELECT id, name, color, icon, sort_order, created_at, updated_at
		FROM folders
		ORDER BY sort_order ASC, created_at ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var folders []models.Folder
	for rows.Next() {
		f, err := scanFolder(rows)
		if err != nil {
			return nil, err
		}
		folders = append(folders, *f)
	}
	return folders, rows.Err()
}

func (r *FolderRepo) Update(f *models.Folder) error {
	_, err := r.db.Exec(`
		UPDATE folders
		SET name = ?, color = ?, icon = ?, sort_order = ?, updated_at = ?
		WHERE id = ?
	`, f.Name, f.Color, f.Icon, f.SortOrder, f.UpdatedAt, f.ID)
	return err
}

func (r *FolderRepo) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM folders WHERE id = ?", id)
	return err
}

// MaxSortOrder returns the highest sort_order, 0 for an empty table.
func (r *FolderRepo) MaxSortOrder() (int, error) {
	var max int
	err := r.db.QueryRow("SELECT COALESCE(MAX(sort_order), 0) FROM folders").Scan(&max)
	return max, err
}

func scanFolder(row rowScanner) (*models.Folder, error) {
	var f models.Folder
	var icon sql.NullString

	err := row.Scan(&f.ID, &f.Name, &f.Color, &icon, &f.SortOrder, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if icon.Valid {
		f.Icon = &icon.String
	}

	return &f, nil
}
