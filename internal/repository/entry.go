package repository

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/lmoretti/punchcard/internal/models"
)

type EntryRepo struct {
	db *sql.DB
}

func NewEntryRepo(db *sql.DB) *EntryRepo {
	return &EntryRepo{db: db}
}

func (r *EntryRepo) Insert(e *models.TimeEntry) error {
	_, err := r.db.Exec(`
		INSERT INTO time_entries (id, task_id, started_at, ended_at, memo, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, e.ID, e.TaskID, e.StartedAt, e.EndedAt, e.Memo, e.CreatedAt, e.UpdatedAt)
	return err
}

func (r *EntryRepo) GetByID(id string) (*models.TimeEntry, error) {
	row := r.db.QueryRow(`
		SELECT id, task_id, started_at, ended_at, memo, created_at, updated_at
		FROM time_entries
		WHERE id = ?
	`, id)

	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// GetRunning returns the unique open entry, nil when none is running.
func (r *EntryRepo) GetRunning() (*models.TimeEntry, error) {
	row := r.db.QueryRow(`
		SELECT id, task_id, started_at, ended_at, memo, created_at, updated_at
		FROM time_entries
		WHERE ended_at IS NULL
		LIMIT 1
	`)

	e, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *EntryRepo) Update(e *models.TimeEntry) error {
	_, err := r.db.Exec(`
		UPDATE time_entries
		SET task_id = ?, started_at = ?, ended_at = ?, memo = ?, updated_at = ?
		WHERE id = ?
	`, e.TaskID, e.StartedAt, e.EndedAt, e.Memo, e.UpdatedAt, e.ID)
	return err
}

func (r *EntryRepo) Delete(id string) error {
	_, err := r.db.Exec("DELETE FROM time_entries WHERE id = ?", id)
	return err
}

// List returns entries matching the filter, newest started first.
func (r *EntryRepo) List(filter models.EntryFilter) ([]models.TimeEntry, error) {
	query := `
		SELECT id, task_id, started_at, ended_at, memo, created_at, updated_at
		FROM time_entries
		WHERE 1=1
	`
	var args []any

	if filter.From != nil {
		query += " AND started_at >= ?"
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		query += " AND started_at <= ?"
		args = append(args, *filter.To)
	}
	if filter.TaskID != nil {
		query += " AND task_id = ?"
		args = append(args, *filter.TaskID)
	}

	query += " ORDER BY started_at DESC"

	if filter.Limit != nil {
		query += " LIMIT " + strconv.FormatInt(*filter.Limit, 10)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// ListBetween returns entries whose started_at falls in [from, to),
// oldest first. The report aggregator feeds month bounds through here.
func (r *EntryRepo) ListBetween(from, to time.Time) ([]models.TimeEntry, error) {
	rows, err := r.db.Query(`
		SELECT id, task_id, started_at, ended_at, memo, created_at, updated_at
		FROM time_entries
		WHERE started_at >= ? AND started_at < ?
		ORDER BY started_at ASC
	`, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanEntries(rows)
}

// StartTimes returns every entry's started_at, newest first. Calendar
// grouping happens in Go so the consumer's timezone decides the buckets.
func (r *EntryRepo) StartTimes() ([]time.Time, error) {
	rows, err := r.db.Query("SELECT started_at FROM time_entries ORDER BY started_at DESC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var times []time.Time
	for rows.Next() {
		var t time.Time
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		times = append(times, t)
	}
	return times, rows.Err()
}

func scanEntries(rows *sql.Rows) ([]models.TimeEntry, error) {
	var entries []models.TimeEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func scanEntry(row rowScanner) (*models.TimeEntry, error) {
	var e models.TimeEntry
	var taskID sql.NullString
	var endedAt sql.NullTime
	var memo sql.NullString

	err := row.Scan(&e.ID, &taskID, &e.StartedAt, &endedAt, &memo, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if taskID.Valid {
		e.TaskID = &taskID.String
	}
	if endedAt.Valid {
		t := endedAt.Time
		e.EndedAt = &t
	}
	if memo.Valid {
		e.Memo = &memo.String
	}

	return &e, nil
}
