package models

import (
	"time"

	"github.com/google/uuid"
)

// Neutral defaults for records created without an explicit color and for
// the "unclassified" report group.
const (
	DefaultTaskColor   = "#3b82f6"
	DefaultFolderColor = "#6b7280"
	UnclassifiedColor  = "#6b7280"
	UnclassifiedName   = "Unclassified"
)

type Task struct {
	ID          string    `json:"id"`
	FolderID    *string   `json:"folder_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Color       string    `json:"color"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Folder groups tasks by weak reference. Deleting a folder unparents its
// tasks, it never deletes them.
type Folder struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Color     string    `json:"color"`
	Icon      *string   `json:"icon"`
	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TimeEntry is a single unit of tracked work. EndedAt == nil means the
// entry is running; at most one such entry exists system-wide.
type TimeEntry struct {
	ID        string     `json:"id"`
	TaskID    *string    `json:"task_id"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at"`
	Memo      *string    `json:"memo"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

func (e *TimeEntry) IsRunning() bool {
	return e.EndedAt == nil
}

// DurationSeconds returns the stored duration of a closed entry, nil while
// the entry is still running. Live durations for open entries come from
// timeutil.ElapsedSeconds.
func (e *TimeEntry) DurationSeconds() *int64 {
	if e.EndedAt == nil {
		return nil
	}
	d := int64(e.EndedAt.Sub(e.StartedAt).Seconds())
	return &d
}

// TimeEntryDetail is a TimeEntry hydrated with its soft references resolved
// best-effort: a missing task stays nil and the entry reads as unclassified.
type TimeEntryDetail struct {
	TimeEntry
	Task            *Task      `json:"task"`
	Artifacts       []Artifact `json:"artifacts"`
	DurationSeconds *int64     `json:"duration_seconds"`
}

// Artifact is immutable after creation in normal flow.
type Artifact struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	ArtifactType string         `json:"artifact_type"`
	Reference    *string        `json:"reference"`
	Metadata     map[string]any `json:"metadata"`
	CreatedAt    time.Time      `json:"created_at"`
}

// EntryArtifact links an entry to an artifact. Composite identity, no
// independent lifecycle.
type EntryArtifact struct {
	EntryID    string `json:"entry_id"`
	ArtifactID string `json:"artifact_id"`
}

type CreateTask struct {
	Name        string
	Description *string
	Color       *string
	FolderID    *string
}

// UpdateTask patches a task. Nil fields are left untouched; ClearFolder
// moves the task back to unclassified.
type UpdateTask struct {
	Name        *string
	Description *string
	Color       *string
	FolderID    *string
	ClearFolder bool
}

type CreateFolder struct {
	Name  string
	Color *string
	Icon  *string
}

type UpdateFolder struct {
	Name      *string
	Color     *string
	Icon      *string
	SortOrder *int
}

type CreateArtifact struct {
	Name         string
	ArtifactType string
	Reference    *string
	Metadata     map[string]any
}

// UpdateEntry patches a time entry. Setting EndedAt on the running entry
// closes it; a closed entry can never be re-opened through a patch.
type UpdateEntry struct {
	TaskID    *string
	ClearTask bool
	StartedAt *time.Time
	EndedAt   *time.Time
	Memo      *string
}

type EntryFilter struct {
	From   *time.Time
	To     *time.Time
	TaskID *string
	Limit  *int64
}

type TaskSummary struct {
	TaskID       *string `json:"task_id"`
	TaskName     string  `json:"task_name"`
	TaskColor    string  `json:"task_color"`
	TotalSeconds int64   `json:"total_seconds"`
	EntryCount   int64   `json:"entry_count"`
}

type DailySummary struct {
	Date         string `json:"date"`
	TotalSeconds int64  `json:"total_seconds"`
	EntryCount   int64  `json:"entry_count"`
}

type MonthlyReport struct {
	Year                 int            `json:"year"`
	Month                int            `json:"month"`
	TotalSeconds         int64          `json:"total_seconds"`
	TotalEntries         int64          `json:"total_entries"`
	WorkingDays          int64          `json:"working_days"`
	AverageSecondsPerDay int64          `json:"average_seconds_per_day"`
	TaskSummaries        []TaskSummary  `json:"task_summaries"`
	DailySummaries       []DailySummary `json:"daily_summaries"`
}

type YearMonth struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

// BundleEntry is the export shape of a time entry: the stored fields plus
// the derived duration, null for the entry that is still running.
type BundleEntry struct {
	ID              string     `json:"id"`
	TaskID          *string    `json:"task_id"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at"`
	DurationSeconds *int64     `json:"duration_seconds"`
	Memo            *string    `json:"memo"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Bundle is the interchange payload for export/import. Folders are not part
// of the format.
type Bundle struct {
	Version        string          `json:"version"`
	ExportedAt     time.Time       `json:"exported_at"`
	Tasks          []Task          `json:"tasks"`
	Artifacts      []Artifact      `json:"artifacts"`
	TimeEntries    []BundleEntry   `json:"time_entries"`
	EntryArtifacts []EntryArtifact `json:"entry_artifacts"`
}

type ImportResult struct {
	TasksImported     int `json:"tasks_imported"`
	EntriesImported   int `json:"entries_imported"`
	ArtifactsImported int `json:"artifacts_imported"`
}

func NewTask(input CreateTask, now time.Time) *Task {
	color := DefaultTaskColor
	if input.Color != nil {
		color = *input.Color
	}
	return &Task{
		ID:          uuid.NewString(),
		FolderID:    input.FolderID,
		Name:        input.Name,
		Description: input.Description,
		Color:       color,
		Archived:    false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func NewFolder(input CreateFolder, sortOrder int, now time.Time) *Folder {
	color := DefaultFolderColor
	if input.Color != nil {
		color = *input.Color
	}
	return &Folder{
		ID:        uuid.NewString(),
		Name:      input.Name,
		Color:     color,
		Icon:      input.Icon,
		SortOrder: sortOrder,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func NewTimeEntry(taskID, memo *string, now time.Time) *TimeEntry {
	return &TimeEntry{
		ID:        uuid.NewString(),
		TaskID:    taskID,
		StartedAt: now,
		Memo:      memo,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func NewArtifact(input CreateArtifact, now time.Time) *Artifact {
	return &Artifact{
		ID:           uuid.NewString(),
		Name:         input.Name,
		ArtifactType: input.ArtifactType,
		Reference:    input.Reference,
		Metadata:     input.Metadata,
		CreatedAt:    now,
	}
}

// IsValidColor reports whether s is a #RRGGBB hex color.
func IsValidColor(s string) bool {
	if len(s) != 7 || s[0] != '#' {
		return false
	}
	for _, c := range s[1:] {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
