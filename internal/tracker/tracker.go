// Package tracker is the domain engine over the ledger: entry lifecycle,
// task/folder/artifact CRUD, and the single-running-entry invariant.
package tracker

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/lmoretti/punchcard/internal/apperr"
	"github.com/lmoretti/punchcard/internal/models"
	"github.com/lmoretti/punchcard/internal/repository"
	"github.com/lmoretti/punchcard/internal/timeutil"
)

// Service serializes entry mutations behind a mutex: the running-entry
// check and the write that depends on it must be atomic with respect to
// other entry mutations.
type Service struct {
	tasks     *repository.TaskRepo
	folders   *repository.FolderRepo
	entries   *repository.EntryRepo
	artifacts *repository.ArtifactRepo

	mu  sync.Mutex
	now func() time.Time
}

func NewService(db *sql.DB) *Service {
	return &Service{
		tasks:     repository.NewTaskRepo(db),
		folders:   repository.NewFolderRepo(db),
		entries:   repository.NewEntryRepo(db),
		artifacts: repository.NewArtifactRepo(db),
		now:       time.Now,
	}
}

// SetClock overrides the service clock. Tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

func (s *Service) Entries() *repository.EntryRepo {
	return s.entries
}

func (s *Service) Tasks() *repository.TaskRepo {
	return s.tasks
}

// --- entry lifecycle ---

// StartEntry opens a new entry. It fails with ErrConflict while another
// entry is running; the caller must stop that one first, the engine never
// auto-closes.
func (s *Service) StartEntry(taskID, memo *string) (*models.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	running, err := s.entries.GetRunning()
	if err != nil {
		return nil, err
	}
	if running != nil {
		return nil, fmt.Errorf("entry %s is already running: %w", running.ID, apperr.ErrConflict)
	}

	entry := models.NewTimeEntry(taskID, memo, s.now())
	if err := s.entries.Insert(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// StopEntry closes the entry, optionally replacing its memo.
func (s *Service) StopEntry(id string, memo *string) (*models.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.entries.GetByID(id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("entry %s: %w", id, apperr.ErrNotFound)
	}
	if !entry.IsRunning() {
		return nil, fmt.Errorf("entry %s: %w", id, apperr.ErrAlreadyClosed)
	}

	now := s.now()
	entry.EndedAt = &now
	entry.UpdatedAt = now
	if memo != nil {
		entry.Memo = memo
	}

	if err := s.entries.Update(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// UpdateEntry patches an entry. Closed entries accept free edits to their
// timestamps, task and memo. The running entry keeps ended_at = nil unless
// the patch sets it, which closes the entry: a second path to stop that
// obeys the same invariant because both run under the service mutex.
func (s *Service) UpdateEntry(id string, patch models.UpdateEntry) (*models.TimeEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.entries.GetByID(id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("entry %s: %w", id, apperr.ErrNotFound)
	}

	if patch.ClearTask {
		entry.TaskID = nil
	} else if patch.TaskID != nil {
		entry.TaskID = patch.TaskID
	}
	if patch.StartedAt != nil {
		entry.StartedAt = *patch.StartedAt
	}
	if patch.EndedAt != nil {
		entry.EndedAt = patch.EndedAt
	}
	if patch.Memo != nil {
		entry.Memo = patch.Memo
	}
	entry.UpdatedAt = s.now()

	if err := s.entries.Update(entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// DeleteEntry removes the entry and its artifact links. Linked artifacts
// stay. Deleting the running entry simply leaves no entry running.
func (s *Service) DeleteEntry(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, err := s.entries.GetByID(id)
	if err != nil {
		return err
	}
	if entry == nil {
		return fmt.Errorf("entry %s: %w", id, apperr.ErrNotFound)
	}

	if err := s.artifacts.DeleteLinksForEntry(id); err != nil {
		return err
	}
	return s.entries.Delete(id)
}

// RunningEntry returns the open entry with relations, nil when idle.
func (s *Service) RunningEntry() (*models.TimeEntryDetail, error) {
	entry, err := s.entries.GetRunning()
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, nil
	}
	return s.detail(entry)
}

func (s *Service) GetEntry(id string) (*models.TimeEntryDetail, error) {
	entry, err := s.entries.GetByID(id)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, fmt.Errorf("entry %s: %w", id, apperr.ErrNotFound)
	}
	return s.detail(entry)
}

func (s *Service) ListEntries(filter models.EntryFilter) ([]models.TimeEntryDetail, error) {
	entries, err := s.entries.List(filter)
	if err != nil {
		return nil, err
	}

	details := make([]models.TimeEntryDetail, 0, len(entries))
	for i := range entries {
		d, err := s.detail(&entries[i])
		if err != nil {
			return nil, err
		}
		details = append(details, *d)
	}
	return details, nil
}

// detail resolves the entry's soft references. A task id that no longer
// resolves is not an error; the entry reads as unclassified.
func (s *Service) detail(entry *models.TimeEntry) (*models.TimeEntryDetail, error) {
	var task *models.Task
	if entry.TaskID != nil {
		t, err := s.tasks.GetByID(*entry.TaskID)
		if err != nil {
			return nil, err
		}
		task = t
	}

	artifacts, err := s.artifacts.ForEntry(entry.ID)
	if err != nil {
		return nil, err
	}

	return &models.TimeEntryDetail{
		TimeEntry:       *entry,
		Task:            task,
		Artifacts:       artifacts,
		DurationSeconds: entry.DurationSeconds(),
	}, nil
}

// ElapsedSeconds reports the live elapsed time of an entry against the
// service clock.
func (s *Service) ElapsedSeconds(entry *models.TimeEntry) int64 {
	return timeutil.ElapsedSecondsAt(entry.StartedAt, entry.EndedAt, s.now())
}

// --- tasks ---

func (s *Service) ListTasks(includeArchived bool) ([]models.Task, error) {
	return s.tasks.GetAll(includeArchived)
}

func (s *Service) CreateTask(input models.CreateTask) (*models.Task, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("task name cannot be empty: %w", apperr.ErrValidation)
	}
	if input.Color != nil && !models.IsValidColor(*input.Color) {
		return nil, fmt.Errorf("invalid color %q, expected #RRGGBB: %w", *input.Color, apperr.ErrValidation)
	}

	input.Name = strings.TrimSpace(input.Name)
	task := models.NewTask(input, s.now())
	if err := s.tasks.Insert(task); err != nil {
		return nil, err
	}
	return task, nil
}

func (s *Service) UpdateTask(id string, patch models.UpdateTask) (*models.Task, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, fmt.Errorf("task name cannot be empty: %w", apperr.ErrValidation)
	}
	if patch.Color != nil && !models.IsValidColor(*patch.Color) {
		return nil, fmt.Errorf("invalid color %q, expected #RRGGBB: %w", *patch.Color, apperr.ErrValidation)
	}

	task, err := s.tasks.GetByID(id)
	if err != nil {
		return nil, err
	}
	if task == nil {
		return nil, fmt.Errorf("task %s: %w", id, apperr.ErrNotFound)
	}

	if patch.Name != nil {
		task.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Description != nil {
		task.Description = patch.Description
	}
	if patch.Color != nil {
		task.Color = *patch.Color
	}
	if patch.ClearFolder {
		task.FolderID = nil
	} else if patch.FolderID != nil {
		task.FolderID = patch.FolderID
	}
	task.UpdatedAt = s.now()

	if err := s.tasks.Update(task); err != nil {
		return nil, err
	}
	return task, nil
}

// ArchiveTask hides or restores a task. Tasks are never hard-deleted by
// normal flows; their entries keep pointing at them.
func (s *Service) ArchiveTask(id string, archived bool) error {
	task, err := s.tasks.GetByID(id)
	if err != nil {
		return err
	}
	if task == nil {
		return fmt.Errorf("task %s: %w", id, apperr.ErrNotFound)
	}
	return s.tasks.SetArchived(id, archived, s.now())
}

// --- folders ---

func (s *Service) ListFolders() ([]models.Folder, error) {
	return s.folders.GetAll()
}

func (s *Service) CreateFolder(input models.CreateFolder) (*models.Folder, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("folder name cannot be empty: %w", apperr.ErrValidation)
	}

	maxOrder, err := s.folders.MaxSortOrder()
	if err != nil {
		return nil, err
	}

	input.Name = strings.TrimSpace(input.Name)
	folder := models.NewFolder(input, maxOrder+1, s.now())
	if err := s.folders.Insert(folder); err != nil {
		return nil, err
	}
	return folder, nil
}

func (s *Service) UpdateFolder(id string, patch models.UpdateFolder) (*models.Folder, error) {
	if patch.Name != nil && strings.TrimSpace(*patch.Name) == "" {
		return nil, fmt.Errorf("folder name cannot be empty: %w", apperr.ErrValidation)
	}

	folder, err := s.folders.GetByID(id)
	if err != nil {
		return nil, err
	}
	if folder == nil {
		return nil, fmt.Errorf("folder %s: %w", id, apperr.ErrNotFound)
	}

	if patch.Name != nil {
		folder.Name = strings.TrimSpace(*patch.Name)
	}
	if patch.Color != nil {
		folder.Color = *patch.Color
	}
	if patch.Icon != nil {
		folder.Icon = patch.Icon
	}
	if patch.SortOrder != nil {
		folder.SortOrder = *patch.SortOrder
	}
	folder.UpdatedAt = s.now()

	if err := s.folders.Update(folder); err != nil {
		return nil, err
	}
	return folder, nil
}

// DeleteFolder removes the folder and moves its tasks back to
// unclassified. The tasks are neither deleted nor archived.
func (s *Service) DeleteFolder(id string) error {
	folder, err := s.folders.GetByID(id)
	if err != nil {
		return err
	}
	if folder == nil {
		return fmt.Errorf("folder %s: %w", id, apperr.ErrNotFound)
	}

	if err := s.tasks.UnassignFolder(id, s.now()); err != nil {
		return err
	}
	return s.folders.Delete(id)
}

// --- artifacts ---

func (s *Service) ListArtifacts(limit *int64) ([]models.Artifact, error) {
	return s.artifacts.GetAll(limit)
}

// CreateArtifact records a new artifact and optionally links it to an
// entry in the same call.
func (s *Service) CreateArtifact(input models.CreateArtifact, entryID *string) (*models.Artifact, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, fmt.Errorf("artifact name cannot be empty: %w", apperr.ErrValidation)
	}
	if strings.TrimSpace(input.ArtifactType) == "" {
		return nil, fmt.Errorf("artifact type cannot be empty: %w", apperr.ErrValidation)
	}

	artifact := models.NewArtifact(input, s.now())
	if err := s.artifacts.Insert(artifact); err != nil {
		return nil, err
	}

	if entryID != nil {
		if err := s.artifacts.Link(*entryID, artifact.ID); err != nil {
			return nil, err
		}
	}
	return artifact, nil
}

func (s *Service) LinkArtifact(entryID, artifactID string) error {
	artifact, err := s.artifacts.GetByID(artifactID)
	if err != nil {
		return err
	}
	if artifact == nil {
		return fmt.Errorf("artifact %s: %w", artifactID, apperr.ErrNotFound)
	}

	return s.artifacts.Link(entryID, artifactID)
}

func (s *Service) UnlinkArtifact(entryID, artifactID string) error {
	removed, err := s.artifacts.Unlink(entryID, artifactID)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("link between entry %s and artifact %s: %w", entryID, artifactID, apperr.ErrNotFound)
	}
	return nil
}

// DeleteArtifact removes the artifact and every link pointing at it.
func (s *Service) DeleteArtifact(id string) error {
	artifact, err := s.artifacts.GetByID(id)
	if err != nil {
		return err
	}
	if artifact == nil {
		return fmt.Errorf("artifact %s: %w", id, apperr.ErrNotFound)
	}

	if err := s.artifacts.DeleteLinksForArtifact(id); err != nil {
		return err
	}
	return s.artifacts.Delete(id)
}
