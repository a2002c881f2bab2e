package tracker

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmoretti/punchcard/internal/apperr"
	"github.com/lmoretti/punchcard/internal/db"
	"github.com/lmoretti/punchcard/internal/models"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	database, err := db.OpenAndMigrate(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	return NewService(database)
}

func strPtr(s string) *string { return &s }

func TestStartEntry(t *testing.T) {
	svc := newTestService(t)

	entry, err := svc.StartEntry(nil, strPtr("morning focus"))
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Nil(t, entry.TaskID)
	assert.Nil(t, entry.EndedAt)
	require.NotNil(t, entry.Memo)
	assert.Equal(t, "morning focus", *entry.Memo)

	running, err := svc.RunningEntry()
	require.NoError(t, err)
	require.NotNil(t, running)
	assert.Equal(t, entry.ID, running.ID)
}

func TestStartEntryConflictsWhileRunning(t *testing.T) {
	svc := newTestService(t)

	first, err := svc.StartEntry(nil, nil)
	require.NoError(t, err)

	_, err = svc.StartEntry(nil, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	// The running entry is untouched; stopping it lets a new one start.
	_, err = svc.StopEntry(first.ID, nil)
	require.NoError(t, err)

	_, err = svc.StartEntry(nil, nil)
	require.NoError(t, err)
}

func TestStopEntry(t *testing.T) {
	svc := newTestService(t)

	entry, err := svc.StartEntry(nil, strPtr("draft"))
	require.NoError(t, err)

	stopped, err := svc.StopEntry(entry.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, stopped.EndedAt)
	require.NotNil(t, stopped.Memo)
	assert.Equal(t, "draft", *stopped.Memo)

	running, err := svc.RunningEntry()
	require.NoError(t, err)
	assert.Nil(t, running)
}

func TestStopEntryReplacesMemo(t *testing.T) {
	svc := newTestService(t)

	entry, err := svc.StartEntry(nil, strPtr("draft"))
	require.NoError(t, err)

	stopped, err := svc.StopEntry(entry.ID, strPtr("final"))
	require.NoError(t, err)
	require.NotNil(t, stopped.Memo)
	assert.Equal(t, "final", *stopped.Memo)
}

func TestStopEntryErrors(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.StopEntry("no-such-id", nil)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	entry, err := svc.StartEntry(nil, nil)
	require.NoError(t, err)
	_, err = svc.StopEntry(entry.ID, nil)
	require.NoError(t, err)

	_, err = svc.StopEntry(entry.ID, nil)
	assert.True(t, errors.Is(err, apperr.ErrAlreadyClosed))
}

func TestElapsedSecondsWithFixedClock(t *testing.T) {
	svc := newTestService(t)

	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.SetClock(func() time.Time { return t0 })

	entry, err := svc.StartEntry(nil, nil)
	require.NoError(t, err)

	svc.SetClock(func() time.Time { return t0.Add(90 * time.Minute) })
	assert.Equal(t, int64(5400), svc.ElapsedSeconds(entry))

	stopped, err := svc.StopEntry(entry.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, stopped.DurationSeconds())
	assert.Equal(t, int64(5400), *stopped.DurationSeconds())
}

func TestUpdateEntryClosesRunningEntry(t *testing.T) {
	svc := newTestService(t)

	entry, err := svc.StartEntry(nil, nil)
	require.NoError(t, err)

	end := entry.StartedAt.Add(time.Hour)
	updated, err := svc.UpdateEntry(entry.ID, models.UpdateEntry{EndedAt: &end})
	require.NoError(t, err)
	assert.False(t, updated.IsRunning())

	// With no entry running a new one may start.
	_, err = svc.StartEntry(nil, nil)
	require.NoError(t, err)
}

func TestUpdateEntryPatchSemantics(t *testing.T) {
	svc := newTestService(t)

	task, err := svc.CreateTask(models.CreateTask{Name: "writing"})
	require.NoError(t, err)

	entry, err := svc.StartEntry(&task.ID, strPtr("keep me"))
	require.NoError(t, err)
	_, err = svc.StopEntry(entry.ID, nil)
	require.NoError(t, err)

	newStart := entry.StartedAt.Add(-time.Hour)
	updated, err := svc.UpdateEntry(entry.ID, models.UpdateEntry{StartedAt: &newStart})
	require.NoError(t, err)
	assert.True(t, updated.StartedAt.Equal(newStart))
	require.NotNil(t, updated.TaskID)
	assert.Equal(t, task.ID, *updated.TaskID)
	require.NotNil(t, updated.Memo)
	assert.Equal(t, "keep me", *updated.Memo)

	updated, err = svc.UpdateEntry(entry.ID, models.UpdateEntry{ClearTask: true})
	require.NoError(t, err)
	assert.Nil(t, updated.TaskID)

	_, err = svc.UpdateEntry("no-such-id", models.UpdateEntry{})
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestDeleteEntryKeepsLinkedArtifacts(t *testing.T) {
	svc := newTestService(t)

	entry, err := svc.StartEntry(nil, nil)
	require.NoError(t, err)

	artifact, err := svc.CreateArtifact(models.CreateArtifact{
		Name:         "design notes",
		ArtifactType: "document",
	}, &entry.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteEntry(entry.ID))

	_, err = svc.GetEntry(entry.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	artifacts, err := svc.ListArtifacts(nil)
	require.NoError(t, err)
	require.Len(t, artifacts, 1)
	assert.Equal(t, artifact.ID, artifacts[0].ID)
}

func TestDanglingTaskReadsAsUnclassified(t *testing.T) {
	svc := newTestService(t)

	ghost := "task-id-that-never-existed"
	entry, err := svc.StartEntry(&ghost, nil)
	require.NoError(t, err)

	detail, err := svc.GetEntry(entry.ID)
	require.NoError(t, err)
	assert.Nil(t, detail.Task)
	require.NotNil(t, detail.TaskID)
	assert.Equal(t, ghost, *detail.TaskID)
}

func TestListEntriesFilters(t *testing.T) {
	svc := newTestService(t)

	task, err := svc.CreateTask(models.CreateTask{Name: "support"})
	require.NoError(t, err)

	t0 := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		svc.SetClock(func() time.Time { return t0.Add(time.Duration(i) * time.Hour) })
		var taskID *string
		if i == 0 {
			taskID = &task.ID
		}
		entry, err := svc.StartEntry(taskID, nil)
		require.NoError(t, err)
		svc.SetClock(func() time.Time { return t0.Add(time.Duration(i)*time.Hour + 30*time.Minute) })
		_, err = svc.StopEntry(entry.ID, nil)
		require.NoError(t, err)
	}

	all, err := svc.ListEntries(models.EntryFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Newest first.
	assert.True(t, all[0].StartedAt.After(all[1].StartedAt))

	byTask, err := svc.ListEntries(models.EntryFilter{TaskID: &task.ID})
	require.NoError(t, err)
	require.Len(t, byTask, 1)
	require.NotNil(t, byTask[0].Task)
	assert.Equal(t, "support", byTask[0].Task.Name)

	limit := int64(2)
	limited, err := svc.ListEntries(models.EntryFilter{Limit: &limit})
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestCreateTaskValidation(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateTask(models.CreateTask{Name: "   "})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = svc.CreateTask(models.CreateTask{Name: "ok", Color: strPtr("blue")})
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	task, err := svc.CreateTask(models.CreateTask{Name: "  trimmed  "})
	require.NoError(t, err)
	assert.Equal(t, "trimmed", task.Name)
	assert.Equal(t, models.DefaultTaskColor, task.Color)
}

func TestArchiveTask(t *testing.T) {
	svc := newTestService(t)

	task, err := svc.CreateTask(models.CreateTask{Name: "old project"})
	require.NoError(t, err)

	require.NoError(t, svc.ArchiveTask(task.ID, true))

	active, err := svc.ListTasks(false)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := svc.ListTasks(true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Archived)

	require.NoError(t, svc.ArchiveTask(task.ID, false))
	active, err = svc.ListTasks(false)
	require.NoError(t, err)
	assert.Len(t, active, 1)

	err = svc.ArchiveTask("no-such-id", true)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestArchivedTaskStillResolvesOnEntries(t *testing.T) {
	svc := newTestService(t)

	task, err := svc.CreateTask(models.CreateTask{Name: "legacy"})
	require.NoError(t, err)

	entry, err := svc.StartEntry(&task.ID, nil)
	require.NoError(t, err)
	_, err = svc.StopEntry(entry.ID, nil)
	require.NoError(t, err)

	require.NoError(t, svc.ArchiveTask(task.ID, true))

	detail, err := svc.GetEntry(entry.ID)
	require.NoError(t, err)
	require.NotNil(t, detail.Task)
	assert.Equal(t, "legacy", detail.Task.Name)
}

func TestFolderSortOrder(t *testing.T) {
	svc := newTestService(t)

	first, err := svc.CreateFolder(models.CreateFolder{Name: "clients"})
	require.NoError(t, err)
	second, err := svc.CreateFolder(models.CreateFolder{Name: "internal"})
	require.NoError(t, err)

	assert.Equal(t, first.SortOrder+1, second.SortOrder)

	folders, err := svc.ListFolders()
	require.NoError(t, err)
	require.Len(t, folders, 2)
	assert.Equal(t, "clients", folders[0].Name)
}

func TestDeleteFolderUnparentsTasks(t *testing.T) {
	svc := newTestService(t)

	folder, err := svc.CreateFolder(models.CreateFolder{Name: "clients"})
	require.NoError(t, err)

	task, err := svc.CreateTask(models.CreateTask{Name: "acme", FolderID: &folder.ID})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteFolder(folder.ID))

	tasks, err := svc.ListTasks(false)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, task.ID, tasks[0].ID)
	assert.Nil(t, tasks[0].FolderID)
	assert.False(t, tasks[0].Archived)

	err = svc.DeleteFolder(folder.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestArtifactValidation(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.CreateArtifact(models.CreateArtifact{Name: "", ArtifactType: "link"}, nil)
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	_, err = svc.CreateArtifact(models.CreateArtifact{Name: "pr", ArtifactType: "  "}, nil)
	assert.True(t, errors.Is(err, apperr.ErrValidation))
}

func TestArtifactLinking(t *testing.T) {
	svc := newTestService(t)

	entry, err := svc.StartEntry(nil, nil)
	require.NoError(t, err)

	artifact, err := svc.CreateArtifact(models.CreateArtifact{
		Name:         "PR #42",
		ArtifactType: "pull_request",
		Reference:    strPtr("https://example.com/pr/42"),
		Metadata:     map[string]any{"repo": "acme/api"},
	}, nil)
	require.NoError(t, err)

	require.NoError(t, svc.LinkArtifact(entry.ID, artifact.ID))

	detail, err := svc.GetEntry(entry.ID)
	require.NoError(t, err)
	require.Len(t, detail.Artifacts, 1)
	assert.Equal(t, "PR #42", detail.Artifacts[0].Name)
	assert.Equal(t, "acme/api", detail.Artifacts[0].Metadata["repo"])

	require.NoError(t, svc.UnlinkArtifact(entry.ID, artifact.ID))

	err = svc.UnlinkArtifact(entry.ID, artifact.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	err = svc.LinkArtifact(entry.ID, "no-such-artifact")
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestDeleteArtifactRemovesLinks(t *testing.T) {
	svc := newTestService(t)

	entry, err := svc.StartEntry(nil, nil)
	require.NoError(t, err)

	artifact, err := svc.CreateArtifact(models.CreateArtifact{
		Name:         "spec doc",
		ArtifactType: "document",
	}, &entry.ID)
	require.NoError(t, err)

	require.NoError(t, svc.DeleteArtifact(artifact.ID))

	detail, err := svc.GetEntry(entry.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.Artifacts)

	err = svc.DeleteArtifact(artifact.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}
