package client

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmoretti/punchcard/internal/apperr"
	"github.com/lmoretti/punchcard/internal/bundle"
	"github.com/lmoretti/punchcard/internal/db"
	"github.com/lmoretti/punchcard/internal/models"
	"github.com/lmoretti/punchcard/internal/tracker"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	database, err := db.OpenAndMigrate(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	store := NewStore(tracker.NewService(database), bundle.NewService(database))
	t.Cleanup(store.Close)
	return store
}

func strPtr(s string) *string { return &s }

func TestRefreshPopulatesSnapshot(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateTask(models.CreateTask{Name: "writing"})
	require.NoError(t, err)
	_, err = store.StartEntry(nil, nil)
	require.NoError(t, err)

	require.NoError(t, store.Refresh())

	state := store.Snapshot()
	assert.Len(t, state.Tasks, 1)
	assert.Len(t, state.Entries, 1)
	require.NotNil(t, state.Running)
}

func TestMutationsKeepProjectionCurrent(t *testing.T) {
	store := newTestStore(t)

	entry, err := store.StartEntry(nil, strPtr("focus"))
	require.NoError(t, err)

	state := store.Snapshot()
	require.NotNil(t, state.Running)
	assert.Equal(t, entry.ID, state.Running.ID)

	_, err = store.StopEntry(entry.ID, nil)
	require.NoError(t, err)

	state = store.Snapshot()
	assert.Nil(t, state.Running)
	require.Len(t, state.Entries, 1)
	assert.False(t, state.Entries[0].IsRunning())

	require.NoError(t, store.DeleteEntry(entry.ID))
	assert.Empty(t, store.Snapshot().Entries)
}

func TestStartEntryConflictLeavesStateIntact(t *testing.T) {
	store := newTestStore(t)

	first, err := store.StartEntry(nil, nil)
	require.NoError(t, err)

	_, err = store.StartEntry(nil, nil)
	assert.True(t, errors.Is(err, apperr.ErrConflict))

	state := store.Snapshot()
	require.NotNil(t, state.Running)
	assert.Equal(t, first.ID, state.Running.ID)
}

func TestSubscribe(t *testing.T) {
	store := newTestStore(t)

	var notified []State
	unsubscribe := store.Subscribe(func(s State) {
		notified = append(notified, s)
	})

	_, err := store.CreateTask(models.CreateTask{Name: "writing"})
	require.NoError(t, err)
	require.NotEmpty(t, notified)
	assert.Len(t, notified[len(notified)-1].Tasks, 1)

	seen := len(notified)
	unsubscribe()

	_, err = store.CreateTask(models.CreateTask{Name: "more"})
	require.NoError(t, err)
	assert.Len(t, notified, seen)
}

func TestArchivedTasksLeaveProjection(t *testing.T) {
	store := newTestStore(t)

	task, err := store.CreateTask(models.CreateTask{Name: "old"})
	require.NoError(t, err)

	require.NoError(t, store.ArchiveTask(task.ID, true))
	assert.Empty(t, store.Snapshot().Tasks)

	// The read-through still reaches archived tasks.
	all, err := store.ListTasks(true)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Archived)
}

func TestSetEntryFilter(t *testing.T) {
	store := newTestStore(t)

	task, err := store.CreateTask(models.CreateTask{Name: "writing"})
	require.NoError(t, err)

	entry, err := store.StartEntry(&task.ID, nil)
	require.NoError(t, err)
	_, err = store.StopEntry(entry.ID, nil)
	require.NoError(t, err)

	other, err := store.StartEntry(nil, nil)
	require.NoError(t, err)
	_, err = store.StopEntry(other.ID, nil)
	require.NoError(t, err)

	require.NoError(t, store.SetEntryFilter(models.EntryFilter{TaskID: &task.ID}))
	state := store.Snapshot()
	require.Len(t, state.Entries, 1)
	assert.Equal(t, entry.ID, state.Entries[0].ID)

	require.NoError(t, store.SetEntryFilter(models.EntryFilter{}))
	assert.Len(t, store.Snapshot().Entries, 2)
}

func TestArtifactMutations(t *testing.T) {
	store := newTestStore(t)

	entry, err := store.StartEntry(nil, nil)
	require.NoError(t, err)

	artifact, err := store.CreateArtifact(models.CreateArtifact{
		Name:         "PR #7",
		ArtifactType: "pull_request",
	}, &entry.ID)
	require.NoError(t, err)

	state := store.Snapshot()
	require.Len(t, state.Artifacts, 1)
	require.NotNil(t, state.Running)
	require.Len(t, state.Running.Artifacts, 1)

	require.NoError(t, store.UnlinkArtifact(entry.ID, artifact.ID))
	assert.Empty(t, store.Snapshot().Running.Artifacts)

	require.NoError(t, store.DeleteArtifact(artifact.ID))
	assert.Empty(t, store.Snapshot().Artifacts)
}

func TestImportBundleReloadsEverything(t *testing.T) {
	store := newTestStore(t)

	_, err := store.CreateTask(models.CreateTask{Name: "local"})
	require.NoError(t, err)

	incoming := &models.Bundle{
		Version: bundle.FormatVersion,
		Tasks: []models.Task{{
			ID:        "task-a",
			Name:      "imported",
			Color:     "#112233",
			CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
			UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}},
		TimeEntries: []models.BundleEntry{},
	}

	result, err := store.ImportBundle(incoming, false)
	require.NoError(t, err)
	assert.Equal(t, 1, result.TasksImported)

	state := store.Snapshot()
	require.Len(t, state.Tasks, 1)
	assert.Equal(t, "imported", state.Tasks[0].Name)
	assert.Empty(t, state.Entries)
}

func TestCloseIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	store.Close()
	store.Close()
}
