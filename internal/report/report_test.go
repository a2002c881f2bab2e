package report

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmoretti/punchcard/internal/db"
	"github.com/lmoretti/punchcard/internal/models"
	"github.com/lmoretti/punchcard/internal/repository"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	database, err := db.OpenAndMigrate(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	return database
}

func insertEntry(t *testing.T, database *sql.DB, taskID *string, start time.Time, duration time.Duration) *models.TimeEntry {
	t.Helper()

	entry := models.NewTimeEntry(taskID, nil, start)
	if duration > 0 {
		end := start.Add(duration)
		entry.EndedAt = &end
	}
	require.NoError(t, repository.NewEntryRepo(database).Insert(entry))
	return entry
}

func insertTask(t *testing.T, database *sql.DB, name string) *models.Task {
	t.Helper()

	task := models.NewTask(models.CreateTask{Name: name}, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, repository.NewTaskRepo(database).Insert(task))
	return task
}

func TestMonthlyTotals(t *testing.T) {
	database := newTestDB(t)
	svc := NewService(database, time.UTC)

	task := insertTask(t, database, "writing")

	// Two entries on March 1st, one on March 2nd.
	insertEntry(t, database, &task.ID, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), time.Hour)
	insertEntry(t, database, nil, time.Date(2024, 3, 1, 14, 0, 0, 0, time.UTC), 30*time.Minute)
	insertEntry(t, database, &task.ID, time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC), 45*time.Minute)

	rep, err := svc.Monthly(2024, 3)
	require.NoError(t, err)

	assert.Equal(t, 2024, rep.Year)
	assert.Equal(t, 3, rep.Month)
	assert.Equal(t, int64(8100), rep.TotalSeconds)
	assert.Equal(t, int64(3), rep.TotalEntries)
	assert.Equal(t, int64(2), rep.WorkingDays)
	assert.Equal(t, int64(4050), rep.AverageSecondsPerDay)

	require.Len(t, rep.DailySummaries, 2)
	assert.Equal(t, "2024-03-01", rep.DailySummaries[0].Date)
	assert.Equal(t, int64(5400), rep.DailySummaries[0].TotalSeconds)
	assert.Equal(t, int64(2), rep.DailySummaries[0].EntryCount)
	assert.Equal(t, "2024-03-02", rep.DailySummaries[1].Date)
	assert.Equal(t, int64(2700), rep.DailySummaries[1].TotalSeconds)

	require.Len(t, rep.TaskSummaries, 2)
	// Largest total first.
	assert.Equal(t, "writing", rep.TaskSummaries[0].TaskName)
	assert.Equal(t, int64(6300), rep.TaskSummaries[0].TotalSeconds)
	assert.Equal(t, int64(2), rep.TaskSummaries[0].EntryCount)
	assert.Equal(t, models.UnclassifiedName, rep.TaskSummaries[1].TaskName)
	assert.Equal(t, int64(1800), rep.TaskSummaries[1].TotalSeconds)

	// Cross-sums agree with the grand total.
	var byTask, byDay int64
	for _, ts := range rep.TaskSummaries {
		byTask += ts.TotalSeconds
	}
	for _, ds := range rep.DailySummaries {
		byDay += ds.TotalSeconds
	}
	assert.Equal(t, rep.TotalSeconds, byTask)
	assert.Equal(t, rep.TotalSeconds, byDay)
}

func TestMonthlyEmptyMonth(t *testing.T) {
	database := newTestDB(t)
	svc := NewService(database, time.UTC)

	insertEntry(t, database, nil, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), time.Hour)

	rep, err := svc.Monthly(2024, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rep.TotalSeconds)
	assert.Equal(t, int64(0), rep.TotalEntries)
	assert.Equal(t, int64(0), rep.WorkingDays)
	assert.Equal(t, int64(0), rep.AverageSecondsPerDay)
	assert.Empty(t, rep.TaskSummaries)
	assert.Empty(t, rep.DailySummaries)
}

func TestMonthlyIncludesRunningEntry(t *testing.T) {
	database := newTestDB(t)
	svc := NewService(database, time.UTC)

	start := time.Date(2024, 3, 15, 9, 0, 0, 0, time.UTC)
	insertEntry(t, database, nil, start, 0)
	svc.SetClock(func() time.Time { return start.Add(20 * time.Minute) })

	rep, err := svc.Monthly(2024, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), rep.TotalSeconds)
	assert.Equal(t, int64(1), rep.TotalEntries)
	require.Len(t, rep.DailySummaries, 1)
	assert.Equal(t, int64(1200), rep.DailySummaries[0].TotalSeconds)
}

func TestMonthlyBoundaryIsStartBased(t *testing.T) {
	database := newTestDB(t)
	svc := NewService(database, time.UTC)

	// Starts in March, ends in April: counts fully toward March.
	start := time.Date(2024, 3, 31, 23, 0, 0, 0, time.UTC)
	insertEntry(t, database, nil, start, 2*time.Hour)

	march, err := svc.Monthly(2024, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(7200), march.TotalSeconds)

	april, err := svc.Monthly(2024, 4)
	require.NoError(t, err)
	assert.Equal(t, int64(0), april.TotalSeconds)
}

func TestMonthlyDanglingTaskGroupsAsUnclassified(t *testing.T) {
	database := newTestDB(t)
	svc := NewService(database, time.UTC)

	ghost := "deleted-task-id"
	insertEntry(t, database, &ghost, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), time.Hour)

	rep, err := svc.Monthly(2024, 3)
	require.NoError(t, err)
	require.Len(t, rep.TaskSummaries, 1)
	assert.Equal(t, models.UnclassifiedName, rep.TaskSummaries[0].TaskName)
	require.NotNil(t, rep.TaskSummaries[0].TaskID)
	assert.Equal(t, ghost, *rep.TaskSummaries[0].TaskID)
}

func TestMonthlyTaskTiebreakByName(t *testing.T) {
	database := newTestDB(t)
	svc := NewService(database, time.UTC)

	alpha := insertTask(t, database, "alpha")
	beta := insertTask(t, database, "beta")

	insertEntry(t, database, &beta.ID, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC), time.Hour)
	insertEntry(t, database, &alpha.ID, time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC), time.Hour)

	rep, err := svc.Monthly(2024, 3)
	require.NoError(t, err)
	require.Len(t, rep.TaskSummaries, 2)
	assert.Equal(t, "alpha", rep.TaskSummaries[0].TaskName)
	assert.Equal(t, "beta", rep.TaskSummaries[1].TaskName)
}

func TestMonthlyTimezoneBucketing(t *testing.T) {
	database := newTestDB(t)

	// 23:30 UTC March 1st falls on March 2nd for a UTC+9 viewer.
	insertEntry(t, database, nil, time.Date(2024, 3, 1, 23, 30, 0, 0, time.UTC), 10*time.Minute)

	utcSvc := NewService(database, time.UTC)
	rep, err := utcSvc.Monthly(2024, 3)
	require.NoError(t, err)
	require.Len(t, rep.DailySummaries, 1)
	assert.Equal(t, "2024-03-01", rep.DailySummaries[0].Date)

	tokyo := time.FixedZone("UTC+9", 9*3600)
	tokyoSvc := NewService(database, tokyo)
	rep, err = tokyoSvc.Monthly(2024, 3)
	require.NoError(t, err)
	require.Len(t, rep.DailySummaries, 1)
	assert.Equal(t, "2024-03-02", rep.DailySummaries[0].Date)
}

func TestAvailableMonths(t *testing.T) {
	database := newTestDB(t)
	svc := NewService(database, time.UTC)

	insertEntry(t, database, nil, time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC), time.Hour)
	insertEntry(t, database, nil, time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC), time.Hour)
	insertEntry(t, database, nil, time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC), time.Hour)
	// Still running; its month shows up regardless.
	insertEntry(t, database, nil, time.Date(2023, 12, 31, 9, 0, 0, 0, time.UTC), 0)

	months, err := svc.AvailableMonths()
	require.NoError(t, err)
	require.Len(t, months, 3)
	assert.Equal(t, models.YearMonth{Year: 2024, Month: 3}, months[0])
	assert.Equal(t, models.YearMonth{Year: 2024, Month: 1}, months[1])
	assert.Equal(t, models.YearMonth{Year: 2023, Month: 12}, months[2])
}

func TestAvailableMonthsEmpty(t *testing.T) {
	database := newTestDB(t)
	svc := NewService(database, time.UTC)

	months, err := svc.AvailableMonths()
	require.NoError(t, err)
	assert.Empty(t, months)
}
