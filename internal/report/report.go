// Package report derives monthly statistics from the entry ledger.
// Aggregation happens in Go with explicit grouping keys so open entries
// can be valued live and iteration order is deterministic.
package report

import (
	"database/sql"
	"sort"
	"time"

	"github.com/lmoretti/punchcard/internal/models"
	"github.com/lmoretti/punchcard/internal/repository"
	"github.com/lmoretti/punchcard/internal/timeutil"
)

type Service struct {
	entries *repository.EntryRepo
	tasks   *repository.TaskRepo
	loc     *time.Location
	now     func() time.Time
}

func NewService(db *sql.DB, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{
		entries: repository.NewEntryRepo(db),
		tasks:   repository.NewTaskRepo(db),
		loc:     loc,
		now:     time.Now,
	}
}

// SetClock overrides the service clock. Tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Monthly builds the report for one local calendar month. Entries are
// selected by started_at; an entry still running at query time counts with
// its live elapsed duration.
func (s *Service) Monthly(year, month int) (*models.MonthlyReport, error) {
	from, to := timeutil.MonthRange(year, month, s.loc)
	entries, err := s.entries.ListBetween(from, to)
	if err != nil {
		return nil, err
	}

	now := s.now()

	taskGroups := make(map[string]*models.TaskSummary)
	dayGroups := make(map[string]*models.DailySummary)
	var totalSeconds int64

	for i := range entries {
		entry := &entries[i]
		seconds := timeutil.ElapsedSecondsAt(entry.StartedAt, entry.EndedAt, now)
		totalSeconds += seconds

		key := ""
		if entry.TaskID != nil {
			key = *entry.TaskID
		}
		group, ok := taskGroups[key]
		if !ok {
			group = &models.TaskSummary{
				TaskID:    entry.TaskID,
				TaskName:  models.UnclassifiedName,
				TaskColor: models.UnclassifiedColor,
			}
			if entry.TaskID != nil {
				// Missing task is not an error, the group keeps the
				// unclassified label with the original id.
				task, err := s.tasks.GetByID(*entry.TaskID)
				if err != nil {
					return nil, err
				}
				if task != nil {
					group.TaskName = task.Name
					group.TaskColor = task.Color
				}
			}
			taskGroups[key] = group
		}
		group.TotalSeconds += seconds
		group.EntryCount++

		date := timeutil.DateKey(entry.StartedAt, s.loc)
		day, ok := dayGroups[date]
		if !ok {
			day = &models.DailySummary{Date: date}
			dayGroups[date] = day
		}
		day.TotalSeconds += seconds
		day.EntryCount++
	}

	taskSummaries := make([]models.TaskSummary, 0, len(taskGroups))
	for _, g := range taskGroups {
		taskSummaries = append(taskSummaries, *g)
	}
	sort.Slice(taskSummaries, func(i, j int) bool {
		if taskSummaries[i].TotalSeconds != taskSummaries[j].TotalSeconds {
			return taskSummaries[i].TotalSeconds > taskSummaries[j].TotalSeconds
		}
		return taskSummaries[i].TaskName < taskSummaries[j].TaskName
	})

	dailySummaries := make([]models.DailySummary, 0, len(dayGroups))
	for _, g := range dayGroups {
		dailySummaries = append(dailySummaries, *g)
	}
	sort.Slice(dailySummaries, func(i, j int) bool {
		return dailySummaries[i].Date < dailySummaries[j].Date
	})

	workingDays := int64(len(dailySummaries))
	var average int64
	if workingDays > 0 {
		average = totalSeconds / workingDays
	}

	return &models.MonthlyReport{
		Year:                 year,
		Month:                month,
		TotalSeconds:         totalSeconds,
		TotalEntries:         int64(len(entries)),
		WorkingDays:          workingDays,
		AverageSecondsPerDay: average,
		TaskSummaries:        taskSummaries,
		DailySummaries:       dailySummaries,
	}, nil
}

// AvailableMonths lists every distinct (year, month) with at least one
// entry, most recent first.
func (s *Service) AvailableMonths() ([]models.YearMonth, error) {
	starts, err := s.entries.StartTimes()
	if err != nil {
		return nil, err
	}

	seen := make(map[models.YearMonth]bool)
	var months []models.YearMonth
	for _, t := range starts {
		local := t.In(s.loc)
		ym := models.YearMonth{Year: local.Year(), Month: int(local.Month())}
		if !seen[ym] {
			seen[ym] = true
			months = append(months, ym)
		}
	}

	sort.Slice(months, func(i, j int) bool {
		if months[i].Year != months[j].Year {
			return months[i].Year > months[j].Year
		}
		return months[i].Month > months[j].Month
	})

	return months, nil
}
