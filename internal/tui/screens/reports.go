package screens

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lmoretti/punchcard/internal/models"
	"github.com/lmoretti/punchcard/internal/report"
)

type Reports struct {
	reports *report.Service
	width   int
	height  int

	months   []models.YearMonth
	selected int
	current  *models.MonthlyReport
	loading  bool
	err      error
}

func NewReports(reports *report.Service) *Reports {
	return &Reports{reports: reports}
}

func (r *Reports) SetSize(width, height int) {
	r.width = width
	r.height = height
}

type reportDataMsg struct {
	months  []models.YearMonth
	current *models.MonthlyReport
	err     error
}

func (r *Reports) Init() tea.Cmd {
	r.loading = true
	r.selected = 0
	return r.load
}

func (r *Reports) load() tea.Msg {
	months, err := r.reports.AvailableMonths()
	if err != nil {
		return reportDataMsg{err: err}
	}

	// An empty ledger still renders: default to the current month.
	if len(months) == 0 {
		now := time.Now()
		months = []models.YearMonth{{Year: now.Year(), Month: int(now.Month())}}
	}

	if r.selected >= len(months) {
		r.selected = len(months) - 1
	}
	ym := months[r.selected]

	current, err := r.reports.Monthly(ym.Year, ym.Month)
	if err != nil {
		return reportDataMsg{err: err}
	}

	return reportDataMsg{months: months, current: current}
}

func (r *Reports) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case reportDataMsg:
		r.loading = false
		r.err = msg.err
		r.months = msg.months
		r.current = msg.current
		return nil

	case tea.KeyMsg:
		switch msg.String() {
		case "left", "h":
			// Older month.
			if r.selected < len(r.months)-1 {
				r.selected++
				return r.load
			}
		case "right", "l":
			// Newer month.
			if r.selected > 0 {
				r.selected--
				return r.load
			}
		case "q", "esc":
			return Navigate("dashboard")
		}
	}

	return nil
}

func (r *Reports) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Monthly Report"))
	b.WriteString("\n\n")

	if r.loading {
		b.WriteString("Loading...\n")
		return b.String()
	}

	if r.err != nil {
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", r.err)))
		b.WriteString("\n")
		return b.String()
	}

	rep := r.current
	if rep == nil {
		b.WriteString(DimStyle.Render("No data."))
		return b.String()
	}

	b.WriteString(SubtitleStyle.Render(fmt.Sprintf("%04d-%02d", rep.Year, rep.Month)))
	b.WriteString("\n")

	summary := fmt.Sprintf(
		"Total: %s over %d entries\nWorking days: %d\nAverage per day: %s",
		FormatSeconds(rep.TotalSeconds),
		rep.TotalEntries,
		rep.WorkingDays,
		FormatSeconds(rep.AverageSecondsPerDay),
	)
	b.WriteString(BoxStyle.Render(summary))
	b.WriteString("\n\n")

	if len(rep.TaskSummaries) > 0 {
		b.WriteString(SubtitleStyle.Render("By task"))
		b.WriteString("\n")
		for _, ts := range rep.TaskSummaries {
			b.WriteString(fmt.Sprintf("  %-30s %10s  (%d entries)\n",
				NormalStyle.Render(ts.TaskName),
				FormatSeconds(ts.TotalSeconds),
				ts.EntryCount,
			))
		}
		b.WriteString("\n")
	}

	if len(rep.DailySummaries) > 0 {
		b.WriteString(SubtitleStyle.Render("By day"))
		b.WriteString("\n")
		for _, ds := range rep.DailySummaries {
			b.WriteString(fmt.Sprintf("  %s  %10s  (%d entries)\n",
				ds.Date,
				FormatSeconds(ds.TotalSeconds),
				ds.EntryCount,
			))
		}
	}

	if len(rep.TaskSummaries) == 0 && len(rep.DailySummaries) == 0 {
		b.WriteString(DimStyle.Render("No entries this month."))
		b.WriteString("\n")
	}

	help := "[←] Older month  [→] Newer month  [q] Back"
	b.WriteString(HelpStyle.Render(help))

	return b.String()
}
