package screens

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lmoretti/punchcard/internal/client"
	"github.com/lmoretti/punchcard/internal/models"
	"github.com/lmoretti/punchcard/internal/timeutil"
)

type Dashboard struct {
	store  *client.Store
	width  int
	height int

	state  client.State
	cursor int
	err    error
}

func NewDashboard(store *client.Store) *Dashboard {
	return &Dashboard{store: store}
}

func (d *Dashboard) SetSize(width, height int) {
	d.width = width
	d.height = height
}

func (d *Dashboard) Init() tea.Cmd {
	return func() tea.Msg {
		if err := d.store.Refresh(); err != nil {
			return errMsg{err}
		}
		return StateMsg{State: d.store.Snapshot()}
	}
}

type errMsg struct{ err error }

func (d *Dashboard) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case StateMsg:
		d.state = msg.State
		if d.cursor >= len(d.state.Tasks) {
			d.cursor = 0
		}
		return nil

	case errMsg:
		d.err = msg.err
		return nil

	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if d.cursor > 0 {
				d.cursor--
			}
		case "down", "j":
			if d.cursor < len(d.state.Tasks)-1 {
				d.cursor++
			}
		case "enter":
			return d.startSelected()
		case "n":
			return d.start(nil)
		case "s":
			return d.stopRunning()
		case "t":
			return Navigate("tasks")
		case "r":
			return Navigate("reports")
		case "x":
			return Navigate("transfer")
		}
	}

	return nil
}

func (d *Dashboard) startSelected() tea.Cmd {
	if len(d.state.Tasks) == 0 {
		return nil
	}
	taskID := d.state.Tasks[d.cursor].ID
	return d.start(&taskID)
}

func (d *Dashboard) start(taskID *string) tea.Cmd {
	return func() tea.Msg {
		if _, err := d.store.StartEntry(taskID, nil); err != nil {
			return errMsg{err}
		}
		return StateMsg{State: d.store.Snapshot()}
	}
}

func (d *Dashboard) stopRunning() tea.Cmd {
	running := d.state.Running
	if running == nil {
		return nil
	}
	return func() tea.Msg {
		if _, err := d.store.StopEntry(running.ID, nil); err != nil {
			return errMsg{err}
		}
		return StateMsg{State: d.store.Snapshot()}
	}
}

func (d *Dashboard) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("PUNCHCARD"))
	b.WriteString("\n")
	b.WriteString(SubtitleStyle.Render("Time Tracker"))
	b.WriteString("\n\n")

	if d.err != nil {
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", d.err)))
		b.WriteString("\n\n")
		d.err = nil
	}

	b.WriteString(BoxStyle.Render(d.timerBox()))
	b.WriteString("\n\n")

	if len(d.state.Tasks) > 0 {
		b.WriteString(SubtitleStyle.Render("Tasks"))
		b.WriteString("\n")
		for i, t := range d.state.Tasks {
			line := fmt.Sprintf("  %s", t.Name)
			if i == d.cursor {
				line = SelectedStyle.Render("> " + t.Name)
			} else {
				line = NormalStyle.Render(line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	} else {
		b.WriteString(DimStyle.Render("No tasks yet. Press 't' to create one."))
		b.WriteString("\n")
	}

	help := "[enter] Start on task  [n] Start unclassified  [s] Stop  [t] Tasks  [r] Reports  [x] Export/Import  [q] Quit"
	b.WriteString(HelpStyle.Render(help))

	return b.String()
}

func (d *Dashboard) timerBox() string {
	running := d.state.Running
	if running == nil {
		return DimStyle.Render("No entry running")
	}

	elapsed := timeutil.ElapsedSeconds(running.StartedAt, nil)
	name := models.UnclassifiedName
	if running.Task != nil {
		name = running.Task.Name
	}

	line := fmt.Sprintf("%s  %s", SuccessStyle.Render("● "+FormatSeconds(elapsed)), name)
	if running.Memo != nil {
		line += DimStyle.Render("  " + *running.Memo)
	}
	return line
}
