package screens

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lmoretti/punchcard/internal/client"
	"github.com/lmoretti/punchcard/internal/models"
)

type Tasks struct {
	store  *client.Store
	width  int
	height int

	tasks           []models.Task
	includeArchived bool
	cursor          int
	creating        bool
	input           textinput.Model
	err             error
}

func NewTasks(store *client.Store) *Tasks {
	ti := textinput.New()
	ti.Placeholder = "Task name"
	ti.CharLimit = 120

	return &Tasks{
		store: store,
		input: ti,
	}
}

func (t *Tasks) SetSize(width, height int) {
	t.width = width
	t.height = height
}

func (t *Tasks) Init() tea.Cmd {
	return t.load
}

type tasksDataMsg struct {
	tasks []models.Task
	err   error
}

func (t *Tasks) load() tea.Msg {
	state := t.store.Snapshot()
	if !t.includeArchived {
		return tasksDataMsg{tasks: state.Tasks}
	}
	// Archived tasks are not part of the store projection; ask for them
	// explicitly.
	tasks, err := t.store.ListTasks(true)
	return tasksDataMsg{tasks: tasks, err: err}
}

func (t *Tasks) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case tasksDataMsg:
		t.err = msg.err
		t.tasks = msg.tasks
		if t.cursor >= len(t.tasks) {
			t.cursor = 0
		}
		return nil

	case StateMsg:
		if !t.includeArchived {
			t.tasks = msg.State.Tasks
			if t.cursor >= len(t.tasks) {
				t.cursor = 0
			}
		}
		return nil

	case errMsg:
		t.err = msg.err
		return nil

	case tea.KeyMsg:
		if t.creating {
			return t.updateCreating(msg)
		}

		switch msg.String() {
		case "up", "k":
			if t.cursor > 0 {
				t.cursor--
			}
		case "down", "j":
			if t.cursor < len(t.tasks)-1 {
				t.cursor++
			}
		case "c":
			t.creating = true
			t.input.SetValue("")
			return t.input.Focus()
		case "a":
			return t.toggleArchived()
		case "v":
			t.includeArchived = !t.includeArchived
			return t.load
		case "q", "esc":
			return Navigate("dashboard")
		}
	}

	return nil
}

func (t *Tasks) updateCreating(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter":
		name := strings.TrimSpace(t.input.Value())
		t.creating = false
		t.input.Blur()
		if name == "" {
			return nil
		}
		return func() tea.Msg {
			if _, err := t.store.CreateTask(models.CreateTask{Name: name}); err != nil {
				return errMsg{err}
			}
			return t.load()
		}
	case "esc":
		t.creating = false
		t.input.Blur()
		return nil
	}

	var cmd tea.Cmd
	t.input, cmd = t.input.Update(msg)
	return cmd
}

func (t *Tasks) toggleArchived() tea.Cmd {
	if len(t.tasks) == 0 {
		return nil
	}
	task := t.tasks[t.cursor]
	return func() tea.Msg {
		if err := t.store.ArchiveTask(task.ID, !task.Archived); err != nil {
			return errMsg{err}
		}
		return t.load()
	}
}

func (t *Tasks) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Tasks"))
	b.WriteString("\n\n")

	if t.err != nil {
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", t.err)))
		b.WriteString("\n\n")
		t.err = nil
	}

	if t.creating {
		b.WriteString("New task:\n")
		b.WriteString(t.input.View())
		b.WriteString("\n")
		b.WriteString(HelpStyle.Render("[enter] Save  [esc] Cancel"))
		return b.String()
	}

	if len(t.tasks) == 0 {
		b.WriteString(DimStyle.Render("No tasks."))
		b.WriteString("\n")
	}

	for i, task := range t.tasks {
		label := task.Name
		if task.Archived {
			label += DimStyle.Render(" (archived)")
		}
		if i == t.cursor {
			b.WriteString(SelectedStyle.Render("> " + label))
		} else {
			b.WriteString(NormalStyle.Render("  " + label))
		}
		b.WriteString("\n")
	}

	help := "[c] Create  [a] Archive/restore  [v] Toggle archived  [q] Back"
	b.WriteString(HelpStyle.Render(help))

	return b.String()
}
