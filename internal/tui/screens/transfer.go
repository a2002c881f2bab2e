package screens

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/lmoretti/punchcard/internal/bundle"
	"github.com/lmoretti/punchcard/internal/client"
	"github.com/lmoretti/punchcard/internal/config"
)

type Transfer struct {
	store   *client.Store
	bundles *bundle.Service
	cfg     *config.Config
	width   int
	height  int

	importing bool
	merge     bool
	input     textinput.Model
	status    string
	err       error
}

func NewTransfer(store *client.Store, bundles *bundle.Service, cfg *config.Config) *Transfer {
	ti := textinput.New()
	ti.Placeholder = "/path/to/bundle.json"
	ti.CharLimit = 255

	return &Transfer{
		store:   store,
		bundles: bundles,
		cfg:     cfg,
		input:   ti,
	}
}

func (t *Transfer) SetSize(width, height int) {
	t.width = width
	t.height = height
}

func (t *Transfer) Init() tea.Cmd {
	t.status = ""
	t.err = nil
	return nil
}

type transferDoneMsg struct {
	status string
	err    error
}

func (t *Transfer) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case transferDoneMsg:
		t.status = msg.status
		t.err = msg.err
		return nil

	case tea.KeyMsg:
		if t.importing {
			return t.updateImporting(msg)
		}

		switch msg.String() {
		case "e":
			return t.export
		case "i":
			t.importing = true
			t.merge = false
			t.input.SetValue("")
			return t.input.Focus()
		case "q", "esc":
			return Navigate("dashboard")
		}
	}

	return nil
}

func (t *Transfer) updateImporting(msg tea.KeyMsg) tea.Cmd {
	switch msg.String() {
	case "enter":
		path := strings.TrimSpace(t.input.Value())
		t.importing = false
		t.input.Blur()
		if path == "" {
			return nil
		}
		return t.runImport(path, t.merge)
	case "tab":
		t.merge = !t.merge
		return nil
	case "esc":
		t.importing = false
		t.input.Blur()
		return nil
	}

	var cmd tea.Cmd
	t.input, cmd = t.input.Update(msg)
	return cmd
}

func (t *Transfer) export() tea.Msg {
	if err := os.MkdirAll(t.cfg.ExportOutput, 0755); err != nil {
		return transferDoneMsg{err: err}
	}

	b, err := t.bundles.Export()
	if err != nil {
		return transferDoneMsg{err: err}
	}

	name := fmt.Sprintf("punchcard-%s.json", time.Now().Format("20060102-150405"))
	path := filepath.Join(t.cfg.ExportOutput, name)
	if err := bundle.WriteFile(path, b); err != nil {
		return transferDoneMsg{err: err}
	}

	return transferDoneMsg{status: "Exported to " + path}
}

func (t *Transfer) runImport(path string, merge bool) tea.Cmd {
	return func() tea.Msg {
		b, err := bundle.ReadFile(path)
		if err != nil {
			return transferDoneMsg{err: err}
		}

		result, err := t.store.ImportBundle(b, merge)
		if err != nil {
			return transferDoneMsg{err: err}
		}

		mode := "replace"
		if merge {
			mode = "merge"
		}
		return transferDoneMsg{status: fmt.Sprintf(
			"Imported (%s): %d tasks, %d entries, %d artifacts",
			mode, result.TasksImported, result.EntriesImported, result.ArtifactsImported,
		)}
	}
}

func (t *Transfer) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("Export / Import"))
	b.WriteString("\n\n")

	if t.err != nil {
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("Error: %v", t.err)))
		b.WriteString("\n\n")
	}
	if t.status != "" {
		b.WriteString(SuccessStyle.Render(t.status))
		b.WriteString("\n\n")
	}

	if t.importing {
		mode := "replace"
		if t.merge {
			mode = "merge"
		}
		b.WriteString("Bundle file to import:\n")
		b.WriteString(t.input.View())
		b.WriteString("\n")
		b.WriteString(WarningStyle.Render("Mode: " + mode))
		b.WriteString("\n")
		b.WriteString(HelpStyle.Render("[enter] Import  [tab] Toggle merge/replace  [esc] Cancel"))
		return b.String()
	}

	b.WriteString(NormalStyle.Render("Export writes a JSON bundle with every task, artifact,\ntime entry and link. Import applies one, merging or replacing."))
	b.WriteString("\n")

	help := "[e] Export now  [i] Import a bundle  [q] Back"
	b.WriteString(HelpStyle.Render(help))

	return b.String()
}
