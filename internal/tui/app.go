package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lmoretti/punchcard/internal/bundle"
	"github.com/lmoretti/punchcard/internal/client"
	"github.com/lmoretti/punchcard/internal/config"
	"github.com/lmoretti/punchcard/internal/report"
	"github.com/lmoretti/punchcard/internal/tui/screens"
)

type Screen int

const (
	ScreenDashboard Screen = iota
	ScreenTasks
	ScreenReports
	ScreenTransfer
)

type App struct {
	store         *client.Store
	currentScreen Screen
	width         int
	height        int

	// Screen models
	dashboard *screens.Dashboard
	tasks     *screens.Tasks
	reports   *screens.Reports
	transfer  *screens.Transfer
}

func NewApp(store *client.Store, reports *report.Service, bundles *bundle.Service, cfg *config.Config) *App {
	return &App{
		store:         store,
		currentScreen: ScreenDashboard,
		dashboard:     screens.NewDashboard(store),
		tasks:         screens.NewTasks(store),
		reports:       screens.NewReports(reports),
		transfer:      screens.NewTransfer(store, bundles, cfg),
	}
}

func (a *App) Init() tea.Cmd {
	return a.dashboard.Init()
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit
		case "q":
			if a.currentScreen == ScreenDashboard {
				return a, tea.Quit
			}
			// Other screens treat 'q' as back.
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.dashboard.SetSize(msg.Width, msg.Height)
		a.tasks.SetSize(msg.Width, msg.Height)
		a.reports.SetSize(msg.Width, msg.Height)
		a.transfer.SetSize(msg.Width, msg.Height)

	case screens.NavigateMsg:
		return a.handleNavigation(msg)

	case screens.StateMsg:
		// Store updates reach every screen so each one stays current.
		a.dashboard.Update(msg)
		a.tasks.Update(msg)
		return a, nil
	}

	var cmd tea.Cmd
	switch a.currentScreen {
	case ScreenDashboard:
		cmd = a.dashboard.Update(msg)
	case ScreenTasks:
		cmd = a.tasks.Update(msg)
	case ScreenReports:
		cmd = a.reports.Update(msg)
	case ScreenTransfer:
		cmd = a.transfer.Update(msg)
	}

	return a, cmd
}

func (a *App) handleNavigation(msg screens.NavigateMsg) (tea.Model, tea.Cmd) {
	switch msg.Screen {
	case "dashboard":
		a.currentScreen = ScreenDashboard
		return a, a.dashboard.Init()
	case "tasks":
		a.currentScreen = ScreenTasks
		return a, a.tasks.Init()
	case "reports":
		a.currentScreen = ScreenReports
		return a, a.reports.Init()
	case "transfer":
		a.currentScreen = ScreenTransfer
		return a, a.transfer.Init()
	}
	return a, nil
}

func (a *App) View() string {
	var content string

	switch a.currentScreen {
	case ScreenDashboard:
		content = a.dashboard.View()
	case ScreenTasks:
		content = a.tasks.View()
	case ScreenReports:
		content = a.reports.View()
	case ScreenTransfer:
		content = a.transfer.View()
	}

	return lipgloss.NewStyle().
		Width(a.width).
		Height(a.height).
		Render(content)
}

// Run wires the client store into a bubbletea program: every store
// notification, including the one-second running-entry tick, is forwarded
// as a StateMsg so screens re-render elapsed time without polling.
func Run(store *client.Store, reports *report.Service, bundles *bundle.Service, cfg *config.Config) error {
	app := NewApp(store, reports, bundles, cfg)
	p := tea.NewProgram(app, tea.WithAltScreen())

	unsubscribe := store.Subscribe(func(state client.State) {
		p.Send(screens.StateMsg{State: state})
	})
	defer unsubscribe()

	_, err := p.Run()
	return err
}
