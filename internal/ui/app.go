package ui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/saravenpi/relay/internal/conversation"
	"github.com/saravenpi/relay/internal/dispatcher"
	"github.com/saravenpi/relay/internal/logger"
	"github.com/saravenpi/relay/internal/models"
	"github.com/saravenpi/relay/internal/session"
)

// App carries the long-lived state shared by every screen.
type App struct {
	Store       *conversation.Store
	Status      *conversation.Status
	Dispatcher  *dispatcher.Dispatcher
	SessionDeps session.Deps
	Log         logger.ILogger

	changes    chan struct{}
	lastScreen int
}

func NewApp(store *conversation.Store, status *conversation.Status, d *dispatcher.Dispatcher, deps session.Deps, log logger.ILogger) *App {
	if log == nil {
		log = logger.NewNop()
	}
	a := &App{
		Store:       store,
		Status:      status,
		Dispatcher:  d,
		SessionDeps: deps,
		Log:         log,
		changes:     make(chan struct{}, 1),
	}
	store.Subscribe(a.signal)
	status.OnChange(a.signal)
	return a
}

// signal never blocks: one pending change is enough to trigger a redraw.
func (a *App) signal() {
	select {
	case a.changes <- struct{}{}:
	default:
	}
}

type changedMsg struct{}

// waitForChange must have exactly one instance pending. The first screen
// starts it and every screen re-arms it after handling changedMsg.
func (a *App) waitForChange() tea.Cmd {
	return func() tea.Msg {
		<-a.changes
		return changedMsg{}
	}
}

// sessionOpenedMsg carries the screen token of the conversation screen that
// asked for the session. Only that screen may adopt it.
type sessionOpenedMsg struct {
	session *session.Session
	screen  int
}

// nextScreen hands out conversation screen tokens. Called from Update only.
func (a *App) nextScreen() int {
	a.lastScreen++
	return a.lastScreen
}

func (a *App) openSessionCmd(mode models.Mode, screen int) tea.Cmd {
	return func() tea.Msg {
		return sessionOpenedMsg{session: session.Open(context.Background(), a.SessionDeps, mode), screen: screen}
	}
}

// Run starts the TUI on the mode selector.
func Run(a *App) error {
	p := tea.NewProgram(NewMenuModel(a), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
