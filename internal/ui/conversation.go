package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/saravenpi/relay/internal/models"
	"github.com/saravenpi/relay/internal/session"
)

type dispatchDoneMsg struct{}

type uploadDoneMsg struct {
	err error
}

type ConversationModel struct {
	app     *App
	mode    models.Mode
	screen  int
	session *session.Session

	viewport     viewport.Model
	textarea     textarea.Model
	pathInput    textinput.Model
	spinner      spinner.Model
	uploadPrompt bool
	pending      int
	err          error
	windowWidth  int
	windowHeight int
}

func NewConversationModel(app *App, mode models.Mode) ConversationModel {
	cfg := models.ConfigFor(mode)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = statusStyle

	vp := viewport.New(80, 20)

	ta := textarea.New()
	ta.Placeholder = cfg.Placeholder
	ta.CharLimit = 4000
	ta.SetHeight(3)
	ta.ShowLineNumbers = false
	ta.Focus()

	pi := textinput.New()
	pi.Placeholder = "/path/to/document.pdf"
	pi.CharLimit = 1024
	pi.Width = 60

	return ConversationModel{
		app:          app,
		mode:         mode,
		screen:       app.nextScreen(),
		viewport:     vp,
		textarea:     ta,
		pathInput:    pi,
		spinner:      s,
		windowWidth:  80,
		windowHeight: 30,
	}
}

func (m ConversationModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.app.openSessionCmd(m.mode, m.screen))
}

func (m ConversationModel) dispatchCmd(text string) tea.Cmd {
	return func() tea.Msg {
		m.app.Dispatcher.Dispatch(context.Background(), text, m.mode)
		return dispatchDoneMsg{}
	}
}

func (m ConversationModel) uploadCmd(path string) tea.Cmd {
	return func() tea.Msg {
		_, err := m.app.Dispatcher.Upload(context.Background(), path)
		return uploadDoneMsg{err: err}
	}
}

func (m ConversationModel) busy() bool {
	return m.pending > 0 || m.app.Status.Awaiting() || m.app.Status.Uploading()
}

func (m *ConversationModel) close() {
	if m.session != nil {
		m.session.Close()
		m.session = nil
	}
}

func (m ConversationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height

		headerHeight := 4
		inputHeight := 6
		helpHeight := 2
		m.viewport.Width = msg.Width - 4
		m.viewport.Height = max(msg.Height-headerHeight-inputHeight-helpHeight, 3)
		m.textarea.SetWidth(msg.Width - 4)
		m.updateViewportContent()
		return m, nil

	case sessionOpenedMsg:
		if m.session != nil || msg.screen != m.screen {
			// left over from a screen the user already closed
			msg.session.Close()
			return m, nil
		}
		m.session = msg.session
		m.updateViewportContent()
		return m, nil

	case changedMsg:
		m.updateViewportContent()
		return m, m.app.waitForChange()

	case dispatchDoneMsg:
		m.pending--
		return m, nil

	case uploadDoneMsg:
		m.pending--
		m.err = msg.err
		return m, nil

	case spinner.TickMsg:
		if m.busy() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			return m, cmd
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m ConversationModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		m.close()
		return m, tea.Quit

	case "esc":
		if m.uploadPrompt {
			m.uploadPrompt = false
			m.pathInput.Reset()
			m.pathInput.Blur()
			m.textarea.Focus()
			return m, nil
		}
		m.close()
		menu := NewMenuModel(m.app)
		updated, _ := menu.Update(tea.WindowSizeMsg{Width: m.windowWidth, Height: m.windowHeight})
		return updated, nil

	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd

	case "ctrl+l":
		m.app.Store.Clear()
		m.err = nil
		return m, nil
	}

	if m.uploadPrompt {
		if msg.String() == "enter" {
			path := strings.TrimSpace(m.pathInput.Value())
			m.uploadPrompt = false
			m.pathInput.Reset()
			m.pathInput.Blur()
			m.textarea.Focus()
			if path == "" {
				return m, nil
			}
			m.pending++
			m.err = nil
			return m, tea.Batch(m.spinner.Tick, m.uploadCmd(path))
		}
		var cmd tea.Cmd
		m.pathInput, cmd = m.pathInput.Update(msg)
		return m, cmd
	}

	switch msg.String() {
	case "ctrl+s":
		text := strings.TrimSpace(m.textarea.Value())
		if text == "" {
			return m, nil
		}
		m.textarea.Reset()
		m.pending++
		m.err = nil
		return m, tea.Batch(m.spinner.Tick, m.dispatchCmd(text))

	case "ctrl+u":
		if m.mode != models.ModeStore {
			return m, nil
		}
		m.uploadPrompt = true
		m.textarea.Blur()
		m.pathInput.Focus()
		return m, textinput.Blink
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	return m, cmd
}

func (m *ConversationModel) updateViewportContent() {
	m.viewport.SetContent(renderMessages(m.app.Store.Visible(m.mode), m.mode, m.viewport.Width))
	m.viewport.GotoBottom()
}

func (m ConversationModel) connectionView() string {
	switch {
	case m.session == nil:
		return statusStyle.Render("◌ connecting")
	case m.app.Status.Connected():
		return connectedStyle.Render("● connected")
	default:
		return disconnectedStyle.Render("○ disconnected")
	}
}

func (m ConversationModel) View() string {
	cfg := models.ConfigFor(m.mode)
	s := titleStyle.Render(fmt.Sprintf("%s %s", cfg.Icon, cfg.Title)) + "  " + m.connectionView() + "\n"

	if m.err != nil {
		s += errorStyle.Render(fmt.Sprintf("Error: %v", m.err)) + "\n"
	}

	if len(m.app.Store.Visible(m.mode)) == 0 {
		s += normalStyle.Render("  No messages yet.") + "\n"
	} else {
		s += m.viewport.View() + "\n"
	}

	switch {
	case m.app.Status.Uploading():
		s += fmt.Sprintf("  %s Uploading...\n", m.spinner.View())
	case m.busy():
		s += fmt.Sprintf("  %s Thinking...\n", m.spinner.View())
	default:
		s += "\n"
	}

	if m.uploadPrompt {
		s += inputStyle.Render("Upload file:") + "\n"
		s += m.pathInput.View() + "\n"
		s += helpStyle.Render("enter: upload • esc: cancel")
		return s
	}

	s += m.textarea.View() + "\n"
	help := "ctrl+s: send • pgup/pgdn: scroll • ctrl+l: clear history • esc: back • ctrl+c: quit"
	if m.mode == models.ModeStore {
		help = "ctrl+s: send • ctrl+u: upload file • pgup/pgdn: scroll • ctrl+l: clear history • esc: back • ctrl+c: quit"
	}
	s += helpStyle.Render(help)
	return s
}
