package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"
	"github.com/saravenpi/relay/internal/models"
)

type modeItem struct {
	mode     models.Mode
	preview  string
	lastTime string
}

func (i modeItem) FilterValue() string { return string(i.mode) }

func (i modeItem) Title() string {
	cfg := models.ConfigFor(i.mode)
	return fmt.Sprintf("%s %s", cfg.Icon, cfg.Title)
}

func (i modeItem) Description() string {
	if i.preview == "" {
		return models.ConfigFor(i.mode).Placeholder
	}
	return fmt.Sprintf("%s • %s", i.lastTime, i.preview)
}

type MenuModel struct {
	app          *App
	list         list.Model
	windowWidth  int
	windowHeight int
}

// NewMenuModel creates the mode selector.
func NewMenuModel(app *App) MenuModel {
	delegate := list.NewDefaultDelegate()
	delegate.Styles.SelectedTitle = delegate.Styles.SelectedTitle.
		Foreground(lipgloss.Color("5")).
		Bold(true)
	delegate.Styles.SelectedDesc = delegate.Styles.SelectedDesc.
		Foreground(lipgloss.Color("8"))

	l := list.New(nil, delegate, 80, 14)
	l.Title = "Relay - choose a mode"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)

	m := MenuModel{
		app:          app,
		list:         l,
		windowWidth:  80,
		windowHeight: 30,
	}
	m.refresh()
	return m
}

func (m *MenuModel) refresh() {
	items := make([]list.Item, 0, len(models.Modes))
	for _, mode := range models.Modes {
		item := modeItem{mode: mode}
		if last, ok := lastActivity(m.app.Store, mode); ok {
			item.preview = truncate.StringWithTail(last.Content, 50, "...")
			item.lastTime = formatTimeAgo(last.Timestamp)
		}
		items = append(items, item)
	}
	m.list.SetItems(items)
}

// Init arms the change listener. The menu is the first screen, so this is
// the only place it is started.
func (m MenuModel) Init() tea.Cmd {
	return m.app.waitForChange()
}

func (m MenuModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.windowWidth = msg.Width
		m.windowHeight = msg.Height
		m.list.SetWidth(msg.Width)
		m.list.SetHeight(msg.Height - 4)
		return m, nil

	case changedMsg:
		m.refresh()
		return m, m.app.waitForChange()

	case sessionOpenedMsg:
		// the user left the conversation before it finished opening
		msg.session.Close()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit

		case "enter":
			item, ok := m.list.SelectedItem().(modeItem)
			if !ok {
				return m, nil
			}
			conv := NewConversationModel(m.app, item.mode)
			updated, _ := conv.Update(tea.WindowSizeMsg{Width: m.windowWidth, Height: m.windowHeight})
			conv = updated.(ConversationModel)
			return conv, conv.Init()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m MenuModel) View() string {
	s := m.list.View() + "\n"
	s += helpStyle.Render("↑↓/jk: navigate • enter: open • q: quit")
	return s
}
