package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"lostfound/internal/model"
	"lostfound/internal/nav"
	"lostfound/internal/session"
)

type navigateMsg struct {
	route model.Route
}

type backMsg struct{}

func navigate(r model.Route) tea.Cmd {
	return func() tea.Msg { return navigateMsg{route: r} }
}

func back() tea.Msg { return backMsg{} }

// screen is a route pushed on top of Home.
type screen interface {
	update(msg tea.Msg) (screen, tea.Cmd)
	view(width, height int) string
}

// appModel is the screen tree mounted while signed in. It is built fresh on
// every sign-in so nothing from a previous session survives.
type appModel struct {
	deps  *deps
	stack *nav.Stack
	home  homeModel
	top   screen // nil while Home is focused

	width  int
	height int
}

func newApp(d *deps) appModel {
	return appModel{
		deps:  d,
		stack: nav.NewStack(session.Authenticated),
		home:  newHome(d),
	}
}

func (m appModel) init() tea.Cmd {
	var cmd tea.Cmd
	m.home, cmd = m.home.refresh()
	return cmd
}

func (m appModel) update(msg tea.Msg) (subtree, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.home = m.home.resize(msg.Width, msg.Height)
		return m, nil

	case tickMsg, identityMsg:
		var cmd tea.Cmd
		m.home, cmd = m.home.update(msg)
		return m, cmd

	case browserMsg:
		if msg.err != nil {
			m.deps.log.Debug().Err(msg.err).Str("url", msg.url).Msg("open browser")
		}
		return m, nil

	case navigateMsg:
		if err := m.stack.Push(msg.route); err != nil {
			m.deps.log.Warn().Err(err).Msg("navigation refused")
			return m, nil
		}
		m.top = newScreen(m.deps, msg.route)
		m.home = m.home.blur()
		return m, nil

	case backMsg:
		focused, ok := m.stack.Pop()
		if !ok {
			return m, nil
		}
		if focused.Name == nav.Home {
			m.top = nil
			var cmd tea.Cmd
			m.home, cmd = m.home.focus()
			return m, cmd
		}
		m.top = newScreen(m.deps, focused)
		return m, nil
	}

	if m.top != nil {
		var cmd tea.Cmd
		m.top, cmd = m.top.update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.home, cmd = m.home.update(msg)
	return m, cmd
}

func (m appModel) view(width, height int) string {
	if m.top != nil {
		return m.top.view(width, height)
	}
	return m.home.view(width, height)
}

// newScreen builds the screen for r. A Chat route without a usable room ID
// gets the invalid-room placeholder and no chat view.
func newScreen(d *deps, r model.Route) screen {
	switch r.Name {
	case nav.Lost:
		return newReport(reportLost)
	case nav.Found:
		return newReport(reportFound)
	case nav.Profile:
		return newProfile(d)
	case nav.Chat:
		id, ok := nav.ChatRoomID(r.Params)
		if !ok {
			d.log.Warn().Interface("params", r.Params).Msg("invalid chat room")
			return invalidChatModel{}
		}
		return newChat(id)
	default:
		return notFoundModel{name: r.Name}
	}
}
