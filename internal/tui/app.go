package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"lostfound/internal/auth"
	"lostfound/internal/home"
	"lostfound/internal/session"
)

// Options carries settings the screens need.
type Options struct {
	HelpURL     string
	SupportRoom string
}

// deps is shared by every screen of one program run.
type deps struct {
	provider auth.Provider
	log      zerolog.Logger
	opts     Options
	// gens numbers identity refreshes across every home screen of the run.
	gens *home.Generations
}

// subtree is one of the two mutually exclusive screen trees the root mounts.
type subtree interface {
	init() tea.Cmd
	update(msg tea.Msg) (subtree, tea.Cmd)
	view(width, height int) string
}

// — messages ————————————————————————————————————————————————————————————————

type sessionMsg struct {
	snap session.Snapshot
}

// gateClosedMsg is returned once the gate stops delivering snapshots.
type gateClosedMsg struct{}

func waitForSession(ch <-chan session.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return gateClosedMsg{}
		}
		return sessionMsg{snap: snap}
	}
}

// — model ———————————————————————————————————————————————————————————————————

// Model is the root of the screen tree. It maps the session gate's state
// onto a mounted subtree and rebuilds that subtree on every state change.
type Model struct {
	deps  *deps
	watch <-chan session.Snapshot

	width  int
	height int

	seq     uint64
	state   session.State
	mounted subtree
}

// New returns the root model. watch is a channel from session.Gate.Watch.
func New(provider auth.Provider, watch <-chan session.Snapshot, log zerolog.Logger, opts Options) Model {
	if opts.SupportRoom == "" {
		opts.SupportRoom = "support"
	}
	d := &deps{
		provider: provider,
		log:      log.With().Str("component", "tui").Logger(),
		opts:     opts,
		gens:     &home.Generations{},
	}
	return Model{
		deps:    d,
		watch:   watch,
		state:   session.Unauthenticated,
		mounted: newSignIn(d),
	}
}

// State is the navigable state currently mounted.
func (m Model) State() session.State { return m.state }

// — tea.Model ———————————————————————————————————————————————————————————————

func (m Model) Init() tea.Cmd {
	return tea.Batch(waitForSession(m.watch), tickCmd(), m.mounted.init())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}

	case tickMsg:
		var cmd tea.Cmd
		m.mounted, cmd = m.mounted.update(msg)
		return m, tea.Batch(cmd, tickCmd())

	case gateClosedMsg:
		return m, nil

	case sessionMsg:
		var cmd tea.Cmd
		m, cmd = m.applySession(msg.snap)
		return m, tea.Batch(cmd, waitForSession(m.watch))
	}

	var cmd tea.Cmd
	m.mounted, cmd = m.mounted.update(msg)
	return m, cmd
}

// applySession mounts a fresh subtree when the navigable state flips.
// Snapshots older than the one already applied are ignored; a newer one in
// the same state (token refresh) leaves the mounted tree alone.
func (m Model) applySession(snap session.Snapshot) (Model, tea.Cmd) {
	if snap.Seq <= m.seq {
		return m, nil
	}
	m.seq = snap.Seq

	next := snap.State()
	if next == m.state {
		return m, nil
	}
	m.deps.log.Info().Stringer("state", next).Uint64("seq", snap.Seq).Msg("mounting screen tree")
	m.state = next
	if next == session.Authenticated {
		m.mounted = newApp(m.deps)
	} else {
		m.mounted = newSignIn(m.deps)
	}

	cmds := []tea.Cmd{m.mounted.init()}
	if m.width > 0 {
		var cmd tea.Cmd
		m.mounted, cmd = m.mounted.update(tea.WindowSizeMsg{Width: m.width, Height: m.height})
		cmds = append(cmds, cmd)
	}
	return m, tea.Batch(cmds...)
}

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}
	return m.mounted.view(m.width, m.height)
}
