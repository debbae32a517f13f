package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"lostfound/internal/auth"
)

// InvalidChatRoom is rendered for a Chat route without a usable room ID.
const InvalidChatRoom = "Invalid chat room"

// — lost / found ————————————————————————————————————————————————————————————

type reportKind int

const (
	reportLost reportKind = iota
	reportFound
)

type reportModel struct {
	kind reportKind
}

func newReport(kind reportKind) reportModel { return reportModel{kind: kind} }

func (m reportModel) update(msg tea.Msg) (screen, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok && (key.String() == "esc" || key.String() == "q") {
		return m, back
	}
	return m, nil
}

func (m reportModel) view(width, height int) string {
	title, sub := "LOST SOMETHING?", "Report a lost item here"
	if m.kind == reportFound {
		title, sub = "FOUND SOMETHING?", "Report a found item here"
	}
	body := lipgloss.NewStyle().Padding(1, 2).Render(headStyle.Render(title) + "\n\n" + sub)
	return lipgloss.JoinVertical(lipgloss.Left, body, renderHelp(width, "Esc back"))
}

// — chat ————————————————————————————————————————————————————————————————————

type chatMessage struct {
	id   string
	text string
	at   time.Time
}

// chatModel is the chat room view. Messages are kept locally; delivery is
// the chat service's job.
type chatModel struct {
	roomID   string
	input    textinput.Model
	messages []chatMessage
}

func newChat(roomID string) chatModel {
	ti := textinput.New()
	ti.Placeholder = "Type a message"
	ti.CharLimit = 500
	ti.Focus()
	return chatModel{roomID: roomID, input: ti}
}

func (m chatModel) update(msg tea.Msg) (screen, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			return m, back
		case "enter":
			text := strings.TrimSpace(m.input.Value())
			if text == "" {
				return m, nil
			}
			m.messages = append(m.messages, chatMessage{id: uuid.NewString(), text: text, at: time.Now()})
			m.input.Reset()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m chatModel) view(width, height int) string {
	var b strings.Builder
	b.WriteString(headStyle.Render("Chat") + dimStyle.Render("  #"+m.roomID) + "\n\n")

	// Show as many recent messages as fit above the input.
	room := max(height-8, 1)
	start := max(len(m.messages)-room, 0)
	if len(m.messages) == 0 {
		b.WriteString(dimStyle.Render("No messages yet") + "\n")
	}
	for _, msg := range m.messages[start:] {
		b.WriteString(labelStyle.Render(msg.at.Format("15:04")+"  ") + msg.text + "\n")
	}
	b.WriteString("\n" + m.input.View())

	body := lipgloss.NewStyle().Padding(1, 2).Render(b.String())
	return lipgloss.JoinVertical(lipgloss.Left, body, renderHelp(width, "Enter send   Esc back"))
}

// invalidChatModel stands in for the chat view when the room ID is unusable.
type invalidChatModel struct{}

func (m invalidChatModel) update(msg tea.Msg) (screen, tea.Cmd) {
	if _, ok := msg.(tea.KeyMsg); ok {
		return m, back
	}
	return m, nil
}

func (m invalidChatModel) view(width, height int) string {
	return lipgloss.NewStyle().Padding(1, 2).Render(InvalidChatRoom)
}

type notFoundModel struct {
	name string
}

func (m notFoundModel) update(msg tea.Msg) (screen, tea.Cmd) {
	if _, ok := msg.(tea.KeyMsg); ok {
		return m, back
	}
	return m, nil
}

func (m notFoundModel) view(width, height int) string {
	return lipgloss.NewStyle().Padding(1, 2).Render(fmt.Sprintf("Unknown screen %q", m.name))
}

// — profile —————————————————————————————————————————————————————————————————

type profileSavedMsg struct {
	err error
}

// profileModel edits the display name shown in the home greeting.
type profileModel struct {
	deps    *deps
	input   textinput.Model
	pending bool
	err     string
}

func newProfile(d *deps) profileModel {
	ti := textinput.New()
	ti.Placeholder = "display name"
	ti.CharLimit = 64
	ti.Focus()
	return profileModel{deps: d, input: ti}
}

func saveProfileCmd(p auth.Provider, name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return profileSavedMsg{err: p.UpdateDisplayName(ctx, name)}
	}
}

func (m profileModel) update(msg tea.Msg) (screen, tea.Cmd) {
	switch msg := msg.(type) {
	case profileSavedMsg:
		m.pending = false
		if msg.err != nil {
			m.deps.log.Warn().Err(msg.err).Msg("update display name")
			m.err = msg.err.Error()
			return m, nil
		}
		return m, back
	case tea.KeyMsg:
		if m.pending {
			return m, nil
		}
		switch msg.String() {
		case "esc":
			return m, back
		case "enter":
			m.err = ""
			m.pending = true
			return m, saveProfileCmd(m.deps.provider, m.input.Value())
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m profileModel) view(width, height int) string {
	var b strings.Builder
	b.WriteString(boldStyle.Render("Profile") + "\n\n")
	b.WriteString("Display name\n")
	b.WriteString(m.input.View() + "\n")
	if m.err != "" {
		b.WriteString("\n" + errStyle.Render(m.err) + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("Enter save · Esc cancel · empty uses your email name"))
	return placeModal(width, height, b.String())
}
