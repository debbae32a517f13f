package tui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"lostfound/internal/auth"
)

type signInMode int

const (
	modeSignIn signInMode = iota
	modeSignUp
)

const (
	fieldEmail = iota
	fieldPassword
	fieldName
)

type authResultMsg struct {
	mode signInMode
	err  error
}

// signInModel is the only screen mounted while signed out.
type signInModel struct {
	deps *deps

	mode    signInMode
	inputs  []textinput.Model
	focus   int
	pending bool
	err     string
	notice  string

	spinnerFrame int
}

func newSignIn(d *deps) signInModel {
	email := textinput.New()
	email.Placeholder = "you@example.com"
	email.CharLimit = 254
	email.Focus()

	password := textinput.New()
	password.Placeholder = "password"
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'
	password.CharLimit = 128

	name := textinput.New()
	name.Placeholder = "optional"
	name.CharLimit = 64

	return signInModel{
		deps:   d,
		inputs: []textinput.Model{email, password, name},
	}
}

func authCmd(p auth.Provider, mode signInMode, email, password, name string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		var err error
		if mode == modeSignUp {
			err = p.SignUp(ctx, email, password, name)
		} else {
			err = p.SignIn(ctx, email, password)
		}
		return authResultMsg{mode: mode, err: err}
	}
}

func (m signInModel) init() tea.Cmd { return textinput.Blink }

func (m signInModel) visibleFields() int {
	if m.mode == modeSignUp {
		return 3
	}
	return 2
}

func (m signInModel) update(msg tea.Msg) (subtree, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.spinnerFrame = (m.spinnerFrame + 1) % len(spinnerFrames)
		return m, nil

	case authResultMsg:
		m.pending = false
		switch {
		case msg.err == nil:
			// The gate swaps this screen out once the auth event arrives.
			m.err = ""
		case errors.Is(msg.err, auth.ErrConfirmEmail):
			m.err = ""
			m.notice = msg.err.Error()
			m.mode = modeSignIn
			m.setFocus(fieldPassword)
		default:
			m.deps.log.Info().Err(msg.err).Msg("authentication failed")
			m.err = friendlyAuthError(msg.err)
		}
		return m, nil

	case tea.KeyMsg:
		if m.pending {
			return m, nil
		}
		switch msg.String() {
		case "tab", "down":
			m.setFocus((m.focus + 1) % m.visibleFields())
			return m, nil
		case "shift+tab", "up":
			m.setFocus((m.focus + m.visibleFields() - 1) % m.visibleFields())
			return m, nil
		case "ctrl+n":
			if m.mode == modeSignIn {
				m.mode = modeSignUp
			} else {
				m.mode = modeSignIn
				if m.focus == fieldName {
					m.setFocus(fieldEmail)
				}
			}
			m.err = ""
			m.notice = ""
			return m, nil
		case "esc":
			m.err = ""
			m.notice = ""
			return m, nil
		case "enter":
			return m.submit()
		}
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m signInModel) submit() (subtree, tea.Cmd) {
	email := strings.TrimSpace(m.inputs[fieldEmail].Value())
	password := m.inputs[fieldPassword].Value()
	switch {
	case email == "":
		m.err = "email cannot be empty"
		return m, nil
	case !strings.Contains(email, "@"):
		m.err = "email must contain @"
		return m, nil
	case password == "":
		m.err = "password cannot be empty"
		return m, nil
	}
	m.err = ""
	m.notice = ""
	m.pending = true
	name := ""
	if m.mode == modeSignUp {
		name = strings.TrimSpace(m.inputs[fieldName].Value())
	}
	return m, authCmd(m.deps.provider, m.mode, email, password, name)
}

func (m *signInModel) setFocus(i int) {
	m.inputs[m.focus].Blur()
	m.focus = i
	m.inputs[m.focus].Focus()
}

func friendlyAuthError(err error) string {
	var apiErr *auth.APIError
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrEmailTaken):
		return err.Error()
	case errors.As(err, &apiErr):
		return apiErr.Message
	default:
		return "could not reach the server, try again"
	}
}

func (m signInModel) view(width, height int) string {
	var b strings.Builder
	title := "Sign In"
	if m.mode == modeSignUp {
		title = "Create Account"
	}
	b.WriteString(boldStyle.Render("Lost & Found") + dimStyle.Render("  ·  "+title) + "\n\n")

	b.WriteString("Email\n" + m.inputs[fieldEmail].View() + "\n\n")
	b.WriteString("Password\n" + m.inputs[fieldPassword].View() + "\n")
	if m.mode == modeSignUp {
		b.WriteString("\nDisplay name\n" + m.inputs[fieldName].View() + "\n")
	}

	switch {
	case m.pending:
		b.WriteString("\n" + spinnerFrames[m.spinnerFrame] + " Signing in…\n")
	case m.err != "":
		b.WriteString("\n" + errStyle.Render(m.err) + "\n")
	case m.notice != "":
		b.WriteString("\n" + okStyle.Render(m.notice) + "\n")
	}

	toggle := "Ctrl+N create an account"
	if m.mode == modeSignUp {
		toggle = "Ctrl+N back to sign in"
	}
	b.WriteString("\n" + dimStyle.Render("Enter submit · Tab next field · "+toggle))

	return placeModal(width, height, b.String())
}
