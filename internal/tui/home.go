package tui

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"lostfound/internal/auth"
	"lostfound/internal/home"
	"lostfound/internal/model"
	"lostfound/internal/nav"
)

// identityMsg carries the result of the refresh numbered gen.
type identityMsg struct {
	gen  uint64
	user *model.User
	err  error
}

type signOutMsg struct {
	err error
}

// — list item ———————————————————————————————————————————————————————————————

type reviewItem struct {
	r model.Review
}

func (i reviewItem) Title() string       { return i.r.Author + "  " + stars(i.r.Rating) }
func (i reviewItem) Description() string { return i.r.Text }
func (i reviewItem) FilterValue() string { return i.r.Author }

// — model ———————————————————————————————————————————————————————————————————

// homeModel renders home.View. The greeting is re-fetched on construction
// and on every focus; the review list lives only as long as this model.
type homeModel struct {
	deps *deps
	vm   *home.View

	list    list.Model
	draft   textarea.Model
	editing bool
	posted  bool

	width        int
	height       int
	spinnerFrame int
}

func newHome(d *deps) homeModel {
	delegate := list.NewDefaultDelegate()

	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = "User Reviews"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.Styles.Title = titleStyle

	ta := textarea.New()
	ta.Placeholder = "Share your experience..."
	ta.CharLimit = 500
	ta.ShowLineNumbers = false
	ta.SetWidth(60)
	ta.SetHeight(3)

	h := homeModel{
		deps:  d,
		vm:    home.New(nil, d.gens),
		list:  l,
		draft: ta,
	}
	h.buildItems()
	return h
}

// — commands ————————————————————————————————————————————————————————————————

func fetchIdentityCmd(p auth.Provider, gen uint64) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		u, err := p.User(ctx)
		return identityMsg{gen: gen, user: u, err: err}
	}
}

func signOutCmd(p auth.Provider) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return signOutMsg{err: p.SignOut(ctx)}
	}
}

// refresh starts a new identity fetch. Any fetch still in flight is
// superseded and its result dropped.
func (h homeModel) refresh() (homeModel, tea.Cmd) {
	gen := h.vm.BeginRefresh()
	return h, fetchIdentityCmd(h.deps.provider, gen)
}

// focus is called when Home becomes the visible screen again.
func (h homeModel) focus() (homeModel, tea.Cmd) {
	return h.refresh()
}

func (h homeModel) blur() homeModel {
	h.editing = false
	h.draft.Blur()
	return h
}

func (h *homeModel) buildItems() {
	reviews := h.vm.Reviews()
	items := make([]list.Item, len(reviews))
	for i, r := range reviews {
		items[i] = reviewItem{r: r}
	}
	h.list.SetItems(items)
}

func (h homeModel) resize(width, height int) homeModel {
	h.width = width
	h.height = height
	h.list.SetSize(width, h.listHeight())
	h.draft.SetWidth(min(width-6, 72))
	return h
}

// listHeight leaves room for the greeting, quick links, review form and help.
func (h homeModel) listHeight() int {
	return max(h.height-19, 4)
}

// — update ——————————————————————————————————————————————————————————————————

func (h homeModel) update(msg tea.Msg) (homeModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		h.spinnerFrame = (h.spinnerFrame + 1) % len(spinnerFrames)
		return h, nil

	case identityMsg:
		if msg.err != nil {
			h.deps.log.Warn().Err(msg.err).Uint64("gen", msg.gen).Msg("fetch user")
		}
		h.vm.ApplyIdentity(msg.gen, msg.user, msg.err)
		return h, nil

	case signOutMsg:
		if msg.err != nil {
			h.deps.log.Error().Err(msg.err).Msg("sign out")
		}
		return h, nil
	}

	if h.editing {
		return h.updateEditing(msg)
	}
	return h.updateNormal(msg)
}

func (h homeModel) updateNormal(msg tea.Msg) (homeModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch key := msg.String(); key {
		case "q":
			return h, tea.Quit
		case "1", "2", "3", "4", "5":
			n, _ := strconv.Atoi(key)
			h.vm.SetRating(n)
			h.posted = false
			return h, nil
		case "0":
			h.vm.SetRating(0)
			return h, nil
		case "w":
			h.editing = true
			h.posted = false
			cmd := h.draft.Focus()
			return h, cmd
		case "enter":
			return h.post(), nil
		case "r":
			return h.refresh()
		case "l":
			return h, navigate(model.Route{Name: nav.Lost})
		case "f":
			return h, navigate(model.Route{Name: nav.Found})
		case "c":
			return h, navigate(nav.ChatRoute(h.deps.opts.SupportRoom))
		case "p":
			return h, navigate(model.Route{Name: nav.Profile})
		case "o":
			if h.deps.opts.HelpURL != "" {
				return h, openURLCmd(h.deps.opts.HelpURL)
			}
			return h, nil
		case "s":
			return h, signOutCmd(h.deps.provider)
		}
	}
	var cmd tea.Cmd
	h.list, cmd = h.list.Update(msg)
	return h, cmd
}

func (h homeModel) updateEditing(msg tea.Msg) (homeModel, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "esc":
			h.editing = false
			h.draft.Blur()
			return h, nil
		case "ctrl+s":
			h.editing = false
			h.draft.Blur()
			return h.post(), nil
		}
	}
	var cmd tea.Cmd
	h.draft, cmd = h.draft.Update(msg)
	h.vm.SetText(h.draft.Value())
	return h, cmd
}

// post submits the draft. An incomplete draft is ignored without feedback.
func (h homeModel) post() homeModel {
	h.vm.SetText(h.draft.Value())
	if _, ok := h.vm.Submit(); !ok {
		return h
	}
	h.draft.Reset()
	h.posted = true
	h.buildItems()
	h.list.Select(len(h.vm.Reviews()) - 1)
	return h
}

// — view ————————————————————————————————————————————————————————————————————

func (h homeModel) view(width, height int) string {
	name := h.vm.Name()
	if name == "" {
		name = "…"
	}
	greeting := dimStyle.Render("Welcome Back,") + "\n" + headStyle.Render(name)
	if h.vm.Pending() {
		greeting += " " + dimStyle.Render(spinnerFrames[h.spinnerFrame])
	}

	lost := cardStyle.Render(boldStyle.Render("LOST SOMETHING?") + "\n" + dimStyle.Render("Report a lost item here  [l]"))
	found := cardStyle.Render(boldStyle.Render("FOUND SOMETHING?") + "\n" + dimStyle.Render("Report a found item here [f]"))
	links := lipgloss.JoinHorizontal(lipgloss.Top, lost, " ", found)

	body := lipgloss.JoinVertical(lipgloss.Left,
		sectionStyle.Render(greeting),
		"",
		sectionStyle.Render(links),
		"",
		h.list.View(),
		sectionStyle.Render(h.renderForm()),
	)
	return lipgloss.JoinVertical(lipgloss.Left, body, renderHelp(width, h.helpText()))
}

func (h homeModel) renderForm() string {
	var b strings.Builder
	d := h.vm.Draft()
	b.WriteString(boldStyle.Render("Write a Review") + "  " + stars(d.Rating) + "\n")
	b.WriteString(h.draft.View() + "\n")
	if h.posted {
		n := len(h.vm.Reviews())
		b.WriteString(okStyle.Render(fmt.Sprintf("Posted · %d reviews", n)))
	}
	return b.String()
}

func (h homeModel) helpText() string {
	if h.editing {
		return "Ctrl+S post   Esc done"
	}
	return "1-5 rate   w write   Enter post   l lost   f found   c chat support   p profile   o FAQ   r refresh   s sign out   q quit"
}
