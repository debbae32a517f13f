package auth

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"lostfound/internal/model"
)

// Memory is an in-process Provider. It backs dev mode and tests.
type Memory struct {
	broadcaster

	mu       sync.Mutex
	accounts map[string]*account // keyed by lower-cased email
	session  *model.Session
	ttl      time.Duration
	now      func() time.Time

	// userErr, when set, is returned by User instead of the record.
	userErr error
}

type account struct {
	password string
	user     model.User
}

func NewMemory() *Memory {
	return &Memory{
		accounts: make(map[string]*account),
		ttl:      time.Hour,
		now:      time.Now,
	}
}

// AddAccount registers an account without signing in. An empty displayName
// leaves the field unset.
func (m *Memory) AddAccount(email, password, displayName string) model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	u := model.User{ID: uuid.NewString(), Email: &email}
	if displayName != "" {
		u.DisplayName = &displayName
	}
	m.accounts[strings.ToLower(email)] = &account{password: password, user: u}
	return u
}

// FailUser makes subsequent User calls return err; nil restores normal behaviour.
func (m *Memory) FailUser(err error) {
	m.mu.Lock()
	m.userErr = err
	m.mu.Unlock()
}

func (m *Memory) Session(ctx context.Context) (*model.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return copySession(m.session), nil
}

func (m *Memory) User(ctx context.Context) (*model.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.userErr != nil {
		return nil, m.userErr
	}
	if m.session == nil {
		return nil, ErrNoSession
	}
	acc := m.byID(m.session.User.ID)
	if acc == nil {
		return nil, ErrNoSession
	}
	u := acc.user
	return &u, nil
}

func (m *Memory) SignIn(ctx context.Context, email, password string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	acc, ok := m.accounts[strings.ToLower(strings.TrimSpace(email))]
	if !ok || acc.password != password {
		m.mu.Unlock()
		return ErrInvalidCredentials
	}
	sess := m.issue(acc.user)
	m.mu.Unlock()

	m.emit(model.AuthEvent{Kind: model.SignedIn, Session: sess})
	return nil
}

func (m *Memory) SignUp(ctx context.Context, email, password, displayName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	email = strings.TrimSpace(email)
	m.mu.Lock()
	if _, ok := m.accounts[strings.ToLower(email)]; ok {
		m.mu.Unlock()
		return ErrEmailTaken
	}
	m.mu.Unlock()

	u := m.AddAccount(email, password, strings.TrimSpace(displayName))

	m.mu.Lock()
	sess := m.issue(u)
	m.mu.Unlock()

	m.emit(model.AuthEvent{Kind: model.SignedIn, Session: sess})
	return nil
}

func (m *Memory) SignOut(ctx context.Context) error {
	m.mu.Lock()
	m.session = nil
	m.mu.Unlock()

	m.emit(model.AuthEvent{Kind: model.SignedOut})
	return nil
}

// UpdateDisplayName edits the signed-in user's display name. An empty name
// clears it.
func (m *Memory) UpdateDisplayName(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	if m.session == nil {
		m.mu.Unlock()
		return ErrNoSession
	}
	acc := m.byID(m.session.User.ID)
	if acc == nil {
		m.mu.Unlock()
		return ErrNoSession
	}
	name = strings.TrimSpace(name)
	if name == "" {
		acc.user.DisplayName = nil
	} else {
		acc.user.DisplayName = &name
	}
	m.session.User = acc.user
	sess := copySession(m.session)
	m.mu.Unlock()

	m.emit(model.AuthEvent{Kind: model.UserUpdated, Session: sess})
	return nil
}

// issue replaces the current session. Caller holds m.mu.
func (m *Memory) issue(u model.User) *model.Session {
	m.session = &model.Session{
		AccessToken:  uuid.NewString(),
		RefreshToken: uuid.NewString(),
		TokenType:    "bearer",
		ExpiresAt:    m.now().Add(m.ttl),
		User:         u,
	}
	return copySession(m.session)
}

func (m *Memory) byID(id string) *account {
	for _, acc := range m.accounts {
		if acc.user.ID == id {
			return acc
		}
	}
	return nil
}

func copySession(s *model.Session) *model.Session {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
