package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"lostfound/internal/config"
	"lostfound/internal/model"
)

// Provider abstracts the hosted auth service the client signs in against.
type Provider interface {
	// Session returns the current session, or nil when signed out.
	Session(ctx context.Context) (*model.Session, error)
	// User fetches the signed-in user's record from the service.
	User(ctx context.Context) (*model.User, error)
	// Subscribe registers fn for every auth state change until the returned
	// func is called.
	Subscribe(fn func(model.AuthEvent)) (unsubscribe func())

	SignIn(ctx context.Context, email, password string) error
	SignUp(ctx context.Context, email, password, displayName string) error
	SignOut(ctx context.Context) error
	UpdateDisplayName(ctx context.Context, name string) error
}

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrConfirmEmail       = errors.New("check your inbox to confirm the account")
	ErrNoSession          = errors.New("not signed in")
)

// APIError is a non-2xx response from the auth service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("auth: status %d: %s (%s)", e.Status, e.Message, e.Code)
	}
	return fmt.Sprintf("auth: status %d: %s", e.Status, e.Message)
}

// New returns the provider selected by cfg: the hosted service when an auth
// URL is configured, otherwise an in-process provider with a demo account.
func New(cfg *config.Config, log zerolog.Logger) (Provider, error) {
	if cfg.UseMemoryAuth() {
		m := NewMemory()
		m.AddAccount(DemoEmail, DemoPassword, "")
		log.Info().Str("email", DemoEmail).Msg("using in-process auth")
		return m, nil
	}
	path, err := cfg.SessionPath()
	if err != nil {
		return nil, err
	}
	return NewSupabase(cfg.AuthURL, cfg.AnonKey, NewStore(path), log,
		WithHTTPTimeout(cfg.HTTPTimeout),
		WithRefreshMargin(cfg.RefreshMargin),
		WithMaxAttempts(cfg.RefreshMaxAttempts),
	), nil
}

// Demo account seeded into the in-process provider.
const (
	DemoEmail    = "demo@lostfound.app"
	DemoPassword = "demo"
)

// broadcaster fans auth events out to subscribers. Handlers run on the
// emitting goroutine, outside the lock.
type broadcaster struct {
	mu   sync.Mutex
	next int
	subs map[int]func(model.AuthEvent)
}

func (b *broadcaster) Subscribe(fn func(model.AuthEvent)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs == nil {
		b.subs = make(map[int]func(model.AuthEvent))
	}
	id := b.next
	b.next++
	b.subs[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			b.mu.Unlock()
		})
	}
}

func (b *broadcaster) emit(ev model.AuthEvent) {
	b.mu.Lock()
	fns := make([]func(model.AuthEvent), 0, len(b.subs))
	for _, fn := range b.subs {
		fns = append(fns, fn)
	}
	b.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
