// Package session owns the process-wide auth session and maps it onto the
// two navigable states of the app.
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"lostfound/internal/model"
)

// State is the navigable state derived from the session.
type State int

const (
	Unauthenticated State = iota
	Authenticated
)

func (s State) String() string {
	if s == Authenticated {
		return "authenticated"
	}
	return "unauthenticated"
}

// Navigable maps a session onto a navigable state. There is no loading
// state: no session means unauthenticated.
func Navigable(sess *model.Session) State {
	if sess != nil {
		return Authenticated
	}
	return Unauthenticated
}

// Snapshot is the canonical session value at write number Seq.
type Snapshot struct {
	Seq     uint64
	Session *model.Session
}

func (s Snapshot) State() State { return Navigable(s.Session) }

// Source is the part of the auth provider the gate consumes.
type Source interface {
	Session(ctx context.Context) (*model.Session, error)
	Subscribe(fn func(model.AuthEvent)) (unsubscribe func())
}

// Gate is the single writer of the session value. The initial fetch and
// every auth event race; whichever resolves last wins.
type Gate struct {
	src Source
	log zerolog.Logger

	mu       sync.Mutex
	snap     Snapshot
	started  bool
	closed   bool
	unsub    func()
	nextID   int
	watchers map[int]chan Snapshot
}

func NewGate(src Source, log zerolog.Logger) *Gate {
	return &Gate{
		src:      src,
		log:      log.With().Str("component", "session").Logger(),
		watchers: make(map[int]chan Snapshot),
	}
}

// Start subscribes to auth events and issues the one initial session fetch.
// Calls after the first are no-ops.
func (g *Gate) Start(ctx context.Context) {
	g.mu.Lock()
	if g.started || g.closed {
		g.mu.Unlock()
		return
	}
	g.started = true
	g.mu.Unlock()

	unsub := g.src.Subscribe(func(ev model.AuthEvent) {
		g.write(ev.Session, string(ev.Kind))
	})
	g.mu.Lock()
	g.unsub = unsub
	g.mu.Unlock()

	go func() {
		sess, err := g.src.Session(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			g.log.Warn().Err(err).Msg("initial session fetch failed")
			sess = nil
		}
		g.write(sess, "initial_fetch")
	}()
}

// Current returns the latest snapshot. Seq is 0 until the first write.
func (g *Gate) Current() Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.snap
}

// Watch returns a channel carrying every later snapshot. A slow reader only
// sees the most recent one. The current snapshot is delivered first if any
// write has happened. cancel stops delivery and closes the channel.
func (g *Gate) Watch() (ch <-chan Snapshot, cancel func()) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c := make(chan Snapshot, 1)
	if g.closed {
		close(c)
		return c, func() {}
	}
	if g.snap.Seq > 0 {
		c <- g.snap
	}
	id := g.nextID
	g.nextID++
	g.watchers[id] = c

	return c, func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if w, ok := g.watchers[id]; ok {
			delete(g.watchers, id)
			close(w)
		}
	}
}

// Close unsubscribes from the auth provider and closes every watcher.
func (g *Gate) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.closed = true
	if g.unsub != nil {
		g.unsub()
	}
	for id, w := range g.watchers {
		delete(g.watchers, id)
		close(w)
	}
}

func (g *Gate) write(sess *model.Session, source string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.snap = Snapshot{Seq: g.snap.Seq + 1, Session: sess}
	g.log.Debug().
		Uint64("seq", g.snap.Seq).
		Str("source", source).
		Stringer("state", g.snap.State()).
		Msg("session updated")

	for _, w := range g.watchers {
		select {
		case <-w:
		default:
		}
		w <- g.snap
	}
}
