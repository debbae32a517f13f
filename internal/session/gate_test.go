package session

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lostfound/internal/model"
)

type fetchResult struct {
	sess *model.Session
	err  error
}

// fakeSource lets a test decide when the initial fetch resolves and when
// stream events fire.
type fakeSource struct {
	mu           sync.Mutex
	handler      func(model.AuthEvent)
	unsubscribed bool
	fetch        chan fetchResult
	calls        atomic.Int32
}

func newFakeSource() *fakeSource {
	return &fakeSource{fetch: make(chan fetchResult)}
}

func (f *fakeSource) Session(ctx context.Context) (*model.Session, error) {
	f.calls.Add(1)
	select {
	case r := <-f.fetch:
		return r.sess, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (f *fakeSource) Subscribe(fn func(model.AuthEvent)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = fn
	return func() {
		f.mu.Lock()
		f.unsubscribed = true
		f.handler = nil
		f.mu.Unlock()
	}
}

func (f *fakeSource) emit(sess *model.Session) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h == nil {
		return
	}
	kind := model.SignedIn
	if sess == nil {
		kind = model.SignedOut
	}
	h(model.AuthEvent{Kind: kind, Session: sess})
}

func session(token string) *model.Session {
	return &model.Session{AccessToken: token}
}

// resolve completes the initial fetch and waits for the gate to apply it.
func resolve(t *testing.T, g *Gate, src *fakeSource, r fetchResult) {
	t.Helper()
	before := g.Current().Seq
	src.fetch <- r
	require.Eventually(t, func() bool { return g.Current().Seq > before }, time.Second, time.Millisecond)
}

func startGate(t *testing.T) (*Gate, *fakeSource) {
	t.Helper()
	src := newFakeSource()
	g := NewGate(src, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		g.Close()
	})
	g.Start(ctx)
	return g, src
}

func TestNavigable(t *testing.T) {
	assert.Equal(t, Unauthenticated, Navigable(nil))
	assert.Equal(t, Authenticated, Navigable(&model.Session{}))
	assert.Equal(t, "authenticated", Authenticated.String())
	assert.Equal(t, "unauthenticated", Unauthenticated.String())
}

func TestGate_NoWriteMeansUnauthenticated(t *testing.T) {
	g, _ := startGate(t)
	snap := g.Current()
	assert.Zero(t, snap.Seq)
	assert.Equal(t, Unauthenticated, snap.State())
}

func TestGate_FetchThenStream(t *testing.T) {
	g, src := startGate(t)

	resolve(t, g, src, fetchResult{sess: session("a")})
	assert.Equal(t, Authenticated, g.Current().State())

	src.emit(nil)
	assert.Equal(t, Unauthenticated, g.Current().State())

	src.emit(session("b"))
	snap := g.Current()
	assert.Equal(t, Authenticated, snap.State())
	assert.Equal(t, "b", snap.Session.AccessToken)
	assert.Equal(t, uint64(3), snap.Seq)
}

func TestGate_LateFetchOverwritesEarlierEvent(t *testing.T) {
	g, src := startGate(t)

	src.emit(session("from-stream"))
	assert.Equal(t, Authenticated, g.Current().State())

	resolve(t, g, src, fetchResult{sess: nil})
	assert.Equal(t, Unauthenticated, g.Current().State())
	assert.Equal(t, uint64(2), g.Current().Seq)
}

func TestGate_FetchFailureIsNoSession(t *testing.T) {
	src := newFakeSource()
	var buf bytes.Buffer
	g := NewGate(src, zerolog.New(&buf))
	defer g.Close()
	g.Start(context.Background())

	resolve(t, g, src, fetchResult{err: errors.New("offline")})
	assert.Equal(t, Unauthenticated, g.Current().State())
	assert.Contains(t, buf.String(), "initial session fetch failed")
	assert.Contains(t, buf.String(), "offline")
}

func TestGate_StartIsIdempotent(t *testing.T) {
	g, src := startGate(t)
	g.Start(context.Background())
	resolve(t, g, src, fetchResult{})

	assert.Equal(t, int32(1), src.calls.Load())
}

// Whatever the interleaving of the fetch and stream events, the final state
// follows the last value to resolve.
func TestGate_LastWriteWins(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		g, src := startGate(t)

		n := rng.Intn(5)
		fetchAt := rng.Intn(n + 1)
		var last *model.Session
		for j := 0; j <= n; j++ {
			var sess *model.Session
			if rng.Intn(2) == 0 {
				sess = session("s")
			}
			if j == fetchAt {
				resolve(t, g, src, fetchResult{sess: sess})
			} else {
				src.emit(sess)
			}
			last = sess
		}

		snap := g.Current()
		require.Equal(t, uint64(n+1), snap.Seq)
		require.Equal(t, Navigable(last), snap.State(), "iteration %d", i)
	}
}

func TestGate_WatchDeliversLatest(t *testing.T) {
	g, src := startGate(t)
	ch, cancel := g.Watch()
	defer cancel()

	src.emit(session("a"))
	src.emit(nil)
	src.emit(session("c"))

	snap := <-ch
	assert.Equal(t, uint64(3), snap.Seq)
	assert.Equal(t, "c", snap.Session.AccessToken)

	select {
	case extra := <-ch:
		t.Fatalf("unexpected snapshot %+v", extra)
	default:
	}
}

func TestGate_WatchPrimedWithCurrent(t *testing.T) {
	g, src := startGate(t)
	src.emit(session("a"))

	ch, cancel := g.Watch()
	defer cancel()
	snap := <-ch
	assert.Equal(t, uint64(1), snap.Seq)
}

func TestGate_CloseUnsubscribesAndClosesWatchers(t *testing.T) {
	src := newFakeSource()
	g := NewGate(src, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	g.Start(ctx)

	ch, _ := g.Watch()
	g.Close()
	g.Close()

	_, ok := <-ch
	assert.False(t, ok)
	src.mu.Lock()
	assert.True(t, src.unsubscribed)
	src.mu.Unlock()

	late, _ := g.Watch()
	_, ok = <-late
	assert.False(t, ok)
}
