// Package home holds the home screen's state: the greeting identity, the
// review feed and the review draft. It has no UI dependencies.
package home

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"lostfound/internal/model"
)

const (
	// FallbackName is shown when no better name can be derived.
	FallbackName = "User"
	// SelfAuthor labels reviews posted from this client.
	SelfAuthor = "You"
	MaxRating  = 5
)

// DeriveDisplayName picks the greeting for u: its display name, else the
// local part of its email, else FallbackName.
func DeriveDisplayName(u *model.User) string {
	if u == nil {
		return FallbackName
	}
	if u.DisplayName != nil && *u.DisplayName != "" {
		return *u.DisplayName
	}
	if u.Email != nil {
		if local, _, _ := strings.Cut(*u.Email, "@"); local != "" {
			return local
		}
	}
	return FallbackName
}

// SeedReviews returns the example reviews every feed starts with.
func SeedReviews() []model.Review {
	return []model.Review{
		{ID: 1, Author: "Almas", Rating: 5, Text: `"Found my lost laptop within 24 hours! This app is a lifesaver. The community is incredibly helpful."`},
		{ID: 2, Author: "Abiram", Rating: 5, Text: `"Reunited with my lost phone thanks to this amazing platform. The process was smooth and secure."`},
		{ID: 4, Author: "Ashbin", Rating: 5, Text: `"Excellent app! Found my lost keys in just a few hours. The map feature is particularly helpful."`},
	}
}

// IDSource issues review IDs from the wall clock in milliseconds, bumped
// past every ID it has issued or observed so they stay strictly increasing.
type IDSource struct {
	mu   sync.Mutex
	last int64
	now  func() time.Time
}

func NewIDSource(now func() time.Time) *IDSource {
	if now == nil {
		now = time.Now
	}
	return &IDSource{now: now}
}

// Observe records an existing ID so Next never reissues it.
func (s *IDSource) Observe(id int64) {
	s.mu.Lock()
	if id > s.last {
		s.last = id
	}
	s.mu.Unlock()
}

func (s *IDSource) Next() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.now().UnixMilli()
	if id <= s.last {
		id = s.last + 1
	}
	s.last = id
	return id
}

// View is the home screen's state. It is owned by one screen instance and
// is not safe for concurrent use.
type View struct {
	name    string
	reviews []model.Review
	draft   model.ReviewDraft
	gen     uint64 // latest refresh started
	applied uint64 // latest refresh applied
	ids     *IDSource
	gens    *Generations
}

// Generations numbers identity refreshes. Views built from the same
// Generations never share a refresh number, so a result addressed to a
// discarded view cannot match a live one.
type Generations struct {
	n atomic.Uint64
}

func (g *Generations) Next() uint64 { return g.n.Add(1) }

// New returns a view seeded with the example reviews. Nil arguments get
// private sources.
func New(ids *IDSource, gens *Generations) *View {
	if ids == nil {
		ids = NewIDSource(nil)
	}
	if gens == nil {
		gens = &Generations{}
	}
	reviews := SeedReviews()
	for _, r := range reviews {
		ids.Observe(r.ID)
	}
	return &View{reviews: reviews, ids: ids, gens: gens}
}

// Name is the greeting identity; empty until the first refresh resolves.
func (v *View) Name() string { return v.name }

// Reviews returns the feed in insertion order. The slice is never mutated
// after it is returned.
func (v *View) Reviews() []model.Review { return v.reviews }

func (v *View) Draft() model.ReviewDraft { return v.draft }

// Generation is the number of the latest refresh started.
func (v *View) Generation() uint64 { return v.gen }

// Pending reports whether the latest refresh has not resolved yet.
func (v *View) Pending() bool { return v.applied != v.gen }

// BeginRefresh starts an identity refresh and returns its generation.
// Only the result carrying the latest generation is applied.
func (v *View) BeginRefresh() uint64 {
	v.gen = v.gens.Next()
	return v.gen
}

// ApplyIdentity applies the result of refresh gen. Results from superseded
// or foreign refreshes, and repeats of one already applied, are dropped and
// false is returned. A failed fetch sets the fallback name.
func (v *View) ApplyIdentity(gen uint64, u *model.User, err error) bool {
	if gen == 0 || gen != v.gen || gen == v.applied {
		return false
	}
	v.applied = gen
	if err != nil {
		v.name = FallbackName
		return true
	}
	v.name = DeriveDisplayName(u)
	return true
}

// SetRating sets the draft rating, clamped to 0..MaxRating.
func (v *View) SetRating(r int) {
	switch {
	case r < 0:
		r = 0
	case r > MaxRating:
		r = MaxRating
	}
	v.draft.Rating = r
}

func (v *View) SetText(s string) { v.draft.Text = s }

// Submit posts the draft as a new review. It is a no-op returning false if
// the rating is unset or the trimmed text is empty. On success the draft is
// reset.
func (v *View) Submit() (model.Review, bool) {
	text := strings.TrimSpace(v.draft.Text)
	if v.draft.Rating == 0 || text == "" {
		return model.Review{}, false
	}
	r := model.Review{
		ID:     v.ids.Next(),
		Author: SelfAuthor,
		Rating: v.draft.Rating,
		Text:   `"` + text + `"`,
	}

	next := make([]model.Review, len(v.reviews), len(v.reviews)+1)
	copy(next, v.reviews)
	v.reviews = append(next, r)
	v.draft = model.ReviewDraft{}
	return r, true
}
