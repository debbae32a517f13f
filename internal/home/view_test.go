package home

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lostfound/internal/model"
)

func ptr(s string) *string { return &s }

func TestDeriveDisplayName(t *testing.T) {
	tests := []struct {
		name string
		user *model.User
		want string
	}{
		{"nil record", nil, "User"},
		{"empty record", &model.User{}, "User"},
		{"display name wins", &model.User{DisplayName: ptr("Jordan"), Email: ptr("x@y.com")}, "Jordan"},
		{"email local part", &model.User{Email: ptr("j.doe@example.com")}, "j.doe"},
		{"empty display name falls through", &model.User{DisplayName: ptr(""), Email: ptr("sam@example.com")}, "sam"},
		{"first at only", &model.User{Email: ptr("a@b@c")}, "a"},
		{"no at", &model.User{Email: ptr("plain")}, "plain"},
		{"empty local part", &model.User{Email: ptr("@example.com")}, "User"},
		{"empty email", &model.User{Email: ptr("")}, "User"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveDisplayName(tt.user))
		})
	}
}

func TestNew_Seeded(t *testing.T) {
	v := New(nil, nil)
	reviews := v.Reviews()
	require.Len(t, reviews, 3)
	assert.Equal(t, []int64{1, 2, 4}, []int64{reviews[0].ID, reviews[1].ID, reviews[2].ID})
	assert.Equal(t, "Almas", reviews[0].Author)
	assert.Equal(t, model.ReviewDraft{}, v.Draft())
	assert.Empty(t, v.Name())
}

func TestSubmit_RejectsInvalidDraft(t *testing.T) {
	v := New(nil, nil)

	v.SetText("great")
	_, ok := v.Submit()
	assert.False(t, ok, "rating unset")

	v.SetRating(3)
	v.SetText("   ")
	_, ok = v.Submit()
	assert.False(t, ok, "blank text")

	assert.Len(t, v.Reviews(), 3)
	assert.Equal(t, model.ReviewDraft{Rating: 3, Text: "   "}, v.Draft())
}

func TestSubmit_AppendsTrimmedQuoted(t *testing.T) {
	v := New(nil, nil)
	before := v.Reviews()

	v.SetRating(4)
	v.SetText(" Great app! ")
	r, ok := v.Submit()
	require.True(t, ok)

	after := v.Reviews()
	require.Len(t, after, 4)
	assert.Equal(t, r, after[3])
	assert.Equal(t, 4, r.Rating)
	assert.Equal(t, `"Great app!"`, r.Text)
	assert.Equal(t, "You", r.Author)
	for _, old := range before {
		assert.NotEqual(t, old.ID, r.ID)
	}
	assert.Equal(t, model.ReviewDraft{}, v.Draft())

	// Earlier snapshots are untouched.
	assert.Len(t, before, 3)
}

func TestSubmit_KPlusN(t *testing.T) {
	fixed := time.UnixMilli(1_000)
	v := New(NewIDSource(func() time.Time { return fixed }), nil)
	seed := append([]model.Review(nil), v.Reviews()...)

	const n = 5
	for i := 0; i < n; i++ {
		v.SetRating(i%5 + 1)
		v.SetText("review")
		_, ok := v.Submit()
		require.True(t, ok)
	}

	got := v.Reviews()
	require.Len(t, got, len(seed)+n)
	assert.Equal(t, seed, got[:len(seed)])

	seen := map[int64]bool{}
	var prev int64
	for i, r := range got {
		assert.False(t, seen[r.ID], "duplicate id %d", r.ID)
		seen[r.ID] = true
		if i >= len(seed) {
			assert.Greater(t, r.ID, prev)
			assert.Equal(t, (i-len(seed))%5+1, r.Rating)
		}
		prev = r.ID
	}
}

func TestSetRating_Clamps(t *testing.T) {
	v := New(nil, nil)
	v.SetRating(9)
	assert.Equal(t, 5, v.Draft().Rating)
	v.SetRating(-1)
	assert.Equal(t, 0, v.Draft().Rating)
}

func TestApplyIdentity_RefreshEachTime(t *testing.T) {
	v := New(nil, nil)

	g1 := v.BeginRefresh()
	require.True(t, v.ApplyIdentity(g1, &model.User{Email: ptr("jo@example.com")}, nil))
	assert.Equal(t, "jo", v.Name())

	g2 := v.BeginRefresh()
	require.True(t, v.ApplyIdentity(g2, &model.User{DisplayName: ptr("Jordan")}, nil))
	assert.Equal(t, "Jordan", v.Name())

	g3 := v.BeginRefresh()
	require.True(t, v.ApplyIdentity(g3, nil, errors.New("offline")))
	assert.Equal(t, "User", v.Name())
}

func TestApplyIdentity_DropsStale(t *testing.T) {
	v := New(nil, nil)
	assert.False(t, v.Pending())
	first := v.BeginRefresh()
	second := v.BeginRefresh()
	assert.True(t, v.Pending())

	require.True(t, v.ApplyIdentity(second, &model.User{DisplayName: ptr("New")}, nil))
	assert.False(t, v.Pending())
	assert.False(t, v.ApplyIdentity(first, &model.User{DisplayName: ptr("Old")}, nil))
	assert.Equal(t, "New", v.Name())
	assert.Equal(t, second, v.Generation())
}

func TestApplyIdentity_OncePerGeneration(t *testing.T) {
	v := New(nil, nil)
	g := v.BeginRefresh()
	require.True(t, v.ApplyIdentity(g, &model.User{DisplayName: ptr("First")}, nil))
	assert.False(t, v.ApplyIdentity(g, &model.User{DisplayName: ptr("Again")}, nil))
	assert.False(t, v.ApplyIdentity(0, &model.User{DisplayName: ptr("Zero")}, nil))
	assert.Equal(t, "First", v.Name())
}

func TestApplyIdentity_SharedGenerationsIsolateViews(t *testing.T) {
	gens := &Generations{}
	old := New(nil, gens)
	oldGen := old.BeginRefresh()

	fresh := New(nil, gens)
	freshGen := fresh.BeginRefresh()
	require.NotEqual(t, oldGen, freshGen)

	assert.False(t, fresh.ApplyIdentity(oldGen, &model.User{DisplayName: ptr("Previous")}, nil))
	assert.True(t, fresh.Pending())
	require.True(t, fresh.ApplyIdentity(freshGen, &model.User{DisplayName: ptr("Current")}, nil))
	assert.Equal(t, "Current", fresh.Name())
}

func TestIDSource_Monotonic(t *testing.T) {
	now := time.UnixMilli(100)
	ids := NewIDSource(func() time.Time { return now })
	ids.Observe(150)

	assert.Equal(t, int64(151), ids.Next())
	assert.Equal(t, int64(152), ids.Next())

	now = time.UnixMilli(500)
	assert.Equal(t, int64(500), ids.Next())
	ids.Observe(10)
	assert.Equal(t, int64(501), ids.Next())
}
