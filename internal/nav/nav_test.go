package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lostfound/internal/model"
	"lostfound/internal/session"
)

func TestRoutes_Disjoint(t *testing.T) {
	public := Routes(session.Unauthenticated)
	authed := Routes(session.Authenticated)
	require.NotEmpty(t, public)
	require.NotEmpty(t, authed)
	for _, p := range public {
		assert.NotContains(t, authed, p)
	}

	assert.True(t, Reachable(session.Unauthenticated, SignInSignUp))
	assert.False(t, Reachable(session.Unauthenticated, Home))
	assert.True(t, Reachable(session.Authenticated, Home))
	assert.False(t, Reachable(session.Authenticated, SignInSignUp))
}

func TestRoutes_ReturnsCopy(t *testing.T) {
	r := Routes(session.Authenticated)
	r[0] = "Hacked"
	assert.Equal(t, Home, Routes(session.Authenticated)[0])
}

func TestChatRoomID(t *testing.T) {
	tests := []struct {
		name   string
		params map[string]any
		want   string
		ok     bool
	}{
		{"nil params", nil, "", false},
		{"missing", map[string]any{}, "", false},
		{"empty string", map[string]any{RoomIDParam: ""}, "", false},
		{"number", map[string]any{RoomIDParam: 42}, "", false},
		{"string slice", map[string]any{RoomIDParam: []string{"a", "b"}}, "", false},
		{"valid", map[string]any{RoomIDParam: "room-7"}, "room-7", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ChatRoomID(tt.params)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	id, ok := ChatRoomID(ChatRoute("support").Params)
	assert.True(t, ok)
	assert.Equal(t, "support", id)
}

func TestStack(t *testing.T) {
	s := NewStack(session.Authenticated)
	assert.Equal(t, Home, s.Top().Name)

	_, ok := s.Pop()
	assert.False(t, ok)
	assert.Equal(t, 1, s.Depth())

	require.NoError(t, s.Push(model.Route{Name: Lost}))
	require.Error(t, s.Push(model.Route{Name: SignInSignUp}))
	assert.Equal(t, Lost, s.Top().Name)

	focused, ok := s.Pop()
	assert.True(t, ok)
	assert.Equal(t, Home, focused.Name)
}

func TestStack_Unauthenticated(t *testing.T) {
	s := NewStack(session.Unauthenticated)
	assert.Equal(t, SignInSignUp, s.Top().Name)
	assert.Error(t, s.Push(model.Route{Name: Home}))
	assert.Equal(t, session.Unauthenticated, s.State())
}
