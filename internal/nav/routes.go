// Package nav describes which screens are reachable in each session state
// and tracks the screen stack inside a state.
package nav

import (
	"lostfound/internal/model"
	"lostfound/internal/session"
)

// Route names.
const (
	SignInSignUp = "SignInSignUp"
	Home         = "Home"
	Lost         = "Lost"
	Found        = "Found"
	Chat         = "Chat"
	Profile      = "Profile"
)

// RoomIDParam is the Chat route's room identifier parameter.
const RoomIDParam = "roomId"

var (
	publicRoutes = []string{SignInSignUp}
	authedRoutes = []string{Home, Lost, Found, Chat, Profile}
)

// Routes returns the route set mounted in state. The two sets are disjoint.
func Routes(state session.State) []string {
	src := publicRoutes
	if state == session.Authenticated {
		src = authedRoutes
	}
	return append([]string(nil), src...)
}

// Initial is the first route of the set mounted in state.
func Initial(state session.State) string {
	if state == session.Authenticated {
		return Home
	}
	return SignInSignUp
}

// Reachable reports whether name may be mounted in state.
func Reachable(state session.State, name string) bool {
	for _, r := range Routes(state) {
		if r == name {
			return true
		}
	}
	return false
}

// ChatRoomID extracts the room identifier from Chat route params. Only a
// present, non-empty string is accepted.
func ChatRoomID(params map[string]any) (string, bool) {
	v, ok := params[RoomIDParam]
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// ChatRoute builds a Chat route for roomID.
func ChatRoute(roomID string) model.Route {
	return model.Route{Name: Chat, Params: map[string]any{RoomIDParam: roomID}}
}
