package nav

import (
	"fmt"

	"lostfound/internal/model"
	"lostfound/internal/session"
)

// Stack is the screen history within one navigable state. It always holds
// the state's initial route at the bottom.
type Stack struct {
	state  session.State
	routes []model.Route
}

func NewStack(state session.State) *Stack {
	return &Stack{
		state:  state,
		routes: []model.Route{{Name: Initial(state)}},
	}
}

func (s *Stack) State() session.State { return s.state }

// Top is the focused route.
func (s *Stack) Top() model.Route { return s.routes[len(s.routes)-1] }

func (s *Stack) Depth() int { return len(s.routes) }

// Push focuses r. Routes outside the state's set are refused.
func (s *Stack) Push(r model.Route) error {
	if !Reachable(s.state, r.Name) {
		return fmt.Errorf("route %q not reachable while %s", r.Name, s.state)
	}
	s.routes = append(s.routes, r)
	return nil
}

// Pop removes the focused route and returns the route that regains focus.
// The initial route is never popped; ok is false in that case.
func (s *Stack) Pop() (focused model.Route, ok bool) {
	if len(s.routes) == 1 {
		return s.routes[0], false
	}
	s.routes = s.routes[:len(s.routes)-1]
	return s.Top(), true
}
