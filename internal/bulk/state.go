package bulk

import (
	"fmt"

	"github.com/roach88/querydeck/internal/queryir"
)

// State is the lifecycle position of one bulk mutation call.
type State string

const (
	StatePrepared  State = "prepared"
	StateSubmitted State = "submitted"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
)

// CanTransitionTo reports whether next may follow s.
func (s State) CanTransitionTo(next State) bool {
	switch s {
	case "":
		return next == StatePrepared
	case StatePrepared:
		return next == StateSubmitted
	case StateSubmitted:
		return next == StateCompleted || next == StateFailed
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Transition describes one state change of a call, identified by the ID
// its Signal will carry.
type Transition struct {
	ID     string
	Entity string
	Kind   queryir.MutationKind
	From   State
	To     State
}

// call tracks the state of one mutation.
type call struct {
	id       string
	mutation queryir.Mutation
	state    State
	observe  func(Transition)
}

func (c *call) advance(next State) error {
	if !c.state.CanTransitionTo(next) {
		return fmt.Errorf("bulk %s %s: invalid transition %s -> %s", c.mutation.Kind, c.mutation.Entity.Name, c.state, next)
	}
	t := Transition{
		ID:     c.id,
		Entity: c.mutation.Entity.Name,
		Kind:   c.mutation.Kind,
		From:   c.state,
		To:     next,
	}
	c.state = next
	if c.observe != nil {
		c.observe(t)
	}
	return nil
}
