package workflow

import "github.com/javisai/javis/types"

// State is the request lifecycle position. Transitions are strictly forward;
// a request never revisits a state and every stage runs exactly once.
type State string

const (
	StateReceived      State = "RECEIVED"
	StateClassified    State = "CLASSIFIED"
	StateToolsSelected State = "TOOLS_SELECTED"
	StateExecuted      State = "EXECUTED"
	StateResponded     State = "RESPONDED"
	StateFailed        State = "FAILED"
)

// next is the only legal forward transition from each non-terminal state.
var next = map[State]State{
	StateReceived:      StateClassified,
	StateClassified:    StateToolsSelected,
	StateToolsSelected: StateExecuted,
	StateExecuted:      StateResponded,
}

// Terminal reports whether no further transition is allowed.
func (s State) Terminal() bool {
	return s == StateResponded || s == StateFailed
}

// advance validates and performs the transition from s to target. Any
// transition other than the single legal forward step (or failing from a
// non-terminal state) is an InvalidTransition.
func advance(s, target State) (State, error) {
	if s.Terminal() {
		return s, types.NewError(types.ErrInvalidTransition,
			"cannot leave terminal state "+string(s))
	}
	if target == StateFailed {
		return StateFailed, nil
	}
	if next[s] != target {
		return s, types.NewError(types.ErrInvalidTransition,
			"illegal transition "+string(s)+" -> "+string(target))
	}
	return target, nil
}
