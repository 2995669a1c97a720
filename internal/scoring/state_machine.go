// Package scoring drives one submit-for-AI-evaluation round: execute, score,
// apply, then chain the automatic follow-up.
package scoring

// State is the phase of one scoring invocation.
type State string

const (
	StateCreated    State = "created"
	StateExecuting  State = "executing"
	StateRequesting State = "requesting"
	StateApplying   State = "applying"
	StateChaining   State = "chaining"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

var allowedTransitions = map[State]map[State]struct{}{
	StateCreated: {
		StateExecuting: {},
		StateFailed:    {},
	},
	StateExecuting: {
		StateRequesting: {},
		StateFailed:     {},
	},
	StateRequesting: {
		StateApplying: {},
		StateFailed:   {},
	},
	StateApplying: {
		StateChaining: {},
		StateFailed:   {},
	},
	StateChaining: {
		StateCompleted: {},
	},
}

// CanTransition reports whether a state transition is valid.
func CanTransition(from, to State) bool {
	allowed, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// IsTerminal reports whether a state ends the invocation.
func IsTerminal(s State) bool {
	return s == StateCompleted || s == StateFailed
}
