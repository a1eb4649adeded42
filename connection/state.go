package connection

import "time"

type State string

const (
	StateIdle           State = "idle"
	StateInitializing   State = "initializing"
	StateReady          State = "ready"
	StateSimulatedReady State = "simulated_ready"
	StateLinking        State = "linking"
	StateExchanging     State = "exchanging"
	StateConnected      State = "connected"
	StateError          State = "error"
)

func (s State) String() string {
	return string(s)
}

var transitions = map[State]map[State]struct{}{
	StateIdle: {
		StateInitializing: {},
	},
	StateInitializing: {
		StateInitializing:   {},
		StateReady:          {},
		StateSimulatedReady: {},
		StateError:          {},
	},
	StateReady: {
		StateLinking: {},
	},
	StateSimulatedReady: {
		StateLinking: {},
	},
	StateLinking: {
		StateExchanging: {},
		StateReady:      {},
		StateError:      {},
	},
	StateExchanging: {
		StateConnected: {},
		StateError:     {},
	},
	StateError: {
		StateIdle:         {},
		StateInitializing: {},
	},
}

// CanTransition reports whether from -> to is a legal edge. Exchanging is only
// reachable from Linking.
func CanTransition(from State, to State) bool {
	targets, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = targets[to]
	return ok
}

// Transition is published to subscribers after every state change.
type Transition struct {
	From  State
	To    State
	Cycle uint64
	Err   error
	At    time.Time
}
