package extract

import "fmt"

// State is a step of the per-request extraction state machine.
type State string

const (
	StateStart       State = "start"
	StateNormalizing State = "normalizing"
	StateDispatching State = "dispatching"
	StateReconciling State = "reconciling"
	StateDone        State = "done"
	StateFailed      State = "failed"
)

var transitions = map[State][]State{
	StateStart:       {StateNormalizing},
	StateNormalizing: {StateDispatching, StateFailed},
	StateDispatching: {StateReconciling},
	StateReconciling: {StateDone, StateFailed},
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// machine tracks one request's progress and rejects out-of-order steps.
type machine struct {
	state State
	trace []State
}

func newMachine() *machine {
	return &machine{state: StateStart, trace: []State{StateStart}}
}

func (m *machine) to(next State) error {
	for _, allowed := range transitions[m.state] {
		if allowed == next {
			m.state = next
			m.trace = append(m.trace, next)
			return nil
		}
	}
	return fmt.Errorf("invalid state transition %s -> %s", m.state, next)
}

// must is for transitions the orchestrator's own control flow guarantees.
func (m *machine) must(next State) {
	if err := m.to(next); err != nil {
		panic(err)
	}
}
