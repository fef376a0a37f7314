package orchestrator

// State is a step of a build run
type State string

const (
	StateIdle               State = "Idle"
	StateCacheConsult       State = "CacheConsult"
	StateReuseHit           State = "ReuseHit"
	StateBuildMiss          State = "BuildMiss"
	StateRecorded           State = "Recorded"
	StateAllConsulted       State = "AllConsulted"
	StateNeedsExternalBuild State = "NeedsExternalBuild"
	StateNothingChanged     State = "NothingChanged"
	StatePublished          State = "Published"
	StateDone               State = "Done"
)

// Transition is one state change. Component is empty for run-level steps.
type Transition struct {
	From      State
	To        State
	Component string
}

// machine tracks the current state and the transitions taken
type machine struct {
	state State
	trail []Transition
}

func newMachine() *machine {
	return &machine{state: StateIdle}
}

func (m *machine) to(next State, component string) {
	m.trail = append(m.trail, Transition{From: m.state, To: next, Component: component})
	m.state = next
}
