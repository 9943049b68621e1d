package collector

// State represents the lifecycle state of the sampling process.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateRunning
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "Stopped"
	case StateStarting:
		return "Starting"
	case StateRunning:
		return "Running"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}
