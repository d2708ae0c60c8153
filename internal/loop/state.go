package loop

// State of the controller. Only Idle accepts a trigger.
type State int32

const (
	Uninitialized State = iota
	Idle
	Capturing
	Predicting
	Presenting
	// Failed is terminal: startup did not complete and nothing can run.
	Failed

	numStates
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case Predicting:
		return "predicting"
	case Presenting:
		return "presenting"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Stats is a snapshot of controller counters.
type Stats struct {
	State     string            `json:"state"`
	Accepted  uint64            `json:"accepted"`
	Dropped   uint64            `json:"dropped"`
	Succeeded uint64            `json:"succeeded"`
	Failed    uint64            `json:"failed"`
	Entered   map[string]uint64 `json:"entered"`
}
