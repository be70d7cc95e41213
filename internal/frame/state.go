package frame

import "fmt"

// State is the engine's position in the per-frame cycle.
//
//	Idle -> Acquiring -> Recording -> Submitted -> Presenting -> Idle
//	Acquiring | Presenting -> Rebuilding -> Idle
type State int

const (
	StateIdle State = iota
	StateAcquiring
	StateRecording
	StateSubmitted
	StatePresenting
	StateRebuilding
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiring:
		return "acquiring"
	case StateRecording:
		return "recording"
	case StateSubmitted:
		return "submitted"
	case StatePresenting:
		return "presenting"
	case StateRebuilding:
		return "rebuilding"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Stats are running counters since the engine was created.
type Stats struct {
	Frames         uint64
	Rebuilds       uint64
	CrossSlotWaits uint64
	Suboptimal     uint64
}
