package privilege

import (
	"sync/atomic"
)

// Status is the result of root detection. The zero value means the
// detection has not finished yet.
type Status struct {
	Granted bool `json:"hasRoot"`
	Checked bool `json:"checked"`
}

var (
	// Unchecked is the status before any probe has finished.
	Unchecked = Status{}
	// Denied is the status after a probe found no root access.
	Denied = Status{Checked: true}
	// Granted is the status after a probe proved root access.
	Granted = Status{Checked: true, Granted: true}
)

// Usable reports whether privileged operations may be attempted.
func (s Status) Usable() bool {
	return s.Checked && s.Granted
}

func (s Status) String() string {
	switch {
	case !s.Checked:
		return "unchecked"
	case s.Granted:
		return "granted"
	default:
		return "denied"
	}
}

const (
	stateUnchecked int32 = iota
	stateDenied
	stateGranted
)

// State is a lock-free cell holding a Status. The prober is its only
// writer; any goroutine may Load it.
type State struct {
	v atomic.Int32
}

// Load returns the current status. It may be stale with respect to a
// probe that is still running.
func (s *State) Load() Status {
	switch s.v.Load() {
	case stateGranted:
		return Granted
	case stateDenied:
		return Denied
	default:
		return Unchecked
	}
}

func (s *State) store(granted bool) {
	if granted {
		s.v.Store(stateGranted)
		return
	}
	s.v.Store(stateDenied)
}
