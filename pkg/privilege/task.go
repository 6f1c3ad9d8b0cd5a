package privilege

import (
	"context"
)

// Kind selects the probe procedure a Task runs.
type Kind int

const (
	// KindDetect runs the startup detection (markers, then shell exit status).
	KindDetect Kind = iota
	// KindElevate runs detection plus the uid=0 identity check.
	KindElevate
)

func (k Kind) String() string {
	switch k {
	case KindDetect:
		return "detect"
	case KindElevate:
		return "elevate"
	default:
		return "unknown"
	}
}

// Task is a handle to one queued probe. It completes exactly once.
type Task struct {
	kind   Kind
	done   chan struct{}
	status Status
}

func newTask(kind Kind) *Task {
	return &Task{
		kind: kind,
		done: make(chan struct{}),
	}
}

// Kind returns the probe procedure of the task.
func (t *Task) Kind() Kind {
	return t.kind
}

// Done is closed when the task has finished.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Status returns the status the task produced, and whether it has
// finished at all.
func (t *Task) Status() (Status, bool) {
	select {
	case <-t.done:
		return t.status, true
	default:
		return Unchecked, false
	}
}

// Wait blocks until the task finishes or ctx is done.
func (t *Task) Wait(ctx context.Context) (Status, error) {
	select {
	case <-t.done:
		return t.status, nil
	case <-ctx.Done():
		return Unchecked, ctx.Err()
	}
}

func (t *Task) finish(s Status) {
	t.status = s
	close(t.done)
}
