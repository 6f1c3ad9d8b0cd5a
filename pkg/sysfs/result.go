package sysfs

// Kind tells the variant of a Result.
type Kind int

const (
	// KindOK carries a parsed value.
	KindOK Kind = iota
	// KindUnavailable means root access is not granted; nothing was spawned.
	KindUnavailable
	// KindFailed means the read was attempted and failed.
	KindFailed
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindUnavailable:
		return "unavailable"
	case KindFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the outcome of one privileged read.
type Result struct {
	Kind  Kind
	Value int64
	Err   error
}

// OK returns a successful Result.
func OK(v int64) Result {
	return Result{Kind: KindOK, Value: v}
}

// Unavailable returns the Result of a read skipped for lack of root.
func Unavailable() Result {
	return Result{Kind: KindUnavailable}
}

// Failed returns the Result of a read that failed with err.
func Failed(err error) Result {
	return Result{Kind: KindFailed, Err: err}
}

// ValueOrZero returns the value for KindOK and 0 otherwise.
func (r Result) ValueOrZero() int64 {
	if r.Kind != KindOK {
		return 0
	}
	return r.Value
}
