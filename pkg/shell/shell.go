package shell

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds a command when Exec.Timeout is not set.
const DefaultTimeout = 5 * time.Second

// ErrTimeout is returned when a command did not finish in time.
// The process group of the command has been killed by then.
var ErrTimeout = errors.New("command timed out")

// Command describes a single subprocess invocation.
type Command struct {
	Name string
	Args []string
	// Stdin is written to the process and then closed. Empty means no input.
	Stdin string
}

func (c Command) String() string {
	return strings.TrimSpace(c.Name + " " + strings.Join(c.Args, " "))
}

// Result is what a finished process left behind.
type Result struct {
	Stdout   string
	ExitCode int
}

// FirstLine returns the first line of stdout, without the line terminator.
func (r Result) FirstLine() string {
	line, _, _ := strings.Cut(r.Stdout, "\n")
	return strings.TrimSuffix(line, "\r")
}

// Runner runs commands. A non-zero exit status is not an error, it is
// reported in Result.ExitCode. Errors are reserved for spawn failures,
// I/O failures and timeouts.
type Runner interface {
	Run(ctx context.Context, cmd Command) (Result, error)
}

// Func adapts an ordinary function to a Runner.
type Func func(ctx context.Context, cmd Command) (Result, error)

// Run calls f(ctx, cmd).
func (f Func) Run(ctx context.Context, cmd Command) (Result, error) {
	return f(ctx, cmd)
}

// Exec runs commands as real subprocesses.
type Exec struct {
	Timeout time.Duration
}

// NewExec returns an Exec with the given timeout. A non-positive timeout
// falls back to DefaultTimeout.
func NewExec(timeout time.Duration) *Exec {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Exec{Timeout: timeout}
}

var _ Runner = &Exec{}

// Run starts the command and waits for it, at most e.Timeout.
func (e *Exec) Run(ctx context.Context, c Command) (Result, error) {
	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	if c.Stdin != "" {
		cmd.Stdin = strings.NewReader(c.Stdin)
	}
	var stdout bytes.Buffer
	cmd.Stdout = &stdout
	// su implementations fork shells that may inherit our pipes. Kill the
	// whole group and stop waiting for the pipes shortly after.
	setProcessGroup(cmd)
	cmd.WaitDelay = time.Second

	logrus.WithFields(logrus.Fields{
		"cmd":     c.String(),
		"timeout": timeout.String(),
	}).Trace("running command")

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			logrus.WithFields(logrus.Fields{
				"cmd":     c.String(),
				"elapsed": elapsed.String(),
			}).Debug("command timed out")
			return Result{Stdout: stdout.String(), ExitCode: -1}, ErrTimeout
		}
		return Result{Stdout: stdout.String(), ExitCode: -1}, ctxErr
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			logrus.WithFields(logrus.Fields{
				"cmd":      c.String(),
				"exitCode": exitErr.ExitCode(),
			}).Trace("command exited with non-zero status")
			return Result{Stdout: stdout.String(), ExitCode: exitErr.ExitCode()}, nil
		}
		return Result{ExitCode: -1}, err
	}

	logrus.WithFields(logrus.Fields{
		"cmd":     c.String(),
		"elapsed": elapsed.String(),
	}).Trace("command finished")

	return Result{Stdout: stdout.String(), ExitCode: 0}, nil
}
