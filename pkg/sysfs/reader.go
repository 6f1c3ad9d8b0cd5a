package sysfs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/droidbatt/pkg/metrics"
	"github.com/charlie0129/droidbatt/pkg/privilege"
	"github.com/charlie0129/droidbatt/pkg/shell"
)

// Node is one of the sysfs nodes that can be read with root access. The
// set is closed: callers cannot pass arbitrary paths to the root shell.
type Node int

const (
	// ChargerVoltage is the voltage of the USB charger input, in µV.
	ChargerVoltage Node = iota
	// BatteryPower is the instantaneous battery power, in µW.
	BatteryPower
)

var nodePaths = map[Node]string{
	ChargerVoltage: "/sys/class/power_supply/usb/voltage_now",
	BatteryPower:   "/sys/class/power_supply/battery/power_now",
}

// Path returns the sysfs path of n, or "" for an unknown node.
func (n Node) Path() string {
	return nodePaths[n]
}

func (n Node) String() string {
	switch n {
	case ChargerVoltage:
		return "charger_voltage"
	case BatteryPower:
		return "battery_power"
	default:
		return fmt.Sprintf("node(%d)", int(n))
	}
}

var (
	// ErrUnknownNode is returned for a Node outside the known set.
	ErrUnknownNode = errors.New("unknown sysfs node")
	// ErrEmptyOutput means the read produced no output line.
	ErrEmptyOutput = errors.New("empty output")
	// ErrNonZeroExit means the root shell reported a failure.
	ErrNonZeroExit = errors.New("non-zero exit status")
)

// StatusLoader gives the current root detection status.
type StatusLoader interface {
	Load() privilege.Status
}

// StatusFunc adapts a function to a StatusLoader.
type StatusFunc func() privilege.Status

// Load calls f().
func (f StatusFunc) Load() privilege.Status {
	return f()
}

// Reader reads sysfs nodes through a root shell.
type Reader struct {
	status   StatusLoader
	runner   shell.Runner
	suBinary string
}

// NewReader returns a Reader that only spawns suBinary through runner when
// status reports usable root access.
func NewReader(status StatusLoader, runner shell.Runner, suBinary string) *Reader {
	if suBinary == "" {
		suBinary = privilege.DefaultSuBinary
	}
	return &Reader{
		status:   status,
		runner:   runner,
		suBinary: suBinary,
	}
}

// Read reads and parses one node. It never returns an error directly:
// failures are reported as a Failed result carrying the cause.
func (r *Reader) Read(ctx context.Context, n Node) Result {
	res := r.read(ctx, n)

	metrics.PrivilegedReads.WithLabelValues(n.String(), res.Kind.String()).Inc()
	entry := logrus.WithFields(logrus.Fields{
		"node":   n.String(),
		"result": res.Kind.String(),
	})
	if res.Err != nil {
		entry.WithError(res.Err).Debug("privileged read failed")
	} else {
		entry.WithField("value", res.Value).Trace("privileged read")
	}

	return res
}

func (r *Reader) read(ctx context.Context, n Node) Result {
	path := n.Path()
	if path == "" {
		return Failed(ErrUnknownNode)
	}

	if !r.status.Load().Usable() {
		return Unavailable()
	}

	out, err := r.runner.Run(ctx, shell.Command{
		Name: r.suBinary,
		Args: []string{"-c", "cat " + path},
	})
	if err != nil {
		return Failed(pkgerrors.Wrapf(err, "failed to read %s", path))
	}
	if out.ExitCode != 0 {
		return Failed(pkgerrors.Wrapf(ErrNonZeroExit, "cat %s exited with %d", path, out.ExitCode))
	}

	return parseLine(path, out.FirstLine())
}

func parseLine(path, line string) Result {
	line = strings.TrimSpace(line)
	if line == "" {
		return Failed(pkgerrors.Wrapf(ErrEmptyOutput, "read %s", path))
	}

	v, err := strconv.ParseInt(line, 10, 64)
	if err != nil {
		return Failed(pkgerrors.Wrapf(err, "failed to parse %s", path))
	}
	return OK(v)
}
