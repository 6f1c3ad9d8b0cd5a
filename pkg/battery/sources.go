package battery

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/droidbatt/pkg/powerinfo"
	"github.com/charlie0129/droidbatt/pkg/shell"
)

const (
	// DefaultSupplyDir is the power supply directory of the main battery.
	DefaultSupplyDir = "/sys/class/power_supply/battery"

	SourceSysfs    = "sysfs"
	SourceDumpsys  = "dumpsys"
	SourceDistatus = "distatus"
)

// NewStatusSource returns the StatusSource called name.
func NewStatusSource(name string, runner shell.Runner) (StatusSource, error) {
	switch name {
	case "", SourceSysfs:
		return &SysfsSource{Dir: DefaultSupplyDir}, nil
	case SourceDumpsys:
		return NewDumpsysSource(runner), nil
	case SourceDistatus:
		return &DistatusSource{}, nil
	default:
		return nil, pkgerrors.Errorf("unknown battery source %q", name)
	}
}

// SysfsSource reads the world-readable attributes of a power supply
// directory. capacity is already a percentage, so the scale is 100.
type SysfsSource struct {
	Dir string
}

var sysfsStatusCodes = map[string]int{
	"charging":     powerinfo.StatusCodeCharging,
	"discharging":  powerinfo.StatusCodeDischarging,
	"not charging": powerinfo.StatusCodeNotCharging,
	"full":         powerinfo.StatusCodeFull,
}

// BatteryStatus implements StatusSource.
func (s *SysfsSource) BatteryStatus(_ context.Context) (powerinfo.RawStatus, error) {
	capacity, err := readInt(filepath.Join(s.Dir, "capacity"))
	if err != nil {
		return powerinfo.RawStatus{}, pkgerrors.Wrap(err, "failed to read battery capacity")
	}

	raw := powerinfo.RawStatus{
		Level:      int(capacity),
		Scale:      100,
		StatusCode: powerinfo.StatusCodeUnknown,
	}

	if st, err := readTrimmed(filepath.Join(s.Dir, "status")); err == nil {
		if code, ok := sysfsStatusCodes[strings.ToLower(st)]; ok {
			raw.StatusCode = code
		}
	} else {
		logrus.WithError(err).Trace("battery status attribute unavailable")
	}

	// voltage_now is in µV.
	if v, err := readInt(filepath.Join(s.Dir, "voltage_now")); err == nil {
		raw.VoltageMilliV = int(v / 1000)
	}
	if v, err := readInt(filepath.Join(s.Dir, "temp")); err == nil {
		raw.TemperatureTenthsC = int(v)
	}

	return raw, nil
}

// SysfsCurrent reads current_now of a power supply.
type SysfsCurrent struct {
	Path string
}

// NewSysfsCurrent returns a SysfsCurrent reading current_now in dir.
func NewSysfsCurrent(dir string) *SysfsCurrent {
	return &SysfsCurrent{Path: filepath.Join(dir, "current_now")}
}

// CurrentNow implements CurrentSource.
func (c *SysfsCurrent) CurrentNow(_ context.Context) (int64, bool) {
	v, err := readInt(c.Path)
	if err != nil {
		logrus.WithError(err).Trace("current_now unsupported")
		return 0, false
	}
	return v, true
}

// DumpsysSource parses the output of `dumpsys battery`.
type DumpsysSource struct {
	runner shell.Runner
}

// NewDumpsysSource returns a DumpsysSource spawning through runner.
func NewDumpsysSource(runner shell.Runner) *DumpsysSource {
	return &DumpsysSource{runner: runner}
}

// BatteryStatus implements StatusSource.
func (s *DumpsysSource) BatteryStatus(ctx context.Context) (powerinfo.RawStatus, error) {
	res, err := s.runner.Run(ctx, shell.Command{Name: "dumpsys", Args: []string{"battery"}})
	if err != nil {
		return powerinfo.RawStatus{}, pkgerrors.Wrap(err, "failed to run dumpsys battery")
	}
	if res.ExitCode != 0 {
		return powerinfo.RawStatus{}, pkgerrors.Errorf("dumpsys battery exited with %d", res.ExitCode)
	}
	return parseDumpsys(res.Stdout)
}

func parseDumpsys(out string) (powerinfo.RawStatus, error) {
	fields := map[string]int{}
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		key, value, ok := strings.Cut(sc.Text(), ":")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			continue
		}
		fields[strings.TrimSpace(key)] = n
	}
	if err := sc.Err(); err != nil {
		return powerinfo.RawStatus{}, pkgerrors.Wrap(err, "failed to scan dumpsys output")
	}

	level, ok := fields["level"]
	if !ok {
		return powerinfo.RawStatus{}, pkgerrors.New("dumpsys output has no battery level")
	}

	raw := powerinfo.RawStatus{
		Level:              level,
		Scale:              -1,
		StatusCode:         -1,
		VoltageMilliV:      fields["voltage"],
		TemperatureTenthsC: fields["temperature"],
	}
	if v, ok := fields["scale"]; ok {
		raw.Scale = v
	}
	if v, ok := fields["status"]; ok {
		raw.StatusCode = v
	}
	return raw, nil
}

func readTrimmed(p string) (string, error) {
	b, err := os.ReadFile(p)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func readInt(p string) (int64, error) {
	s, err := readTrimmed(p)
	if err != nil {
		return 0, err
	}
	if s == "" {
		return 0, pkgerrors.Errorf("%s is empty", p)
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, pkgerrors.Wrapf(err, "failed to parse %s", p)
	}
	return v, nil
}
