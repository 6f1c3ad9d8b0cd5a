// Package theme reports whether the system UI is in dark or light mode.
package theme

import (
	"context"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/droidbatt/pkg/deviceinfo"
	"github.com/charlie0129/droidbatt/pkg/shell"
)

// Theme is the UI theme handed to consumers.
type Theme string

const (
	Dark  Theme = "dark"
	Light Theme = "light"
)

// Mode is the night mode reported by the system.
type Mode int

const (
	// ModeUndefined covers auto, custom and anything unrecognized.
	ModeUndefined Mode = iota
	ModeYes
	ModeNo
)

func (m Mode) String() string {
	switch m {
	case ModeYes:
		return "yes"
	case ModeNo:
		return "no"
	default:
		return "undefined"
	}
}

// Source reads the night mode of the system.
type Source interface {
	NightMode(ctx context.Context) (Mode, error)
}

const (
	SourceUIMode = "uimode"
	SourceDark   = "dark"
	SourceLight  = "light"
)

// ReleaseFunc reports the Android release of the device. ok is false when
// it is not known.
type ReleaseFunc func(ctx context.Context) (v deviceinfo.Version, ok bool)

// NewSource returns the Source called name. release may be nil.
func NewSource(name string, runner shell.Runner, release ReleaseFunc) (Source, error) {
	switch name {
	case "", SourceUIMode:
		return NewUIModeSource(runner, release), nil
	case SourceDark:
		return Static(ModeYes), nil
	case SourceLight:
		return Static(ModeNo), nil
	default:
		return nil, pkgerrors.Errorf("unknown theme source %q", name)
	}
}

// Observer derives the Theme from a Source on every call.
type Observer struct {
	source Source
}

// NewObserver returns an Observer reading source.
func NewObserver(source Source) *Observer {
	return &Observer{source: source}
}

// Current returns the current theme. An undetermined mode is dark.
func (o *Observer) Current(ctx context.Context) Theme {
	mode, err := o.source.NightMode(ctx)
	if err != nil {
		logrus.WithError(err).Debug("failed to read night mode, assuming dark")
		return Dark
	}
	return FromMode(mode)
}

// FromMode maps a night mode to a theme.
func FromMode(m Mode) Theme {
	if m == ModeNo {
		return Light
	}
	return Dark
}

// Static always reports the same mode.
type Static Mode

// NightMode implements Source.
func (s Static) NightMode(context.Context) (Mode, error) {
	return Mode(s), nil
}

// MinUIModeRelease is the first release whose UI mode service answers
// `cmd uimode night`.
var MinUIModeRelease = deviceinfo.Version{Major: 10}

// UIModeSource asks the UI mode service through `cmd uimode night`.
type UIModeSource struct {
	runner  shell.Runner
	release ReleaseFunc
}

// NewUIModeSource returns a UIModeSource spawning through runner. On
// releases older than MinUIModeRelease nothing is spawned. A nil release
// always spawns.
func NewUIModeSource(runner shell.Runner, release ReleaseFunc) *UIModeSource {
	return &UIModeSource{runner: runner, release: release}
}

// NightMode implements Source.
func (s *UIModeSource) NightMode(ctx context.Context) (Mode, error) {
	if s.release != nil {
		if v, ok := s.release(ctx); ok && !v.AtLeast(MinUIModeRelease) {
			return ModeUndefined, pkgerrors.Errorf("cmd uimode night is not supported on release %s", v)
		}
	}

	res, err := s.runner.Run(ctx, shell.Command{Name: "cmd", Args: []string{"uimode", "night"}})
	if err != nil {
		return ModeUndefined, pkgerrors.Wrap(err, "failed to run cmd uimode night")
	}
	if res.ExitCode != 0 {
		return ModeUndefined, pkgerrors.Errorf("cmd uimode night exited with %d", res.ExitCode)
	}
	return ParseNightMode(res.Stdout), nil
}

// ParseNightMode parses output of the form "Night mode: yes".
func ParseNightMode(out string) Mode {
	line := strings.TrimSpace(shell.Result{Stdout: out}.FirstLine())
	_, value, ok := strings.Cut(line, ":")
	if !ok {
		return ModeUndefined
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "yes":
		return ModeYes
	case "no":
		return ModeNo
	default:
		return ModeUndefined
	}
}
