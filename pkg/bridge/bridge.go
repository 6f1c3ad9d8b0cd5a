// Package bridge is the query and command surface handed to consumers of
// the telemetry. Queries never wait for a privilege probe.
package bridge

import (
	"context"
	"fmt"

	"github.com/charlie0129/droidbatt/pkg/deviceinfo"
	"github.com/charlie0129/droidbatt/pkg/powerinfo"
	"github.com/charlie0129/droidbatt/pkg/privilege"
	"github.com/charlie0129/droidbatt/pkg/theme"
)

// Snapshotter composes battery snapshots.
type Snapshotter interface {
	Snapshot(ctx context.Context) (powerinfo.Snapshot, error)
}

// ThemeObserver reports the current theme.
type ThemeObserver interface {
	Current(ctx context.Context) theme.Theme
}

// Prober holds the root status and accepts elevation requests.
type Prober interface {
	Status() privilege.Status
	RequestElevation() *privilege.Task
}

// IdentityProvider gives the static device identity.
type IdentityProvider interface {
	Identity(ctx context.Context) deviceinfo.Identity
}

// Bridge wires the telemetry components together.
type Bridge struct {
	battery  Snapshotter
	theme    ThemeObserver
	prober   Prober
	identity IdentityProvider
}

// New returns a Bridge.
func New(battery Snapshotter, theme ThemeObserver, prober Prober, identity IdentityProvider) *Bridge {
	return &Bridge{
		battery:  battery,
		theme:    theme,
		prober:   prober,
		identity: identity,
	}
}

// Theme returns "dark" or "light".
func (b *Bridge) Theme(ctx context.Context) string {
	return string(b.theme.Current(ctx))
}

// BatterySnapshot returns a fresh battery snapshot.
func (b *Bridge) BatterySnapshot(ctx context.Context) (powerinfo.Snapshot, error) {
	return b.battery.Snapshot(ctx)
}

// DebugInfo returns a fixed four-line description of the device.
func (b *Bridge) DebugInfo(ctx context.Context) string {
	id := b.identity.Identity(ctx)

	root := "NO"
	if b.prober.Status().Usable() {
		root = "YES"
	}

	return fmt.Sprintf("Device: %s %s\nAndroid: %s (SDK %s)\nRoot Access: %s\nCurrent Theme: %s\n",
		id.Manufacturer, id.Model,
		id.Release, id.SDK,
		root,
		b.Theme(ctx),
	)
}

// RootStatus returns the latest root status. It never blocks.
func (b *Bridge) RootStatus() privilege.Status {
	return b.prober.Status()
}

// RequestElevation queues an elevation probe and returns immediately.
func (b *Bridge) RequestElevation() *privilege.Task {
	return b.prober.RequestElevation()
}
