package battery

import (
	"context"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/droidbatt/pkg/metrics"
	"github.com/charlie0129/droidbatt/pkg/powerinfo"
	"github.com/charlie0129/droidbatt/pkg/sysfs"
)

// StatusSource is the standard, unprivileged battery status query.
type StatusSource interface {
	BatteryStatus(ctx context.Context) (powerinfo.RawStatus, error)
}

// CurrentSource gives the instantaneous battery current in µA. ok is
// false when the platform does not support the property.
type CurrentSource interface {
	CurrentNow(ctx context.Context) (microA int64, ok bool)
}

// PrivilegedReader reads root-only sysfs nodes.
type PrivilegedReader interface {
	Read(ctx context.Context, n sysfs.Node) sysfs.Result
}

// Aggregator merges the standard battery status with privileged reads
// into one Snapshot.
type Aggregator struct {
	status  StatusSource
	current CurrentSource
	reader  PrivilegedReader
	root    sysfs.StatusLoader
}

// NewAggregator returns an Aggregator. current may be nil, in which case
// the current is always reported as 0.
func NewAggregator(status StatusSource, current CurrentSource, reader PrivilegedReader, root sysfs.StatusLoader) *Aggregator {
	return &Aggregator{
		status:  status,
		current: current,
		reader:  reader,
		root:    root,
	}
}

// Snapshot composes a fresh Snapshot. Privileged fields fall back to 0
// whenever they cannot be read; only a failure of the status query
// itself (or a bug) is returned as an error.
func (a *Aggregator) Snapshot(ctx context.Context) (snap powerinfo.Snapshot, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			snap = powerinfo.Snapshot{}
			err = pkgerrors.Errorf("panic while composing battery snapshot: %v", r)
		}

		metrics.SnapshotLatency.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.Snapshots.WithLabelValues("error").Inc()
			logrus.WithError(err).Error("failed to compose battery snapshot")
			return
		}
		metrics.Snapshots.WithLabelValues("ok").Inc()
	}()

	raw, err := a.status.BatteryStatus(ctx)
	if err != nil {
		return powerinfo.Snapshot{}, pkgerrors.Wrap(err, "failed to query battery status")
	}

	snap = powerinfo.Snapshot{
		CapacityPercent:    raw.CapacityPercent(),
		ChargeState:        powerinfo.ChargeStateFromCode(raw.StatusCode),
		VoltageMilliV:      raw.VoltageMilliV,
		TemperatureTenthsC: raw.TemperatureTenthsC,
	}

	if a.current != nil {
		if v, ok := a.current.CurrentNow(ctx); ok {
			snap.CurrentNowMicroA = v
		}
	}

	// Decide once per snapshot, so both privileged fields agree.
	if a.root.Load().Usable() {
		snap.ChargerVoltageMicroV, snap.PowerNowMicroW = a.readPrivileged(ctx)
	}

	logrus.WithFields(logrus.Fields{
		"capacity":       snap.CapacityPercent,
		"status":         snap.ChargeState.String(),
		"voltage":        snap.VoltageMilliV,
		"temp":           snap.TemperatureTenthsC,
		"currentNow":     snap.CurrentNowMicroA,
		"chargerVoltage": snap.ChargerVoltageMicroV,
		"powerNow":       snap.PowerNowMicroW,
	}).Trace("battery snapshot")

	return snap, nil
}

func (a *Aggregator) readPrivileged(ctx context.Context) (chargerVoltage, powerNow int64) {
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		chargerVoltage = a.readNode(ctx, sysfs.ChargerVoltage)
	}()
	go func() {
		defer wg.Done()
		powerNow = a.readNode(ctx, sysfs.BatteryPower)
	}()
	wg.Wait()
	return chargerVoltage, powerNow
}

func (a *Aggregator) readNode(ctx context.Context, n sysfs.Node) (v int64) {
	defer func() {
		if r := recover(); r != nil {
			logrus.WithField("node", n.String()).Errorf("privileged read panicked: %v", r)
			v = 0
		}
	}()
	return a.reader.Read(ctx, n).ValueOrZero()
}
