package battery

import (
	"context"
	"math"

	"github.com/distatus/battery"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/droidbatt/pkg/powerinfo"
)

// DistatusSource queries the first battery through the platform APIs
// wrapped by github.com/distatus/battery. It suits laptops, where the
// Android battery service does not exist. Level and scale are the current
// and full energy in mWh; temperature is not reported.
type DistatusSource struct {
	// Index selects the battery. All supported devices have one.
	Index int
}

// BatteryStatus implements StatusSource.
func (s *DistatusSource) BatteryStatus(_ context.Context) (powerinfo.RawStatus, error) {
	bat, err := battery.Get(s.Index)
	if bat == nil {
		if err == nil {
			err = pkgerrors.New("no battery found")
		}
		return powerinfo.RawStatus{}, pkgerrors.Wrapf(err, "failed to get battery %d", s.Index)
	}
	if err != nil {
		// Partial errors still carry the fields that could be read.
		logrus.WithError(err).Debug("battery info is incomplete")
	}

	return distatusToRaw(bat), nil
}

func distatusToRaw(bat *battery.Battery) powerinfo.RawStatus {
	code := powerinfo.StatusCodeUnknown
	switch bat.State {
	case battery.Charging:
		code = powerinfo.StatusCodeCharging
	case battery.Discharging:
		code = powerinfo.StatusCodeDischarging
	case battery.Full:
		code = powerinfo.StatusCodeFull
	}

	return powerinfo.RawStatus{
		Level:         int(math.Round(bat.Current)),
		Scale:         int(math.Round(bat.Full)),
		StatusCode:    code,
		VoltageMilliV: int(math.Round(bat.Voltage * 1000)),
	}
}
