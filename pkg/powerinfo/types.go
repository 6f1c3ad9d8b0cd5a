package powerinfo

import (
	"encoding/json"
	"fmt"
)

// ChargeState represents the charging state of the battery.
type ChargeState int

const (
	// Unknown is reported for any status the platform does not classify.
	Unknown ChargeState = iota
	// Charging indicates the battery is charging.
	Charging
	// Discharging indicates the battery is discharging.
	Discharging
	// NotCharging indicates power is connected but the battery is not charging.
	NotCharging
	// Full indicates the battery is full.
	Full
)

// Raw status codes, as reported by the Android battery service.
const (
	StatusCodeUnknown     = 1
	StatusCodeCharging    = 2
	StatusCodeDischarging = 3
	StatusCodeNotCharging = 4
	StatusCodeFull        = 5
)

var statusCodes = map[int]ChargeState{
	StatusCodeUnknown:     Unknown,
	StatusCodeCharging:    Charging,
	StatusCodeDischarging: Discharging,
	StatusCodeNotCharging: NotCharging,
	StatusCodeFull:        Full,
}

// ChargeStateFromCode maps a raw status code. Unrecognized codes map to
// Unknown.
func ChargeStateFromCode(code int) ChargeState {
	if s, ok := statusCodes[code]; ok {
		return s
	}
	return Unknown
}

var chargeStateNames = map[ChargeState]string{
	Unknown:     "Unknown",
	Charging:    "Charging",
	Discharging: "Discharging",
	NotCharging: "Not charging",
	Full:        "Full",
}

func (s ChargeState) String() string {
	if name, ok := chargeStateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// MarshalJSON encodes the state as its display name.
func (s ChargeState) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the display names produced by MarshalJSON.
func (s *ChargeState) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return fmt.Errorf("charge state must be a string: %w", err)
	}
	for state, n := range chargeStateNames {
		if n == name {
			*s = state
			return nil
		}
	}
	*s = Unknown
	return nil
}

// RawStatus is a point-in-time read of the standard battery status.
// Units:
// - VoltageMilliV: mV
// - TemperatureTenthsC: tenths of °C
type RawStatus struct {
	Level              int
	Scale              int
	StatusCode         int
	VoltageMilliV      int
	TemperatureTenthsC int
}

// CapacityPercent returns round(level*100/scale) clamped to [0, 100], or
// 0 when the scale is non-positive or the level negative.
func (r RawStatus) CapacityPercent() int {
	if r.Scale <= 0 || r.Level < 0 {
		return 0
	}
	// Integer rounding, half away from zero.
	p := (r.Level*200 + r.Scale) / (2 * r.Scale)
	if p > 100 {
		return 100
	}
	return p
}

// Snapshot is one immutable battery telemetry record.
// Units:
// - VoltageMilliV: mV
// - TemperatureTenthsC: tenths of °C
// - CurrentNowMicroA: µA (sign is platform-defined)
// - ChargerVoltageMicroV: µV, 0 when unavailable
// - PowerNowMicroW: µW, 0 when unavailable
type Snapshot struct {
	CapacityPercent      int         `json:"capacity"`
	ChargeState          ChargeState `json:"status"`
	VoltageMilliV        int         `json:"voltage"`
	TemperatureTenthsC   int         `json:"temp"`
	CurrentNowMicroA     int64       `json:"current_now"`
	ChargerVoltageMicroV int64       `json:"charger_voltage"`
	PowerNowMicroW       int64       `json:"power_now"`
}

// EstimatedPowerWatts returns |V·I| from the battery voltage and current.
func (s Snapshot) EstimatedPowerWatts() float64 {
	w := float64(s.VoltageMilliV) / 1e3 * float64(s.CurrentNowMicroA) / 1e6
	if w < 0 {
		return -w
	}
	return w
}

// TemperatureCelsius returns the battery temperature in °C.
func (s Snapshot) TemperatureCelsius() float64 {
	return float64(s.TemperatureTenthsC) / 10
}
