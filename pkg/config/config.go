package config

import (
	"time"
)

type Config interface {
	SuBinary() string
	CommandTimeout() time.Duration
	RootMarkers() []string
	BatterySource() string
	ThemeSource() string
	AllowNonRootAccess() bool

	// Load reads the configuration from the source.
	Load() error
}
