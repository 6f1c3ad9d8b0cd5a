package config

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/charlie0129/droidbatt/pkg/battery"
	"github.com/charlie0129/droidbatt/pkg/privilege"
	"github.com/charlie0129/droidbatt/pkg/theme"
	"github.com/charlie0129/droidbatt/pkg/utils/ptr"
)

var (
	defaultFileConfig = &RawFileConfig{
		SuBinary:              ptr.To(privilege.DefaultSuBinary),
		CommandTimeoutSeconds: ptr.To(5),
		RootMarkers:           privilege.DefaultMarkers,
		BatterySource:         ptr.To(battery.SourceSysfs),
		ThemeSource:           ptr.To(theme.SourceUIMode),
		AllowNonRootAccess:    ptr.To(false),
	}
)

var _ Config = &File{}

type File struct {
	c        *RawFileConfig
	mu       *sync.RWMutex
	filepath string
}

func NewFile(configPath string) (*File, error) {
	f := &File{
		filepath: configPath,
		mu:       &sync.RWMutex{},
	}
	err := f.Load()
	if err != nil {
		return nil, err
	}

	return f, nil
}

func NewFileFromConfig(c *RawFileConfig, configPath string) *File {
	if c == nil {
		c = &RawFileConfig{}
	}

	f := &File{
		c:        c,
		mu:       &sync.RWMutex{},
		filepath: configPath,
	}

	return f
}

type RawFileConfig struct {
	SuBinary              *string  `json:"suBinary,omitempty" yaml:"suBinary,omitempty"`
	CommandTimeoutSeconds *int     `json:"commandTimeoutSeconds,omitempty" yaml:"commandTimeoutSeconds,omitempty"`
	RootMarkers           []string `json:"rootMarkers,omitempty" yaml:"rootMarkers,omitempty"`
	BatterySource         *string  `json:"batterySource,omitempty" yaml:"batterySource,omitempty"`
	ThemeSource           *string  `json:"themeSource,omitempty" yaml:"themeSource,omitempty"`
	AllowNonRootAccess    *bool    `json:"allowNonRootAccess,omitempty" yaml:"allowNonRootAccess,omitempty"`
}

// NewRawFileConfigFromConfig resolves every value of c, defaults included.
func NewRawFileConfigFromConfig(c Config) (*RawFileConfig, error) {
	if c == nil {
		return nil, pkgerrors.New("config is nil")
	}

	rawConfig := &RawFileConfig{
		SuBinary:              ptr.To(c.SuBinary()),
		CommandTimeoutSeconds: ptr.To(int(c.CommandTimeout() / time.Second)),
		RootMarkers:           c.RootMarkers(),
		BatterySource:         ptr.To(c.BatterySource()),
		ThemeSource:           ptr.To(c.ThemeSource()),
		AllowNonRootAccess:    ptr.To(c.AllowNonRootAccess()),
	}

	return rawConfig, nil
}

func (f *File) SuBinary() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.c.SuBinary != nil && *f.c.SuBinary != "" {
		return *f.c.SuBinary
	}
	return *defaultFileConfig.SuBinary
}

func (f *File) CommandTimeout() time.Duration {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	seconds := *defaultFileConfig.CommandTimeoutSeconds
	if f.c.CommandTimeoutSeconds != nil && *f.c.CommandTimeoutSeconds > 0 {
		seconds = *f.c.CommandTimeoutSeconds
	}

	return time.Duration(seconds) * time.Second
}

// RootMarkers returns a copy of the marker paths.
func (f *File) RootMarkers() []string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	markers := defaultFileConfig.RootMarkers
	if f.c.RootMarkers != nil {
		markers = f.c.RootMarkers
	}

	out := make([]string, len(markers))
	copy(out, markers)
	return out
}

func (f *File) BatterySource() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.BatterySource, *defaultFileConfig.BatterySource)
}

func (f *File) ThemeSource() string {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.ThemeSource, *defaultFileConfig.ThemeSource)
}

func (f *File) AllowNonRootAccess() bool {
	if f.c == nil {
		panic("config is nil")
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	return ptr.Deref(f.c.AllowNonRootAccess, *defaultFileConfig.AllowNonRootAccess)
}

func (f *File) isYAML() bool {
	switch strings.ToLower(filepath.Ext(f.filepath)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func (f *File) Load() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	fp, err := os.Open(f.filepath)
	if err != nil {
		if os.IsNotExist(err) {
			// If the file does not exist, return the empty config.
			// Do not make f.c a nil.
			f.c = &RawFileConfig{}
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to open file %s", f.filepath)
	}
	defer func(fp *os.File) {
		err := fp.Close()
		if err != nil {
			logrus.Warnf("failed to close file %s", f.filepath)
		}
	}(fp)

	// Since we want to tell if the file is empty, using a decoder will
	// not work.
	b, err := io.ReadAll(fp)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to read file %s", f.filepath)
	}

	if strings.TrimSpace(string(b)) == "" {
		f.c = &RawFileConfig{}
		return nil
	}

	conf := RawFileConfig{}
	if f.isYAML() {
		err = yaml.Unmarshal(b, &conf)
	} else {
		err = json.Unmarshal(b, &conf)
	}
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to unmarshal config from file %s", f.filepath)
	}
	f.c = &conf

	return nil
}

func (f *File) LogrusFields() logrus.Fields {
	if f.c == nil {
		panic("config is nil")
	}

	return logrus.Fields{
		"suBinary":           f.SuBinary(),
		"commandTimeout":     f.CommandTimeout().String(),
		"rootMarkers":        len(f.RootMarkers()),
		"batterySource":      f.BatterySource(),
		"themeSource":        f.ThemeSource(),
		"allowNonRootAccess": f.AllowNonRootAccess(),
	}
}
