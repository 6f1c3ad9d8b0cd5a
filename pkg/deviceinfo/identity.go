// Package deviceinfo describes the device the daemon runs on.
package deviceinfo

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/droidbatt/pkg/shell"
)

// Unknown is reported for any property that could not be read.
const Unknown = "unknown"

// Identity is the static identity of the device.
type Identity struct {
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	Release      string `json:"release"`
	SDK          string `json:"sdk"`
}

const (
	propManufacturer = "ro.product.manufacturer"
	propModel        = "ro.product.model"
	propRelease      = "ro.build.version.release"
	propSDK          = "ro.build.version.sdk"
)

// readTimeout bounds one attempt at reading the identity.
const readTimeout = 10 * time.Second

// HostInfoFunc returns host information when getprop is unavailable.
type HostInfoFunc func(ctx context.Context) (*host.InfoStat, error)

// Provider reads the Identity and caches the first successful read. The
// identity does not change while the device is running.
type Provider struct {
	runner   shell.Runner
	hostInfo HostInfoFunc

	mu       sync.Mutex
	cached   bool
	identity Identity
}

// NewProvider returns a Provider reading system properties through
// runner. Off Android, it falls back to host information from gopsutil.
func NewProvider(runner shell.Runner) *Provider {
	return &Provider{
		runner:   runner,
		hostInfo: host.InfoWithContext,
	}
}

// Identity returns the cached identity, reading it on first use. The read
// is detached from the cancellation of ctx. A read that yields nothing is
// not cached, so the next call tries again.
func (p *Provider) Identity(ctx context.Context) Identity {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cached {
		return p.identity
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), readTimeout)
	defer cancel()

	id, ok := p.read(ctx)
	if !ok {
		logrus.Debug("device identity unavailable, will retry on next use")
		return id
	}

	p.identity, p.cached = id, true
	logrus.WithFields(logrus.Fields{
		"manufacturer": id.Manufacturer,
		"model":        id.Model,
		"release":      id.Release,
		"sdk":          id.SDK,
	}).Debug("device identity")
	return id
}

// read reports false if no property at all could be read.
func (p *Provider) read(ctx context.Context) (Identity, bool) {
	id := Identity{
		Manufacturer: p.getprop(ctx, propManufacturer),
		Model:        p.getprop(ctx, propModel),
		Release:      p.getprop(ctx, propRelease),
		SDK:          p.getprop(ctx, propSDK),
	}
	if id.Manufacturer == "" && id.Model == "" && id.Release == "" {
		id = p.fromHost(ctx)
	}
	ok := id != Identity{}
	return id.withDefaults(), ok
}

func (p *Provider) getprop(ctx context.Context, name string) string {
	if p.runner == nil {
		return ""
	}
	res, err := p.runner.Run(ctx, shell.Command{Name: "getprop", Args: []string{name}})
	if err != nil {
		logrus.WithError(err).WithField("prop", name).Trace("getprop failed")
		return ""
	}
	if res.ExitCode != 0 {
		return ""
	}
	return strings.TrimSpace(res.FirstLine())
}

func (p *Provider) fromHost(ctx context.Context) Identity {
	if p.hostInfo == nil {
		return Identity{}
	}
	info, err := p.hostInfo(ctx)
	if err != nil || info == nil {
		logrus.WithError(err).Debug("failed to read host info")
		return Identity{}
	}
	return Identity{
		Manufacturer: info.Platform,
		Model:        info.KernelArch,
		Release:      info.PlatformVersion,
	}
}

func (id Identity) withDefaults() Identity {
	for _, f := range []*string{&id.Manufacturer, &id.Model, &id.Release, &id.SDK} {
		if *f == "" {
			*f = Unknown
		}
	}
	return id
}
