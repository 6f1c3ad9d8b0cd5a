package deviceinfo

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/shirou/gopsutil/v3/host"

	"github.com/charlie0129/droidbatt/pkg/shell"
)

func getpropRunner(props map[string]string, calls *atomic.Int32) shell.Runner {
	return shell.Func(func(_ context.Context, cmd shell.Command) (shell.Result, error) {
		calls.Add(1)
		if cmd.Name != "getprop" || len(cmd.Args) != 1 {
			return shell.Result{ExitCode: 1}, nil
		}
		return shell.Result{Stdout: props[cmd.Args[0]] + "\n"}, nil
	})
}

func TestProviderIdentity(t *testing.T) {
	var calls atomic.Int32
	p := NewProvider(getpropRunner(map[string]string{
		propManufacturer: "Google",
		propModel:        "Pixel 7",
		propRelease:      "14",
		propSDK:          "34",
	}, &calls))
	p.hostInfo = func(context.Context) (*host.InfoStat, error) {
		t.Fatal("host info must not be consulted when getprop works")
		return nil, nil
	}

	want := Identity{Manufacturer: "Google", Model: "Pixel 7", Release: "14", SDK: "34"}
	if got := p.Identity(context.Background()); got != want {
		t.Errorf("Identity() = %+v, want %+v", got, want)
	}

	// Cached after the first call.
	_ = p.Identity(context.Background())
	if n := calls.Load(); n != 4 {
		t.Errorf("getprop ran %d times, want 4", n)
	}
}

func TestProviderFallsBackToHost(t *testing.T) {
	runner := shell.Func(func(context.Context, shell.Command) (shell.Result, error) {
		return shell.Result{ExitCode: -1}, errors.New(`exec: "getprop": executable file not found in $PATH`)
	})
	p := NewProvider(runner)
	p.hostInfo = func(context.Context) (*host.InfoStat, error) {
		return &host.InfoStat{Platform: "debian", PlatformVersion: "12.5", KernelArch: "aarch64"}, nil
	}

	want := Identity{Manufacturer: "debian", Model: "aarch64", Release: "12.5", SDK: Unknown}
	if got := p.Identity(context.Background()); got != want {
		t.Errorf("Identity() = %+v, want %+v", got, want)
	}
}

func TestProviderAllUnknown(t *testing.T) {
	p := NewProvider(nil)
	p.hostInfo = func(context.Context) (*host.InfoStat, error) {
		return nil, errors.New("not supported")
	}

	want := Identity{Manufacturer: Unknown, Model: Unknown, Release: Unknown, SDK: Unknown}
	if got := p.Identity(context.Background()); got != want {
		t.Errorf("Identity() = %+v, want %+v", got, want)
	}
}

func TestProviderIgnoresCanceledRequest(t *testing.T) {
	runner := shell.Func(func(ctx context.Context, cmd shell.Command) (shell.Result, error) {
		if err := ctx.Err(); err != nil {
			return shell.Result{ExitCode: -1}, err
		}
		props := map[string]string{propManufacturer: "Google", propModel: "Pixel 7", propRelease: "14", propSDK: "34"}
		return shell.Result{Stdout: props[cmd.Args[0]] + "\n"}, nil
	})
	p := NewProvider(runner)
	p.hostInfo = nil

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	want := Identity{Manufacturer: "Google", Model: "Pixel 7", Release: "14", SDK: "34"}
	if got := p.Identity(ctx); got != want {
		t.Errorf("Identity() with canceled context = %+v, want %+v", got, want)
	}
	if got := p.Identity(context.Background()); got != want {
		t.Errorf("second Identity() = %+v, want %+v", got, want)
	}
}

func TestProviderRetriesFailedRead(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	var calls atomic.Int32
	ok := getpropRunner(map[string]string{propManufacturer: "Xiaomi", propModel: "2201117TG", propRelease: "13", propSDK: "33"}, &calls)
	runner := shell.Func(func(ctx context.Context, cmd shell.Command) (shell.Result, error) {
		if failing.Load() {
			return shell.Result{ExitCode: -1}, shell.ErrTimeout
		}
		return ok.Run(ctx, cmd)
	})
	p := NewProvider(runner)
	p.hostInfo = nil

	unknown := Identity{Manufacturer: Unknown, Model: Unknown, Release: Unknown, SDK: Unknown}
	if got := p.Identity(context.Background()); got != unknown {
		t.Errorf("Identity() while getprop fails = %+v, want %+v", got, unknown)
	}

	failing.Store(false)
	want := Identity{Manufacturer: "Xiaomi", Model: "2201117TG", Release: "13", SDK: "33"}
	if got := p.Identity(context.Background()); got != want {
		t.Errorf("Identity() after recovery = %+v, want %+v", got, want)
	}

	// Cached from now on.
	failing.Store(true)
	if got := p.Identity(context.Background()); got != want {
		t.Errorf("cached Identity() = %+v, want %+v", got, want)
	}
	if n := calls.Load(); n != 4 {
		t.Errorf("getprop succeeded %d times, want 4", n)
	}
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in      string
		want    Version
		wantErr bool
	}{
		{"14", Version{Major: 14}, false},
		{"8.1", Version{Major: 8, Minor: 1}, false},
		{"13.0.1", Version{Major: 13, Patch: 1}, false},
		{" 12 ", Version{Major: 12}, false},
		{"", Version{}, true},
		{"UpsideDownCake", Version{}, true},
		{"1.2.3.4", Version{}, true},
		{"1.-2", Version{}, true},
	}
	for _, tt := range tests {
		got, err := ParseVersion(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseVersion(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseVersion(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestVersionCompare(t *testing.T) {
	tests := []struct {
		a, b Version
		want int
	}{
		{Version{14, 0, 0}, Version{14, 0, 0}, 0},
		{Version{13, 0, 1}, Version{14, 0, 0}, -1},
		{Version{14, 1, 0}, Version{14, 0, 9}, 1},
		{Version{8, 1, 0}, Version{8, 1, 1}, -1},
	}
	for _, tt := range tests {
		if got := tt.a.Compare(tt.b); got != tt.want {
			t.Errorf("%v.Compare(%v) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
		if got := tt.a.AtLeast(tt.b); got != (tt.want >= 0) {
			t.Errorf("%v.AtLeast(%v) = %v", tt.a, tt.b, got)
		}
	}
}

func TestReleaseVersion(t *testing.T) {
	tests := []struct {
		name   string
		id     Identity
		want   Version
		wantOk bool
	}{
		{"android", Identity{Release: "14", SDK: "34"}, Version{Major: 14}, true},
		{"android minor", Identity{Release: "8.1.0", SDK: "27"}, Version{Major: 8, Minor: 1}, true},
		{"codename", Identity{Release: "VanillaIceCream", SDK: "35"}, Version{}, false},
		{"host distribution", Identity{Release: "12.5", SDK: Unknown}, Version{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.id.ReleaseVersion()
			if ok != tt.wantOk || got != tt.want {
				t.Errorf("ReleaseVersion() = %v, %t, want %v, %t", got, ok, tt.want, tt.wantOk)
			}
		})
	}
}

func TestSELinux(t *testing.T) {
	tests := []struct {
		name string
		res  shell.Result
		err  error
		want SELinuxMode
	}{
		{"enforcing", shell.Result{Stdout: "Enforcing\n"}, nil, SELinuxEnforcing},
		{"permissive", shell.Result{Stdout: "Permissive\n"}, nil, SELinuxPermissive},
		{"disabled", shell.Result{Stdout: "Disabled\n"}, nil, SELinuxDisabled},
		{"garbage", shell.Result{Stdout: "???\n"}, nil, SELinuxUnknown},
		{"non-zero exit", shell.Result{ExitCode: 1}, nil, SELinuxUnknown},
		{"timeout", shell.Result{ExitCode: -1}, shell.ErrTimeout, SELinuxUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			runner := shell.Func(func(context.Context, shell.Command) (shell.Result, error) {
				return tt.res, tt.err
			})
			if got := SELinux(context.Background(), runner); got != tt.want {
				t.Errorf("SELinux() = %s, want %s", got, tt.want)
			}
		})
	}
}
