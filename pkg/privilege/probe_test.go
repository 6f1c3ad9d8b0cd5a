package privilege

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charlie0129/droidbatt/pkg/shell"
)

// fakeSu answers su invocations: the interactive shell with shellExit, and
// `su -c id` with idOutput. spawnErr, if set, fails every spawn.
type fakeSu struct {
	shellExit int
	idOutput  string
	spawnErr  error
	calls     atomic.Int32
}

func (f *fakeSu) runner() shell.Runner {
	return shell.Func(func(_ context.Context, cmd shell.Command) (shell.Result, error) {
		f.calls.Add(1)
		if f.spawnErr != nil {
			return shell.Result{ExitCode: -1}, f.spawnErr
		}
		if len(cmd.Args) == 2 && cmd.Args[0] == "-c" && cmd.Args[1] == "id" {
			return shell.Result{Stdout: f.idOutput}, nil
		}
		return shell.Result{ExitCode: f.shellExit}, nil
	})
}

func statOnly(existing ...string) func(string) (fs.FileInfo, error) {
	return func(name string) (fs.FileInfo, error) {
		for _, e := range existing {
			if e == name {
				return nil, nil
			}
		}
		return nil, os.ErrNotExist
	}
}

func newTestProber(su *fakeSu, existing ...string) *Prober {
	p := NewProber(su.runner(), "", nil)
	p.stat = statOnly(existing...)
	return p
}

func waitTask(t *testing.T, task *Task) Status {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s, err := task.Wait(ctx)
	if err != nil {
		t.Fatalf("task did not finish: %v", err)
	}
	return s
}

func TestProberDetect(t *testing.T) {
	tests := []struct {
		name      string
		su        *fakeSu
		existing  []string
		want      Status
		wantSpawn bool
	}{
		{
			name:      "marker present, no subprocess",
			su:        &fakeSu{shellExit: 1},
			existing:  []string{"/sbin/su"},
			want:      Granted,
			wantSpawn: false,
		},
		{
			name:      "su binary absent",
			su:        &fakeSu{spawnErr: errors.New(`exec: "su": executable file not found in $PATH`)},
			want:      Denied,
			wantSpawn: true,
		},
		{
			name:      "su shell exits cleanly",
			su:        &fakeSu{shellExit: 0},
			want:      Granted,
			wantSpawn: true,
		},
		{
			name:      "su shell refused",
			su:        &fakeSu{shellExit: 1, idOutput: "uid=0(root) gid=0(root)"},
			want:      Denied,
			wantSpawn: true,
		},
		{
			name:      "su times out",
			su:        &fakeSu{spawnErr: shell.ErrTimeout},
			want:      Denied,
			wantSpawn: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProber(tt.su, tt.existing...)
			p.Start()
			defer p.Stop()

			got := waitTask(t, p.Submit(KindDetect))
			if got != tt.want {
				t.Errorf("Detect() = %+v, want %+v", got, tt.want)
			}
			if p.Status() != tt.want {
				t.Errorf("Status() = %+v, want %+v", p.Status(), tt.want)
			}
			if spawned := tt.su.calls.Load() > 0; spawned != tt.wantSpawn {
				t.Errorf("spawned = %t, want %t", spawned, tt.wantSpawn)
			}
		})
	}
}

func TestProberElevateChecksIdentity(t *testing.T) {
	su := &fakeSu{shellExit: 1, idOutput: "uid=0(root) gid=0(root) context=u:r:magisk:s0\n"}
	p := newTestProber(su)
	p.Start()
	defer p.Stop()

	if got := waitTask(t, p.RequestElevation()); got != Granted {
		t.Errorf("RequestElevation() = %+v, want %+v", got, Granted)
	}

	su.idOutput = "uid=10123(u0_a123) gid=10123(u0_a123)\n"
	if got := waitTask(t, p.RequestElevation()); got != Denied {
		t.Errorf("RequestElevation() = %+v, want %+v", got, Denied)
	}
}

func TestProberOverwritesStatus(t *testing.T) {
	su := &fakeSu{shellExit: 0}
	p := newTestProber(su)
	p.Start()
	defer p.Stop()

	if got := waitTask(t, p.Submit(KindDetect)); got != Granted {
		t.Fatalf("first Detect() = %+v, want %+v", got, Granted)
	}

	su.shellExit = 1
	if got := waitTask(t, p.Submit(KindDetect)); got != Denied {
		t.Fatalf("second Detect() = %+v, want %+v", got, Denied)
	}
	if p.Status() != Denied {
		t.Errorf("Status() = %+v, want %+v", p.Status(), Denied)
	}
}

func TestProberUncheckedWhileRunning(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	runner := shell.Func(func(ctx context.Context, _ shell.Command) (shell.Result, error) {
		close(started)
		select {
		case <-release:
			return shell.Result{ExitCode: 0}, nil
		case <-ctx.Done():
			return shell.Result{ExitCode: -1}, ctx.Err()
		}
	})
	p := NewProber(runner, "", []string{})
	p.stat = statOnly()
	p.Start()
	defer p.Stop()

	task := p.Submit(KindDetect)
	<-started

	// Readers must not block and may observe Unchecked meanwhile.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				_ = p.Status()
			}
		}()
	}
	wg.Wait()

	if got := p.Status(); got != Unchecked {
		t.Errorf("Status() during probe = %+v, want %+v", got, Unchecked)
	}
	if _, done := task.Status(); done {
		t.Errorf("task finished before the probe was released")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := task.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Wait() error = %v, want %v", err, context.DeadlineExceeded)
	}

	close(release)
	if got := waitTask(t, task); got != Granted {
		t.Errorf("Detect() = %+v, want %+v", got, Granted)
	}
}

func TestProberQueuedBeforeStart(t *testing.T) {
	p := newTestProber(&fakeSu{shellExit: 0})

	task := p.RequestElevation()
	if got := p.Status(); got != Unchecked {
		t.Fatalf("Status() before start = %+v, want %+v", got, Unchecked)
	}

	p.Start()
	defer p.Stop()

	if got := waitTask(t, task); got != Granted {
		t.Errorf("RequestElevation() = %+v, want %+v", got, Granted)
	}
}

func TestProberStop(t *testing.T) {
	p := newTestProber(&fakeSu{shellExit: 0})

	queued := p.Submit(KindDetect)
	p.Stop()

	if got := waitTask(t, queued); got.Checked && !got.Granted {
		t.Errorf("queued task finished with %+v", got)
	}

	after := p.Submit(KindDetect)
	if _, done := after.Status(); !done {
		t.Errorf("task submitted after Stop() should be finished immediately")
	}

	// Stop is idempotent.
	p.Stop()
}

func TestProberStopKeepsStatus(t *testing.T) {
	started := make(chan struct{})
	var calls atomic.Int32
	runner := shell.Func(func(ctx context.Context, _ shell.Command) (shell.Result, error) {
		if calls.Add(1) == 1 {
			return shell.Result{ExitCode: 0}, nil
		}
		close(started)
		<-ctx.Done()
		return shell.Result{ExitCode: -1}, ctx.Err()
	})
	p := NewProber(runner, "", []string{})
	p.stat = statOnly()
	p.Start()

	if got := waitTask(t, p.Submit(KindDetect)); got != Granted {
		t.Fatalf("Detect() = %+v, want %+v", got, Granted)
	}

	running := p.Submit(KindDetect)
	<-started
	p.Stop()

	if got := waitTask(t, running); got != Granted {
		t.Errorf("interrupted task finished with %+v, want %+v", got, Granted)
	}
	if got := p.Status(); got != Granted {
		t.Errorf("Status() after Stop() = %+v, want %+v", got, Granted)
	}
}

func TestProberQueueFull(t *testing.T) {
	p := newTestProber(&fakeSu{shellExit: 0})
	defer p.Stop()

	var tasks []*Task
	for i := 0; i < queueSize+1; i++ {
		tasks = append(tasks, p.Submit(KindDetect))
	}

	last := tasks[len(tasks)-1]
	got, done := last.Status()
	if !done {
		t.Fatalf("task beyond the queue capacity should be finished immediately")
	}
	if got != Unchecked {
		t.Errorf("dropped task status = %+v, want %+v", got, Unchecked)
	}
}

func TestStatusString(t *testing.T) {
	tests := []struct {
		s    Status
		want string
	}{
		{Unchecked, "unchecked"},
		{Denied, "denied"},
		{Granted, "granted"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("%+v.String() = %q, want %q", tt.s, got, tt.want)
		}
		if got, want := tt.s.Usable(), tt.s == Granted; got != want {
			t.Errorf("%+v.Usable() = %t, want %t", tt.s, got, want)
		}
	}
}
