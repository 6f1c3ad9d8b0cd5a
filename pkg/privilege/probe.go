package privilege

import (
	"context"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/charlie0129/droidbatt/pkg/metrics"
	"github.com/charlie0129/droidbatt/pkg/shell"
)

// DefaultMarkers are paths where su binaries (or their manager apps) are
// commonly installed. Any of them existing counts as root access.
var DefaultMarkers = []string{
	"/system/app/Superuser.apk",
	"/sbin/su",
	"/system/bin/su",
	"/system/xbin/su",
	"/data/local/xbin/su",
	"/data/local/bin/su",
	"/system/sd/xbin/su",
	"/system/bin/failsafe/su",
	"/data/local/su",
	"/su/bin/su",
}

// DefaultSuBinary is the su executable looked up in PATH.
const DefaultSuBinary = "su"

const (
	// identityMarker is printed by `id` when running as root.
	identityMarker = "uid=0"
	queueSize      = 4
)

// Prober detects whether root access is available. All probes run on a
// single worker goroutine, which is the only writer of the Status.
type Prober struct {
	runner   shell.Runner
	suBinary string
	markers  []string
	stat     func(name string) (fs.FileInfo, error)

	state State

	queue     chan *Task
	mu        sync.Mutex
	stopped   bool
	startOnce sync.Once
	stopCh    chan struct{}
	exited    chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewProber returns a Prober that spawns suBinary through runner. Empty
// suBinary and nil markers fall back to the defaults.
func NewProber(runner shell.Runner, suBinary string, markers []string) *Prober {
	if suBinary == "" {
		suBinary = DefaultSuBinary
	}
	if markers == nil {
		markers = DefaultMarkers
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Prober{
		runner:   runner,
		suBinary: suBinary,
		markers:  markers,
		stat:     os.Stat,
		queue:    make(chan *Task, queueSize),
		stopCh:   make(chan struct{}),
		exited:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Status returns the latest probe result without blocking.
func (p *Prober) Status() Status {
	return p.state.Load()
}

// Start launches the worker goroutine. Calling it more than once has no
// further effect.
func (p *Prober) Start() {
	p.startOnce.Do(func() {
		go p.loop()
	})
}

// Stop terminates the worker, killing a running probe. Queued tasks are
// completed with the current status.
func (p *Prober) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.stopCh)
	p.mu.Unlock()

	p.cancel()

	// Make sure loop() runs, so exited is always closed.
	p.Start()
	<-p.exited
}

// Submit queues a probe and returns immediately. If the worker is
// stopped or its queue is full, the returned task is already finished
// with the current status.
func (p *Prober) Submit(kind Kind) *Task {
	t := newTask(kind)

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		t.finish(p.state.Load())
		return t
	}

	select {
	case p.queue <- t:
		logrus.WithField("kind", kind.String()).Debug("privilege probe queued")
	default:
		logrus.WithField("kind", kind.String()).Warn("privilege probe queue is full, dropping request")
		t.finish(p.state.Load())
	}

	return t
}

// Detect queues a detection probe and waits for its result.
func (p *Prober) Detect(ctx context.Context) (Status, error) {
	return p.Submit(KindDetect).Wait(ctx)
}

// RequestElevation queues an elevation probe. The caller may ignore the
// returned task.
func (p *Prober) RequestElevation() *Task {
	return p.Submit(KindElevate)
}

func (p *Prober) loop() {
	defer close(p.exited)

	for {
		select {
		case <-p.stopCh:
			p.drain()
			return
		case t := <-p.queue:
			// select picks at random when both are ready.
			select {
			case <-p.stopCh:
				t.finish(p.state.Load())
				p.drain()
				return
			default:
			}

			granted := p.Evaluate(p.ctx, t.kind)
			if p.ctx.Err() != nil {
				// Stopped mid-probe, the outcome proves nothing.
				t.finish(p.state.Load())
				p.drain()
				return
			}
			p.state.store(granted)
			status := p.state.Load()
			metrics.ProbeRuns.WithLabelValues(t.kind.String(), status.String()).Inc()
			logrus.WithFields(logrus.Fields{
				"kind":   t.kind.String(),
				"status": status.String(),
			}).Info("privilege probe finished")
			t.finish(status)
		}
	}
}

func (p *Prober) drain() {
	for {
		select {
		case t := <-p.queue:
			t.finish(p.state.Load())
		default:
			return
		}
	}
}

// Evaluate runs the probe strategies of kind in order and reports whether
// any of them proved root access. It never fails: errors and timeouts
// count as no proof. It does not touch the stored Status.
func (p *Prober) Evaluate(ctx context.Context, kind Kind) bool {
	if path, ok := p.findMarker(); ok {
		logrus.WithField("path", path).Debug("found su marker")
		metrics.ProbeStrategyHits.WithLabelValues("marker").Inc()
		return true
	}

	if p.shellExitsCleanly(ctx) {
		metrics.ProbeStrategyHits.WithLabelValues("shell_exit").Inc()
		return true
	}

	if kind == KindElevate && p.identityIsRoot(ctx) {
		metrics.ProbeStrategyHits.WithLabelValues("identity").Inc()
		return true
	}

	return false
}

func (p *Prober) findMarker() (string, bool) {
	for _, path := range p.markers {
		if _, err := p.stat(path); err == nil {
			return path, true
		}
	}
	return "", false
}

// shellExitsCleanly spawns an interactive su shell, feeds it a trivial
// command and checks the exit status of the shell.
func (p *Prober) shellExitsCleanly(ctx context.Context) bool {
	res, err := p.runner.Run(ctx, shell.Command{
		Name:  p.suBinary,
		Stdin: "id\nexit\n",
	})
	if err != nil {
		logrus.WithError(err).Debug("failed to spawn su shell")
		return false
	}
	logrus.WithField("exitCode", res.ExitCode).Debug("su shell exited")
	return res.ExitCode == 0
}

// identityIsRoot runs `su -c id` and looks for uid=0 in its output.
func (p *Prober) identityIsRoot(ctx context.Context) bool {
	res, err := p.runner.Run(ctx, shell.Command{
		Name: p.suBinary,
		Args: []string{"-c", "id"},
	})
	if err != nil {
		logrus.WithError(err).Debug("failed to run su -c id")
		return false
	}
	return strings.Contains(res.Stdout, identityMarker)
}
