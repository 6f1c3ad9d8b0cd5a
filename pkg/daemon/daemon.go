package daemon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	pkgerrors "github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/droidbatt/pkg/battery"
	"github.com/charlie0129/droidbatt/pkg/bridge"
	"github.com/charlie0129/droidbatt/pkg/config"
	"github.com/charlie0129/droidbatt/pkg/deviceinfo"
	"github.com/charlie0129/droidbatt/pkg/powerinfo"
	"github.com/charlie0129/droidbatt/pkg/privilege"
	"github.com/charlie0129/droidbatt/pkg/shell"
	"github.com/charlie0129/droidbatt/pkg/sysfs"
	"github.com/charlie0129/droidbatt/pkg/theme"
)

// Telemetry is the query and command surface served over HTTP.
type Telemetry interface {
	Theme(ctx context.Context) string
	BatterySnapshot(ctx context.Context) (powerinfo.Snapshot, error)
	DebugInfo(ctx context.Context) string
	RootStatus() privilege.Status
	RequestElevation() *privilege.Task
}

var _ Telemetry = &bridge.Bridge{}

// Server holds what the HTTP handlers need.
type Server struct {
	telemetry Telemetry
	conf      config.Config
	runner    shell.Runner
}

// NewServer returns a Server. runner is used for queries outside the
// telemetry surface, such as the SELinux mode.
func NewServer(telemetry Telemetry, conf config.Config, runner shell.Runner) *Server {
	return &Server{
		telemetry: telemetry,
		conf:      conf,
		runner:    runner,
	}
}

func (s *Server) setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/theme", s.getTheme)
	router.GET("/battery", s.getBattery)
	router.GET("/debug-info", s.getDebugInfo)
	router.GET("/root-status", s.getRootStatus)
	router.POST("/root/elevate", s.requestElevation)
	router.GET("/selinux", s.getSELinux)
	router.GET("/selinux/report", s.getSELinuxReport)
	router.GET("/config", s.getConfig)
	router.GET("/version", getVersion)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// components builds the telemetry stack from conf.
type components struct {
	runner *shell.Exec
	prober *privilege.Prober
	bridge *bridge.Bridge
}

func buildComponents(conf config.Config) (*components, error) {
	runner := shell.NewExec(conf.CommandTimeout())

	prober := privilege.NewProber(runner, conf.SuBinary(), conf.RootMarkers())
	root := sysfs.StatusFunc(prober.Status)

	status, err := battery.NewStatusSource(conf.BatterySource(), runner)
	if err != nil {
		return nil, err
	}
	var current battery.CurrentSource
	if conf.BatterySource() != battery.SourceDistatus {
		current = battery.NewSysfsCurrent(battery.DefaultSupplyDir)
	}
	aggregator := battery.NewAggregator(status, current, sysfs.NewReader(root, runner, conf.SuBinary()), root)

	identity := deviceinfo.NewProvider(runner)
	themeSource, err := theme.NewSource(conf.ThemeSource(), runner, identity.ReleaseVersion)
	if err != nil {
		return nil, err
	}

	return &components{
		runner: runner,
		prober: prober,
		bridge: bridge.New(aggregator, theme.NewObserver(themeSource), prober, identity),
	}, nil
}

func Run(configPath string, unixSocketPath string, allowNonRoot bool) error {
	conf, err := config.NewFile(configPath)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to parse config during startup")
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config loaded")

	comp, err := buildComponents(conf)
	if err != nil {
		return pkgerrors.Wrap(err, "invalid config")
	}

	srv := &http.Server{
		Handler:           NewServer(comp.bridge, conf, comp.runner).setupRoutes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	if err := removeStaleSocket(unixSocketPath); err != nil {
		return err
	}

	// Create the socket to listen on:
	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to listen on %s", unixSocketPath)
	}

	err = applySocketPermissions(unixSocketPath, conf.AllowNonRootAccess() || allowNonRoot)
	if err != nil {
		_ = l.Close()
		return err
	}

	// Probe for root in the background, queries answer meanwhile.
	comp.prober.Start()
	comp.prober.Submit(privilege.KindDetect)

	// Receive SIGHUP to reload config
	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGHUP)
		for range sigc {
			if err := reloadConfig(conf, unixSocketPath, allowNonRoot); err != nil {
				logrus.Errorf("failed to reload config: %v", err)
			}
		}
	}()

	serveErr := make(chan error, 1)
	// Serve HTTP on unix socket
	go func() {
		logrus.Infof("http server listening on %s", l.Addr().String())
		if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Handle common process-killing signals, so we can gracefully shut down:
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	// Wait for a SIGINT or SIGTERM, or the server to fail:
	var runErr error
	select {
	case sig := <-sigc:
		logrus.Infof("caught signal \"%s\": shutting down.", sig)
	case err := <-serveErr:
		runErr = pkgerrors.Wrap(err, "http server failed")
		logrus.Error(runErr)
	}

	logrus.Info("shutting down http server")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	err = srv.Shutdown(ctx)
	if err != nil {
		logrus.Errorf("failed to shutdown http server: %v", err)
	}
	cancel()

	logrus.Info("stopping privilege prober")
	comp.prober.Stop()

	if err := os.Remove(unixSocketPath); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("failed to remove socket %s: %v", unixSocketPath, err)
	}

	logrus.Info("exiting")
	return runErr
}

// reloadConfig re-reads conf and applies what can change at runtime, which
// is the socket permission. Commands and sources keep their startup values.
func reloadConfig(conf *config.File, unixSocketPath string, allowNonRoot bool) error {
	if err := conf.Load(); err != nil {
		return err
	}
	logrus.WithFields(conf.LogrusFields()).Infof("config reloaded, restart the daemon to apply command and source changes")

	return applySocketPermissions(unixSocketPath, conf.AllowNonRootAccess() || allowNonRoot)
}

// applySocketPermissions opens the socket to every user, or to its owner
// only. Connecting needs write permission, so 0755 keeps others out.
func applySocketPermissions(unixSocketPath string, allowNonRoot bool) error {
	var mode os.FileMode = 0755
	if allowNonRoot {
		mode = 0777
		logrus.Infof("non-root access is allowed, changing permissions of %s to 0777", unixSocketPath)
	}
	err := os.Chmod(unixSocketPath, mode)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to change permissions of %s", unixSocketPath)
	}
	return nil
}

// removeStaleSocket removes a socket left behind by a daemon that did not
// exit cleanly. Anything that is not a socket is left alone.
func removeStaleSocket(path string) error {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return pkgerrors.Wrapf(err, "failed to stat %s", path)
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return pkgerrors.Errorf("%s exists and is not a socket", path)
	}
	if conn, err := net.DialTimeout("unix", path, time.Second); err == nil {
		_ = conn.Close()
		return pkgerrors.Errorf("another daemon is listening on %s", path)
	}

	logrus.Warnf("removing stale socket %s", path)
	return pkgerrors.Wrapf(os.Remove(path), "failed to remove %s", path)
}
