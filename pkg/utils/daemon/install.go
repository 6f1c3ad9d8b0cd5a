package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// DefaultServiceDir is where Magisk and KernelSU run boot scripts from,
// late in boot and as root.
const DefaultServiceDir = "/data/adb/service.d"

const scriptName = "droidbatt.sh"

const bootScriptTemplate = `#!/system/bin/sh
# Installed by droidbatt install. Remove with droidbatt uninstall.

# Wait for boot to finish, so battery and UI mode services are up.
until [ "$(getprop sys.boot_completed)" = "1" ]; do
    sleep 5
done

exec {{EXE}} daemon --config {{CONFIG}} --daemon-socket {{SOCKET}}{{EXTRA}} >/dev/null 2>&1
`

// Options describes the daemon started at boot.
type Options struct {
	// ServiceDir defaults to DefaultServiceDir.
	ServiceDir         string
	ConfigPath         string
	SocketPath         string
	AllowNonRootAccess bool
}

func (o Options) scriptPath() string {
	dir := o.ServiceDir
	if dir == "" {
		dir = DefaultServiceDir
	}
	return filepath.Join(dir, scriptName)
}

// BootScript renders the boot script for exePath.
func BootScript(exePath string, o Options) string {
	extra := ""
	if o.AllowNonRootAccess {
		extra = " --always-allow-non-root-access"
	}
	r := strings.NewReplacer(
		"{{EXE}}", shellQuote(exePath),
		"{{CONFIG}}", shellQuote(o.ConfigPath),
		"{{SOCKET}}", shellQuote(o.SocketPath),
		"{{EXTRA}}", extra,
	)
	return r.Replace(bootScriptTemplate)
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

// Install writes a boot script that starts the current executable as the
// daemon. It returns the path of the script.
func Install(o Options) (string, error) {
	// Get the path to the current executable
	exePath, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("failed to get the path to the current executable: %w", err)
	}
	exePath, err = filepath.Abs(exePath)
	if err != nil {
		return "", fmt.Errorf("failed to get the absolute path to the current executable: %w", err)
	}

	err = os.Chmod(exePath, 0755)
	if err != nil {
		return "", fmt.Errorf("failed to chmod the current executable to 0755: %w", err)
	}

	logrus.Infof("current executable path: %s", exePath)

	return InstallExecutable(exePath, o)
}

// InstallExecutable is Install for an arbitrary executable.
func InstallExecutable(exePath string, o Options) (string, error) {
	p := o.scriptPath()

	if _, err := os.Stat(filepath.Dir(p)); err != nil {
		return "", fmt.Errorf("%s is not usable, is Magisk or KernelSU installed? %w", filepath.Dir(p), err)
	}

	// warn if the file already exists
	if _, err := os.Stat(p); err == nil {
		logrus.Warnf("%s already exists, overwriting", p)
	}

	logrus.Infof("writing boot script to %s", p)

	err := os.WriteFile(p, []byte(BootScript(exePath, o)), 0755)
	if err != nil {
		return "", fmt.Errorf("failed to write %s: %w", p, err)
	}
	// WriteFile keeps the mode of an existing file.
	err = os.Chmod(p, 0755)
	if err != nil {
		return "", fmt.Errorf("failed to chmod %s: %w", p, err)
	}

	return p, nil
}
