package deviceinfo

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"

	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/charlie0129/droidbatt/pkg/shell"
)

// SELinuxMode is the enforcement mode reported by getenforce.
type SELinuxMode string

const (
	SELinuxEnforcing  SELinuxMode = "Enforcing"
	SELinuxPermissive SELinuxMode = "Permissive"
	SELinuxDisabled   SELinuxMode = "Disabled"
	SELinuxUnknown    SELinuxMode = "Unknown"
)

// SELinux runs getenforce. It is not cached, the mode can be switched at
// runtime.
func SELinux(ctx context.Context, runner shell.Runner) SELinuxMode {
	res, err := runner.Run(ctx, shell.Command{Name: "getenforce"})
	if err != nil {
		logrus.WithError(err).Debug("failed to run getenforce")
		return SELinuxUnknown
	}
	if res.ExitCode != 0 {
		return SELinuxUnknown
	}
	return ParseSELinuxMode(res.FirstLine())
}

// ParseSELinuxMode parses the output of getenforce.
func ParseSELinuxMode(s string) SELinuxMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "enforcing":
		return SELinuxEnforcing
	case "permissive":
		return SELinuxPermissive
	case "disabled":
		return SELinuxDisabled
	default:
		return SELinuxUnknown
	}
}

// SELinuxReport is the SELinux state of the daemon, for debugging sysfs
// access problems.
type SELinuxReport struct {
	Mode    SELinuxMode `json:"mode"`
	Context string      `json:"context"`
	Denials []Denial    `json:"denials"`
	Policy  string      `json:"policy"`
	// Error is set when the kernel log could not be read.
	Error string `json:"error,omitempty"`
}

// Denial is one AVC denial from the kernel log.
type Denial struct {
	Source     string `json:"scontext"`
	Target     string `json:"tcontext"`
	Class      string `json:"tclass"`
	Permission string `json:"permission"`
	Raw        string `json:"raw"`
}

var (
	avcPattern  = regexp.MustCompile(`avc:\s+denied.*scontext=(\S+).*tcontext=(\S+).*tclass=(\S+)`)
	permPattern = regexp.MustCompile(`\{\s*([^}]*?)\s*\}`)
)

// maxDenials is how many of the most recent denials a scan keeps.
const maxDenials = 20

// procAttrCurrent holds the SELinux context of the calling process.
var procAttrCurrent = "/proc/self/attr/current"

// ParseDenial parses an AVC denial line such as
//
//	avc: denied { read } for name="power_now" scontext=u:r:shell:s0 tcontext=u:object_r:sysfs_batteryinfo:s0 tclass=file permissive=0
func ParseDenial(line string) (Denial, bool) {
	m := avcPattern.FindStringSubmatch(line)
	if m == nil {
		return Denial{}, false
	}
	d := Denial{
		Source: m[1],
		Target: m[2],
		Class:  m[3],
		Raw:    strings.TrimSpace(line),
	}
	if pm := permPattern.FindStringSubmatch(line); pm != nil {
		d.Permission = pm[1]
	}
	return d, true
}

// RecentDenials scans the kernel log for AVC denials, oldest first. The
// kernel log is usually restricted, so with privileged set dmesg runs
// through suBinary.
func RecentDenials(ctx context.Context, runner shell.Runner, suBinary string, privileged bool) ([]Denial, error) {
	cmd := shell.Command{Name: "dmesg"}
	if privileged {
		cmd = shell.Command{Name: suBinary, Args: []string{"-c", "dmesg"}}
	}

	res, err := runner.Run(ctx, cmd)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to run %s", cmd)
	}
	if res.ExitCode != 0 {
		return nil, pkgerrors.Errorf("%s exited with %d", cmd, res.ExitCode)
	}

	var denials []Denial
	sc := bufio.NewScanner(strings.NewReader(res.Stdout))
	for sc.Scan() {
		if d, ok := ParseDenial(sc.Text()); ok {
			denials = append(denials, d)
		}
	}
	if len(denials) > maxDenials {
		denials = denials[len(denials)-maxDenials:]
	}
	return denials, nil
}

// ProcessContext returns the SELinux context the daemon runs in.
func ProcessContext() string {
	b, err := os.ReadFile(procAttrCurrent)
	if err != nil {
		logrus.WithError(err).Debug("failed to read process context")
		return Unknown
	}
	secontext := strings.TrimSpace(strings.TrimRight(string(b), "\x00"))
	if secontext == "" {
		return Unknown
	}
	return secontext
}

// ContextType returns the type of a context such as u:r:shell:s0.
func ContextType(secontext string) string {
	parts := strings.Split(secontext, ":")
	if len(parts) < 3 || parts[2] == "" {
		return Unknown
	}
	return parts[2]
}

// PolicySuggestion renders denials as CIL allow rules. Duplicates are
// printed once.
func PolicySuggestion(denials []Denial) string {
	if len(denials) == 0 {
		return ";; no denials found\n"
	}

	var sb strings.Builder
	sb.WriteString(";; suggested rules for vendor_sepolicy.cil\n")
	seen := map[string]bool{}
	for _, d := range denials {
		perm := d.Permission
		if perm == "" {
			perm = "*"
		}
		rule := fmt.Sprintf("(allow %s %s (%s (%s)))\n", ContextType(d.Source), ContextType(d.Target), d.Class, perm)
		if seen[rule] {
			continue
		}
		seen[rule] = true
		sb.WriteString(rule)
	}
	return sb.String()
}

// Report collects the SELinux state. privileged allows reading the
// kernel log as root.
func Report(ctx context.Context, runner shell.Runner, suBinary string, privileged bool) SELinuxReport {
	r := SELinuxReport{
		Mode:    SELinux(ctx, runner),
		Context: ProcessContext(),
	}
	denials, err := RecentDenials(ctx, runner, suBinary, privileged)
	if err != nil {
		logrus.WithError(err).Debug("failed to scan AVC denials")
		r.Error = err.Error()
	}
	if denials == nil {
		denials = []Denial{}
	}
	r.Denials = denials
	r.Policy = PolicySuggestion(denials)
	return r
}
