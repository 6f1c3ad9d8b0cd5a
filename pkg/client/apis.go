package client

import (
	"encoding/json"

	pkgerrors "github.com/pkg/errors"

	"github.com/charlie0129/droidbatt/pkg/config"
	"github.com/charlie0129/droidbatt/pkg/deviceinfo"
	"github.com/charlie0129/droidbatt/pkg/powerinfo"
	"github.com/charlie0129/droidbatt/pkg/privilege"
)

// ErrBattery is the message the daemon sent instead of a snapshot.
type ErrBattery struct {
	Message string
}

func (e *ErrBattery) Error() string {
	return "daemon failed to read battery: " + e.Message
}

func (c *Client) GetTheme() (string, error) {
	return c.getString("/theme", "theme")
}

// GetBattery returns a fresh snapshot. When the daemon answered with an
// error body, the error is an *ErrBattery.
func (c *Client) GetBattery() (*powerinfo.Snapshot, error) {
	ret, err := c.Get("/battery")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get battery snapshot")
	}

	var probe struct {
		Error *string `json:"error"`
	}
	if err := json.Unmarshal([]byte(ret), &probe); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal battery snapshot")
	}
	if probe.Error != nil {
		return nil, &ErrBattery{Message: *probe.Error}
	}

	var snap powerinfo.Snapshot
	if err := json.Unmarshal([]byte(ret), &snap); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal battery snapshot")
	}
	return &snap, nil
}

func (c *Client) GetDebugInfo() (string, error) {
	return c.getString("/debug-info", "debug info")
}

func (c *Client) GetRootStatus() (privilege.Status, error) {
	ret, err := c.Get("/root-status")
	if err != nil {
		return privilege.Unchecked, pkgerrors.Wrapf(err, "failed to get root status")
	}
	return parseStatus(ret)
}

// RequestElevation asks the daemon to look for root access again. It
// returns as soon as the request is queued.
func (c *Client) RequestElevation() error {
	_, err := c.Post("/root/elevate", "")
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to request elevation")
	}
	return nil
}

// RequestElevationAndWait is RequestElevation, but returns the status the
// probe produced.
func (c *Client) RequestElevationAndWait() (privilege.Status, error) {
	ret, err := c.Post("/root/elevate?wait=true", "")
	if err != nil {
		return privilege.Unchecked, pkgerrors.Wrapf(err, "failed to request elevation")
	}
	return parseStatus(ret)
}

func (c *Client) GetSELinux() (string, error) {
	return c.getString("/selinux", "SELinux mode")
}

func (c *Client) GetSELinuxReport() (*deviceinfo.SELinuxReport, error) {
	ret, err := c.Get("/selinux/report")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get SELinux report")
	}

	var report deviceinfo.SELinuxReport
	if err := json.Unmarshal([]byte(ret), &report); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal SELinux report")
	}

	return &report, nil
}

func (c *Client) GetConfig() (*config.RawFileConfig, error) {
	ret, err := c.Get("/config")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get config")
	}

	var conf config.RawFileConfig
	if err := json.Unmarshal([]byte(ret), &conf); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal config")
	}

	return &conf, nil
}

func (c *Client) GetVersion() (string, error) {
	return c.getString("/version", "version")
}

// getString fetches an endpoint whose body is a JSON string.
func (c *Client) getString(path, what string) (string, error) {
	ret, err := c.Get(path)
	if err != nil {
		return "", pkgerrors.Wrapf(err, "failed to get %s", what)
	}

	var s string
	if err := json.Unmarshal([]byte(ret), &s); err != nil {
		return "", pkgerrors.Wrapf(err, "failed to unmarshal %s", what)
	}
	return s, nil
}

func parseStatus(resp string) (privilege.Status, error) {
	var s privilege.Status
	if err := json.Unmarshal([]byte(resp), &s); err != nil {
		return privilege.Unchecked, pkgerrors.Wrapf(err, "unexpected root status response: %s", resp)
	}
	return s, nil
}
