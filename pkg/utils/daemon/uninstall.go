package daemon

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

// Uninstall removes the boot script. A running daemon is left alone, stop
// it with SIGTERM.
func Uninstall(o Options) error {
	p := o.scriptPath()

	logrus.Infof("removing boot script %s", p)

	// if the file doesn't exist, we don't need to remove it
	_, err := os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to stat %s: %w", p, err)
	}

	err = os.Remove(p)
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w. Are you root?", p, err)
	}

	return nil
}
