package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	daemonutils "github.com/charlie0129/droidbatt/pkg/utils/daemon"
)

var gInstallation = "Installation:"

func init() {
	commandGroups = append(commandGroups, gInstallation)
}

var serviceDir = daemonutils.DefaultServiceDir

// NewInstallCommand .
func NewInstallCommand() *cobra.Command {
	allowNonRootAccess := false

	cmd := &cobra.Command{
		Use:     "install",
		Short:   "Start droidbatt daemon on boot (Magisk / KernelSU)",
		GroupID: gInstallation,
		Long: `Install a boot script that starts droidbatt daemon on boot.

The script is placed in the service.d directory of Magisk or KernelSU, so a
rooted device is required. You must run this command as root.

By default, only root is allowed to access the daemon. Use
--allow-non-root-access to let other users (e.g. adb shell) query it.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := daemonutils.Install(daemonutils.Options{
				ServiceDir:         serviceDir,
				ConfigPath:         configPath,
				SocketPath:         unixSocketPath,
				AllowNonRootAccess: allowNonRootAccess,
			})
			if err != nil {
				// check if current user is root
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to install daemon: %v", err)
			}

			logrus.Infof("installation succeeded")

			exePath, _ := os.Executable()
			cmd.Printf("%s will start the current binary (%s) on boot, so do not move it. Once it is moved or deleted, run `droidbatt install' again.\n", p, exePath)

			return nil
		},
	}

	cmd.Flags().BoolVar(&allowNonRootAccess, "allow-non-root-access", false, "Allow non-root users to access droidbatt daemon.")
	cmd.Flags().StringVar(&serviceDir, "service-dir", serviceDir, "boot script directory")

	return cmd
}

// NewUninstallCommand .
func NewUninstallCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "uninstall",
		Short:   "Stop starting droidbatt daemon on boot",
		GroupID: gInstallation,
		Long: `Remove the boot script installed by 'droidbatt install'.

A daemon that is already running keeps running until the next reboot, or
until it receives SIGTERM.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			err := daemonutils.Uninstall(daemonutils.Options{ServiceDir: serviceDir})
			if err != nil {
				if os.Geteuid() != 0 {
					logrus.Errorf("you must run this command as root")
				}
				return fmt.Errorf("failed to uninstall daemon: %v", err)
			}

			logrus.Infof("uninstallation succeeded")
			return nil
		},
	}

	cmd.Flags().StringVar(&serviceDir, "service-dir", serviceDir, "boot script directory")

	return cmd
}
