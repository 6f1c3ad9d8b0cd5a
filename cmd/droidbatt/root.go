package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/droidbatt/pkg/privilege"
)

var elevateWait = false

func NewRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "root",
		Short:   "Inspect or request root access of the daemon",
		GroupID: gAdvanced,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "status",
			Short: "Print whether the daemon has root access",
			RunE: func(cmd *cobra.Command, _ []string) error {
				s, err := apiClient().GetRootStatus()
				if err != nil {
					return fmt.Errorf("failed to get root status: %w", err)
				}
				cmd.Println(rootStatusText(s))
				return nil
			},
		},
		newElevateCommand(),
	)

	return cmd
}

func newElevateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "elevate",
		Short: "Ask the daemon to check for root access again",
		Long: `Ask the daemon to check for root access again.

On top of the checks done at startup, the daemon runs 'su -c id', which lets
root managers prompt for a grant. Without --wait, this returns immediately.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !elevateWait {
				if err := apiClient().RequestElevation(); err != nil {
					return err
				}
				logrus.Info("elevation requested, check the result with 'droidbatt root status'")
				return nil
			}

			s, err := apiClient().RequestElevationAndWait()
			if err != nil {
				return err
			}
			cmd.Println(rootStatusText(s))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&elevateWait, "wait", "w", false, "wait for the probe to finish and print the result")

	return cmd
}

func rootStatusText(s privilege.Status) string {
	switch {
	case !s.Checked:
		return "Root access: not checked yet"
	case s.Granted:
		return "Root access: " + bool2Text(true)
	default:
		return "Root access: " + bool2Text(false)
	}
}
