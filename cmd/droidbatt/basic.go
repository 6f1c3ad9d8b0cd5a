package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/charlie0129/droidbatt/pkg/deviceinfo"
	"github.com/charlie0129/droidbatt/pkg/utils/ptr"
	"github.com/charlie0129/droidbatt/pkg/version"
)

func NewVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("%s %s\n", version.Version, version.GitCommit)
		},
	}
}

func NewThemeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "theme",
		Short:   "Print the current UI theme (dark or light)",
		GroupID: gBasic,
		RunE: func(cmd *cobra.Command, _ []string) error {
			theme, err := apiClient().GetTheme()
			if err != nil {
				return fmt.Errorf("failed to get theme: %w", err)
			}
			cmd.Println(theme)
			return nil
		},
	}
}

var debugVerbose = false

func NewDebugCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "debug",
		Short:   "Print device debug information",
		GroupID: gBasic,
		Long: `Print device debug information: device model, OS release, root access and theme.

With --verbose, the SELinux state (mode, daemon context, recent AVC denials
with suggested allow rules) and the daemon config are printed as well.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c := apiClient()

			info, err := c.GetDebugInfo()
			if err != nil {
				return fmt.Errorf("failed to get debug info: %w", err)
			}
			cmd.Print(info)

			if !debugVerbose {
				return nil
			}

			report, err := c.GetSELinuxReport()
			if err != nil {
				return fmt.Errorf("failed to get SELinux report: %w", err)
			}
			printSELinuxReport(cmd, report)

			conf, err := c.GetConfig()
			if err != nil {
				return fmt.Errorf("failed to get config: %w", err)
			}
			cmd.Printf("Battery Source: %s\n", ptr.Deref(conf.BatterySource, "-"))
			cmd.Printf("Theme Source: %s\n", ptr.Deref(conf.ThemeSource, "-"))
			cmd.Printf("su Binary: %s\n", ptr.Deref(conf.SuBinary, "-"))
			cmd.Printf("Root Markers: %s\n", strings.Join(conf.RootMarkers, ", "))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&debugVerbose, "verbose", "v", false, "also print SELinux state and daemon config")

	return cmd
}

func printSELinuxReport(cmd *cobra.Command, r *deviceinfo.SELinuxReport) {
	cmd.Printf("SELinux: %s\n", r.Mode)
	cmd.Printf("SELinux Context: %s\n", r.Context)
	if r.Error != "" {
		cmd.Printf("AVC Denials: unavailable (%s)\n", r.Error)
		return
	}
	cmd.Printf("AVC Denials: %d\n", len(r.Denials))
	if len(r.Denials) == 0 {
		return
	}
	for _, d := range r.Denials {
		cmd.Printf("  %s -> %s %s { %s }\n", d.Source, d.Target, d.Class, d.Permission)
	}
	cmd.Print(r.Policy)
}
