package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/charlie0129/droidbatt/pkg/powerinfo"
	"github.com/charlie0129/droidbatt/pkg/privilege"
)

type statusData struct {
	snapshot *powerinfo.Snapshot
	root     privilege.Status
}

// fetchStatusData gathers all data required for the status command from the daemon.
func fetchStatusData() (*statusData, error) {
	c := apiClient()

	snap, err := c.GetBattery()
	if err != nil {
		return nil, fmt.Errorf("failed to get battery snapshot: %w", err)
	}

	root, err := c.GetRootStatus()
	if err != nil {
		return nil, fmt.Errorf("failed to get root status: %w", err)
	}

	return &statusData{
		snapshot: snap,
		root:     root,
	}, nil
}

var statusJSON = false

func NewStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "status",
		GroupID: gBasic,
		Short:   "Get the current battery status",
		Long: `Get the current battery status.

Charger voltage and battery power are only available when the daemon has
root access.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := fetchStatusData()
			if err != nil {
				return err
			}

			if statusJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(data.snapshot)
			}

			printStatus(cmd.OutOrStdout(), data)
			return nil
		},
	}

	cmd.Flags().BoolVar(&statusJSON, "json", false, "print the raw snapshot as JSON")

	return cmd
}

func printStatus(w io.Writer, data *statusData) {
	snap := data.snapshot

	fmt.Fprintln(w, bold("Battery status:"))
	fmt.Fprintf(w, "  Current charge: %s\n", bold("%d%%", snap.CapacityPercent))

	var state string
	switch snap.ChargeState {
	case powerinfo.Charging:
		state = color.GreenString("charging")
	case powerinfo.Discharging:
		state = color.RedString("discharging")
	case powerinfo.NotCharging:
		state = "not charging"
	case powerinfo.Full:
		state = "full"
	default:
		state = "unknown"
	}
	fmt.Fprintf(w, "  State: %s\n", bold("%s", state))
	fmt.Fprintf(w, "  Voltage: %s\n", bold("%.3f V", float64(snap.VoltageMilliV)/1e3))
	fmt.Fprintf(w, "  Temperature: %s\n", bold("%.1f °C", snap.TemperatureCelsius()))
	fmt.Fprintf(w, "  Current: %s\n", bold("%d mA", snap.CurrentNowMicroA/1000))
	fmt.Fprintf(w, "  Estimated power: %s\n", bold("%.2f W", snap.EstimatedPowerWatts()))

	fmt.Fprintln(w)

	fmt.Fprintln(w, bold("Root telemetry:"))
	fmt.Fprintln(w, "  "+rootStatusText(data.root))
	if !data.root.Usable() {
		fmt.Fprintln(w, "    Charger voltage and battery power need root access.")
		return
	}
	fmt.Fprintf(w, "  Charger voltage: %s\n", bold("%.3f V", float64(snap.ChargerVoltageMicroV)/1e6))
	fmt.Fprintf(w, "  Battery power: %s\n", bold("%.2f W", float64(snap.PowerNowMicroW)/1e6))
}
