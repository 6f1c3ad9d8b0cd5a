package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/charlie0129/droidbatt/pkg/powerinfo"
	"github.com/charlie0129/droidbatt/pkg/privilege"
)

func TestPrintStatus(t *testing.T) {
	noColor := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = noColor })

	snap := &powerinfo.Snapshot{
		CapacityPercent:      50,
		ChargeState:          powerinfo.Charging,
		VoltageMilliV:        4000,
		TemperatureTenthsC:   350,
		CurrentNowMicroA:     -500000,
		ChargerVoltageMicroV: 5000000,
		PowerNowMicroW:       7500000,
	}

	tests := []struct {
		name    string
		root    privilege.Status
		want    []string
		notWant []string
	}{
		{
			name: "rooted",
			root: privilege.Granted,
			want: []string{
				"Current charge: 50%",
				"State: charging",
				"Voltage: 4.000 V",
				"Temperature: 35.0 °C",
				"Current: -500 mA",
				"Estimated power: 2.00 W",
				"Root access: ✔",
				"Charger voltage: 5.000 V",
				"Battery power: 7.50 W",
			},
		},
		{
			name:    "not rooted",
			root:    privilege.Denied,
			want:    []string{"Root access: ✘", "need root access"},
			notWant: []string{"Charger voltage:", "Battery power:"},
		},
		{
			name:    "not checked yet",
			root:    privilege.Unchecked,
			want:    []string{"Root access: not checked yet"},
			notWant: []string{"Charger voltage:"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			printStatus(&buf, &statusData{snapshot: snap, root: tt.root})
			out := buf.String()
			for _, s := range tt.want {
				if !strings.Contains(out, s) {
					t.Errorf("output does not contain %q:\n%s", s, out)
				}
			}
			for _, s := range tt.notWant {
				if strings.Contains(out, s) {
					t.Errorf("output contains %q:\n%s", s, out)
				}
			}
		})
	}
}

func TestNewCommandWiring(t *testing.T) {
	cmd := NewCommand()
	for _, name := range []string{"daemon", "version", "status", "theme", "debug", "root"} {
		if c, _, err := cmd.Find([]string{name}); err != nil || c.Name() != name {
			t.Errorf("subcommand %q not found: %v", name, err)
		}
	}
	if c, _, err := cmd.Find([]string{"root", "elevate"}); err != nil || c.Name() != "elevate" {
		t.Errorf("root elevate not found: %v", err)
	}
}
