package sysfs

import (
	"context"
	"errors"
	"os/exec"
	"strconv"
	"testing"

	"github.com/charlie0129/droidbatt/pkg/privilege"
	"github.com/charlie0129/droidbatt/pkg/shell"
)

func fixedStatus(s privilege.Status) StatusLoader {
	return StatusFunc(func() privilege.Status { return s })
}

func TestReaderGatedByStatus(t *testing.T) {
	for _, status := range []privilege.Status{privilege.Unchecked, privilege.Denied} {
		t.Run(status.String(), func(t *testing.T) {
			spawned := false
			runner := shell.Func(func(context.Context, shell.Command) (shell.Result, error) {
				spawned = true
				return shell.Result{Stdout: "5000000\n"}, nil
			})

			r := NewReader(fixedStatus(status), runner, "")
			for _, n := range []Node{ChargerVoltage, BatteryPower} {
				got := r.Read(context.Background(), n)
				if got.Kind != KindUnavailable {
					t.Errorf("Read(%s) kind = %s, want %s", n, got.Kind, KindUnavailable)
				}
				if got.ValueOrZero() != 0 {
					t.Errorf("Read(%s) value = %d, want 0", n, got.ValueOrZero())
				}
			}
			if spawned {
				t.Errorf("a process was spawned without root access")
			}
		})
	}
}

func TestReaderRead(t *testing.T) {
	tests := []struct {
		name      string
		out       shell.Result
		err       error
		wantKind  Kind
		wantValue int64
		wantErr   error
	}{
		{
			name:      "plain value",
			out:       shell.Result{Stdout: "5012000\n"},
			wantKind:  KindOK,
			wantValue: 5012000,
		},
		{
			name:      "whitespace and extra lines",
			out:       shell.Result{Stdout: "  -1250000 \nignored\n"},
			wantKind:  KindOK,
			wantValue: -1250000,
		},
		{
			name:     "empty output",
			out:      shell.Result{Stdout: ""},
			wantKind: KindFailed,
			wantErr:  ErrEmptyOutput,
		},
		{
			name:     "blank first line",
			out:      shell.Result{Stdout: "\n42\n"},
			wantKind: KindFailed,
			wantErr:  ErrEmptyOutput,
		},
		{
			name:     "permission denied",
			out:      shell.Result{Stdout: "", ExitCode: 1},
			wantKind: KindFailed,
			wantErr:  ErrNonZeroExit,
		},
		{
			name:     "not a number",
			out:      shell.Result{Stdout: "Charging\n"},
			wantKind: KindFailed,
			wantErr:  strconv.ErrSyntax,
		},
		{
			name:     "timeout",
			err:      shell.ErrTimeout,
			wantKind: KindFailed,
			wantErr:  shell.ErrTimeout,
		},
		{
			name:     "spawn failure",
			err:      exec.ErrNotFound,
			wantKind: KindFailed,
			wantErr:  exec.ErrNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotCmd shell.Command
			runner := shell.Func(func(_ context.Context, cmd shell.Command) (shell.Result, error) {
				gotCmd = cmd
				return tt.out, tt.err
			})

			r := NewReader(fixedStatus(privilege.Granted), runner, "/system/xbin/su")
			got := r.Read(context.Background(), BatteryPower)

			if got.Kind != tt.wantKind {
				t.Fatalf("Read() kind = %s, want %s (err: %v)", got.Kind, tt.wantKind, got.Err)
			}
			if got.Value != tt.wantValue {
				t.Errorf("Read() value = %d, want %d", got.Value, tt.wantValue)
			}
			if tt.wantErr != nil && !errors.Is(got.Err, tt.wantErr) {
				t.Errorf("Read() err = %v, want %v", got.Err, tt.wantErr)
			}
			if tt.wantKind == KindFailed && got.ValueOrZero() != 0 {
				t.Errorf("failed read must yield 0, got %d", got.ValueOrZero())
			}

			if gotCmd.Name != "/system/xbin/su" {
				t.Errorf("spawned %q, want the configured su binary", gotCmd.Name)
			}
			wantArgs := []string{"-c", "cat /sys/class/power_supply/battery/power_now"}
			if len(gotCmd.Args) != 2 || gotCmd.Args[0] != wantArgs[0] || gotCmd.Args[1] != wantArgs[1] {
				t.Errorf("spawned args %q, want %q", gotCmd.Args, wantArgs)
			}
		})
	}
}

func TestReaderUnknownNode(t *testing.T) {
	runner := shell.Func(func(context.Context, shell.Command) (shell.Result, error) {
		t.Fatal("no process should be spawned for an unknown node")
		return shell.Result{}, nil
	})

	r := NewReader(fixedStatus(privilege.Granted), runner, "")
	got := r.Read(context.Background(), Node(42))
	if got.Kind != KindFailed || !errors.Is(got.Err, ErrUnknownNode) {
		t.Errorf("Read(Node(42)) = %+v, want Failed(ErrUnknownNode)", got)
	}
}

func TestNodePaths(t *testing.T) {
	tests := []struct {
		node Node
		path string
		name string
	}{
		{ChargerVoltage, "/sys/class/power_supply/usb/voltage_now", "charger_voltage"},
		{BatteryPower, "/sys/class/power_supply/battery/power_now", "battery_power"},
		{Node(9), "", "node(9)"},
	}
	for _, tt := range tests {
		if got := tt.node.Path(); got != tt.path {
			t.Errorf("%d.Path() = %q, want %q", tt.node, got, tt.path)
		}
		if got := tt.node.String(); got != tt.name {
			t.Errorf("%d.String() = %q, want %q", tt.node, got, tt.name)
		}
	}
}
