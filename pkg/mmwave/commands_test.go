// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mmwave

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestCommands_Builders(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want Command
	}{
		{"product model", NewQueryProductModel(), Command{0x02, 0xA1, []byte{0x0F}}},
		{"product id", NewQueryProductID(), Command{0x02, 0xA2, []byte{0x0F}}},
		{"hardware model", NewQueryHardwareModel(), Command{0x02, 0xA3, []byte{0x0F}}},
		{"firmware version", NewQueryFirmwareVersion(), Command{0x02, 0xA4, []byte{0x0F}}},
		{"init status", NewQueryInitStatus(), Command{0x05, 0x81, []byte{0x0F}}},
		{"get angle", NewQueryInstallAngle(), Command{0x06, 0x81, []byte{0x0F}}},
		{"get height", NewQueryInstallHeight(), Command{0x06, 0x82, []byte{0x0F}}},
		{"get fall duration", NewQueryFallDuration(), Command{0x83, 0x8C, []byte{0x0F}}},
		{"set angle", NewSetInstallAngle(45, 90, 270), Command{0x06, 0x01, []byte{0x00, 0x2D, 0x00, 0x5A, 0x01, 0x0E}}},
		{"set height", NewSetInstallHeight(250), Command{0x06, 0x02, []byte{0x00, 0xFA}}},
		{"set fall duration", NewSetFallDuration(0x01020304), Command{0x83, 0x0C, []byte{0x01, 0x02, 0x03, 0x04}}},
		{"presence on", NewSetPresence(true), Command{0x80, 0x00, []byte{0x01}}},
		{"trace off", NewSetTraceTracking(false), Command{0x82, 0x00, []byte{0x00}}},
		{"fall detection on", NewSetFallDetection(true), Command{0x83, 0x00, []byte{0x01}}},
		{"stand still on", NewSetStandStill(true), Command{0x83, 0x0B, []byte{0x01}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.cmd); diff != "" {
				t.Errorf("command mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCommands_FrameMatchesBuildCommand(t *testing.T) {
	c := NewSetInstallHeight(250)
	if diff := cmp.Diff(BuildCommand(0x06, 0x02, []byte{0x00, 0xFA}), c.Frame()); diff != "" {
		t.Errorf("frame mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildNamedCommand(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		want    Command
		wantErr bool
	}{
		{name: "get-angle", want: NewQueryInstallAngle()},
		{name: "set-height", args: []string{"250"}, want: NewSetInstallHeight(250)},
		{name: "set-height", args: []string{"0x100"}, want: NewSetInstallHeight(256)},
		{name: "set-angle", args: []string{"1", "2", "3"}, want: NewSetInstallAngle(1, 2, 3)},
		{name: "set-fall-duration", args: []string{"60"}, want: NewSetFallDuration(60)},
		{name: "presence", args: []string{"on"}, want: NewSetPresence(true)},
		{name: "stand-still", args: []string{"off"}, want: NewSetStandStill(false)},
		{name: "set-height", args: []string{"70000"}, wantErr: true},
		{name: "set-height", wantErr: true},
		{name: "presence", args: []string{"maybe"}, wantErr: true},
		{name: "get-angle", args: []string{"1"}, wantErr: true},
		{name: "reboot", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := BuildNamedCommand(tt.name, tt.args)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("command mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCommandNames_Sorted(t *testing.T) {
	names := CommandNames()
	if len(names) != len(Commands) {
		t.Fatalf("expected %d names, got %d", len(Commands), len(names))
	}
	for i := 1; i < len(names); i++ {
		if names[i-1] > names[i] {
			t.Errorf("names not sorted: %q before %q", names[i-1], names[i])
		}
	}
}
