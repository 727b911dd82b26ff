// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mmwave

import (
	"errors"
	"strings"
	"testing"
)

// ============================================================
// Formatter Tests
// ============================================================

func TestFormatEvent(t *testing.T) {
	tests := []struct {
		ev   Event
		want string
	}{
		{InstallationAngle{X: 45, Y: 90, Z: 135}, "INSTALL_ANGLE: x=45° y=90° z=135°"},
		{InstallationHeight{Height: 250}, "INSTALL_HEIGHT: 250 cm"},
		{PresenceState{On: true}, "PRESENCE: ON"},
		{MotionState{Style: StyleMotionHigh}, "MOTION: motion_high"},
		{MotionState{Style: StyleMagnitude, Value: 12}, "MOTION: magnitude=12"},
		{FallState{Fallen: true}, "FALL_STATE: FALLEN"},
		{FallAlert{Cancelled: true}, "FALL_ALERT: cancelled"},
		{FallPosition{X: 1, Y: 2, Cancelled: true}, "FALL_CANCEL_POSITION: x=1 y=2"},
		{StandStillState{Active: true, Setting: true}, "STAND_STILL_SETTING: ON"},
		{WorkingStatus{State: WorkInited}, "WORKING_STATUS: inited"},
		{ProductInfo{Field: ProductFirmwareVersion, Value: "v1"}, `PRODUCT_INFO: firmware_version="v1"`},
		{UnknownCommand{Cmd: 0xFF, Sub: 0x01, Raw: []byte{0xFF, 0x01}}, "UNKNOWN: cmd=0xFF sub=0x01 raw=[FF 01]"},
		{DebugNote{Text: "heartbeat"}, "DEBUG: heartbeat"},
	}

	for _, tt := range tests {
		t.Run(tt.ev.EventName(), func(t *testing.T) {
			if got := FormatEvent(tt.ev); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestFormatEvent_Nil(t *testing.T) {
	if got := FormatEvent(nil); got != "<nil>" {
		t.Errorf("expected <nil>, got %q", got)
	}
}

func TestFormatHex(t *testing.T) {
	if got := FormatHex([]byte{0x53, 0x59, 0x0A}); got != "53 59 0A" {
		t.Errorf("expected %q, got %q", "53 59 0A", got)
	}
	if got := FormatHex(nil); got != "" {
		t.Errorf("expected empty string, got %q", got)
	}
}

func TestEnumStrings(t *testing.T) {
	if ProductField(99).String() != "unknown" {
		t.Error("unknown ProductField should stringify as unknown")
	}
	if WorkState(99).String() != "unknown" {
		t.Error("unknown WorkState should stringify as unknown")
	}
	if MotionStyle(99).String() != "unknown" {
		t.Error("unknown MotionStyle should stringify as unknown")
	}
}

// ============================================================
// Statistics Tests
// ============================================================

func TestStatistics_Update(t *testing.T) {
	s := NewStatistics()
	s.AddBytes(42)

	s.Update(nil, []Event{PresenceState{On: true}, DebugNote{Text: "x"}})
	s.Update(nil, []Event{UnknownCommand{Cmd: 0xFF}})
	s.Update(&ChecksumError{Expected: 1, Received: 2}, nil)
	s.Update(ErrFrameTooShort, nil)
	s.Update(errors.New("other"), nil)

	if s.BytesReceived != 42 {
		t.Errorf("BytesReceived: expected 42, got %d", s.BytesReceived)
	}
	if s.TotalFrames != 5 {
		t.Errorf("TotalFrames: expected 5, got %d", s.TotalFrames)
	}
	if s.ValidFrames != 2 {
		t.Errorf("ValidFrames: expected 2, got %d", s.ValidFrames)
	}
	if s.ChecksumErrors != 1 {
		t.Errorf("ChecksumErrors: expected 1, got %d", s.ChecksumErrors)
	}
	if s.ShortFrames != 1 {
		t.Errorf("ShortFrames: expected 1, got %d", s.ShortFrames)
	}
	if s.TelemetryEvents != 1 || s.DebugNotes != 1 || s.UnknownCommands != 1 {
		t.Errorf("event counters: telemetry=%d debug=%d unknown=%d", s.TelemetryEvents, s.DebugNotes, s.UnknownCommands)
	}
}

func TestStatistics_StringAndReset(t *testing.T) {
	s := NewStatistics()
	s.Update(&ChecksumError{}, nil)

	out := s.String()
	if !strings.Contains(out, "Checksum Errors:") {
		t.Errorf("summary should list checksum errors:\n%s", out)
	}

	s.Reset()
	if s.TotalFrames != 0 || s.ChecksumErrors != 0 {
		t.Errorf("reset should clear counters, got %+v", s)
	}
	if strings.Contains(s.String(), "Checksum Errors:") {
		t.Error("summary should omit zero checksum errors after reset")
	}
}
