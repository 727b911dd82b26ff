// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mmwave

import "fmt"

// FormatHex formats bytes as space separated upper-case hex
func FormatHex(b []byte) string {
	return hexString(b)
}

// FormatEvent returns a single-line human-readable description of an event
func FormatEvent(ev Event) string {
	switch e := ev.(type) {
	case ProductInfo:
		return fmt.Sprintf("PRODUCT_INFO: %s=%q", e.Field, e.Value)
	case WorkingStatus:
		return fmt.Sprintf("WORKING_STATUS: %s", e.State)
	case InstallationAngle:
		return fmt.Sprintf("INSTALL_ANGLE: x=%d° y=%d° z=%d°", e.X, e.Y, e.Z)
	case InstallationHeight:
		return fmt.Sprintf("INSTALL_HEIGHT: %d cm", e.Height)
	case RadarRange:
		return fmt.Sprintf("RADAR_RANGE: x+=%d x-=%d y+=%d y-=%d", e.XPos, e.XNeg, e.YPos, e.YNeg)
	case PresenceState:
		return fmt.Sprintf("PRESENCE: %s", onOff(e.On))
	case MotionState:
		if e.Style == StyleMagnitude {
			return fmt.Sprintf("MOTION: magnitude=%d", e.Value)
		}
		return fmt.Sprintf("MOTION: %s", e.Style)
	case TraceTracking:
		return fmt.Sprintf("TRACE_TRACKING: %s", onOff(e.On))
	case TraceCount:
		return fmt.Sprintf("TRACE_COUNT: %d", e.Count)
	case RadarTarget:
		return fmt.Sprintf("TARGET: #%d size=%d feature=%d x=%d y=%d h=%d v=%d",
			e.Index, e.Size, e.Feature, e.X, e.Y, e.Height, e.Velocity)
	case FallDetection:
		return fmt.Sprintf("FALL_DETECTION: %s", onOff(e.On))
	case FallState:
		if e.Fallen {
			return "FALL_STATE: FALLEN"
		}
		return "FALL_STATE: NOT FALLEN"
	case FallAlert:
		if e.Cancelled {
			return "FALL_ALERT: cancelled"
		}
		return "FALL_ALERT: fall detected"
	case FallPosition:
		if e.Cancelled {
			return fmt.Sprintf("FALL_CANCEL_POSITION: x=%d y=%d", e.X, e.Y)
		}
		return fmt.Sprintf("FALL_POSITION: x=%d y=%d", e.X, e.Y)
	case FallDuration:
		return fmt.Sprintf("FALL_DURATION: %ds", e.Seconds)
	case StandStillState:
		if e.Setting {
			return fmt.Sprintf("STAND_STILL_SETTING: %s", onOff(e.Active))
		}
		if e.Active {
			return "STAND_STILL: EXIST"
		}
		return "STAND_STILL: NONE"
	case DebugNote:
		return "DEBUG: " + e.Text
	case UnknownCommand:
		return fmt.Sprintf("UNKNOWN: cmd=0x%02X sub=0x%02X raw=[%s]", e.Cmd, e.Sub, hexString(e.Raw))
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%s: %+v", ev.EventName(), ev)
	}
}

func onOff(v bool) string {
	if v {
		return "ON"
	}
	return "OFF"
}
