// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mmwave

import (
	"encoding/binary"
	"fmt"
	"strings"
)

// Decode turns one validated payload into zero or more events.
//
// Dispatch is on (command, sub-command). Every arm checks the payload length
// before reading a fixed offset; a short payload yields a DebugNote instead of
// telemetry. Unknown command pairs yield an UnknownCommand. Decode never
// fails and never retains payload.
func Decode(payload []byte) []Event {
	if len(payload) == 0 {
		return []Event{underflow("payload", payload, 2)}
	}
	if len(payload) < 2 {
		if knownCommand(payload[0]) {
			return []Event{underflow("payload", payload, 2)}
		}
		return []Event{unknown(payload)}
	}

	cmd, sub := payload[0], payload[1]
	switch cmd {
	case CmdSystem:
		return decodeSystem(payload)
	case CmdProductInfo:
		return decodeProductInfo(payload)
	case CmdWorkStatus:
		return decodeWorkStatus(payload)
	case CmdInstallation:
		return decodeInstallation(payload)
	case CmdRadarRange:
		if sub == SubRangeReport {
			return decodeRadarRange(payload)
		}
	case CmdPresence:
		return decodePresence(payload)
	case CmdTrace:
		return decodeTrace(payload)
	case CmdFall:
		return decodeFall(payload)
	}

	return []Event{unknown(payload)}
}

// ============================================================
// Per-command decoders
// ============================================================

func decodeSystem(p []byte) []Event {
	switch p[1] {
	case SubHeartbeat:
		return []Event{DebugNote{Text: "heartbeat"}}
	case SubModuleReset:
		return []Event{DebugNote{Text: "module reset"}}
	}
	return []Event{unknown(p)}
}

func decodeProductInfo(p []byte) []Event {
	switch p[1] {
	case SubProductModel:
		if len(p) < 11 {
			return []Event{underflow("product model", p, 11)}
		}
		return []Event{ProductInfo{Field: ProductModel, Value: tail(p, 7)}}

	case SubProductID:
		if len(p) < 7 {
			return []Event{underflow("product id", p, 7)}
		}
		n := int(binary.LittleEndian.Uint16(p[2:4]))
		end := min(DataOffset+n, len(p))
		return []Event{ProductInfo{Field: ProductID, Value: text(p[DataOffset:end])}}

	case SubHardwareModel:
		if len(p) < 8 {
			return []Event{underflow("hardware model", p, 8)}
		}
		return []Event{ProductInfo{Field: ProductHardwareModel, Value: tail(p, 4)}}

	case SubFirmwareVersion:
		if len(p) < 7 {
			return []Event{underflow("firmware version", p, 7)}
		}
		return []Event{ProductInfo{Field: ProductFirmwareVersion, Value: tail(p, 16)}}
	}
	return []Event{unknown(p)}
}

func decodeWorkStatus(p []byte) []Event {
	switch p[1] {
	case SubInitComplete:
		return []Event{WorkingStatus{State: WorkInitComplete}}

	case SubRadarFault:
		events := []Event{WorkingStatus{State: WorkRadarFault}}
		if len(p) > 6 {
			events = append(events, DebugNote{Text: fmt.Sprintf("radar fault code 0x%02X", p[6])})
		}
		return events

	case SubInitStatus:
		if len(p) < 5 {
			return []Event{underflow("init status", p, 5)}
		}
		state := WorkUninit
		if p[4] == 1 {
			state = WorkInited
		}
		return []Event{WorkingStatus{State: state}}
	}
	return []Event{unknown(p)}
}

func decodeInstallation(p []byte) []Event {
	switch p[1] {
	case SubQueryAngle, SubSetAngle:
		if len(p) < 10 {
			return []Event{underflow("installation angle", p, 10)}
		}
		return []Event{InstallationAngle{
			X: binary.BigEndian.Uint16(p[4:6]),
			Y: binary.BigEndian.Uint16(p[6:8]),
			Z: binary.BigEndian.Uint16(p[8:10]),
		}}

	case SubQueryHeight, SubSetHeight:
		if len(p) < 6 {
			return []Event{underflow("installation height", p, 6)}
		}
		return []Event{InstallationHeight{Height: binary.BigEndian.Uint16(p[4:6])}}

	case SubInstallBeat:
		return []Event{DebugNote{Text: "installation heartbeat " + hexString(p)}}
	}
	return []Event{unknown(p)}
}

func decodeRadarRange(p []byte) []Event {
	if len(p) < 14 {
		return []Event{underflow("radar range", p, 14)}
	}
	return []Event{RadarRange{
		XPos: int16(binary.LittleEndian.Uint16(p[6:8])),
		XNeg: int16(binary.LittleEndian.Uint16(p[8:10])),
		YPos: int16(binary.LittleEndian.Uint16(p[10:12])),
		YNeg: int16(binary.LittleEndian.Uint16(p[12:14])),
	}}
}

func decodePresence(p []byte) []Event {
	switch p[1] {
	case SubPresenceSwitch, SubPresenceClass, SubMotionClass, SubMotionValue:
	default:
		return []Event{unknown(p)}
	}
	if len(p) < 5 {
		return []Event{underflow("presence", p, 5)}
	}

	val := p[4]
	switch p[1] {
	case SubPresenceSwitch:
		return []Event{PresenceState{On: val == 1}}
	case SubPresenceClass:
		if val != 0 {
			return []Event{MotionState{Style: StylePresence}}
		}
		return []Event{MotionState{Style: StyleNoPresence}}
	case SubMotionClass:
		if val != 0 {
			return []Event{MotionState{Style: StyleMotionHigh}}
		}
		return []Event{MotionState{Style: StyleMotionLow}}
	default:
		return []Event{MotionState{Style: StyleMagnitude, Value: val}}
	}
}

func decodeTrace(p []byte) []Event {
	switch p[1] {
	case SubTraceSwitch:
		if len(p) < 5 {
			return []Event{underflow("trace tracking", p, 5)}
		}
		return []Event{TraceTracking{On: p[4] == 1}}

	case SubTraceCount:
		if len(p) < 5 {
			return []Event{underflow("trace count", p, 5)}
		}
		return []Event{TraceCount{Count: p[4]}}

	case SubTraceTargets:
		return decodeTargets(p)

	case SubTraceDebug0, SubTraceDebug1, SubTraceDebug2:
		return []Event{DebugNote{Text: fmt.Sprintf("trace 0x%02X %s", p[1], hexString(p))}}
	}
	return []Event{unknown(p)}
}

// decodeTargets decodes a multi-target block. The big-endian length at offset
// 2 gives the size of the record area; records are TargetRecordSize bytes.
// Out-of-range velocity is clamped to 0. A target with an out-of-range
// position is dropped and decoding moves on to the next record.
func decodeTargets(p []byte) []Event {
	if len(p) < HeaderSize {
		return []Event{underflow("target block", p, HeaderSize)}
	}

	length := int(binary.BigEndian.Uint16(p[2:4]))
	count := length / TargetRecordSize

	var events []Event
	for i := 0; i < count; i++ {
		off := DataOffset + i*TargetRecordSize
		if off+TargetRecordSize > len(p) {
			events = append(events, DebugNote{
				Text: fmt.Sprintf("target %d of %d truncated: %v", i, count, ErrPayloadUnderflow),
			})
			break
		}
		rec := p[off : off+TargetRecordSize]

		target := RadarTarget{
			Index:    rec[0],
			Size:     rec[1],
			Feature:  rec[2],
			X:        int16(binary.BigEndian.Uint16(rec[3:5])),
			Y:        int16(binary.BigEndian.Uint16(rec[5:7])),
			Height:   int16(binary.BigEndian.Uint16(rec[7:9])),
			Velocity: int16(binary.BigEndian.Uint16(rec[9:11])),
		}

		if isNoise(target.Velocity) {
			target.Velocity = 0
		}
		if isNoise(target.X) || isNoise(target.Y) {
			events = append(events, DebugNote{
				Text: fmt.Sprintf("target %d dropped: invalid coordinate x=%d y=%d", target.Index, target.X, target.Y),
			})
			continue
		}

		events = append(events, target)
	}
	return events
}

func decodeFall(p []byte) []Event {
	switch p[1] {
	case SubFallSwitch:
		if len(p) < 5 {
			return []Event{underflow("fall detection", p, 5)}
		}
		return []Event{FallDetection{On: p[4] != 0}}

	case SubFallState:
		if len(p) < 5 {
			return []Event{underflow("fall state", p, 5)}
		}
		fallen := p[4] == 1
		if fallen {
			return []Event{FallState{Fallen: true}, FallAlert{}}
		}
		return []Event{FallState{Fallen: false}}

	case SubStandStillState, SubStandStillSwitch:
		if len(p) < 5 {
			return []Event{underflow("stand still", p, 5)}
		}
		return []Event{StandStillState{Active: p[4] != 0, Setting: p[1] == SubStandStillSwitch}}

	case SubFallDurationSet:
		if len(p) < 8 {
			return []Event{underflow("fall duration setting", p, 8)}
		}
		return []Event{DebugNote{Text: fmt.Sprintf("fall duration setting %d", p[7])}}

	case SubFallDurationQuery:
		if len(p) < 8 {
			return []Event{underflow("fall duration", p, 8)}
		}
		return []Event{FallDuration{Seconds: binary.BigEndian.Uint32(p[4:8])}}

	case SubFallPosition:
		if len(p) < 8 {
			return []Event{underflow("fall position", p, 8)}
		}
		return []Event{FallPosition{
			X: binary.BigEndian.Uint16(p[4:6]),
			Y: binary.BigEndian.Uint16(p[6:8]),
		}}

	case SubFallCancel:
		if len(p) < 8 {
			return []Event{underflow("fall cancel", p, 8)}
		}
		return []Event{
			FallPosition{
				X:         binary.BigEndian.Uint16(p[4:6]),
				Y:         binary.BigEndian.Uint16(p[6:8]),
				Cancelled: true,
			},
			FallState{Fallen: false},
			FallAlert{Cancelled: true},
		}
	}
	return []Event{unknown(p)}
}

// ============================================================
// Helpers
// ============================================================

func knownCommand(cmd byte) bool {
	switch cmd {
	case CmdSystem, CmdProductInfo, CmdWorkStatus, CmdInstallation,
		CmdRadarRange, CmdPresence, CmdTrace, CmdFall:
		return true
	}
	return false
}

func isNoise(v int16) bool {
	return v >= NoiseLimit || v <= -NoiseLimit
}

// tail returns the last n bytes of p as text, never reaching into the header
func tail(p []byte, n int) string {
	start := max(len(p)-n, DataOffset)
	return text(p[start:])
}

// text converts device string bytes, trimming NUL padding and spaces
func text(b []byte) string {
	return strings.TrimRight(string(b), "\x00 ")
}

func underflow(field string, p []byte, need int) DebugNote {
	return DebugNote{
		Text: fmt.Sprintf("%s: %v (%d < %d bytes) %s", field, ErrPayloadUnderflow, len(p), need, hexString(p)),
	}
}

func unknown(p []byte) UnknownCommand {
	raw := make([]byte, len(p))
	copy(raw, p)
	ev := UnknownCommand{Cmd: p[0], Raw: raw}
	if len(p) > 1 {
		ev.Sub = p[1]
	}
	return ev
}

// hexString formats bytes as space separated upper-case hex
func hexString(b []byte) string {
	var sb strings.Builder
	for i, v := range b {
		if i > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%02X", v)
	}
	return sb.String()
}
