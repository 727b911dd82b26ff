// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package mmwave implements the framing and payload protocol spoken by the
// 60 GHz mmWave fall-detection radar module over its UART.
//
// Inbound frames look like:
//
//	0x53 0x59 | command | sub | length (2) | data... | checksum | 0x54 0x43
//
// The checksum is the additive sum (mod 256) of every byte before it. This
// package provides frame extraction from an unbounded byte stream, frame
// validation, payload decoding into typed events, and outbound frame
// construction. It performs no I/O.
package mmwave

// Protocol framing bytes
const (
	StartByte1 = 0x53
	StartByte2 = 0x59
	EndByte1   = 0x54
	EndByte2   = 0x43
)

// Frame layout
const (
	MarkerSize    = 2                 // start and end markers are two bytes each
	FrameOverhead = 2*MarkerSize + 1  // both markers + checksum
	MinFrameSize  = FrameOverhead + 1 // at least one payload byte
	HeaderSize    = 4                 // command + sub + length (2)
	DataOffset    = 4                 // first data byte inside a payload
)

// Command bytes
const (
	CmdSystem       = 0x01
	CmdProductInfo  = 0x02
	CmdWorkStatus   = 0x05
	CmdInstallation = 0x06
	CmdRadarRange   = 0x07
	CmdPresence     = 0x80
	CmdTrace        = 0x82
	CmdFall         = 0x83
)

// Sub-commands - CmdSystem
const (
	SubHeartbeat   = 0x01
	SubModuleReset = 0x02
)

// Sub-commands - CmdProductInfo
const (
	SubProductModel    = 0xA1
	SubProductID       = 0xA2
	SubHardwareModel   = 0xA3
	SubFirmwareVersion = 0xA4
)

// Sub-commands - CmdWorkStatus
const (
	SubInitComplete = 0x01
	SubRadarFault   = 0x02
	SubInitStatus   = 0x81
)

// Sub-commands - CmdInstallation
const (
	SubSetAngle    = 0x01
	SubSetHeight   = 0x02
	SubInstallBeat = 0x04
	SubQueryAngle  = 0x81
	SubQueryHeight = 0x82
)

// Sub-commands - CmdRadarRange
const (
	SubRangeReport = 0x09
)

// Sub-commands - CmdPresence
const (
	SubPresenceSwitch = 0x00
	SubPresenceClass  = 0x01
	SubMotionClass    = 0x02
	SubMotionValue    = 0x03
)

// Sub-commands - CmdTrace
const (
	SubTraceSwitch  = 0x00
	SubTraceCount   = 0x01
	SubTraceTargets = 0x02
	SubTraceDebug0  = 0x80
	SubTraceDebug1  = 0x81
	SubTraceDebug2  = 0x82
)

// Sub-commands - CmdFall
const (
	SubFallSwitch        = 0x00
	SubFallState         = 0x01
	SubStandStillState   = 0x05
	SubStandStillSwitch  = 0x0B
	SubFallDurationSet   = 0x0C
	SubFallPosition      = 0x16
	SubFallCancel        = 0x17
	SubFallDurationQuery = 0x8C
)

// Target record layout for CmdTrace/SubTraceTargets
const (
	TargetRecordSize = 11
	NoiseLimit       = 32000 // |value| >= NoiseLimit is sensor noise
)

// QueryByte is the single data byte carried by query commands.
const QueryByte = 0x0F
