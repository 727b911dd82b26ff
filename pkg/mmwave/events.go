// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mmwave

// Event is a decoded telemetry event. Concrete types are the structs in this
// file; consumers switch on the type.
type Event interface {
	// EventName returns a short stable identifier for the event kind,
	// suitable for metric labels and log fields.
	EventName() string
}

// ProductField identifies which product information string was reported
type ProductField int

const (
	ProductModel ProductField = iota
	ProductID
	ProductHardwareModel
	ProductFirmwareVersion
)

var productFieldNames = map[ProductField]string{
	ProductModel:           "model",
	ProductID:              "id",
	ProductHardwareModel:   "hardware_model",
	ProductFirmwareVersion: "firmware_version",
}

func (f ProductField) String() string {
	if name, ok := productFieldNames[f]; ok {
		return name
	}
	return "unknown"
}

// WorkState is the radar module's working status
type WorkState int

const (
	WorkInitComplete WorkState = iota
	WorkRadarFault
	WorkInited
	WorkUninit
)

var workStateNames = map[WorkState]string{
	WorkInitComplete: "init_complete",
	WorkRadarFault:   "radar_fault",
	WorkInited:       "inited",
	WorkUninit:       "uninit",
}

func (s WorkState) String() string {
	if name, ok := workStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// MotionStyle classifies a presence or motion report
type MotionStyle int

const (
	StylePresence MotionStyle = iota
	StyleNoPresence
	StyleMotionHigh
	StyleMotionLow
	StyleMagnitude
)

var motionStyleNames = map[MotionStyle]string{
	StylePresence:   "presence",
	StyleNoPresence: "no_presence",
	StyleMotionHigh: "motion_high",
	StyleMotionLow:  "motion_low",
	StyleMagnitude:  "magnitude",
}

func (s MotionStyle) String() string {
	if name, ok := motionStyleNames[s]; ok {
		return name
	}
	return "unknown"
}

// ProductInfo carries one product information string
type ProductInfo struct {
	Field ProductField
	Value string
}

// WorkingStatus reports module initialisation or fault state
type WorkingStatus struct {
	State WorkState
}

// InstallationAngle is the mounting angle in degrees
type InstallationAngle struct {
	X, Y, Z uint16
}

// InstallationHeight is the mounting height in centimetres
type InstallationHeight struct {
	Height uint16
}

// RadarRange is the detection boundary reported by the module
type RadarRange struct {
	XPos, XNeg, YPos, YNeg int16
}

// PresenceState is the presence detection switch state
type PresenceState struct {
	On bool
}

// MotionState is a presence/motion classification or a motion magnitude.
// Value is only meaningful for StyleMagnitude.
type MotionState struct {
	Style MotionStyle
	Value uint8
}

// TraceTracking is the trace tracking switch state
type TraceTracking struct {
	On bool
}

// TraceCount acknowledges the number of tracked targets
type TraceCount struct {
	Count uint8
}

// RadarTarget is one tracked target from a multi-target block
type RadarTarget struct {
	Index    uint8
	Size     uint8
	Feature  uint8
	X        int16
	Y        int16
	Height   int16
	Velocity int16
}

// FallDetection is the fall detection switch state
type FallDetection struct {
	On bool
}

// FallState reports whether a fall is currently detected
type FallState struct {
	Fallen bool
}

// FallAlert is raised once per fall report, and once when a fall is cancelled
type FallAlert struct {
	Cancelled bool
}

// FallPosition is where a fall occurred, or where it was cancelled
type FallPosition struct {
	X, Y      uint16
	Cancelled bool
}

// FallDuration is the configured fall confirmation time in seconds
type FallDuration struct {
	Seconds uint32
}

// StandStillState is a stand-still report (Setting false) or the stand-still
// switch acknowledgement (Setting true)
type StandStillState struct {
	Active  bool
	Setting bool
}

// DebugNote is a diagnostic with no telemetry content
type DebugNote struct {
	Text string
}

// UnknownCommand is a payload whose command pair has no decoder
type UnknownCommand struct {
	Cmd uint8
	Sub uint8
	Raw []byte
}

func (ProductInfo) EventName() string        { return "product_info" }
func (WorkingStatus) EventName() string      { return "working_status" }
func (InstallationAngle) EventName() string  { return "installation_angle" }
func (InstallationHeight) EventName() string { return "installation_height" }
func (RadarRange) EventName() string         { return "radar_range" }
func (PresenceState) EventName() string      { return "presence_state" }
func (MotionState) EventName() string        { return "motion_state" }
func (TraceTracking) EventName() string      { return "trace_tracking" }
func (TraceCount) EventName() string         { return "trace_count" }
func (RadarTarget) EventName() string        { return "radar_target" }
func (FallDetection) EventName() string      { return "fall_detection" }
func (FallState) EventName() string          { return "fall_state" }
func (FallAlert) EventName() string          { return "fall_alert" }
func (FallPosition) EventName() string       { return "fall_position" }
func (FallDuration) EventName() string       { return "fall_duration" }
func (StandStillState) EventName() string    { return "stand_still_state" }
func (DebugNote) EventName() string          { return "debug_note" }
func (UnknownCommand) EventName() string     { return "unknown_command" }

// IsTelemetry reports whether ev carries device telemetry, as opposed to a
// diagnostic (DebugNote or UnknownCommand)
func IsTelemetry(ev Event) bool {
	switch ev.(type) {
	case DebugNote, UnknownCommand:
		return false
	}
	return true
}
