// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mmwave

import (
	"encoding/binary"
	"fmt"
	"sort"
	"strconv"
)

// Command is an outbound command pair with its argument bytes
type Command struct {
	Cmd  uint8
	Sub  uint8
	Args []byte
}

// Frame returns the wire bytes for the command
func (c Command) Frame() []byte {
	return BuildCommand(c.Cmd, c.Sub, c.Args)
}

func (c Command) String() string {
	return fmt.Sprintf("%02X %02X [%s]", c.Cmd, c.Sub, hexString(c.Args))
}

func query(cmd, sub uint8) Command {
	return Command{Cmd: cmd, Sub: sub, Args: []byte{QueryByte}}
}

func toggle(cmd, sub uint8, on bool) Command {
	var v byte
	if on {
		v = 1
	}
	return Command{Cmd: cmd, Sub: sub, Args: []byte{v}}
}

// NewQueryProductModel requests the product model string (0x02 0xA1)
func NewQueryProductModel() Command { return query(CmdProductInfo, SubProductModel) }

// NewQueryProductID requests the product ID string (0x02 0xA2)
func NewQueryProductID() Command { return query(CmdProductInfo, SubProductID) }

// NewQueryHardwareModel requests the hardware model string (0x02 0xA3)
func NewQueryHardwareModel() Command { return query(CmdProductInfo, SubHardwareModel) }

// NewQueryFirmwareVersion requests the firmware version string (0x02 0xA4)
func NewQueryFirmwareVersion() Command { return query(CmdProductInfo, SubFirmwareVersion) }

// NewQueryInitStatus asks whether module initialisation has completed (0x05 0x81)
func NewQueryInitStatus() Command { return query(CmdWorkStatus, SubInitStatus) }

// NewQueryInstallAngle requests the installation angle (0x06 0x81)
func NewQueryInstallAngle() Command { return query(CmdInstallation, SubQueryAngle) }

// NewQueryInstallHeight requests the installation height (0x06 0x82)
func NewQueryInstallHeight() Command { return query(CmdInstallation, SubQueryHeight) }

// NewQueryFallDuration requests the fall confirmation time (0x83 0x8C)
func NewQueryFallDuration() Command { return query(CmdFall, SubFallDurationQuery) }

// NewSetInstallAngle sets the installation angle in degrees (0x06 0x01).
// Each axis is sent as a big-endian u16.
func NewSetInstallAngle(x, y, z uint16) Command {
	args := make([]byte, 6)
	binary.BigEndian.PutUint16(args[0:2], x)
	binary.BigEndian.PutUint16(args[2:4], y)
	binary.BigEndian.PutUint16(args[4:6], z)
	return Command{Cmd: CmdInstallation, Sub: SubSetAngle, Args: args}
}

// NewSetInstallHeight sets the installation height in centimetres (0x06 0x02)
func NewSetInstallHeight(height uint16) Command {
	args := binary.BigEndian.AppendUint16(nil, height)
	return Command{Cmd: CmdInstallation, Sub: SubSetHeight, Args: args}
}

// NewSetFallDuration sets the fall confirmation time in seconds (0x83 0x0C)
func NewSetFallDuration(seconds uint32) Command {
	args := binary.BigEndian.AppendUint32(nil, seconds)
	return Command{Cmd: CmdFall, Sub: SubFallDurationSet, Args: args}
}

// NewSetPresence switches presence detection (0x80 0x00)
func NewSetPresence(on bool) Command { return toggle(CmdPresence, SubPresenceSwitch, on) }

// NewSetTraceTracking switches trace tracking (0x82 0x00)
func NewSetTraceTracking(on bool) Command { return toggle(CmdTrace, SubTraceSwitch, on) }

// NewSetFallDetection switches fall detection (0x83 0x00)
func NewSetFallDetection(on bool) Command { return toggle(CmdFall, SubFallSwitch, on) }

// NewSetStandStill switches stand-still detection (0x83 0x0B)
func NewSetStandStill(on bool) Command { return toggle(CmdFall, SubStandStillSwitch, on) }

// CommandSpec describes a named command for command-line use
type CommandSpec struct {
	Usage string
	NArgs int
	Build func(args []string) (Command, error)
}

// Commands maps command names to their builders
var Commands = map[string]CommandSpec{
	"product-model":     noArgs(NewQueryProductModel),
	"product-id":        noArgs(NewQueryProductID),
	"hardware-model":    noArgs(NewQueryHardwareModel),
	"firmware-version":  noArgs(NewQueryFirmwareVersion),
	"init-status":       noArgs(NewQueryInitStatus),
	"get-angle":         noArgs(NewQueryInstallAngle),
	"get-height":        noArgs(NewQueryInstallHeight),
	"get-fall-duration": noArgs(NewQueryFallDuration),
	"set-angle": {
		Usage: "set-angle <x> <y> <z>",
		NArgs: 3,
		Build: func(args []string) (Command, error) {
			var v [3]uint16
			for i := range v {
				n, err := parseUint(args[i], 16)
				if err != nil {
					return Command{}, err
				}
				v[i] = uint16(n)
			}
			return NewSetInstallAngle(v[0], v[1], v[2]), nil
		},
	},
	"set-height": {
		Usage: "set-height <cm>",
		NArgs: 1,
		Build: func(args []string) (Command, error) {
			n, err := parseUint(args[0], 16)
			if err != nil {
				return Command{}, err
			}
			return NewSetInstallHeight(uint16(n)), nil
		},
	},
	"set-fall-duration": {
		Usage: "set-fall-duration <seconds>",
		NArgs: 1,
		Build: func(args []string) (Command, error) {
			n, err := parseUint(args[0], 32)
			if err != nil {
				return Command{}, err
			}
			return NewSetFallDuration(uint32(n)), nil
		},
	},
	"presence":       toggleSpec("presence", NewSetPresence),
	"trace-tracking": toggleSpec("trace-tracking", NewSetTraceTracking),
	"fall-detection": toggleSpec("fall-detection", NewSetFallDetection),
	"stand-still":    toggleSpec("stand-still", NewSetStandStill),
}

// CommandNames returns the sorted command names
func CommandNames() []string {
	names := make([]string, 0, len(Commands))
	for name := range Commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// BuildNamedCommand looks up name and builds it from args
func BuildNamedCommand(name string, args []string) (Command, error) {
	spec, ok := Commands[name]
	if !ok {
		return Command{}, fmt.Errorf("unknown command %q", name)
	}
	if len(args) != spec.NArgs {
		usage := spec.Usage
		if usage == "" {
			usage = name
		}
		return Command{}, fmt.Errorf("usage: %s", usage)
	}
	return spec.Build(args)
}

func noArgs(fn func() Command) CommandSpec {
	return CommandSpec{
		Build: func([]string) (Command, error) { return fn(), nil },
	}
}

func toggleSpec(name string, fn func(bool) Command) CommandSpec {
	return CommandSpec{
		Usage: name + " <on|off>",
		NArgs: 1,
		Build: func(args []string) (Command, error) {
			switch args[0] {
			case "on", "1", "true":
				return fn(true), nil
			case "off", "0", "false":
				return fn(false), nil
			}
			return Command{}, fmt.Errorf("invalid switch value %q (want on or off)", args[0])
		},
	}
}

func parseUint(s string, bits int) (uint64, error) {
	n, err := strconv.ParseUint(s, 0, bits)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", s, err)
	}
	return n, nil
}
