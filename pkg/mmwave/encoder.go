// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mmwave

import "encoding/binary"

// BuildFrame appends the checksum and end marker to body:
//
//	body | checksum(body) | 0x54 0x43
//
// It does not prepend the start marker; body must already carry any leading
// protocol bytes. Use BuildCommand to build a complete frame from a command
// pair. BuildFrame does not modify body.
func BuildFrame(body []byte) []byte {
	frame := make([]byte, 0, len(body)+FrameOverhead-MarkerSize)
	frame = append(frame, body...)
	frame = append(frame, Checksum(body), EndByte1, EndByte2)
	return frame
}

// BuildCommand builds a complete transmittable frame:
//
//	0x53 0x59 | cmd | sub | len(args) BE | args | checksum | 0x54 0x43
func BuildCommand(cmd, sub uint8, args []byte) []byte {
	body := make([]byte, MarkerSize+HeaderSize, MarkerSize+HeaderSize+len(args))
	body[0] = StartByte1
	body[1] = StartByte2
	body[2] = cmd
	body[3] = sub
	binary.BigEndian.PutUint16(body[4:6], uint16(len(args)))
	body = append(body, args...)
	return BuildFrame(body)
}
