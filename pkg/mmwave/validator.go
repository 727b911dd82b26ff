// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mmwave

import "fmt"

// ValidateFrame checks a candidate frame and returns its payload: the frame
// without the 2-byte start marker and the trailing checksum and end marker.
//
// Frames shorter than MinFrameSize return ErrFrameTooShort. A checksum
// mismatch returns a *ChecksumError, which matches ErrChecksumMismatch.
// The returned payload aliases frame.
func ValidateFrame(frame []byte) ([]byte, error) {
	if len(frame) < MinFrameSize {
		return nil, fmt.Errorf("%w: %d bytes (min %d)", ErrFrameTooShort, len(frame), MinFrameSize)
	}

	// Checksum sits between the payload and the end marker
	pos := MarkerSize + len(frame) - FrameOverhead
	expected := Checksum(frame[:pos])
	if frame[pos] != expected {
		return nil, &ChecksumError{
			Expected: expected,
			Received: frame[pos],
			Frame:    frame,
		}
	}

	return frame[MarkerSize:pos], nil
}
