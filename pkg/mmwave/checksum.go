// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mmwave

// Checksum calculates the additive checksum of data (sum of all bytes, mod 256).
// The device expects exactly this algorithm; it is not a CRC.
func Checksum(data []byte) byte {
	var sum byte
	for _, b := range data {
		sum += b
	}
	return sum
}

// VerifyChecksum reports whether the checksum byte at len-3 matches the sum of
// every byte before it. Frames shorter than MinFrameSize never verify.
func VerifyChecksum(frame []byte) bool {
	if len(frame) < MinFrameSize {
		return false
	}
	pos := len(frame) - 3
	return Checksum(frame[:pos]) == frame[pos]
}
