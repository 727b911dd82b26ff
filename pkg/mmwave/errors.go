// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mmwave

import (
	"errors"
	"fmt"
)

var (
	ErrFrameTooShort    = errors.New("frame too short")
	ErrChecksumMismatch = errors.New("checksum mismatch")
	ErrPayloadUnderflow = errors.New("payload underflow")
)

// ChecksumError describes a frame whose checksum byte does not match its contents
type ChecksumError struct {
	Expected byte
	Received byte
	Frame    []byte
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("checksum mismatch: expected 0x%02X, got 0x%02X", e.Expected, e.Received)
}

// Is lets errors.Is match ErrChecksumMismatch
func (e *ChecksumError) Is(target error) bool {
	return target == ErrChecksumMismatch
}
