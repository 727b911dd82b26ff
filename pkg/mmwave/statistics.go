// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mmwave

import (
	"errors"
	"fmt"
	"time"
)

// Statistics tracks frame statistics and error rates for one stream
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	BytesReceived   uint64
	TotalFrames     uint64
	ValidFrames     uint64
	ChecksumErrors  uint64
	ShortFrames     uint64
	TelemetryEvents uint64
	DebugNotes      uint64
	UnknownCommands uint64

	// Rates (calculated)
	FrameRate float64 // frames/sec
	ErrorRate float64 // errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// AddBytes records n raw bytes received
func (s *Statistics) AddBytes(n int) {
	s.BytesReceived += uint64(n)
}

// Update records one candidate frame, its validation error and the events
// decoded from it
func (s *Statistics) Update(validateErr error, events []Event) {
	s.TotalFrames++
	s.LastUpdateTime = time.Now()

	if validateErr != nil {
		switch {
		case errors.Is(validateErr, ErrChecksumMismatch):
			s.ChecksumErrors++
		case errors.Is(validateErr, ErrFrameTooShort):
			s.ShortFrames++
		}
		return
	}

	s.ValidFrames++
	for _, ev := range events {
		switch ev.(type) {
		case DebugNote:
			s.DebugNotes++
		case UnknownCommand:
			s.UnknownCommands++
		default:
			s.TelemetryEvents++
		}
	}
}

// CalculateRates calculates frame and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.FrameRate = float64(s.TotalFrames) / elapsed
		s.ErrorRate = float64(s.ChecksumErrors+s.ShortFrames) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var validPercent, checksumPercent float64
	if s.TotalFrames > 0 {
		validPercent = float64(s.ValidFrames) * 100.0 / float64(s.TotalFrames)
		checksumPercent = float64(s.ChecksumErrors) * 100.0 / float64(s.TotalFrames)
	}

	elapsed := time.Since(s.StartTime)

	result := fmt.Sprintf("=== Statistics (%.0f seconds) ===\n", elapsed.Seconds())
	result += fmt.Sprintf("Bytes Received:  %8d\n", s.BytesReceived)
	result += fmt.Sprintf("Total Frames:    %8d\n", s.TotalFrames)
	result += fmt.Sprintf("Valid Frames:    %8d (%.1f%%)\n", s.ValidFrames, validPercent)

	if s.ChecksumErrors > 0 {
		result += fmt.Sprintf("Checksum Errors: %8d (%.1f%%)\n", s.ChecksumErrors, checksumPercent)
	}
	if s.ShortFrames > 0 {
		result += fmt.Sprintf("Short Frames:    %8d\n", s.ShortFrames)
	}
	result += fmt.Sprintf("Telemetry:       %8d\n", s.TelemetryEvents)
	if s.DebugNotes > 0 {
		result += fmt.Sprintf("Debug Notes:     %8d\n", s.DebugNotes)
	}
	if s.UnknownCommands > 0 {
		result += fmt.Sprintf("Unknown Cmds:    %8d\n", s.UnknownCommands)
	}

	result += fmt.Sprintf("Frame Rate:      %8.1f frames/sec\n", s.FrameRate)
	result += fmt.Sprintf("Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	result += "================================\n"

	return result
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
