// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package mmwave

import "bytes"

var (
	startMarker = []byte{StartByte1, StartByte2}
	endMarker   = []byte{EndByte1, EndByte2}
)

// Extractor accumulates raw bytes from a stream and yields complete candidate
// frames bounded by the start and end markers. It is not safe for concurrent
// use; each port owns its own Extractor.
//
// The buffer is unbounded: a start marker with no end marker keeps every
// following byte until an end marker arrives. Capping it would make the
// output depend on how the stream was chunked.
type Extractor struct {
	buf []byte
}

// NewExtractor creates an empty frame extractor
func NewExtractor() *Extractor {
	return &Extractor{buf: make([]byte, 0, 256)}
}

// Feed appends chunk to the buffer and returns every complete candidate frame
// now available, in arrival order. The returned frames do not alias the
// internal buffer. Feed never blocks; an incomplete frame stays buffered until
// the next call.
func (e *Extractor) Feed(chunk []byte) [][]byte {
	e.buf = append(e.buf, chunk...)

	var frames [][]byte
	for {
		start := bytes.Index(e.buf, startMarker)
		if start < 0 {
			e.dropGarbage()
			return frames
		}

		rel := bytes.Index(e.buf[start+2:], endMarker)
		if rel < 0 {
			// Incomplete: keep from the start marker onward
			e.consume(start)
			return frames
		}
		end := start + 2 + rel

		frame := make([]byte, end+2-start)
		copy(frame, e.buf[start:end+2])
		frames = append(frames, frame)

		e.consume(end + 2)
	}
}

// Buffered returns the number of bytes waiting for a complete frame
func (e *Extractor) Buffered() int {
	return len(e.buf)
}

// Reset discards all buffered bytes
func (e *Extractor) Reset() {
	e.buf = e.buf[:0]
}

// dropGarbage discards bytes that cannot begin a frame, keeping a trailing
// first start byte that may pair with the next chunk.
func (e *Extractor) dropGarbage() {
	if n := len(e.buf); n > 0 && e.buf[n-1] == StartByte1 {
		e.consume(n - 1)
		return
	}
	e.buf = e.buf[:0]
}

// consume removes the first n bytes from the buffer
func (e *Extractor) consume(n int) {
	if n == 0 {
		return
	}
	remaining := copy(e.buf, e.buf[n:])
	e.buf = e.buf[:remaining]
}
