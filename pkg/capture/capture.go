// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package capture records raw inbound byte chunks to a CBOR stream and
// replays them later. Chunk boundaries are kept so a replay reproduces the
// original read pattern.
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
)

// Record is one chunk as read from a port.
// Encoded as a CBOR map with integer keys: {1: port, 2: time, 3: data}.
type Record struct {
	Port string    `cbor:"1,keyasint"`
	Time time.Time `cbor:"2,keyasint"`
	Data []byte    `cbor:"3,keyasint"`
}

var encMode = func() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}()

// Writer appends records to a stream. It is safe for concurrent use.
type Writer struct {
	mu  sync.Mutex
	enc *cbor.Encoder
	w   io.Writer
}

// NewWriter creates a capture writer on w
func NewWriter(w io.Writer) *Writer {
	return &Writer{enc: encMode.NewEncoder(w), w: w}
}

// Write encodes one record
func (w *Writer) Write(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(rec); err != nil {
		return fmt.Errorf("failed to encode capture record: %w", err)
	}
	return nil
}

// Close closes the underlying writer if it is an io.Closer
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if c, ok := w.w.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Reader decodes records from a stream
type Reader struct {
	dec *cbor.Decoder
}

// NewReader creates a capture reader on r
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF at the end of the stream
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("failed to decode capture record: %w", err)
	}
	return rec, nil
}

// ReadAll returns every remaining record
func (r *Reader) ReadAll() ([]Record, error) {
	var records []Record
	for {
		rec, err := r.Next()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return records, err
		}
		records = append(records, rec)
	}
}

// ByPort groups records by port label, keeping their order
func ByPort(records []Record) map[string][]Record {
	out := make(map[string][]Record)
	for _, rec := range records {
		out[rec.Port] = append(out[rec.Port], rec)
	}
	return out
}
