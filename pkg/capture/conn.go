// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package capture

import (
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Tap wraps a port connection and records every chunk it reads. A failing
// capture writer never fails the read: the error is logged and the chunk is
// dropped from the capture.
type Tap struct {
	io.ReadWriteCloser
	port    string
	w       *Writer
	now     func() time.Time
	log     *zap.Logger
	limiter *rate.Limiter
	dropped atomic.Uint64
}

// NewTap records reads from conn under the given port label. log may be nil.
func NewTap(conn io.ReadWriteCloser, port string, w *Writer, log *zap.Logger) *Tap {
	if log == nil {
		log = zap.NewNop()
	}
	return &Tap{
		ReadWriteCloser: conn,
		port:            port,
		w:               w,
		now:             time.Now,
		log:             log.With(zap.String("port", port)),
		limiter:         rate.NewLimiter(rate.Every(10*time.Second), 1),
	}
}

func (t *Tap) Read(p []byte) (int, error) {
	n, err := t.ReadWriteCloser.Read(p)
	if n > 0 {
		data := make([]byte, n)
		copy(data, p[:n])
		if werr := t.w.Write(Record{Port: t.port, Time: t.now(), Data: data}); werr != nil {
			dropped := t.dropped.Add(1)
			if t.limiter.Allow() {
				t.log.Warn("capture write failed", zap.Error(werr), zap.Uint64("dropped", dropped))
			}
		}
	}
	return n, err
}

// Dropped returns the number of chunks that could not be recorded
func (t *Tap) Dropped() uint64 {
	return t.dropped.Load()
}

// Replay is a connection that returns recorded chunks one per Read and then
// io.EOF. Writes are discarded.
type Replay struct {
	mu      sync.Mutex
	records []Record
	pending []byte
	closed  bool
}

// NewReplay creates a replay connection over records
func NewReplay(records []Record) *Replay {
	return &Replay{records: records}
}

func (r *Replay) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return 0, io.ErrClosedPipe
	}
	if len(r.pending) == 0 {
		if len(r.records) == 0 {
			return 0, io.EOF
		}
		r.pending = r.records[0].Data
		r.records = r.records[1:]
	}

	n := copy(p, r.pending)
	r.pending = r.pending[n:]
	return n, nil
}

func (r *Replay) Write(p []byte) (int, error) {
	return len(p), nil
}

func (r *Replay) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	return nil
}
