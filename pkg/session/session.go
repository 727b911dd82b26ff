// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Package session runs the mmWave protocol engine against one port.
//
// A Session owns its frame extractor, decoder and statistics. Bytes are fed
// through extraction, validation and decoding synchronously, so events for a
// port are delivered in frame-arrival order. Events are handed to the
// listener through an unbounded queue; a slow listener never stalls the port.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Thermoquad/vigil/pkg/mmwave"
)

// State is the port session state
type State int32

const (
	StateClosed State = iota
	StateOpening
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	}
	return "unknown"
}

var (
	ErrNotOpen     = errors.New("port not open")
	ErrAlreadyOpen = errors.New("port already open")
)

// Opener establishes the transport for a port name
type Opener func(name string) (io.ReadWriteCloser, error)

// StatusEvent reports a session state change. Err is set when the change was
// caused by a transport failure.
type StatusEvent struct {
	State State
	Name  string
	Err   error
}

func (StatusEvent) EventName() string { return "port_status" }

// Message is an event stamped with the port it came from
type Message struct {
	Port      string
	SessionID uuid.UUID
	Time      time.Time
	Event     mmwave.Event
}

// Options configures a Session. The zero value is usable.
type Options struct {
	Logger  *zap.Logger
	Metrics *Metrics

	// DiagnosticRate limits checksum warnings in the log (per second).
	// Zero means 1/s with a burst of 5.
	DiagnosticRate  rate.Limit
	DiagnosticBurst int

	// ReadBufferSize is the chunk size used by Run. Zero means 256.
	ReadBufferSize int
}

// link is the state of one open transport. A new link is created on every
// successful open; Run and Close compare links to tell stale readers apart.
type link struct {
	id        uuid.UUID
	name      string
	conn      io.ReadWriteCloser
	extractor *mmwave.Extractor
}

// Session is the protocol engine for one port
type Session struct {
	label    string
	log      *zap.Logger
	metrics  *Metrics
	limiter  *rate.Limiter
	readSize int

	state  atomic.Int32
	link   atomic.Pointer[link]
	writeM sync.Mutex

	// emitMu orders link events against the closing StatusEvent
	emitMu sync.Mutex
	events *Queue[Message]

	statsMu sync.Mutex
	stats   *mmwave.Statistics
}

// New creates a closed session. label is stamped on every emitted message.
func New(label string, opts Options) *Session {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit, burst := opts.DiagnosticRate, opts.DiagnosticBurst
	if limit == 0 {
		limit = 1
	}
	if burst <= 0 {
		burst = 5
	}
	readSize := opts.ReadBufferSize
	if readSize <= 0 {
		readSize = 256
	}

	s := &Session{
		label:    label,
		log:      logger.With(zap.String("port", label)),
		metrics:  opts.Metrics,
		limiter:  rate.NewLimiter(limit, burst),
		readSize: readSize,
		events:   NewQueue[Message](),
		stats:    mmwave.NewStatistics(),
	}
	s.metrics.state(label, StateClosed)
	return s
}

// Label returns the port label
func (s *Session) Label() string {
	return s.label
}

// State returns the current session state
func (s *Session) State() State {
	return State(s.state.Load())
}

// ID returns the identifier of the current open session, or uuid.Nil
func (s *Session) ID() uuid.UUID {
	if l := s.link.Load(); l != nil {
		return l.id
	}
	return uuid.Nil
}

// Events returns the listener channel. It stays valid across re-opens and is
// closed by Shutdown.
func (s *Session) Events() <-chan Message {
	return s.events.Out()
}

// Stats returns a snapshot of the frame statistics since the last open
func (s *Session) Stats() mmwave.Statistics {
	s.statsMu.Lock()
	defer s.statsMu.Unlock()
	snapshot := *s.stats
	snapshot.CalculateRates()
	return snapshot
}

// Open establishes the transport for name. On failure the session stays
// closed, a StatusEvent carrying the error is emitted and the error returned.
// Opening an already open session emits a diagnostic and returns ErrAlreadyOpen.
// If Close runs before the open completes, the new transport is closed, the
// session stays closed and ErrNotOpen is returned.
func (s *Session) Open(name string, opener Opener) error {
	if !s.state.CompareAndSwap(int32(StateClosed), int32(StateOpening)) {
		s.emit(uuid.Nil, mmwave.DebugNote{Text: "port already open"})
		return ErrAlreadyOpen
	}
	s.metrics.state(s.label, StateOpening)

	conn, err := opener(name)
	if err != nil {
		s.setState(StateClosed)
		s.log.Error("failed to open port", zap.String("device", name), zap.Error(err))
		s.emit(uuid.Nil, StatusEvent{State: StateClosed, Name: name, Err: err})
		return fmt.Errorf("open %s: %w", name, err)
	}

	l := &link{
		id:        uuid.New(),
		name:      name,
		conn:      conn,
		extractor: mmwave.NewExtractor(),
	}
	s.link.Store(l)

	s.statsMu.Lock()
	s.stats.Reset()
	s.statsMu.Unlock()

	// A Close while opening wins
	s.emitMu.Lock()
	if !s.state.CompareAndSwap(int32(StateOpening), int32(StateOpen)) {
		s.emitMu.Unlock()
		s.closeLink(l, nil)
		return ErrNotOpen
	}
	s.metrics.state(s.label, StateOpen)
	s.emit(l.id, StatusEvent{State: StateOpen, Name: name})
	s.emitMu.Unlock()

	s.log.Info("port opened", zap.String("device", name), zap.Stringer("session_id", l.id))
	return nil
}

// Feed pushes a chunk of received bytes through extraction, validation and
// decoding, and returns the number of telemetry events produced. Chunks fed
// while the session is not open are ignored. Feed must not be called
// concurrently with Run.
func (s *Session) Feed(chunk []byte) int {
	l := s.link.Load()
	if l == nil || s.State() != StateOpen {
		return 0
	}
	return s.feed(l, chunk)
}

func (s *Session) feed(l *link, chunk []byte) int {
	s.metrics.addBytes(s.label, len(chunk))

	s.statsMu.Lock()
	s.stats.AddBytes(len(chunk))
	s.statsMu.Unlock()

	telemetry := 0
	for _, frame := range l.extractor.Feed(chunk) {
		payload, err := mmwave.ValidateFrame(frame)
		if err != nil {
			s.reject(l, frame, err)
			continue
		}
		s.metrics.frame(s.label, ResultOK)

		events := mmwave.Decode(payload)
		s.statsMu.Lock()
		s.stats.Update(nil, events)
		s.statsMu.Unlock()

		for _, ev := range events {
			s.metrics.event(s.label, ev.EventName())
			if !s.emitLink(l, ev) {
				return telemetry
			}
			if mmwave.IsTelemetry(ev) {
				telemetry++
			}
		}
	}
	return telemetry
}

// reject records a frame that failed validation. Short frames are only
// logged; checksum mismatches also produce a diagnostic event.
func (s *Session) reject(l *link, frame []byte, err error) {
	s.statsMu.Lock()
	s.stats.Update(err, nil)
	s.statsMu.Unlock()

	if errors.Is(err, mmwave.ErrFrameTooShort) {
		s.metrics.frame(s.label, ResultShort)
		s.log.Debug("dropped short frame", zap.String("frame", mmwave.FormatHex(frame)))
		return
	}

	s.metrics.frame(s.label, ResultChecksum)
	if s.limiter.Allow() {
		s.log.Warn("checksum mismatch", zap.Error(err), zap.String("frame", mmwave.FormatHex(frame)))
	}
	s.emitLink(l, mmwave.DebugNote{Text: err.Error()})
}

// Run reads chunks from the open transport and feeds them until ctx is
// cancelled, the session is closed or the transport fails. A read error
// closes the session, emits a StatusEvent carrying the error and is returned.
// io.EOF closes the session cleanly.
func (s *Session) Run(ctx context.Context) error {
	l := s.link.Load()
	if l == nil {
		return ErrNotOpen
	}

	stop := context.AfterFunc(ctx, func() { s.closeLink(l, nil) })
	defer stop()

	buf := make([]byte, s.readSize)
	for {
		n, err := l.conn.Read(buf)
		if n > 0 && s.link.Load() == l {
			s.feed(l, buf[:n])
		}
		if err == nil {
			continue
		}

		if s.link.Load() != l {
			// Closed underneath us
			return ctx.Err()
		}
		if errors.Is(err, io.EOF) {
			s.closeLink(l, nil)
			return nil
		}
		s.closeLink(l, err)
		return fmt.Errorf("read %s: %w", l.name, err)
	}
}

// Send writes body as a frame: body followed by its checksum and end marker.
// body must include the start marker.
func (s *Session) Send(body []byte) error {
	return s.write(mmwave.BuildFrame(body))
}

// SendCommand builds a complete command frame and writes it
func (s *Session) SendCommand(cmd mmwave.Command) error {
	return s.write(cmd.Frame())
}

func (s *Session) write(frame []byte) error {
	l := s.link.Load()
	if l == nil {
		return ErrNotOpen
	}

	s.writeM.Lock()
	defer s.writeM.Unlock()

	if _, err := l.conn.Write(frame); err != nil {
		s.log.Error("write failed", zap.Error(err))
		return fmt.Errorf("write %s: %w", l.name, err)
	}
	s.log.Debug("frame sent", zap.String("frame", mmwave.FormatHex(frame)))
	return nil
}

// Close closes the transport and discards the receive buffer. Closing a
// closed session does nothing.
func (s *Session) Close() error {
	l := s.link.Load()
	if l == nil {
		return nil
	}
	return s.closeLink(l, nil)
}

// Shutdown closes the session and then the event channel. Events already
// queued are still delivered.
func (s *Session) Shutdown() error {
	err := s.Close()
	s.events.Close()
	return err
}

// closeLink closes l if it is still the current link. cause is reported in
// the emitted StatusEvent, which is the last event delivered for l.
func (s *Session) closeLink(l *link, cause error) error {
	if !s.link.CompareAndSwap(l, nil) {
		return nil
	}

	s.emitMu.Lock()
	s.setState(StateClosed)
	s.emit(l.id, StatusEvent{State: StateClosed, Name: l.name, Err: cause})
	s.emitMu.Unlock()

	err := l.conn.Close()
	if cause != nil {
		s.log.Error("transport error, port closed", zap.String("device", l.name), zap.Error(cause))
	} else {
		s.log.Info("port closed", zap.String("device", l.name), zap.Stringer("session_id", l.id))
	}
	return err
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
	s.metrics.state(s.label, st)
}

// emitLink emits ev for l unless l has been closed. Nothing decoded from l is
// delivered after its closing StatusEvent.
func (s *Session) emitLink(l *link, ev mmwave.Event) bool {
	s.emitMu.Lock()
	defer s.emitMu.Unlock()
	if s.link.Load() != l {
		return false
	}
	s.emit(l.id, ev)
	return true
}

func (s *Session) emit(id uuid.UUID, ev mmwave.Event) {
	s.events.Push(Message{
		Port:      s.label,
		SessionID: id,
		Time:      time.Now(),
		Event:     ev,
	})
}

// Merge fans messages from several sessions into one channel. Ordering is
// preserved per port only. The returned channel closes once every input has
// closed.
func Merge(inputs ...<-chan Message) <-chan Message {
	out := make(chan Message)
	var wg sync.WaitGroup
	for _, in := range inputs {
		wg.Add(1)
		go func(in <-chan Message) {
			defer wg.Done()
			for msg := range in {
				out <- msg
			}
		}(in)
	}
	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
