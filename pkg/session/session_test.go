// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Thermoquad/vigil/pkg/mmwave"
)

// ============================================================
// Test Helpers
// ============================================================

// fakeConn is an in-memory transport. Tests write inbound bytes to in.
type fakeConn struct {
	r  *io.PipeReader
	in *io.PipeWriter

	mu     sync.Mutex
	sent   bytes.Buffer
	closed atomic.Int32
}

func newFakeConn() *fakeConn {
	r, w := io.Pipe()
	return &fakeConn{r: r, in: w}
}

func (c *fakeConn) Read(p []byte) (int, error) { return c.r.Read(p) }

func (c *fakeConn) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent.Write(p)
}

func (c *fakeConn) Close() error {
	c.closed.Add(1)
	return c.r.Close()
}

func (c *fakeConn) Sent() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]byte(nil), c.sent.Bytes()...)
}

func openerFor(conn io.ReadWriteCloser) Opener {
	return func(string) (io.ReadWriteCloser, error) { return conn, nil }
}

func frameOf(payload ...byte) []byte {
	return mmwave.BuildFrame(append([]byte{mmwave.StartByte1, mmwave.StartByte2}, payload...))
}

func nextMessage(t *testing.T, s *Session) Message {
	t.Helper()
	select {
	case msg := <-s.Events():
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
	}
	return Message{}
}

func nextStatus(t *testing.T, s *Session) StatusEvent {
	t.Helper()
	msg := nextMessage(t, s)
	st, ok := msg.Event.(StatusEvent)
	require.True(t, ok, "expected StatusEvent, got %T (%+v)", msg.Event, msg.Event)
	return st
}

func openSession(t *testing.T, label string) (*Session, *fakeConn) {
	t.Helper()
	s := New(label, Options{})
	conn := newFakeConn()
	require.NoError(t, s.Open("/dev/fake", openerFor(conn)))
	st := nextStatus(t, s)
	require.Equal(t, StateOpen, st.State)
	t.Cleanup(func() { s.Shutdown() })
	return s, conn
}

// ============================================================
// State Machine Tests
// ============================================================

func TestSession_OpenEmitsStatus(t *testing.T) {
	s, _ := openSession(t, "A")
	assert.Equal(t, StateOpen, s.State())
	assert.NotEqual(t, uuid.Nil, s.ID())
	assert.Equal(t, "A", s.Label())
}

func TestSession_OpenFailure(t *testing.T) {
	s := New("A", Options{})
	defer s.Shutdown()

	boom := errors.New("no such device")
	err := s.Open("/dev/missing", func(string) (io.ReadWriteCloser, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.Equal(t, StateClosed, s.State())

	st := nextStatus(t, s)
	assert.Equal(t, StateClosed, st.State)
	assert.ErrorIs(t, st.Err, boom)
	assert.Equal(t, "/dev/missing", st.Name)
}

func TestSession_OpenWhileOpen(t *testing.T) {
	s, _ := openSession(t, "A")

	err := s.Open("/dev/other", openerFor(newFakeConn()))
	require.ErrorIs(t, err, ErrAlreadyOpen)
	assert.Equal(t, StateOpen, s.State())

	msg := nextMessage(t, s)
	assert.Equal(t, mmwave.DebugNote{Text: "port already open"}, msg.Event)
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	s, conn := openSession(t, "A")

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, uuid.Nil, s.ID())
	assert.EqualValues(t, 1, conn.closed.Load())

	st := nextStatus(t, s)
	assert.Equal(t, StateClosed, st.State)
	assert.NoError(t, st.Err)

	select {
	case msg := <-s.Events():
		t.Fatalf("unexpected second event after double close: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSession_ReopenGetsNewID(t *testing.T) {
	s, _ := openSession(t, "A")
	first := s.ID()

	require.NoError(t, s.Close())
	nextStatus(t, s)

	require.NoError(t, s.Open("/dev/fake", openerFor(newFakeConn())))
	nextStatus(t, s)
	assert.NotEqual(t, first, s.ID())
}

func TestSession_CloseDuringOpen(t *testing.T) {
	s := New("A", Options{})
	defer s.Shutdown()
	conn := newFakeConn()

	// Hold the stats lock so Open stops after installing the link
	s.statsMu.Lock()
	opened := make(chan error, 1)
	go func() { opened <- s.Open("/dev/fake", openerFor(conn)) }()
	require.Eventually(t, func() bool { return s.link.Load() != nil }, 2*time.Second, time.Millisecond)

	require.NoError(t, s.Close())
	s.statsMu.Unlock()

	require.ErrorIs(t, <-opened, ErrNotOpen)
	assert.Equal(t, StateClosed, s.State())
	assert.Nil(t, s.link.Load())
	assert.EqualValues(t, 1, conn.closed.Load())

	st := nextStatus(t, s)
	assert.Equal(t, StateClosed, st.State)

	// The port can be opened again
	require.NoError(t, s.Open("/dev/fake", openerFor(newFakeConn())))
	assert.Equal(t, StateOpen, nextStatus(t, s).State)
	assert.Equal(t, StateOpen, s.State())
}

func TestSession_NoEventsAfterClosedStatus(t *testing.T) {
	s, conn := openSession(t, "A")
	chunk := append(frameOf(0x80, 0x00, 0x00, 0x01, 0x01), frameOf(0x83, 0x01, 0x00, 0x01, 0x01)...)

	// Hold the emit lock so the chunk is decoded but not yet delivered
	s.emitMu.Lock()
	fed := make(chan int, 1)
	go func() { fed <- s.Feed(chunk) }()
	closed := make(chan error, 1)
	go func() { closed <- s.Close() }()
	require.Eventually(t, func() bool { return s.link.Load() == nil }, 2*time.Second, time.Millisecond)
	s.emitMu.Unlock()

	require.NoError(t, <-closed)
	assert.Equal(t, 0, <-fed)
	assert.EqualValues(t, 1, conn.closed.Load())

	st := nextStatus(t, s)
	assert.Equal(t, StateClosed, st.State)
	select {
	case msg := <-s.Events():
		t.Fatalf("event delivered after close: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

// ============================================================
// Feed Tests
// ============================================================

func TestSession_FeedWhileClosedIgnored(t *testing.T) {
	s := New("A", Options{})
	defer s.Shutdown()

	assert.Equal(t, 0, s.Feed(frameOf(0x80, 0x00, 0x00, 0x01, 0x01)))
	assert.Zero(t, s.Stats().BytesReceived)
}

func TestSession_FeedDecodesInOrder(t *testing.T) {
	s, _ := openSession(t, "A")

	stream := append(frameOf(0x06, 0x81, 0x00, 0x06, 0x00, 0x2D, 0x00, 0x5A, 0x00, 0x87),
		frameOf(0x83, 0x01, 0x00, 0x01, 0x01)...)

	total := 0
	for i := range stream {
		total += s.Feed(stream[i : i+1])
	}
	assert.Equal(t, 3, total)

	want := []mmwave.Event{
		mmwave.InstallationAngle{X: 45, Y: 90, Z: 135},
		mmwave.FallState{Fallen: true},
		mmwave.FallAlert{},
	}
	for _, ev := range want {
		msg := nextMessage(t, s)
		assert.Equal(t, ev, msg.Event)
		assert.Equal(t, "A", msg.Port)
		assert.Equal(t, s.ID(), msg.SessionID)
	}
}

func TestSession_ChecksumMismatchContinues(t *testing.T) {
	s, _ := openSession(t, "A")

	bad := frameOf(0x83, 0x01, 0x00, 0x01, 0x01)
	bad[len(bad)-3]++
	good := frameOf(0x80, 0x00, 0x00, 0x01, 0x01)

	n := s.Feed(append(bad, good...))
	assert.Equal(t, 1, n)

	note, ok := nextMessage(t, s).Event.(mmwave.DebugNote)
	require.True(t, ok)
	assert.Contains(t, note.Text, "checksum mismatch")
	assert.Equal(t, mmwave.PresenceState{On: true}, nextMessage(t, s).Event)

	stats := s.Stats()
	assert.EqualValues(t, 1, stats.ChecksumErrors)
	assert.EqualValues(t, 1, stats.ValidFrames)
}

func TestSession_ShortFrameOnlyCounted(t *testing.T) {
	s, _ := openSession(t, "A")

	assert.Equal(t, 0, s.Feed([]byte{0x53, 0x59, 0x00, 0x54, 0x43}))
	assert.EqualValues(t, 1, s.Stats().ShortFrames)

	select {
	case msg := <-s.Events():
		t.Fatalf("short frame should not emit an event: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSession_SessionsAreIndependent(t *testing.T) {
	a, _ := openSession(t, "A")
	b, _ := openSession(t, "B")

	frame := frameOf(0x06, 0x82, 0x00, 0x02, 0x00, 0xFA)

	// Half a frame on A must not complete with bytes fed to B
	a.Feed(frame[:5])
	b.Feed(frame[5:])
	b.Feed(frame)
	a.Feed(frame[5:])

	msgA := nextMessage(t, a)
	msgB := nextMessage(t, b)
	assert.Equal(t, "A", msgA.Port)
	assert.Equal(t, "B", msgB.Port)
	assert.Equal(t, mmwave.InstallationHeight{Height: 250}, msgA.Event)
	assert.Equal(t, mmwave.InstallationHeight{Height: 250}, msgB.Event)
}

// ============================================================
// Run Tests
// ============================================================

func TestSession_RunDeliversEvents(t *testing.T) {
	s, conn := openSession(t, "A")

	errc := make(chan error, 1)
	go func() { errc <- s.Run(context.Background()) }()

	go func() {
		frame := frameOf(0x80, 0x03, 0x00, 0x01, 0x20)
		conn.in.Write(frame[:4])
		conn.in.Write(frame[4:])
	}()

	assert.Equal(t, mmwave.MotionState{Style: mmwave.StyleMagnitude, Value: 0x20}, nextMessage(t, s).Event)

	require.NoError(t, s.Close())
	nextStatus(t, s)
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after Close")
	}
}

func TestSession_RunTransportError(t *testing.T) {
	s, conn := openSession(t, "A")

	errc := make(chan error, 1)
	go func() { errc <- s.Run(context.Background()) }()

	boom := errors.New("device unplugged")
	conn.in.CloseWithError(boom)

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, boom)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}

	st := nextStatus(t, s)
	assert.Equal(t, StateClosed, st.State)
	assert.ErrorIs(t, st.Err, boom)
	assert.Equal(t, StateClosed, s.State())
}

func TestSession_RunEOFClosesCleanly(t *testing.T) {
	s, conn := openSession(t, "A")

	errc := make(chan error, 1)
	go func() { errc <- s.Run(context.Background()) }()
	conn.in.Close()

	require.NoError(t, <-errc)
	st := nextStatus(t, s)
	assert.Equal(t, StateClosed, st.State)
	assert.NoError(t, st.Err)
}

func TestSession_RunContextCancel(t *testing.T) {
	s, conn := openSession(t, "A")

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Run(ctx) }()
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Equal(t, StateClosed, s.State())
	assert.EqualValues(t, 1, conn.closed.Load())
}

func TestSession_RunNotOpen(t *testing.T) {
	s := New("A", Options{})
	defer s.Shutdown()
	assert.ErrorIs(t, s.Run(context.Background()), ErrNotOpen)
}

// ============================================================
// Send Tests
// ============================================================

func TestSession_Send(t *testing.T) {
	s, conn := openSession(t, "A")

	body := []byte{0x53, 0x59, 0x06, 0x82, 0x00, 0x01, 0x0F}
	require.NoError(t, s.Send(body))
	require.NoError(t, s.SendCommand(mmwave.NewQueryInstallHeight()))

	want := append(mmwave.BuildFrame(body), mmwave.NewQueryInstallHeight().Frame()...)
	assert.Equal(t, want, conn.Sent())
}

func TestSession_SendWhileClosed(t *testing.T) {
	s := New("A", Options{})
	defer s.Shutdown()
	assert.ErrorIs(t, s.Send([]byte{0x01}), ErrNotOpen)
}

// ============================================================
// Metrics Tests
// ============================================================

func TestSession_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	s := New("A", Options{Metrics: m})
	defer s.Shutdown()
	require.NoError(t, s.Open("/dev/fake", openerFor(newFakeConn())))
	assert.Equal(t, float64(StateOpen), testutil.ToFloat64(m.State.WithLabelValues("A")))

	bad := frameOf(0x83, 0x01, 0x00, 0x01, 0x00)
	bad[len(bad)-3]++
	good := frameOf(0x83, 0x01, 0x00, 0x01, 0x01)
	stream := append(bad, good...)
	s.Feed(stream)

	assert.Equal(t, float64(len(stream)), testutil.ToFloat64(m.BytesReceived.WithLabelValues("A")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Frames.WithLabelValues("A", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Frames.WithLabelValues("A", ResultChecksum)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Events.WithLabelValues("A", "fall_alert")))

	require.NoError(t, s.Close())
	assert.Equal(t, float64(StateClosed), testutil.ToFloat64(m.State.WithLabelValues("A")))
}

// ============================================================
// Merge Tests
// ============================================================

func TestMerge(t *testing.T) {
	a := make(chan Message, 2)
	b := make(chan Message, 1)
	a <- Message{Port: "A"}
	a <- Message{Port: "A"}
	b <- Message{Port: "B"}
	close(a)
	close(b)

	counts := map[string]int{}
	for msg := range Merge(a, b) {
		counts[msg.Port]++
	}
	assert.Equal(t, map[string]int{"A": 2, "B": 1}, counts)
}
