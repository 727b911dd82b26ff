// SPDX-License-Identifier: GPL-2.0-or-later
// Copyright (c) 2025 Kaz Walker, Thermoquad

package cmd

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/Thermoquad/vigil/pkg/mmwave"
	"github.com/Thermoquad/vigil/pkg/session"
)

// Reconnect backoff bounds
var (
	minBackoff = 1 * time.Second
	maxBackoff = 30 * time.Second
)

// portGroup runs one session per configured port. With reconnect set, a port
// whose transport fails or cannot be opened is retried with exponential
// backoff until the context is cancelled.
type portGroup struct {
	ports     []PortConfig
	sessions  []*session.Session
	openers   []session.Opener
	reconnect bool
	log       *zap.Logger

	wg sync.WaitGroup
}

// newPortGroup creates a closed session per port. wrap, when set, decorates
// each port's opener (capture taps, replay sources).
func newPortGroup(ports []PortConfig, ws WebSocketConfig, opts session.Options, wrap func(PortConfig, session.Opener) session.Opener) *portGroup {
	g := &portGroup{ports: ports, log: opts.Logger}
	if g.log == nil {
		g.log = zap.NewNop()
	}

	for _, p := range ports {
		opener := NewOpener(p, ws)
		if wrap != nil {
			opener = wrap(p, opener)
		}
		g.sessions = append(g.sessions, session.New(p.Label, opts))
		g.openers = append(g.openers, opener)
	}
	return g
}

// Start opens and runs every port in its own goroutine
func (g *portGroup) Start(ctx context.Context) {
	for i := range g.sessions {
		i := i
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			g.keepAlive(ctx, i)
		}()
	}
}

func (g *portGroup) keepAlive(ctx context.Context, i int) {
	s, port, opener := g.sessions[i], g.ports[i], g.openers[i]
	backoff := minBackoff

	for {
		if err := s.Open(port.Device, opener); err == nil {
			backoff = minBackoff
			if err := s.Run(ctx); err != nil && ctx.Err() == nil {
				g.log.Warn("port stopped", zap.String("port", port.Label), zap.Error(err))
			}
		}

		if ctx.Err() != nil || !g.reconnect {
			return
		}

		g.log.Info("reconnecting", zap.String("port", port.Label), zap.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// Events merges the event streams of every session. Call once.
func (g *portGroup) Events() <-chan session.Message {
	chans := make([]<-chan session.Message, 0, len(g.sessions))
	for _, s := range g.sessions {
		chans = append(chans, s.Events())
	}
	return session.Merge(chans...)
}

// Session returns the session for a port label, or nil
func (g *portGroup) Session(label string) *session.Session {
	for _, s := range g.sessions {
		if s.Label() == label {
			return s
		}
	}
	return nil
}

// Sessions returns the sessions in port order
func (g *portGroup) Sessions() []*session.Session {
	return g.sessions
}

// Send builds a named command and writes it to the port
func (g *portGroup) Send(label, name string, args []string) (mmwave.Command, error) {
	s := g.Session(label)
	if s == nil {
		return mmwave.Command{}, fmt.Errorf("unknown port %q", label)
	}
	command, err := mmwave.BuildNamedCommand(name, args)
	if err != nil {
		return command, err
	}
	return command, s.SendCommand(command)
}

// Wait blocks until every port goroutine has returned
func (g *portGroup) Wait() {
	g.wg.Wait()
}

// Shutdown waits for the port goroutines and closes every session, which
// closes the merged event stream once queued events are delivered
func (g *portGroup) Shutdown() {
	g.wg.Wait()
	for _, s := range g.sessions {
		if err := s.Shutdown(); err != nil {
			g.log.Debug("close failed", zap.String("port", s.Label()), zap.Error(err))
		}
	}
}

// formatMessage renders a message as one log line
func formatMessage(msg session.Message) string {
	return fmt.Sprintf("[%s] %s  %s", msg.Time.Format("15:04:05.000"), msg.Port, describeEvent(msg.Event))
}

// describeEvent formats protocol events and session status changes
func describeEvent(ev mmwave.Event) string {
	if st, ok := ev.(session.StatusEvent); ok {
		if st.Err != nil {
			return fmt.Sprintf("PORT %s: %s (%v)", st.State, st.Name, st.Err)
		}
		return fmt.Sprintf("PORT %s: %s", st.State, st.Name)
	}
	return mmwave.FormatEvent(ev)
}
