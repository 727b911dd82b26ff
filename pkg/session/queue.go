// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import "sync"

// Queue is an unbounded FIFO between one or more producers and a consumer.
// Push never waits for the consumer; items back up in memory instead.
type Queue[T any] struct {
	in  chan T
	out chan T

	mu     sync.RWMutex
	closed bool
}

// NewQueue creates a queue and starts its pump goroutine
func NewQueue[T any]() *Queue[T] {
	q := &Queue[T]{
		in:  make(chan T),
		out: make(chan T),
	}
	go q.pump()
	return q
}

// Push appends v. It returns false if the queue is closed.
func (q *Queue[T]) Push(v T) bool {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed {
		return false
	}
	q.in <- v
	return true
}

// Out returns the delivery channel. It is closed after Close once every
// pending item has been delivered.
func (q *Queue[T]) Out() <-chan T {
	return q.out
}

// Close stops accepting items. Safe to call more than once.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.in)
}

func (q *Queue[T]) pump() {
	defer close(q.out)

	var pending []T
	in := q.in
	for in != nil || len(pending) > 0 {
		var out chan T
		var head T
		if len(pending) > 0 {
			out = q.out
			head = pending[0]
		}

		select {
		case v, ok := <-in:
			if !ok {
				in = nil
				continue
			}
			pending = append(pending, v)
		case out <- head:
			var zero T
			pending[0] = zero
			pending = pending[1:]
		}
	}
}
