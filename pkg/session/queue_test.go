// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_PushNeverWaitsForConsumer(t *testing.T) {
	q := NewQueue[int]()
	defer q.Close()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			q.Push(i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Push blocked without a consumer")
	}

	for i := 0; i < 10000; i++ {
		require.Equal(t, i, <-q.Out())
	}
}

func TestQueue_CloseDeliversPending(t *testing.T) {
	q := NewQueue[string]()
	q.Push("a")
	q.Push("b")
	q.Close()

	var got []string
	for v := range q.Out() {
		got = append(got, v)
	}
	assert.Equal(t, []string{"a", "b"}, got)
}

func TestQueue_PushAfterClose(t *testing.T) {
	q := NewQueue[int]()
	q.Close()
	q.Close()
	assert.False(t, q.Push(1))

	_, ok := <-q.Out()
	assert.False(t, ok)
}

func TestQueue_ConcurrentProducers(t *testing.T) {
	q := NewQueue[int]()

	var wg sync.WaitGroup
	for p := 0; p < 4; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 250; i++ {
				q.Push(i)
			}
		}()
	}
	wg.Wait()
	q.Close()

	count := 0
	for range q.Out() {
		count++
	}
	assert.Equal(t, 1000, count)
}
