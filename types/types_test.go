package types

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIDAllocator_Monotonic(t *testing.T) {
	a := NewIDAllocator()
	first := a.Allocate()
	second := a.Allocate()
	third := a.Allocate()

	assert.Equal(t, ConnectionID(1), first)
	assert.Equal(t, ConnectionID(2), second)
	assert.Equal(t, ConnectionID(3), third)
}

func TestIDAllocator_NeverRepeatsUnderConcurrency(t *testing.T) {
	a := NewIDAllocator()
	const n = 500

	var wg sync.WaitGroup
	ids := make(chan ConnectionID, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ids <- a.Allocate()
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[ConnectionID]bool, n)
	for id := range ids {
		assert.False(t, seen[id], "id %d allocated twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestConnState_String(t *testing.T) {
	cases := map[ConnState]string{
		Connecting:      "connecting",
		Open:            "open",
		Closing:         "closing",
		Closed:          "closed",
		ConnState(99):   "unknown",
	}
	for state, want := range cases {
		assert.Equal(t, want, state.String())
	}
}
