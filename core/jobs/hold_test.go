package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestHold(t *testing.T) {
	var h Hold
	assert.False(t, h.Blocked())

	h.Block()
	assert.True(t, h.Blocked())
	h.Unblock()
	assert.False(t, h.Blocked())

	h.Do(func() {
		assert.True(t, h.Blocked())
	})
	assert.False(t, h.Blocked())
}

func TestHold_blockedIsNotPerCaller(t *testing.T) {
	var h Hold
	h.Block()
	defer h.Unblock()

	seen := make(chan bool)
	go func() { seen <- h.Blocked() }()
	assert.True(t, <-seen, "any goroutine sees the hold as taken")
}

func TestHold_defersDelivery(t *testing.T) {
	var h Hold
	delivered := make(chan struct{})

	h.Block()
	go h.Do(func() { close(delivered) })

	select {
	case <-delivered:
		t.Fatal("delivered while held")
	case <-time.After(20 * time.Millisecond):
	}

	h.Unblock()
	select {
	case <-delivered:
	case <-time.After(5 * time.Second):
		t.Fatal("not delivered after release")
	}
}
