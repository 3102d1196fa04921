package jobs

import (
	"sync"
	"sync/atomic"
)

// Hold defers delivery of child status notifications. The signal bridge takes
// the hold before it reaps, so while the main path has it blocked no
// notification can touch the job registry or the pid table.
type Hold struct {
	mu      sync.Mutex
	blocked atomic.Bool
}

// Block holds off delivery until Unblock.
func (h *Hold) Block() {
	h.mu.Lock()
	h.blocked.Store(true)
}

// Unblock resumes delivery.
func (h *Hold) Unblock() {
	h.blocked.Store(false)
	h.mu.Unlock()
}

// Blocked reports whether delivery is currently held off by anyone. The hold
// doesn't track its owner, so a true result doesn't prove the caller took it.
func (h *Hold) Blocked() bool {
	return h.blocked.Load()
}

// Do runs fn with delivery held off.
func (h *Hold) Do(fn func()) {
	h.Block()
	defer h.Unblock()
	fn()
}
