package core

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var eventNumber = regexp.MustCompile(`^-?[0-9]+`)

// History is the list of command lines entered so far, oldest first.
type History struct {
	entries []string
	limit   int
}

// NewHistory creates a history holding at most limit entries, or unlimited
// entries if limit is 0.
func NewHistory(limit int) *History {
	return &History{limit: limit}
}

// Add appends a line, dropping the oldest entry once the limit is reached.
func (h *History) Add(line string) {
	if strings.TrimSpace(line) == "" {
		return
	}
	h.entries = append(h.entries, line)
	if h.limit > 0 && len(h.entries) > h.limit {
		h.entries = append([]string(nil), h.entries[len(h.entries)-h.limit:]...)
	}
}

// Clear removes every entry.
func (h *History) Clear() {
	h.entries = nil
}

// Len is the number of entries.
func (h *History) Len() int {
	return len(h.entries)
}

// Entries returns the history, oldest first.
func (h *History) Entries() []string {
	return h.entries
}

// Get returns entry n counting from 1. Negative n counts back from the most
// recent entry, -1 being the last.
func (h *History) Get(n int) (string, bool) {
	if n < 0 {
		n += len(h.entries) + 1
	}
	if n < 1 || n > len(h.entries) {
		return "", false
	}
	return h.entries[n-1], true
}

// Expand resolves an event designator at the start of line. "!N" is entry N
// and "!prefix" is the most recent entry starting with prefix. Lines that
// don't start with a designator, or whose designator matches nothing, are
// returned unchanged.
func (h *History) Expand(line string) string {
	if len(line) < 2 || line[0] != '!' {
		return line
	}
	designator := line[1:]

	if num := eventNumber.FindString(designator); num != "" {
		if n, err := strconv.Atoi(num); err == nil {
			if entry, ok := h.Get(n); ok {
				return entry
			}
		}
	}

	for i := len(h.entries) - 1; i >= 0; i-- {
		if strings.HasPrefix(h.entries[i], designator) {
			return h.entries[i]
		}
	}
	return line
}

// Print writes the last n entries numbered from the start of the history,
// or every entry if n is negative.
func (h *History) Print(w io.Writer, n int) {
	start := 0
	if n >= 0 && len(h.entries) > n {
		start = len(h.entries) - n
	}
	for i := start; i < len(h.entries); i++ {
		fmt.Fprintf(w, "%5d %s\n", i+1, h.entries[i])
	}
}
