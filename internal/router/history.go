// File: internal/router/history.go
package router

import "sync"

// HistoryEntry is one entry in the session history. Marker distinguishes
// entries pushed by the router from the initial load or entries created by
// something else.
type HistoryEntry struct {
	Marker bool
	URL    string
}

// History is the headless stand-in for the browser history stack: a list of
// entries and a cursor. Back and Forward move the cursor and return the entry
// to replay; they never modify the stack, mirroring popstate semantics.
type History struct {
	mu      sync.Mutex
	entries []HistoryEntry
	cursor  int
}

// NewHistory creates a history whose first entry is the initial document
// load. The initial entry carries no marker.
func NewHistory(initialURL string) *History {
	return &History{
		entries: []HistoryEntry{{Marker: false, URL: initialURL}},
	}
}

// Push appends a router-marked entry after the cursor, discarding any forward
// entries, and moves the cursor onto it.
func (h *History) Push(url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.cursor+1], HistoryEntry{Marker: true, URL: url})
	h.cursor = len(h.entries) - 1
}

// PushNative appends an unmarked entry, the way a full document load does.
func (h *History) PushNative(url string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries[:h.cursor+1], HistoryEntry{Marker: false, URL: url})
	h.cursor = len(h.entries) - 1
}

// Replace overwrites the current entry in place.
func (h *History) Replace(url string, marker bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries[h.cursor] = HistoryEntry{Marker: marker, URL: url}
}

// Back moves the cursor one entry back and returns the entry now under it.
// Returns false when already at the oldest entry.
func (h *History) Back() (HistoryEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor == 0 {
		return HistoryEntry{}, false
	}
	h.cursor--
	return h.entries[h.cursor], true
}

// Forward moves the cursor one entry forward and returns the entry now under
// it. Returns false when already at the newest entry.
func (h *History) Forward() (HistoryEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.cursor >= len(h.entries)-1 {
		return HistoryEntry{}, false
	}
	h.cursor++
	return h.entries[h.cursor], true
}

// Current returns the entry under the cursor.
func (h *History) Current() HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.entries[h.cursor]
}

// Len returns the number of entries in the stack.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}
