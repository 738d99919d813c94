// File: internal/router/history_test.go
package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_InitialEntryIsUnmarked(t *testing.T) {
	h := NewHistory("https://example.com/")

	cur := h.Current()
	assert.False(t, cur.Marker, "the very first load never carries the router marker")
	assert.Equal(t, "https://example.com/", cur.URL)
	assert.Equal(t, 1, h.Len())
}

func TestHistory_PushMarksAndAdvances(t *testing.T) {
	h := NewHistory("https://example.com/")

	h.Push("https://example.com/about")

	cur := h.Current()
	assert.True(t, cur.Marker)
	assert.Equal(t, "https://example.com/about", cur.URL)
	assert.Equal(t, 2, h.Len())
}

func TestHistory_PushTruncatesForwardEntries(t *testing.T) {
	h := NewHistory("https://example.com/")
	h.Push("https://example.com/a")
	h.Push("https://example.com/b")

	_, ok := h.Back()
	require.True(t, ok)
	h.Push("https://example.com/c")

	assert.Equal(t, 3, h.Len(), "push after back discards the forward branch")
	assert.Equal(t, "https://example.com/c", h.Current().URL)
	_, ok = h.Forward()
	assert.False(t, ok, "the discarded branch must not be reachable")
}

func TestHistory_BackForwardBounds(t *testing.T) {
	h := NewHistory("https://example.com/")
	h.Push("https://example.com/a")

	entry, ok := h.Back()
	require.True(t, ok)
	assert.Equal(t, "https://example.com/", entry.URL)

	_, ok = h.Back()
	assert.False(t, ok, "back at the oldest entry is a no-op")

	entry, ok = h.Forward()
	require.True(t, ok)
	assert.Equal(t, "https://example.com/a", entry.URL)

	_, ok = h.Forward()
	assert.False(t, ok, "forward at the newest entry is a no-op")
}

func TestHistory_BackForwardDoNotModifyStack(t *testing.T) {
	h := NewHistory("https://example.com/")
	h.Push("https://example.com/a")
	h.Push("https://example.com/b")

	h.Back()
	h.Back()
	h.Forward()

	assert.Equal(t, 3, h.Len(), "traversal must never change the entry list")
}

func TestHistory_PushNativeIsUnmarked(t *testing.T) {
	h := NewHistory("https://example.com/")

	h.PushNative("https://example.com/error")

	cur := h.Current()
	assert.False(t, cur.Marker)
	assert.Equal(t, "https://example.com/error", cur.URL)
}

func TestHistory_Replace(t *testing.T) {
	h := NewHistory("")

	h.Replace("https://example.com/", false)

	assert.Equal(t, 1, h.Len())
	assert.Equal(t, "https://example.com/", h.Current().URL)
}
