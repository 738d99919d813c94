// File: internal/page/viewport.go
package page

import "sync"

// ScrollPosition records where the viewport was last told to scroll.
// An empty Anchor means the top of the document.
type ScrollPosition struct {
	Anchor string
	Smooth bool
}

// Viewport is the headless stand-in for the browser viewport. The engine only
// needs to record scroll intent: fragment navigation is a user-intent scroll
// and animates, the top-of-page reset after an ordinary navigation does not.
type Viewport struct {
	mu  sync.Mutex
	pos ScrollPosition
}

// ScrollToTop resets the viewport to the document top, instantly.
func (v *Viewport) ScrollToTop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pos = ScrollPosition{}
}

// ScrollToElement smooth-scrolls to the element with the given id.
func (v *Viewport) ScrollToElement(id string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pos = ScrollPosition{Anchor: id, Smooth: true}
}

// Position returns the last recorded scroll state.
func (v *Viewport) Position() ScrollPosition {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pos
}

func (v *Viewport) reset() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pos = ScrollPosition{}
}
