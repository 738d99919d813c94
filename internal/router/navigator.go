// File: internal/router/navigator.go
package router

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/fennelsoft/slipstream/internal/page"
)

// NavigationState is the transient per-navigation record.
type NavigationState struct {
	// PushHistory records a new history entry after the swap. Popstate
	// replays arrive with history already correct and must not push again.
	PushHistory bool
	// FromPopState marks a navigation replayed from a back/forward event.
	FromPopState bool
}

// Event describes a completed soft navigation, broadcast so page-level
// initializers can re-bind against the new DOM.
type Event struct {
	URL          string
	Title        string
	FromPopState bool
}

// Navigator runs one navigation at a time through Idle -> Fetching ->
// Swapping, with an escape to a full document load on any failure. Overlapping
// requests are resolved last-request-wins: each run takes a sequence number,
// superseded fetches are canceled, and a stale response never reaches the DOM.
type Navigator struct {
	logger     *zap.Logger
	client     *http.Client
	doc        *page.Document
	cache      *Cache
	registry   *ScriptRegistry
	reconciler *Reconciler
	history    *History
	userAgent  string

	// transition optionally wraps the swap step. Purely cosmetic; the swap
	// itself must run exactly once inside it.
	transition func(swap func())
	notify     func(Event)

	seq atomic.Uint64

	// flightMu guards the in-flight fetch handle.
	flightMu sync.Mutex
	inFlight *flight

	// swapMu serializes the swap/history/scroll critical section.
	swapMu sync.Mutex
}

// Navigate drives a full navigation request: normalization, cache lookup,
// fetch fallback, swap, history bookkeeping, scroll resolution. Cross-origin
// targets and the very first load take the full-document path.
func (n *Navigator) Navigate(ctx context.Context, raw string, state NavigationState) error {
	base := n.doc.URL()
	target, err := Normalize(base, raw)
	if err != nil {
		return err
	}

	seq := n.seq.Add(1)

	if base == nil || !SameOrigin(base, target) {
		return n.fullLoad(ctx, target, seq, state)
	}

	key := CacheKey(target)
	var body string
	if entry, ok := n.cache.Get(key); ok {
		n.logger.Debug("Navigation served from cache", zap.String("url", key))
		body = entry.Body
	} else {
		fetchCtx, done := n.beginFetch(ctx)
		body, err = n.fetch(fetchCtx, key)
		done()
		if err != nil {
			if n.seq.Load() != seq {
				// Superseded by a newer navigation; its run owns the DOM now.
				n.logger.Debug("Abandoning superseded navigation", zap.String("url", key))
				return nil
			}
			n.logger.Warn("Navigation fetch failed, degrading to full document load",
				zap.String("url", key), zap.Error(err))
			return n.fullLoad(ctx, target, seq, state)
		}
		n.cache.Put(key, body)
	}

	n.swapMu.Lock()
	defer n.swapMu.Unlock()

	// Re-validate after the suspension point: a newer navigation may have
	// started while the fetch was in flight.
	if n.seq.Load() != seq {
		n.logger.Debug("Discarding stale navigation result", zap.String("url", key))
		return nil
	}

	var result *SwapResult
	swap := func() {
		result, _ = n.reconciler.Apply(n.doc, body)
	}
	if n.transition != nil {
		n.transition(swap)
	} else {
		swap()
	}

	n.doc.SetURL(target)

	if state.PushHistory && !state.FromPopState {
		n.history.Push(target.String())
	}

	n.resolveScroll(target)

	if n.notify != nil && result != nil {
		n.notify(Event{URL: target.String(), Title: result.Title, FromPopState: state.FromPopState})
	}
	return nil
}

// fetch performs the foreground navigation request and returns the document
// body. Any non-2xx status is an error here; the caller degrades to a full
// load instead of rendering a partial or error body.
func (n *Navigator) fetch(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", err
	}
	if n.userAgent != "" {
		req.Header.Set("User-Agent", n.userAgent)
	}
	req.Header.Set(HeaderNavigate, "true")

	resp, err := n.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return "", fmt.Errorf("navigation fetch returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read navigation response: %w", err)
	}
	return string(body), nil
}

// fullLoad is the single recovery strategy: abandon soft navigation and load
// the target as a plain document, the way assigning location.href would. The
// executed-script registry resets because the whole script context is torn
// down with the old document.
func (n *Navigator) fullLoad(ctx context.Context, target *url.URL, seq uint64, state NavigationState) error {
	n.logger.Info("Performing full document load", zap.String("url", target.String()))

	wasInitial := n.doc.URL() == nil
	n.registry.Reset()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return err
	}
	if n.userAgent != "" {
		req.Header.Set("User-Agent", n.userAgent)
	}
	// No router header: this is a native-style document request.

	resp, err := n.client.Do(req)
	if err != nil {
		// Even the fallback failed. The address still moves, like a browser
		// stuck on an error page.
		n.doc.SetURL(target)
		return fmt.Errorf("full document load of %q failed: %w", target.String(), err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		n.doc.SetURL(target)
		return fmt.Errorf("failed to read document %q: %w", target.String(), err)
	}

	// A full load renders whatever the server sent, error pages included.
	root, err := page.Parse(string(payload))
	if err != nil {
		n.doc.SetURL(target)
		return err
	}

	n.swapMu.Lock()
	defer n.swapMu.Unlock()
	if n.seq.Load() != seq {
		return nil
	}

	n.doc.Load(target, root)

	switch {
	case wasInitial:
		n.history.Replace(target.String(), false)
	case state.FromPopState:
		// History already points at this entry.
	default:
		n.history.PushNative(target.String())
	}

	n.resolveScroll(target)
	return nil
}

// resolveScroll applies the post-swap scroll rule: a fragment that matches an
// element is a user-intent scroll and animates; everything else is an instant
// reset to the top.
func (n *Navigator) resolveScroll(target *url.URL) {
	viewport := n.doc.Viewport()
	if frag := target.Fragment; frag != "" {
		if n.doc.ElementByID(frag) != nil {
			viewport.ScrollToElement(frag)
			return
		}
	}
	viewport.ScrollToTop()
}

// flight is one cancelable navigation fetch.
type flight struct {
	cancel context.CancelFunc
}

// beginFetch registers a cancelable fetch, canceling whichever fetch was in
// flight before it. The returned done func releases this fetch's handle
// without touching a newer one that may have replaced it.
func (n *Navigator) beginFetch(ctx context.Context) (context.Context, func()) {
	fetchCtx, cancel := context.WithCancel(ctx)
	f := &flight{cancel: cancel}

	n.flightMu.Lock()
	if n.inFlight != nil {
		n.inFlight.cancel()
	}
	n.inFlight = f
	n.flightMu.Unlock()

	return fetchCtx, func() {
		n.flightMu.Lock()
		if n.inFlight == f {
			n.inFlight = nil
		}
		n.flightMu.Unlock()
		f.cancel()
	}
}
