// File: internal/router/router.go

// Package router implements the client-side navigation engine: it intercepts
// link activation, speculatively prefetches destinations, caches page bodies
// with a TTL, swaps DOM content in place, reconciles scripts so nothing
// executes twice, and keeps the history stack coherent through back/forward.
package router

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/fennelsoft/slipstream/internal/config"
	"github.com/fennelsoft/slipstream/internal/network"
	"github.com/fennelsoft/slipstream/internal/page"
)

// Activation marker attributes. Only elements opting in are intercepted.
const (
	MarkerAttr           = "data-slipstream"
	PrefetchModeAttr     = "data-slipstream-prefetch"
	PrefetchModeViewport = "viewport"
)

// Header contract with the origin server, letting it serve lighter payloads
// for router-driven requests.
const (
	HeaderPrefetch = "X-Router-Prefetch"
	HeaderNavigate = "X-Router-Navigate"
)

// Modifiers carries the keyboard modifier state of a click. Any modifier
// means the user wants native behavior (new tab, download, selection) and the
// router stays out of the way.
type Modifiers struct {
	Ctrl  bool
	Meta  bool
	Shift bool
	Alt   bool
}

// Any reports whether any modifier was held.
func (m Modifiers) Any() bool {
	return m.Ctrl || m.Meta || m.Shift || m.Alt
}

// Router is one session's navigation engine. It is an explicitly constructed
// instance owning its cache, pending-set and script registry; there are no
// package-level singletons. It lives for the session; no teardown beyond
// Close is needed.
type Router struct {
	id     string
	logger *zap.Logger
	doc    *page.Document

	cache    *Cache
	registry *ScriptRegistry
	history  *History
	nav      *Navigator
	prefetch *Prefetcher

	listenerMu sync.Mutex
	listeners  []func(Event)
}

// Option customizes a Router at construction time.
type Option func(*Router)

// WithTransition wraps the swap step in a visual-transition hook. The hook
// must invoke the swap callback exactly once; it is cosmetic and never a
// correctness dependency.
func WithTransition(wrap func(swap func())) Option {
	return func(r *Router) {
		r.nav.transition = wrap
	}
}

// New builds a router for the given document and HTTP client.
func New(cfg config.RouterConfig, client *network.Client, doc *page.Document, logger *zap.Logger, opts ...Option) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	id := uuid.New().String()
	log := logger.Named("router").With(zap.String("session_id", id))

	cache := NewCache(cfg.CacheTTL, cfg.CacheMaxEntries)
	registry := NewScriptRegistry()
	history := NewHistory("")

	r := &Router{
		id:       id,
		logger:   log,
		doc:      doc,
		cache:    cache,
		registry: registry,
		history:  history,
	}

	r.nav = &Navigator{
		logger:     log.Named("navigator"),
		client:     client.Client,
		doc:        doc,
		cache:      cache,
		registry:   registry,
		reconciler: NewReconciler(registry, cfg.RunOnceScripts, log),
		history:    history,
		userAgent:  client.UserAgent(),
		notify:     r.broadcast,
	}
	r.prefetch = newPrefetcher(client.Client, cache, doc,
		cfg.PrefetchDebounce, cfg.PrefetchRate, cfg.PrefetchBurst, client.UserAgent(), log)

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ID returns the session identifier used in logs.
func (r *Router) ID() string {
	return r.id
}

// Navigate performs a foreground navigation to raw, resolving it against the
// current document location.
func (r *Router) Navigate(ctx context.Context, raw string) error {
	return r.nav.Navigate(ctx, raw, NavigationState{PushHistory: true})
}

// Prefetch speculatively fetches raw into the page cache. Failures are
// swallowed; the worst case is a normal fetch on a later navigation.
func (r *Router) Prefetch(ctx context.Context, raw string) {
	r.prefetch.Prefetch(ctx, raw)
}

// ClearCache drops all cached page bodies, e.g. after a mutating action.
func (r *Router) ClearCache() {
	r.cache.Clear()
}

// HandleClick is the click-interception entry point. It reports whether the
// click was intercepted; when false the host must let native handling run
// (modifier clicks, cross-origin targets, downloads, new-tab links).
func (r *Router) HandleClick(ctx context.Context, el *html.Node, mods Modifiers) (bool, error) {
	href, ok := r.interceptTarget(el, mods)
	if !ok {
		return false, nil
	}
	return true, r.Navigate(ctx, href)
}

// PointerEnter starts hover-intent prefetching for a link element.
func (r *Router) PointerEnter(el *html.Node) { r.prefetch.PointerEnter(el) }

// PointerLeave cancels hover-intent prefetching for a link element.
func (r *Router) PointerLeave(el *html.Node) { r.prefetch.PointerLeave(el) }

// FocusIn starts focus-intent prefetching for a link element.
func (r *Router) FocusIn(el *html.Node) { r.prefetch.FocusIn(el) }

// FocusOut cancels focus-intent prefetching for a link element.
func (r *Router) FocusOut(el *html.Node) { r.prefetch.FocusOut(el) }

// Observe registers an element for one-shot viewport prefetching.
func (r *Router) Observe(el *html.Node) { r.prefetch.Observe(el) }

// ElementVisible signals that an observed element entered the viewport.
func (r *Router) ElementVisible(el *html.Node) { r.prefetch.ElementVisible(el) }

// Back replays the previous history entry through the navigator without
// pushing a new one.
func (r *Router) Back(ctx context.Context) error {
	entry, ok := r.history.Back()
	if !ok {
		return nil
	}
	return r.replay(ctx, entry)
}

// Forward replays the next history entry through the navigator without
// pushing a new one.
func (r *Router) Forward(ctx context.Context) error {
	entry, ok := r.history.Forward()
	if !ok {
		return nil
	}
	return r.replay(ctx, entry)
}

// replay routes a popstate-style event. Entries without the router marker
// (the initial load, or entries created by something else) fall back to
// replaying the current location so the DOM always matches the URL bar.
func (r *Router) replay(ctx context.Context, entry HistoryEntry) error {
	target := entry.URL
	if !entry.Marker {
		target = r.history.Current().URL
	}
	if target == "" {
		return nil
	}
	return r.nav.Navigate(ctx, target, NavigationState{PushHistory: false, FromPopState: true})
}

// OnNavigate registers a listener for completed soft navigations, the hook
// page-level initializers use to re-bind against the swapped DOM.
func (r *Router) OnNavigate(fn func(Event)) {
	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()
	r.listeners = append(r.listeners, fn)
}

// History exposes the session history for the host shell.
func (r *Router) History() *History {
	return r.history
}

// CacheLen reports the number of cached pages.
func (r *Router) CacheLen() int {
	return r.cache.Len()
}

// Close stops the prefetch scheduler and waits for in-flight speculative
// fetches.
func (r *Router) Close() {
	r.prefetch.Stop()
}

// broadcast fans a navigation event out to the registered listeners.
func (r *Router) broadcast(ev Event) {
	r.listenerMu.Lock()
	listeners := make([]func(Event), len(r.listeners))
	copy(listeners, r.listeners)
	r.listenerMu.Unlock()

	for _, fn := range listeners {
		fn(ev)
	}
}

// interceptTarget applies the interception predicate: marked same-origin
// link, plain left click, not a new-tab or download target.
func (r *Router) interceptTarget(el *html.Node, mods Modifiers) (string, bool) {
	if mods.Any() {
		return "", false
	}
	anchor := markedAnchor(el)
	if anchor == nil {
		return "", false
	}
	if page.Attr(anchor, "target") == "_blank" || page.HasAttr(anchor, "download") {
		return "", false
	}
	href := page.Attr(anchor, "href")
	if href == "" {
		return "", false
	}
	base := r.doc.URL()
	if base == nil {
		return "", false
	}
	target, err := Normalize(base, href)
	if err != nil {
		return "", false
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return "", false
	}
	if !SameOrigin(base, target) {
		return "", false
	}
	return href, true
}

// markedAnchor returns el or its nearest ancestor <a> carrying the
// activation marker attribute.
func markedAnchor(n *html.Node) *html.Node {
	for ; n != nil; n = n.Parent {
		if n.Type == html.ElementNode && n.Data == "a" && page.HasAttr(n, MarkerAttr) {
			return n
		}
	}
	return nil
}
