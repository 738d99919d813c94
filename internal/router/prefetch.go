// File: internal/router/prefetch.go
package router

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/fennelsoft/slipstream/internal/page"
)

// DefaultPrefetchDebounce is how long a pointer must rest on a link before
// the speculative fetch fires.
const DefaultPrefetchDebounce = 65 * time.Millisecond

// Prefetcher speculatively fetches link targets into the page cache. Hover
// and focus intent share a debounce timer; viewport intent is one-shot per
// element. Failures are swallowed: a lost prefetch only means the navigator
// pays for a normal fetch later.
type Prefetcher struct {
	logger    *zap.Logger
	client    *http.Client
	cache     *Cache
	doc       *page.Document
	userAgent string
	debounce  time.Duration

	// group is the pending-set: at most one in-flight fetch per normalized
	// URL, concurrent callers coalesce onto it.
	group   singleflight.Group
	limiter *rate.Limiter

	mu       sync.Mutex
	closed   bool
	timers   map[*html.Node]*time.Timer
	observed map[*html.Node]struct{}
	wg       sync.WaitGroup
}

// newPrefetcher wires the scheduler to the session's cache and document.
func newPrefetcher(client *http.Client, cache *Cache, doc *page.Document, debounce time.Duration, limit float64, burst int, userAgent string, logger *zap.Logger) *Prefetcher {
	if debounce <= 0 {
		debounce = DefaultPrefetchDebounce
	}
	if limit <= 0 {
		limit = 8
	}
	if burst <= 0 {
		burst = 4
	}
	return &Prefetcher{
		logger:    logger.Named("prefetch"),
		client:    client,
		cache:     cache,
		doc:       doc,
		userAgent: userAgent,
		debounce:  debounce,
		limiter:   rate.NewLimiter(rate.Limit(limit), burst),
		timers:    make(map[*html.Node]*time.Timer),
		observed:  make(map[*html.Node]struct{}),
	}
}

// PointerEnter starts the debounce timer for a marked link. If the pointer
// leaves before the timer fires no fetch happens at all.
func (p *Prefetcher) PointerEnter(el *html.Node) {
	anchor := markedAnchor(el)
	if anchor == nil {
		return
	}
	href := page.Attr(anchor, "href")
	if href == "" {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	if prev, ok := p.timers[el]; ok {
		if prev.Stop() {
			p.wg.Done()
		}
	}
	p.wg.Add(1)
	p.timers[el] = time.AfterFunc(p.debounce, func() {
		defer p.wg.Done()
		p.mu.Lock()
		delete(p.timers, el)
		p.mu.Unlock()
		p.Prefetch(context.Background(), href)
	})
}

// PointerLeave cancels a pending debounce timer for the element.
func (p *Prefetcher) PointerLeave(el *html.Node) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.timers[el]; ok {
		delete(p.timers, el)
		if t.Stop() {
			p.wg.Done()
		}
	}
}

// FocusIn treats keyboard focus like hover intent.
func (p *Prefetcher) FocusIn(el *html.Node) { p.PointerEnter(el) }

// FocusOut cancels the focus-intent timer.
func (p *Prefetcher) FocusOut(el *html.Node) { p.PointerLeave(el) }

// Observe registers an element that opted into viewport prefetching.
func (p *Prefetcher) Observe(el *html.Node) {
	anchor := markedAnchor(el)
	if anchor == nil || page.Attr(anchor, PrefetchModeAttr) != PrefetchModeViewport {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.observed[el] = struct{}{}
}

// ElementVisible fires the one-shot viewport prefetch for an observed
// element and stops observing it.
func (p *Prefetcher) ElementVisible(el *html.Node) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	if _, ok := p.observed[el]; !ok {
		p.mu.Unlock()
		return
	}
	delete(p.observed, el)
	anchor := markedAnchor(el)
	if anchor == nil {
		p.mu.Unlock()
		return
	}
	href := page.Attr(anchor, "href")
	p.wg.Add(1)
	p.mu.Unlock()

	go func() {
		defer p.wg.Done()
		p.Prefetch(context.Background(), href)
	}()
}

// Prefetch issues a speculative fetch for raw and populates the cache.
// It is a no-op when the target is cross-origin, already cached fresh, over
// the rate limit, or already in flight. Nothing is ever surfaced to the
// caller; the worst case is a cache miss later.
func (p *Prefetcher) Prefetch(ctx context.Context, raw string) {
	base := p.doc.URL()
	if base == nil {
		p.logger.Debug("Prefetch before initial document load ignored", zap.String("url", raw))
		return
	}
	target, err := Normalize(base, raw)
	if err != nil {
		p.logger.Debug("Prefetch target did not normalize", zap.String("url", raw), zap.Error(err))
		return
	}
	if !SameOrigin(base, target) {
		return
	}

	key := CacheKey(target)
	if _, ok := p.cache.Get(key); ok {
		return
	}
	if !p.limiter.Allow() {
		// Speculation is best-effort; over the budget we drop, not queue.
		p.logger.Debug("Prefetch dropped by rate limiter", zap.String("url", key))
		return
	}

	_, err, _ = p.group.Do(key, func() (interface{}, error) {
		return nil, p.fetch(ctx, key)
	})
	if err != nil {
		p.logger.Debug("Prefetch failed, will fall back to a live fetch on navigation",
			zap.String("url", key), zap.Error(err))
	}
}

// fetch performs the actual speculative request.
func (p *Prefetcher) fetch(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key, nil)
	if err != nil {
		return err
	}
	if p.userAgent != "" {
		req.Header.Set("User-Agent", p.userAgent)
	}
	req.Header.Set(HeaderPrefetch, "true")

	resp, err := p.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Do not cache error pages; the navigator must see the real status.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	p.cache.Put(key, string(body))
	p.logger.Debug("Prefetched page", zap.String("url", key), zap.Int("bytes", len(body)))
	return nil
}

// Stop cancels pending timers and waits for in-flight prefetches to finish.
func (p *Prefetcher) Stop() {
	p.mu.Lock()
	p.closed = true
	for el, t := range p.timers {
		delete(p.timers, el)
		if t.Stop() {
			p.wg.Done()
		}
	}
	p.observed = make(map[*html.Node]struct{})
	p.mu.Unlock()
	p.wg.Wait()
}
