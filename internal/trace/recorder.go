// File: internal/trace/recorder.go

// Package trace records the HTTP traffic a navigation session generates so
// it can be inspected or exported after the fact.
package trace

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
)

// Kind classifies a recorded fetch by the router header it carried.
type Kind string

const (
	KindNavigate Kind = "navigate"
	KindPrefetch Kind = "prefetch"
	KindDocument Kind = "document"
)

// Fetch is one recorded request/response pair.
type Fetch struct {
	ID       string        `json:"id"`
	URL      string        `json:"url"`
	Kind     Kind          `json:"kind"`
	Status   int           `json:"status,omitempty"`
	Start    time.Time     `json:"start"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// Recorder is an http.RoundTripper that logs every fetch passing through it.
// Wrap the session transport with it to get a complete navigation trace.
type Recorder struct {
	next http.RoundTripper

	mu      sync.Mutex
	fetches []Fetch
}

// NewRecorder wraps the given transport. A nil transport falls back to
// http.DefaultTransport.
func NewRecorder(next http.RoundTripper) *Recorder {
	if next == nil {
		next = http.DefaultTransport
	}
	return &Recorder{next: next}
}

// RoundTrip implements http.RoundTripper.
func (r *Recorder) RoundTrip(req *http.Request) (*http.Response, error) {
	entry := Fetch{
		ID:    uuid.New().String(),
		URL:   req.URL.String(),
		Kind:  classify(req),
		Start: time.Now(),
	}

	resp, err := r.next.RoundTrip(req)
	entry.Duration = time.Since(entry.Start)
	if err != nil {
		entry.Error = err.Error()
	} else {
		entry.Status = resp.StatusCode
	}

	r.mu.Lock()
	r.fetches = append(r.fetches, entry)
	r.mu.Unlock()

	return resp, err
}

// Fetches returns a snapshot of the recorded traffic in order.
func (r *Recorder) Fetches() []Fetch {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Fetch, len(r.fetches))
	copy(out, r.fetches)
	return out
}

// Reset discards the recorded traffic.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetches = nil
}

// WriteJSON serializes the trace to w.
func (r *Recorder) WriteJSON(w io.Writer) error {
	enc := jsoniter.ConfigCompatibleWithStandardLibrary.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r.Fetches())
}

// classify maps the router header contract onto a trace kind. Requests
// without a router header are plain document loads.
func classify(req *http.Request) Kind {
	switch {
	case req.Header.Get("X-Router-Prefetch") == "true":
		return KindPrefetch
	case req.Header.Get("X-Router-Navigate") == "true":
		return KindNavigate
	default:
		return KindDocument
	}
}
