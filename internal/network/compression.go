// File: internal/network/compression.go
package network

import (
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// Pools for decompression readers to reduce allocation overhead across the
// many small fetches a navigation session performs.
var (
	gzipReaderPool = sync.Pool{
		New: func() interface{} { return new(gzip.Reader) },
	}
	brotliReaderPool = sync.Pool{
		New: func() interface{} { return brotli.NewReader(nil) },
	}
)

// emptyReader is used for safely resetting pooled readers on release.
var emptyReader = strings.NewReader("")

// DecompressionMiddleware is an http.RoundTripper that advertises compression
// support on outgoing requests and transparently decompresses response bodies
// based on the Content-Encoding header. Supports gzip, deflate (zlib and raw)
// and brotli.
type DecompressionMiddleware struct {
	// Transport is the underlying RoundTripper. If nil, http.DefaultTransport is used.
	Transport http.RoundTripper
}

// NewDecompressionMiddleware wraps the given transport.
func NewDecompressionMiddleware(transport http.RoundTripper) *DecompressionMiddleware {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &DecompressionMiddleware{Transport: transport}
}

// RoundTrip implements http.RoundTripper.
func (m *DecompressionMiddleware) RoundTrip(req *http.Request) (*http.Response, error) {
	if req.Header.Get("Accept-Encoding") == "" {
		req.Header.Set("Accept-Encoding", "br, gzip, deflate, identity")
	}

	resp, err := m.Transport.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	if err := decompressResponse(resp); err != nil {
		// The body stream may be partially consumed; the response is unusable.
		_ = resp.Body.Close()
		return nil, fmt.Errorf("failed to initialize response decompression: %w", err)
	}
	return resp, nil
}

// decompressResponse wraps resp.Body with the decoder matching its
// Content-Encoding and strips the now-stale headers.
func decompressResponse(resp *http.Response) error {
	if resp == nil || resp.Body == nil {
		return nil
	}

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))

	var reader io.ReadCloser
	var release func()

	switch encoding {
	case "", "identity":
		return nil

	case "gzip":
		zr := gzipReaderPool.Get().(*gzip.Reader)
		if err := zr.Reset(resp.Body); err != nil {
			gzipReaderPool.Put(zr)
			return fmt.Errorf("gzip initialization error: %w", err)
		}
		reader = zr
		release = func() {
			_ = zr.Reset(emptyReader)
			gzipReaderPool.Put(zr)
		}

	case "br":
		br := brotliReaderPool.Get().(*brotli.Reader)
		if err := br.Reset(resp.Body); err != nil {
			brotliReaderPool.Put(br)
			return fmt.Errorf("brotli initialization error: %w", err)
		}
		// brotli.Reader does not implement io.Closer.
		reader = io.NopCloser(br)
		release = func() {
			_ = br.Reset(emptyReader)
			brotliReaderPool.Put(br)
		}

	case "deflate":
		// Servers send both zlib-wrapped (RFC 1950) and raw (RFC 1951)
		// streams under "deflate"; sniff the zlib header byte.
		reader = newDeflateReader(resp.Body)

	default:
		return fmt.Errorf("unsupported Content-Encoding: %s", encoding)
	}

	resp.Body = &decompressedBody{
		ReadCloser:   reader,
		originalBody: resp.Body,
		release:      release,
	}
	resp.Header.Del("Content-Encoding")
	resp.Header.Del("Content-Length")
	resp.ContentLength = -1
	resp.Uncompressed = true
	return nil
}

// decompressedBody closes both the decoder and the underlying body, and
// returns pooled readers on Close.
type decompressedBody struct {
	io.ReadCloser
	originalBody io.ReadCloser
	release      func()
}

func (b *decompressedBody) Close() error {
	if b.release != nil {
		b.release()
		b.release = nil
	}
	return errors.Join(b.ReadCloser.Close(), b.originalBody.Close())
}

// deflateReader lazily picks zlib or raw deflate on the first read.
type deflateReader struct {
	source io.Reader
	inner  io.ReadCloser
}

func newDeflateReader(r io.Reader) *deflateReader {
	return &deflateReader{source: r}
}

func (d *deflateReader) Read(p []byte) (int, error) {
	if d.inner == nil {
		var header [2]byte
		n, err := io.ReadFull(d.source, header[:])
		if err != nil && err != io.ErrUnexpectedEOF {
			return 0, err
		}
		prefixed := io.MultiReader(strings.NewReader(string(header[:n])), d.source)
		// 0x78 is the zlib CMF byte for the deflate method.
		if n == 2 && header[0] == 0x78 {
			zr, err := zlib.NewReader(prefixed)
			if err != nil {
				return 0, err
			}
			d.inner = zr
		} else {
			d.inner = flate.NewReader(prefixed)
		}
	}
	return d.inner.Read(p)
}

func (d *deflateReader) Close() error {
	if d.inner == nil {
		return nil
	}
	return d.inner.Close()
}
