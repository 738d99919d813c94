// File: internal/network/compression_test.go
package network

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const compressedPayload = "<html><body>compressed page body</body></html>"

// encodedServer serves compressedPayload under the given Content-Encoding,
// using encode to produce the wire bytes.
func encodedServer(t *testing.T, encoding string, encode func(io.Writer) io.WriteCloser) *httptest.Server {
	t.Helper()
	var buf bytes.Buffer
	if encode != nil {
		w := encode(&buf)
		_, err := w.Write([]byte(compressedPayload))
		require.NoError(t, err)
		require.NoError(t, w.Close())
	} else {
		buf.WriteString(compressedPayload)
	}
	wire := buf.Bytes()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if encoding != "" {
			w.Header().Set("Content-Encoding", encoding)
		}
		_, _ = w.Write(wire)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func fetchBody(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	client := &http.Client{Transport: NewDecompressionMiddleware(nil)}
	t.Cleanup(client.CloseIdleConnections)

	resp, err := client.Get(url)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp, string(body)
}

func TestDecompression_Gzip(t *testing.T) {
	srv := encodedServer(t, "gzip", func(w io.Writer) io.WriteCloser {
		return gzip.NewWriter(w)
	})

	resp, body := fetchBody(t, srv.URL)
	assert.Equal(t, compressedPayload, body)
	assert.Empty(t, resp.Header.Get("Content-Encoding"), "stale encoding headers are stripped")
	assert.True(t, resp.Uncompressed)
}

func TestDecompression_Brotli(t *testing.T) {
	srv := encodedServer(t, "br", func(w io.Writer) io.WriteCloser {
		return brotli.NewWriter(w)
	})

	_, body := fetchBody(t, srv.URL)
	assert.Equal(t, compressedPayload, body)
}

func TestDecompression_DeflateZlib(t *testing.T) {
	srv := encodedServer(t, "deflate", func(w io.Writer) io.WriteCloser {
		return zlib.NewWriter(w)
	})

	_, body := fetchBody(t, srv.URL)
	assert.Equal(t, compressedPayload, body, "zlib-wrapped deflate should be sniffed and decoded")
}

func TestDecompression_DeflateRaw(t *testing.T) {
	srv := encodedServer(t, "deflate", func(w io.Writer) io.WriteCloser {
		fw, err := flate.NewWriter(w, flate.DefaultCompression)
		require.NoError(t, err)
		return fw
	})

	_, body := fetchBody(t, srv.URL)
	assert.Equal(t, compressedPayload, body, "raw deflate streams appear in the wild and must decode too")
}

func TestDecompression_IdentityPassThrough(t *testing.T) {
	srv := encodedServer(t, "", nil)

	_, body := fetchBody(t, srv.URL)
	assert.Equal(t, compressedPayload, body)
}

func TestDecompression_UnsupportedEncodingFails(t *testing.T) {
	srv := encodedServer(t, "zstd", nil)

	client := &http.Client{Transport: NewDecompressionMiddleware(nil)}
	t.Cleanup(client.CloseIdleConnections)

	_, err := client.Get(srv.URL) //nolint:bodyclose // the middleware closes the body on error
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported Content-Encoding")
}

func TestDecompression_AdvertisesAcceptEncoding(t *testing.T) {
	headers := make(chan string, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers <- r.Header.Get("Accept-Encoding")
	}))
	t.Cleanup(srv.Close)

	_, body := fetchBody(t, srv.URL)
	got := <-headers
	assert.Empty(t, body)
	assert.Contains(t, got, "br")
	assert.Contains(t, got, "gzip")
	assert.Contains(t, got, "deflate")
}

// TestDecompression_PooledReadersAreReusable runs several gzip fetches in
// sequence to exercise reader pooling and reset.
func TestDecompression_PooledReadersAreReusable(t *testing.T) {
	srv := encodedServer(t, "gzip", func(w io.Writer) io.WriteCloser {
		return gzip.NewWriter(w)
	})

	for i := 0; i < 5; i++ {
		_, body := fetchBody(t, srv.URL)
		require.Equal(t, compressedPayload, body)
	}
}
