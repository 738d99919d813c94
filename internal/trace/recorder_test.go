// File: internal/trace/recorder_test.go
package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecordedClient(t *testing.T) (*httptest.Server, *http.Client, *Recorder) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	t.Cleanup(srv.Close)

	rec := NewRecorder(nil)
	client := &http.Client{Transport: rec}
	t.Cleanup(client.CloseIdleConnections)
	return srv, client, rec
}

func TestRecorder_ClassifiesByRouterHeader(t *testing.T) {
	srv, client, rec := newRecordedClient(t)

	get := func(path string, header string) {
		req, err := http.NewRequest(http.MethodGet, srv.URL+path, nil)
		require.NoError(t, err)
		if header != "" {
			req.Header.Set(header, "true")
		}
		resp, err := client.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
	}

	get("/", "")
	get("/a", "X-Router-Navigate")
	get("/b", "X-Router-Prefetch")

	fetches := rec.Fetches()
	require.Len(t, fetches, 3)
	assert.Equal(t, KindDocument, fetches[0].Kind)
	assert.Equal(t, KindNavigate, fetches[1].Kind)
	assert.Equal(t, KindPrefetch, fetches[2].Kind)

	for _, f := range fetches {
		assert.Equal(t, http.StatusOK, f.Status)
		assert.NotEmpty(t, f.ID)
		assert.Empty(t, f.Error)
		assert.False(t, f.Start.IsZero())
	}
}

func TestRecorder_RecordsStatusAndErrors(t *testing.T) {
	srv, client, rec := newRecordedClient(t)

	resp, err := client.Get(srv.URL + "/missing")
	require.NoError(t, err)
	resp.Body.Close()

	// A request to a closed server records a transport error.
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	deadURL := dead.URL
	dead.Close()
	_, err = client.Get(deadURL)
	require.Error(t, err)

	fetches := rec.Fetches()
	require.Len(t, fetches, 2)
	assert.Equal(t, http.StatusNotFound, fetches[0].Status)
	assert.NotEmpty(t, fetches[1].Error)
	assert.Zero(t, fetches[1].Status)
}

func TestRecorder_WriteJSONRoundTrips(t *testing.T) {
	srv, client, rec := newRecordedClient(t)

	resp, err := client.Get(srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()

	var buf bytes.Buffer
	require.NoError(t, rec.WriteJSON(&buf))

	var decoded []Fetch
	require.NoError(t, jsoniter.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.Equal(t, srv.URL+"/", decoded[0].URL)
	assert.Equal(t, KindDocument, decoded[0].Kind)
}

func TestRecorder_Reset(t *testing.T) {
	srv, client, rec := newRecordedClient(t)

	resp, err := client.Get(srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	require.Len(t, rec.Fetches(), 1)

	rec.Reset()
	assert.Empty(t, rec.Fetches())
}

func TestRecorder_FetchesReturnsSnapshot(t *testing.T) {
	srv, client, rec := newRecordedClient(t)

	resp, err := client.Get(srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()

	snapshot := rec.Fetches()
	resp, err = client.Get(srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Len(t, snapshot, 1, "an earlier snapshot must not grow with later traffic")
	assert.Len(t, rec.Fetches(), 2)
}
