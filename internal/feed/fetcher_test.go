package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetcher_FullContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Last-Modified", "Sun, 30 Aug 2026 01:00:00 GMT")
		w.Write([]byte("<feed></feed>"))
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)
	res, err := f.Fetch(context.Background(), srv.URL, "")
	require.NoError(t, err)
	assert.False(t, res.NotModified)
	assert.Equal(t, []byte("<feed></feed>"), res.Body)
	assert.Equal(t, "Sun, 30 Aug 2026 01:00:00 GMT", res.LastModified)
}

func TestFetcher_SendsValidator(t *testing.T) {
	var gotValidator atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotValidator.Store(r.Header.Get("If-Modified-Since"))
		w.WriteHeader(http.StatusNotModified)
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)
	res, err := f.Fetch(context.Background(), srv.URL, "Sun, 30 Aug 2026 01:00:00 GMT")
	require.NoError(t, err)
	assert.True(t, res.NotModified)
	assert.Empty(t, res.Body)
	assert.Equal(t, "Sun, 30 Aug 2026 01:00:00 GMT", gotValidator.Load())
}

func TestFetcher_NoValidatorHeaderWhenEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := r.Header["If-Modified-Since"]; ok {
			t.Error("unconditional fetch must not send If-Modified-Since")
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)
	_, err := f.Fetch(context.Background(), srv.URL, "")
	require.NoError(t, err)
}

func TestFetcher_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(5 * time.Second)
	res, err := f.Fetch(context.Background(), srv.URL, "")
	require.Error(t, err)
	assert.Nil(t, res)
}

func TestFetcher_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused

	f := NewFetcher(time.Second)
	_, err := f.Fetch(context.Background(), srv.URL, "")
	require.Error(t, err)
}
