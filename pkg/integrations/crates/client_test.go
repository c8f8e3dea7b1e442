package crates

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/depscope/depscope/pkg/cache"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(cache.NewNullCache(), time.Hour).WithBaseURL(srv.URL)
}

func TestFetchCrate(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/crates/serde" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"crate":{"name":"serde","max_version":"1.0.226","newest_version":"1.0.226","downloads":500}}`))
	})

	info, err := c.FetchCrate(context.Background(), "serde", false)
	if err != nil {
		t.Fatal(err)
	}
	if info.Name != "serde" || info.Version != "1.0.226" {
		t.Errorf("info = %+v", info)
	}
}

func TestFetchCrateNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := c.FetchCrate(context.Background(), "no-such-crate", false)
	if !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("want ErrNotFound, got %v", err)
	}
}

func TestLatestVersionUsesCache(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"crate":{"name":"tokio","max_version":"1.45.2"}}`))
	}))
	defer srv.Close()

	backend, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	c := NewClient(backend, time.Hour).WithBaseURL(srv.URL)

	for i := 0; i < 3; i++ {
		v, err := c.LatestVersion(context.Background(), "tokio", false)
		if err != nil {
			t.Fatal(err)
		}
		if v != "1.45.2" {
			t.Errorf("LatestVersion = %q", v)
		}
	}
	if calls != 1 {
		t.Errorf("API calls = %d, want 1", calls)
	}
}
