package integrations

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/depscope/depscope/pkg/cache"
)

func TestGetDecodesJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"name":"serde"}`))
	}))
	defer srv.Close()

	c := NewClient(cache.NewNullCache(), "test:", time.Hour, nil)
	var out struct {
		Name string `json:"name"`
	}
	if err := c.Get(context.Background(), srv.URL, &out); err != nil {
		t.Fatal(err)
	}
	if out.Name != "serde" {
		t.Errorf("Name = %q", out.Name)
	}
}

func TestGetStatusMapping(t *testing.T) {
	var status atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
	}))
	defer srv.Close()

	c := NewClient(cache.NewNullCache(), "test:", time.Hour, nil)
	var out any

	status.Store(http.StatusNotFound)
	if err := c.Get(context.Background(), srv.URL, &out); !errors.Is(err, cache.ErrNotFound) {
		t.Errorf("404 should map to ErrNotFound, got %v", err)
	}

	status.Store(http.StatusInternalServerError)
	err := c.Get(context.Background(), srv.URL, &out)
	if !errors.Is(err, cache.ErrNetwork) {
		t.Errorf("500 should map to ErrNetwork, got %v", err)
	}
	if !cache.IsRetryable(err) {
		t.Error("5xx should be retryable")
	}

	status.Store(http.StatusForbidden)
	err = c.Get(context.Background(), srv.URL, &out)
	if !errors.Is(err, cache.ErrNetwork) || cache.IsRetryable(err) {
		t.Errorf("403 should be non-retryable network error, got %v", err)
	}
}

func TestGetSendsHeaders(t *testing.T) {
	var gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	c := NewClient(cache.NewNullCache(), "test:", time.Hour, map[string]string{"User-Agent": "depscope/1.0"})
	var out any
	if err := c.Get(context.Background(), srv.URL, &out); err != nil {
		t.Fatal(err)
	}
	if gotUA != "depscope/1.0" {
		t.Errorf("User-Agent = %q", gotUA)
	}
}

func TestCachedHitSkipsFetch(t *testing.T) {
	backend, err := cache.NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	c := NewClient(backend, "test:", time.Hour, nil)
	ctx := context.Background()

	calls := 0
	fetch := func(v *string) func() error {
		return func() error {
			calls++
			*v = "1.0.226"
			return nil
		}
	}

	var v1 string
	if err := c.Cached(ctx, "serde", false, &v1, fetch(&v1)); err != nil {
		t.Fatal(err)
	}
	var v2 string
	if err := c.Cached(ctx, "serde", false, &v2, fetch(&v2)); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("fetch calls = %d, want 1", calls)
	}
	if v2 != "1.0.226" {
		t.Errorf("cached value = %q", v2)
	}

	// refresh=true bypasses the cache
	var v3 string
	if err := c.Cached(ctx, "serde", true, &v3, fetch(&v3)); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("fetch calls after refresh = %d, want 2", calls)
	}
}
