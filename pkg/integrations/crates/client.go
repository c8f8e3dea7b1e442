// Package crates implements a minimal crates.io registry client.
package crates

import (
	"context"
	"fmt"
	"time"

	"github.com/depscope/depscope/pkg/cache"
	"github.com/depscope/depscope/pkg/integrations"
)

// CrateInfo holds the registry metadata the resolver needs for one crate.
//
// Version carries max_version, the highest published version. Newest
// carries newest_version, which may be a prerelease ahead of Version.
type CrateInfo struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Newest      string `json:"newest,omitempty"`
	Description string `json:"description,omitempty"`
	Repository  string `json:"repository,omitempty"`
	Downloads   int    `json:"downloads,omitempty"`
}

// Client provides access to the crates.io API.
//
// All methods are safe for concurrent use by multiple goroutines.
// crates.io requires a User-Agent header; this client sets one.
type Client struct {
	*integrations.Client
	baseURL string
}

// NewClient creates a crates.io client with the given cache backend.
func NewClient(backend cache.Cache, cacheTTL time.Duration) *Client {
	headers := map[string]string{
		"User-Agent": "depscope/1.0 (https://github.com/depscope/depscope)",
	}
	return &Client{
		Client:  integrations.NewClient(backend, "crates:", cacheTTL, headers),
		baseURL: "https://crates.io/api/v1",
	}
}

// crateResponse mirrors the fields of /api/v1/crates/{name} we consume.
type crateResponse struct {
	Crate struct {
		Name          string `json:"name"`
		MaxVersion    string `json:"max_version"`
		NewestVersion string `json:"newest_version"`
		Description   string `json:"description"`
		Repository    string `json:"repository"`
		Downloads     int    `json:"downloads"`
	} `json:"crate"`
}

// FetchCrate retrieves metadata for a crate. The name is case-sensitive
// and must match the published crate name exactly. If refresh is true
// the cache is bypassed.
//
// Returns cache.ErrNotFound when the crate does not exist.
func (c *Client) FetchCrate(ctx context.Context, name string, refresh bool) (*CrateInfo, error) {
	var info CrateInfo
	err := c.Cached(ctx, name, refresh, &info, func() error {
		var resp crateResponse
		url := fmt.Sprintf("%s/crates/%s", c.baseURL, name)
		if err := c.Get(ctx, url, &resp); err != nil {
			return err
		}
		info = CrateInfo{
			Name:        resp.Crate.Name,
			Version:     resp.Crate.MaxVersion,
			Newest:      resp.Crate.NewestVersion,
			Description: resp.Crate.Description,
			Repository:  resp.Crate.Repository,
			Downloads:   resp.Crate.Downloads,
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("fetching crate %s: %w", name, err)
	}
	return &info, nil
}

// LatestVersion returns the highest published version of a crate.
func (c *Client) LatestVersion(ctx context.Context, name string, refresh bool) (string, error) {
	info, err := c.FetchCrate(ctx, name, refresh)
	if err != nil {
		return "", err
	}
	return info.Version, nil
}

// WithBaseURL overrides the API endpoint, used by tests.
func (c *Client) WithBaseURL(url string) *Client {
	c.baseURL = url
	return c
}
