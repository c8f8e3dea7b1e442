// Package pipeline orchestrates a full ecosystem scan: discovery,
// extraction, version resolution, snapshot assembly, and the artifact
// write. Item-scoped problems accumulate as warnings on the result;
// only structural failures abort a run.
package pipeline

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/depscope/depscope/pkg/cache"
	"github.com/depscope/depscope/pkg/integrations/crates"
	"github.com/depscope/depscope/pkg/integrations/gitref"
	"github.com/depscope/depscope/pkg/manifest"
	"github.com/depscope/depscope/pkg/resolve"
	"github.com/depscope/depscope/pkg/snapshot"
)

// DefaultTTL is how long registry and git lookups stay cached.
const DefaultTTL = 6 * time.Hour

// DefaultArtifactPath places the TSV artifact under the ecosystem
// root.
func DefaultArtifactPath(root string) string {
	return filepath.Join(root, ".depscope", "snapshot.tsv")
}

// Options configures a scan.
type Options struct {
	Root    string
	Hub     string // hub package name, may be empty
	Output  string // artifact path, default DefaultArtifactPath(Root)
	Workers int
	Timeout time.Duration
	Refresh bool // bypass the HTTP cache

	// Backend is the HTTP lookup cache. Defaults to no caching.
	Backend cache.Cache

	// Registry and Git override the real clients, used by tests.
	Registry resolve.RegistryClient
	Git      resolve.GitClient

	Logf func(format string, args ...any)
}

// WithDefaults fills in zero-valued fields.
func (o Options) WithDefaults() Options {
	if o.Output == "" {
		o.Output = DefaultArtifactPath(o.Root)
	}
	if o.Backend == nil {
		o.Backend = cache.NewNullCache()
	}
	if o.Registry == nil {
		o.Registry = crates.NewClient(o.Backend, DefaultTTL)
	}
	if o.Git == nil {
		o.Git = gitref.NewClient(nil, o.Backend, DefaultTTL)
	}
	if o.Logf == nil {
		o.Logf = func(string, ...any) {}
	}
	return o
}

// Result is a completed scan.
type Result struct {
	Snapshot *snapshot.Snapshot
	Path     string   // where the artifact was written
	Warnings []string // item-scoped problems, in phase order
}

// Generate runs the full scan and writes the artifact.
func Generate(ctx context.Context, opts Options) (*Result, error) {
	opts = opts.WithDefaults()
	if opts.Root == "" {
		return nil, fmt.Errorf("ecosystem root is required")
	}
	res := &Result{Path: opts.Output}

	opts.Logf("discovering manifests under %s", opts.Root)
	paths, warnings, err := manifest.Discover(opts.Root)
	if err != nil {
		return nil, err
	}
	res.Warnings = append(res.Warnings, warnings...)
	if len(paths) == 0 {
		return nil, fmt.Errorf("no Cargo.toml files under %s", opts.Root)
	}
	opts.Logf("found %d manifests", len(paths))

	ms, warnings := manifest.LoadAll(opts.Root, paths)
	res.Warnings = append(res.Warnings, warnings...)
	if len(ms) == 0 {
		return nil, fmt.Errorf("no parseable manifests under %s", opts.Root)
	}

	resolver := resolve.New(opts.Registry, opts.Git)
	results, warnings := resolver.Resolve(ctx, ms, resolve.Options{
		Workers: opts.Workers,
		Timeout: opts.Timeout,
		Refresh: opts.Refresh,
		Logf:    opts.Logf,
	})
	res.Warnings = append(res.Warnings, warnings...)

	res.Snapshot = snapshot.Build(opts.Root, opts.Hub, ms, results)
	opts.Logf("snapshot: %d repos, %d packages, %d declarations",
		res.Snapshot.Aggregation.TotalRepos,
		res.Snapshot.Aggregation.TotalPackages,
		res.Snapshot.Aggregation.TotalDeclarations)

	if err := res.Snapshot.Write(opts.Output); err != nil {
		return nil, fmt.Errorf("writing artifact: %w", err)
	}
	return res, nil
}
