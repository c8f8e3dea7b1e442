// Package resolve determines the latest available version for every
// package declared across the ecosystem.
//
// One lookup task is scheduled per unique package name. Tasks run on a
// bounded worker pool so wide ecosystems cannot stampede the registry.
// A failed lookup degrades that one package to an unknown latest
// version; it never aborts the run.
package resolve

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/depscope/depscope/pkg/manifest"
)

// RegistryClient fetches the latest published version of a crate.
type RegistryClient interface {
	LatestVersion(ctx context.Context, name string, refresh bool) (string, error)
}

// GitClient fetches the highest version tag of a remote repository.
type GitClient interface {
	LatestTag(ctx context.Context, url string, refresh bool) (string, error)
}

// Options configures a resolution run.
type Options struct {
	Workers int           // concurrent lookups, default 8
	Timeout time.Duration // per-task deadline, default 10s
	Refresh bool          // bypass the HTTP cache
	Logf    func(format string, args ...any)
}

// WithDefaults fills in zero-valued fields.
func (o Options) WithDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 8
	}
	if o.Timeout <= 0 {
		o.Timeout = 10 * time.Second
	}
	if o.Logf == nil {
		o.Logf = func(string, ...any) {}
	}
	return o
}

// Result is the resolved state of one package.
type Result struct {
	Package string
	Latest  string              // "" when the lookup failed
	Source  manifest.SourceKind // winning source kind
	Locator string              // where Latest came from
	Err     error               // nil on success
}

// Resolver runs version lookups against pluggable backends.
type Resolver struct {
	registry RegistryClient
	git      GitClient
}

// New creates a Resolver.
func New(registry RegistryClient, git GitClient) *Resolver {
	return &Resolver{registry: registry, git: git}
}

// sourceRank orders source kinds for conflict resolution: a package
// declared from several kinds resolves through the highest-ranked one.
func sourceRank(k manifest.SourceKind) int {
	switch k {
	case manifest.SourceLocal:
		return 4
	case manifest.SourceGit:
		return 3
	case manifest.SourceWorkspace:
		return 2
	case manifest.SourceRegistry:
		return 1
	}
	return 0
}

// task is one package with its winning declaration.
type task struct {
	name string
	dep  manifest.Dependency
}

// Resolve looks up the latest version of every unique package declared
// in ms. The returned map has one entry per package name; packages
// whose lookup failed carry an empty Latest and a non-nil Err, and a
// warning is appended for each. All workers have finished when Resolve
// returns.
func (r *Resolver) Resolve(ctx context.Context, ms []*manifest.Manifest, opts Options) (map[string]Result, []string) {
	opts = opts.WithDefaults()

	tasks := collectTasks(ms)
	opts.Logf("resolving %d packages with %d workers", len(tasks), opts.Workers)

	jobs := make(chan task)
	out := make(chan Result)

	var wg sync.WaitGroup
	for i := 0; i < opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				out <- r.lookup(ctx, t, ms, opts)
			}
		}()
	}

	go func() {
		for _, t := range tasks {
			jobs <- t
		}
		close(jobs)
		wg.Wait()
		close(out)
	}()

	results := make(map[string]Result, len(tasks))
	var warnings []string
	for res := range out {
		if res.Err != nil {
			warnings = append(warnings, fmt.Sprintf("resolve %s: %v", res.Package, res.Err))
			opts.Logf("lookup failed for %s: %v", res.Package, res.Err)
		}
		results[res.Package] = res
	}
	sort.Strings(warnings)
	return results, warnings
}

// collectTasks dedupes declarations down to one task per package name,
// keeping the declaration whose source kind wins precedence.
func collectTasks(ms []*manifest.Manifest) []task {
	byName := map[string]manifest.Dependency{}
	for _, m := range ms {
		for _, d := range m.Dependencies {
			cur, seen := byName[d.Name]
			if !seen || sourceRank(d.Source.Kind) > sourceRank(cur.Source.Kind) {
				byName[d.Name] = d
			}
		}
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	sort.Strings(names)

	tasks := make([]task, 0, len(names))
	for _, name := range names {
		tasks = append(tasks, task{name: name, dep: byName[name]})
	}
	return tasks
}

func (r *Resolver) lookup(ctx context.Context, t task, ms []*manifest.Manifest, opts Options) Result {
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	res := Result{Package: t.name, Source: t.dep.Source.Kind, Locator: t.dep.Source.Locator()}

	switch t.dep.Source.Kind {
	case manifest.SourceRegistry:
		v, err := r.registry.LatestVersion(ctx, t.name, opts.Refresh)
		if err != nil {
			res.Err = err
			return res
		}
		res.Latest = v

	case manifest.SourceLocal:
		// Version was read from the referenced manifest at extraction.
		if t.dep.Version == "" {
			res.Err = fmt.Errorf("path dependency target has no version")
			return res
		}
		res.Latest = t.dep.Version
		res.Locator = fmt.Sprintf("(LOCAL: %s)", t.dep.Source.Path)

	case manifest.SourceWorkspace:
		if t.dep.Version == "" {
			res.Err = fmt.Errorf("no workspace pin found")
			return res
		}
		res.Latest = t.dep.Version

	case manifest.SourceGit:
		// An in-ecosystem repo with the same name is fresher than any
		// published tag.
		if m := manifest.FindRepo(ms, t.name); m != nil && m.Repository.Version != "" {
			res.Latest = m.Repository.Version
			res.Locator = fmt.Sprintf("(LOCAL: %s)", m.Repository.Path)
			return res
		}
		v, err := r.git.LatestTag(ctx, t.dep.Source.GitURL, opts.Refresh)
		if err != nil {
			res.Err = err
			return res
		}
		res.Latest = v

	default:
		res.Err = fmt.Errorf("unresolvable declaration shape")
	}
	return res
}
