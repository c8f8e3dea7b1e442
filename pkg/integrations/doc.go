// Package integrations provides shared HTTP plumbing for the external
// lookups the resolver performs: response caching, retry with backoff,
// and uniform error mapping. Registry-specific clients live in
// subpackages.
package integrations
