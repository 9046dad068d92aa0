// Package artifact defines the artifact-cache collaborator the codegen
// engine submits freshly generated files to, plus a local SQLite-backed
// implementation. Cache writes are best-effort: a failure is reported to the
// caller for logging but never fails the build.
package artifact

import "context"

// Cache receives (fingerprint, generated files) pairs for nodes that were
// regenerated this round, for reuse by other machines or executions.
type Cache interface {
	Put(ctx context.Context, fingerprint string, files []string) error
}

// Nop is a Cache that discards everything. Used when cache writes are
// disabled.
type Nop struct{}

// Put implements Cache as a no-op.
func (Nop) Put(ctx context.Context, fingerprint string, files []string) error {
	return nil
}
