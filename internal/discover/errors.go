package discover

import (
	"fmt"
	"strings"
)

// DiscoveryError reports a filesystem failure while traversing a node's
// workspace. A missing workspace is not a DiscoveryError; permission and
// read failures are.
type DiscoveryError struct {
	NodeID string
	Dir    string
	Err    error
}

// Error returns a human-readable string naming the node and directory.
func (e *DiscoveryError) Error() string {
	return fmt.Sprintf("discovering sources for %s under %s: %v", e.NodeID, e.Dir, e.Err)
}

// Unwrap returns the underlying error for use with errors.Is/As.
func (e *DiscoveryError) Unwrap() error {
	return e.Err
}

// OwnershipError reports a generated file strictly claimed by more than one
// node in the same ancestry chain. It indicates a broken generator and is
// treated as an invariant violation.
type OwnershipError struct {
	Path  string
	Nodes []string
}

// Error returns a human-readable string naming the contested file.
func (e *OwnershipError) Error() string {
	return fmt.Sprintf("file %q strictly owned by multiple nodes: %s",
		e.Path, strings.Join(e.Nodes, ", "))
}
