// Package fingerprint decides, per build node, whether its last generated
// output is still valid. A pluggable Strategy computes an opaque fingerprint;
// baselines from previous successful generations persist in a TOML state
// file; Check partitions nodes into valid and invalid groups.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/papapumpkin/pulsar/internal/dag"
)

// Strategy computes an opaque fingerprint for a node. Equal fingerprints
// mean regeneration may safely be skipped. Strategies are pluggable per
// generator kind; ContentHash is the default.
type Strategy interface {
	Fingerprint(g *dag.DAG, n *dag.Node) (string, error)
}

// ContentHash is the default fingerprint strategy: a sha256 over the node's
// identity, the contents of its declared sources, and the fingerprints of
// its non-synthetic dependencies (which makes the hash transitive). Results
// are
// memoized per node; a node marked HashDirty has its memo entry dropped and
// recomputed, which is how graph rewiring invalidates stale cached hashes.
type ContentHash struct {
	BuildRoot string
	memo      map[string]string
}

// NewContentHash creates a ContentHash strategy rooted at the build root.
func NewContentHash(buildRoot string) *ContentHash {
	return &ContentHash{
		BuildRoot: buildRoot,
		memo:      make(map[string]string),
	}
}

// Fingerprint implements Strategy.
func (c *ContentHash) Fingerprint(g *dag.DAG, n *dag.Node) (string, error) {
	if n.HashDirty {
		delete(c.memo, n.ID)
		n.HashDirty = false
	}
	if fp, ok := c.memo[n.ID]; ok {
		return fp, nil
	}

	h := sha256.New()
	fmt.Fprintf(h, "id=%s\nkind=%s\npath=%s\n", n.ID, n.Kind, n.Path)

	for _, src := range n.Sources {
		path := filepath.Join(c.BuildRoot, n.Path, src)
		f, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("fingerprinting %s: %w", n.ID, err)
		}
		fmt.Fprintf(h, "src=%s\n", src)
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return "", fmt.Errorf("fingerprinting %s: reading %s: %w", n.ID, src, err)
		}
	}

	// Dependency fingerprints recurse depth-first through the memo, so the
	// hash covers the full transitive input set. Synthetic dependencies are
	// skipped: they are derived outputs of the current round, recreated
	// every round, not declared inputs. Including them would make a node's
	// hash depend on whether stale synthetics happen to be spliced in.
	for _, depID := range g.Dependencies(n.ID) {
		dep := g.Node(depID)
		if dep == nil {
			return "", fmt.Errorf("fingerprinting %s: %w: %s", n.ID, dag.ErrNodeNotFound, depID)
		}
		if dep.Synthetic {
			continue
		}
		depFP, err := c.Fingerprint(g, dep)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(h, "dep=%s:%s\n", depID, depFP)
	}

	fp := hex.EncodeToString(h.Sum(nil))
	c.memo[n.ID] = fp
	return fp, nil
}

// Result is the outcome of an invalidation check.
type Result struct {
	// Valid holds IDs whose fingerprint matches the persisted baseline,
	// in the order the nodes were presented.
	Valid []string
	// Invalid holds IDs that must regenerate, in presentation order. Nodes
	// whose fingerprinting failed are included conservatively.
	Invalid []string
	// Fingerprints maps every successfully fingerprinted ID to its current
	// value, for baseline persistence after generation succeeds.
	Fingerprints map[string]string
	// Errors maps IDs to the fingerprinting failure that forced them into
	// the invalid group.
	Errors map[string]error
}

// Check fingerprints every node and splits them against the baseline state.
// A fingerprinting failure (e.g. an unreadable source) does not abort the
// check: the node is conservatively treated as invalid.
func Check(g *dag.DAG, ids []string, strategy Strategy, state *State) *Result {
	res := &Result{
		Fingerprints: make(map[string]string, len(ids)),
		Errors:       make(map[string]error),
	}
	for _, id := range ids {
		n := g.Node(id)
		if n == nil {
			res.Errors[id] = fmt.Errorf("%w: %s", dag.ErrNodeNotFound, id)
			res.Invalid = append(res.Invalid, id)
			continue
		}
		fp, err := strategy.Fingerprint(g, n)
		if err != nil {
			res.Errors[id] = err
			res.Invalid = append(res.Invalid, id)
			continue
		}
		res.Fingerprints[id] = fp
		if b, ok := state.Baselines[id]; ok && b.Fingerprint == fp {
			res.Valid = append(res.Valid, id)
		} else {
			res.Invalid = append(res.Invalid, id)
		}
	}
	return res
}
