// Package discover enumerates generated source files under node workspaces
// and computes the strict-ownership subset each node may claim. All lookups
// are memoized in a Cache that lives for exactly one execution round.
package discover

import (
	"os"
	"path/filepath"
	"sort"
)

// Cache memoizes discovery and strict-ownership results by node ID for the
// duration of one execution round. It is owned by the round that created it
// and must not be shared across rounds or concurrently running builds.
type Cache struct {
	discovered map[string][]string // nodeID → absolute file paths, sorted
	strict     map[string][]string // nodeID → workspace-relative paths, sorted
}

// NewCache creates an empty per-round cache.
func NewCache() *Cache {
	return &Cache{
		discovered: make(map[string][]string),
		strict:     make(map[string][]string),
	}
}

// Discover returns every regular file under the node's workspace directory,
// as absolute paths sorted alphabetically. The traversal is an iterative
// breadth-first walk over an explicit queue. A missing workspace directory
// yields an empty result, not an error: the node simply has not generated
// anything yet. Results are memoized per node ID.
func (c *Cache) Discover(nodeID, dir string) ([]string, error) {
	if files, ok := c.discovered[nodeID]; ok {
		return files, nil
	}

	var files []string
	queue := []string{dir}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		entries, err := os.ReadDir(cur)
		if err != nil {
			if os.IsNotExist(err) && cur == dir {
				break
			}
			return nil, &DiscoveryError{NodeID: nodeID, Dir: cur, Err: err}
		}
		for _, e := range entries {
			path := filepath.Join(cur, e.Name())
			switch {
			case e.IsDir():
				queue = append(queue, path)
			case e.Type().IsRegular():
				files = append(files, path)
			}
		}
	}

	sort.Strings(files)
	c.discovered[nodeID] = files
	return files, nil
}

// Strict returns the workspace-relative paths of files strictly attributable
// to the node alone: everything discovered under its own workspace minus any
// path (after normalization to each workspace root) that also appears under a
// dependency's workspace. deps maps each transitive dependency's node ID to
// that dependency's workspace directory. Results are sorted and memoized per
// node ID.
func (c *Cache) Strict(nodeID, dir string, deps map[string]string) ([]string, error) {
	if rel, ok := c.strict[nodeID]; ok {
		return rel, nil
	}

	own, err := c.Discover(nodeID, dir)
	if err != nil {
		return nil, err
	}

	// Paths are compared relative to each node's own workspace root, since
	// dependency workspaces sit at different absolute locations.
	inherited := make(map[string]bool)
	for depID, depDir := range deps {
		depFiles, err := c.Discover(depID, depDir)
		if err != nil {
			return nil, err
		}
		for _, f := range depFiles {
			rel, err := filepath.Rel(depDir, f)
			if err != nil {
				return nil, &DiscoveryError{NodeID: depID, Dir: depDir, Err: err}
			}
			inherited[rel] = true
		}
	}

	var strict []string
	for _, f := range own {
		rel, err := filepath.Rel(dir, f)
		if err != nil {
			return nil, &DiscoveryError{NodeID: nodeID, Dir: dir, Err: err}
		}
		if !inherited[rel] {
			strict = append(strict, rel)
		}
	}

	sort.Strings(strict)
	c.strict[nodeID] = strict
	return strict, nil
}

// CheckOwnership verifies that no workspace-relative file is strictly claimed
// by two nodes that share an ancestry chain. owners maps node ID to its
// strict source list; ancestors returns the transitive dependencies of a
// node. The strict-set subtraction makes a violation structurally
// impossible, so a hit indicates a broken generator and is fatal.
func CheckOwnership(owners map[string][]string, ancestors func(id string) []string) error {
	sets := make(map[string]map[string]bool, len(owners))
	for id, files := range owners {
		set := make(map[string]bool, len(files))
		for _, f := range files {
			set[f] = true
		}
		sets[id] = set
	}
	for id := range owners {
		for _, anc := range ancestors(id) {
			ancSet, ok := sets[anc]
			if !ok {
				continue
			}
			for f := range sets[id] {
				if ancSet[f] {
					return &OwnershipError{Path: f, Nodes: []string{anc, id}}
				}
			}
		}
	}
	return nil
}
