// Package manifest loads and validates the pulsar.toml build manifest and
// turns it into the build dependency graph the codegen engine operates on.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/papapumpkin/pulsar/internal/dag"
)

const manifestFileName = "pulsar.toml"

// Load reads and parses pulsar.toml from the given build root directory.
func Load(root string) (*Manifest, error) {
	path := filepath.Join(root, manifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoManifest
		}
		return nil, fmt.Errorf("reading %s: %w", manifestFileName, err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", manifestFileName, err)
	}
	return &m, nil
}

// Graph builds the dependency graph from a validated manifest, including the
// root selection set. Targets must have passed Validate first; edge insertion
// still reports cycles defensively since the DAG enforces acyclicity itself.
func Graph(m *Manifest) (*dag.DAG, error) {
	d := dag.New()
	for i := range m.Targets {
		t := &m.Targets[i]
		n := &dag.Node{
			ID:      t.ID,
			Kind:    t.Kind,
			Path:    t.Path,
			Sources: append([]string(nil), t.Sources...),
		}
		if err := d.AddNode(n); err != nil {
			return nil, err
		}
	}
	for _, t := range m.Targets {
		for _, dep := range t.Deps {
			if err := d.AddEdge(t.ID, dep); err != nil {
				return nil, err
			}
		}
	}
	roots := m.Build.Roots
	if len(roots) == 0 {
		// No explicit selection means everything is a root.
		roots = d.Nodes()
	}
	for _, id := range roots {
		if err := d.AddRoot(id); err != nil {
			return nil, err
		}
	}
	return d, nil
}
