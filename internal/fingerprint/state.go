package fingerprint

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

const stateFileName = "pulsar.state.toml"

// State is persisted in pulsar.state.toml, mapping node IDs to the
// fingerprint recorded after their last successful generation.
type State struct {
	Version   int                  `toml:"version"`
	Build     string               `toml:"build"`
	Baselines map[string]*Baseline `toml:"baselines"`
}

// Baseline records one node's last-known-good fingerprint.
type Baseline struct {
	Fingerprint string    `toml:"fingerprint"`
	UpdatedAt   time.Time `toml:"updated_at"`
}

// LoadState reads the state file from the given directory.
// Returns an empty state if the file does not exist.
func LoadState(dir string) (*State, error) {
	path := filepath.Join(dir, stateFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &State{
				Version:   1,
				Baselines: make(map[string]*Baseline),
			}, nil
		}
		return nil, fmt.Errorf("reading state file: %w", err)
	}

	var state State
	if err := toml.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("parsing state file: %w", err)
	}
	if state.Baselines == nil {
		state.Baselines = make(map[string]*Baseline)
	}
	return &state, nil
}

// SaveState writes the state file atomically (write temp + rename).
func SaveState(dir string, state *State) error {
	data, err := toml.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshaling state: %w", err)
	}

	path := filepath.Join(dir, stateFileName)
	tmp := path + ".tmp"

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("renaming state file: %w", err)
	}
	return nil
}

// SetBaseline updates or creates a node's baseline entry.
func (s *State) SetBaseline(nodeID, fp string) {
	ps, ok := s.Baselines[nodeID]
	if !ok {
		ps = &Baseline{}
		s.Baselines[nodeID] = ps
	}
	ps.Fingerprint = fp
	ps.UpdatedAt = time.Now()
}
