package manifest

// Manifest is parsed from pulsar.toml at the build root.
type Manifest struct {
	Build     Build     `toml:"build"`
	Generator Generator `toml:"generator"`
	Targets   []Target  `toml:"target"`
}

// Build holds build-wide settings from the [build] block.
type Build struct {
	Name  string   `toml:"name"`
	Roots []string `toml:"roots"` // target IDs selected as build roots
}

// Generator describes the external code-generation tool from the [generator]
// block. The engine treats the tool as an opaque collaborator; this block is
// only the glue needed to shell out to it.
type Generator struct {
	Kind          string   `toml:"kind"`           // identifier, e.g. "protoc"
	Match         []string `toml:"match"`          // target kinds the generator applies to
	Command       []string `toml:"command"`        // argv template; empty = no external tool
	Strategy      string   `toml:"strategy"`       // forced strategy, "" = honor config
	SyntheticKind string   `toml:"synthetic_kind"` // kind assigned to synthetic nodes
}

// Target is one [[target]] entry: a build unit that may require codegen.
type Target struct {
	ID      string   `toml:"id"`
	Kind    string   `toml:"kind"`
	Path    string   `toml:"path"`    // address path relative to the build root
	Sources []string `toml:"sources"` // declared sources, relative to Path
	Deps    []string `toml:"deps"`    // IDs of targets this target depends on
}
