package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/pulsar/internal/artifact"
	"github.com/papapumpkin/pulsar/internal/codegen"
	"github.com/papapumpkin/pulsar/internal/config"
	"github.com/papapumpkin/pulsar/internal/dag"
	"github.com/papapumpkin/pulsar/internal/manifest"
	"github.com/papapumpkin/pulsar/internal/telemetry"
	"github.com/papapumpkin/pulsar/internal/workspace"
)

// session wires a manifest, graph, and engine together for one CLI
// invocation.
type session struct {
	cfg       config.Config
	man       *manifest.Manifest
	graph     *dag.DAG
	engine    *codegen.Engine
	cache     *artifact.SQLite
	emitter   *telemetry.Emitter
	strategy  workspace.Strategy
	buildRoot string
}

// newSession loads configuration and the pulsar.toml manifest from the build
// root, validates both, and assembles an engine ready to run.
func newSession(cmd *cobra.Command) (*session, error) {
	cfg := config.Load()
	if v, _ := cmd.Flags().GetBool("verbose"); v {
		cfg.Verbose = true
	}

	buildRoot, err := filepath.Abs(cfg.BuildRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve build root: %w", err)
	}

	man, err := manifest.Load(buildRoot)
	if err != nil {
		return nil, err
	}
	if errs := manifest.Validate(man); len(errs) > 0 {
		joined := make([]error, 0, len(errs))
		for i := range errs {
			joined = append(joined, &errs[i])
		}
		return nil, fmt.Errorf("invalid manifest: %w", errors.Join(joined...))
	}
	graph, err := manifest.Graph(man)
	if err != nil {
		return nil, err
	}

	// The manifest's strategy wins over configuration when set.
	strategyName := cfg.Strategy
	if man.Generator.Strategy != "" {
		strategyName = man.Generator.Strategy
	}
	strategy, err := workspace.Parse(strategyName)
	if err != nil {
		return nil, err
	}

	tool, err := codegen.NewTool(man.Generator)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, man: man, graph: graph, strategy: strategy, buildRoot: buildRoot}

	var cache artifact.Cache
	if cfg.Cache.Enabled {
		sc, err := artifact.OpenSQLite(absUnder(buildRoot, cfg.Cache.Path))
		if err != nil {
			// Degraded but functional: the cache is never load-bearing.
			fmt.Fprintf(os.Stderr, "artifact cache unavailable: %v\n", err)
		} else {
			s.cache = sc
			cache = sc
		}
	}
	if cfg.Telemetry != "" {
		em, err := telemetry.NewEmitter(absUnder(buildRoot, cfg.Telemetry))
		if err != nil {
			s.Close()
			return nil, err
		}
		s.emitter = em
	}

	logger := io.Writer(io.Discard)
	if cfg.Verbose {
		logger = os.Stderr
	}

	engine, err := codegen.New(codegen.Config{
		Graph:      graph,
		Generators: []codegen.Generator{tool},
		BuildRoot:  buildRoot,
		WorkDir:    absUnder(buildRoot, cfg.WorkDir),
		Strategy:   strategy,
		Workers:    cfg.Workers,
		StateDir:   buildRoot,
		Cache:      cache,
		Telemetry:  s.emitter,
		Logger:     logger,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	s.engine = engine
	return s, nil
}

// Close releases the session's cache and telemetry handles.
func (s *session) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
	if s.emitter != nil {
		s.emitter.Close()
	}
}

// sourceDirs lists the absolute directories holding declared target sources.
func (s *session) sourceDirs() []string {
	seen := make(map[string]bool)
	var dirs []string
	for _, t := range s.man.Targets {
		dir := filepath.Join(s.buildRoot, t.Path)
		if !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

func absUnder(root, path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}
