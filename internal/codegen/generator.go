// Package codegen orchestrates incremental code generation over a build
// graph. Each round the engine fingerprints the generator-relevant nodes,
// regenerates only the invalidated ones into per-strategy workspaces,
// discovers what each generation produced, and rewires the graph so that
// consumers depend on fresh synthetic nodes instead of stale output.
package codegen

import (
	"context"

	"github.com/papapumpkin/pulsar/internal/dag"
	"github.com/papapumpkin/pulsar/internal/workspace"
)

// Request carries one partition's worth of generation work: the nodes to
// generate together, the workspace directory to write into, and the build
// root for resolving declared sources. Under the isolated strategy Nodes
// always holds exactly one node; under the global strategy it holds every
// invalidated node the generator claims, so batch-aware tools see the whole
// partition in a single call.
type Request struct {
	Nodes     []*dag.Node
	Dir       string
	BuildRoot string
}

// Generator produces derived code for graph nodes it claims. Implementations
// may additionally satisfy SourcePredictor, StrategyForcer, or ExtraDepender
// to refine how the engine treats them.
type Generator interface {
	// Kind names the generator in logs and telemetry.
	Kind() string

	// SyntheticKind is the node kind assigned to injected synthetic nodes.
	SyntheticKind() string

	// IsRelevant reports whether this generator handles the given node.
	IsRelevant(n *dag.Node) bool

	// Generate writes output for every node in req.Nodes into req.Dir. The
	// directory exists and, under the isolated strategy, is empty. A failure
	// fails the whole batch.
	Generate(ctx context.Context, req Request) error
}

// SourcePredictor is an optional capability: a generator that can name the
// exact files it will produce for a node, relative to the workspace root,
// without running. Required for the global strategy, where discovery cannot
// attribute files in the shared workspace to individual nodes.
type SourcePredictor interface {
	PredictSources(n *dag.Node) []string
}

// StrategyForcer is an optional capability: a generator that only works
// correctly under one execution strategy can force it, overriding
// configuration.
type StrategyForcer interface {
	ForcedStrategy() workspace.Strategy
}

// ExtraDepender is an optional capability: a generator whose output needs
// dependencies beyond those of the origin node (a runtime support library,
// for example) can declare the extra node IDs here. The nodes must already
// exist in the graph.
type ExtraDepender interface {
	ExtraDependencies(n *dag.Node) []string
}

// ResolveStrategy returns the execution strategy for a generator: its
// forced strategy when it declares one, otherwise the configured default.
func ResolveStrategy(g Generator, configured workspace.Strategy) workspace.Strategy {
	if f, ok := g.(StrategyForcer); ok {
		return f.ForcedStrategy()
	}
	return configured
}

// CheckGenerator validates a generator against its resolved strategy before
// any round runs. The global strategy shares one workspace across nodes, so
// generated files cannot be attributed by discovery and the generator must
// predict its own sources.
func CheckGenerator(g Generator, configured workspace.Strategy) error {
	strategy := ResolveStrategy(g, configured)
	if strategy == workspace.StrategyGlobal {
		if _, ok := g.(SourcePredictor); !ok {
			return &ConfigError{
				Generator: g.Kind(),
				Reason:    "global strategy requires the generator to predict its sources",
			}
		}
	}
	return nil
}
