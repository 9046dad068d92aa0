// Package workspace maps (node, strategy) pairs to the directory where a
// node's generated files live. The mapping is a pure function of its inputs
// so that any caller can recompute a dependency's workspace without going
// through the engine's mutable state, and so that repeated runs over the same
// build root agree byte-for-byte.
package workspace

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Strategy selects how generator invocations and workspaces are scoped.
type Strategy string

const (
	// StrategyIsolated gives every node its own workspace and its own
	// generator invocation.
	StrategyIsolated Strategy = "isolated"
	// StrategyGlobal shares a single workspace and a single generator
	// invocation across all relevant nodes.
	StrategyGlobal Strategy = "global"
)

// DefaultStrategy is used when configuration does not name one.
const DefaultStrategy = StrategyIsolated

// ErrUnknownStrategy is returned for strategy values other than
// "global" or "isolated".
var ErrUnknownStrategy = errors.New("unknown codegen strategy")

// Parse validates a strategy string. The empty string yields DefaultStrategy.
func Parse(s string) (Strategy, error) {
	switch Strategy(s) {
	case "":
		return DefaultStrategy, nil
	case StrategyIsolated, StrategyGlobal:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStrategy, s)
	}
}

// Dir returns the workspace directory for a node under the given base
// directory. Isolated: <base>/isolated/<nodeID>. Global: <base>/global,
// shared across all nodes regardless of nodeID.
func Dir(base string, strategy Strategy, nodeID string) string {
	if strategy == StrategyGlobal {
		return filepath.Join(base, "global")
	}
	return filepath.Join(base, "isolated", nodeID)
}
