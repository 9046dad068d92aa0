package codegen

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoGenerator indicates the engine was constructed without any
// generators.
var ErrNoGenerator = errors.New("codegen: no generators configured")

// ConfigError reports a generator whose capabilities are incompatible with
// its resolved execution strategy. It is fatal at engine construction.
type ConfigError struct {
	Generator string
	Reason    string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("codegen: generator %q misconfigured: %s", e.Generator, e.Reason)
}

// GenerationError reports a generator failure for one partition. Every node
// in the failed batch keeps its previous baseline and is not rewired this
// round.
type GenerationError struct {
	Nodes     []string
	Generator string
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("codegen: generate %s for %s: %v",
		e.Generator, strings.Join(e.Nodes, ", "), e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}
