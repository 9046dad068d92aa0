package codegen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/papapumpkin/pulsar/internal/dag"
	"github.com/papapumpkin/pulsar/internal/manifest"
)

// Tool is a Generator that shells out to an external command, configured
// from a manifest [generator] block. The command runs once per partition
// from the build root and receives the whole batch through PULSAR_*
// environment variables:
//
//	PULSAR_NODES      space-separated node IDs in the batch
//	PULSAR_SOURCES    space-separated declared sources, build-root relative
//	PULSAR_OUT        workspace directory to write output into
//	PULSAR_BUILD_ROOT absolute build root
type Tool struct {
	kind          string
	syntheticKind string
	match         map[string]bool
	command       []string
}

// NewTool builds a Tool from its manifest configuration.
func NewTool(spec manifest.Generator) (*Tool, error) {
	if spec.Kind == "" {
		return nil, errors.New("codegen: tool generator needs a kind")
	}
	if len(spec.Command) == 0 {
		return nil, fmt.Errorf("codegen: tool generator %q needs a command", spec.Kind)
	}
	t := &Tool{
		kind:          spec.Kind,
		syntheticKind: spec.SyntheticKind,
		command:       append([]string(nil), spec.Command...),
	}
	if t.syntheticKind == "" {
		t.syntheticKind = spec.Kind + "-generated"
	}
	if len(spec.Match) > 0 {
		t.match = make(map[string]bool, len(spec.Match))
		for _, k := range spec.Match {
			t.match[k] = true
		}
	}
	return t, nil
}

func (t *Tool) Kind() string          { return t.kind }
func (t *Tool) SyntheticKind() string { return t.syntheticKind }

// IsRelevant matches the node kind against the configured match list, or
// against the generator kind itself when no list is given.
func (t *Tool) IsRelevant(n *dag.Node) bool {
	if t.match == nil {
		return n.Kind == t.kind
	}
	return t.match[n.Kind]
}

// Generate runs the configured command once for the batch. Output on stdout
// or stderr is included in the error when the command fails.
func (t *Tool) Generate(ctx context.Context, req Request) error {
	var ids, sources []string
	for _, n := range req.Nodes {
		ids = append(ids, n.ID)
		for _, src := range n.Sources {
			sources = append(sources, filepath.Join(n.Path, src))
		}
	}

	cmd := exec.CommandContext(ctx, t.command[0], t.command[1:]...)
	cmd.Dir = req.BuildRoot
	cmd.Env = append(os.Environ(),
		"PULSAR_NODES="+strings.Join(ids, " "),
		"PULSAR_SOURCES="+strings.Join(sources, " "),
		"PULSAR_OUT="+req.Dir,
		"PULSAR_BUILD_ROOT="+req.BuildRoot,
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		msg := strings.TrimSpace(string(out))
		if msg != "" {
			return fmt.Errorf("%s: %w: %s", t.command[0], err, msg)
		}
		return fmt.Errorf("%s: %w", t.command[0], err)
	}
	return nil
}
