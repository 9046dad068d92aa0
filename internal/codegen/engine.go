package codegen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/papapumpkin/pulsar/internal/artifact"
	"github.com/papapumpkin/pulsar/internal/dag"
	"github.com/papapumpkin/pulsar/internal/discover"
	"github.com/papapumpkin/pulsar/internal/fingerprint"
	"github.com/papapumpkin/pulsar/internal/telemetry"
	"github.com/papapumpkin/pulsar/internal/workspace"
)

const defaultWorkers = 4

// Config assembles an Engine. Graph, Generators, BuildRoot, and WorkDir are
// required; everything else has a working default.
type Config struct {
	Graph      *dag.DAG
	Generators []Generator
	BuildRoot  string
	WorkDir    string
	Strategy   workspace.Strategy
	Workers    int

	// Fingerprint defaults to content hashing rooted at BuildRoot.
	Fingerprint fingerprint.Strategy

	// StateDir holds the baseline state file. Defaults to BuildRoot.
	StateDir string

	// Cache receives artifacts for regenerated nodes. Defaults to a no-op.
	Cache artifact.Cache

	Telemetry *telemetry.Emitter

	// Logger receives progress output. Defaults to os.Stderr.
	Logger io.Writer
}

// Engine runs codegen rounds over a build graph.
type Engine struct {
	graph     *dag.DAG
	gens      []Generator
	buildRoot string
	workDir   string
	stateDir  string
	strategy  workspace.Strategy
	workers   int

	fp      fingerprint.Strategy
	state   *fingerprint.State
	cache   artifact.Cache
	emitter *telemetry.Emitter
	logger  io.Writer

	round int

	// fingerprints holds the latest Check results keyed by node ID. Nodes
	// whose fingerprint computation failed are absent.
	fingerprints map[string]string
}

// New validates the configuration, checks every generator against its
// resolved strategy, loads baseline state, and returns a ready engine.
func New(cfg Config) (*Engine, error) {
	if cfg.Graph == nil {
		return nil, errors.New("codegen: nil graph")
	}
	if len(cfg.Generators) == 0 {
		return nil, ErrNoGenerator
	}
	if cfg.BuildRoot == "" {
		return nil, errors.New("codegen: empty build root")
	}
	if cfg.WorkDir == "" {
		return nil, errors.New("codegen: empty work dir")
	}
	strategy := cfg.Strategy
	if strategy == "" {
		strategy = workspace.DefaultStrategy
	}
	for _, g := range cfg.Generators {
		if err := CheckGenerator(g, strategy); err != nil {
			return nil, err
		}
	}

	e := &Engine{
		graph:     cfg.Graph,
		gens:      cfg.Generators,
		buildRoot: cfg.BuildRoot,
		workDir:   cfg.WorkDir,
		stateDir:  cfg.StateDir,
		strategy:  strategy,
		workers:   cfg.Workers,
		fp:        cfg.Fingerprint,
		cache:     cfg.Cache,
		emitter:   cfg.Telemetry,
		logger:    cfg.Logger,
	}
	if e.stateDir == "" {
		e.stateDir = cfg.BuildRoot
	}
	if e.workers <= 0 {
		e.workers = defaultWorkers
	}
	if e.fp == nil {
		e.fp = fingerprint.NewContentHash(cfg.BuildRoot)
	}
	if e.cache == nil {
		e.cache = artifact.Nop{}
	}
	if e.logger == nil {
		e.logger = os.Stderr
	}

	state, err := fingerprint.LoadState(e.stateDir)
	if err != nil {
		return nil, fmt.Errorf("codegen: load state: %w", err)
	}
	e.state = state
	return e, nil
}

// Report summarizes one codegen round.
type Report struct {
	Round       int
	Relevant    []string         // node IDs claimed by a generator
	Regenerated []string         // invalidated nodes that generated successfully
	Synthetics  []string         // synthetic node IDs injected this round
	Dirtied     int              // nodes whose fingerprints were invalidated by rewiring
	Failures    map[string]error // node ID to generation or discovery failure
}

// Partition is a unit of generation work: the nodes one Generate pass covers.
// Isolated partitions hold exactly one node; a global partition holds every
// invalidated node its generator claims.
type Partition struct {
	Generator string
	Strategy  workspace.Strategy
	Nodes     []string
}

// assignment binds a relevant node to the generator that claimed it.
type assignment struct {
	node     *dag.Node
	gen      Generator
	strategy workspace.Strategy
	dir      string
}

func (e *Engine) logf(format string, args ...any) {
	fmt.Fprintf(e.logger, format+"\n", args...)
}

// assign walks the graph in deterministic order and pairs every non-synthetic
// node with the first generator that claims it.
func (e *Engine) assign() ([]*assignment, error) {
	order, err := e.graph.TopologicalSort()
	if err != nil {
		return nil, fmt.Errorf("codegen: order graph: %w", err)
	}
	var out []*assignment
	for _, id := range order {
		n := e.graph.Node(id)
		if n == nil || n.Synthetic {
			continue
		}
		for _, g := range e.gens {
			if !g.IsRelevant(n) {
				continue
			}
			strategy := ResolveStrategy(g, e.strategy)
			out = append(out, &assignment{
				node:     n,
				gen:      g,
				strategy: strategy,
				dir:      workspace.Dir(e.workDir, strategy, n.ID),
			})
			break
		}
	}
	return out, nil
}

// Plan reports the partitions a Run would regenerate, without executing any
// generator or mutating the graph.
func (e *Engine) Plan(ctx context.Context) ([]Partition, error) {
	assigns, err := e.assign()
	if err != nil {
		return nil, err
	}
	invalid := e.checkInvalid(assigns)

	var parts []Partition
	globals := make(map[string]int)
	for _, a := range assigns {
		if !invalid[a.node.ID] {
			continue
		}
		if a.strategy == workspace.StrategyGlobal {
			i, ok := globals[a.gen.Kind()]
			if !ok {
				parts = append(parts, Partition{Generator: a.gen.Kind(), Strategy: a.strategy})
				i = len(parts) - 1
				globals[a.gen.Kind()] = i
			}
			parts[i].Nodes = append(parts[i].Nodes, a.node.ID)
			continue
		}
		parts = append(parts, Partition{
			Generator: a.gen.Kind(),
			Strategy:  a.strategy,
			Nodes:     []string{a.node.ID},
		})
	}
	return parts, nil
}

// checkInvalid fingerprints the assigned nodes against baselines and returns
// the set that must regenerate. Fingerprint failures count as invalid.
func (e *Engine) checkInvalid(assigns []*assignment) map[string]bool {
	ids := make([]string, 0, len(assigns))
	for _, a := range assigns {
		ids = append(ids, a.node.ID)
	}
	result := fingerprint.Check(e.graph, ids, e.fp, e.state)
	for id, err := range result.Errors {
		e.logf("fingerprint %s: %v (treating as invalid)", id, err)
	}
	invalid := make(map[string]bool, len(result.Invalid))
	for _, id := range result.Invalid {
		invalid[id] = true
	}
	e.fingerprints = result.Fingerprints
	return invalid
}

// Run executes one codegen round: prune stale synthetics, fingerprint the
// relevant nodes, regenerate the invalidated ones, discover or predict each
// node's output, and rewire the graph with fresh synthetic nodes. Valid nodes
// skip generation but are still rewired, so consumers always see a synthetic
// node after a round. Returns the round report plus any per-node failures
// joined into a single error.
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	e.round++
	report := &Report{Round: e.round, Failures: make(map[string]error)}

	pruned := e.graph.PruneSynthetics()
	if pruned > 0 {
		e.logf("round %d: pruned %d synthetic nodes", e.round, pruned)
	}

	assigns, err := e.assign()
	if err != nil {
		return report, err
	}
	for _, a := range assigns {
		report.Relevant = append(report.Relevant, a.node.ID)
	}
	invalid := e.checkInvalid(assigns)

	e.emitter.Emit(telemetry.Event{
		Kind:  telemetry.KindRoundStart,
		Round: e.round,
		Data:  map[string]int{"relevant": len(assigns), "invalid": len(invalid)},
	})
	e.logf("round %d: %d relevant nodes, %d invalidated", e.round, len(assigns), len(invalid))

	e.generate(ctx, assigns, invalid, report)

	dc := discover.NewCache()
	sources := e.determineSources(assigns, dc, report)
	if err := discover.CheckOwnership(sources, e.graph.Ancestors); err != nil {
		return report, fmt.Errorf("codegen: %w", err)
	}

	e.rewire(assigns, sources, report)
	e.submit(ctx, assigns, invalid, sources, report)

	if err := fingerprint.SaveState(e.stateDir, e.state); err != nil {
		return report, fmt.Errorf("codegen: save state: %w", err)
	}

	e.emitter.Emit(telemetry.Event{
		Kind:  telemetry.KindRoundDone,
		Round: e.round,
		Data: map[string]int{
			"regenerated": len(report.Regenerated),
			"synthetic":   len(report.Synthetics),
			"dirtied":     report.Dirtied,
			"failed":      len(report.Failures),
		},
	})
	e.logf("round %d: regenerated %d, injected %d synthetic nodes, dirtied %d",
		e.round, len(report.Regenerated), len(report.Synthetics), report.Dirtied)

	return report, joinFailures(report.Failures)
}

// generate runs every invalidated assignment, one Generate call per
// partition. Isolated nodes are size-1 batches fanning out across a bounded
// worker pool into clean per-node workspaces. All invalidated global nodes
// of a generator form a single batch sharing one workspace, so batch-aware
// tools see the whole partition at once; a batch failure fails every node in
// it, since partial output in a shared directory cannot be attributed.
func (e *Engine) generate(ctx context.Context, assigns []*assignment, invalid map[string]bool, report *Report) {
	var isolated []*assignment
	globals := make(map[string][]*assignment)
	var globalOrder []string
	for _, a := range assigns {
		if !invalid[a.node.ID] {
			continue
		}
		if a.strategy == workspace.StrategyGlobal {
			kind := a.gen.Kind()
			if _, ok := globals[kind]; !ok {
				globalOrder = append(globalOrder, kind)
			}
			globals[kind] = append(globals[kind], a)
		} else {
			isolated = append(isolated, a)
		}
	}

	var mu sync.Mutex
	record := func(batch []*assignment, err error) {
		mu.Lock()
		defer mu.Unlock()
		for _, a := range batch {
			if err != nil {
				report.Failures[a.node.ID] = err
			} else {
				report.Regenerated = append(report.Regenerated, a.node.ID)
			}
		}
	}

	sem := make(chan struct{}, e.workers)
	var wg sync.WaitGroup
	for _, a := range isolated {
		batch := []*assignment{a}
		if ctx.Err() != nil {
			record(batch, ctx.Err())
			continue
		}
		wg.Add(1)
		sem <- struct{}{} // block if at worker capacity
		go func(batch []*assignment) {
			defer wg.Done()
			defer func() { <-sem }()
			record(batch, e.generateBatch(ctx, batch, true))
		}(batch)
	}
	wg.Wait()

	for _, kind := range globalOrder {
		batch := globals[kind]
		record(batch, e.generateBatch(ctx, batch, false))
	}
	sort.Strings(report.Regenerated)
}

// generateBatch issues one Generate call for a partition. Every assignment in
// the batch shares a generator and a workspace directory.
func (e *Engine) generateBatch(ctx context.Context, batch []*assignment, clean bool) error {
	gen := batch[0].gen
	dir := batch[0].dir
	ids := make([]string, 0, len(batch))
	nodes := make([]*dag.Node, 0, len(batch))
	for _, a := range batch {
		ids = append(ids, a.node.ID)
		nodes = append(nodes, a.node)
	}

	if clean {
		if err := os.RemoveAll(dir); err != nil {
			return &GenerationError{Nodes: ids, Generator: gen.Kind(), Err: err}
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return &GenerationError{Nodes: ids, Generator: gen.Kind(), Err: err}
	}

	e.emitter.Emit(telemetry.Event{
		Kind:  telemetry.KindGenerateStart,
		Round: e.round,
		Data:  map[string]any{"generator": gen.Kind(), "dir": dir, "nodes": ids},
	})
	e.logf("generating %s (%s)", strings.Join(ids, ", "), gen.Kind())

	err := gen.Generate(ctx, Request{Nodes: nodes, Dir: dir, BuildRoot: e.buildRoot})
	if err != nil {
		err = &GenerationError{Nodes: ids, Generator: gen.Kind(), Err: err}
	}
	e.emitter.Emit(telemetry.Event{
		Kind:  telemetry.KindGenerateDone,
		Round: e.round,
		Data:  map[string]any{"generator": gen.Kind(), "nodes": ids, "ok": err == nil},
	})
	return err
}

// determineSources resolves the workspace-relative files each assignment's
// synthetic node will claim. Isolated nodes are discovered from disk, with
// files also present in a transitive dependency's workspace ceded to that
// dependency. Global nodes use the generator's own prediction, since the
// shared workspace cannot be attributed by discovery.
func (e *Engine) determineSources(assigns []*assignment, dc *discover.Cache, report *Report) map[string][]string {
	dirs := make(map[string]string, len(assigns))
	for _, a := range assigns {
		dirs[a.node.ID] = a.dir
	}

	sources := make(map[string][]string, len(assigns))
	for _, a := range assigns {
		if _, failed := report.Failures[a.node.ID]; failed {
			continue
		}
		if a.strategy == workspace.StrategyGlobal {
			predicted := a.gen.(SourcePredictor).PredictSources(a.node)
			out := append([]string(nil), predicted...)
			sort.Strings(out)
			sources[a.node.ID] = out
			continue
		}
		deps := make(map[string]string)
		for _, dep := range e.graph.Ancestors(a.node.ID) {
			if dir, ok := dirs[dep]; ok {
				deps[dep] = dir
			}
		}
		own, err := dc.Strict(a.node.ID, a.dir, deps)
		if err != nil {
			report.Failures[a.node.ID] = err
			continue
		}
		sources[a.node.ID] = own
	}
	return sources
}

// rewire injects a fresh synthetic node for every assignment that survived
// generation and discovery, repoints the origin's dependents at it, gives it
// the origin's dependencies plus any extras the generator declares, promotes
// it to a root when the origin is one, and finally invalidates the
// fingerprints of everything downstream of the rewired region.
func (e *Engine) rewire(assigns []*assignment, sources map[string][]string, report *Report) {
	var seeds []string
	for _, a := range assigns {
		if _, failed := report.Failures[a.node.ID]; failed {
			continue
		}
		relPath, err := filepath.Rel(e.buildRoot, a.dir)
		if err != nil {
			relPath = a.dir
		}
		synID := fmt.Sprintf("%s/%s#%s", a.gen.SyntheticKind(), relPath, a.node.ID)

		dependents := e.graph.Dependents(a.node.ID)
		dependencies := e.graph.Dependencies(a.node.ID)

		syn := &dag.Node{
			ID:          synID,
			Kind:        a.gen.SyntheticKind(),
			Path:        relPath,
			Sources:     sources[a.node.ID],
			Synthetic:   true,
			DerivedFrom: a.node.ID,
		}
		if err := e.graph.AddNode(syn); err != nil {
			report.Failures[a.node.ID] = fmt.Errorf("codegen: inject synthetic for %q: %w", a.node.ID, err)
			continue
		}
		if err := e.graph.InjectDependents(synID, dependents); err != nil {
			report.Failures[a.node.ID] = fmt.Errorf("codegen: rewire dependents of %q: %w", a.node.ID, err)
			continue
		}
		synDeps := dependencies
		if ed, ok := a.gen.(ExtraDepender); ok {
			synDeps = append(append([]string(nil), dependencies...), ed.ExtraDependencies(a.node)...)
		}
		if err := e.graph.InjectDependencies(synID, synDeps); err != nil {
			report.Failures[a.node.ID] = fmt.Errorf("codegen: rewire dependencies of %q: %w", a.node.ID, err)
			continue
		}
		if e.graph.IsRoot(a.node.ID) {
			e.graph.AddRoot(synID)
		}
		seeds = append(seeds, dependencies...)
		report.Synthetics = append(report.Synthetics, synID)

		e.emitter.Emit(telemetry.Event{
			Kind:   telemetry.KindNodeSynthetic,
			Round:  e.round,
			NodeID: a.node.ID,
			Data:   map[string]any{"synthetic": synID, "sources": len(sources[a.node.ID])},
		})
	}
	sort.Strings(report.Synthetics)
	report.Dirtied = e.graph.MarkDependeesDirty(seeds)
}

// submit pushes artifacts for regenerated nodes to the cache and records new
// baselines. Cache failures are reported but never fail the round.
func (e *Engine) submit(ctx context.Context, assigns []*assignment, invalid map[string]bool, sources map[string][]string, report *Report) {
	for _, a := range assigns {
		if !invalid[a.node.ID] {
			continue
		}
		if _, failed := report.Failures[a.node.ID]; failed {
			continue
		}
		fp, ok := e.fingerprints[a.node.ID]
		if !ok {
			e.logf("no fingerprint for %s, skipping cache and baseline", a.node.ID)
			continue
		}
		if err := e.cache.Put(ctx, fp, sources[a.node.ID]); err != nil {
			e.logf("cache put for %s failed: %v", a.node.ID, err)
			e.emitter.Emit(telemetry.Event{
				Kind:   telemetry.KindCacheError,
				Round:  e.round,
				NodeID: a.node.ID,
				Data:   map[string]string{"error": err.Error()},
			})
		} else {
			e.emitter.Emit(telemetry.Event{
				Kind:   telemetry.KindCachePut,
				Round:  e.round,
				NodeID: a.node.ID,
				Data:   map[string]int{"files": len(sources[a.node.ID])},
			})
		}
		e.state.SetBaseline(a.node.ID, fp)
	}
}

// Invalidate marks every non-synthetic node whose path contains the given
// build-root relative file, plus everything depending on it, as needing a
// fresh fingerprint. Returns how many nodes were marked. Watch mode calls
// this when a source file changes.
func (e *Engine) Invalidate(relPath string) int {
	var matched []string
	for _, id := range e.graph.Nodes() {
		n := e.graph.Node(id)
		if n == nil || n.Synthetic || n.Path == "" {
			continue
		}
		if relPath == n.Path || strings.HasPrefix(relPath, n.Path+string(filepath.Separator)) {
			matched = append(matched, id)
		}
	}
	return e.graph.MarkDependeesDirty(matched)
}

func joinFailures(failures map[string]error) error {
	if len(failures) == 0 {
		return nil
	}
	ids := make([]string, 0, len(failures))
	for id := range failures {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	errs := make([]error, 0, len(ids))
	for _, id := range ids {
		errs = append(errs, failures[id])
	}
	return errors.Join(errs...)
}
