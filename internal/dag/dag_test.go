package dag

import (
	"errors"
	"testing"
)

// nodeSpec describes one node for the graph builder helper.
type nodeSpec struct {
	id   string
	deps []string
}

// buildGraph builds a DAG from a list of node specs.
func buildGraph(t *testing.T, specs []nodeSpec) *DAG {
	t.Helper()
	d := New()
	for _, s := range specs {
		if err := d.AddNode(&Node{ID: s.id}); err != nil {
			t.Fatalf("AddNode(%q): %v", s.id, err)
		}
	}
	for _, s := range specs {
		for _, dep := range s.deps {
			if err := d.AddEdge(s.id, dep); err != nil {
				t.Fatalf("AddEdge(%q, %q): %v", s.id, dep, err)
			}
		}
	}
	return d
}

// diamond builds the classic diamond: d depends on b and c, both depend on a.
func diamond(t *testing.T) *DAG {
	t.Helper()
	return buildGraph(t, []nodeSpec{
		{id: "a"},
		{id: "b", deps: []string{"a"}},
		{id: "c", deps: []string{"a"}},
		{id: "d", deps: []string{"b", "c"}},
	})
}

func TestAddNode(t *testing.T) {
	t.Parallel()

	t.Run("basic add", func(t *testing.T) {
		t.Parallel()
		d := New()
		if err := d.AddNode(&Node{ID: "a", Kind: "proto_library"}); err != nil {
			t.Fatalf("AddNode: %v", err)
		}
		if d.Len() != 1 {
			t.Errorf("Len() = %d, want 1", d.Len())
		}
		n := d.Node("a")
		if n == nil {
			t.Fatal("Node(a) returned nil")
		}
		if n.Kind != "proto_library" {
			t.Errorf("Kind = %q, want proto_library", n.Kind)
		}
	})

	t.Run("duplicate", func(t *testing.T) {
		t.Parallel()
		d := New()
		_ = d.AddNode(&Node{ID: "a"})
		err := d.AddNode(&Node{ID: "a"})
		if !errors.Is(err, ErrDuplicateNode) {
			t.Errorf("got %v, want ErrDuplicateNode", err)
		}
	})
}

func TestAddEdge(t *testing.T) {
	t.Parallel()

	t.Run("self edge", func(t *testing.T) {
		t.Parallel()
		d := New()
		_ = d.AddNode(&Node{ID: "a"})
		if err := d.AddEdge("a", "a"); !errors.Is(err, ErrSelfEdge) {
			t.Errorf("got %v, want ErrSelfEdge", err)
		}
	})

	t.Run("missing node", func(t *testing.T) {
		t.Parallel()
		d := New()
		_ = d.AddNode(&Node{ID: "a"})
		if err := d.AddEdge("a", "ghost"); !errors.Is(err, ErrNodeNotFound) {
			t.Errorf("got %v, want ErrNodeNotFound", err)
		}
	})

	t.Run("cycle rejected", func(t *testing.T) {
		t.Parallel()
		d := buildGraph(t, []nodeSpec{
			{id: "a"},
			{id: "b", deps: []string{"a"}},
			{id: "c", deps: []string{"b"}},
		})
		if err := d.AddEdge("a", "c"); !errors.Is(err, ErrCycle) {
			t.Errorf("got %v, want ErrCycle", err)
		}
	})

	t.Run("duplicate edge is a no-op", func(t *testing.T) {
		t.Parallel()
		d := buildGraph(t, []nodeSpec{{id: "a"}, {id: "b", deps: []string{"a"}}})
		if err := d.AddEdge("b", "a"); err != nil {
			t.Fatalf("re-adding edge: %v", err)
		}
		if got := d.Dependencies("b"); len(got) != 1 {
			t.Errorf("Dependencies(b) = %v, want [a]", got)
		}
	})
}

func TestInjectDependents(t *testing.T) {
	t.Parallel()

	t.Run("batch injection", func(t *testing.T) {
		t.Parallel()
		d := buildGraph(t, []nodeSpec{
			{id: "gen"},
			{id: "x"},
			{id: "y"},
		})
		if err := d.InjectDependents("gen", []string{"x", "y"}); err != nil {
			t.Fatalf("InjectDependents: %v", err)
		}
		for _, id := range []string{"x", "y"} {
			deps := d.Dependencies(id)
			if len(deps) != 1 || deps[0] != "gen" {
				t.Errorf("Dependencies(%s) = %v, want [gen]", id, deps)
			}
		}
		if got := d.Dependents("gen"); len(got) != 2 {
			t.Errorf("Dependents(gen) = %v, want [x y]", got)
		}
	})

	t.Run("cycle rejected", func(t *testing.T) {
		t.Parallel()
		d := buildGraph(t, []nodeSpec{
			{id: "a"},
			{id: "b", deps: []string{"a"}},
		})
		// b already depends on a; making a depend on b would be circular.
		if err := d.InjectDependents("b", []string{"a"}); !errors.Is(err, ErrCycle) {
			t.Errorf("got %v, want ErrCycle", err)
		}
	})

	t.Run("atomic on error", func(t *testing.T) {
		t.Parallel()
		d := buildGraph(t, []nodeSpec{{id: "gen"}, {id: "x"}})
		err := d.InjectDependents("gen", []string{"x", "ghost"})
		if !errors.Is(err, ErrNodeNotFound) {
			t.Fatalf("got %v, want ErrNodeNotFound", err)
		}
		if got := d.Dependencies("x"); len(got) != 0 {
			t.Errorf("partial injection happened: Dependencies(x) = %v", got)
		}
	})
}

func TestInjectDependencies(t *testing.T) {
	t.Parallel()

	t.Run("batch injection", func(t *testing.T) {
		t.Parallel()
		d := buildGraph(t, []nodeSpec{
			{id: "syn"},
			{id: "lib1"},
			{id: "lib2"},
		})
		if err := d.InjectDependencies("syn", []string{"lib1", "lib2"}); err != nil {
			t.Fatalf("InjectDependencies: %v", err)
		}
		if got := d.Dependencies("syn"); len(got) != 2 {
			t.Errorf("Dependencies(syn) = %v, want [lib1 lib2]", got)
		}
	})

	t.Run("cycle rejected", func(t *testing.T) {
		t.Parallel()
		d := buildGraph(t, []nodeSpec{
			{id: "a"},
			{id: "b", deps: []string{"a"}},
		})
		if err := d.InjectDependencies("a", []string{"b"}); !errors.Is(err, ErrCycle) {
			t.Errorf("got %v, want ErrCycle", err)
		}
	})
}

func TestRemove(t *testing.T) {
	t.Parallel()
	d := diamond(t)
	if err := d.Remove("b"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if d.Node("b") != nil {
		t.Error("removed node still present")
	}
	if got := d.Dependents("a"); len(got) != 1 || got[0] != "c" {
		t.Errorf("Dependents(a) = %v, want [c]", got)
	}
	if got := d.Dependencies("d"); len(got) != 1 || got[0] != "c" {
		t.Errorf("Dependencies(d) = %v, want [c]", got)
	}
}

func TestPruneSynthetics(t *testing.T) {
	t.Parallel()
	d := buildGraph(t, []nodeSpec{{id: "a"}, {id: "b", deps: []string{"a"}}})
	syn := &Node{ID: "gen/a", Synthetic: true, DerivedFrom: "a"}
	if err := d.AddNode(syn); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	_ = d.AddEdge("b", "gen/a")

	if n := d.PruneSynthetics(); n != 1 {
		t.Errorf("PruneSynthetics() = %d, want 1", n)
	}
	if d.Node("gen/a") != nil {
		t.Error("synthetic node survived prune")
	}
	if got := d.Dependencies("b"); len(got) != 1 || got[0] != "a" {
		t.Errorf("Dependencies(b) = %v, want [a]", got)
	}
}

func TestRoots(t *testing.T) {
	t.Parallel()
	d := diamond(t)
	if err := d.AddRoot("d"); err != nil {
		t.Fatalf("AddRoot: %v", err)
	}
	if !d.IsRoot("d") || d.IsRoot("a") {
		t.Error("root membership wrong")
	}
	if err := d.AddRoot("ghost"); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("got %v, want ErrNodeNotFound", err)
	}
	if got := d.Roots(); len(got) != 1 || got[0] != "d" {
		t.Errorf("Roots() = %v, want [d]", got)
	}
}

func TestTopologicalSort(t *testing.T) {
	t.Parallel()
	d := diamond(t)
	order, err := d.TopologicalSort()
	if err != nil {
		t.Fatalf("TopologicalSort: %v", err)
	}
	pos := make(map[string]int, len(order))
	for i, id := range order {
		pos[id] = i
	}
	for id, deps := range d.adjacency {
		for dep := range deps {
			if pos[dep] >= pos[id] {
				t.Errorf("dependency %s not before dependent %s in %v", dep, id, order)
			}
		}
	}
}

func TestAncestorsDescendants(t *testing.T) {
	t.Parallel()
	d := diamond(t)

	if got := d.Ancestors("d"); len(got) != 3 {
		t.Errorf("Ancestors(d) = %v, want [a b c]", got)
	}
	if got := d.Descendants("a"); len(got) != 3 {
		t.Errorf("Descendants(a) = %v, want [b c d]", got)
	}
	if got := d.Ancestors("a"); got != nil {
		t.Errorf("Ancestors(a) = %v, want nil", got)
	}
}

func TestMarkDependeesDirty(t *testing.T) {
	t.Parallel()

	t.Run("marks transitively and counts once", func(t *testing.T) {
		t.Parallel()
		d := diamond(t)
		// Seeding from a must mark a, b, c and d; d is reachable via both
		// b and c but must only be counted once.
		marked := d.MarkDependeesDirty([]string{"a"})
		if marked != 4 {
			t.Errorf("marked = %d, want 4", marked)
		}
		for _, id := range []string{"a", "b", "c", "d"} {
			if !d.Node(id).HashDirty {
				t.Errorf("node %s not marked dirty", id)
			}
		}
	})

	t.Run("multiple seeds share one visited set", func(t *testing.T) {
		t.Parallel()
		d := diamond(t)
		marked := d.MarkDependeesDirty([]string{"b", "c"})
		// b, c and d; d reached from both seeds but marked once.
		if marked != 3 {
			t.Errorf("marked = %d, want 3", marked)
		}
		if d.Node("a").HashDirty {
			t.Error("node a marked dirty; it is upstream of the seeds")
		}
	})

	t.Run("unknown seeds are ignored", func(t *testing.T) {
		t.Parallel()
		d := diamond(t)
		if marked := d.MarkDependeesDirty([]string{"ghost"}); marked != 0 {
			t.Errorf("marked = %d, want 0", marked)
		}
	})
}
