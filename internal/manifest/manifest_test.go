package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeManifest writes content as pulsar.toml into a fresh temp dir.
func writeManifest(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "pulsar.toml"), []byte(content), 0o644); err != nil {
		t.Fatalf("writing manifest: %v", err)
	}
	return dir
}

const validManifest = `
[build]
name = "example"
roots = ["app"]

[generator]
kind = "protoc"
match = ["proto_library"]
synthetic_kind = "generated_library"

[[target]]
id = "base"
kind = "proto_library"
path = "src/proto/base"
sources = ["base.proto"]

[[target]]
id = "api"
kind = "proto_library"
path = "src/proto/api"
sources = ["api.proto"]
deps = ["base"]

[[target]]
id = "app"
kind = "go_library"
path = "src/app"
sources = ["main.go"]
deps = ["api"]
`

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("valid manifest", func(t *testing.T) {
		t.Parallel()
		dir := writeManifest(t, validManifest)
		m, err := Load(dir)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if m.Build.Name != "example" {
			t.Errorf("Build.Name = %q, want example", m.Build.Name)
		}
		if len(m.Targets) != 3 {
			t.Fatalf("got %d targets, want 3", len(m.Targets))
		}
		if m.Generator.Kind != "protoc" {
			t.Errorf("Generator.Kind = %q, want protoc", m.Generator.Kind)
		}
		if got := m.Targets[1].Deps; len(got) != 1 || got[0] != "base" {
			t.Errorf("api deps = %v, want [base]", got)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		if _, err := Load(t.TempDir()); !errors.Is(err, ErrNoManifest) {
			t.Errorf("got %v, want ErrNoManifest", err)
		}
	})

	t.Run("malformed toml", func(t *testing.T) {
		t.Parallel()
		dir := writeManifest(t, "[build\nname =")
		if _, err := Load(dir); err == nil {
			t.Error("expected parse error, got nil")
		}
	})
}

func TestValidate(t *testing.T) {
	t.Parallel()

	base := func() *Manifest {
		return &Manifest{
			Build: Build{Name: "example"},
			Targets: []Target{
				{ID: "a", Kind: "proto_library"},
				{ID: "b", Kind: "proto_library", Deps: []string{"a"}},
			},
		}
	}

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		if errs := Validate(base()); len(errs) != 0 {
			t.Errorf("unexpected errors: %v", errs)
		}
	})

	t.Run("missing name", func(t *testing.T) {
		t.Parallel()
		m := base()
		m.Build.Name = ""
		errs := Validate(m)
		if len(errs) != 1 || !errors.Is(&errs[0], ErrMissingField) {
			t.Errorf("got %v, want one ErrMissingField", errs)
		}
	})

	t.Run("duplicate id", func(t *testing.T) {
		t.Parallel()
		m := base()
		m.Targets = append(m.Targets, Target{ID: "a", Kind: "proto_library"})
		errs := Validate(m)
		if len(errs) != 1 || !errors.Is(&errs[0], ErrDuplicateID) {
			t.Errorf("got %v, want one ErrDuplicateID", errs)
		}
	})

	t.Run("unknown dep", func(t *testing.T) {
		t.Parallel()
		m := base()
		m.Targets[1].Deps = []string{"ghost"}
		errs := Validate(m)
		if len(errs) != 1 || !errors.Is(&errs[0], ErrUnknownDep) {
			t.Errorf("got %v, want one ErrUnknownDep", errs)
		}
		if errs[0].TargetID != "b" {
			t.Errorf("TargetID = %q, want b", errs[0].TargetID)
		}
	})

	t.Run("unknown root", func(t *testing.T) {
		t.Parallel()
		m := base()
		m.Build.Roots = []string{"ghost"}
		errs := Validate(m)
		if len(errs) != 1 || !errors.Is(&errs[0], ErrUnknownRoot) {
			t.Errorf("got %v, want one ErrUnknownRoot", errs)
		}
	})

	t.Run("cycle", func(t *testing.T) {
		t.Parallel()
		m := base()
		m.Targets[0].Deps = []string{"b"}
		errs := Validate(m)
		if len(errs) != 1 || !errors.Is(&errs[0], ErrDependencyCycle) {
			t.Errorf("got %v, want one ErrDependencyCycle", errs)
		}
	})
}

func TestGraph(t *testing.T) {
	t.Parallel()

	t.Run("edges and roots", func(t *testing.T) {
		t.Parallel()
		dir := writeManifest(t, validManifest)
		m, err := Load(dir)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		g, err := Graph(m)
		if err != nil {
			t.Fatalf("Graph: %v", err)
		}
		if g.Len() != 3 {
			t.Errorf("Len() = %d, want 3", g.Len())
		}
		if got := g.Dependencies("app"); len(got) != 1 || got[0] != "api" {
			t.Errorf("Dependencies(app) = %v, want [api]", got)
		}
		if got := g.Roots(); len(got) != 1 || got[0] != "app" {
			t.Errorf("Roots() = %v, want [app]", got)
		}
		if n := g.Node("api"); n == nil || n.Kind != "proto_library" || n.Path != "src/proto/api" {
			t.Errorf("api node = %+v", n)
		}
	})

	t.Run("no explicit roots selects all", func(t *testing.T) {
		t.Parallel()
		m := &Manifest{
			Build:   Build{Name: "example"},
			Targets: []Target{{ID: "a", Kind: "k"}, {ID: "b", Kind: "k"}},
		}
		g, err := Graph(m)
		if err != nil {
			t.Fatalf("Graph: %v", err)
		}
		if got := g.Roots(); len(got) != 2 {
			t.Errorf("Roots() = %v, want [a b]", got)
		}
	})
}
