package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	o := Default()

	if o.Diagnostics.MaxErrors != 20 {
		t.Errorf("expected MaxErrors=20, got %d", o.Diagnostics.MaxErrors)
	}
	if o.Macro.MaxExpansionDepth != 128 {
		t.Errorf("expected MaxExpansionDepth=128, got %d", o.Macro.MaxExpansionDepth)
	}
	want := []string{"M", "Zicsr", "Zifencei"}
	if len(o.Extensions) != len(want) {
		t.Fatalf("expected %d default extensions, got %d", len(want), len(o.Extensions))
	}
	for i, name := range want {
		if o.Extensions[i] != name {
			t.Errorf("extension %d: expected %q, got %q", i, name, o.Extensions[i])
		}
	}
}

func TestLoadMissingFile(t *testing.T) {
	o, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error for missing file: %v", err)
	}
	if o.Diagnostics.MaxErrors != Default().Diagnostics.MaxErrors {
		t.Errorf("missing file should yield defaults, got MaxErrors=%d", o.Diagnostics.MaxErrors)
	}
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `
extensions = ["M"]

[diagnostics]
max_errors = 5

[macro]
max_expansion_depth = 4
`
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	o, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if o.Diagnostics.MaxErrors != 5 {
		t.Errorf("expected MaxErrors=5, got %d", o.Diagnostics.MaxErrors)
	}
	if o.Macro.MaxExpansionDepth != 4 {
		t.Errorf("expected MaxExpansionDepth=4, got %d", o.Macro.MaxExpansionDepth)
	}
	if len(o.Extensions) != 1 || o.Extensions[0] != "M" {
		t.Errorf("expected extensions=[M], got %v", o.Extensions)
	}
}

func TestExtensionSet(t *testing.T) {
	o := Default()
	es := o.ExtensionSet()
	for _, name := range []string{"M", "Zicsr", "Zifencei"} {
		if !es[name] {
			t.Errorf("expected extension %q enabled", name)
		}
	}
	if es["Zba"] {
		t.Error("did not expect Zba enabled")
	}
}
