package rvasm

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"golang.org/x/exp/maps"
	"gopkg.in/yaml.v3"

	"github.com/rvasm/rvasm/internal/config"
)

type assemblerTestInput struct {
	Code string `yaml:"code"`
}

type assemblerTestOutput struct {
	ErrorCodes []string `yaml:"error_codes,omitempty"`
}

type assemblerTestYAML struct {
	Input  assemblerTestInput  `yaml:"input"`
	Output assemblerTestOutput `yaml:"output"`
}

// TestAssembler runs every scenario from spec.md §8's testable properties
// end to end through the full front-end pipeline, in the same
// table-driven YAML shape as the teacher's asm.Compiler suite.
func TestAssembler(t *testing.T) {
	content, err := os.ReadFile(filepath.Join("testdata", "assembler-tests.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	tests := make(map[string]assemblerTestYAML)
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&tests); err != nil {
		t.Fatal(err)
	}

	names := maps.Keys(tests)
	sort.Strings(names)
	for _, name := range names {
		test := tests[name]
		t.Run(name, func(t *testing.T) {
			a := New(config.Default())
			_, err := a.CompileString(name, test.Input.Code)

			gotCodes := make([]string, 0, len(a.Errors()))
			for _, d := range a.Errors() {
				gotCodes = append(gotCodes, string(d.Code))
			}

			if len(test.Output.ErrorCodes) == 0 {
				if err != nil {
					t.Fatalf("expected success, got error: %v (diagnostics: %v)", err, a.Errors())
				}
				return
			}
			if err == nil {
				t.Fatalf("expected failure with codes %v, compilation succeeded", test.Output.ErrorCodes)
			}
			if len(gotCodes) != len(test.Output.ErrorCodes) {
				t.Fatalf("got %d diagnostics %v, want %d %v", len(gotCodes), gotCodes, len(test.Output.ErrorCodes), test.Output.ErrorCodes)
			}
			for i, want := range test.Output.ErrorCodes {
				if gotCodes[i] != want {
					t.Errorf("diagnostic %d: got code %q, want %q", i, gotCodes[i], want)
				}
			}
		})
	}
}

// TestAssemblerCompileFile covers the filesystem-backed entry point,
// mirroring asm.Compiler.CompileFile.
func TestAssemblerCompileFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "prog.s")
	src := "#SECTION .TEXT\naddi r1, r0, 1\n"
	if err := os.WriteFile(path, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	a := New(nil)
	root, err := a.CompileFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v (diagnostics: %v)", err, a.Errors())
	}
	if root == nil {
		t.Fatal("expected non-nil root")
	}
}

// TestAssemblerCompileFileMissing covers the os.ReadFile error path.
func TestAssemblerCompileFileMissing(t *testing.T) {
	a := New(nil)
	_, err := a.CompileFile(filepath.Join(t.TempDir(), "does-not-exist.s"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}
