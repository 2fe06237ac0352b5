// Package config holds the small set of options that tune the assembler
// front end: how many diagnostics it tolerates before aborting, how deep
// macro expansion may recurse, and which optional instruction-set
// extensions are enabled. Modeled on lookbusy1344/arm-emulator's
// config/config.go: a struct decoded from TOML with defaults applied
// before the file (if any) is read.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/rvasm/rvasm/internal/riscv"
)

// Options is the assembler's tunable configuration: max diagnostics before
// fatal abort, max macro expansion recursion depth, and the enabled
// instruction-set extensions. The register-alias table is not configurable.
type Options struct {
	Diagnostics struct {
		MaxErrors int `toml:"max_errors"`
	} `toml:"diagnostics"`

	Macro struct {
		MaxExpansionDepth int `toml:"max_expansion_depth"`
	} `toml:"macro"`

	// Extensions lists the optional instruction-set extensions enabled on
	// top of the always-on base integer set (e.g. "M", "Zicsr",
	// "Zifencei"). An empty list enables only the base integer set.
	Extensions []string `toml:"extensions"`
}

// Default returns the configuration used when no file is supplied,
// matching the teacher's NewCompiler constructor defaults
// (asm/compiler.go's maxIncDepth, maxErrors).
func Default() *Options {
	o := &Options{}
	o.Diagnostics.MaxErrors = 20
	o.Macro.MaxExpansionDepth = 128
	o.Extensions = []string{"M", "Zicsr", "Zifencei"}
	return o
}

// Load reads options from a TOML file, applying Default() first so an
// incomplete file still yields sensible values for the fields it omits.
// A missing file is not an error: it yields Default() unchanged.
func Load(path string) (*Options, error) {
	o := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return o, nil
	}
	if _, err := toml.DecodeFile(path, o); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	return o, nil
}

// ExtensionSet converts Extensions into the form internal/riscv consumes.
func (o *Options) ExtensionSet() riscv.ExtensionSet {
	es := make(riscv.ExtensionSet, len(o.Extensions))
	for _, name := range o.Extensions {
		es[name] = true
	}
	return es
}
