// Package riscv holds the static, data-driven description of the target
// instruction set: the canonical register file and its ABI aliases, and
// the mnemonic-to-operand-shape table that the parser and normalizer
// dispatch on (spec.md §6 "EXTERNAL INTERFACES").
//
// The tables themselves live in internal/riscv/data/*.yaml and are loaded
// once at init time, the way internal/evm in the teacher project keeps its
// opcode list as data separate from the lookup logic.
package riscv

import (
	"embed"
	"fmt"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

//go:embed data/registers.yaml data/instructions.yaml
var dataFS embed.FS

// registerEntry mirrors one row of data/registers.yaml.
type registerEntry struct {
	Index     int      `yaml:"index"`
	Canonical string   `yaml:"canonical"`
	Aliases   []string `yaml:"aliases"`
}

// instructionEntry mirrors one row of data/instructions.yaml.
type instructionEntry struct {
	Mnemonic  string `yaml:"mnemonic"`
	Shape     string `yaml:"shape"`
	Extension string `yaml:"extension"`
}

var (
	registersByName map[string]int
	registerNames   []string // canonical name per index, len 32

	mnemonics map[string]MnemonicInfo
)

func init() {
	regs := mustLoadRegisters()
	registersByName = make(map[string]int, len(regs)*2)
	registerNames = make([]string, len(regs))
	for _, r := range regs {
		registerNames[r.Index] = r.Canonical
		registersByName[r.Canonical] = r.Index
		for _, alias := range r.Aliases {
			registersByName[alias] = r.Index
		}
	}

	insts := mustLoadInstructions()
	mnemonics = make(map[string]MnemonicInfo, len(insts))
	for _, e := range insts {
		shape, ok := shapeFromString(e.Shape)
		if !ok {
			panic(fmt.Sprintf("riscv: instructions.yaml: unknown shape %q for %q", e.Shape, e.Mnemonic))
		}
		mnemonics[e.Mnemonic] = MnemonicInfo{
			Mnemonic:  e.Mnemonic,
			Shape:     shape,
			Extension: e.Extension,
		}
	}
}

func mustLoadRegisters() []registerEntry {
	data, err := dataFS.ReadFile("data/registers.yaml")
	if err != nil {
		panic(err)
	}
	var entries []registerEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		panic(fmt.Sprintf("riscv: registers.yaml: %v", err))
	}
	return entries
}

func mustLoadInstructions() []instructionEntry {
	data, err := dataFS.ReadFile("data/instructions.yaml")
	if err != nil {
		panic(err)
	}
	var entries []instructionEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		panic(fmt.Sprintf("riscv: instructions.yaml: %v", err))
	}
	return entries
}

// Mnemonics returns all known mnemonics in sorted order, for deterministic
// error listings and documentation generation.
func Mnemonics() []string {
	names := maps.Keys(mnemonics)
	slices.Sort(names)
	return names
}
