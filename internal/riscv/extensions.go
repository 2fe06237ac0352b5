package riscv

// ExtensionSet gates which optional extensions beyond the always-on base
// integer set ("I") are available to the parser/normalizer: "M"
// (multiply/divide), "Zicsr" (CSR instructions), "Zifencei" (fence.i).
//
// This plays the role that internal/evm's fork lineage plays in the
// teacher project (a named set of opcodes accumulated/removed over forks),
// adapted to RISC-V's extension-accumulation model: instead of chaining
// forks, a profile is just the set of enabled extension names.
type ExtensionSet map[string]bool

// DefaultExtensionSet returns the RV32IM + Zicsr + Zifencei profile that
// this assembler targets by default: every mnemonic in spec.md §6 is
// available unless explicitly disabled via internal/config.
func DefaultExtensionSet() ExtensionSet {
	return ExtensionSet{
		"M":        true,
		"Zicsr":    true,
		"Zifencei": true,
	}
}

// Enabled reports whether mnemonic is available under this extension set.
// Base-set mnemonics (Extension == "") are always enabled.
func (es ExtensionSet) Enabled(info MnemonicInfo) bool {
	if info.Extension == "" {
		return true
	}
	return es[info.Extension]
}
