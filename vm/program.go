package vm

import "brainvm/types"

// BYTECODE_VERSION is the engine's accepted bytecode format version; a
// Program whose Version differs fails verification (spec §4.1).
const BYTECODE_VERSION = 1

// Instr is one bytecode instruction: an opcode plus up to three
// opcode-specific integer operands (spec §3). All three are signed so
// they can serve as relative jump offsets.
type Instr struct {
	Op OpCode
	A  int32
	B  int32
	C  int32
}

// FunctionBytecode is one callable unit within a Program (spec §3).
type FunctionBytecode struct {
	Name      string // empty for anonymous/compiler-generated functions
	NumParams int
	Code      []Instr
}

// Program is the VM's sole unit of loadable, immutable input (spec §3,
// §6). It is never partially accepted: Verify must succeed before any
// fiber is spawned against it.
type Program struct {
	Version       int
	Constants     []types.Value
	VariableNames []string
	Functions     []FunctionBytecode
	EntryPoint    int
}
