package vm

import "fmt"

// VerificationError collects every rule violation found in one pass
// over a Program, so Verify fails with the complete diagnostic list
// rather than stopping at the first problem (spec §4.1). New does not
// call Verify; an Interpreter is constructed from whatever Program it
// is given.
type VerificationError struct {
	Diagnostics []string
}

func (e *VerificationError) Error() string {
	msg := "bytecode verification failed:"
	for _, d := range e.Diagnostics {
		msg += "\n  - " + d
	}
	return msg
}

// Verify runs the bytecode verifier once over a Program. It never
// mutates the program; a program that fails verification must not be
// executed even partially.
func Verify(p *Program) error {
	var diags []string

	if p.Version != BYTECODE_VERSION {
		diags = append(diags, fmt.Sprintf("version mismatch: program has %d, engine requires %d", p.Version, BYTECODE_VERSION))
	}

	if p.EntryPoint < 0 || p.EntryPoint >= len(p.Functions) {
		diags = append(diags, fmt.Sprintf("entryPoint %d out of range [0,%d)", p.EntryPoint, len(p.Functions)))
	}

	for fi, fn := range p.Functions {
		for ip, instr := range fn.Code {
			switch instr.Op {
			case PUSH_CONST:
				if int(instr.A) < 0 || int(instr.A) >= len(p.Constants) {
					diags = append(diags, fmt.Sprintf("func %d ip %d: PUSH_CONST index %d out of range [0,%d)", fi, ip, instr.A, len(p.Constants)))
				}
			case LOAD_VAR, STORE_VAR:
				if int(instr.A) < 0 || int(instr.A) >= len(p.VariableNames) {
					diags = append(diags, fmt.Sprintf("func %d ip %d: variable index %d out of range [0,%d)", fi, ip, instr.A, len(p.VariableNames)))
				}
			case JMP, JMP_IF_FALSE, JMP_IF_TRUE:
				target := ip + int(instr.A)
				if target < 0 || target >= len(fn.Code) {
					diags = append(diags, fmt.Sprintf("func %d ip %d: jump target %d out of bounds [0,%d)", fi, ip, target, len(fn.Code)))
				}
			case TRY:
				target := ip + int(instr.A)
				if target < 0 || target >= len(fn.Code) {
					diags = append(diags, fmt.Sprintf("func %d ip %d: TRY catch target %d out of bounds [0,%d)", fi, ip, target, len(fn.Code)))
				}
			case CALL:
				calleeID := int(instr.A)
				argc := int(instr.B)
				if calleeID < 0 || calleeID >= len(p.Functions) {
					diags = append(diags, fmt.Sprintf("func %d ip %d: CALL target %d invalid", fi, ip, calleeID))
					continue
				}
				if p.Functions[calleeID].NumParams != argc {
					diags = append(diags, fmt.Sprintf("func %d ip %d: CALL argc %d does not match callee %d's numParams %d", fi, ip, argc, calleeID, p.Functions[calleeID].NumParams))
				}
			case WHEN_END:
				target := ip + int(instr.A)
				if target < 0 || target > len(fn.Code) {
					diags = append(diags, fmt.Sprintf("func %d ip %d: WHEN_END skip target %d out of bounds [0,%d]", fi, ip, target, len(fn.Code)))
				}
			}
		}
	}

	if len(diags) > 0 {
		return &VerificationError{Diagnostics: diags}
	}
	return nil
}
