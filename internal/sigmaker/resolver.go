package sigmaker

import (
	"sigmake/internal/disasm"
)

// operandSpan is the byte sub-range of one instruction to be wildcarded.
type operandSpan struct {
	Offset int
	Length int
}

// resolveOperand picks at most one operand span for the instruction under
// the given architecture mode. ok is false when no operand qualifies, in
// which case the whole instruction is taken literal.
func resolveOperand(inst disasm.Instruction, mode disasm.Mode) (operandSpan, bool) {
	if mode == disasm.ModeARM {
		return resolveOperandARM(inst)
	}

	for _, op := range inst.Operands {
		if op.Kind == disasm.KindVoid {
			continue
		}
		// Offset 0 means the decoder did not compute the position.
		if op.Offset == 0 {
			continue
		}
		return operandSpan{Offset: op.Offset, Length: inst.Len - op.Offset}, true
	}
	return operandSpan{}, false
}

// resolveOperandARM filters to operand kinds whose encodings are position
// independent enough to wildcard; register-only operands are packed densely
// and never wildcarded. The decoder does not expose operand lengths on ARM,
// so length is inferred from the total instruction length: 4-byte
// instructions are assumed to carry a 3-byte operand field under a 1-byte
// operator, 8-byte ones a 7-byte field. Other lengths yield no span; this is
// a documented approximation, not a general decoder.
func resolveOperandARM(inst disasm.Instruction) (operandSpan, bool) {
	for _, op := range inst.Operands {
		switch op.Kind {
		case disasm.KindMem, disasm.KindFar, disasm.KindNear,
			disasm.KindPhrase, disasm.KindDispl, disasm.KindImm:
		default:
			continue
		}

		span := operandSpan{Offset: op.Offset}
		switch inst.Len {
		case 4:
			span.Length = 3
		case 8:
			span.Length = 7
		default:
			return operandSpan{}, false
		}
		return span, true
	}
	return operandSpan{}, false
}
