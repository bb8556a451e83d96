package disasm

import (
	"golang.org/x/arch/arm64/arm64asm"
)

// ARM64Decoder decodes A64 instructions via golang.org/x/arch. All A64
// instructions are 4 bytes wide.
type ARM64Decoder struct {
	r CodeReader
}

func NewARM64(r CodeReader) *ARM64Decoder {
	return &ARM64Decoder{r: r}
}

func (d *ARM64Decoder) Mode() Mode { return ModeARM }

func (d *ARM64Decoder) Decode(va uint64) Instruction {
	code, ok := d.r.ReadBytesVA(va, 4)
	if !ok {
		return Instruction{}
	}

	inst, err := arm64asm.Decode(code)
	if err != nil {
		return Instruction{}
	}

	out := Instruction{
		Len:  4,
		Text: arm64asm.GNUSyntax(inst),
	}
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		// Operand fields sit in the low bits of the little-endian word,
		// so qualifying operands report byte offset 0.
		out.Operands = append(out.Operands, Operand{Kind: arm64Kind(arg)})
		if rel, ok := arg.(arm64asm.PCRel); ok {
			out.Refs = append(out.Refs, va+uint64(int64(rel)))
		}
	}
	return out
}

func arm64Kind(arg arm64asm.Arg) Kind {
	switch arg.(type) {
	case arm64asm.PCRel:
		return KindNear
	case arm64asm.MemImmediate, arm64asm.MemExtend:
		return KindMem
	case arm64asm.Imm, arm64asm.Imm64, arm64asm.ImmShift, arm64asm.Imm_fp:
		return KindImm
	case arm64asm.Reg, arm64asm.RegSP, arm64asm.RegExtshiftAmount:
		return KindReg
	}
	// Conditions, system registers, hints: never wildcarded.
	return KindVoid
}
