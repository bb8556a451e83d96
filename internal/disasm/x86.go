package disasm

import (
	"golang.org/x/arch/x86/x86asm"
)

// maxInstLen is the architectural limit for one x86 instruction.
const maxInstLen = 15

// X86Decoder decodes 64-bit x86 instructions via golang.org/x/arch.
type X86Decoder struct {
	r CodeReader
}

func NewX86(r CodeReader) *X86Decoder {
	return &X86Decoder{r: r}
}

func (d *X86Decoder) Mode() Mode { return ModeGeneric }

func (d *X86Decoder) Decode(va uint64) Instruction {
	code, ok := d.r.ReadBytesVA(va, maxInstLen)
	for n := maxInstLen - 1; !ok && n > 0; n-- {
		// Near the end of the mapping fewer bytes may be available.
		code, ok = d.r.ReadBytesVA(va, n)
	}
	if !ok || len(code) == 0 {
		return Instruction{}
	}

	inst, err := x86asm.Decode(code, 64)
	if err != nil || inst.Len <= 0 {
		return Instruction{}
	}

	out := Instruction{
		Len:  inst.Len,
		Text: x86asm.IntelSyntax(inst, va, nil),
	}

	// The encoder exposes the position of at most one PC-relative field
	// (branch displacement or RIP-relative memory displacement). All other
	// operands report offset 0, meaning "not computed".
	pcRelAssigned := false
	for _, arg := range inst.Args {
		if arg == nil {
			break
		}
		op := Operand{Kind: x86Kind(arg)}
		switch a := arg.(type) {
		case x86asm.Rel:
			if !pcRelAssigned && inst.PCRel > 0 {
				op.Offset = inst.PCRelOff
				pcRelAssigned = true
			}
			out.Refs = append(out.Refs, va+uint64(inst.Len)+uint64(int64(a)))
		case x86asm.Mem:
			if a.Base == x86asm.RIP {
				if !pcRelAssigned && inst.PCRel > 0 {
					op.Offset = inst.PCRelOff
					pcRelAssigned = true
				}
				out.Refs = append(out.Refs, va+uint64(inst.Len)+uint64(a.Disp))
			}
		}
		out.Operands = append(out.Operands, op)
	}
	return out
}

func x86Kind(arg x86asm.Arg) Kind {
	switch a := arg.(type) {
	case x86asm.Reg:
		return KindReg
	case x86asm.Mem:
		if a.Base == 0 && a.Index == 0 {
			return KindDispl
		}
		return KindMem
	case x86asm.Imm:
		return KindImm
	case x86asm.Rel:
		return KindNear
	}
	return KindVoid
}
