// Package disasm defines a common decoded-instruction representation and
// decoders for the supported architectures.
package disasm

// Mode identifies how operand encodings are located for the session's
// processor. It is resolved once when the image is opened and treated as an
// immutable configuration value from then on.
type Mode int

const (
	// ModeGeneric trusts the byte offsets reported by the decoder.
	ModeGeneric Mode = iota
	// ModeARM has fixed-width instructions whose operand length is
	// inferred from the instruction length instead of the decoder.
	ModeARM
)

// Kind classifies an operand the way the wildcard policy cares about.
type Kind int

const (
	KindVoid Kind = iota
	KindReg
	KindMem
	KindPhrase
	KindDispl
	KindImm
	KindFar
	KindNear
)

// Operand is one decoded operand. Offset is the byte offset of its encoding
// within the instruction; 0 means the decoder could not compute it.
type Operand struct {
	Kind   Kind
	Offset int
}

// Instruction is one decoded instruction. Len <= 0 reports decode failure.
type Instruction struct {
	Len      int
	Operands []Operand
	Refs     []uint64 // resolved PC-relative reference targets
	Text     string   // formatted disassembly, for listings only
}

// CodeReader supplies raw bytes at virtual addresses. *elfx.Image satisfies
// it.
type CodeReader interface {
	ReadBytesVA(va uint64, size int) ([]byte, bool)
}

// Decoder decodes the instruction at a virtual address.
type Decoder interface {
	Decode(va uint64) Instruction
	Mode() Mode
}
