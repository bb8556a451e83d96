package disasm

import "testing"

// sliceReader serves bytes from a slice mapped at base.
type sliceReader struct {
	base uint64
	data []byte
}

func (r sliceReader) ReadBytesVA(va uint64, size int) ([]byte, bool) {
	if va < r.base || size < 0 {
		return nil, false
	}
	off := int(va - r.base)
	if off+size > len(r.data) {
		return nil, false
	}
	return r.data[off : off+size], true
}

func pad(code []byte) []byte {
	out := make([]byte, maxInstLen+len(code))
	copy(out, code)
	for i := len(code); i < len(out); i++ {
		out[i] = 0x90
	}
	return out
}

func TestX86DecodeCall(t *testing.T) {
	// call rel32 +0x10
	d := NewX86(sliceReader{base: 0x1000, data: pad([]byte{0xE8, 0x10, 0x00, 0x00, 0x00})})

	inst := d.Decode(0x1000)
	if inst.Len != 5 {
		t.Fatalf("Len = %d, want 5", inst.Len)
	}
	if len(inst.Refs) != 1 || inst.Refs[0] != 0x1015 {
		t.Errorf("Refs = %x, want [1015]", inst.Refs)
	}
	if len(inst.Operands) == 0 {
		t.Fatal("no operands decoded")
	}
	op := inst.Operands[0]
	if op.Kind != KindNear {
		t.Errorf("operand kind = %v, want KindNear", op.Kind)
	}
	if op.Offset != 1 {
		t.Errorf("operand offset = %d, want 1", op.Offset)
	}
}

func TestX86DecodeRIPRelative(t *testing.T) {
	// mov rax, [rip+0x10]
	d := NewX86(sliceReader{base: 0x1000, data: pad([]byte{0x48, 0x8B, 0x05, 0x10, 0x00, 0x00, 0x00})})

	inst := d.Decode(0x1000)
	if inst.Len != 7 {
		t.Fatalf("Len = %d, want 7", inst.Len)
	}
	if len(inst.Refs) != 1 || inst.Refs[0] != 0x1017 {
		t.Errorf("Refs = %x, want [1017]", inst.Refs)
	}

	var memOff int
	found := false
	for _, op := range inst.Operands {
		if op.Kind == KindMem {
			memOff = op.Offset
			found = true
		}
	}
	if !found {
		t.Fatal("no memory operand decoded")
	}
	if memOff != 3 {
		t.Errorf("displacement offset = %d, want 3", memOff)
	}
}

func TestX86DecodeRegisterOnly(t *testing.T) {
	// push rbp
	d := NewX86(sliceReader{base: 0x1000, data: pad([]byte{0x55})})

	inst := d.Decode(0x1000)
	if inst.Len != 1 {
		t.Fatalf("Len = %d, want 1", inst.Len)
	}
	if len(inst.Refs) != 0 {
		t.Errorf("Refs = %x, want none", inst.Refs)
	}
	if len(inst.Operands) == 0 || inst.Operands[0].Kind != KindReg {
		t.Error("expected a register operand")
	}
	if inst.Operands[0].Offset != 0 {
		t.Errorf("register operand offset = %d, want 0", inst.Operands[0].Offset)
	}
}

func TestX86DecodeNearMappingEnd(t *testing.T) {
	// Exactly five bytes available, less than the architectural maximum.
	d := NewX86(sliceReader{base: 0x1000, data: []byte{0xE8, 0x10, 0x00, 0x00, 0x00}})

	inst := d.Decode(0x1000)
	if inst.Len != 5 {
		t.Errorf("Len = %d, want 5", inst.Len)
	}
}

func TestX86DecodeFailure(t *testing.T) {
	d := NewX86(sliceReader{base: 0x1000, data: nil})
	if inst := d.Decode(0x1000); inst.Len != 0 {
		t.Errorf("Len = %d, want 0 on unmapped read", inst.Len)
	}
	if inst := d.Decode(0x500); inst.Len != 0 {
		t.Errorf("Len = %d, want 0 below mapping", inst.Len)
	}
}

func TestX86Mode(t *testing.T) {
	if NewX86(sliceReader{}).Mode() != ModeGeneric {
		t.Error("x86 decoder must report ModeGeneric")
	}
}
