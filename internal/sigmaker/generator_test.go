package sigmaker

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"sigmake/internal/disasm"
	"sigmake/internal/sig"
)

// fakeSpace is a synthetic address space over one byte slice. Code spans
// [base, base+codeLen); the rest of the slice is data.
type fakeSpace struct {
	base    uint64
	data    []byte
	codeLen int
	funcs   map[uint64]uint64 // start -> end, exclusive
}

func (f *fakeSpace) MinAddr() uint64 { return f.base }
func (f *fakeSpace) MaxAddr() uint64 { return f.base + uint64(len(f.data)) }

func (f *fakeSpace) IsCode(va uint64) bool {
	return va >= f.base && va < f.base+uint64(f.codeLen)
}

func (f *fakeSpace) ReadBytesVA(va uint64, size int) ([]byte, bool) {
	if size < 0 || va < f.base {
		return nil, false
	}
	off := int(va - f.base)
	if off+size > len(f.data) {
		return nil, false
	}
	return f.data[off : off+size], true
}

func (f *fakeSpace) FunctionStart(va uint64) (uint64, bool) {
	for start, end := range f.funcs {
		if va >= start && va < end {
			return start, true
		}
	}
	return 0, false
}

// fakeDecoder serves canned instructions by address. Unknown addresses fail
// to decode.
type fakeDecoder struct {
	mode  disasm.Mode
	insts map[uint64]disasm.Instruction
}

func (d *fakeDecoder) Decode(va uint64) disasm.Instruction { return d.insts[va] }
func (d *fakeDecoder) Mode() disasm.Mode                   { return d.mode }

// fakeSearch matches canonical token patterns against the fake space's bytes.
type fakeSearch struct{ sp *fakeSpace }

func (f *fakeSearch) FindNext(from uint64, pattern string) (uint64, bool) {
	type tok struct {
		v byte
		w bool
	}
	var pat []tok
	for _, t := range strings.Fields(pattern) {
		if t == "?" || t == "??" {
			pat = append(pat, tok{w: true})
			continue
		}
		v, err := strconv.ParseUint(t, 16, 8)
		if err != nil {
			return 0, false
		}
		pat = append(pat, tok{v: byte(v)})
	}
	if len(pat) == 0 {
		return 0, false
	}

	start := f.sp.base
	if from > start {
		start = from
	}
	for va := start; va+uint64(len(pat)) <= f.sp.MaxAddr(); va++ {
		ok := true
		for i, p := range pat {
			if !p.w && f.sp.data[int(va-f.sp.base)+i] != p.v {
				ok = false
				break
			}
		}
		if ok {
			return va, true
		}
	}
	return 0, false
}

// callFixture models a tiny code region with a duplicated one-byte prologue,
// so single-instruction signatures are never unique:
//
//	1000: 55             (also at 1010)
//	1001: E8 11 22 33 44 call, 4-byte operand at offset 1
//	1006: 89 E5
//	1008: C3
//	1010: 55
//	1011: 90
//	1012..: data
func callFixture() (*fakeSpace, *fakeDecoder, *fakeSearch) {
	data := make([]byte, 0x20)
	copy(data, []byte{0x55, 0xE8, 0x11, 0x22, 0x33, 0x44, 0x89, 0xE5, 0xC3})
	data[0x10] = 0x55
	data[0x11] = 0x90
	data[0x18] = 0xAB
	data[0x19] = 0xCD

	sp := &fakeSpace{base: 0x1000, data: data, codeLen: 0x12}
	dec := &fakeDecoder{
		mode: disasm.ModeGeneric,
		insts: map[uint64]disasm.Instruction{
			0x1000: {Len: 1, Operands: []disasm.Operand{{Kind: disasm.KindReg}}},
			0x1001: {Len: 5, Operands: []disasm.Operand{{Kind: disasm.KindNear, Offset: 1}}},
			0x1006: {Len: 2},
			0x1008: {Len: 1},
			0x1010: {Len: 1, Operands: []disasm.Operand{{Kind: disasm.KindReg}}},
			0x1011: {Len: 1},
		},
	}
	return sp, dec, &fakeSearch{sp: sp}
}

func TestUniqueGrowsAndTrims(t *testing.T) {
	sp, dec, search := callFixture()
	g := New(sp, dec, search)

	s, err := g.Unique(context.Background(), 0x1000, Options{WildcardOperands: true})
	if err != nil {
		t.Fatalf("Unique: %v", err)
	}

	want := sig.Signature{{Value: 0x55}, {Value: 0xE8}}
	if !s.Equal(want) {
		t.Errorf("got %q, want %q", sig.Format(s, sig.IDA), sig.Format(want, sig.IDA))
	}

	// The produced pattern must match only the requested address.
	hit, ok := search.FindNext(sp.MinAddr(), sig.Format(s, sig.IDA))
	if !ok || hit != 0x1000 {
		t.Errorf("first match at %x, want 1000", hit)
	}
	if _, again := search.FindNext(hit+1, sig.Format(s, sig.IDA)); again {
		t.Error("signature is not unique")
	}
}

func TestUniqueLiteralOperands(t *testing.T) {
	sp, dec, search := callFixture()
	g := New(sp, dec, search)

	s, err := g.Unique(context.Background(), 0x1000, Options{WildcardOperands: false})
	if err != nil {
		t.Fatalf("Unique: %v", err)
	}

	want := sig.Signature{
		{Value: 0x55}, {Value: 0xE8}, {Value: 0x11},
		{Value: 0x22}, {Value: 0x33}, {Value: 0x44},
	}
	if !s.Equal(want) {
		t.Errorf("got %q, want %q", sig.Format(s, sig.IDA), sig.Format(want, sig.IDA))
	}
}

func TestUniqueInputValidation(t *testing.T) {
	sp, dec, search := callFixture()
	g := New(sp, dec, search)
	ctx := context.Background()

	if _, err := g.Unique(ctx, BadAddr, Options{}); !errors.Is(err, ErrInvalidAddress) {
		t.Errorf("BadAddr: got %v, want ErrInvalidAddress", err)
	}
	if _, err := g.Unique(ctx, 0x1018, Options{}); !errors.Is(err, ErrNotCode) {
		t.Errorf("data address: got %v, want ErrNotCode", err)
	}
	if _, err := g.Unique(ctx, 0x1002, Options{}); !errors.Is(err, ErrDecodeFailure) {
		t.Errorf("mid-instruction: got %v, want ErrDecodeFailure", err)
	}
}

func TestUniqueCancellation(t *testing.T) {
	sp, dec, search := callFixture()
	g := New(sp, dec, search)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := g.Unique(ctx, 0x1000, Options{}); !errors.Is(err, ErrAborted) {
		t.Errorf("got %v, want ErrAborted", err)
	}
}

func TestUniqueFunctionScope(t *testing.T) {
	sp, dec, search := callFixture()
	// A one-byte function: growth past it leaves function scope immediately.
	sp.funcs = map[uint64]uint64{0x1010: 0x1011}
	g := New(sp, dec, search)

	_, err := g.Unique(context.Background(), 0x1010, Options{})
	if !errors.Is(err, ErrLeftFunctionScope) {
		t.Fatalf("got %v, want ErrLeftFunctionScope", err)
	}

	s, err := g.Unique(context.Background(), 0x1010, Options{ContinueOutsideOfFunction: true})
	if err != nil {
		t.Fatalf("with ContinueOutsideOfFunction: %v", err)
	}
	want := sig.Signature{{Value: 0x55}, {Value: 0x90}}
	if !s.Equal(want) {
		t.Errorf("got %q, want %q", sig.Format(s, sig.IDA), sig.Format(want, sig.IDA))
	}
}

func TestUniqueNotUniquePartial(t *testing.T) {
	// Two identical instruction pairs; decoding stops after the first, so
	// uniqueness is unreachable.
	sp := &fakeSpace{base: 0x1000, data: []byte{0xAA, 0xBB, 0xAA, 0xBB}, codeLen: 4}
	dec := &fakeDecoder{insts: map[uint64]disasm.Instruction{
		0x1000: {Len: 2},
	}}
	g := New(sp, dec, &fakeSearch{sp: sp})

	_, err := g.Unique(context.Background(), 0x1000, Options{})
	var notUnique *NotUniqueError
	if !errors.As(err, &notUnique) {
		t.Fatalf("got %v, want NotUniqueError", err)
	}
	want := sig.Signature{{Value: 0xAA}, {Value: 0xBB}}
	if !notUnique.Partial.Equal(want) {
		t.Errorf("partial = %q, want %q",
			sig.Format(notUnique.Partial, sig.IDA), sig.Format(want, sig.IDA))
	}
}

// nopFixture is eight identical one-byte instructions; only the full run of
// eight is unique, so a small budget trips the limit policy on the way there.
func nopFixture() *Generator {
	data := []byte{0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90, 0x90}
	sp := &fakeSpace{base: 0x1000, data: data, codeLen: len(data)}
	insts := make(map[uint64]disasm.Instruction)
	for i := range data {
		insts[0x1000+uint64(i)] = disasm.Instruction{Len: 1}
	}
	return New(sp, &fakeDecoder{insts: insts}, &fakeSearch{sp: sp})
}

func TestUniqueLengthLimit(t *testing.T) {
	ctx := context.Background()

	t.Run("no policy fails", func(t *testing.T) {
		g := nopFixture()
		_, err := g.Unique(ctx, 0x1000, Options{MaxLength: 2})
		if !errors.Is(err, ErrLengthExceeded) {
			t.Errorf("got %v, want ErrLengthExceeded", err)
		}
	})

	t.Run("abort with partial", func(t *testing.T) {
		g := nopFixture()
		policy := func(int) LimitDecision { return AbortWithPartial }
		_, err := g.Unique(ctx, 0x1000, Options{MaxLength: 2, LimitPolicy: policy})
		var notUnique *NotUniqueError
		if !errors.As(err, &notUnique) {
			t.Fatalf("got %v, want NotUniqueError", err)
		}
		if len(notUnique.Partial) == 0 {
			t.Error("partial signature should not be empty")
		}
	})

	t.Run("abort without partial", func(t *testing.T) {
		g := nopFixture()
		policy := func(int) LimitDecision { return AbortWithoutPartial }
		_, err := g.Unique(ctx, 0x1000, Options{MaxLength: 2, LimitPolicy: policy})
		if !errors.Is(err, ErrAborted) {
			t.Errorf("got %v, want ErrAborted", err)
		}
	})

	t.Run("continue resets the budget", func(t *testing.T) {
		g := nopFixture()
		asked := 0
		policy := func(int) LimitDecision {
			asked++
			return ContinueReset
		}
		s, err := g.Unique(ctx, 0x1000, Options{MaxLength: 2, LimitPolicy: policy})
		if err != nil {
			t.Fatalf("Unique: %v", err)
		}
		if len(s) != 8 {
			t.Errorf("got %d entries, want 8", len(s))
		}
		if asked < 2 {
			t.Errorf("policy consulted %d times, want at least 2", asked)
		}
	})
}

func TestRange(t *testing.T) {
	sp, dec, search := callFixture()
	g := New(sp, dec, search)
	ctx := context.Background()

	t.Run("code with wildcards", func(t *testing.T) {
		s, err := g.Range(ctx, 0x1001, 0x1006, true)
		if err != nil {
			t.Fatalf("Range: %v", err)
		}
		// The call's operand wildcards trail and get trimmed.
		want := sig.Signature{{Value: 0xE8}}
		if !s.Equal(want) {
			t.Errorf("got %q, want %q", sig.Format(s, sig.IDA), sig.Format(want, sig.IDA))
		}
	})

	t.Run("code literal", func(t *testing.T) {
		s, err := g.Range(ctx, 0x1001, 0x1006, false)
		if err != nil {
			t.Fatalf("Range: %v", err)
		}
		if len(s) != 5 {
			t.Errorf("got %d entries, want 5", len(s))
		}
	})

	t.Run("clamped to requested size", func(t *testing.T) {
		// The call instruction straddles end, the result must not.
		s, err := g.Range(ctx, 0x1000, 0x1003, true)
		if err != nil {
			t.Fatalf("Range: %v", err)
		}
		if len(s) > 3 {
			t.Errorf("got %d entries, want at most 3", len(s))
		}
		want := sig.Signature{{Value: 0x55}, {Value: 0xE8}}
		if !s.Equal(want) {
			t.Errorf("got %q, want %q", sig.Format(s, sig.IDA), sig.Format(want, sig.IDA))
		}
	})

	t.Run("data copied literally", func(t *testing.T) {
		s, err := g.Range(ctx, 0x1018, 0x101a, true)
		if err != nil {
			t.Fatalf("Range: %v", err)
		}
		want := sig.Signature{{Value: 0xAB}, {Value: 0xCD}}
		if !s.Equal(want) {
			t.Errorf("got %q, want %q", sig.Format(s, sig.IDA), sig.Format(want, sig.IDA))
		}
	})

	t.Run("empty range rejected", func(t *testing.T) {
		if _, err := g.Range(ctx, 0x1006, 0x1006, true); !errors.Is(err, ErrInvalidAddress) {
			t.Errorf("got %v, want ErrInvalidAddress", err)
		}
	})
}

func TestOccurrences(t *testing.T) {
	sp, dec, search := callFixture()
	g := New(sp, dec, search)

	got := g.Occurrences("55")
	want := []uint64{0x1000, 0x1010}
	if len(got) != len(want) {
		t.Fatalf("got %d matches, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("match %d at %x, want %x", i, got[i], want[i])
		}
	}
}

type fakeXRefs struct {
	origins []uint64
	err     error
}

func (f *fakeXRefs) CodeRefsTo(ctx context.Context, target uint64) ([]uint64, error) {
	return f.origins, f.err
}

func TestXRefSignatures(t *testing.T) {
	sp, dec, search := callFixture()
	g := New(sp, dec, search)

	// 1006 yields two entries, 1001 one after trimming, 1002 fails to
	// decode and is skipped.
	xrefs := &fakeXRefs{origins: []uint64{0x1006, 0x1001, 0x1002}}

	var progressed int
	progress := func(index, total int) { progressed++ }

	results, err := g.XRefSignatures(context.Background(), 0x2000,
		Options{WildcardOperands: true}, xrefs, progress)
	if err != nil {
		t.Fatalf("XRefSignatures: %v", err)
	}

	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].Origin != 0x1001 || results[1].Origin != 0x1006 {
		t.Errorf("order = [%x %x], want shortest first [1001 1006]",
			results[0].Origin, results[1].Origin)
	}
	if len(results[0].Signature) >= len(results[1].Signature) {
		t.Error("results not sorted ascending by signature length")
	}
	if progressed != 3 {
		t.Errorf("progress reported %d times, want 3", progressed)
	}
}

func TestXRefSignaturesProviderFailure(t *testing.T) {
	sp, dec, search := callFixture()
	g := New(sp, dec, search)

	xrefs := &fakeXRefs{err: context.Canceled}
	_, err := g.XRefSignatures(context.Background(), 0x2000, Options{}, xrefs, nil)
	if !errors.Is(err, ErrAborted) {
		t.Errorf("got %v, want ErrAborted", err)
	}
}
