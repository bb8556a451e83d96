package sigmaker

import (
	"context"
	"log/slog"

	"sigmake/internal/disasm"
	"sigmake/internal/sig"
)

// Generator grows and builds signatures against one opened image.
type Generator struct {
	space  AddressSpace
	dec    disasm.Decoder
	search PatternSearch
}

func New(space AddressSpace, dec disasm.Decoder, search PatternSearch) *Generator {
	return &Generator{space: space, dec: dec, search: search}
}

// Unique grows a signature instruction by instruction starting at ea until
// it matches exactly one location in the image. The returned signature has
// no trailing wildcards and, searched as formatted, matches only ea.
func (g *Generator) Unique(ctx context.Context, ea uint64, opts Options) (sig.Signature, error) {
	if ea == BadAddr {
		return nil, ErrInvalidAddress
	}
	if !g.space.IsCode(ea) {
		return nil, ErrNotCode
	}

	maxLength := opts.MaxLength
	if maxLength <= 0 {
		maxLength = DefaultMaxLength
	}

	startFunc, inFunc := g.space.FunctionStart(ea)

	var signature sig.Signature
	sigPartLength := 0
	current := ea
	for {
		if ctx.Err() != nil {
			return nil, ErrAborted
		}

		inst := g.dec.Decode(current)
		if inst.Len <= 0 {
			if len(signature) == 0 {
				return nil, ErrDecodeFailure
			}
			// The uniqueness search has exhausted available code.
			slog.Info("signature reached end of executable code", "addr", hexAddr(current))
			return nil, &NotUniqueError{Partial: signature}
		}

		if sigPartLength > maxLength {
			if opts.LimitPolicy == nil {
				return nil, ErrLengthExceeded
			}
			switch opts.LimitPolicy(len(signature)) {
			case ContinueReset:
				sigPartLength = 0
			case AbortWithPartial:
				return nil, &NotUniqueError{Partial: signature}
			default:
				return nil, ErrAborted
			}
		}
		sigPartLength += inst.Len

		signature = g.accumulate(signature, current, inst, opts.WildcardOperands)

		if g.isUnique(sig.Format(signature, sig.IDA)) {
			return signature.TrimTrailingWildcards(), nil
		}
		current += uint64(inst.Len)

		if !opts.ContinueOutsideOfFunction && inFunc {
			if fn, ok := g.space.FunctionStart(current); !ok || fn != startFunc {
				return nil, ErrLeftFunctionScope
			}
		}
	}
}

// Range transcribes [start, end) into a signature without any uniqueness
// check. A non-code start is copied literally; otherwise instructions are
// accumulated with the usual wildcard policy. The result never exceeds the
// requested range length and carries no trailing wildcards.
func (g *Generator) Range(ctx context.Context, start, end uint64, wildcardOperands bool) (sig.Signature, error) {
	if start == BadAddr || end == BadAddr || end <= start {
		return nil, ErrInvalidAddress
	}

	size := int(end - start)
	if !g.space.IsCode(start) {
		raw, ok := g.space.ReadBytesVA(start, size)
		if !ok {
			return nil, ErrInvalidAddress
		}
		return sig.Signature(nil).AddBytes(raw), nil
	}

	var signature sig.Signature
	current := start
	for {
		if ctx.Err() != nil {
			return nil, ErrAborted
		}

		inst := g.dec.Decode(current)
		if inst.Len <= 0 {
			if len(signature) == 0 {
				return nil, ErrDecodeFailure
			}
			slog.Info("signature reached end of executable code", "addr", hexAddr(current))
			if current < end {
				if raw, ok := g.space.ReadBytesVA(current, int(end-current)); ok {
					signature = signature.AddBytes(raw)
				}
			}
			break
		}

		signature = g.accumulate(signature, current, inst, wildcardOperands)
		current += uint64(inst.Len)
		if current >= end {
			break
		}
	}

	// The final instruction may straddle end; clamp to the request.
	if len(signature) > size {
		signature = signature[:size]
	}
	return signature.TrimTrailingWildcards(), nil
}

// accumulate appends one instruction to the signature: literal bytes up to
// the operand, wildcards across it, and, when the operand occupies the
// leading bytes, the trailing operator bytes literal again.
func (g *Generator) accumulate(s sig.Signature, va uint64, inst disasm.Instruction, wildcardOperands bool) sig.Signature {
	if wildcardOperands {
		if span, ok := resolveOperand(inst, g.dec.Mode()); ok && span.Length > 0 {
			if head, ok := g.space.ReadBytesVA(va, span.Offset); ok {
				s = s.AddBytes(head)
			}
			s = s.AddWildcards(span.Length)
			if span.Offset == 0 {
				if tail, ok := g.space.ReadBytesVA(va+uint64(span.Length), inst.Len-span.Length); ok {
					s = s.AddBytes(tail)
				}
			}
			return s
		}
	}
	if raw, ok := g.space.ReadBytesVA(va, inst.Len); ok {
		s = s.AddBytes(raw)
	}
	return s
}

// Occurrences enumerates every match of the pattern over the full address
// space, scanning forward from the image minimum and resuming one byte past
// each hit.
func (g *Generator) Occurrences(pattern string) []uint64 {
	var results []uint64
	ea := g.space.MinAddr()
	for {
		hit, ok := g.search.FindNext(ea, pattern)
		if !ok {
			return results
		}
		results = append(results, hit)
		ea = hit + 1
	}
}

// isUnique reports whether the pattern matches exactly one location. It
// stops scanning after a second hit.
func (g *Generator) isUnique(pattern string) bool {
	first, ok := g.search.FindNext(g.space.MinAddr(), pattern)
	if !ok {
		return false
	}
	_, again := g.search.FindNext(first+1, pattern)
	return !again
}
