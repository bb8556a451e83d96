// Package sigmaker derives unique byte/wildcard signatures for code
// locations and ranks signatures for incoming cross-references. It consumes
// the binary through narrow ports so package tests run against synthetic
// images.
package sigmaker

import (
	"context"
	"errors"

	"sigmake/internal/sig"
)

// BadAddr is the reserved sentinel for an invalid or absent address.
const BadAddr = ^uint64(0)

// AddressSpace answers location queries about the binary image.
// *elfx.Image satisfies it.
type AddressSpace interface {
	MinAddr() uint64
	MaxAddr() uint64
	IsCode(va uint64) bool
	ReadBytesVA(va uint64, size int) ([]byte, bool)
	// FunctionStart returns the start address of the function containing
	// va, or false when va is outside any known function.
	FunctionStart(va uint64) (uint64, bool)
}

// PatternSearch finds pattern occurrences, forward only. Pattern text is the
// canonical token form with case-insensitive hex and "?" wildcards.
type PatternSearch interface {
	FindNext(from uint64, pattern string) (uint64, bool)
}

// XRefProvider enumerates incoming code references to an address,
// pre-filtered to code origins.
type XRefProvider interface {
	CodeRefsTo(ctx context.Context, target uint64) ([]uint64, error)
}

// LimitDecision is a length-limit policy's answer once a growing signature
// passes the configured maximum.
type LimitDecision int

const (
	// ContinueReset resets the length counter and keeps growing.
	ContinueReset LimitDecision = iota
	// AbortWithPartial stops and surfaces the current signature as not
	// unique.
	AbortWithPartial
	// AbortWithoutPartial stops and discards the signature.
	AbortWithoutPartial
)

// LimitPolicy decides how to proceed when the signature reaches
// currentLength accumulated bytes. A nil policy fails generation with
// ErrLengthExceeded instead.
type LimitPolicy func(currentLength int) LimitDecision

// ProgressSink observes per-reference progress during xref scans. It has no
// effect on control flow.
type ProgressSink func(index, total int)

// Options configure signature generation.
type Options struct {
	// WildcardOperands wildcards operand encodings instead of taking
	// instructions fully literal.
	WildcardOperands bool
	// ContinueOutsideOfFunction lets the signature grow past the end of
	// the starting function.
	ContinueOutsideOfFunction bool
	// MaxLength is the accumulated byte budget before the limit policy
	// runs; 0 means DefaultMaxLength.
	MaxLength int
	// LimitPolicy is consulted when MaxLength is exceeded.
	LimitPolicy LimitPolicy
}

// DefaultMaxLength is the growth budget for interactively created
// signatures.
const DefaultMaxLength = 1000

// XRefMaxLength is the hard growth cap applied per reference during xref
// scans, which never prompt.
const XRefMaxLength = 250

// Failure kinds. All failures are explicit result values; NotUniqueError
// carries the best-effort signature for diagnostic display.
var (
	ErrInvalidAddress    = errors.New("invalid address")
	ErrNotCode           = errors.New("can not create code signature for data")
	ErrDecodeFailure     = errors.New("failed to decode first instruction")
	ErrLengthExceeded    = errors.New("signature exceeded maximum length")
	ErrLeftFunctionScope = errors.New("signature left function scope")
	ErrAborted           = errors.New("aborted")
)

// NotUniqueError reports that the uniqueness search exhausted its options. A
// non-unique result is always a failure, even though a partial signature
// exists.
type NotUniqueError struct {
	Partial sig.Signature
}

func (e *NotUniqueError) Error() string { return "signature not unique" }
