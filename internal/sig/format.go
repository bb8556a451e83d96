package sig

import (
	"fmt"
	"strings"
)

// Type selects one of the supported textual signature encodings.
type Type int

const (
	// IDA renders "DE AD ? BE EF".
	IDA Type = iota
	// X64Dbg renders "DE AD ?? BE EF".
	X64Dbg
	// CArrayStringMask renders "\xDE\xAD\x00\xBE\xEF" plus a parallel
	// "xx?xx" mask string.
	CArrayStringMask
	// CArrayBitmask renders "0xDE, 0xAD, 0x00, 0xBE, 0xEF" plus a
	// "0b11011" bit literal, last entry first.
	CArrayBitmask
)

// String returns the human-readable name used by the CLI's --format flag.
func (t Type) String() string {
	switch t {
	case IDA:
		return "ida"
	case X64Dbg:
		return "x64dbg"
	case CArrayStringMask:
		return "mask"
	case CArrayBitmask:
		return "bitmask"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType maps a --format flag value to a Type.
func ParseType(name string) (Type, error) {
	switch strings.ToLower(name) {
	case "ida":
		return IDA, nil
	case "x64dbg":
		return X64Dbg, nil
	case "mask":
		return CArrayStringMask, nil
	case "bitmask":
		return CArrayBitmask, nil
	}
	return IDA, fmt.Errorf("unknown signature format %q (want ida, x64dbg, mask or bitmask)", name)
}

// Format renders the signature in the requested encoding. It is a pure
// function of its inputs.
func Format(s Signature, t Type) string {
	switch t {
	case X64Dbg:
		return formatTokens(s, "??")
	case CArrayStringMask:
		return formatStringMask(s)
	case CArrayBitmask:
		return formatBitmask(s)
	default:
		return formatTokens(s, "?")
	}
}

// formatTokens renders space-separated 2-digit uppercase hex tokens, with
// wildcard entries rendered as the given token.
func formatTokens(s Signature, wildcard string) string {
	var b strings.Builder
	for i, e := range s {
		if i > 0 {
			b.WriteByte(' ')
		}
		if e.Wildcard {
			b.WriteString(wildcard)
		} else {
			fmt.Fprintf(&b, "%02X", e.Value)
		}
	}
	return b.String()
}

func formatStringMask(s Signature) string {
	var bytesPart, maskPart strings.Builder
	for _, e := range s {
		if e.Wildcard {
			// Placeholder value, the mask marks the position as ignored.
			bytesPart.WriteString(`\x00`)
			maskPart.WriteByte('?')
		} else {
			fmt.Fprintf(&bytesPart, `\x%02X`, e.Value)
			maskPart.WriteByte('x')
		}
	}
	return bytesPart.String() + " " + maskPart.String()
}

func formatBitmask(s Signature) string {
	var b strings.Builder
	for i, e := range s {
		if i > 0 {
			b.WriteString(", ")
		}
		if e.Wildcard {
			b.WriteString("0x00")
		} else {
			fmt.Fprintf(&b, "0x%02X", e.Value)
		}
	}
	// Bit i counted from the least significant marks entry i, so the
	// literal is written back to front.
	b.WriteString(" 0b")
	for i := len(s) - 1; i >= 0; i-- {
		if s[i].Wildcard {
			b.WriteByte('0')
		} else {
			b.WriteByte('1')
		}
	}
	return b.String()
}
