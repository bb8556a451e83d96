package sig

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
)

// Parse errors. ErrMaskMismatch is terminal: once a mask has been detected
// the byte tokens must line up with it, no later rule is tried.
var (
	ErrUnrecognized = errors.New("unrecognized signature format")
	ErrMaskMismatch = errors.New("mask/byte count mismatch")
)

var (
	stringMaskRe = regexp.MustCompile(`x[x?]+`)
	bitmaskRe    = regexp.MustCompile(`0b[01]+`)
	escByteRe    = regexp.MustCompile(`\\x([0-9A-Fa-f]{2})`)
	hexByteRe    = regexp.MustCompile(`0x([0-9A-Fa-f]{2})`)
	bracketRe    = regexp.MustCompile(`[\)\(\[\]]+`)
	leadSpaceRe  = regexp.MustCompile(`^\s+`)
	tailJunkRe   = regexp.MustCompile(`[? ]+$`)
	idaStyleRe   = regexp.MustCompile(`^(?:(?:[0-9A-Fa-f]{2}\s+)|(?:\?\s+))+$`)
)

// Parse detects the encoding of a human-entered signature string and returns
// the canonical Signature. Detection is an ordered list of matcher rules with
// fixed priority; the first rule that applies wins:
//
//  1. a string mask run ("xx????xx") paired with \xHH or 0xHH byte tokens
//  2. a bit literal ("0b110100") paired the same way
//  3. text already in reference style ("DE AD ? BE EF", x64Dbg "??" accepted)
//  4. a bare \xHH or 0xHH byte array (all literal, at least two tokens)
func Parse(input string) (Signature, error) {
	if mask := detectMask(input); mask != "" {
		return parseMasked(input, mask)
	}

	if s, ok := parseReferenceStyle(input); ok {
		return s, nil
	}

	if s, ok := parseByteArray(input); ok {
		return s, nil
	}

	return nil, ErrUnrecognized
}

// detectMask looks for a string mask first, then for a bit literal converted
// to one. An empty result means no mask is present.
func detectMask(input string) string {
	if m := stringMaskRe.FindString(input); m != "" {
		return m
	}
	if m := bitmaskRe.FindString(input); m != "" {
		bits := m[2:]
		var mask strings.Builder
		// Bit i from the least significant marks entry i.
		for i := len(bits) - 1; i >= 0; i-- {
			if bits[i] == '1' {
				mask.WriteByte('x')
			} else {
				mask.WriteByte('?')
			}
		}
		return mask.String()
	}
	return ""
}

// parseMasked pairs the detected mask with the byte-value tokens found in the
// remaining text. The token count must equal the mask length exactly.
func parseMasked(input, mask string) (Signature, error) {
	values := extractByteValues(input)
	if len(values) != len(mask) {
		return nil, ErrMaskMismatch
	}
	s := make(Signature, 0, len(mask))
	for i, v := range values {
		s = append(s, Byte{Value: v, Wildcard: mask[i] == '?'})
	}
	return s, nil
}

// parseReferenceStyle normalizes the text and accepts it when it already is a
// whitespace-separated sequence of 2-hex-digit and "?" tokens. x64Dbg "??"
// wildcards are collapsed to "?" first.
func parseReferenceStyle(input string) (Signature, bool) {
	input = bracketRe.ReplaceAllString(input, "")
	input = leadSpaceRe.ReplaceAllString(input, "")
	// Trailing wildcards carry no information, drop them along with spaces.
	input = tailJunkRe.ReplaceAllString(input, "") + " "
	input = strings.ReplaceAll(input, "?? ", "? ")

	if !idaStyleRe.MatchString(input) {
		return nil, false
	}

	var s Signature
	for _, tok := range strings.Fields(input) {
		if tok == "?" {
			s = append(s, Byte{Wildcard: true})
			continue
		}
		v, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return nil, false
		}
		s = append(s, Byte{Value: byte(v)})
	}
	if len(s) == 0 {
		return nil, false
	}
	return s, true
}

// parseByteArray accepts a bare \xHH or 0xHH array with no mask, requiring at
// least two tokens so a stray hex number is not mistaken for a signature.
func parseByteArray(input string) (Signature, bool) {
	values := extractByteValues(input)
	if len(values) < 2 {
		return nil, false
	}
	s := make(Signature, 0, len(values))
	for _, v := range values {
		s = append(s, Byte{Value: v})
	}
	return s, true
}

// extractByteValues pulls \xHH tokens from the text, falling back to 0xHH
// tokens when none are present.
func extractByteValues(input string) []byte {
	matches := escByteRe.FindAllStringSubmatch(input, -1)
	if len(matches) == 0 {
		matches = hexByteRe.FindAllStringSubmatch(input, -1)
	}
	values := make([]byte, 0, len(matches))
	for _, m := range matches {
		v, err := strconv.ParseUint(m[1], 16, 8)
		if err != nil {
			continue
		}
		values = append(values, byte(v))
	}
	return values
}
