// Package sig defines the byte/wildcard signature model shared by the
// generator, the formatter and the parser.
package sig

// Byte is a single signature entry: either a literal byte value or a
// wildcard that matches any value.
type Byte struct {
	Value    byte
	Wildcard bool
}

// Signature is an ordered sequence of signature entries. Entry order maps
// directly to consecutive offsets in the binary image and is never reordered.
type Signature []Byte

// AddBytes appends raw bytes as literal entries.
func (s Signature) AddBytes(data []byte) Signature {
	for _, b := range data {
		s = append(s, Byte{Value: b})
	}
	return s
}

// AddWildcards appends n wildcard entries.
func (s Signature) AddWildcards(n int) Signature {
	for i := 0; i < n; i++ {
		s = append(s, Byte{Wildcard: true})
	}
	return s
}

// TrimTrailingWildcards removes wildcard entries from the tail. Interior and
// leading wildcards are untouched. A signature that is entirely wildcards
// trims down to empty, which callers must guard against emitting.
func (s Signature) TrimTrailingWildcards() Signature {
	for len(s) > 0 && s[len(s)-1].Wildcard {
		s = s[:len(s)-1]
	}
	return s
}

// Equal reports whether two signatures have the same entries. Wildcard
// entries compare equal regardless of their stored value.
func (s Signature) Equal(other Signature) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i].Wildcard != other[i].Wildcard {
			return false
		}
		if !s[i].Wildcard && s[i].Value != other[i].Value {
			return false
		}
	}
	return true
}
