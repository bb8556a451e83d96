// Package scan implements forward pattern search and cross-reference
// enumeration over a mapped binary image. It plays the role a host
// disassembler's search engine and xref database would in a plugin setting.
package scan

import (
	"fmt"
	"strconv"
	"strings"

	"sigmake/internal/elfx"
	"sigmake/internal/sig"
)

// Searcher finds occurrences of byte patterns in the image's loaded
// segments.
type Searcher struct {
	im *elfx.Image
}

func New(im *elfx.Image) *Searcher {
	return &Searcher{im: im}
}

// FindNext returns the first occurrence of the pattern at or after from,
// scanning forward only. Pattern text is the canonical token form: 2-digit
// hex (case-insensitive) or "?"/"??" wildcards, whitespace-separated.
func (s *Searcher) FindNext(from uint64, pattern string) (uint64, bool) {
	pat, err := compile(pattern)
	if err != nil || len(pat) == 0 {
		return 0, false
	}
	n := uint64(len(pat))
	for _, l := range s.im.Loads {
		if l.Filesz < n {
			continue
		}
		data, ok := s.im.SliceVA(l.Vaddr, l.Filesz)
		if !ok {
			continue
		}
		start := l.Vaddr
		if from > start {
			start = from
		}
		for va := start; va+n <= l.Vaddr+l.Filesz; va++ {
			if matchAt(data[va-l.Vaddr:], pat) {
				return va, true
			}
		}
	}
	return 0, false
}

func matchAt(data []byte, pat []sig.Byte) bool {
	for i, p := range pat {
		if !p.Wildcard && data[i] != p.Value {
			return false
		}
	}
	return true
}

// compile tokenizes the canonical pattern text. Unlike the signature parser
// it keeps trailing wildcards, so a growing signature matches exactly as
// written.
func compile(pattern string) ([]sig.Byte, error) {
	var pat []sig.Byte
	for _, tok := range strings.Fields(pattern) {
		if tok == "?" || tok == "??" {
			pat = append(pat, sig.Byte{Wildcard: true})
			continue
		}
		if len(tok) != 2 {
			return nil, fmt.Errorf("bad pattern token %q", tok)
		}
		v, err := strconv.ParseUint(tok, 16, 8)
		if err != nil {
			return nil, fmt.Errorf("bad pattern token %q", tok)
		}
		pat = append(pat, sig.Byte{Value: byte(v)})
	}
	return pat, nil
}
