package sigmaker

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"sigmake/internal/sig"
)

// XRefResult pairs a cross-reference origin with the unique signature
// generated for it.
type XRefResult struct {
	Origin    uint64
	Signature sig.Signature
}

// XRefSignatures generates a unique signature per incoming code reference to
// target and returns the successes sorted ascending by signature entry count
// (wildcards count the same as literals). Per-reference failures are
// discarded. Each reference is generated under the hard XRefMaxLength cap
// with no prompting, regardless of opts.
func (g *Generator) XRefSignatures(ctx context.Context, target uint64, opts Options, xrefs XRefProvider, progress ProgressSink) ([]XRefResult, error) {
	origins, err := xrefs.CodeRefsTo(ctx, target)
	if err != nil {
		return nil, ErrAborted
	}

	refOpts := opts
	refOpts.MaxLength = XRefMaxLength
	refOpts.LimitPolicy = nil

	var results []XRefResult
	for i, origin := range origins {
		if ctx.Err() != nil {
			return nil, ErrAborted
		}
		if progress != nil {
			progress(i+1, len(origins))
		}

		s, err := g.Unique(ctx, origin, refOpts)
		if err != nil {
			slog.Debug("no signature for xref", "origin", hexAddr(origin), "err", err)
			continue
		}
		results = append(results, XRefResult{Origin: origin, Signature: s})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return len(results[i].Signature) < len(results[j].Signature)
	})
	return results, nil
}

func hexAddr(va uint64) string {
	return fmt.Sprintf("%x", va)
}
