package scan

import (
	"context"
	"fmt"

	"sigmake/internal/disasm"
	"sigmake/internal/elfx"
	"sigmake/internal/logging"
)

// XRefIndex enumerates incoming code references by linear disassembly of the
// executable ranges, the standalone substitute for a host's cross-reference
// database. Origins are inherently code addresses.
type XRefIndex struct {
	im  *elfx.Image
	dec disasm.Decoder
}

func NewXRefIndex(im *elfx.Image, dec disasm.Decoder) *XRefIndex {
	return &XRefIndex{im: im, dec: dec}
}

// CodeRefsTo returns every instruction address whose PC-relative references
// resolve to target, ascending. Cancellation is polled periodically.
func (x *XRefIndex) CodeRefsTo(ctx context.Context, target uint64) ([]uint64, error) {
	// On failed decodes resume at the next plausible boundary.
	step := uint64(1)
	if x.dec.Mode() == disasm.ModeARM {
		step = 4
	}

	var origins []uint64
	polled := 0
	for _, r := range x.im.ExecRanges() {
		for va := r.Start; va < r.End; {
			if polled++; polled&0x3ff == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			inst := x.dec.Decode(va)
			if inst.Len <= 0 {
				va += step
				continue
			}
			for _, t := range inst.Refs {
				if t == target {
					origins = append(origins, va)
					break
				}
			}
			va += uint64(inst.Len)
		}
	}

	if logging.IsDebug() {
		lg := logging.NewLogger()
		lg.Debug("xref enumeration done",
			"target", fmt.Sprintf("%x", target),
			"origins", len(origins))
	}
	return origins, nil
}
