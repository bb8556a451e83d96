// Package elfx provides a read-only, mmap-backed view of an ELF binary:
// section and segment lookup, virtual-address translation, and the code and
// function queries signature generation needs.
package elfx

import (
	"debug/elf"
	"fmt"
	"os"
	"sort"
	"syscall"

	"sigmake/internal/logging"
)

type Image struct {
	Path    string
	File    *elf.File
	All     []byte
	Loads   []Seg
	Text    Section
	Funcs   []FuncSym
	Machine elf.Machine
	f       *os.File
}

type Seg struct {
	Vaddr, Off, Filesz uint64
	Flags              elf.ProgFlag
}

type Section struct {
	Name          string
	VA, Off, Size uint64
}

// FuncSym is a function symbol with its span. Size may be zero for symbols
// the toolchain did not size; FunctionAt treats those as extending to the
// next function start.
type FuncSym struct {
	Name string
	Addr uint64
	Size uint64
}

// Range is a half-open virtual address range.
type Range struct {
	Start, End uint64
}

func Open(path string) (*Image, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open elf: %w", err)
	}

	of, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open file: %w", err)
	}

	fi, err := of.Stat()
	if err != nil {
		of.Close()
		f.Close()
		return nil, fmt.Errorf("stat file: %w", err)
	}

	all, err := syscall.Mmap(int(of.Fd()), 0, int(fi.Size()), syscall.PROT_READ, syscall.MAP_SHARED)
	if err != nil {
		of.Close()
		f.Close()
		return nil, fmt.Errorf("mmap file: %w", err)
	}

	im := &Image{Path: path, File: f, All: all, Machine: f.Machine, f: of}
	for _, p := range f.Progs {
		if p.Type != elf.PT_LOAD {
			continue
		}
		im.Loads = append(im.Loads, Seg{
			Vaddr:  uint64(p.Vaddr),
			Off:    uint64(p.Off),
			Filesz: uint64(p.Filesz),
			Flags:  p.Flags,
		})
	}
	sort.Slice(im.Loads, func(i, j int) bool { return im.Loads[i].Vaddr < im.Loads[j].Vaddr })

	if s := f.Section(".text"); s != nil {
		im.Text = Section{s.Name, s.Addr, s.Offset, s.Size}
	}
	// Fallback if stripped: first executable load segment.
	if im.Text.Size == 0 {
		for _, l := range im.Loads {
			if l.Flags&elf.PF_X != 0 && l.Filesz > 0 {
				im.Text = Section{"LOAD(exec)", l.Vaddr, l.Off, l.Filesz}
				break
			}
		}
	}

	im.loadFunctions()

	if logging.IsDebug() {
		lg := logging.NewLogger()
		lg.Debug("opened image",
			"path", path,
			"machine", f.Machine.String(),
			"segments", len(im.Loads),
			"functions", len(im.Funcs))
	}
	return im, nil
}

// Close unmaps the memory and closes the underlying files.
func (im *Image) Close() error {
	var err1, err2 error
	if im.All != nil {
		err1 = syscall.Munmap(im.All)
		im.All = nil
	}
	if im.f != nil {
		err2 = im.f.Close()
		im.f = nil
	}
	if im.File != nil {
		err3 := im.File.Close()
		if err3 != nil && err2 == nil {
			err2 = err3
		}
		im.File = nil
	}
	if err1 != nil {
		return err1
	}
	return err2
}

// VA2Off translates a virtual address into a file offset
// using PT_LOAD segments. It returns false if VA is unmapped.
func (im *Image) VA2Off(va uint64) (uint64, bool) {
	for _, l := range im.Loads {
		if va >= l.Vaddr && va < l.Vaddr+l.Filesz {
			return l.Off + (va - l.Vaddr), true
		}
	}
	return 0, false
}

// SliceVA returns a subslice of the mapped file corresponding to the virtual
// address range [va, va+size). It returns (nil, false) if the VA is unmapped
// or the range is out of bounds.
func (im *Image) SliceVA(va uint64, size uint64) ([]byte, bool) {
	off, ok := im.VA2Off(va)
	if !ok {
		return nil, false
	}
	if size == 0 {
		return []byte{}, true
	}
	end := off + size
	if end > uint64(len(im.All)) {
		return nil, false
	}
	return im.All[off:end], true
}

// ReadBytesVA reads exactly size bytes from a virtual address.
// Returns false if VA is unmapped or size extends beyond file bounds.
func (im *Image) ReadBytesVA(va uint64, size int) ([]byte, bool) {
	if size <= 0 {
		return []byte{}, true
	}
	return im.SliceVA(va, uint64(size))
}

// MinAddr returns the lowest mapped virtual address.
func (im *Image) MinAddr() uint64 {
	if len(im.Loads) == 0 {
		return 0
	}
	return im.Loads[0].Vaddr
}

// MaxAddr returns one past the highest mapped virtual address.
func (im *Image) MaxAddr() uint64 {
	var max uint64
	for _, l := range im.Loads {
		if end := l.Vaddr + l.Filesz; end > max {
			max = end
		}
	}
	return max
}

// IsCode reports whether the VA lies within an executable region.
func (im *Image) IsCode(va uint64) bool {
	for _, l := range im.Loads {
		if l.Flags&elf.PF_X != 0 && va >= l.Vaddr && va < l.Vaddr+l.Filesz {
			return true
		}
	}
	return false
}

// ExecRanges returns the executable virtual address ranges, ascending.
func (im *Image) ExecRanges() []Range {
	var out []Range
	for _, l := range im.Loads {
		if l.Flags&elf.PF_X != 0 && l.Filesz > 0 {
			out = append(out, Range{Start: l.Vaddr, End: l.Vaddr + l.Filesz})
		}
	}
	return out
}

// FunctionAt returns the function symbol whose span contains va. Unsized
// symbols extend to the next function start.
func (im *Image) FunctionAt(va uint64) (*FuncSym, bool) {
	i := sort.Search(len(im.Funcs), func(i int) bool { return im.Funcs[i].Addr > va })
	if i == 0 {
		return nil, false
	}
	fn := &im.Funcs[i-1]
	end := fn.Addr + fn.Size
	if fn.Size == 0 {
		if i < len(im.Funcs) {
			end = im.Funcs[i].Addr
		} else {
			end = im.MaxAddr()
		}
	}
	if va >= end {
		return nil, false
	}
	return fn, true
}

// FunctionStart returns the entry address of the function containing va.
func (im *Image) FunctionStart(va uint64) (uint64, bool) {
	fn, ok := im.FunctionAt(va)
	if !ok {
		return 0, false
	}
	return fn.Addr, true
}

// loadFunctions collects STT_FUNC symbols from both symbol tables, deduped by
// address and sorted for FunctionAt lookups.
func (im *Image) loadFunctions() {
	seen := make(map[uint64]bool)

	add := func(syms []elf.Symbol) {
		for _, sym := range syms {
			if elf.ST_TYPE(sym.Info) != elf.STT_FUNC || sym.Value == 0 {
				continue
			}
			if seen[sym.Value] {
				continue
			}
			seen[sym.Value] = true
			im.Funcs = append(im.Funcs, FuncSym{
				Name: sym.Name,
				Addr: sym.Value,
				Size: sym.Size,
			})
		}
	}

	if syms, err := im.File.Symbols(); err == nil {
		add(syms)
	}
	if dynsyms, err := im.File.DynamicSymbols(); err == nil {
		add(dynsyms)
	}

	sort.Slice(im.Funcs, func(i, j int) bool { return im.Funcs[i].Addr < im.Funcs[j].Addr })
}
