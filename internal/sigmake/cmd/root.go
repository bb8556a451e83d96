package cmd

import (
	"context"
	"debug/elf"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/x/term"
	"github.com/ianlancetaylor/demangle"
	"github.com/spf13/cobra"

	"sigmake/internal/disasm"
	"sigmake/internal/elfx"
	"sigmake/internal/logging"
	"sigmake/internal/scan"
	"sigmake/internal/sigmake/log"
	"sigmake/internal/sigmaker"
)

var rootCmd = &cobra.Command{
	Use:   "sigmake",
	Short: "Byte signature maker for ELF binaries",
	Long: `Sigmake derives compact byte signatures (patterns of literal and wildcard
bytes) that uniquely identify code locations in a binary, and locates
occurrences of user-supplied patterns. Signatures survive recompilation and
patching far better than raw addresses do.`,
	Example: `
# Unique signature for the instruction at 0x401040
sigmake create ./libgame.so 0x401040

# Shortest signatures reaching a target through its callers
sigmake xref ./libgame.so 0x4d21f0

# Identify whatever signature dialect you pasted and list its matches
sigmake search ./libgame.so 'E8 ? ? ? ? 45 33 F6'
  `,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		debugFlag, _ := cmd.Flags().GetBool("debug")
		log.Setup(debugFlag || logging.IsDebug())
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "Debug logging")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output results as JSON")

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(rangeCmd)
	rootCmd.AddCommand(xrefCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(formatsCmd)
	rootCmd.AddCommand(schemaCmd)
}

func Execute() {
	// Bypass fang's markdown rendering when output is piped; colors stay
	// user-controlled through SIGMAKE_NO_COLOR.
	if !term.IsTerminal(os.Stdout.Fd()) {
		os.Setenv("SIGMAKE_NO_COLOR", "1")
		if err := rootCmd.Execute(); err != nil {
			os.Exit(1)
		}
		return
	}

	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

// target bundles an opened image with the collaborators built on top of it.
type target struct {
	im       *elfx.Image
	dec      disasm.Decoder
	searcher *scan.Searcher
	gen      *sigmaker.Generator
}

func (t *target) Close() error { return t.im.Close() }

func openTarget(path string) (*target, error) {
	im, err := elfx.Open(path)
	if err != nil {
		return nil, err
	}

	var dec disasm.Decoder
	switch im.Machine {
	case elf.EM_X86_64:
		dec = disasm.NewX86(im)
	case elf.EM_AARCH64:
		dec = disasm.NewARM64(im)
	default:
		im.Close()
		return nil, fmt.Errorf("unsupported machine type %v (x86-64 and ARM64 only)", im.Machine)
	}

	searcher := scan.New(im)
	return &target{
		im:       im,
		dec:      dec,
		searcher: searcher,
		gen:      sigmaker.New(im, dec, searcher),
	}, nil
}

func parseAddr(s string) (uint64, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q: expected hex", s)
	}
	return v, nil
}

// functionLabel names the function containing va, demangled, or "" when the
// address lies outside any known function.
func functionLabel(im *elfx.Image, va uint64) string {
	fn, ok := im.FunctionAt(va)
	if !ok {
		return ""
	}
	label := demangle.Filter(fn.Name)
	if off := va - fn.Addr; off != 0 {
		label = fmt.Sprintf("%s+0x%x", label, off)
	}
	return label
}

func copyToClipboard(text string) {
	if err := clipboard.WriteAll(text); err != nil {
		fmt.Fprintln(os.Stderr, "Failed to copy to clipboard!")
	}
}
