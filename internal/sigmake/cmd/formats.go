package cmd

import (
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"sigmake/internal/sigmake/styles"
)

const formatsCheatSheet = `# Signature formats

The same pattern, one literal run with a wildcard in the middle, in every
dialect sigmake reads and writes:

## ida

` + "```" + `
E8 ? ? ? ? 45 33 F6 66 44 89 34 33
` + "```" + `

One token per byte. ` + "`?`" + ` is a wildcard.

## x64dbg

` + "```" + `
E8 ?? ?? ?? ?? 45 33 F6 66 44 89 34 33
` + "```" + `

Same layout, double ` + "`??`" + ` wildcards.

## mask (C byte array + string mask)

` + "```" + `
\xE8\x00\x00\x00\x00\x45\x33\xF6\x66\x44\x89\x34\x33 x????xxxxxxxx
` + "```" + `

Escaped bytes plus a parallel mask, ` + "`x`" + ` keeps the byte and ` + "`?`" + `
ignores it. Wildcarded positions are written as ` + "`\\x00`" + `.

## bitmask (C byte array + bitmask)

` + "```" + `
0xE8, 0x00, 0x00, 0x00, 0x00, 0x45, 0x33, 0xF6, 0x66, 0x44, 0x89, 0x34, 0x33 0b1111111100001
` + "```" + `

The bitmask is written back to front: its last digit masks the first byte.

Search accepts any of the four and tells them apart on its own.
`

var formatsCmd = &cobra.Command{
	Use:   "formats",
	Short: "Cheat sheet for the supported signature dialects",
	RunE: func(cmd *cobra.Command, args []string) error {
		width := 80
		if w, _, err := term.GetSize(os.Stdout.Fd()); err == nil && w > 0 {
			width = w
		}
		renderer := styles.GetMarkdownRenderer(width - 2)
		rendered, err := renderer.Render(formatsCheatSheet)
		if err != nil {
			fmt.Print(formatsCheatSheet)
			return nil
		}
		fmt.Print(rendered)
		return nil
	},
}
