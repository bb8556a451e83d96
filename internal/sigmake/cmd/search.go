package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"sigmake/internal/sig"
)

// SearchJSON is the machine-readable search report.
type SearchJSON struct {
	Signature string   `json:"signature"`
	Matches   []string `json:"matches"`
	Functions []string `json:"functions,omitempty"`
}

var searchCmd = &cobra.Command{
	Use:   "search <binary> <signature>...",
	Short: "Find every occurrence of a pasted signature",
	Long: `Search accepts a signature in any of the supported dialects (IDA, x64Dbg,
C byte array with string mask or bitmask), recognizes which one it is, and
lists every matching address in the binary.`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := openTarget(args[0])
		if err != nil {
			return err
		}
		defer t.Close()

		input := strings.Join(args[1:], " ")
		parsed, err := sig.Parse(input)
		if err != nil {
			if errors.Is(err, sig.ErrMaskMismatch) {
				return fmt.Errorf("signature mask does not cover its bytes: %q", input)
			}
			return fmt.Errorf("unrecognized signature %q", input)
		}

		canonical := sig.Format(parsed, sig.IDA)
		matches := t.gen.Occurrences(canonical)

		jsonOut, _ := cmd.Flags().GetBool("json")
		if jsonOut {
			out := SearchJSON{Signature: canonical}
			for _, va := range matches {
				out.Matches = append(out.Matches, fmt.Sprintf("%x", va))
				out.Functions = append(out.Functions, functionLabel(t.im, va))
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		fmt.Printf("Signature: %s\n", sigStyle.Render(canonical))
		if len(matches) == 0 {
			return fmt.Errorf("signature does not match")
		}
		for _, va := range matches {
			label := functionLabel(t.im, va)
			if label != "" {
				label = "  (" + label + ")"
			}
			fmt.Printf("Match @ %s%s\n", addrStyle.Render(fmt.Sprintf("%x", va)), label)
		}
		return nil
	},
}
