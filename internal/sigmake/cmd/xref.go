package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"sigmake/internal/scan"
	"sigmake/internal/sig"
	"sigmake/internal/sigmaker"
)

// XRefJSON is the machine-readable xref scan report.
type XRefJSON struct {
	Target  string          `json:"target"`
	Total   int             `json:"total_xrefs"`
	Results []SignatureJSON `json:"results"`
}

var xrefCmd = &cobra.Command{
	Use:   "xref <binary> <address>",
	Short: "Find the shortest signatures among a target's callers",
	Long: `Xref enumerates incoming code references to the address, generates a unique
signature for each origin (capped at 250 bytes, failures skipped) and reports
the shortest ones first. Works for data addresses too, since the signatures
are taken from the referencing code.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		sigType, err := formatFlag(cmd)
		if err != nil {
			return err
		}
		ea, err := parseAddr(args[1])
		if err != nil {
			return err
		}

		t, err := openTarget(args[0])
		if err != nil {
			return err
		}
		defer t.Close()

		jsonOut, _ := cmd.Flags().GetBool("json")
		wildcard, _ := cmd.Flags().GetBool("wildcard-operands")
		outside, _ := cmd.Flags().GetBool("continue-outside")
		top, _ := cmd.Flags().GetInt("top")
		noTUI, _ := cmd.Flags().GetBool("no-tui")

		opts := sigmaker.Options{
			WildcardOperands:          wildcard,
			ContinueOutsideOfFunction: outside,
		}

		isTTY := term.IsTerminal(os.Stdout.Fd())
		var progress sigmaker.ProgressSink
		if isTTY && !jsonOut {
			progress = func(index, total int) {
				fmt.Fprintf(os.Stderr, "Processing xref %d of %d (%.1f%%)...\r",
					index, total, float64(index-1)/float64(total)*100)
			}
		}

		xrefs := scan.NewXRefIndex(t.im, t.dec)
		results, err := t.gen.XRefSignatures(cmd.Context(), ea, opts, xrefs, progress)
		if progress != nil {
			fmt.Fprint(os.Stderr, "\n")
		}
		if err != nil {
			return err
		}
		if len(results) == 0 {
			return fmt.Errorf("no xrefs have been found for %x", ea)
		}

		shown := min(top, len(results))
		if jsonOut {
			out := XRefJSON{Target: fmt.Sprintf("%x", ea), Total: len(results)}
			for _, r := range results[:shown] {
				out.Results = append(out.Results, SignatureJSON{
					Address:   fmt.Sprintf("%x", r.Origin),
					Signature: sig.Format(r.Signature, sigType),
					Format:    sigType.String(),
					Bytes:     len(r.Signature),
				})
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		}

		if isTTY && !noTUI {
			return runXRefTUI(t, ea, results[:shown], sigType)
		}

		fmt.Printf("Top %d signatures out of %d xrefs for %x:\n", shown, len(results), ea)
		copyOut, _ := cmd.Flags().GetBool("copy")
		for i, r := range results[:shown] {
			text := sig.Format(r.Signature, sigType)
			label := functionLabel(t.im, r.Origin)
			if label != "" {
				label = "  (" + label + ")"
			}
			fmt.Printf("XREF signature #%d @ %s: %s%s\n",
				i+1, addrStyle.Render(fmt.Sprintf("%x", r.Origin)), sigStyle.Render(text), label)
			// Copy the shortest one only.
			if i == 0 && copyOut {
				copyToClipboard(text)
			}
		}
		return nil
	},
}

func init() {
	xrefCmd.Flags().BoolP("wildcard-operands", "w", true, "Wildcard operand bytes")
	xrefCmd.Flags().Bool("continue-outside", false, "Continue when leaving function scope")
	xrefCmd.Flags().IntP("top", "t", 5, "Number of signatures to report")
	xrefCmd.Flags().StringP("format", "f", "ida", "Output format: ida, x64dbg, mask, bitmask")
	xrefCmd.Flags().BoolP("copy", "c", false, "Copy the shortest signature to the clipboard")
	xrefCmd.Flags().BoolP("no-tui", "n", false, "Plain output even on a terminal")
}
