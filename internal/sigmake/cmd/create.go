package cmd

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss/v2"
	"github.com/charmbracelet/x/term"
	"github.com/spf13/cobra"

	"sigmake/internal/sig"
	"sigmake/internal/sigmaker"
	"sigmake/internal/ui/colorize"
)

// SignatureJSON is the machine-readable form of one produced signature.
type SignatureJSON struct {
	Address   string `json:"address"`
	Signature string `json:"signature"`
	Format    string `json:"format"`
	Bytes     int    `json:"bytes"`
}

var (
	addrStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	sigStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("170"))
)

var createCmd = &cobra.Command{
	Use:   "create <binary> <address>",
	Short: "Create a unique signature for a code address",
	Long: `Create grows a signature one instruction at a time, wildcarding operand
bytes, until the pattern matches exactly one location in the binary.`,
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
		maxLength, _ := cmd.Flags().GetInt("max-length")

		opts := sigmaker.Options{
			WildcardOperands:          wildcard,
			ContinueOutsideOfFunction: outside,
			MaxLength:                 maxLength,
		}
		// Only prompt when someone is there to answer.
		if !jsonOut && term.IsTerminal(os.Stdin.Fd()) {
			opts.LimitPolicy = askLongerSignature
		}

		s, err := t.gen.Unique(cmd.Context(), ea, opts)
		if err != nil {
			var notUnique *sigmaker.NotUniqueError
			if errors.As(err, &notUnique) && len(notUnique.Partial) > 0 {
				fmt.Fprintf(os.Stderr, "NOT UNIQUE signature for %x: %s\n",
					ea, sig.Format(notUnique.Partial, sigType))
			}
			return err
		}

		if listing, _ := cmd.Flags().GetBool("listing"); listing && !jsonOut {
			printListing(t, ea, len(s))
		}
		return reportSignature(cmd, t, ea, s, sigType)
	},
}

func init() {
	createCmd.Flags().BoolP("wildcard-operands", "w", true, "Wildcard operand bytes")
	createCmd.Flags().Bool("continue-outside", false, "Continue when leaving function scope")
	createCmd.Flags().Int("max-length", sigmaker.DefaultMaxLength, "Byte budget before asking to continue")
	createCmd.Flags().StringP("format", "f", "ida", "Output format: ida, x64dbg, mask, bitmask")
	createCmd.Flags().BoolP("copy", "c", false, "Copy the signature to the clipboard")
	createCmd.Flags().BoolP("listing", "l", false, "Show the instructions the signature covers")
}

func formatFlag(cmd *cobra.Command) (sig.Type, error) {
	name, _ := cmd.Flags().GetString("format")
	return sig.ParseType(name)
}

// askLongerSignature is the interactive length-limit policy: yes resets the
// budget, no keeps the non-unique signature, cancel discards it.
func askLongerSignature(currentLength int) sigmaker.LimitDecision {
	fmt.Fprintf(os.Stderr, "Signature is already at %d bytes. Continue? [y/N/c] ", currentLength)
	line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return sigmaker.ContinueReset
	case "c", "cancel":
		return sigmaker.AbortWithoutPartial
	default:
		return sigmaker.AbortWithPartial
	}
}

// reportSignature prints one produced signature in text or JSON form and
// handles --copy.
func reportSignature(cmd *cobra.Command, t *target, ea uint64, s sig.Signature, sigType sig.Type) error {
	text := sig.Format(s, sigType)

	if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
		out := SignatureJSON{
			Address:   fmt.Sprintf("%x", ea),
			Signature: text,
			Format:    sigType.String(),
			Bytes:     len(s),
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			return err
		}
	} else {
		fmt.Printf("Signature for %s: %s\n",
			addrStyle.Render(fmt.Sprintf("%x", ea)), sigStyle.Render(text))
	}

	if copyOut, _ := cmd.Flags().GetBool("copy"); copyOut {
		copyToClipboard(text)
	}
	return nil
}

// printListing disassembles from ea until the signature's byte count is
// covered and prints the colorized instructions.
func printListing(t *target, ea uint64, sigBytes int) {
	var b strings.Builder
	covered := 0
	va := ea
	for covered < sigBytes {
		inst := t.dec.Decode(va)
		if inst.Len <= 0 {
			break
		}
		fmt.Fprintf(&b, "%-10x %s\n", va, inst.Text)
		covered += inst.Len
		va += uint64(inst.Len)
	}

	colored, err := colorize.Assembly(b.String())
	if err != nil {
		colored = b.String()
	}
	fmt.Print(colored)
}
