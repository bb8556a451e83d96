package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rangeCmd = &cobra.Command{
	Use:   "range <binary> <start> <end>",
	Short: "Transcribe an address range into a signature",
	Long: `Range copies [start, end) into a signature without any uniqueness search.
Code is accumulated instruction-aware with operand wildcards; a range starting
in data is copied byte for byte.`,
	Args: cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		sigType, err := formatFlag(cmd)
		if err != nil {
			return err
		}
		start, err := parseAddr(args[1])
		if err != nil {
			return err
		}
		end, err := parseAddr(args[2])
		if err != nil {
			return err
		}
		if end <= start {
			return fmt.Errorf("empty range: end %x is not past start %x", end, start)
		}

		t, err := openTarget(args[0])
		if err != nil {
			return err
		}
		defer t.Close()

		wildcard, _ := cmd.Flags().GetBool("wildcard-operands")
		s, err := t.gen.Range(cmd.Context(), start, end, wildcard)
		if err != nil {
			return err
		}
		if len(s) == 0 {
			return fmt.Errorf("range %x-%x produced an empty signature", start, end)
		}
		return reportSignature(cmd, t, start, s, sigType)
	},
}

func init() {
	rangeCmd.Flags().BoolP("wildcard-operands", "w", true, "Wildcard operand bytes")
	rangeCmd.Flags().StringP("format", "f", "ida", "Output format: ida, x64dbg, mask, bitmask")
	rangeCmd.Flags().BoolP("copy", "c", false, "Copy the signature to the clipboard")
}
