package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"
)

// Output bundles every JSON shape the CLI can emit under --json.
type Output struct {
	Signature *SignatureJSON `json:"signature,omitempty" jsonschema:"title=Signature,description=One produced signature"`
	XRef      *XRefJSON      `json:"xref,omitempty" jsonschema:"title=XRef,description=Ranked signatures over a target's callers"`
	Search    *SearchJSON    `json:"search,omitempty" jsonschema:"title=Search,description=Matches of a parsed signature"`
}

var schemaCmd = &cobra.Command{
	Use:    "schema",
	Short:  "Generate JSON schema for the --json output",
	Hidden: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		reflector := new(jsonschema.Reflector)
		bts, err := json.MarshalIndent(reflector.Reflect(&Output{}), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal schema: %w", err)
		}
		fmt.Println(string(bts))
		return nil
	},
}
