package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/bnema/chartform/internal/descriptor"
	"github.com/bnema/chartform/internal/schema"
	"github.com/bnema/chartform/internal/store"
)

// NewSchemaCmd creates the schema command: synthesize once and print, for
// inspecting what the UI will see without running the server.
func NewSchemaCmd() *cobra.Command {
	var valuesPath, descriptorPath string

	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print the synthesized schema for a values file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			tree, err := store.New(valuesPath).Load()
			if err != nil {
				return err
			}

			d := descriptor.Empty()
			if descriptorPath != "" {
				if d, err = descriptor.Load(descriptorPath); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v (continuing without rules)\n", err)
				}
			}

			out, err := json.MarshalIndent(schema.Synthesize(tree, d), "", "  ")
			if err != nil {
				return fmt.Errorf("failed to marshal schema: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	cmd.Flags().StringVar(&valuesPath, "values", "values.yaml", "values file to synthesize from")
	cmd.Flags().StringVar(&descriptorPath, "descriptor", "", "descriptor file with field rules")
	return cmd
}

// NewValidateCmd creates the validate command: parse the descriptor and
// report its rule counts, catching YAML mistakes before deployment.
func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <descriptor.yaml>",
		Short: "Validate a descriptor file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := descriptor.Load(args[0])
			if err != nil {
				return err
			}

			out, err := yaml.Marshal(d.Counts())
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), string(out))
			return nil
		},
	}
	return cmd
}
