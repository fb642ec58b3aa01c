package cli

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/bnema/chartform/internal/config"
)

// NewConfigCmd creates the config command.
func NewConfigCmd(configPath *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage chartform configuration",
		Long:  `Open the configuration file in your editor or print its path.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return openConfig(cmd, *configPath)
		},
	}

	cmd.Flags().Bool("path", false, "Print the full path of the config file")
	return cmd
}

func openConfig(cmd *cobra.Command, explicitPath string) error {
	manager, err := config.NewManager(explicitPath)
	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}
	if err := manager.Load(); err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	path := manager.ConfigFileUsed()
	if path == "" {
		return fmt.Errorf("no config file found: create chartform.yaml or pass --config")
	}

	printPath, _ := cmd.Flags().GetBool("path")
	if printPath {
		fmt.Fprintln(cmd.OutOrStdout(), path)
		return nil
	}

	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		return fmt.Errorf("no editor defined: set $VISUAL or $EDITOR environment variable")
	}

	editorCmd := exec.Command(editor, path)
	editorCmd.Stdin = os.Stdin
	editorCmd.Stdout = os.Stdout
	editorCmd.Stderr = os.Stderr

	if err := editorCmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}
