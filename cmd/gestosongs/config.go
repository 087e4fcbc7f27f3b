package main

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ayusman/gestosongs/internal/config"
)

func newConfigCmd() *cobra.Command {
	var edit bool
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create the config file and print its path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			created, err := config.EnsureFile(configPath)
			if err != nil {
				return err
			}
			if created {
				logErrf("Wrote default config to %s\n", configPath)
			}
			if !edit {
				fmt.Fprintln(cmd.OutOrStdout(), configPath)
				return nil
			}
			if err := openEditor(configPath); err != nil {
				return err
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				logErrf("The config has problems:\n%v\n", err)
				return err
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&edit, "edit", "e", false, "open the config in $EDITOR")
	return cmd
}

func openEditor(path string) error {
	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}
