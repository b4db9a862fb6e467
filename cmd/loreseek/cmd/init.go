package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/loreseek/loreseek/configs"
	"github.com/loreseek/loreseek/internal/config"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a .loreseek.yaml in the current directory",
		Long: `Write a commented configuration template to .loreseek.yaml. An
existing file is backed up first unless --force overwrites it in place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite without creating a backup")
	return cmd
}

func runInit(cmd *cobra.Command, force bool) error {
	out := cmd.OutOrStdout()

	if _, err := os.Stat(config.ProjectFileName); err == nil && !force {
		backup, err := config.BackupFile(config.ProjectFileName)
		if err != nil {
			return fmt.Errorf("back up existing config: %w", err)
		}
		fmt.Fprintf(out, "Backed up existing config to %s\n", backup)
	}

	if err := os.WriteFile(config.ProjectFileName, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(out, "Wrote %s. Edit sources.collections and run 'loreseek rebuild'.\n", config.ProjectFileName)
	return nil
}
