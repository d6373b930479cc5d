package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/panostitch/internal/config"
	"github.com/spf13/cobra"
)

func (a *app) newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create configuration files",
	}

	showCmd := &cobra.Command{
		Use:          "show",
		Short:        "Print the effective configuration as YAML",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := a.cfg.YAML()
			if err != nil {
				return fmt.Errorf("error encoding config: %w", err)
			}
			if used := a.loader.GetConfigFileUsed(); used != "" {
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "# loaded from %s\n", used); err != nil {
					return err
				}
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a default configuration file",
		Long: `Write the default configuration to path, or to panostitch.yaml in the
working directory when no path is given.`,
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		Annotations:  map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ConfigFileName + ".yaml"
			if len(args) == 1 {
				path = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")

			cfg := config.DefaultConfig()
			if err := cfg.WriteFile(path, force); err != nil {
				return err
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return err
		},
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing file")

	configCmd.AddCommand(showCmd, initCmd)
	return configCmd
}
