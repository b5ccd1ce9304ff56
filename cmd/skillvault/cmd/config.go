package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/javi11/skillvault/internal/config"
)

var (
	configOut   string
	configForce bool
)

func init() {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration helpers",
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration as YAML",
		RunE:  runConfigInit,
	}

	initCmd.Flags().StringVar(&configOut, "out", "./config.yaml", "output path")
	initCmd.Flags().BoolVar(&configForce, "force", false, "overwrite an existing file")

	configCmd.AddCommand(initCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	exists, err := afero.Exists(afero.NewOsFs(), configOut)
	if err != nil {
		return err
	}
	if exists && !configForce {
		return fmt.Errorf("%s already exists, use --force to overwrite", configOut)
	}

	if err := config.SaveToFile(config.DefaultConfig(), configOut); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", configOut)
	return nil
}
