package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/bram-map/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a bram_map.json configuration file",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("path")
		force, _ := cmd.Flags().GetBool("force")
		out := cmd.OutOrStdout()

		if _, err := os.Stat(configPath); err == nil && !force {
			fmt.Fprintf(out, "Config file %s already exists. Overwrite? [y/N]: ", configPath)
			var response string
			_, _ = fmt.Fscanln(cmd.InOrStdin(), &response)
			if !strings.EqualFold(response, "y") {
				fmt.Fprintln(out, "Aborted.")
				return nil
			}
		}

		cfg := config.DefaultConfig()
		if err := cfg.Save(configPath); err != nil {
			return fmt.Errorf("creating config: %w", err)
		}

		fmt.Fprintf(out, "Created %s\n", configPath)
		fmt.Fprintln(out, "\nEdit this file to configure:")
		fmt.Fprintln(out, "  - Candidate templates and template library files")
		fmt.Fprintln(out, "  - Strict or tolerant write address folding")
		fmt.Fprintln(out, "  - Lint rule severities")
		return nil
	},
}

func init() {
	initCmd.Flags().String("path", "bram_map.json", "configuration file to create")
	initCmd.Flags().BoolP("force", "f", false, "overwrite an existing file without asking")
	rootCmd.AddCommand(initCmd)
}
