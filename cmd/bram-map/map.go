package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/bram-map/internal/config"
	"github.com/robert-at-pretension-io/bram-map/internal/mempass"
)

var errMappingFailed = errors.New("mapping finished with errors")

var mapCmd = &cobra.Command{
	Use:   "map <design.json>",
	Short: "Map the memory cells of a design",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, args[0])
		if err != nil {
			return err
		}
		if strict, _ := cmd.Flags().GetBool("strict"); strict {
			cfg.Mapping.StrictAddress = true
		}
		if failFast, _ := cmd.Flags().GetBool("fail-fast"); failFast {
			cfg.Mapping.FailFast = true
		}
		if names, _ := cmd.Flags().GetStringSlice("template"); len(names) > 0 {
			cfg.Templates = names
		}

		pass := mempass.New(cfg)
		pass.Verbose, _ = cmd.Flags().GetBool("verbose")
		pass.JSONOutput, _ = cmd.Flags().GetBool("json")
		pass.Timing, _ = cmd.Flags().GetBool("timing")
		pass.TimingPath, _ = cmd.Flags().GetString("timing-path")
		pass.OutputPath, _ = cmd.Flags().GetString("output")
		pass.Out = cmd.OutOrStdout()

		report, err := pass.Run(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if report.HasErrors() {
			return errMappingFailed
		}
		return nil
	},
}

// loadConfig honors --config and otherwise searches the default locations.
func loadConfig(cmd *cobra.Command, designPath string) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("loading config %s: %w", path, err)
		}
		return cfg, nil
	}
	cfg, err := config.Load(designDir(designPath))
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Warning: Could not load config: %v (using defaults)\n", err)
		cfg = config.DefaultConfig()
	}
	return cfg, nil
}

func init() {
	mapCmd.Flags().StringP("config", "c", "", "configuration file (default: search bram_map.json)")
	mapCmd.Flags().BoolP("verbose", "v", false, "print the pin map of every cell and a timing summary")
	mapCmd.Flags().Bool("json", false, "write the report as JSON")
	mapCmd.Flags().StringP("output", "o", "", "write the mapped design to this file")
	mapCmd.Flags().Bool("strict", false, "reject divergent write addresses instead of folding them")
	mapCmd.Flags().Bool("fail-fast", false, "stop at the first cell that cannot be mapped")
	mapCmd.Flags().StringSliceP("template", "t", nil, "candidate template, in order (repeatable)")
	mapCmd.Flags().Bool("timing", false, "write JSONL timing events")
	mapCmd.Flags().String("timing-path", "", "timing output file (default: <design dir>/timing.jsonl)")
	rootCmd.AddCommand(mapCmd)
}
