package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/bram-map/internal/facts"
	"github.com/robert-at-pretension-io/bram-map/internal/mempass"
)

var diffCmd = &cobra.Command{
	Use:   "diff <old-report.json> <new-report.json>",
	Short: "Show fact rows added and removed between two mapping reports",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		prev, err := mempass.LoadReport(args[0])
		if err != nil {
			return err
		}
		next, err := mempass.LoadReport(args[1])
		if err != nil {
			return err
		}

		delta := facts.ComputeDelta(prev.Tables(), next.Tables())
		if cells, _ := cmd.Flags().GetStringSlice("cell"); len(cells) > 0 {
			set := make(map[string]bool, len(cells))
			for _, c := range cells {
				set[c] = true
			}
			delta = facts.FilterDeltaByCells(delta, set)
		}

		if output, _ := cmd.Flags().GetString("output"); output != "" {
			return writeJSONFile(output, delta)
		}
		if delta.Empty() {
			fmt.Fprintln(cmd.OutOrStdout(), "No differences.")
			return nil
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(delta)
	},
}

func writeJSONFile(path string, data interface{}) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

func init() {
	diffCmd.Flags().StringSlice("cell", nil, "restrict the delta to these cells (repeatable)")
	diffCmd.Flags().StringP("output", "o", "", "write the delta JSON to file (default: stdout)")
	rootCmd.AddCommand(diffCmd)
}
