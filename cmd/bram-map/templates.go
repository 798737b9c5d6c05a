package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/robert-at-pretension-io/bram-map/internal/template"
)

var templatesCmd = &cobra.Command{
	Use:   "templates [design.json]",
	Short: "List the available memory templates",
	Long: `List the built-in templates and those of the configured template ` +
		`library files. Templates named in the configuration are marked with ` +
		`their candidate order.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		designPath := "."
		if len(args) == 1 {
			designPath = args[0]
		}
		cfg, err := loadConfig(cmd, designPath)
		if err != nil {
			return err
		}
		files, err := cfg.ResolveTemplateFiles(designDir(designPath))
		if err != nil {
			return fmt.Errorf("resolve template files: %w", err)
		}
		lib, err := template.LoadFiles(files)
		if err != nil {
			return fmt.Errorf("load templates: %w", err)
		}

		order := make(map[string]int, len(cfg.Templates))
		for i, name := range cfg.Templates {
			order[name] = i + 1
		}

		out := cmd.OutOrStdout()
		var all []*template.Template
		for _, name := range lib.Names() {
			t, _ := lib.Get(name)
			all = append(all, t)
			mark := " "
			if n, ok := order[name]; ok {
				mark = fmt.Sprintf("%d", n)
			}
			fmt.Fprintf(out, "%s %s: %s, %d-bit address, %d-bit data\n", mark, t.Name, t.Primitive, t.AddrWidth, t.DataWidth)
			for _, s := range t.Slots {
				optional := ""
				if s.Optional {
					optional = ", optional"
				}
				fmt.Fprintf(out, "    %s: %s on %s%s\n", s.Name, s.Capability, s.ClockPin(), optional)
			}
		}

		if path, _ := cmd.Flags().GetString("save"); path != "" {
			if err := template.SaveFile(path, all); err != nil {
				return err
			}
			fmt.Fprintf(out, "Saved %d templates to %s\n", len(all), path)
		}
		return nil
	},
}

// designDir is the directory configuration and template files are resolved
// against.
func designDir(path string) string {
	if filepath.Ext(path) == ".json" {
		return filepath.Dir(path)
	}
	return path
}

func init() {
	templatesCmd.Flags().StringP("config", "c", "", "configuration file (default: search bram_map.json)")
	templatesCmd.Flags().String("save", "", "write all templates to a YAML library file")
	rootCmd.AddCommand(templatesCmd)
}
