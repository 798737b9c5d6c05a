// bram-map maps the abstract memory cells of an elaborated design onto the
// fixed port templates of block RAM primitives.
//
// The pass:
//  1. loads the design JSON and checks it against the design schema
//  2. builds a descriptor for every memory cell
//  3. maps each cell onto the first configured template that fits
//  4. replaces the cell by the primitive instance in the design
//  5. evaluates the mapping policy over the resulting fact tables
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "bram-map",
	Short: "Map inferred memories onto block RAM primitives",
	Long: `bram-map maps the abstract multi-port memory cells of a design onto ` +
		`the port templates of physical memory primitives and reports what ` +
		`could not be mapped.`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
