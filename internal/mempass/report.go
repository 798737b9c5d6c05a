package mempass

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/robert-at-pretension-io/bram-map/internal/capability"
	"github.com/robert-at-pretension-io/bram-map/internal/facts"
	"github.com/robert-at-pretension-io/bram-map/internal/mapper"
	"github.com/robert-at-pretension-io/bram-map/internal/memcell"
	"github.com/robert-at-pretension-io/bram-map/internal/policy"
	"github.com/robert-at-pretension-io/bram-map/internal/sig"
)

// Failure kinds recorded in reports.
const (
	KindMalformedDescriptor = "malformed_descriptor"
	KindUnmappedPorts       = "unmapped_ports"
	KindUnboundSlots        = "unbound_slots"
	KindWidthOverflow       = "width_overflow"
	KindDivergentAddress    = "divergent_address"
	KindFoldedWrite         = "folded_write"
	KindClockConflict       = "clock_conflict"
	KindNoTemplate          = "no_template"
	KindInternal            = "internal"
)

// Report is the structured result of one pass over a design.
type Report struct {
	RunID         string             `json:"run_id"`
	Module        string             `json:"module"`
	Design        string             `json:"design"`
	Templates     []string           `json:"templates"`
	StrictAddress bool               `json:"strict_address"`
	Cells         []CellReport       `json:"cells"`
	Failures      []Failure          `json:"failures"`
	Violations    []policy.Violation `json:"violations"`
	Summary       Summary            `json:"summary"`
}

// CellReport is one successfully mapped cell.
type CellReport struct {
	Cell     string         `json:"cell"`
	Instance string         `json:"instance"`
	Cached   bool           `json:"cached"`
	Mapping  *mapper.Result `json:"mapping"`
}

// Failure is one cell that could not be mapped.
type Failure struct {
	Cell     string           `json:"cell"`
	Kind     string           `json:"kind"`
	Message  string           `json:"message"`
	Caps     []capability.Set `json:"caps,omitempty"`
	Attempts []AttemptReport  `json:"attempts,omitempty"`
}

// AttemptReport is the failure of one candidate template.
type AttemptReport struct {
	Template string `json:"template"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

// Summary provides aggregate counts
type Summary struct {
	Cells      int            `json:"cells"`
	Mapped     int            `json:"mapped"`
	Failed     int            `json:"failed"`
	Cached     int            `json:"cached"`
	Violations policy.Summary `json:"violations"`
}

// LoadReport reads a JSON report written by a previous run.
func LoadReport(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var r Report
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return &r, nil
}

// Outcomes returns the report's cells and failures as mapping outcomes.
func (r *Report) Outcomes() []facts.Outcome {
	out := make([]facts.Outcome, 0, len(r.Cells)+len(r.Failures))
	for _, c := range r.Cells {
		out = append(out, facts.Outcome{Cell: c.Cell, Instance: c.Instance, Cached: c.Cached, Result: c.Mapping})
	}
	for _, f := range r.Failures {
		out = append(out, facts.Outcome{Cell: f.Cell, FailureKind: f.Kind, FailureMessage: f.Message, FailureCaps: f.Caps})
	}
	return out
}

// Tables rebuilds the fact tables of the report.
func (r *Report) Tables() facts.Tables {
	return facts.BuildTables(r.Outcomes())
}

// HasErrors reports whether any cell failed or any error violation was found.
func (r *Report) HasErrors() bool {
	return r.Summary.Failed > 0 || r.Summary.Violations.Errors > 0
}

// newFailure turns a mapping error into a report entry.
func newFailure(cell string, err error) Failure {
	f := Failure{Cell: cell, Kind: failureKind(err), Message: err.Error(), Caps: unmappedCaps(err)}

	var attempts *mapper.AttemptsError
	if errors.As(err, &attempts) {
		kinds := make(map[string]bool)
		for _, a := range attempts.Attempts {
			k := failureKind(a.Err)
			kinds[k] = true
			f.Attempts = append(f.Attempts, AttemptReport{Template: a.Template, Kind: k, Message: a.Err.Error()})
		}
		f.Kind = KindNoTemplate
		if len(kinds) == 1 {
			f.Kind = f.Attempts[0].Kind
		}
	}
	return f
}

func failureKind(err error) string {
	var malformed *memcell.MalformedDescriptorError
	var divergent *mapper.DivergentAddressError
	var folded *mapper.FoldedWriteError
	var conflict *mapper.ClockConflictError
	var unmapped *mapper.UnmappedPortsError
	var unbound *mapper.UnboundSlotsError
	var overflow *sig.WidthOverflowError
	var attempts *mapper.AttemptsError

	switch {
	case errors.As(err, &attempts):
		return KindNoTemplate
	case errors.As(err, &malformed):
		return KindMalformedDescriptor
	case errors.As(err, &divergent):
		return KindDivergentAddress
	case errors.As(err, &folded):
		return KindFoldedWrite
	case errors.As(err, &conflict):
		return KindClockConflict
	case errors.As(err, &unmapped):
		return KindUnmappedPorts
	case errors.As(err, &unbound):
		return KindUnboundSlots
	case errors.As(err, &overflow):
		return KindWidthOverflow
	}
	return KindInternal
}

// unmappedCaps collects the capabilities of every group left without a slot,
// across all template attempts.
func unmappedCaps(err error) []capability.Set {
	var attempts *mapper.AttemptsError
	if errors.As(err, &attempts) {
		var out []capability.Set
		for _, a := range attempts.Attempts {
			out = append(out, unmappedCaps(a.Err)...)
		}
		return out
	}
	var unmapped *mapper.UnmappedPortsError
	if errors.As(err, &unmapped) {
		return append([]capability.Set(nil), unmapped.Caps...)
	}
	return nil
}

func writeJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return fmt.Errorf("failed to encode JSON output: %w", err)
	}
	return nil
}

func writeText(w io.Writer, r *Report, verbose bool) {
	if len(r.Cells) > 0 {
		fmt.Fprintf(w, "\n=== Mapped Memories ===\n")
		for _, c := range r.Cells {
			cached := ""
			if c.Cached {
				cached = " (cached)"
			}
			fmt.Fprintf(w, "  %s -> %s: %s [%s]%s\n", c.Cell, c.Instance, c.Mapping.Primitive, c.Mapping.Template, cached)
			if !verbose {
				continue
			}
			for _, n := range c.Mapping.Nets {
				switch {
				case !n.Connected():
					fmt.Fprintf(w, "    %s <= (unconnected)\n", n.Pin)
				case n.Dir == mapper.Out:
					fmt.Fprintf(w, "    %s => %s\n", n.Pin, n.Signal)
				default:
					fmt.Fprintf(w, "    %s <= %s\n", n.Pin, n.Signal)
				}
			}
		}
	}

	if len(r.Failures) > 0 {
		fmt.Fprintf(w, "\n=== Mapping Failures ===\n")
		for _, f := range r.Failures {
			fmt.Fprintf(w, "✗ [%s] %s - %s\n", f.Kind, f.Cell, f.Message)
		}
	}

	if len(r.Violations) > 0 {
		fmt.Fprintf(w, "\n=== Policy Violations ===\n")
		for _, v := range r.Violations {
			icon := "ℹ"
			if v.Severity == "error" {
				icon = "✗"
			} else if v.Severity == "warning" {
				icon = "⚠"
			}
			fmt.Fprintf(w, "%s [%s] %s - %s\n", icon, v.Rule, v.Cell, v.Message)
		}
	}

	fmt.Fprintf(w, "\n=== Policy Summary ===\n")
	fmt.Fprintf(w, "  Errors:   %d\n", r.Summary.Violations.Errors)
	fmt.Fprintf(w, "  Warnings: %d\n", r.Summary.Violations.Warnings)
	fmt.Fprintf(w, "  Info:     %d\n", r.Summary.Violations.Info)

	fmt.Fprintf(w, "\n=== Mapping Summary ===\n")
	fmt.Fprintf(w, "  Cells:  %d\n", r.Summary.Cells)
	fmt.Fprintf(w, "  Mapped: %d\n", r.Summary.Mapped)
	fmt.Fprintf(w, "  Failed: %d\n", r.Summary.Failed)
	fmt.Fprintf(w, "  Cached: %d\n", r.Summary.Cached)
}
