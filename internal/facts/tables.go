package facts

import (
	"sort"
	"strings"

	"github.com/robert-at-pretension-io/bram-map/internal/capability"
	"github.com/robert-at-pretension-io/bram-map/internal/mapper"
	"github.com/robert-at-pretension-io/bram-map/internal/sig"
)

// Tables is the relational fact model of one mapping pass.
// Each slice is a relation (table) with flat rows.
type Tables struct {
	Cells       []CellRow       `json:"cells"`
	Groups      []GroupRow      `json:"groups"`
	Bindings    []BindingRow    `json:"bindings"`
	Nets        []NetRow        `json:"nets"`
	Diagnostics []DiagnosticRow `json:"diagnostics"`
	Failures    []FailureRow    `json:"failures"`
}

type CellRow struct {
	Cell      string `json:"cell"`
	Instance  string `json:"instance"`
	Template  string `json:"template"`
	Primitive string `json:"primitive"`
	Status    string `json:"status"`
	Cached    bool   `json:"cached"`
}

type GroupRow struct {
	Cell        string `json:"cell"`
	Key         string `json:"key"`
	Capability  string `json:"capability"`
	Slot        int    `json:"slot"`
	ReadPorts   int    `json:"read_ports"`
	WritePorts  int    `json:"write_ports"`
	ReadAddrs   int    `json:"read_addrs"`
	Transparent bool   `json:"transparent"`
}

type BindingRow struct {
	Cell        string `json:"cell"`
	Slot        string `json:"slot"`
	SlotIndex   int    `json:"slot_index"`
	Capability  string `json:"capability"`
	Bound       bool   `json:"bound"`
	Group       string `json:"group"`
	Transparent bool   `json:"transparent"`
}

type NetRow struct {
	Cell      string `json:"cell"`
	Pin       string `json:"pin"`
	Signal    string `json:"signal"`
	Dir       string `json:"dir"`
	Connected bool   `json:"connected"`
	Width     int    `json:"width"`
	// PaddedBits counts zero bits added above a bus signal
	PaddedBits int `json:"padded_bits"`
}

type DiagnosticRow struct {
	Cell     string `json:"cell"`
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Key      string `json:"key"`
	Message  string `json:"message"`
}

type FailureRow struct {
	Cell      string `json:"cell"`
	Kind      string `json:"kind"`
	Message   string `json:"message"`
	AsyncRead bool   `json:"async_read"`
}

// Status values of CellRow.
const (
	StatusMapped = "mapped"
	StatusFailed = "failed"
)

// Outcome is the result of mapping one design cell, successful or not.
type Outcome struct {
	Cell     string
	Instance string
	Cached   bool
	Result   *mapper.Result

	// set when Result is nil
	FailureKind    string
	FailureMessage string
	FailureCaps    []capability.Set
}

// BuildTables converts mapping outcomes into the relational model.
func BuildTables(outcomes []Outcome) Tables {
	tables := emptyTables()

	for _, o := range outcomes {
		if o.Result == nil {
			tables.Cells = append(tables.Cells, CellRow{Cell: o.Cell, Status: StatusFailed})
			async := false
			for _, c := range o.FailureCaps {
				async = async || c.Has(capability.AsyncRead)
			}
			tables.Failures = append(tables.Failures, FailureRow{
				Cell:      o.Cell,
				Kind:      o.FailureKind,
				Message:   o.FailureMessage,
				AsyncRead: async,
			})
			continue
		}

		r := o.Result
		tables.Cells = append(tables.Cells, CellRow{
			Cell:      o.Cell,
			Instance:  o.Instance,
			Template:  r.Template,
			Primitive: r.Primitive,
			Status:    StatusMapped,
			Cached:    o.Cached,
		})

		for _, g := range r.Groups {
			tables.Groups = append(tables.Groups, GroupRow{
				Cell:        o.Cell,
				Key:         g.Key.String(),
				Capability:  g.Caps.String(),
				Slot:        g.Slot,
				ReadPorts:   len(g.ReadPorts),
				WritePorts:  len(g.WritePorts),
				ReadAddrs:   distinct(g.ReadAddrs),
				Transparent: g.Transparent,
			})
		}

		for _, b := range r.Bindings {
			tables.Bindings = append(tables.Bindings, BindingRow{
				Cell:        o.Cell,
				Slot:        b.Slot,
				SlotIndex:   b.SlotIndex,
				Capability:  b.Capability.String(),
				Bound:       b.Bound,
				Group:       b.Group,
				Transparent: b.Transparent,
			})
		}

		for _, n := range r.Nets {
			tables.Nets = append(tables.Nets, NetRow{
				Cell:       o.Cell,
				Pin:        n.Pin,
				Signal:     n.Signal.String(),
				Dir:        string(n.Dir),
				Connected:  n.Connected(),
				Width:      n.Signal.Width(),
				PaddedBits: paddedBits(n),
			})
		}

		for _, d := range r.Diagnostics {
			tables.Diagnostics = append(tables.Diagnostics, DiagnosticRow{
				Cell:     o.Cell,
				Rule:     d.Rule,
				Severity: d.Severity,
				Key:      d.Key,
				Message:  d.Message,
			})
		}
	}

	// rows of one cell keep their pipeline order
	sort.SliceStable(tables.Cells, func(i, j int) bool { return tables.Cells[i].Cell < tables.Cells[j].Cell })
	sort.SliceStable(tables.Groups, func(i, j int) bool { return tables.Groups[i].Cell < tables.Groups[j].Cell })
	sort.SliceStable(tables.Bindings, func(i, j int) bool { return tables.Bindings[i].Cell < tables.Bindings[j].Cell })
	sort.SliceStable(tables.Nets, func(i, j int) bool { return tables.Nets[i].Cell < tables.Nets[j].Cell })
	sort.SliceStable(tables.Diagnostics, func(i, j int) bool { return tables.Diagnostics[i].Cell < tables.Diagnostics[j].Cell })
	sort.SliceStable(tables.Failures, func(i, j int) bool { return tables.Failures[i].Cell < tables.Failures[j].Cell })

	return tables
}

// Complete returns t with nil relations replaced by empty ones.
func (t Tables) Complete() Tables {
	if t.Cells == nil {
		t.Cells = []CellRow{}
	}
	if t.Groups == nil {
		t.Groups = []GroupRow{}
	}
	if t.Bindings == nil {
		t.Bindings = []BindingRow{}
	}
	if t.Nets == nil {
		t.Nets = []NetRow{}
	}
	if t.Diagnostics == nil {
		t.Diagnostics = []DiagnosticRow{}
	}
	if t.Failures == nil {
		t.Failures = []FailureRow{}
	}
	return t
}

func distinct(specs []sig.Spec) int {
	seen := make(map[string]bool, len(specs))
	for _, s := range specs {
		seen[s.ID()] = true
	}
	return len(seen)
}

// paddedBits counts the constant zero bits at the top of an address or
// data pin driven by a non-constant signal.
func paddedBits(n mapper.NetEntry) int {
	if !isBusPin(n.Pin) || !n.Connected() || n.Signal.IsConst() {
		return 0
	}
	count := 0
	for i := n.Signal.Width() - 1; i >= 0; i-- {
		b := n.Signal.Bit(i)
		if !b.IsConst() || b.State != sig.S0 {
			break
		}
		count++
	}
	return count
}

func isBusPin(pin string) bool {
	return strings.HasSuffix(pin, "ADDR") || strings.HasSuffix(pin, "READ") || strings.HasSuffix(pin, "WRITE")
}
