package mapper

import (
	"fmt"

	"github.com/robert-at-pretension-io/bram-map/internal/capability"
	"github.com/robert-at-pretension-io/bram-map/internal/sig"
)

// PortGroup is the set of logical ports of one clock domain, to be hosted by
// a single physical port.
type PortGroup struct {
	Key  ClockDomainKey `json:"key"`
	Caps capability.Set `json:"capability"`

	Clock sig.Spec `json:"clock"`
	// Addr is the address of the port that created the group
	Addr sig.Spec `json:"addr"`

	ReadEnable sig.Spec   `json:"read_enable"`
	ReadData   []sig.Spec `json:"read_data,omitempty"`
	ReadAddrs  []sig.Spec `json:"read_addrs,omitempty"`

	WriteEnable []sig.Spec `json:"write_enable,omitempty"`
	WriteData   []sig.Spec `json:"write_data,omitempty"`
	WriteAddrs  []sig.Spec `json:"write_addrs,omitempty"`

	ReadPorts   []int `json:"read_ports,omitempty"`
	WritePorts  []int `json:"write_ports,omitempty"`
	Transparent bool  `json:"transparent,omitempty"`

	// Slot is the index of the slot hosting the group, -1 while unmapped
	Slot int `json:"slot"`
}

// Mapped reports whether the group is bound to a slot.
func (g *PortGroup) Mapped() bool {
	return g.Slot >= 0
}

// Signals returns the group's signals in append order: clock and address,
// then the read enable and read data, then each write enable/data pair.
func (g *PortGroup) Signals() []sig.Spec {
	out := []sig.Spec{g.Clock, g.Addr}
	if len(g.ReadPorts) > 0 {
		out = append(out, g.ReadEnable)
		out = append(out, g.ReadData...)
	}
	for i := range g.WriteData {
		out = append(out, g.WriteEnable[i], g.WriteData[i])
	}
	return out
}

// Groups holds the PortGroups of one cell keyed by clock domain, remembering
// discovery order for stable tie-breaking.
type Groups struct {
	byKey map[ClockDomainKey]*PortGroup
	order []*PortGroup
}

func newGroups() *Groups {
	return &Groups{byKey: make(map[ClockDomainKey]*PortGroup)}
}

// Lookup returns the group of a clock domain.
func (gs *Groups) Lookup(k ClockDomainKey) (*PortGroup, bool) {
	g, ok := gs.byKey[k]
	return g, ok
}

// List returns the groups in discovery order.
func (gs *Groups) List() []*PortGroup {
	return gs.order
}

// Len is the number of groups.
func (gs *Groups) Len() int {
	return len(gs.order)
}

func (gs *Groups) add(g *PortGroup) {
	gs.byKey[g.Key] = g
	gs.order = append(gs.order, g)
}

// Diagnostic is a tolerated condition found while mapping.
type Diagnostic struct {
	Rule     string `json:"rule"`
	Severity string `json:"severity"`
	Cell     string `json:"cell"`
	Key      string `json:"key,omitempty"`
	Message  string `json:"message"`
}

// ClassifyOptions controls how conflicting ports are folded.
type ClassifyOptions struct {
	// StrictAddress rejects write ports whose address differs from the
	// address already recorded for their clock domain, and any write port
	// folded into a domain that already holds one.
	StrictAddress bool
}

// Classify folds port records into PortGroups keyed by clock domain, in the
// order given (Normalize returns reads before writes).
func Classify(cell string, records []PortRecord, opts ClassifyOptions) (*Groups, []Diagnostic, error) {
	groups := newGroups()
	var diags []Diagnostic

	for _, r := range records {
		g, exists := groups.Lookup(r.Key)

		switch r.Kind {
		case ReadPort:
			if exists {
				if len(g.ReadPorts) == 0 {
					g.ReadEnable = r.Enable
					g.Caps = g.Caps.Union(readCaps(r))
				}
				g.ReadData = append(g.ReadData, r.Data)
				g.ReadAddrs = append(g.ReadAddrs, r.Addr)
				g.ReadPorts = append(g.ReadPorts, r.Index)
				g.Transparent = g.Transparent || r.Transparent
				continue
			}
			groups.add(&PortGroup{
				Key:         r.Key,
				Caps:        readCaps(r),
				Clock:       r.Clock,
				Addr:        r.Addr,
				ReadEnable:  r.Enable,
				ReadData:    []sig.Spec{r.Data},
				ReadAddrs:   []sig.Spec{r.Addr},
				ReadPorts:   []int{r.Index},
				Transparent: r.Transparent,
				Slot:        -1,
			})

		case WritePort:
			if !exists {
				groups.add(&PortGroup{
					Key:         r.Key,
					Caps:        capability.WriteOnly,
					Clock:       r.Clock,
					Addr:        r.Addr,
					WriteEnable: []sig.Spec{r.Enable},
					WriteData:   []sig.Spec{r.Data},
					WriteAddrs:  []sig.Spec{r.Addr},
					WritePorts:  []int{r.Index},
					Slot:        -1,
				})
				continue
			}
			if !r.Addr.Equal(g.Addr) {
				if opts.StrictAddress {
					return nil, diags, &DivergentAddressError{Cell: cell, Key: r.Key, Want: g.Addr, Got: r.Addr, Port: r.Index}
				}
				diags = append(diags, Diagnostic{
					Rule:     "divergent_write_address",
					Severity: "warning",
					Cell:     cell,
					Key:      r.Key.String(),
					Message: fmt.Sprintf("write port %d addresses %s but clock domain %s is addressed by %s; folding anyway",
						r.Index, r.Addr, r.Key, g.Addr),
				})
			}
			if len(g.WritePorts) > 0 {
				if opts.StrictAddress {
					return nil, diags, &FoldedWriteError{Cell: cell, Key: r.Key, Port: r.Index, Kept: g.WritePorts[0]}
				}
				diags = append(diags, Diagnostic{
					Rule:     "folded_write_dropped",
					Severity: "warning",
					Cell:     cell,
					Key:      r.Key.String(),
					Message: fmt.Sprintf("write port %d shares clock domain %s with write port %d; only write port %d is wired",
						r.Index, r.Key, g.WritePorts[0], g.WritePorts[0]),
				})
			}
			g.WriteEnable = append(g.WriteEnable, r.Enable)
			g.WriteData = append(g.WriteData, r.Data)
			g.WriteAddrs = append(g.WriteAddrs, r.Addr)
			g.WritePorts = append(g.WritePorts, r.Index)
			g.Caps = g.Caps.Union(capability.WriteOnly)

		default:
			return nil, diags, fmt.Errorf("cell %s: unknown port kind %q", cell, r.Kind)
		}
	}

	return groups, diags, nil
}

// readCaps is ReadOnly, plus AsyncRead for a read port without clock enable.
func readCaps(r PortRecord) capability.Set {
	caps := capability.ReadOnly
	if !r.ClockEnable {
		caps = caps.Union(capability.AsyncRead)
	}
	return caps
}
