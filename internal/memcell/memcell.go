package memcell

import (
	"fmt"

	"github.com/robert-at-pretension-io/bram-map/internal/sig"
)

// Descriptor describes one inferred memory macro instance. It is built once
// per discovered memory cell and not modified afterwards.
type Descriptor struct {
	ID         string     `json:"id"`
	Size       int        `json:"size"`
	ReadPorts  int        `json:"rd_ports"`
	WritePorts int        `json:"wr_ports"`
	Read       PortArrays `json:"read"`
	Write      PortArrays `json:"write"`
}

// PortArrays holds the per-port-index attributes of one port kind. Every
// slice has one entry per port.
type PortArrays struct {
	Clock         []sig.Spec `json:"clock"`
	ClockEnable   []bool     `json:"clock_enable"`
	ClockPolarity []bool     `json:"clock_polarity"`
	Addr          []sig.Spec `json:"addr"`
	Data          []sig.Spec `json:"data"`
	// Enable is the read enable of a read port, or the per-bit write
	// enable of a write port.
	Enable      []sig.Spec `json:"enable"`
	Transparent []bool     `json:"transparent"`
	AddrWidth   []int      `json:"addr_width"`
	DataWidth   []int      `json:"data_width"`
}

// MalformedDescriptorError reports a structural mismatch in a descriptor or
// in the cell it was built from.
type MalformedDescriptorError struct {
	Cell   string
	Field  string
	Reason string
}

func (e *MalformedDescriptorError) Error() string {
	return fmt.Sprintf("malformed memory descriptor %s: %s: %s", e.Cell, e.Field, e.Reason)
}

// Validate checks that every per-kind array length equals the port count.
func (d *Descriptor) Validate() error {
	if d.ReadPorts < 0 || d.WritePorts < 0 {
		return &MalformedDescriptorError{Cell: d.ID, Field: "ports", Reason: "negative port count"}
	}
	if err := d.Read.check(d.ID, "read", d.ReadPorts); err != nil {
		return err
	}
	return d.Write.check(d.ID, "write", d.WritePorts)
}

func (p *PortArrays) check(cell, kind string, n int) error {
	lengths := []struct {
		field string
		got   int
	}{
		{"clock", len(p.Clock)},
		{"clock_enable", len(p.ClockEnable)},
		{"clock_polarity", len(p.ClockPolarity)},
		{"addr", len(p.Addr)},
		{"data", len(p.Data)},
		{"enable", len(p.Enable)},
		{"transparent", len(p.Transparent)},
		{"addr_width", len(p.AddrWidth)},
		{"data_width", len(p.DataWidth)},
	}
	for _, l := range lengths {
		if l.got != n {
			return &MalformedDescriptorError{
				Cell:   cell,
				Field:  kind + "." + l.field,
				Reason: fmt.Sprintf("has %d entries for %d ports", l.got, n),
			}
		}
	}
	return nil
}
