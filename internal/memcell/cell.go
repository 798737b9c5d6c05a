package memcell

import (
	"fmt"
	"strconv"

	"github.com/robert-at-pretension-io/bram-map/internal/sig"
)

// FromCell builds a Descriptor from the flat parameter and connection record
// of an abstract memory cell. Connections are packed buses with port 0 in
// the least significant bits, and per-port flag parameters are bit strings
// with port 0 as the rightmost character.
func FromCell(name string, params map[string]string, conns map[string]sig.Spec) (*Descriptor, error) {
	c := cellReader{name: name, params: params, conns: conns}

	d := &Descriptor{ID: name}
	if id := params["MEMID"]; id != "" {
		d.ID = id
	}
	c.name = d.ID

	var err error
	if d.Size, err = c.intParam("SIZE", true); err != nil {
		return nil, err
	}
	abits, err := c.intParam("ABITS", false)
	if err != nil {
		return nil, err
	}
	width, err := c.intParam("WIDTH", false)
	if err != nil {
		return nil, err
	}
	if d.ReadPorts, err = c.intParam("RD_PORTS", false); err != nil {
		return nil, err
	}
	if d.WritePorts, err = c.intParam("WR_PORTS", false); err != nil {
		return nil, err
	}

	if d.Read, err = c.ports("RD", d.ReadPorts, abits, width, 1); err != nil {
		return nil, err
	}
	if d.Write, err = c.ports("WR", d.WritePorts, abits, width, width); err != nil {
		return nil, err
	}
	return d, d.Validate()
}

type cellReader struct {
	name   string
	params map[string]string
	conns  map[string]sig.Spec
}

func (c cellReader) malformed(field, format string, args ...any) error {
	return &MalformedDescriptorError{Cell: c.name, Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (c cellReader) intParam(key string, optional bool) (int, error) {
	v, ok := c.params[key]
	if !ok {
		if optional {
			return 0, nil
		}
		return 0, c.malformed(key, "missing parameter")
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, c.malformed(key, "not a non-negative integer: %q", v)
	}
	return n, nil
}

// flags reads a per-port bit string parameter.
func (c cellReader) flags(key string, n int) ([]bool, error) {
	out := make([]bool, n)
	if n == 0 {
		return out, nil
	}
	v, ok := c.params[key]
	if !ok {
		return nil, c.malformed(key, "missing parameter")
	}
	if len(v) != n {
		return nil, c.malformed(key, "has %d flags for %d ports", len(v), n)
	}
	for j := 0; j < n; j++ {
		switch v[len(v)-1-j] {
		case '1':
			out[j] = true
		case '0':
		default:
			return nil, c.malformed(key, "bad flag %q", v[len(v)-1-j])
		}
	}
	return out, nil
}

// bus splits a packed connection into n slices of the given width.
func (c cellReader) bus(key string, n, width int) ([]sig.Spec, error) {
	out := make([]sig.Spec, n)
	if n == 0 {
		return out, nil
	}
	s, ok := c.conns[key]
	if !ok {
		return nil, c.malformed(key, "missing connection")
	}
	if s.Width() != n*width {
		return nil, c.malformed(key, "width %d, want %d (%d ports x %d bits)", s.Width(), n*width, n, width)
	}
	for j := range out {
		out[j] = s.Extract(j*width, width)
	}
	return out, nil
}

func (c cellReader) ports(prefix string, n, abits, width, enWidth int) (PortArrays, error) {
	var p PortArrays
	var err error
	if p.ClockEnable, err = c.flags(prefix+"_CLK_ENABLE", n); err != nil {
		return p, err
	}
	if p.ClockPolarity, err = c.flags(prefix+"_CLK_POLARITY", n); err != nil {
		return p, err
	}
	if prefix == "RD" {
		if p.Transparent, err = c.flags("RD_TRANSPARENT", n); err != nil {
			return p, err
		}
	} else {
		p.Transparent = make([]bool, n)
	}
	if p.Clock, err = c.bus(prefix+"_CLK", n, 1); err != nil {
		return p, err
	}
	if p.Enable, err = c.bus(prefix+"_EN", n, enWidth); err != nil {
		return p, err
	}
	if p.Addr, err = c.bus(prefix+"_ADDR", n, abits); err != nil {
		return p, err
	}
	if p.Data, err = c.bus(prefix+"_DATA", n, width); err != nil {
		return p, err
	}
	p.AddrWidth = make([]int, n)
	p.DataWidth = make([]int, n)
	for j := 0; j < n; j++ {
		p.AddrWidth[j] = abits
		p.DataWidth[j] = width
	}
	return p, nil
}
