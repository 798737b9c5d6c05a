package mapper

import (
	"fmt"

	"github.com/robert-at-pretension-io/bram-map/internal/sig"
	"github.com/robert-at-pretension-io/bram-map/internal/template"
)

// Direction of a primitive pin.
type Direction string

const (
	In  Direction = "in"
	Out Direction = "out"
)

// NetEntry is one pin connection of the emitted primitive. An empty Signal
// leaves the pin unconnected.
type NetEntry struct {
	Pin    string    `json:"pin"`
	Signal sig.Spec  `json:"signal"`
	Dir    Direction `json:"dir"`
}

// Connected reports whether the pin is wired to a signal or a literal.
func (n NetEntry) Connected() bool {
	return !n.Signal.Empty()
}

var (
	tieLow      = sig.Const("0")
	unconnected = sig.Spec{}
)

// Build produces the pin connections of a successful allocation. Output pins
// that fan out to several folded read ports get one entry per port.
func Build(cell string, alloc *Allocation) ([]NetEntry, error) {
	tpl := alloc.Template
	b := &netBuilder{cell: cell, tpl: tpl, emitted: make(map[string]bool)}

	clocks := make(map[string]sig.Spec)
	for i, slot := range tpl.Slots {
		g := alloc.Bound[i]
		if g == nil {
			continue
		}
		pin := slot.ClockPin()
		if prev, ok := clocks[pin]; ok && !prev.Equal(g.Clock) {
			return nil, &ClockConflictError{Cell: cell, Template: tpl.Name, Pin: pin, First: prev, Second: g.Clock}
		}
		clocks[pin] = g.Clock
	}

	for i, slot := range tpl.Slots {
		pin := slot.ClockPin()
		if !b.emitted[pin] {
			clk, ok := clocks[pin]
			if !ok {
				clk = tieLow
			}
			b.emit(pin, clk, In)
		}

		g := alloc.Bound[i]
		if g == nil {
			b.tieOff(slot)
			continue
		}
		if err := b.bind(slot, g); err != nil {
			return nil, err
		}
	}
	return b.nets, nil
}

type netBuilder struct {
	cell    string
	tpl     *template.Template
	nets    []NetEntry
	emitted map[string]bool
}

func (b *netBuilder) emit(pin string, s sig.Spec, dir Direction) {
	b.nets = append(b.nets, NetEntry{Pin: pin, Signal: s, Dir: dir})
	b.emitted[pin] = true
}

func (b *netBuilder) extend(pin string, s sig.Spec, width int) (sig.Spec, error) {
	ext, err := s.ExtendU0(width)
	if err != nil {
		return sig.Spec{}, fmt.Errorf("cell %s: pin %s: %w", b.cell, pin, err)
	}
	return ext, nil
}

func (b *netBuilder) bind(slot template.Slot, g *PortGroup) error {
	p := slot.Prefix()

	addr, err := b.extend(p+"ADDR", g.Addr, b.tpl.AddrWidth)
	if err != nil {
		return err
	}
	b.emit(p+"ADDR", addr, In)

	if g.Caps.CanRead() {
		b.emit(p+"RE", g.ReadEnable, In)
		for _, d := range g.ReadData {
			data, err := b.extend(p+"READ", d, b.tpl.DataWidth)
			if err != nil {
				return err
			}
			b.emit(p+"READ", data, Out)
		}
	} else {
		b.emit(p+"RE", tieLow, In)
		b.emit(p+"READ", unconnected, Out)
	}

	if g.Caps.CanWrite() {
		we, err := b.writeEnable(p+"WE", g.WriteEnable[0])
		if err != nil {
			return err
		}
		b.emit(p+"WE", we, In)
		data, err := b.extend(p+"WRITE", g.WriteData[0], b.tpl.DataWidth)
		if err != nil {
			return err
		}
		b.emit(p+"WRITE", data, In)
	} else {
		b.emit(p+"WE", tieLow, In)
		b.emit(p+"WRITE", unconnected, In)
	}
	return nil
}

// writeEnable collapses a per-bit enable driven by one bit to that bit;
// a mixed enable is kept per bit and padded to the data width.
func (b *netBuilder) writeEnable(pin string, en sig.Spec) (sig.Spec, error) {
	if en.IsUniform() {
		return en.Extract(0, 1), nil
	}
	return b.extend(pin, en, b.tpl.DataWidth)
}

func (b *netBuilder) tieOff(slot template.Slot) {
	p := slot.Prefix()
	b.emit(p+"ADDR", sig.Zeros(b.tpl.AddrWidth), In)
	b.emit(p+"RE", tieLow, In)
	b.emit(p+"READ", unconnected, Out)
	b.emit(p+"WE", tieLow, In)
	b.emit(p+"WRITE", unconnected, In)
}
