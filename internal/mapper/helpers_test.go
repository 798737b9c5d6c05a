package mapper

import (
	"github.com/google/go-cmp/cmp"

	"github.com/robert-at-pretension-io/bram-map/internal/capability"
	"github.com/robert-at-pretension-io/bram-map/internal/memcell"
	"github.com/robert-at-pretension-io/bram-map/internal/sig"
	"github.com/robert-at-pretension-io/bram-map/internal/template"
)

const (
	testAddrWidth = 7
	testDataWidth = 16
)

type readPort struct {
	clk, addr, en, data string
	async               bool
	transparent         bool
}

type writePort struct {
	clk, addr, data string
	// enables are replicated over the data width unless split is set
	en    string
	split [2]string
}

func bus(name string, width int) sig.Spec {
	return sig.Wire(name, width)
}

func replicate(name string, n int) sig.Spec {
	var s sig.Spec
	for i := 0; i < n; i++ {
		s = s.Append(sig.Wire(name, 1))
	}
	return s
}

func descriptor(id string, reads []readPort, writes []writePort) *memcell.Descriptor {
	d := &memcell.Descriptor{ID: id, Size: 128, ReadPorts: len(reads), WritePorts: len(writes)}
	for _, r := range reads {
		d.Read.Clock = append(d.Read.Clock, bus(r.clk, 1))
		d.Read.ClockEnable = append(d.Read.ClockEnable, !r.async)
		d.Read.ClockPolarity = append(d.Read.ClockPolarity, true)
		d.Read.Addr = append(d.Read.Addr, bus(r.addr, testAddrWidth))
		d.Read.Data = append(d.Read.Data, bus(r.data, testDataWidth))
		d.Read.Enable = append(d.Read.Enable, bus(r.en, 1))
		d.Read.Transparent = append(d.Read.Transparent, r.transparent)
		d.Read.AddrWidth = append(d.Read.AddrWidth, testAddrWidth)
		d.Read.DataWidth = append(d.Read.DataWidth, testDataWidth)
	}
	for _, w := range writes {
		d.Write.Clock = append(d.Write.Clock, bus(w.clk, 1))
		d.Write.ClockEnable = append(d.Write.ClockEnable, true)
		d.Write.ClockPolarity = append(d.Write.ClockPolarity, true)
		d.Write.Addr = append(d.Write.Addr, bus(w.addr, testAddrWidth))
		d.Write.Data = append(d.Write.Data, bus(w.data, testDataWidth))
		en := replicate(w.en, testDataWidth)
		if w.split[0] != "" {
			en = replicate(w.split[1], testDataWidth/2).Append(replicate(w.split[0], testDataWidth/2))
		}
		d.Write.Enable = append(d.Write.Enable, en)
		d.Write.Transparent = append(d.Write.Transparent, false)
		d.Write.AddrWidth = append(d.Write.AddrWidth, testAddrWidth)
		d.Write.DataWidth = append(d.Write.DataWidth, testDataWidth)
	}
	return d
}

// r2w2 is the two clock, two read, two write memory: one read and one write
// on each of a_clk and b_clk.
func r2w2() *memcell.Descriptor {
	return descriptor("impl_r2w2_dualclock",
		[]readPort{
			{clk: "a_clk", addr: "a_addr", en: "a_re", data: "a_read"},
			{clk: "b_clk", addr: "b_addr", en: "b_re", data: "b_read"},
		},
		[]writePort{
			{clk: "a_clk", addr: "a_addr", en: "a_we", data: "a_write"},
			{clk: "b_clk", addr: "b_addr", en: "b_we", data: "b_write"},
		})
}

func keyOf(clk string) ClockDomainKey {
	return ClockDomainKey{Clock: bus(clk, 1).ID(), Polarity: true, Enable: true}
}

func netsFor(nets []NetEntry, pin string) []NetEntry {
	var out []NetEntry
	for _, n := range nets {
		if n.Pin == pin {
			out = append(out, n)
		}
	}
	return out
}

func singleSlotTemplate() *template.Template {
	return &template.Template{
		Name:      "single_rw",
		Primitive: "SPRAM",
		AddrWidth: 10,
		DataWidth: 18,
		Slots:     []template.Slot{{Name: "A", Capability: capability.ReadWrite, Clock: 0}},
	}
}

var specComparer = cmp.Comparer(func(a, b sig.Spec) bool { return a.Equal(b) })
