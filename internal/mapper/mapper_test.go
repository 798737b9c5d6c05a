package mapper

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robert-at-pretension-io/bram-map/internal/capability"
	"github.com/robert-at-pretension-io/bram-map/internal/memcell"
	"github.com/robert-at-pretension-io/bram-map/internal/sig"
	"github.com/robert-at-pretension-io/bram-map/internal/template"
)

func TestNormalizeEmitsReadsBeforeWrites(t *testing.T) {
	records, err := Normalize(r2w2())
	require.NoError(t, err)
	require.Len(t, records, 4)

	kinds := []PortKind{records[0].Kind, records[1].Kind, records[2].Kind, records[3].Kind}
	assert.Equal(t, []PortKind{ReadPort, ReadPort, WritePort, WritePort}, kinds)
	assert.Equal(t, keyOf("a_clk"), records[0].Key)
	assert.Equal(t, keyOf("b_clk"), records[1].Key)
	assert.Equal(t, 1, records[3].Index)
}

func TestNormalizeRejectsShortArrays(t *testing.T) {
	d := r2w2()
	d.Read.Addr = d.Read.Addr[:1]

	_, err := Normalize(d)
	var malformed *memcell.MalformedDescriptorError
	require.True(t, errors.As(err, &malformed), "got %v", err)
	assert.Equal(t, "read.addr", malformed.Field)
}

func TestNormalizeIsIdempotent(t *testing.T) {
	d := r2w2()
	first, err := Normalize(d)
	require.NoError(t, err)
	second, err := Normalize(d)
	require.NoError(t, err)

	if diff := cmp.Diff(first, second, specComparer); diff != "" {
		t.Fatalf("records differ (-first +second):\n%s", diff)
	}

	g1, _, err := Classify(d.ID, first, ClassifyOptions{})
	require.NoError(t, err)
	g2, _, err := Classify(d.ID, second, ClassifyOptions{})
	require.NoError(t, err)
	if diff := cmp.Diff(g1.List(), g2.List(), specComparer); diff != "" {
		t.Fatalf("groups differ (-first +second):\n%s", diff)
	}
}

func TestClassifyFoldsSameClockDomain(t *testing.T) {
	records, err := Normalize(r2w2())
	require.NoError(t, err)

	groups, diags, err := Classify("m", records, ClassifyOptions{})
	require.NoError(t, err)
	assert.Empty(t, diags)
	require.Equal(t, 2, groups.Len())

	a, ok := groups.Lookup(keyOf("a_clk"))
	require.True(t, ok)
	assert.Equal(t, capability.ReadWrite, a.Caps)
	assert.Equal(t, []int{0}, a.ReadPorts)
	assert.Equal(t, []int{0}, a.WritePorts)
	assert.False(t, a.Mapped())

	want := []sig.Spec{
		bus("a_clk", 1), bus("a_addr", testAddrWidth),
		bus("a_re", 1), bus("a_read", testDataWidth),
		replicate("a_we", testDataWidth), bus("a_write", testDataWidth),
	}
	if diff := cmp.Diff(want, a.Signals(), specComparer); diff != "" {
		t.Fatalf("signals (-want +got):\n%s", diff)
	}
}

func TestClassifyFoldsReadsOnOneClock(t *testing.T) {
	d := descriptor("fold", []readPort{
		{clk: "clk", addr: "addr", en: "re", data: "q0"},
		{clk: "clk", addr: "addr", en: "re", data: "q1"},
	}, nil)
	records, err := Normalize(d)
	require.NoError(t, err)

	groups, _, err := Classify(d.ID, records, ClassifyOptions{})
	require.NoError(t, err)
	require.Equal(t, 1, groups.Len())
	g := groups.List()[0]
	assert.Equal(t, capability.ReadOnly, g.Caps)
	assert.Len(t, g.ReadData, 2)
	assert.Equal(t, []int{0, 1}, g.ReadPorts)
}

func TestClassifyMarksAsyncReads(t *testing.T) {
	d := descriptor("async", []readPort{{clk: "clk", addr: "addr", en: "re", data: "q", async: true}}, nil)
	records, err := Normalize(d)
	require.NoError(t, err)

	groups, _, err := Classify(d.ID, records, ClassifyOptions{})
	require.NoError(t, err)
	g := groups.List()[0]
	assert.True(t, g.Caps.Has(capability.AsyncRead))
	assert.Equal(t, capability.ReadOnly.Ordinal(), g.Caps.Ordinal())
	assert.False(t, g.Key.Enable)
}

func TestClassifyReadAfterWriteSetsReadEnable(t *testing.T) {
	records := []PortRecord{
		{Kind: WritePort, Index: 0, Key: keyOf("clk"), Clock: bus("clk", 1), Addr: bus("addr", 7),
			Enable: bus("we", 1), Data: bus("d", 8), ClockEnable: true},
		{Kind: ReadPort, Index: 0, Key: keyOf("clk"), Clock: bus("clk", 1), Addr: bus("addr", 7),
			Enable: bus("re", 1), Data: bus("q", 8), ClockEnable: true},
	}
	groups, _, err := Classify("m", records, ClassifyOptions{})
	require.NoError(t, err)
	g := groups.List()[0]
	assert.Equal(t, capability.ReadWrite, g.Caps)
	assert.True(t, g.ReadEnable.Equal(bus("re", 1)))
}

func dualWriteDivergent() *memcell.Descriptor {
	return descriptor("divergent", nil, []writePort{
		{clk: "clk", addr: "addr_a", en: "we", data: "d0"},
		{clk: "clk", addr: "addr_b", en: "we", data: "d1"},
	})
}

func TestClassifyDivergentAddressTolerant(t *testing.T) {
	d := dualWriteDivergent()
	records, err := Normalize(d)
	require.NoError(t, err)

	groups, diags, err := Classify(d.ID, records, ClassifyOptions{})
	require.NoError(t, err)
	require.Len(t, diags, 2)
	assert.Equal(t, "divergent_write_address", diags[0].Rule)
	assert.Equal(t, "warning", diags[0].Severity)
	assert.Equal(t, keyOf("clk").String(), diags[0].Key)
	assert.Equal(t, "folded_write_dropped", diags[1].Rule)

	g := groups.List()[0]
	assert.True(t, g.Addr.Equal(bus("addr_a", testAddrWidth)), "group keeps the first address")
	assert.Len(t, g.WriteAddrs, 2)
}

func TestClassifyDivergentAddressStrict(t *testing.T) {
	d := dualWriteDivergent()
	records, err := Normalize(d)
	require.NoError(t, err)

	_, _, err = Classify(d.ID, records, ClassifyOptions{StrictAddress: true})
	var divergent *DivergentAddressError
	require.True(t, errors.As(err, &divergent), "got %v", err)
	assert.Equal(t, 1, divergent.Port)
	assert.True(t, divergent.Got.Equal(bus("addr_b", testAddrWidth)))

	// strict failures are not retried on other templates
	_, err = MapFirst(d, []*template.Template{template.ECP5TrueDualPort(), template.ECP5PseudoDualPort()}, Options{StrictAddress: true})
	require.True(t, errors.As(err, &divergent))
	var attempts *AttemptsError
	assert.False(t, errors.As(err, &attempts))
}

func sameAddressWrites() *memcell.Descriptor {
	return descriptor("w2", nil, []writePort{
		{clk: "clk", addr: "addr", en: "we0", data: "d0"},
		{clk: "clk", addr: "addr", en: "we1", data: "d1"},
	})
}

func TestFoldedWriteIsReported(t *testing.T) {
	res, err := Map(sameAddressWrites(), template.ECP5TrueDualPort(), Options{})
	require.NoError(t, err)

	require.Len(t, res.Diagnostics, 1)
	diag := res.Diagnostics[0]
	assert.Equal(t, "folded_write_dropped", diag.Rule)
	assert.Equal(t, "warning", diag.Severity)
	assert.Equal(t, keyOf("clk").String(), diag.Key)
	assert.Contains(t, diag.Message, "write port 1")

	we := netsFor(res.Nets, "A1WE")
	require.Len(t, we, 1)
	assert.True(t, we[0].Signal.Equal(bus("we0", 1)), "got %s", we[0].Signal)
	for _, n := range res.Nets {
		assert.NotContains(t, n.Signal.String(), "we1", n.Pin)
		assert.NotContains(t, n.Signal.String(), "d1", n.Pin)
	}
}

func TestFoldedWriteStrict(t *testing.T) {
	d := sameAddressWrites()
	candidates := []*template.Template{template.ECP5TrueDualPort(), template.ECP5PseudoDualPort()}

	_, err := MapFirst(d, candidates, Options{StrictAddress: true})
	var folded *FoldedWriteError
	require.True(t, errors.As(err, &folded), "got %v", err)
	assert.Equal(t, 1, folded.Port)
	assert.Equal(t, 0, folded.Kept)
	var attempts *AttemptsError
	assert.False(t, errors.As(err, &attempts))
}

func TestBuildRejectsSharedClockPin(t *testing.T) {
	tpl := template.ECP5TrueDualPort()
	tpl.Slots[1].Clock = tpl.Slots[0].Clock

	_, err := Map(r2w2(), tpl, Options{})
	var conflict *ClockConflictError
	require.True(t, errors.As(err, &conflict), "got %v", err)
	assert.Equal(t, "CLK2", conflict.Pin)
	assert.False(t, conflict.First.Equal(conflict.Second))
}

func TestMapTwoClockDomainsOnTrueDualPort(t *testing.T) {
	res, err := Map(r2w2(), template.ECP5TrueDualPort(), Options{})
	require.NoError(t, err)

	require.Len(t, res.Bindings, 2)
	for _, b := range res.Bindings {
		assert.True(t, b.Bound, "slot %s", b.Slot)
	}
	assert.Equal(t, "$__ECP5_DP16KD", res.Primitive)

	clk2 := netsFor(res.Nets, "CLK2")
	clk3 := netsFor(res.Nets, "CLK3")
	require.Len(t, clk2, 1)
	require.Len(t, clk3, 1)
	assert.NotEqual(t, clk2[0].Signal.ID(), clk3[0].Signal.ID())
}

func TestMapThirdClockDomainIsUnmapped(t *testing.T) {
	d := descriptor("three_clocks",
		[]readPort{
			{clk: "a_clk", addr: "a_addr", en: "a_re", data: "a_read"},
			{clk: "c_clk", addr: "c_addr", en: "c_re", data: "c_read"},
		},
		[]writePort{
			{clk: "a_clk", addr: "a_addr", en: "a_we", data: "a_write"},
			{clk: "b_clk", addr: "b_addr", en: "b_we", data: "b_write"},
		})

	_, err := Map(d, template.ECP5TrueDualPort(), Options{})
	var unmapped *UnmappedPortsError
	require.True(t, errors.As(err, &unmapped), "got %v", err)
	// b (wo) and c (ro) sort ahead of a (rw) and take both slots
	assert.Equal(t, []ClockDomainKey{keyOf("a_clk")}, unmapped.Keys)
	assert.Equal(t, []capability.Set{capability.ReadWrite}, unmapped.Caps)
}

func TestMapPseudoDualPort(t *testing.T) {
	d := descriptor("sdp",
		[]readPort{{clk: "rclk", addr: "raddr", en: "re", data: "q"}},
		[]writePort{{clk: "wclk", addr: "waddr", en: "we", data: "d"}})

	res, err := Map(d, template.ECP5PseudoDualPort(), Options{})
	require.NoError(t, err)

	assert.Equal(t, keyOf("wclk").String(), res.Bindings[0].Group)
	assert.Equal(t, keyOf("rclk").String(), res.Bindings[1].Group)

	are := netsFor(res.Nets, "A1RE")
	require.Len(t, are, 1)
	assert.Equal(t, "1'b0", are[0].Signal.String())
	aread := netsFor(res.Nets, "A1READ")
	require.Len(t, aread, 1)
	assert.False(t, aread[0].Connected())
	assert.Equal(t, Out, aread[0].Dir)

	bwe := netsFor(res.Nets, "B1WE")
	require.Len(t, bwe, 1)
	assert.Equal(t, "1'b0", bwe[0].Signal.String())
	bread := netsFor(res.Nets, "B1READ")
	require.Len(t, bread, 1)
	assert.Equal(t, "{2'b00, q[15:0]}", bread[0].Signal.String())
}

func TestBuildZeroExtendsAddress(t *testing.T) {
	d := descriptor("narrow", []readPort{{clk: "clk", addr: "a_addr", en: "re", data: "q"}}, nil)
	d.Read.Addr[0] = sig.Wire("a_addr", 6)
	d.Read.AddrWidth[0] = 6

	res, err := Map(d, template.ECP5TrueDualPort(), Options{})
	require.NoError(t, err)

	addr := netsFor(res.Nets, "A1ADDR")
	require.Len(t, addr, 1)
	assert.Equal(t, 10, addr[0].Signal.Width())
	assert.Equal(t, "{4'b0000, a_addr[5:0]}", addr[0].Signal.String())
}

func TestBuildRejectsWideAddress(t *testing.T) {
	d := descriptor("wide", []readPort{{clk: "clk", addr: "addr", en: "re", data: "q"}}, nil)
	d.Read.Addr[0] = sig.Wire("addr", 12)

	_, err := Map(d, template.ECP5TrueDualPort(), Options{})
	var overflow *sig.WidthOverflowError
	require.True(t, errors.As(err, &overflow), "got %v", err)
	assert.Equal(t, 12, overflow.Width)
	assert.Equal(t, 10, overflow.Target)
	assert.Contains(t, err.Error(), "A1ADDR")
}

func TestBuildTiesOffUnboundSlot(t *testing.T) {
	d := descriptor("single",
		[]readPort{{clk: "clk", addr: "addr", en: "re", data: "q"}},
		[]writePort{{clk: "clk", addr: "addr", en: "we", data: "d"}})

	res, err := Map(d, template.ECP5TrueDualPort(), Options{})
	require.NoError(t, err)
	assert.True(t, res.Bindings[0].Bound)
	assert.False(t, res.Bindings[1].Bound)

	want := map[string]string{
		"CLK3":   "1'b0",
		"B1ADDR": "10'b0000000000",
		"B1RE":   "1'b0",
		"B1WE":   "1'b0",
	}
	for pin, s := range want {
		got := netsFor(res.Nets, pin)
		require.Len(t, got, 1, pin)
		assert.Equal(t, s, got[0].Signal.String(), pin)
	}
	for _, pin := range []string{"B1READ", "B1WRITE"} {
		got := netsFor(res.Nets, pin)
		require.Len(t, got, 1, pin)
		assert.False(t, got[0].Connected(), pin)
	}
}

func TestBuildFansOutFoldedReads(t *testing.T) {
	d := descriptor("fold", []readPort{
		{clk: "clk", addr: "addr", en: "re", data: "q0"},
		{clk: "clk", addr: "addr", en: "re", data: "q1"},
	}, nil)

	res, err := Map(d, template.ECP5TrueDualPort(), Options{})
	require.NoError(t, err)
	reads := netsFor(res.Nets, "A1READ")
	require.Len(t, reads, 2)
	assert.Equal(t, "{2'b00, q0[15:0]}", reads[0].Signal.String())
	assert.Equal(t, "{2'b00, q1[15:0]}", reads[1].Signal.String())
}

func TestBuildWriteEnable(t *testing.T) {
	uniform := descriptor("uniform", nil, []writePort{{clk: "clk", addr: "addr", en: "we", data: "d"}})
	res, err := Map(uniform, template.ECP5TrueDualPort(), Options{})
	require.NoError(t, err)
	we := netsFor(res.Nets, "A1WE")
	require.Len(t, we, 1)
	assert.Equal(t, "we[0]", we[0].Signal.String())

	mixed := descriptor("mixed", nil, []writePort{{clk: "clk", addr: "addr", data: "d", split: [2]string{"we_hi", "we_lo"}}})
	res, err = Map(mixed, template.ECP5TrueDualPort(), Options{})
	require.NoError(t, err)
	we = netsFor(res.Nets, "A1WE")
	require.Len(t, we, 1)
	assert.Equal(t, 18, we[0].Signal.Width())
	assert.False(t, we[0].Signal.IsUniform())
}

func TestAllocateRequiredSlotUnbound(t *testing.T) {
	tpl := template.ECP5TrueDualPort()
	tpl.Slots[1].Optional = false
	d := descriptor("single", []readPort{{clk: "clk", addr: "addr", en: "re", data: "q"}}, nil)

	_, err := Map(d, tpl, Options{})
	var unbound *UnboundSlotsError
	require.True(t, errors.As(err, &unbound), "got %v", err)
	assert.Equal(t, []string{"B"}, unbound.Slots)
}

func TestAllocateNeverBacktracks(t *testing.T) {
	// rw then ro slot; the ro group sorts first and takes the rw slot,
	// leaving the rw group nowhere to go.
	tpl := &template.Template{
		Name: "rw_ro", Primitive: "P", AddrWidth: 10, DataWidth: 18,
		Slots: []template.Slot{
			{Name: "A", Capability: capability.ReadWrite, Clock: 0, Optional: true},
			{Name: "B", Capability: capability.ReadOnly, Clock: 1, Optional: true},
		},
	}
	d := descriptor("greedy",
		[]readPort{
			{clk: "a_clk", addr: "a_addr", en: "a_re", data: "a_read"},
			{clk: "b_clk", addr: "b_addr", en: "b_re", data: "b_read"},
		},
		[]writePort{{clk: "a_clk", addr: "a_addr", en: "a_we", data: "a_write"}})

	_, err := Map(d, tpl, Options{})
	var unmapped *UnmappedPortsError
	require.True(t, errors.As(err, &unmapped), "got %v", err)
	assert.Equal(t, []ClockDomainKey{keyOf("a_clk")}, unmapped.Keys)
}

func TestAsyncReadNeedsAsyncSlot(t *testing.T) {
	d := descriptor("async", []readPort{{clk: "clk", addr: "addr", en: "re", data: "q", async: true}}, nil)

	_, err := Map(d, template.ECP5TrueDualPort(), Options{})
	var unmapped *UnmappedPortsError
	require.True(t, errors.As(err, &unmapped), "got %v", err)

	tpl := singleSlotTemplate()
	tpl.Slots[0].Capability = capability.ReadWrite.Union(capability.AsyncRead)
	_, err = Map(d, tpl, Options{})
	require.NoError(t, err)
}

func TestMapInvariants(t *testing.T) {
	d := r2w2()
	res, err := Map(d, template.ECP5TrueDualPort(), Options{})
	require.NoError(t, err)
	tpl := template.ECP5TrueDualPort()

	reads := map[int]int{}
	writes := map[int]int{}
	for _, g := range res.Groups {
		require.True(t, g.Mapped())
		assert.True(t, g.Caps.SubsetOf(tpl.Slots[g.Slot].Capability), "group %s", g.Key)
		for _, p := range g.ReadPorts {
			reads[p]++
		}
		for _, p := range g.WritePorts {
			writes[p]++
		}
	}
	for j := 0; j < d.ReadPorts; j++ {
		assert.Equal(t, 1, reads[j], "read port %d", j)
	}
	for j := 0; j < d.WritePorts; j++ {
		assert.Equal(t, 1, writes[j], "write port %d", j)
	}

	for _, n := range res.Nets {
		if !n.Connected() {
			continue
		}
		switch {
		case len(n.Pin) > 4 && n.Pin[len(n.Pin)-4:] == "ADDR":
			assert.Equal(t, tpl.AddrWidth, n.Signal.Width(), n.Pin)
		case len(n.Pin) > 4 && (n.Pin[len(n.Pin)-4:] == "READ" || n.Pin[len(n.Pin)-5:] == "WRITE"):
			assert.Equal(t, tpl.DataWidth, n.Signal.Width(), n.Pin)
		}
	}
}

func TestMapIsDeterministic(t *testing.T) {
	first, err := Map(r2w2(), template.ECP5TrueDualPort(), Options{})
	require.NoError(t, err)
	second, err := Map(r2w2(), template.ECP5TrueDualPort(), Options{})
	require.NoError(t, err)

	a, err := json.Marshal(first)
	require.NoError(t, err)
	b, err := json.Marshal(second)
	require.NoError(t, err)
	assert.JSONEq(t, string(a), string(b))
}

func TestMapObservesEveryStage(t *testing.T) {
	var stages []string
	opts := Options{Observer: func(stage string, _ time.Time, _ time.Duration) {
		stages = append(stages, stage)
	}}
	_, err := Map(r2w2(), template.ECP5TrueDualPort(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{StageNormalize, StageClassify, StageAllocate, StageBuild}, stages)
}

func TestMapFirstFallsBack(t *testing.T) {
	candidates := []*template.Template{singleSlotTemplate(), template.ECP5TrueDualPort()}
	res, err := MapFirst(r2w2(), candidates, Options{})
	require.NoError(t, err)
	assert.Equal(t, "ecp5_dp16kd_tdp", res.Template)
}

func TestMapFirstCollectsAttempts(t *testing.T) {
	candidates := []*template.Template{singleSlotTemplate(), template.ECP5PseudoDualPort()}
	_, err := MapFirst(r2w2(), candidates, Options{})

	var attempts *AttemptsError
	require.True(t, errors.As(err, &attempts), "got %v", err)
	require.Len(t, attempts.Attempts, 2)
	assert.Equal(t, "single_rw", attempts.Attempts[0].Template)
	assert.Equal(t, "ecp5_dp16kd_pdp", attempts.Attempts[1].Template)

	var unmapped *UnmappedPortsError
	assert.True(t, errors.As(err, &unmapped))
}
