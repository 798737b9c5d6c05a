package facts

import "strconv"

// Delta captures added and removed fact rows between two snapshots.
type Delta struct {
	Added   Tables `json:"added"`
	Removed Tables `json:"removed"`
}

// ComputeDelta computes row-level additions and removals between two snapshots.
func ComputeDelta(prev, next Tables) Delta {
	return Delta{
		Added:   diffTables(prev, next),
		Removed: diffTables(next, prev),
	}
}

// Empty reports whether the snapshots were identical.
func (d Delta) Empty() bool {
	return d.Added.Len() == 0 && d.Removed.Len() == 0
}

// Len is the total row count.
func (t Tables) Len() int {
	return len(t.Cells) + len(t.Groups) + len(t.Bindings) + len(t.Nets) + len(t.Diagnostics) + len(t.Failures)
}

func diffTables(from, to Tables) Tables {
	out := emptyTables()

	out.Cells = diffRows(from.Cells, to.Cells, func(r CellRow) string {
		return r.Cell + "|" + r.Instance + "|" + r.Template + "|" + r.Primitive + "|" + r.Status
	})
	out.Groups = diffRows(from.Groups, to.Groups, func(r GroupRow) string {
		return r.Cell + "|" + r.Key + "|" + r.Capability + "|" + intKey(r.Slot) + "|" + intKey(r.ReadPorts) + "|" +
			intKey(r.WritePorts) + "|" + intKey(r.ReadAddrs) + "|" + boolKey(r.Transparent)
	})
	out.Bindings = diffRows(from.Bindings, to.Bindings, func(r BindingRow) string {
		return r.Cell + "|" + r.Slot + "|" + intKey(r.SlotIndex) + "|" + r.Capability + "|" + boolKey(r.Bound) + "|" + r.Group
	})
	out.Nets = diffRows(from.Nets, to.Nets, func(r NetRow) string {
		return r.Cell + "|" + r.Pin + "|" + r.Signal + "|" + r.Dir
	})
	out.Diagnostics = diffRows(from.Diagnostics, to.Diagnostics, func(r DiagnosticRow) string {
		return r.Cell + "|" + r.Rule + "|" + r.Key + "|" + r.Message
	})
	out.Failures = diffRows(from.Failures, to.Failures, func(r FailureRow) string {
		return r.Cell + "|" + r.Kind + "|" + r.Message
	})

	return out
}

func emptyTables() Tables {
	return Tables{
		Cells:       []CellRow{},
		Groups:      []GroupRow{},
		Bindings:    []BindingRow{},
		Nets:        []NetRow{},
		Diagnostics: []DiagnosticRow{},
		Failures:    []FailureRow{},
	}
}

// diffRows returns the rows of to whose key is absent from from. Nets are a
// multiset (folded reads repeat a pin), so keys are counted.
func diffRows[T any](from, to []T, key func(T) string) []T {
	fromSet := make(map[string]int, len(from))
	for _, row := range from {
		fromSet[key(row)]++
	}
	diff := []T{}
	for _, row := range to {
		rowKey := key(row)
		if fromSet[rowKey] > 0 {
			fromSet[rowKey]--
			continue
		}
		diff = append(diff, row)
	}
	return diff
}

func boolKey(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func intKey(v int) string {
	return strconv.Itoa(v)
}
