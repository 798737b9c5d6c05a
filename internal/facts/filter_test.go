package facts

import "testing"

func TestFilterTablesByCells(t *testing.T) {
	tables := Tables{
		Cells: []CellRow{
			{Cell: "ram_a", Status: StatusMapped},
			{Cell: "ram_b", Status: StatusFailed},
		},
		Nets: []NetRow{
			{Cell: "ram_a", Pin: "CLK2"},
			{Cell: "ram_b", Pin: "CLK2"},
		},
		Failures: []FailureRow{
			{Cell: "ram_b", Kind: "unmapped_ports"},
		},
	}

	filtered := FilterTablesByCells(tables, map[string]bool{"ram_a": true})

	if len(filtered.Cells) != 1 || filtered.Cells[0].Cell != "ram_a" {
		t.Fatalf("expected only ram_a cell row, got %#v", filtered.Cells)
	}
	if len(filtered.Nets) != 1 || filtered.Nets[0].Cell != "ram_a" {
		t.Fatalf("expected only ram_a net rows, got %#v", filtered.Nets)
	}
	if len(filtered.Failures) != 0 {
		t.Fatalf("expected no failure rows, got %#v", filtered.Failures)
	}
}

func TestFilterDeltaByCellsEmpty(t *testing.T) {
	delta := Delta{
		Added: Tables{
			Cells: []CellRow{{Cell: "ram_a"}},
		},
		Removed: Tables{
			Cells: []CellRow{{Cell: "ram_b"}},
		},
	}

	filtered := FilterDeltaByCells(delta, map[string]bool{})
	if len(filtered.Added.Cells) != 0 || len(filtered.Removed.Cells) != 0 {
		t.Fatalf("expected empty delta, got %#v", filtered)
	}
}
