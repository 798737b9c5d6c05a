package facts

// FilterTablesByCells returns a new Tables object containing only rows whose
// cell is present in the provided cell set.
func FilterTablesByCells(tables Tables, cells map[string]bool) Tables {
	if len(cells) == 0 {
		return emptyTables()
	}
	out := emptyTables()

	for _, row := range tables.Cells {
		if cells[row.Cell] {
			out.Cells = append(out.Cells, row)
		}
	}
	for _, row := range tables.Groups {
		if cells[row.Cell] {
			out.Groups = append(out.Groups, row)
		}
	}
	for _, row := range tables.Bindings {
		if cells[row.Cell] {
			out.Bindings = append(out.Bindings, row)
		}
	}
	for _, row := range tables.Nets {
		if cells[row.Cell] {
			out.Nets = append(out.Nets, row)
		}
	}
	for _, row := range tables.Diagnostics {
		if cells[row.Cell] {
			out.Diagnostics = append(out.Diagnostics, row)
		}
	}
	for _, row := range tables.Failures {
		if cells[row.Cell] {
			out.Failures = append(out.Failures, row)
		}
	}

	return out
}

// FilterDeltaByCells filters both sides of a delta to the given cells.
func FilterDeltaByCells(delta Delta, cells map[string]bool) Delta {
	return Delta{
		Added:   FilterTablesByCells(delta.Added, cells),
		Removed: FilterTablesByCells(delta.Removed, cells),
	}
}
