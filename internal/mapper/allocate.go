package mapper

import (
	"sort"

	"github.com/robert-at-pretension-io/bram-map/internal/template"
)

// Allocation binds slots of a template to port groups.
type Allocation struct {
	Template *template.Template
	// Bound has one entry per template slot; nil marks an unbound slot.
	Bound []*PortGroup
}

// Allocate places every group on a slot of tpl.
//
// Groups are sorted by ascending capability ordinal (ties keep discovery
// order). Each slot, in template order, takes the first unmapped group whose
// capabilities are a subset of the slot's. The pass never backtracks, so it
// can reject an assignment a full matching would find; that is the accepted
// behavior. Any group left over fails the whole allocation.
func Allocate(cell string, groups *Groups, tpl *template.Template) (*Allocation, error) {
	sorted := make([]*PortGroup, len(groups.List()))
	copy(sorted, groups.List())
	for _, g := range sorted {
		g.Slot = -1
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Caps.Ordinal() < sorted[j].Caps.Ordinal()
	})

	alloc := &Allocation{
		Template: tpl,
		Bound:    make([]*PortGroup, len(tpl.Slots)),
	}
	for i, slot := range tpl.Slots {
		for _, g := range sorted {
			if g.Mapped() || !g.Caps.SubsetOf(slot.Capability) {
				continue
			}
			g.Slot = i
			alloc.Bound[i] = g
			break
		}
	}

	var unmapped *UnmappedPortsError
	for _, g := range groups.List() {
		if g.Mapped() {
			continue
		}
		if unmapped == nil {
			unmapped = &UnmappedPortsError{Cell: cell, Template: tpl.Name}
		}
		unmapped.Keys = append(unmapped.Keys, g.Key)
		unmapped.Caps = append(unmapped.Caps, g.Caps)
	}
	if unmapped != nil {
		return nil, unmapped
	}

	var required []string
	for i, slot := range tpl.Slots {
		if alloc.Bound[i] == nil && !slot.Optional {
			required = append(required, slot.Name)
		}
	}
	if len(required) > 0 {
		return nil, &UnboundSlotsError{Cell: cell, Template: tpl.Name, Slots: required}
	}

	return alloc, nil
}
