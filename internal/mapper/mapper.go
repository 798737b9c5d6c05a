// Package mapper maps abstract multi-port memory cells onto the fixed port
// template of a physical memory primitive.
//
// The pipeline runs Normalize, Classify, Allocate and Build in that order
// for one cell. It holds no state between calls, so independent cells may
// be mapped concurrently.
package mapper

import (
	"errors"
	"time"

	"github.com/robert-at-pretension-io/bram-map/internal/capability"
	"github.com/robert-at-pretension-io/bram-map/internal/memcell"
	"github.com/robert-at-pretension-io/bram-map/internal/template"
)

// Stage names reported to Options.Observer.
const (
	StageNormalize = "normalize"
	StageClassify  = "classify"
	StageAllocate  = "allocate"
	StageBuild     = "build"
)

// Options controls a mapping run.
type Options struct {
	StrictAddress bool

	// Observer, when set, is called after each pipeline stage
	Observer func(stage string, start time.Time, duration time.Duration)
}

func (o Options) observe(stage string, start time.Time) {
	if o.Observer != nil {
		o.Observer(stage, start, time.Since(start))
	}
}

// Binding is the outcome of one template slot.
type Binding struct {
	Slot       string         `json:"slot"`
	SlotIndex  int            `json:"slot_index"`
	Capability capability.Set `json:"capability"`
	Bound      bool           `json:"bound"`
	// Transparent is copied from the slot
	Transparent bool `json:"transparent,omitempty"`
	// Group is the clock domain key of the bound group
	Group string `json:"group,omitempty"`
}

// Result is the complete mapping of one cell.
type Result struct {
	Cell        string       `json:"cell"`
	Template    string       `json:"template"`
	Primitive   string       `json:"primitive"`
	Groups      []*PortGroup `json:"groups"`
	Bindings    []Binding    `json:"bindings"`
	Nets        []NetEntry   `json:"nets"`
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Map runs the full pipeline for one descriptor against one template.
func Map(d *memcell.Descriptor, tpl *template.Template, opts Options) (*Result, error) {
	start := time.Now()
	records, err := Normalize(d)
	if err != nil {
		return nil, err
	}
	opts.observe(StageNormalize, start)

	start = time.Now()
	groups, diags, err := Classify(d.ID, records, ClassifyOptions{StrictAddress: opts.StrictAddress})
	if err != nil {
		return nil, err
	}
	opts.observe(StageClassify, start)

	start = time.Now()
	alloc, err := Allocate(d.ID, groups, tpl)
	if err != nil {
		return nil, err
	}
	opts.observe(StageAllocate, start)

	start = time.Now()
	nets, err := Build(d.ID, alloc)
	if err != nil {
		return nil, err
	}
	opts.observe(StageBuild, start)

	res := &Result{
		Cell:        d.ID,
		Template:    tpl.Name,
		Primitive:   tpl.Primitive,
		Groups:      groups.List(),
		Nets:        nets,
		Diagnostics: diags,
	}
	if res.Groups == nil {
		res.Groups = []*PortGroup{}
	}
	if res.Diagnostics == nil {
		res.Diagnostics = []Diagnostic{}
	}
	for i, slot := range tpl.Slots {
		b := Binding{Slot: slot.Name, SlotIndex: i, Capability: slot.Capability, Transparent: slot.Transparent}
		if g := alloc.Bound[i]; g != nil {
			b.Bound = true
			b.Group = g.Key.String()
		}
		res.Bindings = append(res.Bindings, b)
	}
	return res, nil
}

// MapFirst tries the templates in order and returns the first successful
// mapping. When none fits, the error is an *AttemptsError holding every
// template's failure. Descriptor and strict mode errors stop the search
// at once since no template can fix them.
func MapFirst(d *memcell.Descriptor, templates []*template.Template, opts Options) (*Result, error) {
	failed := &AttemptsError{Cell: d.ID}
	for _, tpl := range templates {
		res, err := Map(d, tpl, opts)
		if err == nil {
			return res, nil
		}
		var malformed *memcell.MalformedDescriptorError
		var divergent *DivergentAddressError
		var folded *FoldedWriteError
		if errors.As(err, &malformed) || errors.As(err, &divergent) || errors.As(err, &folded) {
			return nil, err
		}
		failed.Attempts = append(failed.Attempts, Attempt{Template: tpl.Name, Err: err})
	}
	return nil, failed
}
