package template

import (
	"fmt"
	"sort"

	"github.com/robert-at-pretension-io/bram-map/internal/capability"
)

// Slot is one physical port of a memory primitive.
type Slot struct {
	// Name is the port letter: A, B, ...
	Name string `json:"name" yaml:"name"`

	// Capability is what the physical port can do
	Capability capability.Set `json:"capability" yaml:"capability"`

	// Clock is the index of the clock pin the port is driven from (CLK<n>)
	Clock int `json:"clock" yaml:"clock"`

	// Optional slots may be left unbound and are then tied off
	Optional bool `json:"optional,omitempty" yaml:"optional,omitempty"`

	// Transparent marks ports that return the newly written data on a
	// same-cycle read/write collision
	Transparent bool `json:"transparent,omitempty" yaml:"transparent,omitempty"`

	// PinPrefix overrides the pin name prefix (default: Name + "1")
	PinPrefix string `json:"pin_prefix,omitempty" yaml:"pin_prefix,omitempty"`
}

// Prefix returns the pin name prefix of the slot, e.g. "A1".
func (s Slot) Prefix() string {
	if s.PinPrefix != "" {
		return s.PinPrefix
	}
	return s.Name + "1"
}

// ClockPin returns the name of the slot's clock pin.
func (s Slot) ClockPin() string {
	return fmt.Sprintf("CLK%d", s.Clock)
}

// Template declares a fixed memory primitive: its ordered port slots (most
// capable first) and its fixed address and data widths.
type Template struct {
	Name       string            `json:"name" yaml:"name"`
	Primitive  string            `json:"primitive" yaml:"primitive"`
	AddrWidth  int               `json:"addr_width" yaml:"addr_width"`
	DataWidth  int               `json:"data_width" yaml:"data_width"`
	Slots      []Slot            `json:"slots" yaml:"slots"`
	Parameters map[string]string `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Validate checks the template for internal consistency.
func (t *Template) Validate() error {
	if t.Name == "" {
		return fmt.Errorf("template has no name")
	}
	if t.Primitive == "" {
		return fmt.Errorf("template %s: no primitive", t.Name)
	}
	if t.AddrWidth <= 0 || t.DataWidth <= 0 {
		return fmt.Errorf("template %s: address and data widths must be positive", t.Name)
	}
	if len(t.Slots) == 0 {
		return fmt.Errorf("template %s: no slots", t.Name)
	}
	names := make(map[string]bool)
	for i, s := range t.Slots {
		if s.Name == "" {
			return fmt.Errorf("template %s: slot %d has no name", t.Name, i)
		}
		if names[s.Name] {
			return fmt.Errorf("template %s: duplicate slot %s", t.Name, s.Name)
		}
		names[s.Name] = true
		if s.Capability.Ordinal() == 0 {
			return fmt.Errorf("template %s: slot %s can neither read nor write", t.Name, s.Name)
		}
		// no slot may offer more than a slot listed before it
		for _, prev := range t.Slots[:i] {
			if prev.Capability != s.Capability && prev.Capability.SubsetOf(s.Capability) {
				return fmt.Errorf("template %s: slot %s (%s) listed after less capable slot %s (%s)",
					t.Name, s.Name, s.Capability, prev.Name, prev.Capability)
			}
		}
	}
	return nil
}

// Library is a set of named templates.
type Library struct {
	templates map[string]*Template
}

// NewLibrary returns an empty library.
func NewLibrary() *Library {
	return &Library{templates: make(map[string]*Template)}
}

// Add validates and registers a template, replacing any template of the same
// name.
func (l *Library) Add(t *Template) error {
	if err := t.Validate(); err != nil {
		return err
	}
	l.templates[t.Name] = t
	return nil
}

// Get looks up a template by name.
func (l *Library) Get(name string) (*Template, bool) {
	t, ok := l.templates[name]
	return t, ok
}

// Names returns the sorted template names.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.templates))
	for name := range l.templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve returns the templates for the given names, in order.
func (l *Library) Resolve(names []string) ([]*Template, error) {
	out := make([]*Template, 0, len(names))
	for _, name := range names {
		t, ok := l.templates[name]
		if !ok {
			return nil, fmt.Errorf("unknown template %q", name)
		}
		out = append(out, t)
	}
	return out, nil
}
