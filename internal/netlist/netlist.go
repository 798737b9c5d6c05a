// Package netlist holds the design a mapping pass rewrites: a flat module of
// sized wires, cells and continuous assignments.
package netlist

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/robert-at-pretension-io/bram-map/internal/mapper"
	"github.com/robert-at-pretension-io/bram-map/internal/sig"
	"github.com/robert-at-pretension-io/bram-map/internal/validator"
)

// Design is the on-disk form of a module.
type Design struct {
	Module  string         `json:"module"`
	Wires   map[string]int `json:"wires"`
	Cells   []Cell         `json:"cells"`
	Assigns []Assign       `json:"assigns,omitempty"`
}

// Cell is an instance of a primitive or an abstract cell such as $mem.
type Cell struct {
	Name        string            `json:"name"`
	Type        string            `json:"type"`
	Parameters  map[string]string `json:"parameters,omitempty"`
	Connections map[string]string `json:"connections,omitempty"`
}

// Assign drives LHS from RHS.
type Assign struct {
	LHS string `json:"lhs"`
	RHS string `json:"rhs"`
}

// Netlist is a design open for mutation. All methods are safe for
// concurrent use.
type Netlist struct {
	mu     sync.Mutex
	design Design
}

// Load reads and validates a design file.
func Load(path string) (*Netlist, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading design %s: %w", path, err)
	}
	n, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("design %s: %w", path, err)
	}
	return n, nil
}

// Parse validates design JSON against the design schema and decodes it.
func Parse(data []byte) (*Netlist, error) {
	v, err := validator.New()
	if err != nil {
		return nil, fmt.Errorf("init design validator: %w", err)
	}
	if err := v.ValidateJSON(data); err != nil {
		return nil, err
	}
	var d Design
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decoding design: %w", err)
	}
	if d.Wires == nil {
		d.Wires = map[string]int{}
	}
	return &Netlist{design: d}, nil
}

// Module returns the module name.
func (n *Netlist) Module() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.design.Module
}

// CellsOfType returns copies of the cells of the given type in design order.
func (n *Netlist) CellsOfType(typ string) []Cell {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []Cell
	for _, c := range n.design.Cells {
		if c.Type == typ {
			out = append(out, c)
		}
	}
	return out
}

// Connections parses the connections of a cell into signals, resolving bare
// wire names against the design's wire table.
func (n *Netlist) Connections(c Cell) (map[string]sig.Spec, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make(map[string]sig.Spec, len(c.Connections))
	for port, text := range c.Connections {
		s, err := sig.Parse(text, n.width)
		if err != nil {
			return nil, fmt.Errorf("cell %s: port %s: %w", c.Name, port, err)
		}
		out[port] = s
	}
	return out, nil
}

func (n *Netlist) width(name string) (int, bool) {
	w, ok := n.design.Wires[name]
	return w, ok
}

// ReplaceMemory swaps the named cell for an instance of the mapped primitive.
//
// The instance is named meminst<index>. Every connected pin gets its own
// intermediate wire <pin><index>: input pins are driven by an assignment
// from the logical signal and output pins drive the logical signal through
// an assignment. Constant input pins are connected directly and unconnected
// pins are left out. The abstract cell is removed. Returns the instance name.
func (n *Netlist) ReplaceMemory(cellName string, index int, res *mapper.Result, params map[string]string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	pos := -1
	for i, c := range n.design.Cells {
		if c.Name == cellName {
			pos = i
			break
		}
	}
	if pos < 0 {
		return "", fmt.Errorf("replace %s: no such cell", cellName)
	}

	inst := Cell{
		Name:        n.uniqueCell(fmt.Sprintf("meminst%d", index)),
		Type:        res.Primitive,
		Parameters:  make(map[string]string, len(params)),
		Connections: make(map[string]string),
	}
	for k, v := range params {
		inst.Parameters[k] = v
	}

	pinWires := make(map[string]sig.Spec)
	for _, net := range res.Nets {
		if !net.Connected() {
			continue
		}
		if net.Dir == mapper.In && net.Signal.IsConst() {
			inst.Connections[net.Pin] = net.Signal.String()
			continue
		}

		w, ok := pinWires[net.Pin]
		if !ok {
			name := n.uniqueWire(net.Pin + strconv.Itoa(index))
			n.design.Wires[name] = net.Signal.Width()
			w = sig.Wire(name, net.Signal.Width())
			pinWires[net.Pin] = w
			inst.Connections[net.Pin] = name
		}

		if net.Dir == mapper.Out {
			lhs, rhs := dropConstBits(net.Signal, w)
			if lhs.Empty() {
				continue
			}
			n.design.Assigns = append(n.design.Assigns, Assign{LHS: n.render(lhs), RHS: n.render(rhs)})
		} else {
			n.design.Assigns = append(n.design.Assigns, Assign{LHS: n.render(w), RHS: n.render(net.Signal)})
		}
	}

	n.design.Cells = append(n.design.Cells[:pos], n.design.Cells[pos+1:]...)
	n.design.Cells = append(n.design.Cells, inst)
	return inst.Name, nil
}

// dropConstBits pairs the wire bits of an output pin with the logical bits
// they drive, skipping the zero padding that cannot be driven.
func dropConstBits(logical, wire sig.Spec) (sig.Spec, sig.Spec) {
	var lhs, rhs []sig.Bit
	for i := 0; i < logical.Width(); i++ {
		b := logical.Bit(i)
		if b.IsConst() {
			continue
		}
		lhs = append(lhs, b)
		rhs = append(rhs, wire.Bit(i))
	}
	return sig.FromBits(lhs), sig.FromBits(rhs)
}

// render prints a whole wire by its bare name and anything else in full
// notation.
func (n *Netlist) render(s sig.Spec) string {
	if s.Width() > 0 && !s.Bit(0).IsConst() {
		name := s.Bit(0).Wire
		if w, ok := n.design.Wires[name]; ok && s.Equal(sig.Wire(name, w)) {
			return name
		}
	}
	return s.String()
}

func (n *Netlist) uniqueCell(name string) string {
	taken := make(map[string]bool, len(n.design.Cells))
	for _, c := range n.design.Cells {
		taken[c.Name] = true
	}
	return unique(name, taken)
}

func (n *Netlist) uniqueWire(name string) string {
	taken := make(map[string]bool, len(n.design.Wires))
	for w := range n.design.Wires {
		taken[w] = true
	}
	return unique(name, taken)
}

func unique(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s_%d", name, i)
		if !taken[candidate] {
			return candidate
		}
	}
}

// Snapshot returns a deep copy of the current design.
func (n *Netlist) Snapshot() Design {
	n.mu.Lock()
	defer n.mu.Unlock()

	d := Design{
		Module:  n.design.Module,
		Wires:   make(map[string]int, len(n.design.Wires)),
		Cells:   make([]Cell, len(n.design.Cells)),
		Assigns: append([]Assign(nil), n.design.Assigns...),
	}
	for k, v := range n.design.Wires {
		d.Wires[k] = v
	}
	for i, c := range n.design.Cells {
		d.Cells[i] = Cell{
			Name:        c.Name,
			Type:        c.Type,
			Parameters:  copyMap(c.Parameters),
			Connections: copyMap(c.Connections),
		}
	}
	return d
}

func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Save writes the design as indented JSON, atomically.
func (n *Netlist) Save(path string) error {
	d := n.Snapshot()
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling design: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing design: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("writing design: %w", err)
	}
	return nil
}
