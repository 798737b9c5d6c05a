package sig

import (
	"fmt"
	"strings"
)

// State is the value of a constant bit.
type State byte

const (
	S0 State = '0'
	S1 State = '1'
	Sx State = 'x'
	Sz State = 'z'
)

// Bit is a single bit of a signal: either bit Index of a named wire, or a
// constant when Wire is empty.
type Bit struct {
	Wire  string
	Index int
	State State
}

// IsConst reports whether the bit is a literal.
func (b Bit) IsConst() bool {
	return b.Wire == ""
}

// Spec is an ordered list of bits, least significant bit first.
// The zero value is the empty (unconnected) signal.
type Spec struct {
	bits []Bit
}

// FromBits builds a Spec from bits given LSB first.
func FromBits(bits []Bit) Spec {
	out := make([]Bit, len(bits))
	copy(out, bits)
	return Spec{bits: out}
}

// Wire returns all bits of a wire of the given width.
func Wire(name string, width int) Spec {
	return Slice(name, 0, width)
}

// Slice returns width bits of a wire starting at bit lo.
func Slice(name string, lo, width int) Spec {
	bits := make([]Bit, width)
	for i := range bits {
		bits[i] = Bit{Wire: name, Index: lo + i}
	}
	return Spec{bits: bits}
}

// Const returns a constant Spec from a bit string written MSB first, as in
// "0101".
func Const(value string) Spec {
	bits := make([]Bit, len(value))
	for i := 0; i < len(value); i++ {
		bits[len(value)-1-i] = Bit{State: State(value[i])}
	}
	return Spec{bits: bits}
}

// Zeros returns n constant zero bits.
func Zeros(n int) Spec {
	return Const(strings.Repeat("0", n))
}

// Width is the number of bits.
func (s Spec) Width() int {
	return len(s.bits)
}

// Empty reports whether the signal has no bits.
func (s Spec) Empty() bool {
	return len(s.bits) == 0
}

// Bits returns a copy of the bits, LSB first.
func (s Spec) Bits() []Bit {
	return FromBits(s.bits).bits
}

// Bit returns bit i (0 is the LSB).
func (s Spec) Bit(i int) Bit {
	return s.bits[i]
}

// Extract returns width bits starting at offset. The range must lie inside
// the signal.
func (s Spec) Extract(offset, width int) Spec {
	return FromBits(s.bits[offset : offset+width])
}

// Append returns s with other placed above it (other becomes the more
// significant part).
func (s Spec) Append(other Spec) Spec {
	bits := make([]Bit, 0, len(s.bits)+len(other.bits))
	bits = append(bits, s.bits...)
	bits = append(bits, other.bits...)
	return Spec{bits: bits}
}

// IsConst reports whether every bit is a literal. The empty signal is not
// constant.
func (s Spec) IsConst() bool {
	if len(s.bits) == 0 {
		return false
	}
	for _, b := range s.bits {
		if !b.IsConst() {
			return false
		}
	}
	return true
}

// IsUniform reports whether all bits are the same bit, as with a per-bit
// write enable driven from a single wire.
func (s Spec) IsUniform() bool {
	for _, b := range s.bits {
		if b != s.bits[0] {
			return false
		}
	}
	return len(s.bits) > 0
}

// Equal reports bitwise identity.
func (s Spec) Equal(o Spec) bool {
	if len(s.bits) != len(o.bits) {
		return false
	}
	for i := range s.bits {
		if s.bits[i] != o.bits[i] {
			return false
		}
	}
	return true
}

// ID is the identity string of the signal, used to key clock domains.
func (s Spec) ID() string {
	return s.String()
}

// ExtendU0 zero-extends the signal on the most significant side to width.
// A signal wider than width is never truncated.
func (s Spec) ExtendU0(width int) (Spec, error) {
	if s.Width() > width {
		return Spec{}, &WidthOverflowError{Width: s.Width(), Target: width}
	}
	return s.Append(Zeros(width - s.Width())), nil
}

// String renders the signal MSB first, e.g. "{4'b0000, a_addr[5:0]}".
func (s Spec) String() string {
	chunks := s.chunks()
	switch len(chunks) {
	case 0:
		return "{}"
	case 1:
		return chunks[0]
	}
	return "{" + strings.Join(chunks, ", ") + "}"
}

// chunks groups runs of bits, MSB first.
func (s Spec) chunks() []string {
	var out []string
	i := len(s.bits) - 1
	for i >= 0 {
		b := s.bits[i]
		j := i
		if b.IsConst() {
			for j > 0 && s.bits[j-1].IsConst() {
				j--
			}
			var sb strings.Builder
			for k := i; k >= j; k-- {
				sb.WriteByte(byte(s.bits[k].State))
			}
			out = append(out, fmt.Sprintf("%d'b%s", i-j+1, sb.String()))
		} else {
			for j > 0 && s.bits[j-1].Wire == b.Wire && s.bits[j-1].Index == s.bits[j].Index-1 {
				j--
			}
			if i == j {
				out = append(out, fmt.Sprintf("%s[%d]", b.Wire, b.Index))
			} else {
				out = append(out, fmt.Sprintf("%s[%d:%d]", b.Wire, b.Index, s.bits[j].Index))
			}
		}
		i = j - 1
	}
	return out
}

// MarshalText implements encoding.TextMarshaler.
func (s Spec) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Bare wire names need a
// width table and are rejected here; String never produces them.
func (s *Spec) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text), nil)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// WidthOverflowError reports a signal wider than the physical pin it has to
// be connected to.
type WidthOverflowError struct {
	Width  int
	Target int
}

func (e *WidthOverflowError) Error() string {
	return fmt.Sprintf("signal width %d exceeds target width %d", e.Width, e.Target)
}
