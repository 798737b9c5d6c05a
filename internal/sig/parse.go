package sig

import (
	"fmt"
	"strconv"
	"strings"
)

// WidthFunc resolves the full width of a named wire.
type WidthFunc func(name string) (int, bool)

// Parse reads a signal in the notation produced by String:
//
//	a_clk            whole wire (needs widths)
//	a_addr[5:0]      slice, MSB index first
//	a_we[3]          single bit
//	4'b0000          constant
//	{4'b0000, a[5:0]} concatenation, MSB part first
//
// widths may be nil when no bare wire names are used.
func Parse(text string, widths WidthFunc) (Spec, error) {
	s, err := parseTerm(strings.TrimSpace(text), widths)
	if err != nil {
		return Spec{}, fmt.Errorf("parse signal %q: %w", text, err)
	}
	return s, nil
}

func parseTerm(text string, widths WidthFunc) (Spec, error) {
	switch {
	case text == "":
		return Spec{}, nil
	case strings.HasPrefix(text, "{"):
		return parseConcat(text, widths)
	case strings.Contains(text, "'"):
		return parseConst(text)
	}
	return parseWire(text, widths)
}

func parseConcat(text string, widths WidthFunc) (Spec, error) {
	if !strings.HasSuffix(text, "}") {
		return Spec{}, fmt.Errorf("unterminated concatenation")
	}
	inner := strings.TrimSpace(text[1 : len(text)-1])
	if inner == "" {
		return Spec{}, nil
	}
	parts, err := splitTopLevel(inner)
	if err != nil {
		return Spec{}, err
	}
	var out Spec
	for i := len(parts) - 1; i >= 0; i-- {
		part := strings.TrimSpace(parts[i])
		if part == "" {
			return Spec{}, fmt.Errorf("empty concatenation element")
		}
		s, err := parseTerm(part, widths)
		if err != nil {
			return Spec{}, err
		}
		out = out.Append(s)
	}
	return out, nil
}

func splitTopLevel(text string) ([]string, error) {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced braces")
			}
		case ',':
			if depth == 0 {
				parts = append(parts, text[start:i])
				start = i + 1
			}
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced braces")
	}
	return append(parts, text[start:]), nil
}

func parseConst(text string) (Spec, error) {
	size, rest, ok := strings.Cut(text, "'")
	if !ok || len(rest) < 2 {
		return Spec{}, fmt.Errorf("bad constant")
	}
	n, err := strconv.Atoi(size)
	if err != nil || n <= 0 {
		return Spec{}, fmt.Errorf("bad constant width %q", size)
	}
	if rest[0] != 'b' && rest[0] != 'B' {
		return Spec{}, fmt.Errorf("only binary constants are supported")
	}
	digits := strings.ToLower(rest[1:])
	if len(digits) > n {
		return Spec{}, fmt.Errorf("constant has %d digits for width %d", len(digits), n)
	}
	for i := 0; i < len(digits); i++ {
		switch State(digits[i]) {
		case S0, S1, Sx, Sz:
		default:
			return Spec{}, fmt.Errorf("bad constant digit %q", digits[i])
		}
	}
	return Const(strings.Repeat("0", n-len(digits)) + digits), nil
}

func parseWire(text string, widths WidthFunc) (Spec, error) {
	open := strings.LastIndexByte(text, '[')
	if open < 0 {
		if strings.ContainsAny(text, "]{}, ") {
			return Spec{}, fmt.Errorf("bad wire name %q", text)
		}
		if widths == nil {
			return Spec{}, fmt.Errorf("width of wire %q unknown", text)
		}
		w, ok := widths(text)
		if !ok {
			return Spec{}, fmt.Errorf("unknown wire %q", text)
		}
		return Wire(text, w), nil
	}
	if !strings.HasSuffix(text, "]") || open == 0 {
		return Spec{}, fmt.Errorf("bad wire slice %q", text)
	}
	name := text[:open]
	rng := text[open+1 : len(text)-1]
	hiText, loText, isRange := strings.Cut(rng, ":")
	hi, err := strconv.Atoi(strings.TrimSpace(hiText))
	if err != nil {
		return Spec{}, fmt.Errorf("bad bit index in %q", text)
	}
	lo := hi
	if isRange {
		lo, err = strconv.Atoi(strings.TrimSpace(loText))
		if err != nil {
			return Spec{}, fmt.Errorf("bad bit index in %q", text)
		}
	}
	if lo < 0 || hi < lo {
		return Spec{}, fmt.Errorf("bad bit range in %q", text)
	}
	if widths != nil {
		if w, ok := widths(name); ok && hi >= w {
			return Spec{}, fmt.Errorf("bit %d out of range for wire %q of width %d", hi, name, w)
		}
	}
	return Slice(name, lo, hi-lo+1), nil
}
