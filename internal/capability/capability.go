// Package capability models what a memory port can do.
package capability

import (
	"fmt"
	"strings"
)

// Set is a set of port capabilities. WriteOnly and ReadOnly combine into
// ReadWrite; AsyncRead is an independent flag.
type Set uint8

const (
	WriteOnly Set = 1 << iota
	ReadOnly
	AsyncRead

	None      Set = 0
	ReadWrite     = WriteOnly | ReadOnly
)

// Union returns the capabilities present in either set.
func (s Set) Union(o Set) Set {
	return s | o
}

// SubsetOf reports whether every capability in s is also in o.
func (s Set) SubsetOf(o Set) bool {
	return s&o == s
}

// Has reports whether all capabilities in o are in s.
func (s Set) Has(o Set) bool {
	return o.SubsetOf(s)
}

// CanRead reports whether the set includes a read side.
func (s Set) CanRead() bool {
	return s&ReadOnly != 0
}

// CanWrite reports whether the set includes a write side.
func (s Set) CanWrite() bool {
	return s&WriteOnly != 0
}

// Ordinal is the sort key used by the allocator. AsyncRead does not change
// it.
func (s Set) Ordinal() int {
	return int(s & ReadWrite)
}

func (s Set) String() string {
	var base string
	switch s & ReadWrite {
	case None:
		base = "none"
	case WriteOnly:
		base = "wo"
	case ReadOnly:
		base = "ro"
	case ReadWrite:
		base = "rw"
	}
	if s&AsyncRead != 0 {
		return base + "+async"
	}
	return base
}

// Parse reads the String form ("wo", "ro", "rw", optional "+async").
func Parse(text string) (Set, error) {
	base, async, _ := strings.Cut(strings.ToLower(strings.TrimSpace(text)), "+")
	var s Set
	switch base {
	case "none":
	case "wo":
		s = WriteOnly
	case "ro":
		s = ReadOnly
	case "rw":
		s = ReadWrite
	default:
		return None, fmt.Errorf("unknown capability %q", text)
	}
	switch async {
	case "":
	case "async":
		s |= AsyncRead
	default:
		return None, fmt.Errorf("unknown capability flag %q", async)
	}
	return s, nil
}

// MarshalText implements encoding.TextMarshaler.
func (s Set) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Set) UnmarshalText(text []byte) error {
	v, err := Parse(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}
