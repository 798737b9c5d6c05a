package mapper

import (
	"fmt"
	"strings"

	"github.com/robert-at-pretension-io/bram-map/internal/capability"
	"github.com/robert-at-pretension-io/bram-map/internal/sig"
)

// UnmappedPortsError reports port groups no slot of the template could host.
type UnmappedPortsError struct {
	Cell     string
	Template string
	Keys     []ClockDomainKey
	Caps     []capability.Set
}

func (e *UnmappedPortsError) Error() string {
	parts := make([]string, len(e.Keys))
	for i, k := range e.Keys {
		parts[i] = fmt.Sprintf("%s (%s)", k, e.Caps[i])
	}
	return fmt.Sprintf("cell %s: %d port group(s) left unmapped on template %s: %s",
		e.Cell, len(e.Keys), e.Template, strings.Join(parts, ", "))
}

// UnboundSlotsError reports non-optional slots that received no group.
type UnboundSlotsError struct {
	Cell     string
	Template string
	Slots    []string
}

func (e *UnboundSlotsError) Error() string {
	return fmt.Sprintf("cell %s: required slot(s) %s of template %s left unbound",
		e.Cell, strings.Join(e.Slots, ", "), e.Template)
}

// DivergentAddressError is returned in strict mode when two write ports of
// one clock domain use different address signals.
type DivergentAddressError struct {
	Cell string
	Key  ClockDomainKey
	Port int
	Want sig.Spec
	Got  sig.Spec
}

func (e *DivergentAddressError) Error() string {
	return fmt.Sprintf("cell %s: write port %d in clock domain %s addresses %s, domain is addressed by %s",
		e.Cell, e.Port, e.Key, e.Got, e.Want)
}

// FoldedWriteError is returned in strict mode when a second write port folds
// into a clock domain. A physical port wires one write, so the later port
// would be lost.
type FoldedWriteError struct {
	Cell string
	Key  ClockDomainKey
	Port int
	Kept int
}

func (e *FoldedWriteError) Error() string {
	return fmt.Sprintf("cell %s: write port %d shares clock domain %s with write port %d and cannot be wired",
		e.Cell, e.Port, e.Key, e.Kept)
}

// ClockConflictError reports two bound slots that share a clock pin but host
// groups on different clocks.
type ClockConflictError struct {
	Cell     string
	Template string
	Pin      string
	First    sig.Spec
	Second   sig.Spec
}

func (e *ClockConflictError) Error() string {
	return fmt.Sprintf("cell %s: clock pin %s of template %s shared by slots with clocks %s and %s",
		e.Cell, e.Pin, e.Template, e.First, e.Second)
}

// Attempt is one failed template tried by MapFirst.
type Attempt struct {
	Template string
	Err      error
}

// AttemptsError collects the failures of every candidate template.
type AttemptsError struct {
	Cell     string
	Attempts []Attempt
}

func (e *AttemptsError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = fmt.Sprintf("%s: %v", a.Template, a.Err)
	}
	return fmt.Sprintf("cell %s: no template fits (%s)", e.Cell, strings.Join(parts, "; "))
}

// Unwrap exposes the per-template errors to errors.Is and errors.As.
func (e *AttemptsError) Unwrap() []error {
	errs := make([]error, len(e.Attempts))
	for i, a := range e.Attempts {
		errs[i] = a.Err
	}
	return errs
}
