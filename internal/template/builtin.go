package template

import (
	"fmt"

	"github.com/robert-at-pretension-io/bram-map/internal/capability"
)

const ecp5Primitive = "$__ECP5_DP16KD"

// ECP5TrueDualPort is the DP16KD block RAM used as two read/write ports.
func ECP5TrueDualPort() *Template {
	return &Template{
		Name:      "ecp5_dp16kd_tdp",
		Primitive: ecp5Primitive,
		AddrWidth: 10,
		DataWidth: 18,
		Slots: []Slot{
			{Name: "A", Capability: capability.ReadWrite, Clock: 2, Optional: true, Transparent: true},
			{Name: "B", Capability: capability.ReadWrite, Clock: 3, Optional: true, Transparent: true},
		},
		Parameters: map[string]string{"INIT": "000000000000000"},
	}
}

// ECP5PseudoDualPort is the DP16KD block RAM used as one write port and one
// read port.
func ECP5PseudoDualPort() *Template {
	return &Template{
		Name:      "ecp5_dp16kd_pdp",
		Primitive: ecp5Primitive,
		AddrWidth: 10,
		DataWidth: 18,
		Slots: []Slot{
			{Name: "A", Capability: capability.WriteOnly, Clock: 2, Optional: true},
			{Name: "B", Capability: capability.ReadOnly, Clock: 3, Optional: true},
		},
		Parameters: map[string]string{"INIT": "000000000000000"},
	}
}

// Builtin returns a library holding the built-in templates.
func Builtin() *Library {
	l := NewLibrary()
	for _, t := range []*Template{ECP5TrueDualPort(), ECP5PseudoDualPort()} {
		if err := l.Add(t); err != nil {
			panic(fmt.Sprintf("built-in template: %v", err))
		}
	}
	return l
}
