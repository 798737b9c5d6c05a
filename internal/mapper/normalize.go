package mapper

import (
	"fmt"

	"github.com/robert-at-pretension-io/bram-map/internal/memcell"
	"github.com/robert-at-pretension-io/bram-map/internal/sig"
)

// ClockDomainKey identifies a clock domain. Ports with equal keys share one
// physical clock edge and may fold into one physical port.
type ClockDomainKey struct {
	Clock    string `json:"clock"`
	Polarity bool   `json:"polarity"`
	Enable   bool   `json:"enable"`
}

func (k ClockDomainKey) String() string {
	return fmt.Sprintf("%s_%s_%s", k.Clock, flagKey(k.Polarity), flagKey(k.Enable))
}

func flagKey(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

// PortKind distinguishes read and write ports.
type PortKind string

const (
	ReadPort  PortKind = "read"
	WritePort PortKind = "write"
)

// PortRecord is one logical port of a memory cell.
type PortRecord struct {
	Kind        PortKind
	Index       int
	Key         ClockDomainKey
	Clock       sig.Spec
	Addr        sig.Spec
	Enable      sig.Spec
	Data        sig.Spec
	ClockEnable bool
	Transparent bool
}

// Normalize turns a descriptor into one record per read port followed by one
// record per write port, in port index order.
func Normalize(d *memcell.Descriptor) ([]PortRecord, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}

	records := make([]PortRecord, 0, d.ReadPorts+d.WritePorts)
	records = appendRecords(records, ReadPort, d.ReadPorts, &d.Read)
	records = appendRecords(records, WritePort, d.WritePorts, &d.Write)
	return records, nil
}

func appendRecords(out []PortRecord, kind PortKind, n int, p *memcell.PortArrays) []PortRecord {
	for j := 0; j < n; j++ {
		out = append(out, PortRecord{
			Kind:  kind,
			Index: j,
			Key: ClockDomainKey{
				Clock:    p.Clock[j].ID(),
				Polarity: p.ClockPolarity[j],
				Enable:   p.ClockEnable[j],
			},
			Clock:       p.Clock[j],
			Addr:        p.Addr[j],
			Enable:      p.Enable[j],
			Data:        p.Data[j],
			ClockEnable: p.ClockEnable[j],
			Transparent: p.Transparent[j],
		})
	}
	return out
}
