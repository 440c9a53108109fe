package store

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/obsidianstack/seedmonitor/pkg/types"
)

// Dump is the serialisable form of a Store, used to render reports offline.
type Dump struct {
	LastCheckStarted time.Time  `json:"last_check_started"`
	Nodes            []DumpNode `json:"nodes"`
}

// DumpNode is one node of a Dump. Request durations are in nanoseconds.
type DumpNode struct {
	Node   types.NodeAddress    `json:"node"`
	Record *types.MetricsRecord `json:"record"`
}

// Export returns the contents of s in insertion order.
func (s *Store) Export() Dump {
	snap := s.Snapshot()
	d := Dump{LastCheckStarted: s.LastCheckStarted(), Nodes: make([]DumpNode, len(snap))}
	for i, e := range snap {
		d.Nodes[i] = DumpNode{Node: e.Address, Record: e.Record}
	}
	return d
}

// Import builds a Store holding the nodes of d in their listed order.
func Import(d Dump) *Store {
	s := New()
	for _, n := range d.Nodes {
		s.Put(n.Node, n.Record)
	}
	s.MarkCheckStarted(d.LastCheckStarted)
	return s
}

// ReadDump decodes a Dump from r.
func ReadDump(r io.Reader) (Dump, error) {
	var d Dump
	if err := json.NewDecoder(r).Decode(&d); err != nil {
		return Dump{}, fmt.Errorf("store: decode dump: %w", err)
	}
	return d, nil
}
