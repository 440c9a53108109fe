// Package directory resolves the operator and alert recipient of a seed node
// from the seed_nodes section of the configuration. Lookups are total: unknown
// nodes resolve to placeholder values.
package directory

import (
	"fmt"
	"sync"

	"github.com/obsidianstack/seedmonitor/pkg/types"
	"github.com/obsidianstack/seedmonitor/server/internal/config"
)

// UndefinedOperator is reported for nodes missing from the directory.
const UndefinedOperator = "Undefined"

// Entry describes one seed node.
type Entry struct {
	Operator  string
	Recipient string
}

// Directory is safe for concurrent use. Load swaps the whole table at once.
type Directory struct {
	mu               sync.RWMutex
	nodes            map[types.NodeAddress]Entry
	defaultRecipient string
}

// New returns an empty Directory. Every lookup returns the placeholders
// until Load is called.
func New(defaultRecipient string) *Directory {
	return &Directory{
		nodes:            make(map[types.NodeAddress]Entry),
		defaultRecipient: defaultRecipient,
	}
}

// FromConfig builds a Directory from cfg.
func FromConfig(cfg *config.Config) (*Directory, error) {
	d := New(cfg.Server.Alerts.DefaultRecipient)
	if err := d.Load(cfg); err != nil {
		return nil, err
	}
	return d, nil
}

// Load replaces the table and default recipient with the contents of cfg.
// The directory is left unchanged if any address fails to parse.
func (d *Directory) Load(cfg *config.Config) error {
	nodes := make(map[types.NodeAddress]Entry, len(cfg.SeedNodes))
	for i, n := range cfg.SeedNodes {
		addr, err := n.NodeAddress()
		if err != nil {
			return fmt.Errorf("directory: seed_nodes[%d]: %w", i, err)
		}
		nodes[addr] = Entry{Operator: n.Operator, Recipient: n.Recipient}
	}

	d.mu.Lock()
	d.nodes = nodes
	d.defaultRecipient = cfg.Server.Alerts.DefaultRecipient
	d.mu.Unlock()
	return nil
}

// Operator returns the node's operator, or UndefinedOperator.
func (d *Directory) Operator(addr types.NodeAddress) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if e, ok := d.nodes[addr]; ok && e.Operator != "" {
		return e.Operator
	}
	return UndefinedOperator
}

// AlertRecipient returns the node's recipient handle, or the default recipient.
func (d *Directory) AlertRecipient(addr types.NodeAddress) string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if e, ok := d.nodes[addr]; ok && e.Recipient != "" {
		return e.Recipient
	}
	return d.defaultRecipient
}

// Len returns the number of configured nodes.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.nodes)
}
