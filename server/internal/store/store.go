package store

import (
	"sync"
	"time"

	"github.com/obsidianstack/seedmonitor/pkg/types"
)

// Entry is a copy of one node's record together with bookkeeping data.
type Entry struct {
	Address   types.NodeAddress
	Record    *types.MetricsRecord
	UpdatedAt time.Time
	// seq is the insertion position of Address; replacing a record keeps it.
	seq uint64
}

// Store is a thread-safe in-memory record store, keyed by node address.
// Records accumulate for the lifetime of the process.
type Store struct {
	mu          sync.RWMutex
	data        map[types.NodeAddress]*Entry
	nextSeq     uint64
	lastCheckTs time.Time
	now         func() time.Time // injectable for deterministic tests
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		data: make(map[types.NodeAddress]*Entry),
		now:  time.Now,
	}
}

// Put stores or replaces the record for addr. The store keeps its own copy.
func (s *Store) Put(addr types.NodeAddress, rec *types.MetricsRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryFor(addr)
	e.Record = rec.Clone()
	e.UpdatedAt = s.now()
}

// Append adds one probe attempt to the record for addr, creating the record
// when the node is new. The three sequences are extended under one lock so
// readers never observe a half-written attempt.
func (s *Store) Append(addr types.NodeAddress, sample types.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := s.entryFor(addr)
	e.Record.Append(sample)
	e.UpdatedAt = s.now()
}

// Get returns a copy of the record for addr and whether one was found.
func (s *Store) Get(addr types.NodeAddress) (*types.MetricsRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.data[addr]
	if !ok {
		return nil, false
	}
	return e.Record.Clone(), true
}

// Snapshot returns deep copies of all entries in insertion order.
func (s *Store) Snapshot() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// seq values are dense because entries are never removed.
	out := make([]Entry, len(s.data))
	for _, e := range s.data {
		out[e.seq] = Entry{
			Address:   e.Address,
			Record:    e.Record.Clone(),
			UpdatedAt: e.UpdatedAt,
			seq:       e.seq,
		}
	}
	return out
}

// Count returns the number of nodes held.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// MarkCheckStarted records when the probe source began its latest check round.
func (s *Store) MarkCheckStarted(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastCheckTs = t
}

// LastCheckStarted returns the time set by MarkCheckStarted, or the zero time.
func (s *Store) LastCheckStarted() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastCheckTs
}

// entryFor returns the entry for addr, creating it. Callers hold s.mu.
func (s *Store) entryFor(addr types.NodeAddress) *Entry {
	if e, ok := s.data[addr]; ok {
		return e
	}
	e := &Entry{Address: addr, Record: &types.MetricsRecord{}, seq: s.nextSeq}
	s.nextSeq++
	s.data[addr] = e
	return e
}
