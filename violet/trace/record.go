package trace

import (
	"sort"

	"github.com/shopspring/decimal"
)

// FunctionTrace is the ordered list of calls observed in one execution state.
// Order is the log order and reflects call order; the list is append-only.
type FunctionTrace struct {
	items []Item
}

// Append adds an item at the end of the trace.
func (ft *FunctionTrace) Append(item Item) {
	ft.items = append(ft.items, item)
}

// Len returns the number of items in the trace.
func (ft *FunctionTrace) Len() int {
	if ft == nil {
		return 0
	}
	return len(ft.items)
}

// At returns the i-th item.
func (ft *FunctionTrace) At(i int) Item {
	return ft.items[i]
}

// Items returns a copy of the items in trace order.
func (ft *FunctionTrace) Items() []Item {
	if ft == nil {
		return nil
	}
	out := make([]Item, len(ft.items))
	copy(out, ft.items)
	return out
}

// Keys returns the identity key of every item in trace order.
func (ft *FunctionTrace) Keys() []Key {
	if ft == nil {
		return nil
	}
	keys := make([]Key, len(ft.items))
	for i, it := range ft.items {
		keys[i] = it.Key()
	}
	return keys
}

// StateCostRecord aggregates the profiling data of a single execution state.
type StateCostRecord struct {
	StateID    int
	InstrCnt   uint64
	SyscallCnt uint64
	// ExecutionTime is the sum of the execution times of the root-level items
	// of the trace, in milliseconds. Nested calls are already included in the
	// time of their root.
	ExecutionTime decimal.Decimal

	trace FunctionTrace
}

// NewStateCostRecord creates a record with an empty trace and zero execution time.
func NewStateCostRecord(stateID int, instrCnt, syscallCnt uint64) *StateCostRecord {
	return &StateCostRecord{
		StateID:       stateID,
		InstrCnt:      instrCnt,
		SyscallCnt:    syscallCnt,
		ExecutionTime: decimal.Zero,
	}
}

// AddItem appends the item to the record's trace. Root-level items also add
// their execution time to the record's cumulative execution time.
func (r *StateCostRecord) AddItem(item Item) {
	if item.IsRoot() {
		r.ExecutionTime = r.ExecutionTime.Add(item.ExecutionTime)
	}
	r.trace.Append(item)
}

// Trace returns the record's function trace.
func (r *StateCostRecord) Trace() *FunctionTrace {
	return &r.trace
}

// CostTable maps state ids to their cost records.
type CostTable struct {
	records map[int]*StateCostRecord
}

// NewCostTable creates an empty CostTable.
func NewCostTable() *CostTable {
	return &CostTable{records: make(map[int]*StateCostRecord)}
}

// Put stores the record under its state id, replacing any existing record.
func (t *CostTable) Put(record *StateCostRecord) {
	t.records[record.StateID] = record
}

// Get returns the record for the state id, if any.
func (t *CostTable) Get(stateID int) (*StateCostRecord, bool) {
	r, ok := t.records[stateID]
	return r, ok
}

// GetOrCreate returns the record for the state id. When none exists it inserts
// a record with zero instruction and syscall counts and reports created=true.
func (t *CostTable) GetOrCreate(stateID int) (record *StateCostRecord, created bool) {
	if r, ok := t.records[stateID]; ok {
		return r, false
	}
	r := NewStateCostRecord(stateID, 0, 0)
	t.records[stateID] = r
	return r, true
}

// StateIDs returns all state ids in ascending order.
func (t *CostTable) StateIDs() []int {
	ids := make([]int, 0, len(t.records))
	for id := range t.records {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Len returns the number of records.
func (t *CostTable) Len() int {
	return len(t.records)
}
