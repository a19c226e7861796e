package trace

import (
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/zeebo/xxh3"
)

// StateSummary is one row of a Summary.
type StateSummary struct {
	StateID         int    `yaml:"state_id"`
	InstrCnt        uint64 `yaml:"instructions"`
	SyscallCnt      uint64 `yaml:"syscalls"`
	ExecutionTimeMs string `yaml:"execution_time_ms"`
	Items           int    `yaml:"items"`
	Fingerprint     string `yaml:"fingerprint"` // xxh3 of the key sequence, hex
}

// Summary aggregates statistics over a CostTable.
type Summary struct {
	TotalStates       int            `yaml:"total_states"`
	TotalItems        int            `yaml:"total_items"`
	TotalInstructions uint64         `yaml:"total_instructions"`
	TotalSyscalls     uint64         `yaml:"total_syscalls"`
	TotalTimeMs       string         `yaml:"total_execution_time_ms"`
	DistinctTraces    int            `yaml:"distinct_traces"`
	States            []StateSummary `yaml:"states"`
}

// Fingerprint hashes the key sequence of a trace. Traces with equal key
// sequences have equal fingerprints, so they diff to zero hunks.
func Fingerprint(ft *FunctionTrace) uint64 {
	var sb strings.Builder
	for _, k := range ft.Keys() {
		sb.WriteString(k.Function)
		sb.WriteByte(',')
		sb.WriteString(k.Caller)
		sb.WriteByte('\n')
	}
	return xxh3.HashString(sb.String())
}

// Summarize computes aggregate statistics from a CostTable, states in ascending id order.
// Safe for nil or empty tables (returns zero-value fields).
func Summarize(t *CostTable) *Summary {
	summary := &Summary{
		TotalTimeMs: decimal.Zero.String(),
		States:      make([]StateSummary, 0),
	}
	if t == nil {
		return summary
	}

	total := decimal.Zero
	fingerprints := make(map[uint64]struct{})
	for _, id := range t.StateIDs() {
		r, _ := t.Get(id)
		fp := Fingerprint(r.Trace())
		fingerprints[fp] = struct{}{}

		summary.States = append(summary.States, StateSummary{
			StateID:         id,
			InstrCnt:        r.InstrCnt,
			SyscallCnt:      r.SyscallCnt,
			ExecutionTimeMs: r.ExecutionTime.String(),
			Items:           r.Trace().Len(),
			Fingerprint:     strconv.FormatUint(fp, 16),
		})
		summary.TotalItems += r.Trace().Len()
		summary.TotalInstructions += r.InstrCnt
		summary.TotalSyscalls += r.SyscallCnt
		total = total.Add(r.ExecutionTime)
	}

	summary.TotalStates = len(summary.States)
	summary.TotalTimeMs = total.String()
	summary.DistinctTraces = len(fingerprints)
	return summary
}
