package difftrace

import (
	"github.com/shopspring/decimal"

	"github.com/violet-project/violet-analyzer/violet/trace"
)

// LatencyDelta is the execution time change contributed by one position of
// the edit script. Aligned calls contribute b-a, removed calls -a and added
// calls +b.
type LatencyDelta struct {
	Tag    Tag
	AIndex int // -1 for inserted calls
	BIndex int // -1 for deleted calls
	Key    trace.Key
	Delta  decimal.Decimal
}

// LatencyDeltas walks the full edit script and returns one delta per call.
// A replace contributes its deletions followed by its insertions.
func (r *Result) LatencyDeltas() []LatencyDelta {
	var deltas []LatencyDelta
	for _, c := range r.OpCodes {
		switch c.Tag {
		case Equal:
			for k := 0; k < c.I2-c.I1; k++ {
				a, b := r.A[c.I1+k], r.B[c.J1+k]
				deltas = append(deltas, LatencyDelta{
					Tag: Equal, AIndex: c.I1 + k, BIndex: c.J1 + k,
					Key:   a.Key(),
					Delta: b.ExecutionTime.Sub(a.ExecutionTime),
				})
			}
		case Delete, Replace, Insert:
			for i := c.I1; i < c.I2; i++ {
				deltas = append(deltas, LatencyDelta{
					Tag: Delete, AIndex: i, BIndex: -1,
					Key:   r.A[i].Key(),
					Delta: r.A[i].ExecutionTime.Neg(),
				})
			}
			for j := c.J1; j < c.J2; j++ {
				deltas = append(deltas, LatencyDelta{
					Tag: Insert, AIndex: -1, BIndex: j,
					Key:   r.B[j].Key(),
					Delta: r.B[j].ExecutionTime,
				})
			}
		}
	}
	return deltas
}

// SumDeltas totals the deltas.
func SumDeltas(deltas []LatencyDelta) decimal.Decimal {
	total := decimal.Zero
	for _, d := range deltas {
		total = total.Add(d.Delta)
	}
	return total
}
