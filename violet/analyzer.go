package violet

import (
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/violet-project/violet-analyzer/violet/difftrace"
	"github.com/violet-project/violet-analyzer/violet/trace"
)

// StatePrefix is the label prefix of a state in diff headers and dump files.
const StatePrefix = "violet_trace_state_"

// StateLabel returns the label of a state, e.g. "violet_trace_state_3".
func StateLabel(stateID int) string {
	return StatePrefix + strconv.Itoa(stateID)
}

// TraceDiffer writes the difference between two traces to w and returns the
// number of hunks written. Identical traces write nothing.
type TraceDiffer interface {
	WriteDiff(w io.Writer, fromName, toName string, a, b *trace.FunctionTrace) (int, error)
}

var (
	_ TraceDiffer = (*difftrace.Differ)(nil)
	_ TraceDiffer = (*difftrace.KeyDiffer)(nil)
)

// Options configures an Analyzer.
type Options struct {
	// LatencyThreshold skips pairs whose root execution times differ
	// relatively by less than this fraction. Zero, NaN and infinite values
	// compare every pair.
	LatencyThreshold float64
}

// PairReport is the outcome of comparing two states.
type PairReport struct {
	First, Second int
	Hunks         int
	Skipped       bool
	LatencyDelta  decimal.Decimal // Second minus First, root items only
}

// Report is the outcome of Analyze.
type Report struct {
	Pairs []PairReport
}

// Compared returns the number of pairs that were diffed.
func (r *Report) Compared() int {
	n := 0
	for _, p := range r.Pairs {
		if !p.Skipped {
			n++
		}
	}
	return n
}

// Divergent returns the number of pairs whose traces differ.
func (r *Report) Divergent() int {
	n := 0
	for _, p := range r.Pairs {
		if p.Hunks > 0 {
			n++
		}
	}
	return n
}

// Analyzer compares the traces of all states in a cost table.
type Analyzer struct {
	differ TraceDiffer
	opts   Options
	log    logrus.FieldLogger

	// threshold is LatencyThreshold as a decimal; zero disables skipping.
	threshold decimal.Decimal
}

// NewAnalyzer creates an Analyzer. A nil logger discards log output.
func NewAnalyzer(differ TraceDiffer, opts Options, log logrus.FieldLogger) *Analyzer {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	a := &Analyzer{differ: differ, opts: opts, log: log}
	if x := opts.LatencyThreshold; x > 0 && !math.IsInf(x, 0) {
		a.threshold = decimal.NewFromFloat(x)
	}
	return a
}

// Analyze diffs every unordered pair of states, lower id first, in ascending
// id order and writes each diff to w. A table with fewer than two states
// writes nothing.
func (a *Analyzer) Analyze(table *trace.CostTable, w io.Writer) (*Report, error) {
	ids := table.StateIDs()
	report := &Report{}
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			first, _ := table.Get(ids[i])
			second, _ := table.Get(ids[j])
			pair, err := a.ComparePair(first, second, w)
			if err != nil {
				return report, err
			}
			report.Pairs = append(report.Pairs, pair)
		}
	}
	a.log.WithFields(logrus.Fields{
		"states":    len(ids),
		"pairs":     len(report.Pairs),
		"compared":  report.Compared(),
		"divergent": report.Divergent(),
	}).Info("Trace analysis finished")
	return report, nil
}

// ComparePair diffs the traces of two records and writes the diff to w.
func (a *Analyzer) ComparePair(first, second *trace.StateCostRecord, w io.Writer) (PairReport, error) {
	pair := PairReport{
		First:        first.StateID,
		Second:       second.StateID,
		LatencyDelta: second.ExecutionTime.Sub(first.ExecutionTime),
	}
	log := a.log.WithField("pair", fmt.Sprintf("%d-%d", first.StateID, second.StateID))

	if a.belowThreshold(first.ExecutionTime, second.ExecutionTime) {
		log.WithField("delta_ms", pair.LatencyDelta.String()).Debug("Skipping pair below latency threshold")
		pair.Skipped = true
		return pair, nil
	}

	hunks, err := a.differ.WriteDiff(w, StateLabel(first.StateID), StateLabel(second.StateID), first.Trace(), second.Trace())
	if err != nil {
		return pair, fmt.Errorf("comparing state %d with state %d: %w", first.StateID, second.StateID, err)
	}
	pair.Hunks = hunks
	log.WithFields(logrus.Fields{
		"hunks":    hunks,
		"delta_ms": pair.LatencyDelta.String(),
	}).Debug("Compared states")
	return pair, nil
}

// belowThreshold reports whether |tj-ti| / min(ti, tj) is under the
// configured threshold. A zero minimum never counts as below.
func (a *Analyzer) belowThreshold(ti, tj decimal.Decimal) bool {
	if !a.threshold.IsPositive() {
		return false
	}
	low := decimal.Min(ti, tj)
	if !low.IsPositive() {
		return false
	}
	rel := tj.Sub(ti).Abs().Div(low)
	return rel.LessThan(a.threshold)
}
