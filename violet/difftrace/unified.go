package difftrace

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/violet-project/violet-analyzer/violet/trace"
)

// TimestampLayout is the layout of the timestamps in the ---/+++ header lines.
const TimestampLayout = "2006-01-02 15:04:05 -0700"

// ItemFormatter renders a trace item as the body of a diff line.
type ItemFormatter func(trace.Item) string

// Hunk is one context-bounded group of opcodes.
type Hunk struct {
	OpCodes []OpCode
}

// Ranges returns the unified diff ranges of the hunk in the first and second trace.
func (h Hunk) Ranges() (string, string) {
	first, last := h.OpCodes[0], h.OpCodes[len(h.OpCodes)-1]
	return formatRange(first.I1, last.I2), formatRange(first.J1, last.J2)
}

// Header returns the "@@ -r1 +r2 @@" line of the hunk.
func (h Hunk) Header() string {
	r1, r2 := h.Ranges()
	return fmt.Sprintf("@@ -%s +%s @@", r1, r2)
}

// Line is one body line of a hunk. AIndex and BIndex point back into the
// compared traces; the side a line does not come from has index -1.
type Line struct {
	Op     byte // ' ', '-' or '+'
	AIndex int
	BIndex int
	Item   trace.Item
}

// Result is the difference between two traces. It keeps the items of both
// sides so every diff line can be mapped back to the call it came from.
type Result struct {
	A, B    []trace.Item
	OpCodes []OpCode // full edit script
	Hunks   []Hunk   // grouped with the differ's context
}

// Empty reports whether the traces have identical key sequences.
func (r *Result) Empty() bool {
	return len(r.Hunks) == 0
}

// Lines expands a hunk into its body lines in output order.
func (r *Result) Lines(h Hunk) []Line {
	var lines []Line
	for _, c := range h.OpCodes {
		if c.Tag == Equal {
			for k := 0; k < c.I2-c.I1; k++ {
				lines = append(lines, Line{Op: ' ', AIndex: c.I1 + k, BIndex: c.J1 + k, Item: r.A[c.I1+k]})
			}
			continue
		}
		if c.Tag == Replace || c.Tag == Delete {
			for i := c.I1; i < c.I2; i++ {
				lines = append(lines, Line{Op: '-', AIndex: i, BIndex: -1, Item: r.A[i]})
			}
		}
		if c.Tag == Replace || c.Tag == Insert {
			for j := c.J1; j < c.J2; j++ {
				lines = append(lines, Line{Op: '+', AIndex: -1, BIndex: j, Item: r.B[j]})
			}
		}
	}
	return lines
}

// WriteUnified renders the result as a unified diff. Nothing, not even the
// file headers, is written when the result has no hunks.
func (r *Result) WriteUnified(w io.Writer, fromName, toName string, stamp time.Time, format ItemFormatter) error {
	if r.Empty() {
		return nil
	}
	if format == nil {
		format = trace.Item.String
	}
	bw := bufio.NewWriter(w)
	ts := stamp.Format(TimestampLayout)
	fmt.Fprintf(bw, "--- %s\t%s\n", fromName, ts)
	fmt.Fprintf(bw, "+++ %s\t%s\n", toName, ts)
	for _, h := range r.Hunks {
		fmt.Fprintln(bw, h.Header())
		for _, l := range r.Lines(h) {
			bw.WriteByte(l.Op)
			bw.WriteString(format(l.Item))
			bw.WriteByte('\n')
		}
	}
	return bw.Flush()
}

// Differ diffs traces item by item and renders the items themselves.
type Differ struct {
	Context int           // unchanged lines around each change; negative selects DefaultContext
	Format  ItemFormatter // nil renders trace.Item.String
	Now     func() time.Time
}

// NewDiffer creates a Differ with the default context and formatting.
func NewDiffer() *Differ {
	return &Differ{Context: DefaultContext, Now: time.Now}
}

// Diff aligns the key sequences of a and b.
func (d *Differ) Diff(a, b *trace.FunctionTrace) *Result {
	codes := OpCodes(a.Keys(), b.Keys())
	groups := GroupOpCodes(codes, d.Context)
	hunks := make([]Hunk, len(groups))
	for i, g := range groups {
		hunks[i] = Hunk{OpCodes: g}
	}
	return &Result{A: a.Items(), B: b.Items(), OpCodes: codes, Hunks: hunks}
}

// WriteDiff diffs a and b and writes the unified diff to w. It returns the
// number of hunks written.
func (d *Differ) WriteDiff(w io.Writer, fromName, toName string, a, b *trace.FunctionTrace) (int, error) {
	res := d.Diff(a, b)
	if err := res.WriteUnified(w, fromName, toName, d.now(), d.Format); err != nil {
		return 0, fmt.Errorf("writing diff %s vs %s: %w", fromName, toName, err)
	}
	return len(res.Hunks), nil
}

func (d *Differ) now() time.Time {
	if d.Now == nil {
		return time.Now()
	}
	return d.Now()
}
