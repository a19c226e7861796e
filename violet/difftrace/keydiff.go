package difftrace

import (
	"fmt"
	"io"
	"time"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/violet-project/violet-analyzer/violet/trace"
)

// KeyDiffer renders a plain unified diff of the "(function, caller)" key
// strings. It is meant for scanning which state pairs diverge at all; the
// lines cannot be mapped back to trace items.
type KeyDiffer struct {
	Context int
	Now     func() time.Time
}

// NewKeyDiffer creates a KeyDiffer with the default context.
func NewKeyDiffer() *KeyDiffer {
	return &KeyDiffer{Context: DefaultContext, Now: time.Now}
}

func keyLines(ft *trace.FunctionTrace) []string {
	keys := ft.Keys()
	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k.String() + "\n"
	}
	return lines
}

// WriteDiff writes the key diff of a and b to w and returns the number of hunks.
// The keys are matched once; the grouped opcodes are then rendered directly.
func (d *KeyDiffer) WriteDiff(w io.Writer, fromName, toName string, a, b *trace.FunctionTrace) (int, error) {
	context := d.Context
	if context < 0 {
		context = DefaultContext
	}
	groups := difflib.NewMatcher(keyLines(a), keyLines(b)).GetGroupedOpCodes(context)
	res := &Result{A: a.Items(), B: b.Items(), Hunks: hunksFromDifflib(groups)}

	now := time.Now
	if d.Now != nil {
		now = d.Now
	}
	if err := res.WriteUnified(w, fromName, toName, now(), keyFormat); err != nil {
		return 0, fmt.Errorf("writing key diff %s vs %s: %w", fromName, toName, err)
	}
	return len(res.Hunks), nil
}

func keyFormat(it trace.Item) string {
	return it.Key().String()
}

// hunksFromDifflib converts difflib's grouped opcodes. Both use the same tag bytes.
func hunksFromDifflib(groups [][]difflib.OpCode) []Hunk {
	hunks := make([]Hunk, len(groups))
	for i, g := range groups {
		codes := make([]OpCode, len(g))
		for k, c := range g {
			codes[k] = OpCode{Tag: Tag(c.Tag), I1: c.I1, I2: c.I2, J1: c.J1, J2: c.J2}
		}
		hunks[i] = Hunk{OpCodes: codes}
	}
	return hunks
}
