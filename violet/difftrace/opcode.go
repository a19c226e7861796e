package difftrace

import "fmt"

// DefaultContext is the number of unchanged lines shown around each change.
const DefaultContext = 3

// Tag identifies the kind of an OpCode. The values are the one-letter codes
// used by difflib so opcode lists can be compared directly.
type Tag byte

const (
	Equal   Tag = 'e'
	Insert  Tag = 'i'
	Delete  Tag = 'd'
	Replace Tag = 'r'
)

func (t Tag) String() string {
	switch t {
	case Equal:
		return "equal"
	case Insert:
		return "insert"
	case Delete:
		return "delete"
	case Replace:
		return "replace"
	default:
		return fmt.Sprintf("Tag(%d)", byte(t))
	}
}

// OpCode describes how to turn a[I1:I2] into b[J1:J2].
type OpCode struct {
	Tag    Tag
	I1, I2 int
	J1, J2 int
}

func (c OpCode) String() string {
	return fmt.Sprintf("%s a[%d:%d] b[%d:%d]", c.Tag, c.I1, c.I2, c.J1, c.J2)
}

// OpCodes returns the edit script turning a into b. Ranges are half-open and
// consecutive opcodes tile both sequences.
func OpCodes[T comparable](a, b []T) []OpCode {
	return opCodesFromBlocks(MatchingBlocks(a, b))
}

func opCodesFromBlocks(blocks []Match) []OpCode {
	var codes []OpCode
	i, j := 0, 0
	for _, m := range blocks {
		var tag Tag
		switch {
		case i < m.A && j < m.B:
			tag = Replace
		case i < m.A:
			tag = Delete
		case j < m.B:
			tag = Insert
		}
		if tag != 0 {
			codes = append(codes, OpCode{Tag: tag, I1: i, I2: m.A, J1: j, J2: m.B})
		}
		i, j = m.A+m.Size, m.B+m.Size
		if m.Size > 0 {
			codes = append(codes, OpCode{Tag: Equal, I1: m.A, I2: i, J1: m.B, J2: j})
		}
	}
	return codes
}

// GroupOpCodes splits an edit script into hunks with at most n lines of
// unchanged context on each side. A negative n selects DefaultContext.
//
// Leading and trailing equal runs are cut down to n lines. An equal run
// longer than 2n between two changes ends one hunk and starts the next. A
// script without changes yields no hunks.
func GroupOpCodes(codes []OpCode, n int) [][]OpCode {
	if n < 0 {
		n = DefaultContext
	}
	codes = append([]OpCode(nil), codes...)
	if len(codes) == 0 {
		codes = []OpCode{{Tag: Equal, I1: 0, I2: 1, J1: 0, J2: 1}}
	}
	if c := codes[0]; c.Tag == Equal {
		codes[0] = OpCode{Tag: Equal, I1: max(c.I1, c.I2-n), I2: c.I2, J1: max(c.J1, c.J2-n), J2: c.J2}
	}
	if c := codes[len(codes)-1]; c.Tag == Equal {
		codes[len(codes)-1] = OpCode{Tag: Equal, I1: c.I1, I2: min(c.I2, c.I1+n), J1: c.J1, J2: min(c.J2, c.J1+n)}
	}

	nn := n + n
	var groups [][]OpCode
	var group []OpCode
	for _, c := range codes {
		i1, j1 := c.I1, c.J1
		if c.Tag == Equal && c.I2-c.I1 > nn {
			group = append(group, OpCode{Tag: Equal, I1: i1, I2: min(c.I2, i1+n), J1: j1, J2: min(c.J2, j1+n)})
			groups = append(groups, group)
			group = nil
			i1, j1 = max(i1, c.I2-n), max(j1, c.J2-n)
		}
		group = append(group, OpCode{Tag: c.Tag, I1: i1, I2: c.I2, J1: j1, J2: c.J2})
	}
	if len(group) > 0 && !(len(group) == 1 && group[0].Tag == Equal) {
		groups = append(groups, group)
	}
	return groups
}

// formatRange renders a half-open range in unified diff notation: 1-based
// start, the count omitted when it is 1, and an empty range reported at the
// line before it.
func formatRange(start, stop int) string {
	beginning := start + 1
	length := stop - start
	if length == 1 {
		return fmt.Sprintf("%d", beginning)
	}
	if length == 0 {
		beginning--
	}
	return fmt.Sprintf("%d,%d", beginning, length)
}
