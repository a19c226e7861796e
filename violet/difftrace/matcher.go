// Package difftrace computes and renders the difference between two call traces.
//
// Traces are compared by the identity key of their items. Alignment uses the
// Ratcliff/Obershelp approach: find the longest contiguous matching block,
// then repeat on the unmatched ranges to either side of it. No junk or
// popularity heuristics are applied, so the result depends only on the input.
package difftrace

import "sort"

// Match is a matching block: a[A:A+Size] equals b[B:B+Size].
type Match struct {
	A, B, Size int
}

type span struct {
	alo, ahi, blo, bhi int
}

// matcher indexes the second sequence for longest-match queries.
type matcher[T comparable] struct {
	a, b []T
	b2j  map[T][]int // element -> ascending positions in b
}

func newMatcher[T comparable](a, b []T) *matcher[T] {
	b2j := make(map[T][]int)
	for j, elt := range b {
		b2j[elt] = append(b2j[elt], j)
	}
	return &matcher[T]{a: a, b: b, b2j: b2j}
}

// longestMatch finds the longest matching block in a[alo:ahi] and b[blo:bhi].
// Among equally long blocks it returns the one starting earliest in a, then
// earliest in b. Size is 0 when the ranges share nothing.
func (m *matcher[T]) longestMatch(alo, ahi, blo, bhi int) Match {
	best := Match{A: alo, B: blo}
	// j2len[j] is the length of the match ending at a[i-1], b[j].
	j2len := map[int]int{}
	for i := alo; i < ahi; i++ {
		newj2len := map[int]int{}
		for _, j := range m.b2j[m.a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}
			k := j2len[j-1] + 1
			newj2len[j] = k
			if k > best.Size {
				best = Match{A: i - k + 1, B: j - k + 1, Size: k}
			}
		}
		j2len = newj2len
	}
	return best
}

// matchingBlocks returns the matching blocks in ascending order, adjacent
// blocks merged, terminated by the sentinel {len(a), len(b), 0}.
func (m *matcher[T]) matchingBlocks() []Match {
	la, lb := len(m.a), len(m.b)

	var blocks []Match
	stack := []span{{0, la, 0, lb}}
	for len(stack) > 0 {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		x := m.longestMatch(s.alo, s.ahi, s.blo, s.bhi)
		if x.Size == 0 {
			continue
		}
		blocks = append(blocks, x)
		if s.alo < x.A && s.blo < x.B {
			stack = append(stack, span{s.alo, x.A, s.blo, x.B})
		}
		if x.A+x.Size < s.ahi && x.B+x.Size < s.bhi {
			stack = append(stack, span{x.A + x.Size, s.ahi, x.B + x.Size, s.bhi})
		}
	}
	sort.Slice(blocks, func(i, j int) bool {
		if blocks[i].A != blocks[j].A {
			return blocks[i].A < blocks[j].A
		}
		return blocks[i].B < blocks[j].B
	})

	merged := make([]Match, 0, len(blocks)+1)
	for _, blk := range blocks {
		if n := len(merged); n > 0 {
			last := &merged[n-1]
			if last.A+last.Size == blk.A && last.B+last.Size == blk.B {
				last.Size += blk.Size
				continue
			}
		}
		merged = append(merged, blk)
	}
	return append(merged, Match{A: la, B: lb, Size: 0})
}

// MatchingBlocks returns the matching blocks of a and b in ascending order,
// terminated by the sentinel {len(a), len(b), 0}.
func MatchingBlocks[T comparable](a, b []T) []Match {
	return newMatcher(a, b).matchingBlocks()
}
