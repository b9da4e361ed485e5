package calendar

import "sort"

// PositionType classifies a grid index inside its cumulation period.
// A one-day period is both First and Last.
type PositionType uint8

const (
	PositionFirst PositionType = 1 << iota
	PositionLast

	PositionDefault PositionType = 0
)

func (p PositionType) IsFirst() bool { return p&PositionFirst != 0 }
func (p PositionType) IsLast() bool  { return p&PositionLast != 0 }

func (p PositionType) String() string {
	switch {
	case p.IsFirst() && p.IsLast():
		return "first|last"
	case p.IsFirst():
		return "first"
	case p.IsLast():
		return "last"
	default:
		return "default"
	}
}

// Boundaries partition a grid of n positions into cumulation periods.
// Classification is a binary search over the sorted starts, so a Boundaries
// value is safe for concurrent readers.
type Boundaries struct {
	starts []int
	n      int
}

// NewBoundaries builds boundaries from sorted period starts. Position 0
// always opens a period.
func NewBoundaries(starts []int, n int) Boundaries {
	s := make([]int, 0, len(starts)+1)
	if len(starts) == 0 || starts[0] != 0 {
		s = append(s, 0)
	}
	for _, v := range starts {
		if v >= 0 && v < n && (len(s) == 0 || v > s[len(s)-1]) {
			s = append(s, v)
		}
	}
	return Boundaries{starts: s, n: n}
}

// Len is the number of grid positions covered
func (b Boundaries) Len() int { return b.n }

// Starts returns the period start indices
func (b Boundaries) Starts() []int { return b.starts }

func (b Boundaries) isStart(pos int) bool {
	i := sort.SearchInts(b.starts, pos)
	return i < len(b.starts) && b.starts[i] == pos
}

// Classify returns the position type of pos
func (b Boundaries) Classify(pos int) PositionType {
	t := PositionDefault
	if b.isStart(pos) {
		t |= PositionFirst
	}
	if pos == b.n-1 || b.isStart(pos+1) {
		t |= PositionLast
	}
	return t
}

// Periods returns the [start, end) index ranges of all cumulation periods
func (b Boundaries) Periods() [][2]int {
	out := make([][2]int, 0, len(b.starts))
	for i, s := range b.starts {
		e := b.n
		if i+1 < len(b.starts) {
			e = b.starts[i+1]
		}
		out = append(out, [2]int{s, e})
	}
	return out
}
