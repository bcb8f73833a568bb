package esg

import "fmt"

// Range is the half-open path interval [Start, End)
type Range struct {
	Start int
	End   int
}

// Len returns the number of paths in the range
func (r Range) Len() int {
	return r.End - r.Start
}

func (r Range) String() string {
	return fmt.Sprintf("[%d, %d)", r.Start, r.End)
}

// Partition splits [0, n) into w contiguous ranges in order. Range i is
// [floor(i·n/w), floor((i+1)·n/w)), so sizes differ by at most one and
// empty ranges appear when w > n. w <= 0 is treated as 1.
func Partition(n, w int) []Range {
	if w <= 0 {
		w = 1
	}
	if n < 0 {
		n = 0
	}
	out := make([]Range, w)
	for i := 0; i < w; i++ {
		out[i] = Range{Start: i * n / w, End: (i + 1) * n / w}
	}
	return out
}
