package codec

import "sort"

// ScanElement is the minimal view of a channel the finalisation sort needs:
// its logical scan index (-1 if not a scan element) and its data format's
// shift, per spec §4.5's "Channel ordering" rule.
type ScanElement struct {
	Index      int
	Shift      uint
	IsScan     bool
	origOrder  int
	number     int
}

// FinalizeOrder sorts scan-element channels by (index, shift) ascending,
// treating index == -1 as +infinity, and returns a slice giving each input
// element its dense Number 0..k-1 in that order. Non-scan-element channels
// get -1 and sort after all scan elements, preserving their relative input
// order. Calling FinalizeOrder twice is idempotent
// per spec §8.
func FinalizeOrder(elems []ScanElement) []int {
	idx := make([]int, len(elems))
	for i := range idx {
		idx[i] = i
		elems[i].origOrder = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		ea, eb := elems[idx[a]], elems[idx[b]]
		if ea.IsScan != eb.IsScan {
			return ea.IsScan // scan elements first
		}
		if !ea.IsScan {
			return ea.origOrder < eb.origOrder
		}
		ka, kb := scanKey(ea.Index), scanKey(eb.Index)
		if ka != kb {
			return ka < kb
		}
		if ea.Shift != eb.Shift {
			return ea.Shift < eb.Shift
		}
		return ea.origOrder < eb.origOrder
	})

	numbers := make([]int, len(elems))
	n := 0
	for _, i := range idx {
		if elems[i].IsScan {
			numbers[i] = n
			n++
		} else {
			numbers[i] = -1
		}
	}
	return numbers
}

// scanKey maps index -1 ("not a scan element", used here only as a
// defensive fallback) to +infinity for comparison purposes.
func scanKey(index int) int64 {
	if index < 0 {
		return int64(^uint64(0) >> 1)
	}
	return int64(index)
}
