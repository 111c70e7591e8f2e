package codec

import "testing"

func TestFinalizeOrderBasic(t *testing.T) {
	elems := []ScanElement{
		{Index: 2, Shift: 0, IsScan: true},
		{Index: -1, IsScan: true}, // non-scan-indexed scan element sorts last
		{Index: 0, Shift: 4, IsScan: true},
		{Index: 0, Shift: 0, IsScan: true},
		{IsScan: false}, // not a scan element at all
	}
	numbers := FinalizeOrder(elems)
	// Expected scan order: (0,0) -> (0,4) -> (2,0) -> (-1,*)
	want := map[int]int{3: 0, 2: 1, 0: 2, 1: 3}
	for i, n := range want {
		if numbers[i] != n {
			t.Fatalf("channel %d: number = %d, want %d (numbers=%v)", i, numbers[i], n, numbers)
		}
	}
	if numbers[4] != -1 {
		t.Fatalf("non-scan channel should not receive a number, got %d", numbers[4])
	}
}

func TestFinalizeOrderIdempotent(t *testing.T) {
	elems := []ScanElement{
		{Index: 3, Shift: 0, IsScan: true},
		{Index: 1, Shift: 2, IsScan: true},
		{Index: 1, Shift: 0, IsScan: true},
	}
	first := FinalizeOrder(elems)
	second := FinalizeOrder(elems)
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("FinalizeOrder not idempotent at %d: %d != %d", i, first[i], second[i])
		}
	}
}
