package slot

import "testing"

func buildIndex(t *testing.T, lineCounts []uint64, byteLens []uint64) Index {
	t.Helper()
	if len(lineCounts) != len(byteLens) {
		t.Fatalf("mismatched fixture lengths")
	}
	var idx Index
	var byteOff, lineOff uint64
	for i := range lineCounts {
		idx.Slots = append(idx.Slots, Slot{
			Bytes: ByteRange{Start: byteOff, End: byteOff + byteLens[i]},
			Lines: LineRange{Start: lineOff, End: lineOff + lineCounts[i]},
		})
		byteOff += byteLens[i]
		lineOff += lineCounts[i]
	}
	idx.LineCount = lineOff
	return idx
}

func TestIdentifySlotEmpty(t *testing.T) {
	idx := Index{}
	if _, ok := idx.IdentifySlot(0); ok {
		t.Fatal("expected no slot for empty index")
	}
}

func TestIdentifySlotFindsEachLine(t *testing.T) {
	idx := buildIndex(t, []uint64{3, 4, 5}, []uint64{10, 10, 10})
	for i := uint64(0); i < idx.LineCount; i++ {
		s, ok := idx.IdentifySlot(i)
		if !ok {
			t.Fatalf("expected slot for line %d", i)
		}
		if !s.Lines.Contains(i) {
			t.Fatalf("slot %+v does not contain line %d", s, i)
		}
	}
}

func TestIdentifySlotPastEnd(t *testing.T) {
	idx := buildIndex(t, []uint64{3, 4}, []uint64{10, 10})
	if _, ok := idx.IdentifySlot(idx.LineCount); ok {
		t.Fatal("expected no slot at or past line_count")
	}
	if _, ok := idx.IdentifySlot(idx.LineCount + 100); ok {
		t.Fatal("expected no slot far past line_count")
	}
}

func TestIdentifySlotIdempotent(t *testing.T) {
	idx := buildIndex(t, []uint64{5, 5, 5, 5}, []uint64{64, 64, 64, 64})
	first, ok1 := idx.IdentifySlot(12)
	second, ok2 := idx.IdentifySlot(12)
	if ok1 != ok2 || first != second {
		t.Fatalf("expected repeated lookups to be stable, got %+v/%v and %+v/%v", first, ok1, second, ok2)
	}
}

func TestSlotContiguity(t *testing.T) {
	idx := buildIndex(t, []uint64{1, 2, 3, 4}, []uint64{16, 32, 8, 64})
	for i := 1; i < len(idx.Slots); i++ {
		prev, cur := idx.Slots[i-1], idx.Slots[i]
		if prev.Bytes.End != cur.Bytes.Start {
			t.Fatalf("byte ranges not contiguous at %d: %+v -> %+v", i, prev, cur)
		}
		if prev.Lines.End != cur.Lines.Start {
			t.Fatalf("line ranges not contiguous at %d: %+v -> %+v", i, prev, cur)
		}
	}
}
