package intern

import (
	"sync"
	"testing"
	"unsafe"

	"traceintern/calltrace"
	"traceintern/gentable"
	"traceintern/linalloc"
)

type heapPager struct{}

func (heapPager) Alloc(bytes int) (unsafe.Pointer, error) {
	buf := make([]byte, bytes)
	return unsafe.Pointer(&buf[0]), nil
}

func (heapPager) Free(ptr unsafe.Pointer, bytes int) {}

func framesAt(i uint64) []calltrace.CallFrame {
	return []calltrace.CallFrame{{PC: 0x1000 + i, Meta: i}}
}

func TestPutIsDeterministic(t *testing.T) {
	table := New(heapPager{})
	f := framesAt(1)
	first := table.Put(f)
	for i := 0; i < 1000; i++ {
		if got := table.Put(f); got != first {
			t.Fatalf("Put returned %d, want %d (deterministic hit)", got, first)
		}
	}
}

func TestPutFirstInsertIdentifierFormula(t *testing.T) {
	table := New(heapPager{})
	f := framesAt(1)
	hash := calltrace.HashFrames(f)
	wantSlot := uint32(hash) & (InitialCapacity - 1)
	wantID := wantSlot + 1 // InitialCapacity - (InitialCapacity-1) + slot

	got := table.Put(f)
	if got != wantID {
		t.Fatalf("Put = %d, want %d", got, wantID)
	}
}

func TestDedupAllocatesPayloadOnce(t *testing.T) {
	table := New(heapPager{})
	// One payload per chunk, so every payload allocation adds a chunk.
	table.alloc = linalloc.New(heapPager{}, int(calltrace.TraceSize(1)))
	f := framesAt(1)
	table.Put(f)
	chunksAfterFirst := table.alloc.ChunkCount()

	for i := 0; i < 1000; i++ {
		table.Put(f)
	}
	if got := table.alloc.ChunkCount(); got != chunksAfterFirst {
		t.Fatalf("chunk count changed after repeated Put of the same trace: %d -> %d", chunksAfterFirst, got)
	}
}

func TestCollectReflectsSinglePublishedEntry(t *testing.T) {
	table := New(heapPager{})
	f := framesAt(1)
	id := table.Put(f)

	out := map[uint32]*calltrace.CallTrace{}
	table.Collect(out)
	if len(out) != 1 {
		t.Fatalf("Collect returned %d entries, want 1", len(out))
	}
	trace, ok := out[id]
	if !ok {
		t.Fatalf("Collect missing id %d", id)
	}
	if trace.NumFrames != int32(len(f)) {
		t.Fatalf("collected trace has %d frames, want %d", trace.NumFrames, len(f))
	}
}

func TestClearResetsTableAndAllocator(t *testing.T) {
	table := New(heapPager{})
	f := framesAt(1)
	id1 := table.Put(f)

	table.Clear()

	out := map[uint32]*calltrace.CallTrace{}
	table.Collect(out)
	if len(out) != 0 {
		t.Fatalf("Collect after Clear returned %d entries, want 0", len(out))
	}
	if got := table.alloc.ChunkCount(); got != 0 {
		t.Fatalf("allocator chunk count after Clear = %d, want 0", got)
	}

	id2 := table.Put(f)
	if id1 != id2 {
		t.Fatalf("Put after Clear returned %d, want %d (same as before Clear)", id2, id1)
	}
}

func TestGrowthPublishesAtExactThreeQuarters(t *testing.T) {
	table := New(heapPager{})
	const n = InitialCapacity * 3 / 4 // 49152 distinct inserts

	for i := uint64(0); i < n; i++ {
		if id := table.Put(framesAt(i)); id == 0 {
			t.Fatalf("insert %d unexpectedly failed (overflow/alloc exhaustion)", i)
		}
	}

	grown := table.current.Load()
	if grown.Capacity() != InitialCapacity*2 {
		t.Fatalf("expected growth to have published a doubled generation, capacity = %d", grown.Capacity())
	}

	id := table.Put(framesAt(n))
	if id < InitialCapacity+1 || id > 4*InitialCapacity-1 {
		t.Fatalf("post-growth id %d outside expected new-generation range", id)
	}
}

func TestMigrationReusesPointerByReference(t *testing.T) {
	table := New(heapPager{})
	const n = InitialCapacity * 3 / 4

	firstFrames := framesAt(0)
	oldID := table.Put(firstFrames)
	for i := uint64(1); i < n; i++ {
		table.Put(framesAt(i))
	}
	// The n-th insert above (i == n-1) triggered growth; current is now the
	// doubled generation.
	if table.current.Load().Capacity() == InitialCapacity {
		t.Fatal("expected growth to have occurred by now")
	}

	newID := table.Put(firstFrames)
	if newID == oldID {
		t.Fatal("re-insertion after growth should yield a new identifier")
	}

	out := map[uint32]*calltrace.CallTrace{}
	table.Collect(out)
	oldTrace, ok := out[oldID]
	if !ok {
		t.Fatal("old identifier missing from Collect after growth")
	}
	newTrace, ok := out[newID]
	if !ok {
		t.Fatal("new identifier missing from Collect after growth")
	}
	if oldTrace != newTrace {
		t.Fatal("migration after growth should reuse the same CallTrace pointer, not copy it")
	}
}

func TestOverflowReturnsZeroWithoutCorruptingState(t *testing.T) {
	table := New(heapPager{})
	tiny, err := gentable.Allocate(heapPager{}, nil, 2)
	if err != nil {
		t.Fatal(err)
	}
	table.current.Store(tiny)

	a := table.Put(framesAt(1))
	b := table.Put(framesAt(2))
	if a == 0 || b == 0 {
		t.Fatal("the first two distinct inserts into a capacity-2 table must succeed")
	}
	if got := table.Put(framesAt(3)); got != 0 {
		t.Fatalf("third distinct insert into a saturated capacity-2 table should overflow, got id %d", got)
	}

	// State must remain usable: re-inserting an already-claimed hash still
	// hits cleanly after an overflow on an unrelated hash.
	if got := table.Put(framesAt(1)); got != a {
		t.Fatalf("Put after overflow for an existing hash = %d, want %d", got, a)
	}
}

func TestConcurrentPutOfSameFramesYieldsOneWinner(t *testing.T) {
	table := New(heapPager{})
	f := framesAt(1)
	const n = 64

	ids := make([]uint32, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i] = table.Put(f)
		}(i)
	}
	wg.Wait()

	want := ids[0]
	for i, id := range ids {
		if id != want {
			t.Fatalf("goroutine %d got id %d, want %d (all concurrent inserts of the same frames must agree)", i, id, want)
		}
	}

	out := map[uint32]*calltrace.CallTrace{}
	table.Collect(out)
	if len(out) != 1 {
		t.Fatalf("Collect returned %d entries for a single distinct trace, want 1", len(out))
	}
}

func TestCloseDestroysEveryGeneration(t *testing.T) {
	table := New(heapPager{})
	table.Put(framesAt(1))
	table.Close()
	if table.current.Load() != nil {
		t.Fatal("Close should clear the current generation pointer")
	}
}
