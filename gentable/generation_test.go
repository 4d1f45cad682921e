package gentable

import (
	"sync"
	"testing"
	"unsafe"

	"traceintern/calltrace"
)

type heapPager struct{}

func (heapPager) Alloc(bytes int) (unsafe.Pointer, error) {
	buf := make([]byte, bytes)
	return unsafe.Pointer(&buf[0]), nil
}

func (heapPager) Free(ptr unsafe.Pointer, bytes int) {}

func TestAllocatePanicsOnNonPowerOfTwo(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for non-power-of-two capacity")
		}
	}()
	_, _ = Allocate(heapPager{}, nil, 100)
}

func TestCASProbeClaimsEmptySlot(t *testing.T) {
	g, err := Allocate(heapPager{}, nil, 16)
	if err != nil {
		t.Fatal(err)
	}
	slot, result := g.CASProbe(42)
	if result != Claimed {
		t.Fatalf("expected Claimed, got %v", result)
	}
	if g.KeyAt(slot) != 42 {
		t.Fatalf("key at claimed slot = %d, want 42", g.KeyAt(slot))
	}
}

func TestCASProbeHitsPublishedKey(t *testing.T) {
	g, _ := Allocate(heapPager{}, nil, 16)
	slot, result := g.CASProbe(7)
	if result != Claimed {
		t.Fatalf("first probe should claim, got %v", result)
	}
	trace := &calltrace.CallTrace{}
	g.PublishValue(slot, trace)

	slot2, result2 := g.CASProbe(7)
	if result2 != Hit {
		t.Fatalf("second probe for same hash should hit, got %v", result2)
	}
	if slot2 != slot {
		t.Fatalf("hit returned slot %d, want %d", slot2, slot)
	}
	if g.ValueAt(slot2) != trace {
		t.Fatal("hit did not observe published value")
	}
}

func TestFindMissReturnsNil(t *testing.T) {
	g, _ := Allocate(heapPager{}, nil, 16)
	if g.Find(99) != nil {
		t.Fatal("Find on empty table should return nil")
	}
}

func TestProbeSequenceVisitsEveryEmptySlot(t *testing.T) {
	// All of these hashes collide to slot 0 under capacity=8 (0 mod 8), so
	// CASProbe must walk the full probe chain and claim every slot exactly
	// once before overflowing.
	g, _ := Allocate(heapPager{}, nil, 8)
	claimed := map[uint32]bool{}
	for i := uint64(1); i <= 8; i++ {
		hash := i * 8 // all multiples of capacity hash to slot 0
		slot, result := g.CASProbe(hash)
		if i <= 8 && result == Overflow {
			t.Fatalf("insert %d overflowed before the table was full", i)
		}
		if result == Claimed {
			if claimed[slot] {
				t.Fatalf("slot %d claimed twice", slot)
			}
			claimed[slot] = true
		}
	}
	if len(claimed) != 8 {
		t.Fatalf("expected all 8 slots claimed, got %d", len(claimed))
	}
	_, overflowResult := g.CASProbe(9 * 8)
	if overflowResult != Overflow {
		t.Fatalf("expected Overflow once table saturated, got %v", overflowResult)
	}
}

func TestClearResetsState(t *testing.T) {
	g, _ := Allocate(heapPager{}, nil, 16)
	slot, _ := g.CASProbe(5)
	g.PublishValue(slot, &calltrace.CallTrace{})
	g.IncSize()

	g.Clear()

	if g.Size() != 0 {
		t.Fatalf("Size() after Clear = %d, want 0", g.Size())
	}
	if g.KeyAt(slot) != 0 {
		t.Fatal("key not cleared")
	}
	if g.ValueAt(slot) != nil {
		t.Fatal("value not cleared")
	}
}

func TestIncSizeUnderConcurrency(t *testing.T) {
	g, _ := Allocate(heapPager{}, nil, 1<<16)
	const n = 1000
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.IncSize()
		}()
	}
	wg.Wait()
	if g.Size() != n {
		t.Fatalf("Size() = %d, want %d", g.Size(), n)
	}
}

func TestDestroyReturnsPrev(t *testing.T) {
	g1, _ := Allocate(heapPager{}, nil, 16)
	g2, _ := Allocate(heapPager{}, g1, 32)
	if got := g2.Destroy(); got != g1 {
		t.Fatal("Destroy did not return the predecessor")
	}
}
