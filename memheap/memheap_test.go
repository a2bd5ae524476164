package memheap_test

import (
	"errors"
	"testing"

	"github.com/e7canasta/snapcam/memheap"
)

// TestInitIdempotent validates that a repeat Init is a no-op success and
// does not reset accounting state.
func TestInitIdempotent(t *testing.T) {
	h := memheap.New(1024)

	if err := h.Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	b, err := h.Alloc(100)
	if err != nil {
		t.Fatalf("Alloc(100) failed: %v", err)
	}

	// Second Init must not wipe the region or the used counter.
	if err := h.Init(); err != nil {
		t.Fatalf("repeat Init() failed: %v", err)
	}
	if got := h.Stats().Used; got != 100 {
		t.Errorf("Used after repeat Init = %d, want 100", got)
	}

	h.Free(b)
}

func TestInitBadRegion(t *testing.T) {
	h := memheap.New(0)
	if err := h.Init(); !errors.Is(err, memheap.ErrBadRegion) {
		t.Fatalf("Init() on zero-size region = %v, want ErrBadRegion", err)
	}
	if _, err := h.Alloc(1); !errors.Is(err, memheap.ErrNotInitialized) {
		t.Fatalf("Alloc() before Init = %v, want ErrNotInitialized", err)
	}
}

// TestAllocExhaustion validates that exhaustion reports ErrOutOfMemory
// rather than panicking, and that freeing restores capacity.
func TestAllocExhaustion(t *testing.T) {
	h := memheap.New(256)
	if err := h.Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	a, err := h.Alloc(200)
	if err != nil {
		t.Fatalf("Alloc(200) failed: %v", err)
	}

	if _, err := h.Alloc(100); !errors.Is(err, memheap.ErrOutOfMemory) {
		t.Fatalf("Alloc(100) with 56 free = %v, want ErrOutOfMemory", err)
	}

	h.Free(a)

	b, err := h.Alloc(256)
	if err != nil {
		t.Fatalf("Alloc(256) after free failed: %v", err)
	}
	if b.Size() != 256 {
		t.Errorf("Size() = %d, want 256", b.Size())
	}
}

// TestCoalescing validates that freed neighbours merge back into a block
// large enough for the combined size.
func TestCoalescing(t *testing.T) {
	h := memheap.New(300)
	if err := h.Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	a, _ := h.Alloc(100)
	b, _ := h.Alloc(100)
	c, _ := h.Alloc(100)
	if a == nil || b == nil || c == nil {
		t.Fatal("setup allocations failed")
	}

	// Free out of order: middle, head, tail.
	h.Free(b)
	h.Free(a)
	h.Free(c)

	if _, err := h.Alloc(300); err != nil {
		t.Fatalf("Alloc(300) after coalescing failed: %v", err)
	}
}

// TestDoubleFreeIgnored validates that a double free neither corrupts the
// free list nor underflows the used counter.
func TestDoubleFreeIgnored(t *testing.T) {
	h := memheap.New(128)
	if err := h.Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	a, _ := h.Alloc(64)
	h.Free(a)
	h.Free(a) // caller bug: must be ignored

	if got := h.Stats().Used; got != 0 {
		t.Errorf("Used after double free = %d, want 0", got)
	}
	if _, err := h.Alloc(128); err != nil {
		t.Fatalf("Alloc(128) after double free failed: %v", err)
	}
}

// TestChurnNoGrowth validates the no-leak property: 1000 alloc/free
// cycles with same-size payloads leave Used exactly where one allocation
// put it.
func TestChurnNoGrowth(t *testing.T) {
	h := memheap.New(4096)
	if err := h.Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	first, err := h.Alloc(512)
	if err != nil {
		t.Fatalf("Alloc(512) failed: %v", err)
	}
	baseline := h.Stats().Used

	cur := first
	for i := 0; i < 1000; i++ {
		h.Free(cur)
		cur, err = h.Alloc(512)
		if err != nil {
			t.Fatalf("cycle %d: Alloc failed: %v", i, err)
		}
	}

	if got := h.Stats().Used; got != baseline {
		t.Errorf("Used after 1000 cycles = %d, want %d", got, baseline)
	}
}

// TestAllocIsolated validates that a full-capacity append on a block
// cannot bleed into a neighbouring allocation.
func TestAllocIsolated(t *testing.T) {
	h := memheap.New(64)
	if err := h.Init(); err != nil {
		t.Fatalf("Init() failed: %v", err)
	}

	a, _ := h.Alloc(32)
	b, _ := h.Alloc(32)

	for i := range b.Data {
		b.Data[i] = 0xEE
	}

	grown := append(a.Data, 0xAA) // must reallocate, not overwrite b
	_ = grown

	for i, v := range b.Data {
		if v != 0xEE {
			t.Fatalf("neighbour byte %d clobbered: %#x", i, v)
		}
	}
}
