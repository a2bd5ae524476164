// Package memheap implements a sub-allocator over a fixed-size memory
// region, independent of the Go heap.
//
// The region models a secondary memory bank (external RAM) reserved for
// photo retention: allocated once at Init, never resized, never released.
// Allocation uses a first-fit free list with coalescing on free, so
// repeated alloc/free cycles of same-sized buffers do not fragment or
// grow usage.
//
// The used-bytes counter exists for status reporting only. It is clamped
// at zero on free and is not authoritative for correctness.
package memheap

import (
	"errors"
	"sync"
)

var (
	// ErrNotInitialized is returned by Alloc before a successful Init.
	ErrNotInitialized = errors.New("memheap: not initialized")

	// ErrOutOfMemory is returned when no free block can satisfy a request.
	ErrOutOfMemory = errors.New("memheap: out of region space")

	// ErrBadRegion is returned by Init when the configured region size is
	// unusable. This is fatal-class: callers treat storage as unavailable.
	ErrBadRegion = errors.New("memheap: invalid region size")
)

// Block is an owned allocation handle.
//
// Ownership contract:
//   - Data is a window into the region; valid until Free.
//   - Exactly one Free per Block. Double-free is rejected by the offset
//     table (no corruption), but relying on that is a caller bug.
//   - Data must not be retained or appended to after Free.
type Block struct {
	// Data is the allocated buffer, len(Data) == requested size.
	Data []byte

	off  int
	size int
}

// Size returns the byte length of the allocation.
func (b *Block) Size() int { return b.size }

// span is a node in the sorted free list (ascending offset).
type span struct {
	off  int
	size int
	next *span
}

// Heap is the sub-allocator. Safe for concurrent use, though the intended
// caller is the single control goroutine.
type Heap struct {
	mu          sync.Mutex
	regionSize  int
	region      []byte
	free        *span
	live        map[int]int // offset → size of outstanding allocations
	used        uint64
	initialized bool
}

// Stats is a diagnostics snapshot of heap state.
type Stats struct {
	// Size is the fixed region capacity in bytes.
	Size int

	// Used is the accounting counter of bytes currently handed out.
	// Diagnostics only, clamped at zero.
	Used uint64

	// Free is Size minus Used (best effort).
	Free uint64

	// Initialized reports whether Init has completed.
	Initialized bool
}

// New creates a heap over a region of the given size. The region itself
// is not reserved until Init.
func New(size int) *Heap {
	return &Heap{regionSize: size}
}

// Init prepares the sub-allocator. Idempotent: a repeat call on an
// initialized heap is a no-op success.
//
// Fails only if the region itself is unusable (ErrBadRegion); that
// failure class is not retried and callers degrade to no photo storage.
func (h *Heap) Init() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.initialized {
		return nil
	}
	if h.regionSize <= 0 {
		return ErrBadRegion
	}

	h.region = make([]byte, h.regionSize)
	h.free = &span{off: 0, size: h.regionSize}
	h.live = make(map[int]int)
	h.used = 0
	h.initialized = true

	return nil
}

// Alloc returns an owned buffer of exactly size bytes, or ErrOutOfMemory
// if no free block can satisfy the request. Never panics on exhaustion;
// the caller must check the error.
func (h *Heap) Alloc(size int) (*Block, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.initialized {
		return nil, ErrNotInitialized
	}
	if size <= 0 || size > h.regionSize {
		return nil, ErrOutOfMemory
	}

	// First fit over the sorted free list.
	var prev *span
	for s := h.free; s != nil; prev, s = s, s.next {
		if s.size < size {
			continue
		}

		off := s.off
		if s.size == size {
			// Exact fit: unlink the span.
			if prev == nil {
				h.free = s.next
			} else {
				prev.next = s.next
			}
		} else {
			// Split: allocation takes the head of the span.
			s.off += size
			s.size -= size
		}

		h.live[off] = size
		h.used += uint64(size)

		// Full slice expression pins capacity to the block, so an
		// append by the caller cannot bleed into the neighbour.
		return &Block{
			Data: h.region[off : off+size : off+size],
			off:  off,
			size: size,
		}, nil
	}

	return nil, ErrOutOfMemory
}

// Free releases a block back to the free list and decrements the
// used-bytes counter, clamped at zero.
//
// A nil block, or a block the heap does not recognize as outstanding
// (double-free, foreign handle), is ignored without touching the free
// list. Preventing double-free remains the caller's ownership discipline;
// the offset table only keeps such bugs from corrupting the list.
func (h *Heap) Free(b *Block) {
	if b == nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.initialized {
		return
	}

	size, ok := h.live[b.off]
	if !ok || size != b.size {
		return
	}
	delete(h.live, b.off)

	if h.used >= uint64(size) {
		h.used -= uint64(size)
	} else {
		h.used = 0
	}

	h.insertFree(b.off, size)
	b.Data = nil
}

// insertFree places a span back into the sorted free list and coalesces
// with adjacent spans. Caller holds h.mu.
func (h *Heap) insertFree(off, size int) {
	var prev *span
	s := h.free
	for s != nil && s.off < off {
		prev, s = s, s.next
	}

	n := &span{off: off, size: size, next: s}
	if prev == nil {
		h.free = n
	} else {
		prev.next = n
	}

	// Coalesce forward.
	if n.next != nil && n.off+n.size == n.next.off {
		n.size += n.next.size
		n.next = n.next.next
	}
	// Coalesce backward.
	if prev != nil && prev.off+prev.size == n.off {
		prev.size += n.size
		prev.next = n.next
	}
}

// Stats returns a diagnostics snapshot (non-blocking, may be stale by the
// time the caller reads it).
func (h *Heap) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	free := uint64(0)
	if uint64(h.regionSize) > h.used {
		free = uint64(h.regionSize) - h.used
	}

	return Stats{
		Size:        h.regionSize,
		Used:        h.used,
		Free:        free,
		Initialized: h.initialized,
	}
}
