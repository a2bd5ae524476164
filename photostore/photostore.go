// Package photostore retains at most one captured photo in the secondary
// memory heap.
//
// Semantics:
//   - Save is "replace", not "append": any existing photo is freed before
//     the new allocation is attempted.
//   - A failed Save therefore leaves the store EMPTY, not restored. This
//     is a deliberate contract: callers must treat a Save error as "photo
//     storage now empty" and Get will report ErrNotFound.
//   - At most one live heap allocation is attributable to the store at
//     any time, so save/save and save/clear churn cannot grow usage.
package photostore

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/e7canasta/snapcam/memheap"
)

var (
	// ErrInvalidInput is returned by Save for empty photo data.
	ErrInvalidInput = errors.New("photostore: invalid photo data")

	// ErrStorageUnavailable is returned when the heap substrate failed to
	// initialize. Photo features are disabled; the rest of the device
	// keeps running.
	ErrStorageUnavailable = errors.New("photostore: storage unavailable")

	// ErrOutOfMemory is returned when the heap cannot hold the photo.
	// The store is empty after this error (replace semantics).
	ErrOutOfMemory = errors.New("photostore: out of memory")

	// ErrNotFound is returned by Get when no valid photo is stored.
	ErrNotFound = errors.New("photostore: no photo")
)

// View is a read-only, non-owning view of the stored photo.
//
// Aliasing hazard: Data points into the store's heap block and is valid
// only until the next Save or Clear. Callers that need stability must
// copy out.
type View struct {
	Data    []byte
	Size    int
	Width   int
	Height  int
	TakenAt time.Time
}

// Store owns the single retained photo. Mutations happen on the control
// goroutine; the mutex exists because the diagnostics surface reads
// concurrently.
type Store struct {
	mu   sync.Mutex
	heap *memheap.Heap
	log  zerolog.Logger

	block   *memheap.Block
	size    int
	width   int
	height  int
	takenAt time.Time
	valid   bool
}

// New creates a store over the given heap. The heap may be uninitialized;
// Save performs a lazy Init.
func New(heap *memheap.Heap, log zerolog.Logger) *Store {
	return &Store{
		heap: heap,
		log:  log.With().Str("component", "photostore").Logger(),
	}
}

// Save replaces the stored photo with a copy of data.
//
// Order of operations is load-bearing:
//  1. Validate input (ErrInvalidInput).
//  2. Lazy heap init (ErrStorageUnavailable on substrate failure).
//  3. Free the existing photo, if any.
//  4. Allocate and copy (ErrOutOfMemory leaves the store empty, per the
//     package contract).
func (s *Store) Save(data []byte, width, height int) error {
	if len(data) == 0 {
		return ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.heap.Init(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}

	if s.block != nil {
		s.clearLocked()
	}

	block, err := s.heap.Alloc(len(data))
	if err != nil {
		s.log.Error().Int("bytes", len(data)).Err(err).Msg("photo allocation failed, store left empty")
		return fmt.Errorf("%w: %w", ErrOutOfMemory, err)
	}

	copy(block.Data, data)

	s.block = block
	s.size = len(data)
	s.width = width
	s.height = height
	s.takenAt = time.Now()
	s.valid = true

	s.log.Info().
		Int("width", width).
		Int("height", height).
		Int("bytes", s.size).
		Msg("photo saved")

	return nil
}

// Get returns a non-owning view of the stored photo, or ErrNotFound if
// the store is empty. See View for the aliasing hazard.
func (s *Store) Get() (View, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.valid || s.block == nil {
		return View{}, ErrNotFound
	}

	return View{
		Data:    s.block.Data,
		Size:    s.size,
		Width:   s.width,
		Height:  s.height,
		TakenAt: s.takenAt,
	}, nil
}

// Clear frees the stored photo and resets all metadata. Idempotent: a
// second call on an empty store is a no-op, not an error.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.block == nil && !s.valid {
		return
	}
	s.clearLocked()
}

// clearLocked frees and resets. Caller holds s.mu.
func (s *Store) clearLocked() {
	if s.block != nil {
		s.heap.Free(s.block)
		s.block = nil
	}

	s.size = 0
	s.width = 0
	s.height = 0
	s.takenAt = time.Time{}
	s.valid = false

	s.log.Info().Msg("photo cleared")
}

// Valid reports whether a photo is currently stored.
func (s *Store) Valid() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.valid
}

// HeapStats exposes the underlying heap diagnostics snapshot.
func (s *Store) HeapStats() memheap.Stats {
	return s.heap.Stats()
}
