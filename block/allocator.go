package block

import (
	bitmap "github.com/boljen/go-bitmap"

	"github.com/dkrylov/sfs/errors"
)

// Allocator tracks which blocks on the device are in use via a free-space
// bitmap: bit i is 1 iff block i is allocated.
type Allocator struct {
	bm    bitmap.Bitmap
	total uint32
}

// NewAllocator creates an allocator for total blocks, all initially free.
func NewAllocator(total uint32) *Allocator {
	return &Allocator{bm: bitmap.New(int(total)), total: total}
}

// LoadAllocator wraps raw bitmap bytes read from disk. data must be at least
// ceil(total/8) bytes.
func LoadAllocator(data []byte, total uint32) *Allocator {
	return &Allocator{bm: bitmap.Bitmap(data), total: total}
}

// Bytes returns the raw bitmap bytes, suitable for writing back to disk.
func (a *Allocator) Bytes() []byte {
	return a.bm.Data(false)
}

// MarkUsed forces a block's bit to 1 regardless of its previous state. It's
// used at format time to reserve the superblock, bitmap, and descriptor
// table blocks before any ordinary allocation happens.
func (a *Allocator) MarkUsed(id ID) {
	a.bm.Set(int(id), true)
}

// IsUsed reports whether a block is currently allocated.
func (a *Allocator) IsUsed(id ID) bool {
	return a.bm.Get(int(id))
}

// Alloc scans the bitmap from block 0 and returns the first clear bit,
// marking it allocated. Allocation order is deterministic: lowest free index
// always wins.
func (a *Allocator) Alloc() (ID, error) {
	for i := uint32(0); i < a.total; i++ {
		if !a.bm.Get(int(i)) {
			a.bm.Set(int(i), true)
			return ID(i), nil
		}
	}
	return 0, errors.NoSpaceLeft.WithMessage("no free blocks")
}

// Free clears a block's bit. Freeing an out-of-range or already-free block
// is a silent no-op, matching the original implementation's behavior.
func (a *Allocator) Free(id ID) {
	if uint32(id) >= a.total {
		return
	}
	a.bm.Set(int(id), false)
}

// FreeCount returns the number of currently-unallocated blocks, used by
// tests to verify that create/remove sequences return the bitmap to its
// original population.
func (a *Allocator) FreeCount() int {
	free := 0
	for i := uint32(0); i < a.total; i++ {
		if !a.bm.Get(int(i)) {
			free++
		}
	}
	return free
}
