package sfs

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dkrylov/sfs/block"
)

// newBareFS builds a FileSystem around a blank in-memory device without
// going through Mkfs, giving internal tests direct control over the
// descriptor table and allocator for a single descriptor under test.
func newBareFS(t *testing.T, totalBlocks uint32, maxFiles int32) *FileSystem {
	t.Helper()
	dev := newTestDevice(t, totalBlocks)
	alloc := block.NewAllocator(totalBlocks)
	// The descriptor table starts at block 0 in this harness; reserve every
	// block it spans.
	tableBlocks := (int(maxFiles)*DescriptorSize + block.Size - 1) / block.Size
	for i := 0; i < tableBlocks; i++ {
		alloc.MarkUsed(block.ID(i))
	}

	table, err := newDescriptorTable(dev, 0, maxFiles)
	require.NoError(t, err)

	fs := &FileSystem{dev: dev, alloc: alloc, sb: Superblock{BlocksNum: int32(totalBlocks)}, descriptors: table, workDir: "/"}
	fs.dirs.fs = fs
	return fs
}
