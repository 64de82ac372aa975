// Package sfstest provides test-only helpers for building in-memory backing
// stores, grounded on the same pattern the teacher repo uses to load disk
// images in its own tests: a fixed-size buffer wrapped in a seekable stream,
// never touching the real filesystem.
package sfstest

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xaionaro-go/bytesextra"

	"github.com/dkrylov/sfs"
	"github.com/dkrylov/sfs/block"
)

// NewMemoryDevice allocates a zeroed in-memory backing store of totalBlocks
// blocks and wraps it as a Device.
func NewMemoryDevice(t *testing.T, totalBlocks uint32) *block.Device {
	t.Helper()
	raw := make([]byte, int(totalBlocks)*block.Size)
	stream := bytesextra.NewReadWriteSeeker(raw)
	return block.WrapStream(stream, totalBlocks)
}

// NewMountedFS formats and mounts a fresh in-memory file system of
// totalBlocks blocks, ready for immediate use by a test.
func NewMountedFS(t *testing.T, totalBlocks uint32) *sfs.FileSystem {
	t.Helper()
	dev := NewMemoryDevice(t, totalBlocks)
	require.NoError(t, sfs.MkfsDevice(dev))

	fs, err := sfs.MountDevice(dev)
	require.NoError(t, err)
	return fs
}
