package sfs

import (
	"bytes"
	"encoding/binary"

	"github.com/noxer/bytewriter"

	"github.com/dkrylov/sfs/block"
	"github.com/dkrylov/sfs/errors"
)

// BlockSize is the fixed block size of the on-disk format, in bytes.
const BlockSize = block.Size

// DescriptorSize is the on-disk size of a single descriptor record: five
// 32-bit signed integers (id, type, links_num, size, blocks_id).
const DescriptorSize = 20

// DescriptorsFraction is the share of the device reserved for the
// descriptor table at format time.
const DescriptorsFraction = 0.05

// superblockDiskSize is the on-disk size of the superblock's six i32
// fields. It lives entirely within block 0.
const superblockDiskSize = 6 * 4

// Superblock holds the layout metadata stored in block 0. MaskOffset and
// DescrTableOffset are byte offsets from the start of the device (matching
// the original pointer-arithmetic design), not block indices.
type Superblock struct {
	BlockSize        int32
	BlocksNum        int32
	Size             int32
	MaskOffset       int32
	MaxFiles         int32
	DescrTableOffset int32
}

// MaskStartBlock returns the block index at which the free-space bitmap
// begins.
func (sb *Superblock) MaskStartBlock() block.ID {
	return block.ID(sb.MaskOffset / BlockSize)
}

// DescrTableStartBlock returns the block index at which the descriptor
// table begins.
func (sb *Superblock) DescrTableStartBlock() block.ID {
	return block.ID(sb.DescrTableOffset / BlockSize)
}

// MaskSizeBytes returns the exact number of bytes the free-space bitmap
// occupies: one bit per block, rounded up.
func (sb *Superblock) MaskSizeBytes() int {
	return int((sb.BlocksNum + 7) / 8)
}

func encodeSuperblock(sb Superblock) []byte {
	buf := make([]byte, BlockSize)
	writer := bytewriter.New(buf)
	fields := []int32{
		sb.BlockSize, sb.BlocksNum, sb.Size,
		sb.MaskOffset, sb.MaxFiles, sb.DescrTableOffset,
	}
	for _, field := range fields {
		binary.Write(writer, binary.LittleEndian, field)
	}
	return buf
}

func decodeSuperblock(data []byte) (Superblock, error) {
	if len(data) < superblockDiskSize {
		return Superblock{}, errors.Err.WithMessage("superblock is truncated")
	}
	reader := bytes.NewReader(data)
	var sb Superblock
	fields := []*int32{
		&sb.BlockSize, &sb.BlocksNum, &sb.Size,
		&sb.MaskOffset, &sb.MaxFiles, &sb.DescrTableOffset,
	}
	for _, field := range fields {
		if err := binary.Read(reader, binary.LittleEndian, field); err != nil {
			return Superblock{}, errors.Err.Wrap(err)
		}
	}
	return sb, nil
}
