package sfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuperblock_EncodeDecodeRoundTrip(t *testing.T) {
	sb := Superblock{
		BlockSize:        512,
		BlocksNum:        100,
		Size:             51200,
		MaskOffset:       512,
		MaxFiles:         51,
		DescrTableOffset: 1024,
	}

	encoded := encodeSuperblock(sb)
	assert.Len(t, encoded, BlockSize)

	decoded, err := decodeSuperblock(encoded)
	require.NoError(t, err)
	assert.Equal(t, sb, decoded)
}

func TestSuperblock_MaskStartAndDescrTableStartBlocks(t *testing.T) {
	sb := Superblock{BlockSize: 512, MaskOffset: 512, DescrTableOffset: 1536}
	assert.EqualValues(t, 1, sb.MaskStartBlock())
	assert.EqualValues(t, 3, sb.DescrTableStartBlock())
}

func TestSuperblock_MaskSizeBytes(t *testing.T) {
	sb := Superblock{BlocksNum: 100}
	assert.Equal(t, 13, sb.MaskSizeBytes())

	sb.BlocksNum = 8
	assert.Equal(t, 1, sb.MaskSizeBytes())
}

func TestSuperblock_DecodeTruncatedFails(t *testing.T) {
	_, err := decodeSuperblock(make([]byte, 4))
	assert.Error(t, err)
}
