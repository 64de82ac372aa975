package sfs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkrylov/sfs/errors"
	"github.com/dkrylov/sfs/sfstest"
)

func TestFile_WriteThenReadRoundTrip(t *testing.T) {
	fs := sfstest.NewMountedFS(t, 64)
	require.NoError(t, fs.CreateFile("/f"))

	fid, err := fs.OpenFile("/f")
	require.NoError(t, err)

	payload := []byte("the quick brown fox jumps over the lazy dog")
	require.NoError(t, fs.WriteFile(fid, 0, payload))

	got, err := fs.ReadFile(fid, 0, int32(len(payload)))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
	require.NoError(t, fs.CloseFile(fid))
}

func TestFile_WriteSpanningMultipleBlocks(t *testing.T) {
	fs := sfstest.NewMountedFS(t, 256)
	require.NoError(t, fs.CreateFile("/big"))

	fid, err := fs.OpenFile("/big")
	require.NoError(t, err)

	payload := make([]byte, 512*3+17)
	for i := range payload {
		payload[i] = byte(i % 256)
	}
	require.NoError(t, fs.WriteFile(fid, 0, payload))

	got, err := fs.ReadFile(fid, 0, int32(len(payload)))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestFile_ReadPastEndFails(t *testing.T) {
	fs := sfstest.NewMountedFS(t, 64)
	require.NoError(t, fs.CreateFile("/f"))
	fid, err := fs.OpenFile("/f")
	require.NoError(t, err)
	require.NoError(t, fs.WriteFile(fid, 0, []byte("abc")))

	_, err = fs.ReadFile(fid, 0, 10)
	assert.ErrorIs(t, err, errors.SizeErr)
}

func TestFile_WriteOffsetPastEndFails(t *testing.T) {
	fs := sfstest.NewMountedFS(t, 64)
	require.NoError(t, fs.CreateFile("/f"))
	fid, err := fs.OpenFile("/f")
	require.NoError(t, err)

	err = fs.WriteFile(fid, 100, []byte("x"))
	assert.ErrorIs(t, err, errors.SizeErr)
}

func TestFile_WriteInMiddleTruncatesSize(t *testing.T) {
	fs := sfstest.NewMountedFS(t, 64)
	require.NoError(t, fs.CreateFile("/f"))
	fid, err := fs.OpenFile("/f")
	require.NoError(t, err)

	require.NoError(t, fs.WriteFile(fid, 0, []byte("0123456789")))
	require.NoError(t, fs.WriteFile(fid, 2, []byte("xy")))

	// writing 2 bytes at offset 2 sets size to offset+len == 4, matching
	// the original write_file semantics rather than "extend if longer".
	size, err := fs.GetFileSize("/f")
	require.NoError(t, err)
	assert.EqualValues(t, 4, size)
}

func TestFile_TruncateShrinkAndGrow(t *testing.T) {
	fs := sfstest.NewMountedFS(t, 64)
	require.NoError(t, fs.CreateFile("/f"))
	fid, err := fs.OpenFile("/f")
	require.NoError(t, err)
	require.NoError(t, fs.WriteFile(fid, 0, []byte("0123456789")))
	require.NoError(t, fs.CloseFile(fid))

	require.NoError(t, fs.Truncate("/f", 4))
	size, err := fs.GetFileSize("/f")
	require.NoError(t, err)
	assert.EqualValues(t, 4, size)

	require.NoError(t, fs.Truncate("/f", 8))
	size, err = fs.GetFileSize("/f")
	require.NoError(t, err)
	assert.EqualValues(t, 8, size)

	fid, err = fs.OpenFile("/f")
	require.NoError(t, err)
	data, err := fs.ReadFile(fid, 4, 4)
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 0, 0}, data)
}

func TestFile_MkLinkSharesContentAndIncrementsLinks(t *testing.T) {
	fs := sfstest.NewMountedFS(t, 64)
	require.NoError(t, fs.CreateFile("/a"))
	require.NoError(t, fs.MkLink("/a", "/b"))

	fid, err := fs.OpenFile("/a")
	require.NoError(t, err)
	require.NoError(t, fs.WriteFile(fid, 0, []byte("shared")))
	require.NoError(t, fs.CloseFile(fid))

	size, err := fs.GetFileSize("/b")
	require.NoError(t, err)
	assert.EqualValues(t, 6, size)
}

func TestFile_RmLinkFreesDescriptorAtZeroLinks(t *testing.T) {
	fs := sfstest.NewMountedFS(t, 64)
	require.NoError(t, fs.CreateFile("/a"))
	require.NoError(t, fs.MkLink("/a", "/b"))

	require.NoError(t, fs.RmLink("/a"))
	// /b still resolves; the descriptor survives with links_num 1.
	_, err := fs.LookupFull("/b")
	require.NoError(t, err)

	require.NoError(t, fs.RmLink("/b"))
	_, err = fs.LookupFull("/b")
	assert.ErrorIs(t, err, errors.NotFound)
}

func TestFile_SymlinkResolvesToTarget(t *testing.T) {
	fs := sfstest.NewMountedFS(t, 64)
	require.NoError(t, fs.CreateFile("/target"))
	fid, err := fs.OpenFile("/target")
	require.NoError(t, err)
	require.NoError(t, fs.WriteFile(fid, 0, []byte("payload")))
	require.NoError(t, fs.CloseFile(fid))

	require.NoError(t, fs.MkSymlink("/target", "/link"))

	full, err := fs.LookupFull("/link")
	require.NoError(t, err)
	size, err := fs.GetFileSize("/target")
	require.NoError(t, err)
	assert.EqualValues(t, size, full.Size)

	linkOnly, err := fs.LookupLink("/link")
	require.NoError(t, err)
	assert.NotEqual(t, full.ID, linkOnly.ID)
}

func TestFile_SymlinkToMissingTargetFails(t *testing.T) {
	fs := sfstest.NewMountedFS(t, 64)
	assert.ErrorIs(t, fs.MkSymlink("/nope", "/link"), errors.NotFound)
}
