package sfs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkrylov/sfs"
	"github.com/dkrylov/sfs/errors"
	"github.com/dkrylov/sfs/sfstest"
)

func TestFileSystem_MountedRootIsEmptyDir(t *testing.T) {
	fs := sfstest.NewMountedFS(t, 64)
	assert.True(t, fs.IsMounted())

	entries, err := fs.List("/")
	require.NoError(t, err)
	names := map[string]bool{}
	for _, e := range entries {
		names[e.Name] = true
	}
	assert.True(t, names["."])
	assert.True(t, names[".."])
	assert.Len(t, entries, 2)
}

func TestFileSystem_PwdAndChdir(t *testing.T) {
	fs := sfstest.NewMountedFS(t, 64)
	require.NoError(t, fs.MakeDir("/sub"))

	require.NoError(t, fs.Chdir("/sub"))
	pwd, err := fs.Pwd()
	require.NoError(t, err)
	assert.Equal(t, "/sub", pwd)
}

func TestFileSystem_ChdirNotFound(t *testing.T) {
	fs := sfstest.NewMountedFS(t, 64)
	err := fs.Chdir("/nope")
	assert.ErrorIs(t, err, errors.NotFound)
}

func TestFileSystem_ChdirOnFileFails(t *testing.T) {
	fs := sfstest.NewMountedFS(t, 64)
	require.NoError(t, fs.CreateFile("/f"))
	assert.ErrorIs(t, fs.Chdir("/f"), errors.NotDir)
}

func TestFileSystem_OperationsFailWhenNotMounted(t *testing.T) {
	var fs sfs.FileSystem
	assert.False(t, fs.IsMounted())
	_, err := fs.Pwd()
	assert.ErrorIs(t, err, errors.NotMount)
}

func TestFileSystem_UnmountThenOperationsFail(t *testing.T) {
	fs := sfstest.NewMountedFS(t, 64)
	require.NoError(t, fs.Unmount())
	assert.False(t, fs.IsMounted())
	assert.ErrorIs(t, fs.CreateFile("/x"), errors.NotMount)
}

func TestFileSystem_DumpStats(t *testing.T) {
	fs := sfstest.NewMountedFS(t, 64)
	stats, err := fs.DumpStats()
	require.NoError(t, err)
	assert.EqualValues(t, 512, stats.BlockSize)
	assert.EqualValues(t, 64, stats.BlocksNum)
}

func TestFileSystem_MkdirExistsFails(t *testing.T) {
	fs := sfstest.NewMountedFS(t, 64)
	require.NoError(t, fs.MakeDir("/sub"))
	assert.ErrorIs(t, fs.MakeDir("/sub"), errors.Exists)
}

func TestFileSystem_RemoveDirRequiresEmpty(t *testing.T) {
	fs := sfstest.NewMountedFS(t, 64)
	require.NoError(t, fs.MakeDir("/sub"))
	require.NoError(t, fs.CreateFile("/sub/f"))

	assert.ErrorIs(t, fs.RemoveDir("/sub"), errors.NotEmpty)

	require.NoError(t, fs.RmLink("/sub/f"))
	assert.NoError(t, fs.RemoveDir("/sub"))

	_, err := fs.LookupFull("/sub")
	assert.ErrorIs(t, err, errors.NotFound)
}

func TestFileSystem_GetFileSize(t *testing.T) {
	fs := sfstest.NewMountedFS(t, 64)
	require.NoError(t, fs.CreateFile("/f"))

	fid, err := fs.OpenFile("/f")
	require.NoError(t, err)
	require.NoError(t, fs.WriteFile(fid, 0, []byte("hello")))
	require.NoError(t, fs.CloseFile(fid))

	size, err := fs.GetFileSize("/f")
	require.NoError(t, err)
	assert.EqualValues(t, 5, size)
}

func TestFileSystem_MountRejectsUnformattedFile(t *testing.T) {
	dev := sfstest.NewMemoryDevice(t, 4)
	_, err := sfs.MountDevice(dev)
	assert.Error(t, err)
}
