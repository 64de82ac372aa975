package sfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetFilename(t *testing.T) {
	assert.Equal(t, "c", getFilename("/a/b/c"))
	assert.Equal(t, "a", getFilename("/a"))
}

func TestGetDirPath(t *testing.T) {
	assert.Equal(t, "/a/b", getDirPath("/a/b/c"))
	assert.Equal(t, "/", getDirPath("/a"))
}

func TestPackPath_RootStaysRoot(t *testing.T) {
	assert.Equal(t, "/", packPath("/"))
}

func TestPackPath_CollapsesDotAndDotDot(t *testing.T) {
	assert.Equal(t, "/a/c", packPath("/a/./b/../c"))
	assert.Equal(t, "/", packPath("/a/.."))
	assert.Equal(t, "/a", packPath("/a/b/.."))
}

func TestPackPath_PlainPathUnchanged(t *testing.T) {
	assert.Equal(t, "/a/b/c", packPath("/a/b/c"))
}

func TestFileSystem_AbsPath(t *testing.T) {
	fs := &FileSystem{workDir: "/"}
	assert.Equal(t, "/foo", fs.AbsPath("foo"))
	assert.Equal(t, "/foo", fs.AbsPath("/foo/"))
	assert.Equal(t, "/", fs.AbsPath("/"))

	fs.workDir = "/a/b"
	assert.Equal(t, "/a/b/c", fs.AbsPath("c"))
	assert.Equal(t, "/a", fs.AbsPath(".."))
}
