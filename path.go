package sfs

import (
	"strings"

	"github.com/dkrylov/sfs/errors"
)

// MaxSymlinkDepth bounds how many symlink hops a lookup will follow before
// giving up, guarding against cycles created by mklink/mksymlink.
const MaxSymlinkDepth = 40

// getFilename returns the last path component ("/a/b/c" -> "c").
func getFilename(path string) string {
	i := strings.LastIndexByte(path, '/')
	return path[i+1:]
}

// getDirPath returns everything before the last path component
// ("/a/b/c" -> "/a/b"), with "/" as the special case for top-level entries.
func getDirPath(path string) string {
	i := strings.LastIndexByte(path, '/')
	if i <= 0 {
		i = 1
	}
	if i >= len(path) {
		return path
	}
	return path[:i]
}

// packPath normalizes "." and ".." components out of an already-absolute
// path, one path component at a time.
func packPath(path string) string {
	if path == "/" {
		return "/"
	}
	name := getFilename(path)
	dirPath := getDirPath(path)
	packedDir := packPath(dirPath)

	switch name {
	case ".":
		return packedDir
	case "..":
		return getDirPath(packedDir)
	}
	if packedDir == "/" {
		return "/" + name
	}
	return packedDir + "/" + name
}

// AbsPath resolves path_arg against the current working directory and
// normalizes it, the way every public operation does before touching the
// descriptor tree.
func (fs *FileSystem) AbsPath(pathArg string) string {
	trimmed := strings.TrimRight(pathArg, "/")
	if trimmed == "" {
		trimmed = "/"
	}

	var full string
	if strings.HasPrefix(trimmed, "/") {
		full = trimmed
	} else if fs.workDir == "/" {
		full = "/" + trimmed
	} else {
		full = fs.workDir + "/" + trimmed
	}
	return packPath(full)
}

// lookupFullDepth resolves an absolute, packed path to its descriptor,
// following a terminal symlink and re-resolving its target, up to
// MaxSymlinkDepth hops.
func (fs *FileSystem) lookupFullDepth(path string, depth int) (*Descriptor, error) {
	if path == "/" {
		return fs.descriptors.get(0)
	}
	return fs.lookupComponent(getDirPath(path), getFilename(path), true, depth)
}

// lookupComponent resolves dirPath (following symlinks along the way) then
// looks up filename inside it, optionally following a terminal symlink.
func (fs *FileSystem) lookupComponent(dirPath, filename string, followSymlinks bool, depth int) (*Descriptor, error) {
	if depth > MaxSymlinkDepth {
		return nil, errors.NotFound.WithMessage("too many levels of symbolic links")
	}

	dir, err := fs.lookupFullDepth(dirPath, depth)
	if err != nil {
		return nil, err
	}
	if dir.Type != TypeDir {
		return nil, errors.NotDir.WithMessage(dirPath)
	}

	entry, err := fs.dirs.find(dir, filename)
	if err != nil {
		return nil, err
	}
	fileDescr, err := fs.descriptors.get(entry.ID)
	if err != nil {
		return nil, err
	}

	if followSymlinks && fileDescr.Type == TypeLink {
		target, err := fs.readSymlinkTarget(fileDescr)
		if err != nil {
			return nil, err
		}
		return fs.lookupFullDepth(target, depth+1)
	}
	return fileDescr, nil
}

// LookupFull resolves an absolute path to its descriptor, following a
// terminal symlink if present.
func (fs *FileSystem) LookupFull(path string) (*Descriptor, error) {
	return fs.lookupFullDepth(path, 0)
}

// LookupLink resolves an absolute path to its descriptor without following
// a terminal symlink (the symlink descriptor itself is returned).
func (fs *FileSystem) LookupLink(path string) (*Descriptor, error) {
	if path == "/" {
		return fs.descriptors.get(0)
	}
	return fs.lookupComponent(getDirPath(path), getFilename(path), false, 0)
}
