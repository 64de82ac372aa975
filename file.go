package sfs

import (
	"github.com/dkrylov/sfs/errors"
)

// readRange reads len(buf) bytes from d's data starting at offset,
// spanning as many data blocks as needed.
func (fs *FileSystem) readRange(d *Descriptor, offset int32, buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	ids, err := fs.readBlockList(d)
	if err != nil {
		return err
	}

	blockIdx := int(offset / BlockSize)
	inBlock := uint32(offset % BlockSize)
	pos := 0
	for pos < len(buf) {
		if blockIdx >= len(ids) {
			return errors.SizeErr.WithMessage("read extends past allocated blocks")
		}
		n := BlockSize - inBlock
		if remaining := uint32(len(buf) - pos); remaining < n {
			n = remaining
		}
		if err := fs.dev.ReadAt(ids[blockIdx], inBlock, buf[pos:pos+int(n)]); err != nil {
			return err
		}
		pos += int(n)
		inBlock = 0
		blockIdx++
	}
	return nil
}

// writeRange writes data into d's data blocks starting at offset. The
// caller is responsible for having grown d's index block far enough first.
func (fs *FileSystem) writeRange(d *Descriptor, offset int32, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	ids, err := fs.readBlockList(d)
	if err != nil {
		return err
	}

	blockIdx := int(offset / BlockSize)
	inBlock := uint32(offset % BlockSize)
	pos := 0
	for pos < len(data) {
		if blockIdx >= len(ids) {
			return errors.SizeErr.WithMessage("write extends past allocated blocks")
		}
		n := BlockSize - inBlock
		if remaining := uint32(len(data) - pos); remaining < n {
			n = remaining
		}
		if err := fs.dev.WriteAt(ids[blockIdx], inBlock, data[pos:pos+int(n)]); err != nil {
			return err
		}
		pos += int(n)
		inBlock = 0
		blockIdx++
	}
	return nil
}

// create allocates a fresh descriptor of typ, links it into its parent
// directory under the last component of path, and (for directories) wires
// up "." and "..".
func (fs *FileSystem) create(path string, typ Type) (*Descriptor, error) {
	if _, err := fs.LookupFull(path); err == nil {
		return nil, errors.Exists.WithMessage(path)
	}

	descr, err := fs.descriptors.findFree()
	if err != nil {
		return nil, err
	}

	blockNum, err := fs.allocBlock()
	if err != nil {
		return nil, err
	}

	descr.Type = typ
	descr.LinksNum = 1
	descr.Size = 0
	descr.BlocksID = blockNum
	if err := fs.descriptors.set(*descr); err != nil {
		fs.freeBlock(blockNum)
		return nil, err
	}

	filename := getFilename(path)
	dirPath := getDirPath(path)
	dir, err := fs.LookupFull(dirPath)
	if err != nil {
		return nil, err
	}

	if err := fs.dirs.add(dir, DirEntry{Name: filename, ID: descr.ID}); err != nil {
		return nil, err
	}

	if typ == TypeDir {
		if err := fs.dirs.add(descr, DirEntry{Name: ".", ID: descr.ID}); err != nil {
			return nil, err
		}
		if err := fs.dirs.add(descr, DirEntry{Name: "..", ID: dir.ID}); err != nil {
			return nil, err
		}
	}
	return descr, nil
}

// CreateFile creates a new, empty regular file at path.
func (fs *FileSystem) CreateFile(path string) error {
	if err := fs.checkMount(); err != nil {
		return err
	}
	_, err := fs.create(fs.AbsPath(path), TypeFile)
	return err
}

// MakeDir creates a new, empty directory at path.
func (fs *FileSystem) MakeDir(path string) error {
	if err := fs.checkMount(); err != nil {
		return err
	}
	_, err := fs.create(fs.AbsPath(path), TypeDir)
	return err
}

// rmDescr releases every data block and the index block of descr and marks
// its table slot free.
func (fs *FileSystem) rmDescr(descr *Descriptor) error {
	ids, err := fs.readBlockList(descr)
	if err != nil {
		return err
	}
	for _, id := range ids {
		fs.freeBlock(id)
	}
	fs.freeBlock(descr.BlocksID)

	descr.Type = TypeFree
	descr.Size = 0
	descr.BlocksID = 0
	descr.LinksNum = 0
	return fs.descriptors.set(*descr)
}

// RemoveDir removes the empty directory at path. A directory is empty once
// only "." and ".." remain.
func (fs *FileSystem) RemoveDir(path string) error {
	if err := fs.checkMount(); err != nil {
		return err
	}
	abs := fs.AbsPath(path)
	dir, err := fs.LookupFull(abs)
	if err != nil {
		return err
	}
	if dir.Type != TypeDir {
		return errors.NotDir.WithMessage(abs)
	}

	name := getFilename(abs)
	parent, err := fs.LookupFull(getDirPath(abs))
	if err != nil {
		return err
	}
	if dir.Size > 2*DirEntrySize {
		return errors.NotEmpty.WithMessage(abs)
	}

	if err := fs.dirs.remove(parent, name); err != nil {
		return err
	}

	dir.LinksNum--
	if dir.LinksNum == 0 {
		return fs.rmDescr(dir)
	}
	return fs.descriptors.set(*dir)
}

// MkLink creates a hard link at to pointing at the same descriptor as from.
// Hard links to directories are not rejected, matching the original
// implementation.
func (fs *FileSystem) MkLink(from, to string) error {
	if err := fs.checkMount(); err != nil {
		return err
	}
	fromDescr, err := fs.LookupFull(fs.AbsPath(from))
	if err != nil {
		return err
	}

	absTo := fs.AbsPath(to)
	toDir, err := fs.LookupFull(getDirPath(absTo))
	if err != nil {
		return err
	}

	if err := fs.dirs.add(toDir, DirEntry{Name: getFilename(absTo), ID: fromDescr.ID}); err != nil {
		return err
	}
	fromDescr.LinksNum++
	return fs.descriptors.set(*fromDescr)
}

// RmLink removes the directory entry at path and drops its target's link
// count, freeing the descriptor once the count reaches zero.
func (fs *FileSystem) RmLink(path string) error {
	if err := fs.checkMount(); err != nil {
		return err
	}
	abs := fs.AbsPath(path)
	file, err := fs.LookupLink(abs)
	if err != nil {
		return err
	}

	dir, err := fs.LookupFull(getDirPath(abs))
	if err != nil {
		return err
	}
	if err := fs.dirs.remove(dir, getFilename(abs)); err != nil {
		return err
	}

	file.LinksNum--
	if file.LinksNum == 0 {
		return fs.rmDescr(file)
	}
	return fs.descriptors.set(*file)
}

// MkSymlink creates a symlink at to whose target text is the absolute,
// normalized form of from. from must already resolve to an existing path.
func (fs *FileSystem) MkSymlink(from, to string) error {
	if err := fs.checkMount(); err != nil {
		return err
	}
	absFrom := fs.AbsPath(from)
	if _, err := fs.LookupFull(absFrom); err != nil {
		return err
	}

	absTo := fs.AbsPath(to)
	link, err := fs.create(absTo, TypeLink)
	if err != nil {
		return err
	}

	return fs.growAndWrite(link, 0, []byte(absFrom))
}

// fidDescriptor resolves an open file handle to its live descriptor.
func (fs *FileSystem) fidDescriptor(fid int) (*Descriptor, error) {
	if fid < 0 || fid >= FIDSNum || fs.fids[fid] == nil {
		return nil, errors.NotFound.WithMessage("bad file handle")
	}
	return fs.descriptors.get(fs.fids[fid].descrID)
}

// OpenFile opens the file or symlink at path and returns a handle for
// ReadFile/WriteFile/CloseFile.
func (fs *FileSystem) OpenFile(path string) (int, error) {
	if err := fs.checkMount(); err != nil {
		return 0, err
	}
	abs := fs.AbsPath(path)
	descr, err := fs.LookupFull(abs)
	if err != nil {
		return 0, err
	}
	if descr.Type != TypeFile && descr.Type != TypeLink {
		return 0, errors.NotFile.WithMessage(abs)
	}

	for fid := range fs.fids {
		if fs.fids[fid] == nil {
			fs.fids[fid] = &openFile{descrID: descr.ID}
			return fid, nil
		}
	}
	return 0, errors.MaxFilesReached.WithMessage("no free file handles")
}

// CloseFile releases a handle obtained from OpenFile.
func (fs *FileSystem) CloseFile(fid int) error {
	if _, err := fs.fidDescriptor(fid); err != nil {
		return err
	}
	fs.fids[fid] = nil
	return nil
}

// ReadFile reads size bytes starting at offset from an open file.
func (fs *FileSystem) ReadFile(fid int, offset, size int32) ([]byte, error) {
	descr, err := fs.fidDescriptor(fid)
	if err != nil {
		return nil, err
	}
	if descr.Type != TypeFile && descr.Type != TypeLink {
		return nil, errors.NotFile.WithMessage("handle is not a file")
	}
	if offset+size > descr.Size {
		return nil, errors.SizeErr.WithMessage("read past end of file")
	}

	buf := make([]byte, size)
	if err := fs.readRange(descr, offset, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// growAndWrite grows d's index block and data blocks as needed so that
// offset+len(data) bytes are addressable, then writes data at offset.
func (fs *FileSystem) growAndWrite(d *Descriptor, offset int32, data []byte) error {
	oldBlocksNum := blocksNumFor(d.Size)
	newSize := offset + int32(len(data))
	newBlocksNum := blocksNumFor(newSize)

	if newBlocksNum > oldBlocksNum {
		ids, err := fs.readBlockList(d)
		if err != nil {
			return err
		}
		for i := oldBlocksNum; i < newBlocksNum; i++ {
			id, err := fs.allocBlock()
			if err != nil {
				// Blocks allocated earlier in this loop are not released: they
				// stay marked in use in the bitmap but are not recorded in d's
				// index block.
				return err
			}
			ids = append(ids, id)
		}
		if err := fs.writeBlockList(d, ids); err != nil {
			return err
		}
	}

	// The resulting size is always offset+len(data), even if that's smaller
	// than the file's previous size: writing in the middle of a file
	// truncates it, matching the original implementation.
	d.Size = newSize
	if err := fs.descriptors.set(*d); err != nil {
		return err
	}

	return fs.writeRange(d, offset, data)
}

// WriteFile writes data to an open file starting at offset. offset must not
// exceed the file's current size.
func (fs *FileSystem) WriteFile(fid int, offset int32, data []byte) error {
	descr, err := fs.fidDescriptor(fid)
	if err != nil {
		return err
	}
	if descr.Type != TypeFile && descr.Type != TypeLink {
		return errors.NotFile.WithMessage("handle is not a file")
	}
	if offset > descr.Size {
		return errors.SizeErr.WithMessage("write starts past end of file")
	}
	return fs.growAndWrite(descr, offset, data)
}

// Truncate changes the byte size of the file at path, releasing trailing
// blocks when shrinking or zero-filling new space when growing.
func (fs *FileSystem) Truncate(path string, newSize int32) error {
	if err := fs.checkMount(); err != nil {
		return err
	}
	abs := fs.AbsPath(path)
	descr, err := fs.LookupFull(abs)
	if err != nil {
		return err
	}
	if descr.Type != TypeFile && descr.Type != TypeLink {
		return errors.NotFile.WithMessage(abs)
	}

	if newSize <= descr.Size {
		oldBlocksNum := blocksNumFor(descr.Size)
		newBlocksNum := blocksNumFor(newSize)
		if newBlocksNum < oldBlocksNum {
			ids, err := fs.readBlockList(descr)
			if err != nil {
				return err
			}
			for i := oldBlocksNum - 1; i >= newBlocksNum; i-- {
				fs.freeBlock(ids[i])
			}
			if err := fs.writeBlockList(descr, ids[:newBlocksNum]); err != nil {
				return err
			}
		}
		descr.Size = newSize
		return fs.descriptors.set(*descr)
	}

	zeros := make([]byte, newSize-descr.Size)
	return fs.growAndWrite(descr, descr.Size, zeros)
}

// FileStat is the decoded form of filestat: everything known about a
// descriptor by its public id.
type FileStat struct {
	ID        DescriptorID
	Type      Type
	Size      int32
	LinksNum  int32
	BlocksNum int
	FilesNum  int // only meaningful when Type == TypeDir
}

// FileStat looks up a descriptor by its public id and reports its metadata.
func (fs *FileSystem) FileStat(id DescriptorID) (FileStat, error) {
	if err := fs.checkMount(); err != nil {
		return FileStat{}, err
	}
	descr, err := fs.descriptors.byID(id)
	if err != nil {
		return FileStat{}, err
	}

	stat := FileStat{
		ID:        descr.ID,
		Type:      descr.Type,
		Size:      descr.Size,
		LinksNum:  descr.LinksNum,
		BlocksNum: blocksNumFor(descr.Size),
	}
	if descr.Type == TypeDir {
		stat.FilesNum = int(descr.Size) / DirEntrySize
	}
	return stat, nil
}

// List returns the names and descriptor ids of a directory's entries, or a
// single entry describing path itself if it is not a directory.
func (fs *FileSystem) List(path string) ([]DirEntry, error) {
	if err := fs.checkMount(); err != nil {
		return nil, err
	}
	abs := fs.AbsPath(path)
	descr, err := fs.LookupFull(abs)
	if err != nil {
		return nil, err
	}
	if descr.Type != TypeDir {
		return []DirEntry{{Name: abs, ID: descr.ID}}, nil
	}
	return fs.dirs.list(descr)
}
