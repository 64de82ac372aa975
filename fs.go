// Package sfs implements a single-file, single-process user-space file
// system: a small directory tree of files, directories, and symlinks packed
// into one backing file treated as a fixed-size block device.
package sfs

import (
	"encoding/binary"
	"math"

	"github.com/hashicorp/go-multierror"

	"github.com/dkrylov/sfs/block"
	"github.com/dkrylov/sfs/errors"
)

// FIDSNum is the number of simultaneously open file handles supported.
const FIDSNum = 512

// maxIndexEntries is how many block ids fit in a single index block, which
// bounds the maximum size of any file or directory.
const maxIndexEntries = block.Size / 4

// RootDescriptorID is the descriptor id of the root directory, fixed by
// Mkfs and never reused.
const RootDescriptorID DescriptorID = 0

type openFile struct {
	descrID DescriptorID
}

// FileSystem is a mounted instance of the file system: the open backing
// device, the in-memory mirrors of the bitmap and descriptor table (kept
// write-through so the backing file is always current), the current
// working directory, and the open-file table. It replaces the global
// mutable state of the program this package was ported from; nothing here
// is safe to share across goroutines without external synchronization, one
// FileSystem per backing file at a time.
type FileSystem struct {
	dev         *block.Device
	alloc       *block.Allocator
	sb          Superblock
	descriptors *descriptorTable
	dirs        dirEngine

	workDir string
	fids    [FIDSNum]*openFile
}

// Mkfs formats the backing file at path as a fresh, empty file system and
// leaves it unmounted.
func Mkfs(path string) error {
	dev, err := block.Open(path)
	if err != nil {
		return err
	}
	defer dev.Release()

	return MkfsDevice(dev)
}

// MkfsDevice formats an already-open device as a fresh, empty file system.
// It's split out from Mkfs so tests can format an in-memory device without
// touching the real filesystem.
func MkfsDevice(dev *block.Device) error {
	size := dev.Size()
	blocksNum := uint32(size / BlockSize)

	maskSizeBytes := int((blocksNum + 7) / 8)
	maskBlocksNum := uint32(math.Ceil(float64(maskSizeBytes) / float64(BlockSize)))

	maskOffset := int32(BlockSize)
	maxFiles := int32(math.Ceil(float64(size) / float64(DescriptorSize) * DescriptorsFraction))
	descrTableOffset := maskOffset + int32(maskBlocksNum)*BlockSize
	descrTableBlocksNum := uint32(math.Ceil(float64(maxFiles) * float64(DescriptorSize) / float64(BlockSize)))

	alloc := block.NewAllocator(blocksNum)
	alloc.MarkUsed(0)
	for i := uint32(0); i < maskBlocksNum; i++ {
		alloc.MarkUsed(1 + i)
	}
	descrTableFirstBlock := 1 + maskBlocksNum
	for i := uint32(0); i < descrTableBlocksNum; i++ {
		alloc.MarkUsed(descrTableFirstBlock + i)
	}

	rootBlock, err := alloc.Alloc()
	if err != nil {
		return errors.NoSpaceLeft.WithMessage("not enough room for the root directory")
	}

	sb := Superblock{
		BlockSize:        BlockSize,
		BlocksNum:        int32(blocksNum),
		Size:             int32(size),
		MaskOffset:       maskOffset,
		MaxFiles:         maxFiles,
		DescrTableOffset: descrTableOffset,
	}
	if err := dev.WriteContiguous(0, encodeSuperblock(sb)[:BlockSize]); err != nil {
		return err
	}

	descrStart := block.ID(descrTableOffset / BlockSize)
	table, err := newDescriptorTable(dev, descrStart, maxFiles)
	if err != nil {
		return err
	}

	root := Descriptor{ID: RootDescriptorID, Type: TypeDir, LinksNum: 1, Size: 0, BlocksID: rootBlock}
	if err := table.set(root); err != nil {
		return err
	}

	fs := &FileSystem{dev: dev, alloc: alloc, sb: sb, descriptors: table, dirs: dirEngine{}, workDir: "/"}
	fs.dirs.fs = fs

	rootDescr, err := table.get(RootDescriptorID)
	if err != nil {
		return err
	}
	if err := fs.dirs.add(rootDescr, DirEntry{Name: ".", ID: RootDescriptorID}); err != nil {
		return err
	}
	if err := fs.dirs.add(rootDescr, DirEntry{Name: "..", ID: RootDescriptorID}); err != nil {
		return err
	}

	return fs.syncBitmap()
}

// Mount opens the backing file at path and loads its layout and descriptor
// table into memory.
func Mount(path string) (*FileSystem, error) {
	dev, err := block.Open(path)
	if err != nil {
		return nil, err
	}

	fs, err := MountDevice(dev)
	if err != nil {
		dev.Release()
		return nil, err
	}
	return fs, nil
}

// MountDevice loads the layout and descriptor table of an already-open
// device into memory. It's split out from Mount so tests can mount an
// in-memory device without touching the real filesystem. It fails if block 0
// does not hold a superblock written by Mkfs for a device of this size.
func MountDevice(dev *block.Device) (*FileSystem, error) {
	raw, err := dev.ReadBlock(0)
	if err != nil {
		return nil, err
	}
	sb, err := decodeSuperblock(raw)
	if err != nil {
		return nil, err
	}
	if sb.BlockSize != BlockSize || sb.BlocksNum != int32(dev.TotalBlocks()) {
		return nil, errors.Err.WithMessage("device does not hold a formatted file system")
	}

	maskBytes := make([]byte, sb.MaskSizeBytes())
	if err := dev.ReadContiguous(sb.MaskStartBlock(), maskBytes); err != nil {
		return nil, err
	}
	alloc := block.LoadAllocator(maskBytes, uint32(sb.BlocksNum))

	table, err := loadDescriptorTable(dev, sb.DescrTableStartBlock(), sb.MaxFiles)
	if err != nil {
		return nil, err
	}

	fs := &FileSystem{dev: dev, alloc: alloc, sb: sb, descriptors: table, workDir: "/"}
	fs.dirs.fs = fs
	return fs, nil
}

// IsMounted reports whether fs refers to a live, open backing device. A
// FileSystem obtained from Mount is always mounted; once Unmount succeeds
// the zero value reports false.
func (fs *FileSystem) IsMounted() bool {
	return fs != nil && fs.dev != nil
}

func (fs *FileSystem) checkMount() error {
	if !fs.IsMounted() {
		return errors.NotMount.WithMessage("file system not mounted")
	}
	return nil
}

// Unmount flushes and releases the backing device. Errors from the flush
// and from the close are both reported.
func (fs *FileSystem) Unmount() error {
	if err := fs.checkMount(); err != nil {
		return err
	}
	var result *multierror.Error
	if err := fs.dev.Release(); err != nil {
		result = multierror.Append(result, err)
	}
	fs.dev = nil
	return result.ErrorOrNil()
}

// Pwd returns the current working directory.
func (fs *FileSystem) Pwd() (string, error) {
	if err := fs.checkMount(); err != nil {
		return "", err
	}
	return fs.workDir, nil
}

// Chdir changes the current working directory to path, which must resolve
// to a directory.
func (fs *FileSystem) Chdir(path string) error {
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
	fs.workDir = abs
	return nil
}

// Stats is the decoded form of dump_stats: the layout metadata of a mounted
// file system.
type Stats struct {
	Size             int32
	BlockSize        int32
	BlocksNum        int32
	MaxFiles         int32
	MaskOffset       int32
	DescrTableOffset int32
}

// DumpStats returns the current layout metadata, the Go equivalent of the
// original diagnostic printout.
func (fs *FileSystem) DumpStats() (Stats, error) {
	if err := fs.checkMount(); err != nil {
		return Stats{}, err
	}
	return Stats{
		Size:             fs.sb.Size,
		BlockSize:        fs.sb.BlockSize,
		BlocksNum:        fs.sb.BlocksNum,
		MaxFiles:         fs.sb.MaxFiles,
		MaskOffset:       fs.sb.MaskOffset,
		DescrTableOffset: fs.sb.DescrTableOffset,
	}, nil
}

// GetFileSize returns the byte size of the file, directory, or symlink at
// path.
func (fs *FileSystem) GetFileSize(path string) (int32, error) {
	if err := fs.checkMount(); err != nil {
		return 0, err
	}
	descr, err := fs.LookupFull(fs.AbsPath(path))
	if err != nil {
		return 0, err
	}
	return descr.Size, nil
}

// blocksNumFor returns ceil(size / BlockSize), the number of data blocks a
// descriptor of that byte size currently occupies.
func blocksNumFor(size int32) int {
	if size <= 0 {
		return 0
	}
	return int((size + BlockSize - 1) / BlockSize)
}

// readBlockList returns the live data-block ids referenced by d's index
// block, in order.
func (fs *FileSystem) readBlockList(d *Descriptor) ([]block.ID, error) {
	n := blocksNumFor(d.Size)
	if n == 0 {
		return nil, nil
	}
	raw, err := fs.dev.ReadBlock(d.BlocksID)
	if err != nil {
		return nil, err
	}
	ids := make([]block.ID, n)
	for i := 0; i < n; i++ {
		ids[i] = block.ID(binary.LittleEndian.Uint32(raw[i*4 : i*4+4]))
	}
	return ids, nil
}

// writeBlockList persists ids into d's index block, starting at slot 0.
func (fs *FileSystem) writeBlockList(d *Descriptor, ids []block.ID) error {
	if len(ids) > maxIndexEntries {
		return errors.SizeErr.WithMessage("file has reached the maximum size")
	}
	buf := make([]byte, len(ids)*4)
	for i, id := range ids {
		binary.LittleEndian.PutUint32(buf[i*4:i*4+4], uint32(id))
	}
	if len(buf) == 0 {
		return nil
	}
	return fs.dev.WriteAt(d.BlocksID, 0, buf)
}

func (fs *FileSystem) allocBlock() (block.ID, error) {
	id, err := fs.alloc.Alloc()
	if err != nil {
		return 0, err
	}
	if err := fs.syncBitmap(); err != nil {
		fs.alloc.Free(id)
		return 0, err
	}
	return id, nil
}

func (fs *FileSystem) freeBlock(id block.ID) {
	fs.alloc.Free(id)
	fs.syncBitmap()
}

func (fs *FileSystem) syncBitmap() error {
	return fs.dev.WriteContiguous(fs.sb.MaskStartBlock(), fs.alloc.Bytes()[:fs.sb.MaskSizeBytes()])
}

// readSymlinkTarget reads the full target path stored as a symlink
// descriptor's byte content.
func (fs *FileSystem) readSymlinkTarget(link *Descriptor) (string, error) {
	buf := make([]byte, link.Size)
	if err := fs.readRange(link, 0, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}
