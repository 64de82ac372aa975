// Package block implements the device and block-I/O layers: a
// block-addressable view over a backing byte stream, and the free-space
// bitmap allocator layered on top of it.
package block

import (
	"io"
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/dkrylov/sfs/errors"
)

// Size is the fixed block size mandated by the on-disk format.
const Size = 512

// ID identifies a block by its zero-based index within the device.
type ID uint32

// syncer is implemented by *os.File; it lets Device request a best-effort
// flush without requiring every backing stream to support it.
type syncer interface {
	Sync() error
}

// Device is a view into a backing file (or, in tests, an in-memory buffer)
// where byte offsets correspond 1:1 to block offsets. It is the device layer
// from the design: open/flush/release, plus the single-block read/write
// primitives the rest of the core builds on.
type Device struct {
	stream      io.ReadWriteSeeker
	closer      io.Closer
	syncer      syncer
	totalBlocks uint32
}

// Open maps the backing file at path. It fails unless the file exists and
// its size is an exact multiple of the block size.
func Open(path string) (*Device, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0o600)
	if err != nil {
		return nil, errors.Err.Wrap(err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Err.Wrap(err)
	}

	size := info.Size()
	if size == 0 || size%Size != 0 {
		file.Close()
		return nil, errors.Err.WithMessage("backing file size must be a nonzero multiple of the block size")
	}

	return &Device{
		stream:      file,
		closer:      file,
		syncer:      file,
		totalBlocks: uint32(size / Size),
	}, nil
}

// WrapStream adapts any seekable byte stream (typically an in-memory buffer
// in tests) as a Device of totalBlocks blocks. The stream is assumed to
// already be exactly totalBlocks*Size bytes long.
func WrapStream(stream io.ReadWriteSeeker, totalBlocks uint32) *Device {
	dev := &Device{stream: stream, totalBlocks: totalBlocks}
	if c, ok := stream.(io.Closer); ok {
		dev.closer = c
	}
	if s, ok := stream.(syncer); ok {
		dev.syncer = s
	}
	return dev
}

// TotalBlocks returns the number of blocks in the device.
func (d *Device) TotalBlocks() uint32 {
	return d.totalBlocks
}

// Size returns the total size of the device in bytes.
func (d *Device) Size() int64 {
	return int64(d.totalBlocks) * Size
}

func (d *Device) checkBlock(id ID) error {
	if uint32(id) >= d.totalBlocks {
		return errors.Err.WithMessage("block index out of range")
	}
	return nil
}

func (d *Device) seekToBlock(id ID, offset uint32) error {
	if offset > Size {
		return errors.Err.WithMessage("in-block offset exceeds block size")
	}
	target := int64(id)*Size + int64(offset)
	_, err := d.stream.Seek(target, io.SeekStart)
	if err != nil {
		return errors.Err.Wrap(err)
	}
	return nil
}

// ReadAt reads len(buf) bytes from block id, starting offset bytes into the
// block. The read must not cross into the next block.
func (d *Device) ReadAt(id ID, offset uint32, buf []byte) error {
	if err := d.checkBlock(id); err != nil {
		return err
	}
	if offset+uint32(len(buf)) > Size {
		return errors.Err.WithMessage("read crosses a block boundary")
	}
	if err := d.seekToBlock(id, offset); err != nil {
		return err
	}
	if _, err := io.ReadFull(d.stream, buf); err != nil {
		return errors.Err.Wrap(err)
	}
	return nil
}

// WriteAt writes buf to block id, starting offset bytes into the block. The
// write must not cross into the next block.
func (d *Device) WriteAt(id ID, offset uint32, buf []byte) error {
	if err := d.checkBlock(id); err != nil {
		return err
	}
	if offset+uint32(len(buf)) > Size {
		return errors.Err.WithMessage("write crosses a block boundary")
	}
	if err := d.seekToBlock(id, offset); err != nil {
		return err
	}
	if _, err := d.stream.Write(buf); err != nil {
		return errors.Err.Wrap(err)
	}
	return nil
}

// ReadBlock reads an entire block's contents.
func (d *Device) ReadBlock(id ID) ([]byte, error) {
	buf := make([]byte, Size)
	if err := d.ReadAt(id, 0, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// WriteBlock overwrites an entire block. data must be exactly Size bytes.
func (d *Device) WriteBlock(id ID, data []byte) error {
	if len(data) != Size {
		return errors.Err.WithMessage("block payload must be exactly one block long")
	}
	return d.WriteAt(id, 0, data)
}

// ReadContiguous reads len(buf) bytes starting at the beginning of block
// start, spanning as many contiguous blocks as needed. It's used for the
// superblock, bitmap, and descriptor table, which are laid out as
// contiguous block runs by construction.
func (d *Device) ReadContiguous(start ID, buf []byte) error {
	if err := d.checkBlock(start); err != nil {
		return err
	}
	if err := d.seekToBlock(start, 0); err != nil {
		return err
	}
	if _, err := io.ReadFull(d.stream, buf); err != nil {
		return errors.Err.Wrap(err)
	}
	return nil
}

// WriteContiguous is the write counterpart of ReadContiguous.
func (d *Device) WriteContiguous(start ID, buf []byte) error {
	if err := d.checkBlock(start); err != nil {
		return err
	}
	if err := d.seekToBlock(start, 0); err != nil {
		return err
	}
	if _, err := d.stream.Write(buf); err != nil {
		return errors.Err.Wrap(err)
	}
	return nil
}

// ReadSpan reads len(buf) bytes starting startByte bytes into the device,
// crossing block boundaries freely. It exists for fixed-size records (like
// descriptor table slots) whose size doesn't evenly divide the block size,
// so a record can straddle a block boundary.
func (d *Device) ReadSpan(startByte int64, buf []byte) error {
	if startByte < 0 || startByte+int64(len(buf)) > d.Size() {
		return errors.Err.WithMessage("span is out of device range")
	}
	if _, err := d.stream.Seek(startByte, io.SeekStart); err != nil {
		return errors.Err.Wrap(err)
	}
	if _, err := io.ReadFull(d.stream, buf); err != nil {
		return errors.Err.Wrap(err)
	}
	return nil
}

// WriteSpan is the write counterpart of ReadSpan.
func (d *Device) WriteSpan(startByte int64, buf []byte) error {
	if startByte < 0 || startByte+int64(len(buf)) > d.Size() {
		return errors.Err.WithMessage("span is out of device range")
	}
	if _, err := d.stream.Seek(startByte, io.SeekStart); err != nil {
		return errors.Err.Wrap(err)
	}
	if _, err := d.stream.Write(buf); err != nil {
		return errors.Err.Wrap(err)
	}
	return nil
}

// Flush requests a best-effort sync of the backing store. It is a no-op for
// streams that don't support syncing (e.g. in-memory test buffers).
func (d *Device) Flush() error {
	if d.syncer == nil {
		return nil
	}
	if err := d.syncer.Sync(); err != nil {
		return errors.Err.Wrap(err)
	}
	return nil
}

// Release flushes then tears down the view. Flush and close errors are both
// reported rather than one silently winning.
func (d *Device) Release() error {
	var result *multierror.Error
	if err := d.Flush(); err != nil {
		result = multierror.Append(result, err)
	}
	if d.closer != nil {
		if err := d.closer.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
