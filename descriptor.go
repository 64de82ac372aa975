package sfs

import (
	"bytes"
	"encoding/binary"

	"github.com/noxer/bytewriter"

	"github.com/dkrylov/sfs/block"
	"github.com/dkrylov/sfs/errors"
)

// Type is the kind of object a descriptor refers to.
type Type int32

const (
	TypeFree Type = iota
	TypeDir
	TypeFile
	TypeLink
)

// DescriptorID is the index of a descriptor within the table. It also
// doubles as the file's public identity (inode number).
type DescriptorID int32

// NoDescriptor is a sentinel DescriptorID meaning "no descriptor". The
// open-file table does not use it: a free handle slot is nil.
const NoDescriptor DescriptorID = -1

// Descriptor is a single fixed-size record in the descriptor table: a type
// tag, a link count, a byte size, and the object's index block: an array of
// data-block ids whose blocks hold the directory entries of a DIR, the bytes
// of a FILE, or the target path of a LINK.
type Descriptor struct {
	ID       DescriptorID
	Type     Type
	LinksNum int32
	Size     int32
	BlocksID block.ID
}

func encodeDescriptor(d Descriptor) []byte {
	buf := make([]byte, DescriptorSize)
	writer := bytewriter.New(buf)
	binary.Write(writer, binary.LittleEndian, int32(d.ID))
	binary.Write(writer, binary.LittleEndian, int32(d.Type))
	binary.Write(writer, binary.LittleEndian, d.LinksNum)
	binary.Write(writer, binary.LittleEndian, d.Size)
	binary.Write(writer, binary.LittleEndian, int32(d.BlocksID))
	return buf
}

func decodeDescriptor(data []byte) (Descriptor, error) {
	if len(data) < DescriptorSize {
		return Descriptor{}, errors.Err.WithMessage("descriptor record is truncated")
	}
	reader := bytes.NewReader(data)
	var id, typ, links, size, blocksID int32
	fields := []*int32{&id, &typ, &links, &size, &blocksID}
	for _, field := range fields {
		if err := binary.Read(reader, binary.LittleEndian, field); err != nil {
			return Descriptor{}, errors.Err.Wrap(err)
		}
	}
	return Descriptor{
		ID:       DescriptorID(id),
		Type:     Type(typ),
		LinksNum: links,
		Size:     size,
		BlocksID: block.ID(blocksID),
	}, nil
}

// descriptorTable is the in-memory mirror of the on-disk descriptor array,
// write-through on every mutation so the backing file always reflects the
// live state (mirroring how a real memory-mapped region would be
// transparently kept in sync by the OS).
type descriptorTable struct {
	dev      *block.Device
	start    block.ID
	maxFiles int32
	entries  []Descriptor
}

func loadDescriptorTable(dev *block.Device, start block.ID, maxFiles int32) (*descriptorTable, error) {
	raw := make([]byte, int(maxFiles)*DescriptorSize)
	if err := dev.ReadContiguous(start, raw); err != nil {
		return nil, err
	}

	entries := make([]Descriptor, maxFiles)
	for i := int32(0); i < maxFiles; i++ {
		d, err := decodeDescriptor(raw[i*DescriptorSize : (i+1)*DescriptorSize])
		if err != nil {
			return nil, err
		}
		entries[i] = d
	}
	return &descriptorTable{dev: dev, start: start, maxFiles: maxFiles, entries: entries}, nil
}

func newDescriptorTable(dev *block.Device, start block.ID, maxFiles int32) (*descriptorTable, error) {
	entries := make([]Descriptor, maxFiles)
	for i := range entries {
		entries[i] = Descriptor{ID: DescriptorID(i), Type: TypeFree}
	}
	table := &descriptorTable{dev: dev, start: start, maxFiles: maxFiles, entries: entries}
	for i := range entries {
		if err := table.writeSlot(int32(i)); err != nil {
			return nil, err
		}
	}
	return table, nil
}

// writeSlot persists one descriptor record. Records are DescriptorSize bytes
// packed tightly across the table with no padding, so a record does not
// generally align to a block boundary and may straddle two blocks; WriteSpan
// handles that directly instead of the single-block-only WriteAt.
func (t *descriptorTable) writeSlot(id int32) error {
	byteOffset := int64(t.start)*block.Size + int64(id)*DescriptorSize
	return t.dev.WriteSpan(byteOffset, encodeDescriptor(t.entries[id]))
}

// get returns a pointer into the live in-memory table so callers can read
// the descriptor's current fields.
func (t *descriptorTable) get(id DescriptorID) (*Descriptor, error) {
	if id < 0 || int32(id) >= t.maxFiles {
		return nil, errors.NotFound.WithMessage("descriptor id out of range")
	}
	return &t.entries[id], nil
}

// byID performs the linear scan the original implementation used to map a
// public file id back to its descriptor, kept as an explicit code path even
// though in this design id and table index always coincide.
func (t *descriptorTable) byID(id DescriptorID) (*Descriptor, error) {
	for i := range t.entries {
		if t.entries[i].ID == id && t.entries[i].Type != TypeFree {
			return &t.entries[i], nil
		}
	}
	return nil, errors.NotFound.WithMessage("no descriptor with that id")
}

// findFree returns the first FREE slot, matching the allocator's
// lowest-index-first policy.
func (t *descriptorTable) findFree() (*Descriptor, error) {
	for i := range t.entries {
		if t.entries[i].Type == TypeFree {
			return &t.entries[i], nil
		}
	}
	return nil, errors.MaxFilesReached.WithMessage("descriptor table is full")
}

// set overwrites a descriptor's fields and persists the slot immediately.
func (t *descriptorTable) set(d Descriptor) error {
	if d.ID < 0 || int32(d.ID) >= t.maxFiles {
		return errors.NotFound.WithMessage("descriptor id out of range")
	}
	t.entries[d.ID] = d
	return t.writeSlot(int32(d.ID))
}
