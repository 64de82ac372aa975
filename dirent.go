package sfs

import (
	"bytes"
	"encoding/binary"

	"golang.org/x/text/unicode/norm"

	"github.com/dkrylov/sfs/block"
	"github.com/dkrylov/sfs/errors"
)

// FilenameSize is the fixed on-disk width of a directory entry's name field.
const FilenameSize = 20

// DirEntrySize is the packed size of one directory entry: a fixed-width
// filename plus a 4-byte descriptor id.
const DirEntrySize = FilenameSize + 4

// entriesPerBlock is how many directory entries fit in one block.
const entriesPerBlock = block.Size / DirEntrySize

// DirEntry is one (name -> descriptor id) mapping inside one of a
// directory's data blocks.
type DirEntry struct {
	Name string
	ID   DescriptorID
}

func encodeDirEntry(e DirEntry) ([]byte, error) {
	name := norm.NFC.String(e.Name)
	if len(name) > FilenameSize {
		return nil, errors.SizeErr.WithMessage("filename too long")
	}

	buf := make([]byte, DirEntrySize)
	copy(buf, name)
	binary.LittleEndian.PutUint32(buf[FilenameSize:], uint32(e.ID))
	return buf, nil
}

func decodeDirEntry(data []byte) DirEntry {
	nameBytes := bytes.TrimRight(data[:FilenameSize], "\x00")
	id := binary.LittleEndian.Uint32(data[FilenameSize:DirEntrySize])
	return DirEntry{Name: string(nameBytes), ID: DescriptorID(int32(id))}
}

// normalizeName applies the same NFC normalization used when entries are
// written, so lookups compare like with like regardless of the form the
// caller typed the name in.
func normalizeName(name string) string {
	return norm.NFC.String(name)
}

// dirEngine manipulates the directory-entry arrays stored in a directory
// descriptor's data blocks. A directory's index block holds a flat array of
// data-block IDs, one per block of entries, exactly like a file's data block
// list.
type dirEngine struct {
	fs *FileSystem
}

// list returns every live entry of the directory descriptor d, in on-disk
// order.
func (e *dirEngine) list(d *Descriptor) ([]DirEntry, error) {
	blockIDs, err := e.fs.readBlockList(d)
	if err != nil {
		return nil, err
	}

	// A completed block holds entriesPerBlock entries plus the pad that add
	// folds into d.Size when it starts the next block, so whole blocks are
	// counted apart from the partial last one.
	count := int(d.Size)/block.Size*entriesPerBlock + int(d.Size)%block.Size/DirEntrySize
	entries := make([]DirEntry, 0, count)
	remaining := count
	for _, bid := range blockIDs {
		if remaining <= 0 {
			break
		}
		raw, err := e.fs.dev.ReadBlock(bid)
		if err != nil {
			return nil, err
		}
		n := entriesPerBlock
		if remaining < n {
			n = remaining
		}
		for i := 0; i < n; i++ {
			entries = append(entries, decodeDirEntry(raw[i*DirEntrySize:(i+1)*DirEntrySize]))
		}
		remaining -= n
	}
	return entries, nil
}

// find returns the entry named name within directory d, or NotFound.
func (e *dirEngine) find(d *Descriptor, name string) (DirEntry, error) {
	name = normalizeName(name)
	entries, err := e.list(d)
	if err != nil {
		return DirEntry{}, err
	}
	for _, ent := range entries {
		if ent.Name == name {
			return ent, nil
		}
	}
	return DirEntry{}, errors.NotFound.WithMessage("no such entry: " + name)
}

// add appends a new entry to directory d, reusing slack in the last data
// block if there's room, or allocating a fresh data block if not.
func (e *dirEngine) add(d *Descriptor, entry DirEntry) error {
	if _, err := e.find(d, entry.Name); err == nil {
		return errors.Exists.WithMessage("entry already exists: " + entry.Name)
	}

	encoded, err := encodeDirEntry(entry)
	if err != nil {
		return err
	}

	blockIDs, err := e.fs.readBlockList(d)
	if err != nil {
		return err
	}

	// Slack is the room left in the last allocated block: the gap between
	// what a whole number of blocks can hold and what's actually used,
	// ceil(size/bs)*bs - size. It is not simply size % bs: when size sits
	// exactly on a block boundary (e.g. right after an entry was removed
	// from a now-full block), size % bs is 0 but so would an empty block
	// be, and those two cases need opposite answers — the first means "this
	// block is full, start a new one", the second means "no block yet".
	blocksUsed := blocksNumFor(d.Size)
	left := int32(blocksUsed)*block.Size - d.Size
	if len(blockIDs) > 0 && left >= DirEntrySize {
		// Round down to a slot boundary: after removals the in-block size
		// can still carry the pad of a block that was once full.
		posInLastBlock := (block.Size - int(left)) / DirEntrySize * DirEntrySize
		last := blockIDs[len(blockIDs)-1]
		if err := e.fs.dev.WriteAt(last, uint32(posInLastBlock), encoded); err != nil {
			return err
		}
	} else {
		newBlock, err := e.fs.allocBlock()
		if err != nil {
			return err
		}
		full := make([]byte, block.Size)
		copy(full, encoded)
		if err := e.fs.dev.WriteBlock(newBlock, full); err != nil {
			e.fs.freeBlock(newBlock)
			return err
		}
		blockIDs = append(blockIDs, newBlock)
		if err := e.fs.writeBlockList(d, blockIDs); err != nil {
			return err
		}
		// Fold the old last block's slack into d.Size before the new
		// entry's own bytes: left is 0 when there was no previous block (or
		// it ended exactly on a boundary), so this is a no-op in both of
		// those cases.
		d.Size += left
	}

	d.Size += DirEntrySize
	return e.fs.descriptors.set(*d)
}

// remove deletes the entry named name from directory d by swapping it with
// the last live entry and shrinking the directory by one slot, freeing the
// trailing data block when it becomes empty.
//
// The swap overwrites the removed entry's slot with the last entry's bytes.
// When the trailing data block is freed, its slot in the index block is
// zeroed; the slot is found by the block's position in the list, not by the
// block's own numeric id (which is how the program this was ported from
// indexed it).
func (e *dirEngine) remove(d *Descriptor, name string) error {
	name = normalizeName(name)
	entries, err := e.list(d)
	if err != nil {
		return err
	}

	victim := -1
	for i, ent := range entries {
		if ent.Name == name {
			victim = i
			break
		}
	}
	if victim == -1 {
		return errors.NotFound.WithMessage("no such entry: " + name)
	}

	last := len(entries) - 1
	blockIDs, err := e.fs.readBlockList(d)
	if err != nil {
		return err
	}

	if victim != last {
		lastEntry := entries[last]
		encoded, err := encodeDirEntry(lastEntry)
		if err != nil {
			return err
		}
		bIdx := victim / entriesPerBlock
		inBlockOffset := (victim % entriesPerBlock) * DirEntrySize
		if err := e.fs.dev.WriteAt(blockIDs[bIdx], uint32(inBlockOffset), encoded); err != nil {
			return err
		}
	}

	d.Size -= DirEntrySize

	lastBlockIdx := last / entriesPerBlock
	newLastBlockIdx := (last - 1) / entriesPerBlock
	if last == 0 || lastBlockIdx != newLastBlockIdx {
		freedBlock := blockIDs[lastBlockIdx]
		blockIDs = blockIDs[:lastBlockIdx]
		e.fs.freeBlock(freedBlock)
		if err := e.fs.writeBlockList(d, blockIDs); err != nil {
			return err
		}
		if err := e.fs.dev.WriteAt(d.BlocksID, uint32(lastBlockIdx*4), make([]byte, 4)); err != nil {
			return err
		}
	}

	return e.fs.descriptors.set(*d)
}
