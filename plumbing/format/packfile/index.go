package packfile

import (
	"bytes"

	"github.com/pkg/errors"

	"github.com/go-git/git-odb/plumbing"
)

const (
	fanoutSize  = 256 * 4
	idxEntrySize = 4 + plumbing.Size // offset + id
	idxTrailer   = plumbing.Size * 2 // pack sha + idx sha
)

// Index is a legacy version-1 pack-index: a 256-entry fan-out table over
// the first id byte, followed by (offset, id) pairs sorted by id, followed
// by the pack's own checksum and the index file's own checksum (spec §4.3
// "Pack index (sidecar, legacy v1 only)").
type Index struct {
	fanout  [256]uint32
	offsets []uint32
	ids     []plumbing.ObjectID

	PackChecksum  plumbing.ObjectID
	IndexChecksum plumbing.ObjectID
}

// DecodeIndex parses a v1 pack-index. The expected file size is
// 1024 + 24·objectCount + 40; any deviation is CorruptObject.
func DecodeIndex(data []byte) (*Index, error) {
	if len(data) < fanoutSize+idxTrailer {
		return nil, errors.Wrapf(plumbing.ErrCorruptObject, "pack index too small (%d bytes)", len(data))
	}

	var fanout [256]uint32
	for i := 0; i < 256; i++ {
		fanout[i] = beUint32(data[i*4 : i*4+4])
	}
	count := fanout[255]

	wantSize := int64(fanoutSize) + int64(count)*int64(idxEntrySize) + int64(idxTrailer)
	if int64(len(data)) != wantSize {
		return nil, errors.Wrapf(plumbing.ErrCorruptObject, "pack index size %d, want %d for %d objects",
			len(data), wantSize, count)
	}

	offsets := make([]uint32, count)
	ids := make([]plumbing.ObjectID, count)

	pos := fanoutSize
	for i := uint32(0); i < count; i++ {
		offsets[i] = beUint32(data[pos : pos+4])
		var id plumbing.ObjectID
		copy(id[:], data[pos+4:pos+4+plumbing.Size])
		ids[i] = id
		pos += idxEntrySize
	}

	idx := &Index{fanout: fanout, offsets: offsets, ids: ids}
	copy(idx.PackChecksum[:], data[pos:pos+plumbing.Size])
	pos += plumbing.Size
	copy(idx.IndexChecksum[:], data[pos:pos+plumbing.Size])

	return idx, nil
}

// Len returns the number of objects the index records.
func (idx *Index) Len() int { return len(idx.ids) }

// Offset returns the pack offset recorded for id, and whether it was
// found, using the fan-out table to narrow the search window and a binary
// search by id within it (spec §4.3 "Random access (get(id))").
func (idx *Index) Offset(id plumbing.ObjectID) (int64, bool) {
	b0 := id[0]
	lo := uint32(0)
	if b0 > 0 {
		lo = idx.fanout[b0-1]
	}
	hi := idx.fanout[b0]

	for lo < hi {
		mid := (lo + hi) / 2
		cmp := bytes.Compare(idx.ids[mid][:], id[:])
		switch {
		case cmp == 0:
			return int64(idx.offsets[mid]), true
		case cmp < 0:
			lo = mid + 1
		default:
			hi = mid
		}
	}
	return 0, false
}
