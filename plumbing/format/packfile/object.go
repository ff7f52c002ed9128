package packfile

import (
	"io"

	"github.com/pkg/errors"

	"github.com/go-git/git-odb/plumbing"
)

// ObjectHeader describes the header a pack object record carries: its
// type, inflated size, and — for a REF_DELTA — the base object it is
// expressed against (spec §4.3 "Object record header").
type ObjectHeader struct {
	Type   plumbing.ObjectType
	Size   int64
	Base   plumbing.ObjectID
	Offset int64
}

// readObjectHeader parses one object record header from r: a 3-bit type
// code and variable-length size packed into the leading byte(s) (bit 7 is
// a continuation flag, bits 6..4 the type on the first byte, bits 3..0 its
// low 4 size bits; each continuation byte then contributes 7 more size
// bits, LSB-first), followed by the 20-byte base identifier for REF_DELTA.
func readObjectHeader(r io.Reader) (ObjectHeader, error) {
	var buf [1]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return ObjectHeader{}, err
	}
	first := buf[0]

	typ := plumbing.ObjectType((first >> 4) & 0x7)
	size := int64(first & 0x0F)
	shift := uint(4)

	for first&0x80 != 0 {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return ObjectHeader{}, err
		}
		first = buf[0]
		size |= int64(first&0x7F) << shift
		shift += 7
	}

	switch typ {
	case plumbing.CommitObject, plumbing.TreeObject, plumbing.BlobObject, plumbing.TagObject:
		// ordinary object, nothing further to read in the header.
	case plumbing.OFSDeltaObject:
		return ObjectHeader{}, errors.Wrap(plumbing.ErrNotSupported, "OFS_DELTA objects are not supported")
	case plumbing.RefDeltaObject:
		var base [plumbing.Size]byte
		if _, err := io.ReadFull(r, base[:]); err != nil {
			return ObjectHeader{}, err
		}
		return ObjectHeader{Type: typ, Size: size, Base: plumbing.ObjectID(base)}, nil
	default:
		return ObjectHeader{}, errors.Wrapf(plumbing.ErrNotSupported, "reserved pack object type %d", typ)
	}

	return ObjectHeader{Type: typ, Size: size}, nil
}
