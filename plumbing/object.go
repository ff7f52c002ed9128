package plumbing

import "github.com/pkg/errors"

// ObjectType is the ASCII type tag stored in a loose object's header and in
// a pack object record.
type ObjectType int8

const (
	InvalidObject ObjectType = 0
	CommitObject  ObjectType = 1
	TreeObject    ObjectType = 2
	BlobObject    ObjectType = 3
	TagObject     ObjectType = 4
	// OFSDeltaObject and RefDeltaObject only ever appear inside a pack; they
	// are never the type tag of a loose object.
	OFSDeltaObject ObjectType = 6
	RefDeltaObject ObjectType = 7
)

func (t ObjectType) String() string {
	switch t {
	case CommitObject:
		return "commit"
	case TreeObject:
		return "tree"
	case BlobObject:
		return "blob"
	case TagObject:
		return "tag"
	case OFSDeltaObject:
		return "ofs-delta"
	case RefDeltaObject:
		return "ref-delta"
	default:
		return "invalid"
	}
}

// Bytes returns the ASCII representation used in a loose-object header.
func (t ObjectType) Bytes() []byte {
	return []byte(t.String())
}

// ParseObjectType maps a loose-object header type tag to an ObjectType.
func ParseObjectType(s string) (ObjectType, error) {
	switch s {
	case "commit":
		return CommitObject, nil
	case "tree":
		return TreeObject, nil
	case "blob":
		return BlobObject, nil
	case "tag":
		return TagObject, nil
	default:
		return InvalidObject, errors.Wrapf(ErrCorruptObject, "unknown object type %q", s)
	}
}

// Valid reports whether t is a known pack object type code. Type 0 (EXT)
// and 5 are reserved and are never valid.
func (t ObjectType) Valid() bool {
	switch t {
	case CommitObject, TreeObject, BlobObject, TagObject, OFSDeltaObject, RefDeltaObject:
		return true
	default:
		return false
	}
}

// IsDelta reports whether t is one of the two delta representations.
func (t ObjectType) IsDelta() bool {
	return t == OFSDeltaObject || t == RefDeltaObject
}
