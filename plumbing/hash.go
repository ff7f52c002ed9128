// Package plumbing holds the identity and object-type primitives shared by
// the tree codec, the index, and the pack reader: the content-addressed
// ObjectID, the small object-type enumeration, and the sentinel error kinds
// raised across the core.
package plumbing

import (
	"bytes"
	"encoding/hex"
	"io"

	"github.com/pkg/errors"
)

// Size is the length in bytes of a Git object identifier (SHA-1).
const Size = 20

// HexSize is the length of an ObjectID's hexadecimal string form.
const HexSize = Size * 2

// ZeroID is the distinguished "absent" identifier: all twenty bytes zero.
var ZeroID ObjectID

// ObjectID is a fixed 20-octet content-addressed identifier. It is an
// immutable value type; equality is byte-wise and there is no notion of
// object format beyond SHA-1.
type ObjectID [Size]byte

// FromHex parses a 40-character lowercase hexadecimal string into an
// ObjectID. It returns an error if in is not exactly HexSize hex digits.
func FromHex(in string) (ObjectID, error) {
	var id ObjectID
	if len(in) != HexSize {
		return id, errors.Wrapf(ErrCorruptObject, "hash %q is not %d hex characters", in, HexSize)
	}

	b, err := hex.DecodeString(in)
	if err != nil {
		return id, errors.Wrap(ErrCorruptObject, err.Error())
	}

	copy(id[:], b)
	return id, nil
}

// FromBytes builds an ObjectID from a raw 20-byte slice. ok is false if in
// does not have exactly Size bytes, in which case the zero value is
// returned.
func FromBytes(in []byte) (id ObjectID, ok bool) {
	if len(in) != Size {
		return id, false
	}
	copy(id[:], in)
	return id, true
}

// String returns the lowercase hexadecimal representation of id.
func (id ObjectID) String() string {
	return hex.EncodeToString(id[:])
}

// Bytes returns the raw 20 bytes of id in a newly allocated slice; changing
// it does not affect id.
func (id ObjectID) Bytes() []byte {
	out := make([]byte, Size)
	copy(out, id[:])
	return out
}

// IsZero reports whether id is the distinguished "absent" identifier.
func (id ObjectID) IsZero() bool {
	return id == ZeroID
}

// Compare returns -1, 0 or 1 comparing id's raw bytes against b using
// unsigned lexicographic order, the total ordering the spec mandates for
// ObjectIDs and for Index keys alike.
func (id ObjectID) Compare(b []byte) int {
	return bytes.Compare(id[:], b)
}

// Equal reports whether id and other hold the same 20 bytes.
func (id ObjectID) Equal(other ObjectID) bool {
	return id == other
}

// HasPrefix reports whether id's raw bytes start with prefix.
func (id ObjectID) HasPrefix(prefix []byte) bool {
	return bytes.HasPrefix(id[:], prefix)
}

// ReadFrom reads exactly Size raw bytes from r into id.
func (id *ObjectID) ReadFrom(r io.Reader) (int64, error) {
	n, err := io.ReadFull(r, id[:])
	return int64(n), err
}

// WriteTo writes id's raw bytes to w.
func (id ObjectID) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(id[:])
	return int64(n), err
}

// IDSlice attaches sort.Interface to a slice of ObjectID, increasing order.
type IDSlice []ObjectID

func (s IDSlice) Len() int           { return len(s) }
func (s IDSlice) Less(i, j int) bool { return s[i].Compare(s[j][:]) < 0 }
func (s IDSlice) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
