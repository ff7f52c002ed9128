package plumbing

import (
	"hash"
	"strconv"

	"github.com/pjbgf/sha1cd"
)

// Hasher computes the Git object hash: SHA-1 over "<type> <size>\x00" followed
// by the object's raw content. It uses sha1cd, the same collision-detecting
// SHA-1 implementation the teacher repository standardizes on, so a crafted
// SHA-1 collision in the object stream is detected rather than silently
// aliasing two different objects under one ObjectID.
type Hasher struct {
	hash.Hash
}

// NewHasher returns a Hasher primed with the object header for t and size.
func NewHasher(t ObjectType, size int64) Hasher {
	h := Hasher{Hash: sha1cd.New()}
	h.Reset(t, size)
	return h
}

// Reset rewinds the hasher and re-writes the object header for a new type
// and size, so the same Hasher value can be reused across objects.
func (h Hasher) Reset(t ObjectType, size int64) {
	h.Hash.Reset()
	h.Write(t.Bytes())
	h.Write([]byte{' '})
	h.Write([]byte(strconv.FormatInt(size, 10)))
	h.Write([]byte{0})
}

// Sum returns the ObjectID of everything written since the last Reset.
func (h Hasher) Sum() ObjectID {
	var id ObjectID
	copy(id[:], h.Hash.Sum(nil))
	return id
}

// NewPlainHasher returns a Hasher with no object-header preamble: a bare
// SHA-1 (via sha1cd) over whatever bytes are written to it. The index
// trailer and the pack-index checksums hash raw serialized bytes directly,
// unlike loose-object and pack-object hashes which are always preceded by
// a "<type> <size>\0" header.
func NewPlainHasher() Hasher {
	return Hasher{Hash: sha1cd.New()}
}
