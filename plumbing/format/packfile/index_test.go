package packfile

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/go-git/git-odb/plumbing"
)

type IndexSuite struct {
	suite.Suite
}

func TestIndexSuite(t *testing.T) {
	suite.Run(t, new(IndexSuite))
}

func idWithFirstByte(b byte, tiebreak byte) plumbing.ObjectID {
	var id plumbing.ObjectID
	id[0] = b
	id[19] = tiebreak
	return id
}

// buildIndexV1 assembles a legacy v1 pack-index from sorted (id, offset)
// pairs, computing the fan-out table from their first bytes.
func buildIndexV1(entries map[plumbing.ObjectID]uint32) []byte {
	ids := make([]plumbing.ObjectID, 0, len(entries))
	for id := range entries {
		ids = append(ids, id)
	}
	for i := 1; i < len(ids); i++ {
		for j := i; j > 0 && bytes.Compare(ids[j-1][:], ids[j][:]) > 0; j-- {
			ids[j-1], ids[j] = ids[j], ids[j-1]
		}
	}

	var fanout [256]uint32
	for _, id := range ids {
		for b := int(id[0]); b < 256; b++ {
			fanout[b]++
		}
	}

	var buf bytes.Buffer
	for _, f := range fanout {
		buf.Write([]byte{byte(f >> 24), byte(f >> 16), byte(f >> 8), byte(f)})
	}
	for _, id := range ids {
		off := entries[id]
		buf.Write([]byte{byte(off >> 24), byte(off >> 16), byte(off >> 8), byte(off)})
		buf.Write(id.Bytes())
	}
	buf.Write(make([]byte, plumbing.Size)) // pack checksum
	buf.Write(make([]byte, plumbing.Size)) // idx checksum
	return buf.Bytes()
}

func (s *IndexSuite) TestDecodeAndLookup() {
	a := idWithFirstByte(0x01, 0x01)
	b := idWithFirstByte(0x01, 0x02)
	c := idWithFirstByte(0xFF, 0x00)

	data := buildIndexV1(map[plumbing.ObjectID]uint32{a: 12, b: 99, c: 5000})

	idx, err := DecodeIndex(data)
	s.Require().NoError(err)
	s.Equal(3, idx.Len())

	off, ok := idx.Offset(a)
	s.True(ok)
	s.EqualValues(12, off)

	off, ok = idx.Offset(b)
	s.True(ok)
	s.EqualValues(99, off)

	off, ok = idx.Offset(c)
	s.True(ok)
	s.EqualValues(5000, off)

	_, ok = idx.Offset(idWithFirstByte(0x7F, 0x00))
	s.False(ok)
}

func (s *IndexSuite) TestDecodeRejectsWrongSize() {
	data := buildIndexV1(map[plumbing.ObjectID]uint32{idWithFirstByte(1, 1): 0})
	_, err := DecodeIndex(data[:len(data)-1])
	s.ErrorIs(err, plumbing.ErrCorruptObject)
}

func (s *IndexSuite) TestEmptyIndex() {
	data := buildIndexV1(nil)
	idx, err := DecodeIndex(data)
	s.Require().NoError(err)
	s.Equal(0, idx.Len())
}
