package packfile

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/go-git/git-odb/plumbing"
)

type PackSuite struct {
	suite.Suite
}

func TestPackSuite(t *testing.T) {
	suite.Run(t, new(PackSuite))
}

func (s *PackSuite) TestGetByID() {
	idA := idWithFirstByte(0x10, 0x01)
	idB := idWithFirstByte(0x20, 0x02)

	recA := buildRecord(plumbing.BlobObject, plumbing.ZeroID, []byte("object A content"))
	recB := buildRecord(plumbing.BlobObject, plumbing.ZeroID, []byte("object B content"))
	packBytes := buildPack(recA, recB)

	offsetA := int64(headerLength)
	offsetB := offsetA + int64(len(recA))

	idxBytes := buildIndexV1(map[plumbing.ObjectID]uint32{
		idA: uint32(offsetA),
		idB: uint32(offsetB),
	})

	idx, err := DecodeIndex(idxBytes)
	s.Require().NoError(err)

	reader, err := NewReader(bytes.NewReader(packBytes))
	s.Require().NoError(err)

	pack := NewPack(reader, idx)

	oh, rc, err := pack.Get(idB)
	s.Require().NoError(err)
	s.Equal(plumbing.BlobObject, oh.Type)
	data, err := io.ReadAll(rc)
	s.Require().NoError(err)
	s.Equal("object B content", string(data))
	s.Require().NoError(rc.Close())
}

func (s *PackSuite) TestGetMissingObject() {
	packBytes := buildPack(buildRecord(plumbing.BlobObject, plumbing.ZeroID, []byte("x")))
	idxBytes := buildIndexV1(map[plumbing.ObjectID]uint32{
		idWithFirstByte(0x01, 0x00): uint32(headerLength),
	})

	idx, err := DecodeIndex(idxBytes)
	s.Require().NoError(err)
	reader, err := NewReader(bytes.NewReader(packBytes))
	s.Require().NoError(err)

	pack := NewPack(reader, idx)
	_, rc, err := pack.Get(idWithFirstByte(0xEE, 0x00))
	s.NoError(err, "an id absent from the index is not an error condition")
	s.Nil(rc, "Get returns a nil reader for an unknown id")
}
