package packfile

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/zlib"
	"github.com/stretchr/testify/suite"

	"github.com/go-git/git-odb/plumbing"
)

// encodeObjectHeader builds the type+size header bytes for a pack object
// record, mirroring the wire format readObjectHeader parses.
func encodeObjectHeader(typ plumbing.ObjectType, size int) []byte {
	b := byte(size&0x0F) | byte(typ)<<4
	size >>= 4
	if size > 0 {
		b |= 0x80
	}
	out := []byte{b}
	for size > 0 {
		nb := byte(size & 0x7F)
		size >>= 7
		if size > 0 {
			nb |= 0x80
		}
		out = append(out, nb)
	}
	return out
}

func deflate(content []byte) []byte {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	w.Write(content)
	w.Close()
	return buf.Bytes()
}

func buildRecord(typ plumbing.ObjectType, base plumbing.ObjectID, content []byte) []byte {
	var rec []byte
	rec = append(rec, encodeObjectHeader(typ, len(content))...)
	if typ == plumbing.RefDeltaObject {
		rec = append(rec, base.Bytes()...)
	}
	rec = append(rec, deflate(content)...)
	return rec
}

func buildPack(records ...[]byte) []byte {
	var buf bytes.Buffer
	buf.Write(signature)
	buf.Write([]byte{0, 0, 0, 2})
	count := uint32(len(records))
	buf.Write([]byte{byte(count >> 24), byte(count >> 16), byte(count >> 8), byte(count)})
	for _, r := range records {
		buf.Write(r)
	}
	buf.Write(make([]byte, plumbing.Size)) // trailing checksum, unchecked by Reader
	return buf.Bytes()
}

type ReaderSuite struct {
	suite.Suite
}

func TestReaderSuite(t *testing.T) {
	suite.Run(t, new(ReaderSuite))
}

func (s *ReaderSuite) TestHeaderParsing() {
	pack := buildPack(
		buildRecord(plumbing.BlobObject, plumbing.ZeroID, []byte("hello")),
		buildRecord(plumbing.TreeObject, plumbing.ZeroID, []byte("tree-bytes")),
	)

	r, err := NewReader(bytes.NewReader(pack))
	s.Require().NoError(err)
	s.EqualValues(2, r.Version())
	s.EqualValues(2, r.Count())
}

// Testable Property 8 — sequential iteration is made whole when a consumer does
// not fully drain an object's zlib stream before the next Next call.
func (s *ReaderSuite) TestSequentialIterationWithoutDraining() {
	pack := buildPack(
		buildRecord(plumbing.BlobObject, plumbing.ZeroID, []byte("first object content, long enough to compress")),
		buildRecord(plumbing.BlobObject, plumbing.ZeroID, []byte("second object content")),
	)

	r, err := NewReader(bytes.NewReader(pack))
	s.Require().NoError(err)

	oh1, rc1, err := r.Next()
	s.Require().NoError(err)
	s.Equal(plumbing.BlobObject, oh1.Type)

	// Read only a handful of bytes, never Close or drain explicitly.
	partial := make([]byte, 3)
	_, err = rc1.Read(partial)
	s.Require().NoError(err)

	oh2, rc2, err := r.Next()
	s.Require().NoError(err)
	s.Equal(plumbing.BlobObject, oh2.Type)

	data, err := io.ReadAll(rc2)
	s.Require().NoError(err)
	s.Equal("second object content", string(data))
}

func (s *ReaderSuite) TestSequentialIterationFullyRead() {
	pack := buildPack(
		buildRecord(plumbing.BlobObject, plumbing.ZeroID, []byte("alpha")),
		buildRecord(plumbing.BlobObject, plumbing.ZeroID, []byte("beta")),
	)

	r, err := NewReader(bytes.NewReader(pack))
	s.Require().NoError(err)

	_, rc1, err := r.Next()
	s.Require().NoError(err)
	d1, err := io.ReadAll(rc1)
	s.Require().NoError(err)
	s.Equal("alpha", string(d1))
	s.Require().NoError(rc1.Close())

	_, rc2, err := r.Next()
	s.Require().NoError(err)
	d2, err := io.ReadAll(rc2)
	s.Require().NoError(err)
	s.Equal("beta", string(d2))
}

func (s *ReaderSuite) TestRandomAccessThenResumeSequential() {
	rec1 := buildRecord(plumbing.BlobObject, plumbing.ZeroID, []byte("alpha"))
	rec2 := buildRecord(plumbing.BlobObject, plumbing.ZeroID, []byte("beta"))
	pack := buildPack(rec1, rec2)

	r, err := NewReader(bytes.NewReader(pack))
	s.Require().NoError(err)

	_, rc1, err := r.Next()
	s.Require().NoError(err)
	s.Require().NoError(rc1.Close())

	// Jump to object 2 by offset, then resume sequential iteration — the
	// reader must still find object 2 again via Next.
	offset2 := int64(headerLength + len(rec1))
	oh, rc, err := r.At(offset2)
	s.Require().NoError(err)
	s.Equal(plumbing.BlobObject, oh.Type)
	data, err := io.ReadAll(rc)
	s.Require().NoError(err)
	s.Equal("beta", string(data))
	s.Require().NoError(rc.Close())

	_, rc2, err := r.Next()
	s.Require().NoError(err)
	data2, err := io.ReadAll(rc2)
	s.Require().NoError(err)
	s.Equal("beta", string(data2))
}

func (s *ReaderSuite) TestRejectsBadSignature() {
	_, err := NewReader(bytes.NewReader([]byte("XXXX\x00\x00\x00\x02\x00\x00\x00\x00")))
	s.Error(err)
}

func (s *ReaderSuite) TestRefDeltaExposesBase() {
	base := plumbing.ObjectID{}
	base[0] = 0xAB
	rec := buildRecord(plumbing.RefDeltaObject, base, []byte("delta-bytes"))
	pack := buildPack(rec)

	r, err := NewReader(bytes.NewReader(pack))
	s.Require().NoError(err)

	oh, rc, err := r.Next()
	s.Require().NoError(err)
	s.Equal(plumbing.RefDeltaObject, oh.Type)
	s.Equal(base, oh.Base)
	s.Require().NoError(rc.Close())
}

func (s *ReaderSuite) TestRejectsOfsDelta() {
	rec := []byte{byte(plumbing.OFSDeltaObject) << 4}
	pack := buildPack(rec)

	r, err := NewReader(bytes.NewReader(pack))
	s.Require().NoError(err)

	_, _, err = r.Next()
	s.ErrorIs(err, plumbing.ErrNotSupported)
}
