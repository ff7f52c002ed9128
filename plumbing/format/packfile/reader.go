package packfile

import (
	"bufio"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
	"github.com/pkg/errors"

	"github.com/go-git/git-odb/plumbing"
)

var signature = []byte("PACK")

const headerLength = 12

// Reader provides sequential and random access over a single pack file
// (spec §4.3). Next, At, and Read and Close on the readers they return
// share one internal lock because they all move the underlying stream
// position; the sequential
// iterator must be drained before random access resumes (spec §5).
type Reader struct {
	mu sync.Mutex

	rs      io.ReadSeeker
	version uint32
	count   uint32

	seqStarted bool
	lastObj    *objectReader
}

// NewReader parses a pack file's 12-byte header from rs and returns a
// Reader ready for sequential iteration via Next or random access via At.
func NewReader(rs io.ReadSeeker) (*Reader, error) {
	header := make([]byte, headerLength)
	if _, err := io.ReadFull(rs, header); err != nil {
		return nil, errors.Wrapf(plumbing.ErrCorruptObject, "reading pack header: %s", err)
	}
	if string(header[:4]) != string(signature) {
		return nil, errors.Wrapf(plumbing.ErrCorruptObject, "bad pack signature %q", header[:4])
	}

	version := beUint32(header[4:8])
	if version != 2 && version != 3 {
		return nil, errors.Wrapf(plumbing.ErrCorruptObject, "unsupported pack version %d", version)
	}
	count := beUint32(header[8:12])

	return &Reader{rs: rs, version: version, count: count}, nil
}

// Version returns the pack format version (2 or 3).
func (r *Reader) Version() uint32 { return r.version }

// Count returns the number of objects the pack header declares.
func (r *Reader) Count() uint32 { return r.count }

// drainPending fully inflates and closes whatever sequential object reader
// is still open, leaving the stream positioned exactly at the end of its
// compressed bytes. Callers must already hold mu.
func (r *Reader) drainPending() error {
	if r.lastObj == nil {
		return nil
	}
	err := r.lastObj.drain()
	r.lastObj = nil
	return err
}

// Next advances the sequential iterator to the following object record and
// returns its header and a reader over its inflated content. A consumer
// that does not fully read or Close the returned reader before the next
// Next call is made whole automatically: Next drains whatever zlib tail
// bytes were left, then continues from the correct offset (spec §4.3
// "Sequential iteration").
func (r *Reader) Next() (ObjectHeader, io.ReadCloser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.seqStarted {
		if _, err := r.rs.Seek(headerLength, io.SeekStart); err != nil {
			return ObjectHeader{}, nil, err
		}
		r.seqStarted = true
	} else if err := r.drainPending(); err != nil {
		return ObjectHeader{}, nil, err
	}

	offset, err := r.rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return ObjectHeader{}, nil, err
	}

	oh, err := readObjectHeader(r.rs)
	if err != nil {
		return ObjectHeader{}, nil, err
	}
	oh.Offset = offset

	obj, err := newObjectReader(r.rs)
	if err != nil {
		return ObjectHeader{}, nil, err
	}
	r.lastObj = obj

	return oh, &seqReadCloser{r: r, obj: obj}, nil
}

// seqReadCloser lets a caller read a sequentially-iterated object's content
// and optionally Close it early; Close (and the following Next call, if
// Close was skipped) both converge on the same drain-and-rewind logic.
type seqReadCloser struct {
	r   *Reader
	obj *objectReader
}

func (s *seqReadCloser) Read(p []byte) (int, error) {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	return s.obj.Read(p)
}

func (s *seqReadCloser) Close() error {
	s.r.mu.Lock()
	defer s.r.mu.Unlock()
	if s.r.lastObj != s.obj {
		return nil
	}
	err := s.obj.drain()
	s.r.lastObj = nil
	return err
}

// At opens the object record at the given pack offset for random access
// (spec §4.3 "Random access (get(id))"). It drains any pending sequential
// object first, and restores the sequential cursor once the returned
// reader is closed, so an interleaved Next call resumes correctly.
func (r *Reader) At(offset int64) (ObjectHeader, io.ReadCloser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.drainPending(); err != nil {
		return ObjectHeader{}, nil, err
	}
	resume, err := r.rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return ObjectHeader{}, nil, err
	}

	if _, err := r.rs.Seek(offset, io.SeekStart); err != nil {
		return ObjectHeader{}, nil, err
	}

	oh, err := readObjectHeader(r.rs)
	if err != nil {
		return ObjectHeader{}, nil, err
	}
	oh.Offset = offset

	obj, err := newObjectReader(r.rs)
	if err != nil {
		return ObjectHeader{}, nil, err
	}

	return oh, &randomReadCloser{r: r, obj: obj, resume: resume}, nil
}

type randomReadCloser struct {
	r      *Reader
	obj    *objectReader
	resume int64
}

func (c *randomReadCloser) Read(p []byte) (int, error) {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	return c.obj.Read(p)
}

func (c *randomReadCloser) Close() error {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	if err := c.obj.drain(); err != nil {
		return err
	}
	_, err := c.r.rs.Seek(c.resume, io.SeekStart)
	return err
}

// objectReader inflates one object's zlib-compressed content through a
// small, dedicated buffer so the look-ahead buffering zlib performs stays
// isolated to this object and can be unwound precisely.
type objectReader struct {
	rs io.ReadSeeker
	br *bufio.Reader
	zr io.ReadCloser
}

func newObjectReader(rs io.ReadSeeker) (*objectReader, error) {
	br := bufio.NewReaderSize(rs, 1024)
	zr, err := zlib.NewReader(br)
	if err != nil {
		return nil, errors.Wrapf(plumbing.ErrCorruptObject, "opening object zlib stream: %s", err)
	}
	return &objectReader{rs: rs, br: br, zr: zr}, nil
}

func (o *objectReader) Read(p []byte) (int, error) {
	return o.zr.Read(p)
}

// drain fully inflates (discarding) whatever content the caller left
// unread, closes the zlib stream, and rewinds rs by the bufio.Reader's
// buffered-but-unconsumed byte count — the "deflater's leftover byte
// count" of spec §4.3 — so the stream sits exactly at the next header.
func (o *objectReader) drain() error {
	scratch := make([]byte, 1024)
	for {
		_, err := o.zr.Read(scratch)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(plumbing.ErrCorruptObject, "draining object content: %s", err)
		}
	}
	if err := o.zr.Close(); err != nil {
		return err
	}
	if buffered := o.br.Buffered(); buffered > 0 {
		if _, err := o.rs.Seek(-int64(buffered), io.SeekCurrent); err != nil {
			return err
		}
	}
	return nil
}

func beUint32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
