// Package objfile implements Git's loose-object wire format: a zlib-deflated
// container whose decompressed body begins with an ASCII
// "<type> <size>\0" header followed by the object's raw content.
package objfile

import (
	"bufio"
	"fmt"
	"io"
	"strconv"

	"github.com/klauspost/compress/zlib"

	"github.com/go-git/git-odb/plumbing"
)

// Reader decompresses a loose object and exposes its type, declared size,
// and content, while accumulating the same SHA-1 over "<type> <size>\0" +
// content that the object's identifier is computed from.
type Reader struct {
	zr  io.ReadCloser
	br  *bufio.Reader
	tr  io.Reader
	h   plumbing.Hasher

	headerDone bool
	typ        plumbing.ObjectType
	size       int64
}

// NewReader wraps r, a zlib-compressed loose object stream.
func NewReader(r io.Reader) (*Reader, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("objfile: %w", err)
	}
	return &Reader{zr: zr, br: bufio.NewReader(zr)}, nil
}

// Header reads and parses the "<type> <size>\0" prefix. It is idempotent:
// calling it again after the first successful call returns the cached
// values.
func (r *Reader) Header() (plumbing.ObjectType, int64, error) {
	if r.headerDone {
		return r.typ, r.size, nil
	}

	typStr, err := r.br.ReadString(' ')
	if err != nil {
		return 0, 0, fmt.Errorf("objfile: reading type: %w", err)
	}
	typStr = typStr[:len(typStr)-1]

	typ, err := plumbing.ParseObjectType(typStr)
	if err != nil {
		return 0, 0, fmt.Errorf("objfile: %w", err)
	}

	sizeStr, err := r.br.ReadString(0)
	if err != nil {
		return 0, 0, fmt.Errorf("objfile: reading size: %w", err)
	}
	sizeStr = sizeStr[:len(sizeStr)-1]

	size, err := strconv.ParseInt(sizeStr, 10, 64)
	if err != nil || size < 0 {
		return 0, 0, fmt.Errorf("objfile: %w: invalid size %q", plumbing.ErrCorruptObject, sizeStr)
	}

	r.typ, r.size = typ, size
	r.h = plumbing.NewHasher(typ, size)
	r.tr = io.TeeReader(r.br, r.h)
	r.headerDone = true
	return typ, size, nil
}

// Read returns content bytes following the header, forcing Header() first
// if it has not been called yet.
func (r *Reader) Read(p []byte) (int, error) {
	if !r.headerDone {
		if _, _, err := r.Header(); err != nil {
			return 0, err
		}
	}
	return r.tr.Read(p)
}

// Hash returns the object identifier computed over the header and every
// content byte read so far. Call it only after reading the full content.
func (r *Reader) Hash() plumbing.ObjectID {
	return r.h.Sum()
}

// Close releases the underlying zlib stream.
func (r *Reader) Close() error {
	return r.zr.Close()
}
