package objfile

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zlib"

	"github.com/go-git/git-odb/plumbing"
)

var (
	// ErrOverflow is returned when a Write would carry the object past the
	// size declared to WriteHeader.
	ErrOverflow = errors.New("objfile: declared object size exceeded")
	// ErrNegativeSize is returned by WriteHeader for a negative size.
	ErrNegativeSize = errors.New("objfile: negative object size")
)

// Writer deflates a loose object to an underlying io.Writer, writing the
// "<type> <size>\0" header first and hashing header+content identically to
// Reader so Hash() yields the object's identifier.
type Writer struct {
	w    io.Writer
	zw   *zlib.Writer
	h    plumbing.Hasher
	mw   io.Writer
	size int64

	written       int64
	headerWritten bool
}

// NewWriter returns a Writer deflating onto w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteHeader declares the object's type and size; it must be called
// exactly once, before any call to Write.
func (w *Writer) WriteHeader(t plumbing.ObjectType, size int64) error {
	if !t.Valid() {
		return fmt.Errorf("objfile: %w: %d", plumbing.ErrIncorrectObjectType, t)
	}
	if size < 0 {
		return ErrNegativeSize
	}

	w.zw = zlib.NewWriter(w.w)
	if _, err := fmt.Fprintf(w.zw, "%s %d\x00", t, size); err != nil {
		return err
	}
	w.h = plumbing.NewHasher(t, size)
	w.mw = io.MultiWriter(w.zw, w.h)
	w.size = size
	w.headerWritten = true
	return nil
}

// Write deflates and hashes content bytes. Writing past the size declared
// to WriteHeader truncates to the declared size and returns ErrOverflow
// alongside the truncated byte count, matching io.Writer's n-written
// contract on error.
func (w *Writer) Write(p []byte) (int, error) {
	if !w.headerWritten {
		return 0, fmt.Errorf("objfile: WriteHeader not called")
	}

	overflow := false
	if remaining := w.size - w.written; int64(len(p)) > remaining {
		p = p[:remaining]
		overflow = true
	}

	n, err := w.mw.Write(p)
	w.written += int64(n)
	if err != nil {
		return n, err
	}
	if overflow {
		return n, ErrOverflow
	}
	return n, nil
}

// Hash returns the object identifier computed over the header and every
// content byte written so far.
func (w *Writer) Hash() plumbing.ObjectID {
	return w.h.Sum()
}

// Close flushes the zlib stream. It does not close the underlying writer.
func (w *Writer) Close() error {
	if w.zw == nil {
		return nil
	}
	return w.zw.Close()
}
