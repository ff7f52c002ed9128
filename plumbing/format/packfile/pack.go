package packfile

import (
	"io"

	"github.com/go-git/git-odb/plumbing"
)

// Pack pairs a pack file's Reader with its sidecar Index for id-addressed
// random access (spec §4.3).
type Pack struct {
	reader *Reader
	index  *Index
}

// NewPack wraps an already-parsed Reader and Index.
func NewPack(reader *Reader, index *Index) *Pack {
	return &Pack{reader: reader, index: index}
}

// Get looks up id in the index and returns the object record found at the
// recorded pack offset, with its type and inflated size already parsed. An
// id absent from the index is not an error condition (spec §8 Testable
// Property 7, scenario S6: "get(unknown) returns null without raising"):
// Get returns a nil reader and a nil error in that case, mirroring the
// (offset, ok) idiom Index.Offset already uses internally.
func (p *Pack) Get(id plumbing.ObjectID) (ObjectHeader, io.ReadCloser, error) {
	offset, ok := p.index.Offset(id)
	if !ok {
		return ObjectHeader{}, nil, nil
	}
	return p.reader.At(offset)
}

// Next delegates to the underlying Reader's sequential iterator.
func (p *Pack) Next() (ObjectHeader, io.ReadCloser, error) {
	return p.reader.Next()
}

// Count returns the number of objects the pack declares.
func (p *Pack) Count() uint32 { return p.reader.Count() }
