package index

import (
	"bytes"
	"io"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/suite"

	"github.com/go-git/git-odb/plumbing"
	"github.com/go-git/git-odb/plumbing/config"
	"github.com/go-git/git-odb/plumbing/filemode"
)

// fakeBlobStore is an in-memory BlobWriter + BlobOpener keyed by content.
type fakeBlobStore struct {
	blobs map[plumbing.ObjectID][]byte
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{blobs: make(map[plumbing.ObjectID][]byte)}
}

func (b *fakeBlobStore) WriteBlob(r io.Reader) (plumbing.ObjectID, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return plumbing.ZeroID, err
	}
	h := plumbing.NewHasher(plumbing.BlobObject, int64(len(data)))
	h.Write(data)
	id := h.Sum()
	b.blobs[id] = data
	return id, nil
}

func (b *fakeBlobStore) OpenBlob(id plumbing.ObjectID) (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(b.blobs[id])), nil
}

type WorkdirSuite struct {
	suite.Suite
}

func TestWorkdirSuite(t *testing.T) {
	suite.Run(t, new(WorkdirSuite))
}

func (s *WorkdirSuite) TestAddFileStagesContent() {
	fs := memfs.New()
	f, err := fs.Create("hello.txt")
	s.Require().NoError(err)
	_, err = f.Write([]byte("hello world"))
	s.Require().NoError(err)
	s.Require().NoError(f.Close())

	cfg := config.NewStatic()
	store := newFakeBlobStore()
	idx := NewIndex()

	e, err := idx.AddFile(fs, cfg, store, "hello.txt")
	s.Require().NoError(err)
	s.Equal(uint32(len("hello world")), e.Size)
	s.Equal(filemode.Regular, e.Mode)
	s.NotEqual(plumbing.ZeroID, e.Hash)
}

func (s *WorkdirSuite) TestIsModifiedAssumeValidShortCircuits() {
	fs := memfs.New()
	cfg := config.NewStatic()
	idx := NewIndex()
	e := idx.Add("gone.txt")
	e.Mode = filemode.Regular
	e.AssumeValid = true

	modified, err := e.IsModified(fs, cfg, false)
	s.Require().NoError(err)
	s.False(modified)
}

func (s *WorkdirSuite) TestIsModifiedMissingFile() {
	fs := memfs.New()
	cfg := config.NewStatic()
	idx := NewIndex()
	e := idx.Add("missing.txt")
	e.Mode = filemode.Regular

	modified, err := e.IsModified(fs, cfg, false)
	s.Require().NoError(err)
	s.True(modified)
}

func (s *WorkdirSuite) TestIsModifiedDetectsSizeDrift() {
	fs := memfs.New()
	f, err := fs.Create("a.txt")
	s.Require().NoError(err)
	_, err = f.Write([]byte("123456"))
	s.Require().NoError(err)
	s.Require().NoError(f.Close())

	fi, err := fs.Stat("a.txt")
	s.Require().NoError(err)

	cfg := config.NewStatic()
	idx := NewIndex()
	e := idx.Add("a.txt")
	e.Mode = filemode.Regular
	e.Size = 3
	e.ModifiedAt = fi.ModTime()

	modified, err := e.IsModified(fs, cfg, false)
	s.Require().NoError(err)
	s.True(modified)
}

func (s *WorkdirSuite) TestIsModifiedMtimeNormalizedToSeconds() {
	fs := memfs.New()
	f, err := fs.Create("a.txt")
	s.Require().NoError(err)
	_, err = f.Write([]byte("123456"))
	s.Require().NoError(err)
	s.Require().NoError(f.Close())

	fi, err := fs.Stat("a.txt")
	s.Require().NoError(err)

	cfg := config.NewStatic()
	idx := NewIndex()
	e := idx.Add("a.txt")
	e.Mode = filemode.Regular
	e.Size = 6
	// Stored mtime has zero nanoseconds (whole-second-only filesystem);
	// the comparison must round the real mtime down to the second too.
	e.ModifiedAt = fi.ModTime().Truncate(time.Second)

	modified, err := e.IsModified(fs, cfg, false)
	s.Require().NoError(err)
	s.False(modified)
}

func (s *WorkdirSuite) TestCheckoutWritesContentAndRestampsTime() {
	fs := memfs.New()
	cfg := config.NewStatic()
	store := newFakeBlobStore()

	id, err := store.WriteBlob(bytes.NewReader([]byte("payload")))
	s.Require().NoError(err)

	idx := NewIndex()
	e := idx.Add("dir/file.txt")
	e.Mode = filemode.Regular
	e.Hash = id
	e.Size = uint32(len("payload"))

	s.Require().NoError(idx.Checkout(fs, cfg, store))

	f, err := fs.Open("dir/file.txt")
	s.Require().NoError(err)
	defer f.Close()
	data, err := io.ReadAll(f)
	s.Require().NoError(err)
	s.Equal("payload", string(data))

	s.False(e.ModifiedAt.IsZero())
}
