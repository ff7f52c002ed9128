package repository

import (
	"bytes"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/suite"

	"github.com/go-git/git-odb/plumbing"
	"github.com/go-git/git-odb/plumbing/filemode"
	"github.com/go-git/git-odb/plumbing/object"
)

type RepositorySuite struct {
	suite.Suite
}

func TestRepositorySuite(t *testing.T) {
	suite.Run(t, new(RepositorySuite))
}

func (s *RepositorySuite) TestWriteBlobThenOpen() {
	repo := New(memfs.New(), nil, nil)

	id, err := repo.WriteBlob(bytes.NewReader([]byte("hello blob")))
	s.Require().NoError(err)

	typ, data, err := repo.ReadBytes(id)
	s.Require().NoError(err)
	s.Equal(plumbing.BlobObject, typ)
	s.Equal("hello blob", string(data))
}

func (s *RepositorySuite) TestOpenBlobRejectsWrongType() {
	repo := New(memfs.New(), nil, nil)

	tree := object.NewTree()
	id, err := repo.WriteTree(tree)
	s.Require().NoError(err)

	_, err = repo.OpenBlob(id)
	s.ErrorIs(err, plumbing.ErrIncorrectObjectType)
}

func (s *RepositorySuite) TestOpenMissingObject() {
	repo := New(memfs.New(), nil, nil)
	_, _, err := repo.OpenObject(plumbing.ZeroID)
	s.ErrorIs(err, plumbing.ErrMissingObject)
}

func (s *RepositorySuite) TestWriteTreeThenMapTreeRoundTrips() {
	repo := New(memfs.New(), nil, nil)

	blobID, err := repo.WriteBlob(bytes.NewReader([]byte("file content")))
	s.Require().NoError(err)

	tree := object.NewTree()
	_, err = tree.AddFile("a.txt", false, blobID)
	s.Require().NoError(err)

	treeID, err := repo.WriteTree(tree)
	s.Require().NoError(err)
	s.Equal(treeID, tree.ID())

	lazy, err := repo.OpenTree(treeID)
	s.Require().NoError(err)

	members, err := lazy.Members()
	s.Require().NoError(err)
	s.Require().Len(members, 1)
	s.Equal("a.txt", members[0].Name())
	s.Equal(filemode.Regular, members[0].Mode())
}

func (s *RepositorySuite) TestWriteBlobIsIdempotent() {
	repo := New(memfs.New(), nil, nil)

	id1, err := repo.WriteBlob(bytes.NewReader([]byte("same content")))
	s.Require().NoError(err)
	id2, err := repo.WriteBlob(bytes.NewReader([]byte("same content")))
	s.Require().NoError(err)
	s.Equal(id1, id2)
}
