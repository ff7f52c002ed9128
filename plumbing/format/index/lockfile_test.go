package index

import (
	"os"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/suite"

	"github.com/go-git/git-odb/plumbing/filemode"
)

type LockfileSuite struct {
	suite.Suite
}

func TestLockfileSuite(t *testing.T) {
	suite.Run(t, new(LockfileSuite))
}

func (s *LockfileSuite) TestWriteThenRead() {
	fs := memfs.New()
	idx := NewIndex()
	e := idx.Add("a.txt")
	e.Mode = filemode.Regular

	w := NewWriter(fs, "index")
	s.Require().NoError(w.Write(idx))

	_, err := fs.Stat("index.lock")
	s.True(os.IsNotExist(err), "lockfile must be removed after a successful write")
	_, err = fs.Stat("index.tmp")
	s.True(os.IsNotExist(err), "temp file must be removed after a successful write")

	f, err := fs.Open("index")
	s.Require().NoError(err)
	defer f.Close()

	fi, err := fs.Stat("index")
	s.Require().NoError(err)
	buf := make([]byte, fi.Size())
	_, err = f.Read(buf)
	s.Require().NoError(err)

	got, err := Decode(buf)
	s.Require().NoError(err)
	s.Equal(1, got.Len())
}

// Scenario S5 — lock contention: a pre-existing lockfile is never deleted
// by a writer that did not create it.
func (s *LockfileSuite) TestPreExistingLockSurvives() {
	fs := memfs.New()
	lock, err := fs.Create("index.lock")
	s.Require().NoError(err)
	s.Require().NoError(lock.Close())

	idx := NewIndex()
	w := NewWriter(fs, "index")
	err = w.Write(idx)
	s.Require().ErrorIs(err, ErrLockedIndex)

	_, err = fs.Stat("index.lock")
	s.NoError(err, "a lockfile this writer did not create must survive")
}

func (s *LockfileSuite) TestRefusesUnresolvedMergeEntries() {
	fs := memfs.New()
	idx := NewIndex()
	e := idx.Add("conflicted.txt")
	e.Stage = OurMode

	w := NewWriter(fs, "index")
	err := w.Write(idx)
	s.Error(err)

	_, err = fs.Stat("index.lock")
	s.True(os.IsNotExist(err))
}
