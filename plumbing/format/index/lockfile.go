package index

import (
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/pkg/errors"

	"github.com/go-git/git-odb/plumbing"
)

// ErrLockedIndex is returned when a writer finds an existing `.lock` file.
var ErrLockedIndex = errors.New("index file is in use")

// Writer performs the atomic, lockfile-protected replacement of an on-disk
// index file (spec §4.2 "Write (atomic replacement with lockfile)").
type Writer struct {
	fs        billy.Filesystem
	indexPath string
	lockPath  string
	tmpPath   string

	lockCreated bool
}

// NewWriter returns a Writer for the index file at indexPath on fs.
func NewWriter(fs billy.Filesystem, indexPath string) *Writer {
	return &Writer{
		fs:        fs,
		indexPath: indexPath,
		lockPath:  indexPath + ".lock",
		tmpPath:   indexPath + ".tmp",
	}
}

// Write encodes idx and atomically replaces the on-disk index:
//  1. create <index>.lock exclusively, failing with ErrLockedIndex if it
//     already exists;
//  2. stream the encoded body (header, entries, trailing SHA-1) to
//     <index>.tmp;
//  3. remove any existing index file and rename the temp file into place.
//
// It refuses to run if any entry has an unresolved merge stage.
func (w *Writer) Write(idx *Index) (err error) {
	for _, e := range idx.Members() {
		if e.Stage != Merged {
			return errors.Wrap(plumbing.ErrNotSupported, "index has unresolved merge entries")
		}
	}

	defer w.cleanup()

	lock, err := w.fs.OpenFile(w.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return errors.Wrapf(ErrLockedIndex, "%s", w.lockPath)
	}
	w.lockCreated = true
	if err := lock.Close(); err != nil {
		return err
	}

	data, err := Encode(idx)
	if err != nil {
		return err
	}

	tmp, err := w.fs.Create(w.tmpPath)
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if _, statErr := w.fs.Stat(w.indexPath); statErr == nil {
		if err := w.fs.Remove(w.indexPath); err != nil {
			return err
		}
	}

	return w.fs.Rename(w.tmpPath, w.indexPath)
}

// cleanup always removes the temp file if it is still present, but removes
// the lockfile only when this Writer itself created it — a pre-existing
// lock belonging to another writer must survive a failed write (spec §9:
// "A correct implementation should only remove a lock it successfully
// created"; scenario S5).
func (w *Writer) cleanup() {
	if _, err := w.fs.Stat(w.tmpPath); err == nil {
		_ = w.fs.Remove(w.tmpPath)
	}
	if w.lockCreated {
		_ = w.fs.Remove(w.lockPath)
	}
}
