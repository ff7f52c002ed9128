package index

import (
	"fmt"
	"io"
	"os"
	"path"
	"time"

	"github.com/go-git/go-billy/v5"

	"github.com/go-git/git-odb/plumbing"
	"github.com/go-git/git-odb/plumbing/config"
	"github.com/go-git/git-odb/plumbing/filemode"
)

// BlobWriter is the narrow collaborator AddFile needs to turn working-tree
// content into a stored blob (spec §6 "writeBlob(file|bytes) -> ObjectId").
type BlobWriter interface {
	WriteBlob(r io.Reader) (plumbing.ObjectID, error)
}

// BlobOpener is the narrow collaborator Checkout needs to recover a blob's
// content (spec §6 "openBlob(id) -> ObjectLoader").
type BlobOpener interface {
	OpenBlob(id plumbing.ObjectID) (io.ReadCloser, error)
}

// AddFile stages the file at the workdir-relative path name, streaming its
// content through writer and stamping stat-cache fields from fs (spec §4.2
// "Adding from the working tree").
func (idx *Index) AddFile(fs billy.Filesystem, cfg config.Config, writer BlobWriter, name string) (*Entry, error) {
	name = path.Clean(toSlash(name))

	f, err := fs.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := fs.Stat(name)
	if err != nil {
		return nil, err
	}

	id, err := writer.WriteBlob(f)
	if err != nil {
		return nil, err
	}

	e, existed := idx.Get(name)
	if !existed {
		e = &Entry{Name: name, CreatedAt: fi.ModTime()}
	}

	e.ModifiedAt = fi.ModTime()
	e.Size = uint32(fi.Size())
	e.Hash = id
	if cfg.GetBoolean("core", "", "filemode", true) && isExecutable(fi) {
		e.Mode = filemode.Executable
	} else {
		e.Mode = filemode.Regular
	}

	idx.Put(e)
	return e, nil
}

// IsModified implements the 8-step modification-detection policy of spec
// §4.2 ("isModified"), in order: assume-valid short-circuit, update-needed
// short-circuit, missing-file check, mode coherence, size, mtime (with
// whole-second normalization for filesystems that record only seconds),
// and, only when forceContentCheck is set, a final content re-hash.
func (e *Entry) IsModified(fs billy.Filesystem, cfg config.Config, forceContentCheck bool) (bool, error) {
	if e.AssumeValid {
		return false, nil
	}
	if e.UpdateNeeded {
		return true, nil
	}

	fi, err := fs.Stat(e.Name)
	if err != nil {
		return true, nil
	}

	filemodeTracked := cfg.GetBoolean("core", "", "filemode", true)

	switch e.Mode {
	case filemode.Symlink:
		return true, nil
	case filemode.Dir:
		return !fi.IsDir(), nil
	case filemode.Regular, filemode.Executable:
		if !fi.Mode().IsRegular() {
			return true, nil
		}
		if filemodeTracked && (e.Mode == filemode.Executable) != isExecutable(fi) {
			return true, nil
		}
	}

	if uint32(fi.Size()) != e.Size {
		return true, nil
	}

	mtime := fi.ModTime()
	stored := e.ModifiedAt
	if stored.Nanosecond() == 0 {
		mtime = mtime.Truncate(time.Second)
	}
	if mtime.Equal(stored) {
		return false, nil
	}
	if !forceContentCheck {
		return true, nil
	}

	id, err := hashFile(fs, e.Name)
	if err != nil {
		return false, err
	}
	return !id.Equal(e.Hash), nil
}

// Checkout writes every stage-0 entry's blob content to its path under fs,
// applying the executable bit subject to core.filemode, and rewrites the
// entry's ctime/mtime from the file it just produced so a subsequent
// IsModified call does not immediately report a false positive (spec §4.2
// "Checkout").
func (idx *Index) Checkout(fs billy.Filesystem, cfg config.Config, opener BlobOpener) error {
	filemodeTracked := cfg.GetBoolean("core", "", "filemode", true)

	for _, e := range idx.Members() {
		if e.Stage != Merged {
			continue
		}

		if dir := path.Dir(e.Name); dir != "." {
			if err := fs.MkdirAll(dir, 0o755); err != nil {
				return err
			}
		}

		blob, err := opener.OpenBlob(e.Hash)
		if err != nil {
			return err
		}

		perm := os.FileMode(0o644)
		if filemodeTracked && e.Mode == filemode.Executable {
			perm = 0o755
		}

		out, err := fs.OpenFile(e.Name, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
		if err != nil {
			blob.Close()
			return err
		}

		n, err := io.Copy(out, blob)
		blob.Close()
		if err != nil {
			out.Close()
			return err
		}
		if n != int64(e.Size) && e.Size != 0 {
			out.Close()
			return fmt.Errorf("short write for %q: wrote %d of %d bytes", e.Name, n, e.Size)
		}
		if err := out.Close(); err != nil {
			return err
		}

		fi, err := fs.Stat(e.Name)
		if err != nil {
			return err
		}
		e.ModifiedAt = fi.ModTime()
		e.CreatedAt = fi.ModTime()
	}

	return nil
}

// isExecutable reports whether fi's permission bits include any execute bit.
func isExecutable(fi os.FileInfo) bool {
	return fi.Mode()&0o111 != 0
}

// hashFile recomputes the blob identifier of the workdir file at name,
// for the forced re-hash step of IsModified.
func hashFile(fs billy.Filesystem, name string) (plumbing.ObjectID, error) {
	fi, err := fs.Stat(name)
	if err != nil {
		return plumbing.ZeroID, err
	}

	f, err := fs.Open(name)
	if err != nil {
		return plumbing.ZeroID, err
	}
	defer f.Close()

	h := plumbing.NewHasher(plumbing.BlobObject, fi.Size())
	if _, err := io.Copy(h, f); err != nil {
		return plumbing.ZeroID, err
	}
	return h.Sum(), nil
}
