// Package repository implements the minimal Repository facade described
// in spec §6: a loose-object store over a go-billy filesystem, built on
// the objfile format, that the Tree codec, Index, and Pack reader consume
// as their narrow collaborator surface rather than owning storage
// themselves.
package repository

import (
	"bytes"
	"io"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/pkg/errors"

	"github.com/go-git/git-odb/plumbing"
	"github.com/go-git/git-odb/plumbing/config"
	"github.com/go-git/git-odb/plumbing/format/objfile"
	"github.com/go-git/git-odb/plumbing/object"
)

const objectsDir = "objects"

// Repository is a minimal, loose-object-only implementation of the
// collaborator contract consumed by object.Tree, index.Index, and the
// packfile readers (spec §6). It does not implement refs, packs as a
// write target, or any network-facing behavior — all out of scope.
type Repository struct {
	// dotGit is the filesystem rooted at the `.git` directory.
	dotGit billy.Filesystem
	// workDir is the filesystem rooted at the working tree, used by
	// Index.AddFile/Checkout; it may be nil for a bare repository.
	workDir billy.Filesystem
	config  config.Config
}

// New returns a Repository whose object store lives under dotGit and
// whose working tree (if any) is workDir.
func New(dotGit, workDir billy.Filesystem, cfg config.Config) *Repository {
	if cfg == nil {
		cfg = config.NewStatic()
	}
	return &Repository{dotGit: dotGit, workDir: workDir, config: cfg}
}

// Config returns the repository's configuration collaborator.
func (r *Repository) Config() config.Config { return r.config }

// GetDirectory returns the path to the `.git` directory (spec §6
// "getDirectory() -> path"). The Repository's dotGit filesystem is
// already rooted there, so this is its root.
func (r *Repository) GetDirectory() string { return r.dotGit.Root() }

// objectPath returns the loose-object path for id: objects/xx/yyyy...,
// the same two-level fan-out the teacher's dotgit package uses.
func objectPath(id plumbing.ObjectID) string {
	hex := id.String()
	return path.Join(objectsDir, hex[:2], hex[2:])
}

// OpenObject returns a reader over id's raw content and its type, or
// plumbing.ErrMissingObject if no loose object exists for id (spec §6
// "openObject(id) -> ObjectLoader | null").
func (r *Repository) OpenObject(id plumbing.ObjectID) (plumbing.ObjectType, io.ReadCloser, error) {
	f, err := r.dotGit.Open(objectPath(id))
	if err != nil {
		return plumbing.InvalidObject, nil, errors.Wrapf(plumbing.ErrMissingObject, "%s", id)
	}

	rd, err := objfile.NewReader(f)
	if err != nil {
		f.Close()
		return plumbing.InvalidObject, nil, err
	}
	typ, _, err := rd.Header()
	if err != nil {
		f.Close()
		return plumbing.InvalidObject, nil, err
	}

	return typ, &objectCloser{Reader: rd, f: f}, nil
}

type objectCloser struct {
	*objfile.Reader
	f billy.File
}

func (o *objectCloser) Close() error {
	err := o.Reader.Close()
	if cerr := o.f.Close(); err == nil {
		err = cerr
	}
	return err
}

// OpenBlob is OpenObject with a type check that the stored object is a
// blob (spec §6 "openBlob(id) -> ObjectLoader").
func (r *Repository) OpenBlob(id plumbing.ObjectID) (io.ReadCloser, error) {
	typ, rc, err := r.OpenObject(id)
	if err != nil {
		return nil, err
	}
	if typ != plumbing.BlobObject {
		rc.Close()
		return nil, errors.Wrapf(plumbing.ErrIncorrectObjectType, "%s is a %s, not a blob", id, typ)
	}
	return rc, nil
}

// OpenTree reads the tree object id, checks that it is a tree, and returns
// it decoded and bound to this repository (spec §6 "mapTree(id) -> Tree");
// its subtrees stay unloaded until first accessed. It is the method
// object.ObjectOpener requires.
func (r *Repository) OpenTree(id plumbing.ObjectID) (*object.Tree, error) {
	if id.IsZero() {
		return nil, errors.Wrap(plumbing.ErrMissingObject, "zero tree id")
	}
	typ, data, err := r.ReadBytes(id)
	if err != nil {
		return nil, err
	}
	if typ != plumbing.TreeObject {
		return nil, errors.Wrapf(plumbing.ErrIncorrectObjectType, "%s is a %s, not a tree", id, typ)
	}
	tree, err := object.Decode(data, r)
	if err != nil {
		return nil, err
	}
	tree.SetIdentifier(id)
	return tree, nil
}

// writeObject deflates data under the "<type> <size>\0" object-file
// header, stores it as a loose object keyed by its own hash, and returns
// that hash. Writing is idempotent: an object that already exists on disk
// is left untouched.
func (r *Repository) writeObject(typ plumbing.ObjectType, data []byte) (plumbing.ObjectID, error) {
	h := plumbing.NewHasher(typ, int64(len(data)))
	if _, err := h.Write(data); err != nil {
		return plumbing.ZeroID, err
	}
	id := h.Sum()

	p := objectPath(id)
	if _, err := r.dotGit.Stat(p); err == nil {
		return id, nil
	}

	if err := r.dotGit.MkdirAll(path.Dir(p), 0o755); err != nil {
		return plumbing.ZeroID, err
	}

	f, err := r.dotGit.Create(p)
	if err != nil {
		return plumbing.ZeroID, err
	}
	defer f.Close()

	w := objfile.NewWriter(f)
	if err := w.WriteHeader(typ, int64(len(data))); err != nil {
		return plumbing.ZeroID, err
	}
	if _, err := w.Write(data); err != nil {
		return plumbing.ZeroID, err
	}
	if err := w.Close(); err != nil {
		return plumbing.ZeroID, err
	}

	return id, nil
}

// WriteBlob streams r fully into memory, deflates it, writes it, and
// returns the blob identifier (spec §6 "writeBlob(file|bytes) -> ObjectId").
// It implements index.BlobWriter.
func (r *Repository) WriteBlob(src io.Reader) (plumbing.ObjectID, error) {
	data, err := io.ReadAll(src)
	if err != nil {
		return plumbing.ZeroID, err
	}
	return r.writeObject(plumbing.BlobObject, data)
}

// WriteTree serializes tree and stores it, stamping tree's own identifier
// on success (spec §6 "writeTree(tree) -> ObjectId"). It implements
// index.TreeWriter.
func (r *Repository) WriteTree(tree *object.Tree) (plumbing.ObjectID, error) {
	data, err := tree.Encode()
	if err != nil {
		return plumbing.ZeroID, err
	}
	id, err := r.writeObject(plumbing.TreeObject, data)
	if err != nil {
		return plumbing.ZeroID, err
	}
	tree.SetIdentifier(id)
	return id, nil
}

// StripWorkDir returns file's path relative to workdir, in '/'-form (spec
// §6 "stripWorkDir(workdir, file) -> string").
func (r *Repository) StripWorkDir(workdir, file string) string {
	rel := strings.TrimPrefix(file, workdir)
	rel = strings.TrimPrefix(rel, "/")
	return GitInternalSlash([]byte(rel))
}

// GitInternalSlash normalizes path separators to '/' (spec §6
// "gitInternalSlash(bytes) -> bytes"); a no-op on POSIX paths, which is
// all this module ever constructs.
func GitInternalSlash(p []byte) string {
	return strings.ReplaceAll(string(p), "\\", "/")
}

// WorkDir returns the working-tree filesystem, or nil for a bare
// repository.
func (r *Repository) WorkDir() billy.Filesystem { return r.workDir }

// ReadBytes is a convenience used by tests and by callers that want an
// object's full content rather than a streaming reader.
func (r *Repository) ReadBytes(id plumbing.ObjectID) (plumbing.ObjectType, []byte, error) {
	typ, rc, err := r.OpenObject(id)
	if err != nil {
		return plumbing.InvalidObject, nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, rc); err != nil {
		return plumbing.InvalidObject, nil, err
	}
	return typ, buf.Bytes(), nil
}
