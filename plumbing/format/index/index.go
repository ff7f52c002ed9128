// Package index implements the Git index (staging area) binary format:
// an ordered path → Entry map with stat-cache metadata, a byte-exact
// version 2 codec, an atomic lockfile-protected writer, and the
// index→tree materialization algorithm.
package index

import (
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/emirpasic/gods/utils"

	"github.com/go-git/git-odb/plumbing"
	"github.com/go-git/git-odb/plumbing/filemode"
)

// Stage identifies which side of a merge conflict an Entry belongs to.
type Stage uint8

const (
	// Merged is the default, fully-resolved stage.
	Merged Stage = 0
	// AncestorMode is the common-ancestor stage of an unresolved conflict.
	AncestorMode Stage = 1
	// OurMode is "ours" in an unresolved conflict.
	OurMode Stage = 2
	// TheirMode is "theirs" in an unresolved conflict.
	TheirMode Stage = 3
)

// Entry is a single staged path (spec §3 "Index", §4.2 on-disk layout).
type Entry struct {
	Name string

	CreatedAt  time.Time
	ModifiedAt time.Time

	Dev, Inode uint32
	Mode       filemode.FileMode
	UID, GID   uint32
	Size       uint32

	Hash plumbing.ObjectID

	Stage        Stage
	AssumeValid  bool
	UpdateNeeded bool
}

// key returns the unsigned-byte ordered lookup key for e: its raw POSIX
// path bytes. Go string comparison is already byte-wise unsigned, so the
// string itself serves directly as the ordering key (spec §4.1's Tree
// order needs a virtual tie-break byte; the Index's flat key space does
// not).
func (e *Entry) key() string { return e.Name }

// Index is the ordered path→Entry map described in spec §3, backed by an
// emirpasic/gods treemap keyed by raw path bytes in unsigned-byte order —
// the same container the teacher's commitgraph package uses for ordered
// traversal, repurposed here for the one ordered-map role this module
// needs.
type Index struct {
	Version uint32

	entries *treemap.Map

	// Changed records that entries were added, removed, or mutated since
	// the index was last read or written.
	Changed bool
	// StatDirty records that a cached stat entry was refreshed without a
	// content change.
	StatDirty bool
	// LastCacheTime is the mtime of the on-disk index file as of the last
	// successful read, used by RereadIfNecessary.
	LastCacheTime time.Time
}

func pathComparator(a, b interface{}) int {
	return utils.StringComparator(a, b)
}

// NewIndex returns an empty, version-2 Index.
func NewIndex() *Index {
	return &Index{
		Version: 2,
		entries: treemap.NewWith(pathComparator),
	}
}

// Add inserts a new Entry for path, or returns the existing one. The
// caller should check Get first if it needs to distinguish the two cases.
func (idx *Index) Add(name string) *Entry {
	name = path.Clean(toSlash(name))
	if v, ok := idx.entries.Get(name); ok {
		return v.(*Entry)
	}
	e := &Entry{Name: name}
	idx.entries.Put(name, e)
	idx.Changed = true
	return e
}

// Put inserts or replaces the Entry under its own Name.
func (idx *Index) Put(e *Entry) {
	idx.entries.Put(e.key(), e)
	idx.Changed = true
}

// Get returns the entry at path, if any.
func (idx *Index) Get(name string) (*Entry, bool) {
	v, ok := idx.entries.Get(name)
	if !ok {
		return nil, false
	}
	return v.(*Entry), true
}

// Remove deletes the entry at path and returns it, if present.
func (idx *Index) Remove(name string) (*Entry, bool) {
	v, ok := idx.entries.Get(name)
	if !ok {
		return nil, false
	}
	idx.entries.Remove(name)
	idx.Changed = true
	return v.(*Entry), true
}

// Glob returns every entry whose name matches pattern, using the same
// syntax as path.Match.
func (idx *Index) Glob(pattern string) ([]*Entry, error) {
	var out []*Entry
	for _, e := range idx.Members() {
		ok, err := path.Match(pattern, e.Name)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}

// Members returns every entry in ascending unsigned-byte key order (spec
// invariant 6).
func (idx *Index) Members() []*Entry {
	values := idx.entries.Values()
	out := make([]*Entry, len(values))
	for i, v := range values {
		out[i] = v.(*Entry)
	}
	return out
}

// Len returns the number of staged entries.
func (idx *Index) Len() int { return idx.entries.Size() }

// String renders the index roughly as `git ls-files --stage --debug`.
func (idx *Index) String() string {
	var b strings.Builder
	for _, e := range idx.Members() {
		fmt.Fprintf(&b, "%s %s %d\t%s\n", e.Mode, e.Hash, e.Stage, e.Name)
	}
	return b.String()
}

// toSlash normalizes path separators to '/'; see Repository.GitInternalSlash
// for the collaborator-facing equivalent (spec §6 gitInternalSlash).
func toSlash(p string) string {
	return strings.ReplaceAll(p, "\\", "/")
}
