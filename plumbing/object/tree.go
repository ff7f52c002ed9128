// Package object implements the Tree data model and its Git-ordered binary
// codec (spec §3, §4.1): a polymorphic TreeEntry sum type (file, executable
// file, symlink, subtree) held in Git tree order inside a Tree, with lazy
// hydration of unloaded subtrees and propagation of the "modified" flag up
// to the root whenever a descendant changes.
package object

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/go-git/git-odb/plumbing"
	"github.com/go-git/git-odb/plumbing/filemode"
)

// ObjectOpener is the narrow slice of the Repository facade (spec §6) the
// Tree codec depends on: OpenTree returns the tree object stored under an
// identifier, already decoded, so its children can be adopted.
type ObjectOpener interface {
	OpenTree(id plumbing.ObjectID) (*Tree, error)
}

// TreeEntry is the sum type described in spec §3: a named, moded node that
// is either a file, a symlink, or a subtree, with a possibly-absent
// identifier and a back-reference to its containing Tree.
type TreeEntry interface {
	// Name is the entry's own path segment (never containing '/').
	Name() string
	// FullName is the '/'-joined chain of names from the root to this entry.
	FullName() string
	// Mode is the entry's FileMode.
	Mode() filemode.FileMode
	// ID is the entry's identifier, or plumbing.ZeroID if it is dirty.
	ID() plumbing.ObjectID
	// Modified reports whether this entry (or, for a Tree, any descendant)
	// has changed since its identifier was last set.
	Modified() bool
	// Parent returns the containing Tree, or nil for the root.
	Parent() *Tree

	setParent(*Tree)
	setID(plumbing.ObjectID)
	markModified()
}

// commonEntry holds the fields shared by every TreeEntry variant.
type commonEntry struct {
	parent   *Tree
	name     string
	id       plumbing.ObjectID
	hasID    bool
	modified bool
}

func (e *commonEntry) Name() string { return e.name }

func (e *commonEntry) FullName() string {
	if e.parent == nil {
		return e.name
	}
	parentName := e.parent.FullName()
	if parentName == "" {
		return e.name
	}
	return parentName + "/" + e.name
}

func (e *commonEntry) ID() plumbing.ObjectID {
	if !e.hasID {
		return plumbing.ZeroID
	}
	return e.id
}

func (e *commonEntry) Modified() bool { return e.modified }

func (e *commonEntry) Parent() *Tree { return e.parent }

func (e *commonEntry) setParent(t *Tree) { e.parent = t }

func (e *commonEntry) setID(id plumbing.ObjectID) {
	e.id = id
	e.hasID = true
	e.modified = false
}

// markModified sets this entry dirty and, if it is attached to a parent,
// recursively invalidates every ancestor up to the root (spec §3: "any
// structural change sets modified and recursively invalidates the
// identifier of every ancestor Tree up to the root").
func (e *commonEntry) markModified() {
	e.modified = true
	e.hasID = false
	if e.parent != nil {
		e.parent.markModified()
	}
}

// FileTreeEntry is a blob entry: a regular or executable file.
type FileTreeEntry struct {
	commonEntry
	mode filemode.FileMode
}

// NewFileTreeEntry constructs a detached file entry. Tree.AddFile and
// Decode use it to build the file entries they insert.
func NewFileTreeEntry(name string, exec bool, id plumbing.ObjectID, hasID bool) *FileTreeEntry {
	mode := filemode.Regular
	if exec {
		mode = filemode.Executable
	}
	e := &FileTreeEntry{mode: mode}
	e.name = name
	e.id = id
	e.hasID = hasID
	e.modified = !hasID
	return e
}

func (e *FileTreeEntry) Mode() filemode.FileMode { return e.mode }

// IsExecutable reports whether this file carries the executable bit.
func (e *FileTreeEntry) IsExecutable() bool { return e.mode == filemode.Executable }

// SymlinkTreeEntry is a symlink entry; its blob content is the link target.
type SymlinkTreeEntry struct {
	commonEntry
}

func NewSymlinkTreeEntry(name string, id plumbing.ObjectID, hasID bool) *SymlinkTreeEntry {
	e := &SymlinkTreeEntry{}
	e.name = name
	e.id = id
	e.hasID = hasID
	e.modified = !hasID
	return e
}

func (e *SymlinkTreeEntry) Mode() filemode.FileMode { return filemode.Symlink }

// Tree is a directory snapshot: an ordered array of children in Git tree
// order (spec §4.1), plus a load-state flag for lazy hydration.
type Tree struct {
	commonEntry

	children []TreeEntry
	loaded   bool
	opener   ObjectOpener
}

// NewTree constructs a new, empty, loaded, modified root Tree (spec §3:
// "An empty Tree is both loaded and modified (novel content)").
func NewTree() *Tree {
	t := &Tree{loaded: true}
	t.modified = true
	return t
}

// NewUnloadedTree constructs a Tree known only by identifier; its children
// hydrate lazily on first access via opener.
func NewUnloadedTree(id plumbing.ObjectID, opener ObjectOpener) *Tree {
	t := &Tree{opener: opener}
	t.id = id
	t.hasID = true
	t.loaded = false
	return t
}

func (t *Tree) Mode() filemode.FileMode { return filemode.Dir }

// SetIdentifier records id as t's persisted identifier and clears its
// modified flag, per spec §3 ("Setting an identifier clears modified").
// Callers that just stored t through a Repository use this to reflect
// that fact back onto the in-memory Tree.
func (t *Tree) SetIdentifier(id plumbing.ObjectID) {
	t.setID(id)
}

// Loaded reports whether this Tree's children are currently in memory.
func (t *Tree) Loaded() bool { return t.loaded }

// Unload drops this Tree's children so they can be reloaded from its
// identifier later. It is an error to unload a modified Tree (spec
// invariant 4: "Only an unmodified Tree may be unloaded").
func (t *Tree) Unload() error {
	if t.modified || !t.hasID {
		return errors.Wrap(plumbing.ErrNotSupported, "cannot unload a modified tree")
	}
	t.children = nil
	t.loaded = false
	return nil
}

// ensureLoaded hydrates an unloaded Tree by asking the opener for the
// decoded tree object and adopting its children (spec §4.1 "Lazy load").
func (t *Tree) ensureLoaded() error {
	if t.loaded {
		return nil
	}
	if t.opener == nil {
		return errors.Wrapf(plumbing.ErrMissingObject, "tree %s has no repository to load from", t.id)
	}

	loaded, err := t.opener.OpenTree(t.id)
	if err != nil {
		return err
	}

	t.children = loaded.children
	for _, c := range t.children {
		c.setParent(t)
	}
	t.loaded = true
	return nil
}

// Members returns this Tree's children in Git tree order. It forces
// hydration if the Tree is unloaded.
func (t *Tree) Members() ([]TreeEntry, error) {
	if err := t.ensureLoaded(); err != nil {
		return nil, err
	}
	out := make([]TreeEntry, len(t.children))
	copy(out, t.children)
	return out, nil
}

// compareNames implements Git tree order (spec §4.1): unsigned byte
// comparison of the name, with a virtual trailing byte — '/' for subtrees,
// NUL for everything else — used as the tie-breaker once one name is a
// prefix of the other.
func compareNames(aName string, aIsTree bool, bName string, bIsTree bool) int {
	a, b := []byte(aName), []byte(bName)
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}

	if len(a) != len(b) {
		// One name is a strict prefix of the other up to n. The shorter
		// name's virtual trailing byte ('/' for a tree, NUL otherwise)
		// stands in for its missing byte at this position and is compared
		// against the longer name's real next byte — not decided by
		// length alone, since e.g. directory "foo" (virtual '/' = 0x2F)
		// sorts after file "foo.txt" ('.' = 0x2E is the next real byte).
		if len(a) < len(b) {
			av := byte(0)
			if aIsTree {
				av = '/'
			}
			if av == b[n] {
				return 0
			}
			if av < b[n] {
				return -1
			}
			return 1
		}
		bv := byte(0)
		if bIsTree {
			bv = '/'
		}
		if a[n] == bv {
			return 0
		}
		if a[n] < bv {
			return -1
		}
		return 1
	}

	// Identical names: the virtual trailing byte breaks the tie.
	av, bv := byte(0), byte(0)
	if aIsTree {
		av = '/'
	}
	if bIsTree {
		bv = '/'
	}
	if av == bv {
		return 0
	}
	if av < bv {
		return -1
	}
	return 1
}

func entryIsTree(e TreeEntry) bool {
	_, ok := e.(*Tree)
	return ok
}

// search performs the binary search described in spec §4.1: children are
// kept sorted by compareNames, and a miss encodes its insertion point as
// -(insertionPoint+1), mirroring the classic Java/JGit binarySearch
// contract this spec's ordering rules are drawn from.
func (t *Tree) search(name string, isTree bool) int {
	lo, hi := 0, len(t.children)
	for lo < hi {
		mid := (lo + hi) / 2
		c := compareNames(t.children[mid].Name(), entryIsTree(t.children[mid]), name, isTree)
		switch {
		case c < 0:
			lo = mid + 1
		case c > 0:
			hi = mid
		default:
			return mid
		}
	}
	return -(lo + 1)
}

// findChild returns the index of the exact (name, isTree) match, or
// (-1, false) if absent.
func (t *Tree) findChild(name string, isTree bool) (int, bool) {
	pos := t.search(name, isTree)
	if pos < 0 {
		return -1, false
	}
	return pos, true
}

func (t *Tree) insertAt(pos int, e TreeEntry) {
	t.children = append(t.children, nil)
	copy(t.children[pos+1:], t.children[pos:])
	t.children[pos] = e
	e.setParent(t)
	t.markModified()
}

// FindMember resolves a '/'-separated path relative to t, returning nil if
// any component is absent (spec §4.1 "Path-addressed operations").
func (t *Tree) FindMember(path string) (TreeEntry, error) {
	cur := t
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if err := cur.ensureLoaded(); err != nil {
			return nil, err
		}

		last := i == len(parts)-1
		if last {
			// A leaf match can be a file, symlink, or subtree; try both
			// kinds of virtual ordering since we don't know the caller's
			// expected kind.
			if pos, ok := cur.findChild(part, false); ok {
				return cur.children[pos], nil
			}
			if pos, ok := cur.findChild(part, true); ok {
				return cur.children[pos], nil
			}
			return nil, nil
		}

		pos, ok := cur.findChild(part, true)
		if !ok {
			return nil, nil
		}
		sub, ok := cur.children[pos].(*Tree)
		if !ok {
			return nil, nil
		}
		cur = sub
	}
	return nil, nil
}

// AddFile inserts a file leaf at path, creating intermediate subtrees as
// needed. It fails with plumbing.ErrEntryExists if path collides with an
// existing entry of any kind (spec §4.1).
func (t *Tree) AddFile(path string, exec bool, id plumbing.ObjectID) (*FileTreeEntry, error) {
	dir, base, err := t.walkToParent(path)
	if err != nil {
		return nil, err
	}

	if pos, ok := dir.findChild(base, false); ok {
		return nil, errors.Wrapf(plumbing.ErrEntryExists, "%s", dir.children[pos].FullName())
	}
	if pos, ok := dir.findChild(base, true); ok {
		return nil, errors.Wrapf(plumbing.ErrEntryExists, "%s", dir.children[pos].FullName())
	}

	entry := NewFileTreeEntry(base, exec, id, !id.IsZero())
	pos := dir.search(base, false)
	dir.insertAt(-(pos + 1), entry)
	return entry, nil
}

// AddTree inserts a subtree at path, creating intermediate subtrees as
// needed. Unlike AddFile, a tie against an existing Tree at the same
// position is idempotent: the existing Tree is returned rather than an
// error (spec §4.1).
func (t *Tree) AddTree(path string) (*Tree, error) {
	dir, base, err := t.walkToParent(path)
	if err != nil {
		return nil, err
	}
	return dir.addTreeChild(base)
}

// addTreeChild is the leaf-level addTree operation: a tie against an
// existing subtree of the same name is idempotent (spec §4.1); a file of
// the same name is a distinct entry in Git tree order and coexists rather
// than colliding (spec §3, S1).
func (dir *Tree) addTreeChild(base string) (*Tree, error) {
	if err := dir.ensureLoaded(); err != nil {
		return nil, err
	}

	if pos, ok := dir.findChild(base, true); ok {
		return dir.children[pos].(*Tree), nil
	}

	sub := NewTree()
	sub.name = base
	pos := dir.search(base, true)
	dir.insertAt(-(pos + 1), sub)
	return sub, nil
}

// descendTree is the intermediate-path-component operation used while
// walking toward a leaf: unlike addTreeChild, a same-named entry that is
// not itself a Tree is a kind disagreement and raises EntryExists (spec
// §4.1 "Adding into an existing entry whose kind disagrees fails with
// EntryExists").
func (dir *Tree) descendTree(base string) (*Tree, error) {
	if err := dir.ensureLoaded(); err != nil {
		return nil, err
	}

	if pos, ok := dir.findChild(base, true); ok {
		return dir.children[pos].(*Tree), nil
	}
	if pos, ok := dir.findChild(base, false); ok {
		return nil, errors.Wrapf(plumbing.ErrEntryExists, "%s", dir.children[pos].FullName())
	}

	sub := NewTree()
	sub.name = base
	pos := dir.search(base, true)
	dir.insertAt(-(pos + 1), sub)
	return sub, nil
}

// walkToParent resolves every component but the last of a '/'-separated
// path, creating intermediate subtrees as it goes, and returns the
// resulting parent Tree plus the final (leaf) component.
func (t *Tree) walkToParent(path string) (*Tree, string, error) {
	parts := strings.Split(path, "/")
	dir := t
	for _, part := range parts[:len(parts)-1] {
		sub, err := dir.descendTree(part)
		if err != nil {
			return nil, "", err
		}
		dir = sub
	}
	return dir, parts[len(parts)-1], nil
}

// Remove detaches the named, exact-kind child from t, if present.
func (t *Tree) Remove(name string, isTree bool) bool {
	if err := t.ensureLoaded(); err != nil {
		return false
	}
	pos, ok := t.findChild(name, isTree)
	if !ok {
		return false
	}
	entry := t.children[pos]
	t.children = append(t.children[:pos], t.children[pos+1:]...)
	entry.setParent(nil)
	t.markModified()
	return true
}

// Encode serializes t's children in Git tree order: for each child,
// ASCII-octal mode (no leading zeros), a space, the raw name bytes, a NUL,
// and the 20 raw identifier bytes (spec §4.1 "Encoding").
func (t *Tree) Encode() ([]byte, error) {
	if err := t.ensureLoaded(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for _, c := range t.children {
		if c.ID().IsZero() {
			return nil, errors.Wrapf(plumbing.ErrCorruptObject, "entry %s has no identifier", c.FullName())
		}
		buf.WriteString(c.Mode().Octal())
		buf.WriteByte(' ')
		buf.WriteString(c.Name())
		buf.WriteByte(0)
		id := c.ID()
		buf.Write(id[:])
	}
	return buf.Bytes(), nil
}

// Decode parses Git tree object bytes into a new, loaded, root Tree (spec
// §4.1 "Decoding"). It rejects unknown modes with plumbing.ErrCorruptObject.
func Decode(data []byte, opener ObjectOpener) (*Tree, error) {
	t := &Tree{loaded: true}
	t.modified = false

	r := bufio.NewReader(bytes.NewReader(data))
	for {
		modeStr, err := r.ReadString(' ')
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(plumbing.ErrCorruptObject, "reading mode: %s", err)
		}
		modeStr = modeStr[:len(modeStr)-1]

		mode, err := filemode.New(modeStr)
		if err != nil || !mode.Known() {
			return nil, errors.Wrapf(plumbing.ErrCorruptObject, "illegal mode %q", modeStr)
		}

		name, err := r.ReadString(0)
		if err != nil {
			return nil, errors.Wrapf(plumbing.ErrCorruptObject, "truncated name: %s", err)
		}
		name = name[:len(name)-1]

		var raw [plumbing.Size]byte
		if _, err := io.ReadFull(r, raw[:]); err != nil {
			return nil, errors.Wrapf(plumbing.ErrCorruptObject, "truncated identifier: %s", err)
		}
		id := plumbing.ObjectID(raw)

		var entry TreeEntry
		switch mode {
		case filemode.Regular:
			entry = NewFileTreeEntry(name, false, id, true)
		case filemode.Executable:
			entry = NewFileTreeEntry(name, true, id, true)
		case filemode.Symlink:
			entry = NewSymlinkTreeEntry(name, id, true)
		case filemode.Dir:
			sub := NewUnloadedTree(id, opener)
			sub.name = name
			entry = sub
		}

		entry.setParent(t)
		t.children = append(t.children, entry)
	}

	return t, nil
}

// Visit flag bits controlling Walk (spec §4.1 "Traversal").
type VisitFlags int

const (
	// ModifiedOnly skips subtrees whose Modified() is false.
	ModifiedOnly VisitFlags = 1 << iota
	// LoadedOnly visits only subtrees already hydrated, never forcing load.
	LoadedOnly
	// ConcurrentModification iterates a defensive copy of children,
	// permitting the visitor to mutate the Tree during traversal.
	ConcurrentModification
)

// Visitor receives pre-order and post-order callbacks during Walk.
type Visitor struct {
	Pre  func(TreeEntry) error
	Post func(TreeEntry) error
}

// Walk traverses t and its descendants depth-first, honoring flags.
func (t *Tree) Walk(v Visitor, flags VisitFlags) error {
	return t.walk(v, flags)
}

func (t *Tree) walk(v Visitor, flags VisitFlags) error {
	if flags&ModifiedOnly != 0 && !t.Modified() {
		return nil
	}

	if v.Pre != nil {
		if err := v.Pre(t); err != nil {
			return err
		}
	}

	if flags&LoadedOnly != 0 && !t.loaded {
		return v.postOrNil(t)
	}
	if err := t.ensureLoaded(); err != nil {
		return err
	}

	children := t.children
	if flags&ConcurrentModification != 0 {
		children = make([]TreeEntry, len(t.children))
		copy(children, t.children)
	}

	for _, c := range children {
		if sub, ok := c.(*Tree); ok {
			if err := sub.walk(v, flags); err != nil {
				return err
			}
			continue
		}
		if flags&ModifiedOnly != 0 && !c.Modified() {
			continue
		}
		if v.Pre != nil {
			if err := v.Pre(c); err != nil {
				return err
			}
		}
		if err := v.postOrNil(c); err != nil {
			return err
		}
	}

	return v.postOrNil(t)
}

func (v Visitor) postOrNil(e TreeEntry) error {
	if v.Post == nil {
		return nil
	}
	return v.Post(e)
}

// FileEntry pairs a flattened file path with its resolved entry; returned
// by Files().
type FileEntry struct {
	Path  string
	Entry TreeEntry
}

// Files flattens every file/symlink leaf beneath t, in Git tree order,
// adapted from the teacher's legacy Tree.Files()/walkEntries to the new
// sum-type TreeEntry.
func (t *Tree) Files() ([]FileEntry, error) {
	var out []FileEntry
	err := t.Walk(Visitor{
		Pre: func(e TreeEntry) error {
			if _, ok := e.(*Tree); ok {
				return nil
			}
			out = append(out, FileEntry{Path: e.FullName(), Entry: e})
			return nil
		},
	}, 0)
	return out, err
}
