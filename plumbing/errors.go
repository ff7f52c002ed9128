package plumbing

import "errors"

// Error kinds raised by the core, per the error handling design: each
// condition below maps to exactly one of these sentinels so callers can
// use errors.Is regardless of how much call-site context was wrapped in.
var (
	// ErrCorruptObject is returned when bytes that were expected to hold a
	// well-formed tree, index, or pack-index turn out not to.
	ErrCorruptObject = errors.New("corrupt object")

	// ErrMissingObject is returned when the Repository collaborator has no
	// object for an identifier the Tree codec or Index required.
	ErrMissingObject = errors.New("missing object")

	// ErrIncorrectObjectType is returned when an object's type tag disagrees
	// with the kind the caller asked for (e.g. opening a tree as a blob).
	ErrIncorrectObjectType = errors.New("incorrect object type")

	// ErrEntryExists is returned by Tree.AddFile when the target name is
	// already occupied by any entry, and by Tree.AddFile/AddTree when an
	// intermediate path component names an entry that is not a tree.
	ErrEntryExists = errors.New("entry already exists")

	// ErrNotSupported is returned for operations the core deliberately
	// refuses: writing an index with unresolved merge stages, or a pack
	// object of a reserved/unsupported type.
	ErrNotSupported = errors.New("not supported")
)
