// Package filemode holds the small, closed set of POSIX-like mode bits a
// tree entry or index entry can carry.
package filemode

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"github.com/go-git/git-odb/plumbing"
)

// FileMode is the Git-internal mode of a tree or index entry: an ASCII
// octal integer on the wire, a fixed enumeration in memory.
type FileMode uint32

const (
	// Missing represents the absence of a mode, e.g. a deleted path.
	Missing FileMode = 0
	// Regular is a non-executable file (100644).
	Regular FileMode = 0o100644
	// Executable is an executable file (100755).
	Executable FileMode = 0o100755
	// Symlink is a symbolic link whose blob content is the link target (120000).
	Symlink FileMode = 0o120000
	// Dir is a subtree (040000).
	Dir FileMode = 0o40000
)

// New parses the ASCII octal mode string used in tree object encoding and in
// tools that print modes (e.g. "100644", "40000"). Unlike the index binary
// format, this accepts any octal integer, returning Missing for "0"; the
// empty string is an error. The Tree decoder is responsible for rejecting modes
// outside the four known values with plumbing.ErrCorruptObject.
func New(s string) (FileMode, error) {
	if s == "" {
		return Missing, fmt.Errorf("invalid mode %q", s)
	}

	n, err := strconv.ParseUint(s, 8, 32)
	if err != nil {
		return Missing, errors.Wrapf(err, "invalid mode %q", s)
	}

	return FileMode(n), nil
}

// String renders mode as Git does: zero-padded to 7 octal digits.
func (m FileMode) String() string {
	return fmt.Sprintf("%07o", uint32(m))
}

// Octal renders mode as the unpadded ASCII octal integer used in tree
// object encoding ("100644", not "0100644").
func (m FileMode) Octal() string {
	return strconv.FormatUint(uint64(m), 8)
}

// IsFile reports whether mode denotes something with blob content: a
// regular file, an executable file, or a symlink.
func (m FileMode) IsFile() bool {
	switch m {
	case Regular, Executable, Symlink:
		return true
	default:
		return false
	}
}

// IsTree reports whether mode denotes a subtree.
func (m FileMode) IsTree() bool {
	return m == Dir
}

// Matches extracts this variant's kind from raw mode bits, ignoring bits
// beyond the type — used when reading the index, where the permission bits
// of a regular/executable file vary but the type nibble does not.
func (m FileMode) Matches(bits uint32) bool {
	switch m {
	case Regular:
		return bits&0o170000 == 0o100000 && bits&0o111 == 0
	case Executable:
		return bits&0o170000 == 0o100000 && bits&0o111 != 0
	case Symlink:
		return bits&0o170000 == uint32(Symlink)&0o170000
	case Dir:
		return bits&0o170000 == uint32(Dir)&0o170000
	case Missing:
		return bits == 0
	default:
		return false
	}
}

// Known reports whether mode is one of the four variants the Tree codec
// accepts, per spec: REGULAR_FILE, EXECUTABLE_FILE, SYMLINK, TREE.
func (m FileMode) Known() bool {
	switch m {
	case Regular, Executable, Symlink, Dir:
		return true
	default:
		return false
	}
}

// FromIndexBits maps raw 32-bit index mode bits (st_mode-shaped: type nibble
// plus permission bits) onto the four known FileMode variants, ignoring the
// permission bits beyond the executable test. It returns
// plumbing.ErrCorruptObject if bits do not match any known type nibble.
func FromIndexBits(bits uint32) (FileMode, error) {
	switch {
	case Regular.Matches(bits):
		return Regular, nil
	case Executable.Matches(bits):
		return Executable, nil
	case Symlink.Matches(bits):
		return Symlink, nil
	case Dir.Matches(bits):
		return Dir, nil
	case bits == 0:
		return Missing, nil
	default:
		return Missing, errors.Wrapf(plumbing.ErrCorruptObject, "unrecognized mode bits %07o", bits)
	}
}
