package index

import (
	"strings"

	"github.com/pkg/errors"

	"github.com/go-git/git-odb/plumbing"
	"github.com/go-git/git-odb/plumbing/filemode"
	"github.com/go-git/git-odb/plumbing/object"
)

// TreeWriter is the narrow collaborator writeTree needs: turning a
// populated in-memory Tree into a stored, identified tree object (spec §6
// "writeTree(tree) -> ObjectId").
type TreeWriter interface {
	WriteTree(tree *object.Tree) (plumbing.ObjectID, error)
}

// WriteTree materializes idx's staged entries into an object.Tree
// hierarchy and stores each subtree through writer, following the
// stack-based longest-common-prefix algorithm of spec §4.2
// "Index → Tree materialization". It refuses to run if any entry has an
// unresolved merge stage.
func WriteTree(idx *Index, writer TreeWriter) (plumbing.ObjectID, error) {
	entries := idx.Members()
	for _, e := range entries {
		if e.Stage != Merged {
			return plumbing.ZeroID, errors.Wrap(plumbing.ErrNotSupported, "index has unresolved merge entries")
		}
	}

	root := object.NewTree()
	stack := []*object.Tree{root}
	var prevParts []string

	closeTo := func(depth int) error {
		for len(stack) > depth+1 {
			top := stack[len(stack)-1]
			id, err := writer.WriteTree(top)
			if err != nil {
				return err
			}
			top.SetIdentifier(id)
			stack = stack[:len(stack)-1]
		}
		return nil
	}

	for _, e := range entries {
		parts := strings.Split(e.Name, "/")

		c := commonPrefixLen(prevParts, parts)
		if err := closeTo(c); err != nil {
			return plumbing.ZeroID, err
		}

		for len(stack) < len(parts) {
			parent := stack[len(stack)-1]
			name := parts[len(stack)-1]
			sub, err := parent.AddTree(name)
			if err != nil {
				return plumbing.ZeroID, err
			}
			stack = append(stack, sub)
		}

		leaf := stack[len(stack)-1]
		exec := e.Mode == filemode.Executable
		if _, err := leaf.AddFile(parts[len(parts)-1], exec, e.Hash); err != nil {
			return plumbing.ZeroID, err
		}

		prevParts = parts
	}

	if err := closeTo(0); err != nil {
		return plumbing.ZeroID, err
	}

	rootID, err := writer.WriteTree(root)
	if err != nil {
		return plumbing.ZeroID, err
	}
	root.SetIdentifier(rootID)
	return rootID, nil
}

// commonPrefixLen returns the length of the shared leading run of a and b.
func commonPrefixLen(a, b []string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return i
		}
	}
	return n
}
