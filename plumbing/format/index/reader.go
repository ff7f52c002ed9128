package index

import (
	"io"

	"github.com/go-git/go-billy/v5"
)

// Read decodes the index file at path on fs and stamps LastCacheTime from
// the file's on-disk mtime, establishing the baseline RereadIfNecessary
// compares against (spec §4.2 "Reread policy").
func Read(fs billy.Filesystem, path string) (*Index, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	idx, err := Decode(data)
	if err != nil {
		return nil, err
	}

	fi, err := fs.Stat(path)
	if err != nil {
		return nil, err
	}
	idx.LastCacheTime = fi.ModTime()
	return idx, nil
}

// RereadIfNecessary reloads the index from fs when the backing file's mtime
// differs from idx.LastCacheTime, and returns idx unchanged otherwise.
func RereadIfNecessary(fs billy.Filesystem, path string, idx *Index) (*Index, error) {
	fi, err := fs.Stat(path)
	if err != nil {
		return idx, err
	}
	if fi.ModTime().Equal(idx.LastCacheTime) {
		return idx, nil
	}
	return Read(fs, path)
}
