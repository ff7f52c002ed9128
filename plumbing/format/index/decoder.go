package index

import (
	"bufio"
	"bytes"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/go-git/git-odb/internal/binary"
	"github.com/go-git/git-odb/plumbing"
	"github.com/go-git/git-odb/plumbing/filemode"
)

const (
	entryHeaderLength = 62 // fixed fields + 20-byte sha1 + 2-byte flags
	nameMask          = 0x0FFF
	assumeValidMask   = 0x8000
	updateNeededMask  = 0x4000
	stageShift        = 12
	stageMask         = 0x3
)

var indexSignature = []byte("DIRC")

// Decoder reads an Index from its binary on-disk form (spec §4.2).
type Decoder struct {
	r io.Reader
}

// NewDecoder returns a Decoder reading from r.
func NewDecoder(r io.Reader) *Decoder {
	return &Decoder{r: r}
}

// Decode reads a full index from the decoder's reader. It does not verify
// the trailing checksum (spec §4.2: "No trailing-digest verification is
// performed on read in the baseline").
func (d *Decoder) Decode() (*Index, error) {
	return decode(bufio.NewReader(d.r))
}

// Decode is the byte-slice counterpart of Decoder.Decode, sharing the same
// parsing, for the common case of decoding an already-buffered index.
func Decode(data []byte) (*Index, error) {
	return decode(bufio.NewReader(bytes.NewReader(data)))
}

func decode(r *bufio.Reader) (*Index, error) {
	sig := make([]byte, 4)
	if _, err := io.ReadFull(r, sig); err != nil {
		return nil, errors.Wrapf(plumbing.ErrCorruptObject, "reading signature: %s", err)
	}
	if !bytes.Equal(sig, indexSignature) {
		return nil, errors.Wrapf(plumbing.ErrCorruptObject, "bad index signature %q", sig)
	}

	version, err := binary.ReadUint32(r)
	if err != nil {
		return nil, errors.Wrapf(plumbing.ErrCorruptObject, "reading version: %s", err)
	}
	if version != 2 {
		return nil, errors.Wrapf(plumbing.ErrCorruptObject, "unsupported index version %d", version)
	}

	count, err := binary.ReadUint32(r)
	if err != nil {
		return nil, errors.Wrapf(plumbing.ErrCorruptObject, "reading entry count: %s", err)
	}

	idx := NewIndex()
	idx.Version = version

	for i := uint32(0); i < count; i++ {
		e, read, err := decodeEntry(r)
		if err != nil {
			return nil, errors.Wrapf(plumbing.ErrCorruptObject, "entry %d: %s", i, err)
		}
		if err := padEntry(r, read+len(e.Name)); err != nil {
			return nil, errors.Wrapf(plumbing.ErrCorruptObject, "entry %d padding: %s", i, err)
		}
		idx.Put(e)
	}

	idx.Changed = false
	return idx, nil
}

func decodeEntry(r io.Reader) (*Entry, int, error) {
	var csec, cnsec, msec, mnsec uint32
	var dev, ino, mode, uid, gid, size uint32

	if err := binary.Read(r, &csec, &cnsec, &msec, &mnsec, &dev, &ino, &mode, &uid, &gid, &size); err != nil {
		return nil, 0, err
	}

	var raw [plumbing.Size]byte
	if _, err := io.ReadFull(r, raw[:]); err != nil {
		return nil, 0, err
	}
	id := plumbing.ObjectID(raw)

	flags, err := binary.ReadUint16(r)
	if err != nil {
		return nil, 0, err
	}

	fm, err := filemode.FromIndexBits(mode)
	if err != nil {
		return nil, 0, err
	}

	nameLen := int(flags & nameMask)
	name := make([]byte, nameLen)
	if _, err := io.ReadFull(r, name); err != nil {
		return nil, 0, err
	}

	e := &Entry{
		Name:         string(name),
		Dev:          dev,
		Inode:        ino,
		Mode:         fm,
		UID:          uid,
		GID:          gid,
		Size:         size,
		Hash:         id,
		Stage:        Stage((flags >> stageShift) & stageMask),
		AssumeValid:  flags&assumeValidMask != 0,
		UpdateNeeded: flags&updateNeededMask != 0,
	}
	if csec != 0 || cnsec != 0 {
		e.CreatedAt = time.Unix(int64(csec), int64(cnsec)).UTC()
	}
	if msec != 0 || mnsec != 0 {
		e.ModifiedAt = time.Unix(int64(msec), int64(mnsec)).UTC()
	}

	return e, entryHeaderLength, nil
}

// padEntry discards the zero padding that brings a record up to the next
// 8-byte boundary relative to its own start (spec §4.2).
func padEntry(r io.Reader, read int) error {
	pad := 8 - read%8
	_, err := io.CopyN(io.Discard, r, int64(pad))
	return err
}
