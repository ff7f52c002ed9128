package index

import (
	"bytes"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/go-git/git-odb/internal/binary"
	"github.com/go-git/git-odb/plumbing"
)

// Encode serializes idx into its version-2 binary form: header, entries in
// ascending key order, and a trailing SHA-1 over everything emitted (spec
// §4.2). A cache-tree extension present on a decoded Index, if any, is not
// modeled and so is implicitly dropped on write, per spec.
func Encode(idx *Index) ([]byte, error) {
	var body bytes.Buffer

	if err := binary.Write(&body, indexSignature, idx.Version, uint32(idx.Len())); err != nil {
		return nil, err
	}

	for _, e := range idx.Members() {
		if err := encodeEntry(&body, e); err != nil {
			return nil, errors.Wrapf(err, "encoding entry %q", e.Name)
		}
	}

	h := plumbing.NewPlainHasher()
	if _, err := h.Write(body.Bytes()); err != nil {
		return nil, err
	}
	sum := h.Sum()

	var out bytes.Buffer
	out.Write(body.Bytes())
	out.Write(sum.Bytes())
	return out.Bytes(), nil
}

func encodeEntry(w io.Writer, e *Entry) error {
	csec, cnsec := timeToUnix(e.CreatedAt)
	msec, mnsec := timeToUnix(e.ModifiedAt)

	fields := []interface{}{
		csec, cnsec,
		msec, mnsec,
		e.Dev, e.Inode, uint32(e.Mode), e.UID, e.GID, e.Size,
	}
	if err := binary.Write(w, fields...); err != nil {
		return err
	}

	if _, err := w.Write(e.Hash.Bytes()); err != nil {
		return err
	}

	nameLen := len(e.Name)
	flagLen := nameLen
	if flagLen > nameMask {
		flagLen = nameMask
	}
	flags := uint16(flagLen)
	flags |= uint16(e.Stage&stageMask) << stageShift
	if e.AssumeValid {
		flags |= assumeValidMask
	}
	if e.UpdateNeeded {
		flags |= updateNeededMask
	}
	if err := binary.WriteUint16(w, flags); err != nil {
		return err
	}

	if _, err := io.WriteString(w, e.Name); err != nil {
		return err
	}

	read := entryHeaderLength + nameLen
	pad := 8 - read%8
	_, err := w.Write(make([]byte, pad))
	return err
}

func timeToUnix(t time.Time) (sec, nsec uint32) {
	if t.IsZero() {
		return 0, 0
	}
	return uint32(t.Unix()), uint32(t.Nanosecond())
}
