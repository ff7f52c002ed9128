// Package binary holds the small big-endian read/write helpers the index
// and pack decoders share, adapted from the teacher's utils/binary package.
package binary

import (
	"bufio"
	"encoding/binary"
	"io"
)

// Read fills each element of data, in order, from r using big-endian order.
func Read(r io.Reader, data ...interface{}) error {
	for _, v := range data {
		if err := binary.Read(r, binary.BigEndian, v); err != nil {
			return err
		}
	}
	return nil
}

// Write writes each element of data, in order, to w using big-endian order.
func Write(w io.Writer, data ...interface{}) error {
	for _, v := range data {
		if err := binary.Write(w, binary.BigEndian, v); err != nil {
			return err
		}
	}
	return nil
}

// ReadUint32 reads one big-endian uint32 from r.
func ReadUint32(r io.Reader) (uint32, error) {
	var v uint32
	if err := Read(r, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// ReadUint16 reads one big-endian uint16 from r.
func ReadUint16(r io.Reader) (uint16, error) {
	var v uint16
	if err := Read(r, &v); err != nil {
		return 0, err
	}
	return v, nil
}

// WriteUint32 writes v to w in big-endian order.
func WriteUint32(w io.Writer, v uint32) error {
	return Write(w, v)
}

// WriteUint16 writes v to w in big-endian order.
func WriteUint16(w io.Writer, v uint16) error {
	return Write(w, v)
}

// ReadUntil reads bytes from r up to but excluding delim, consuming delim.
func ReadUntil(r io.Reader, delim byte) ([]byte, error) {
	if br, ok := r.(*bufio.Reader); ok {
		return ReadUntilFromBufioReader(br, delim)
	}
	return ReadUntilFromBufioReader(bufio.NewReader(r), delim)
}

// ReadUntilFromBufioReader reads bytes from r up to but excluding delim,
// consuming delim, reusing an existing *bufio.Reader.
func ReadUntilFromBufioReader(r *bufio.Reader, delim byte) ([]byte, error) {
	b, err := r.ReadBytes(delim)
	if err != nil {
		return nil, err
	}
	return b[:len(b)-1], nil
}
