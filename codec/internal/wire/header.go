package wire

import (
	"encoding/binary"
	"io"
	"math"
)

const (
	TagSize    = 4
	LengthSize = 8
	HeaderSize = TagSize + LengthSize
)

// Header is the fixed prefix of every record.
type Header struct {
	Tag    uint32
	Length uint64
}

// Put writes h into buf, which must hold at least HeaderSize bytes.
func Put(buf []byte, h Header) {
	binary.LittleEndian.PutUint32(buf[:TagSize], h.Tag)
	binary.LittleEndian.PutUint64(buf[TagSize:HeaderSize], h.Length)
}

// Append appends the encoded header to buf.
func Append(buf []byte, h Header) []byte {
	buf = binary.LittleEndian.AppendUint32(buf, h.Tag)
	return binary.LittleEndian.AppendUint64(buf, h.Length)
}

// Write writes the encoded header to w.
func Write(w io.Writer, h Header) error {
	var buf [HeaderSize]byte
	Put(buf[:], h)
	_, err := w.Write(buf[:])
	return err
}

// PeekTag reads only the tag at the start of buf.
func PeekTag(buf []byte) (uint32, bool) {
	if len(buf) < TagSize {
		return 0, false
	}
	return binary.LittleEndian.Uint32(buf[:TagSize]), true
}

// Parse decodes the header at the start of buf.
func Parse(buf []byte) (Header, bool) {
	if len(buf) < HeaderSize {
		return Header{}, false
	}
	return Header{
		Tag:    binary.LittleEndian.Uint32(buf[:TagSize]),
		Length: binary.LittleEndian.Uint64(buf[TagSize:HeaderSize]),
	}, true
}

// RecordSize returns the full size of a record with the given payload
// length and whether it fits in a uint64.
func RecordSize(payload uint64) (uint64, bool) {
	if payload > math.MaxUint64-HeaderSize {
		return 0, false
	}
	return payload + HeaderSize, true
}
