package codec

import (
	"github.com/wippyai/callwire/codec/internal/types"
)

// Tag identifies a canonical wire type.
type Tag = types.Tag

// Canonical wire types. The numbers are part of the wire contract.
const (
	// TagReserved is never written to the wire.
	TagReserved = types.TagReserved

	TagNone   = types.TagNone
	TagBool   = types.TagBool
	TagInt    = types.TagInt
	TagDouble = types.TagDouble
	TagText   = types.TagText
	TagBlob   = types.TagBlob
	TagList   = types.TagList
	TagTuple  = types.TagTuple
	TagMap    = types.TagMap
	TagArray  = types.TagArray
)

// HeaderSize is the size of a record header: a u32 tag and a u64 length.
const HeaderSize = 12

// None is the empty value. It encodes as a None record with no payload.
type None struct{}

// Char is a single byte character. It encodes as Text of length 1 and only
// decodes from a Text payload of exactly one byte.
type Char byte

// Tuple is a fixed-arity heterogeneous sequence. Decoding a Tuple record
// into `any` produces a Tuple; structs are the typed alternative.
type Tuple []any

// Array is the multi-dimensional array record. The codec never interprets
// Dtype or the layout of Data. An empty Shape is written as an empty list
// and decodes as nil.
type Array struct {
	Dtype string
	Shape []int64
	Data  []byte
}

// Record is a raw view of one record inside a decoder window.
type Record struct {
	// Payload aliases the decoder window; copy it before the window goes away.
	Payload []byte
	Offset  int
	Tag     Tag
}

// Size returns the full encoded size of r, header included.
func (r Record) Size() int {
	return HeaderSize + len(r.Payload)
}
