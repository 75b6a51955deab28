// Package codec provides the self-describing record encoding shared by both
// sides of a call.
//
// Every value travels as one record: a tag naming its canonical wire type, a
// payload length, and the payload. Containers nest records inside their
// payload, so any reader can walk a stream without knowing its schema.
//
// # Record Layout
//
//	┌──────────────┬──────────────────┬───────────────────────┐
//	│ tag (u32 LE) │ length (u64 LE)  │ payload (length bytes)│
//	└──────────────┴──────────────────┴───────────────────────┘
//
// # Canonical Wire Types
//
//	Tag  Name       Payload
//	───────────────────────────────────────────────────────────
//	1    none       empty
//	2    boolean    1 byte, 0 or 1
//	3    signed64   8 bytes, two's complement
//	4    double     8 bytes, IEEE-754 binary64
//	5    text       raw bytes, no terminator
//	6    blob       raw bytes
//	7    list       records of one element type
//	8    tuple      records, positional
//	9    map        key record, value record, ... ascending key order
//	10   ndarray    list<signed64> shape, text dtype, blob data
//
// # Go Types
//
//	Go type                         Wire type
//	───────────────────────────────────────────
//	nil, None, nil pointer          none
//	bool                            boolean
//	int*, uint*                     signed64
//	float32, float64                double
//	string, Char                    text
//	encoding.TextMarshaler          text
//	error                           text (write only)
//	[]byte, [N]byte                 blob
//	[]T, [N]T                       list
//	struct, Tuple                   tuple
//	map[K]V, Map                    map
//	Array                           ndarray
//
// Decoding into `any` produces nil, bool, int64, float64, string, []byte,
// []any, Tuple, *Map or Array.
//
// # Key Types
//
//	Normalizer  - Caches the Go type to wire type table
//	Encoder     - Writes records to an io.Writer
//	Decoder     - Reads records from a byte window
//	Map         - Ordered map with canonical keys
//
// # Narrowing
//
// By default a signed64 decoded into a narrower Go integer keeps the low
// bits and a double decoded into float32 rounds. WithStrictNarrowing turns
// both into errors.
//
// # Error Handling
//
// Failures are *errors.Error values from the errors package carrying the
// container path of the offending record:
//
//	_, err := codec.Read[int32](d)
//	if errors.Is(err, errors.ErrTypeMismatch) { ... }
//
// # Thread Safety
//
// Normalizer is safe for concurrent use. Encoder and Decoder are not.
package codec
