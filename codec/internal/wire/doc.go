// Package wire reads and writes record headers.
//
// A record is laid out as
//
//	+---------+-----------------+------------------+
//	| tag u32 | length u64      | payload [length] |
//	+---------+-----------------+------------------+
//
// Both header fields are little-endian. There is no padding, alignment,
// checksum or stream-level magic.
//
// This package is internal to the codec.
package wire
