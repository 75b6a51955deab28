// Package types defines the wire tag table shared by the encoder and decoder.
//
// Tags are part of the wire contract. Both sides of an exchange must agree
// on them and there is no negotiation or versioning, so a tag is never
// reassigned. A new canonical type takes the next unused number.
//
// This package is internal to the codec.
package types
