// Package abi provides internal utilities for the record codec.
//
// # Contents
//
//   - coerce.go: range checks for narrowing the canonical 64-bit forms
//   - helpers.go: overflow-safe size arithmetic and type naming
//
// This package is internal to the codec.
package abi
