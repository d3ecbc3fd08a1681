// Package wire encodes the fixed-layout binary records exchanged on the
// packet path: the 24-byte order record and the 37-byte market-data
// record.
//
// Multi-byte fields use the host byte order, so both peers must share
// an architecture. Decoding always goes through a bounds-checked cursor
// and never reads past the supplied buffer.
package wire
