// Package header provides the header set of a MIME entity: an ordered,
// case-insensitive collection of header fields with typed accessors for the
// fields that carry structured values (addresses, dates, parameterized values).
//
// A Header can be given a canonical field order and a set of fields that are
// always written, even when empty. Those settings are what a composed message
// uses. A Header built by Parse has neither, and writes every field back out
// exactly as it was read.
//
// Header also takes part in the change notification used by entities: it is
// an Observer that applies charset changes to every field it holds.
package header
