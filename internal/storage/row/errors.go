// Package row implements the tuple wire format (C7) and its structural
// constraint checks (C10): serialization of MVCC-tagged rows with a null
// bitmask, typed columns and a forwarding pointer, grounded on the
// teacher's tag-byte row_codec.go convention but reshaped to the fixed
// column-type set and on-disk layout this format requires.
package row

import "errors"

// Row parse errors (C7).
var (
	ErrMissingMinData  = errors.New("row: missing min transaction id")
	ErrMissingMaxData   = errors.New("row: missing max transaction id")
	ErrMissingInfoMask  = errors.New("row: missing info mask")
	ErrMissingNullMask  = errors.New("row: missing null mask")
	ErrColumnParse      = errors.New("row: column parse error")
	ErrNonExistentPage  = errors.New("row: page does not exist")
	ErrNonExistentRow   = errors.New("row: row does not exist")
	ErrAlreadyDeleted   = errors.New("row: row already deleted")
)

// Constraint errors (C10).
var (
	ErrTableRowSizeMismatch = errors.New("row: tuple column count does not match table attributes")
	ErrTableRowTypeMismatch = errors.New("row: column value does not match declared type")
	ErrUnexpectedNull       = errors.New("row: unexpected null in a non-nullable column")
)
