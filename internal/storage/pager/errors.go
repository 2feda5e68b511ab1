package pager

import "errors"

// Sentinel errors for the pager package (C1-C6), grouped by the layer that
// raises them. Callers wrap these with fmt.Errorf("...: %w", ErrX) so
// errors.Is still matches through added context.
var (
	// I/O (C1, C2)
	ErrIoError            = errors.New("pager: i/o error")
	ErrIncompleteRead      = errors.New("pager: incomplete read")
	ErrFileTooSmall        = errors.New("pager: file too small")
	ErrIncorrectPageSize   = errors.New("pager: file length not a multiple of page size")
	ErrNeedDirectory       = errors.New("pager: data directory missing")
	ErrIntConversion       = errors.New("pager: integer conversion out of range")

	// Page parse (C6)
	ErrInsufficientBuffer = errors.New("pager: insufficient buffer")
	ErrUInt12OutOfRange   = errors.New("pager: value out of range for a 12-bit field")
	ErrPageHeaderBad      = errors.New("pager: malformed page header")
	ErrItemIdDataBad      = errors.New("pager: malformed item-id entry")
	ErrPageFull           = errors.New("pager: page has insufficient free space")

	// Varint (C6)
	ErrSizeOverflow   = errors.New("pager: size exceeds 64 bits")
	ErrBufferTooShort = errors.New("pager: buffer too short for size")
)
