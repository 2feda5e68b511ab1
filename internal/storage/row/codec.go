package row

import (
	"encoding/binary"
	"fmt"

	"github.com/lanterndb/lantern/internal/storage/pager"
)

// ItemPointer is a row's durable address within its table: a page offset
// plus the slot (item-id index) within that page.
type ItemPointer struct {
	Page pager.PageOffset
	Slot uint16
}

const itemPointerSize = 8 + 2 // page (u64 LE) + slot (UInt12 in a u16 LE)

func (p ItemPointer) marshal(dst []byte) []byte {
	var buf [itemPointerSize]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(p.Page))
	binary.LittleEndian.PutUint16(buf[8:10], p.Slot)
	return append(dst, buf[:]...)
}

func unmarshalItemPointer(buf []byte) (ItemPointer, error) {
	if len(buf) < itemPointerSize {
		return ItemPointer{}, fmt.Errorf("%w: item pointer needs %d bytes, got %d", ErrColumnParse, itemPointerSize, len(buf))
	}
	page := pager.PageOffset(binary.LittleEndian.Uint64(buf[0:8]))
	slot := binary.LittleEndian.Uint16(buf[8:10])
	if _, err := pager.NewUInt12(slot); err != nil {
		return ItemPointer{}, fmt.Errorf("%w: item pointer slot: %v", ErrColumnParse, err)
	}
	return ItemPointer{Page: page, Slot: slot}, nil
}

const (
	infoMaskHasNull = 1 << 0
)

// Row is the in-memory form of one tuple: its MVCC bounds, its forwarding
// pointer (self-pointing on a fresh insert, pointing at the row's new
// location after an update) and its column values in table order (§3).
type Row struct {
	Min     uint64
	Max     uint64
	Forward ItemPointer
	Values  []Value
}

// Marshal serializes r against the column types in schema, in table order.
func Marshal(r Row, schema []ColumnType) ([]byte, error) {
	if len(r.Values) != len(schema) {
		return nil, fmt.Errorf("%w: row has %d values, schema has %d columns", ErrColumnParse, len(r.Values), len(schema))
	}
	var buf [17]byte
	binary.LittleEndian.PutUint64(buf[0:8], r.Min)
	binary.LittleEndian.PutUint64(buf[8:16], r.Max)

	hasNull := false
	for _, v := range r.Values {
		if v.IsNull {
			hasNull = true
			break
		}
	}
	infoMask := byte(0)
	if hasNull {
		infoMask = infoMaskHasNull
	}
	buf[16] = infoMask

	out := append([]byte(nil), buf[:]...)
	if hasNull {
		out = append(out, marshalNullBitmap(r.Values)...)
	}
	out = r.Forward.marshal(out)

	for i, v := range r.Values {
		if v.IsNull {
			continue
		}
		var err error
		out, err = EncodeValue(out, schema[i], v)
		if err != nil {
			return nil, fmt.Errorf("column %d: %w", i, err)
		}
	}
	return out, nil
}

// Unmarshal parses a Row from buf against schema.
func Unmarshal(buf []byte, schema []ColumnType) (Row, error) {
	if len(buf) < 8 {
		return Row{}, ErrMissingMinData
	}
	min := binary.LittleEndian.Uint64(buf[0:8])
	if len(buf) < 16 {
		return Row{}, ErrMissingMaxData
	}
	max := binary.LittleEndian.Uint64(buf[8:16])
	if len(buf) < 17 {
		return Row{}, ErrMissingInfoMask
	}
	infoMask := buf[16]
	pos := 17

	nullBits := make([]bool, len(schema))
	if infoMask&infoMaskHasNull != 0 {
		maskLen := nullBitmapLen(len(schema))
		if len(buf)-pos < maskLen {
			return Row{}, ErrMissingNullMask
		}
		nullBits = parseNullBitmap(buf[pos:pos+maskLen], len(schema))
		pos += maskLen
	}

	forward, err := unmarshalItemPointer(buf[pos:])
	if err != nil {
		return Row{}, err
	}
	pos += itemPointerSize

	values := make([]Value, len(schema))
	for i, t := range schema {
		if nullBits[i] {
			values[i] = NullValue()
			continue
		}
		v, used, err := DecodeValue(buf[pos:], t)
		if err != nil {
			return Row{}, fmt.Errorf("column %d: %w", i, err)
		}
		values[i] = v
		pos += used
	}
	return Row{Min: min, Max: max, Forward: forward, Values: values}, nil
}

func nullBitmapLen(n int) int {
	return (n + 7) / 8
}

func marshalNullBitmap(values []Value) []byte {
	out := make([]byte, nullBitmapLen(len(values)))
	for i, v := range values {
		if v.IsNull {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out
}

func parseNullBitmap(buf []byte, n int) []bool {
	out := make([]bool, n)
	for i := 0; i < n; i++ {
		out[i] = buf[i/8]&(1<<uint(i%8)) != 0
	}
	return out
}
