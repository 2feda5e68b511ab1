package row

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"github.com/lanterndb/lantern/internal/storage/pager"
)

// Kind is the single-byte discriminator for a column's declared type,
// mirroring the teacher's row_codec.go tag-byte convention but sized and
// shaped for the fixed scalar/varint set this format supports (§3).
type Kind uint8

const (
	KindBool Kind = iota + 1
	KindInteger
	KindUuid
	KindText
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInteger:
		return "integer"
	case KindUuid:
		return "uuid"
	case KindText:
		return "text"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ColumnType describes one attribute's declared type. Elem is only
// meaningful when Kind is KindArray.
type ColumnType struct {
	Kind Kind
	Elem *ColumnType
}

// Attribute is one column of a table: name, declared type and nullability.
type Attribute struct {
	Name     string
	Type     ColumnType
	Nullable bool
}

// Value is the runtime representation of one column's value. Kind
// identifies which field is meaningful (zero value KindBool's false, an
// empty string, etc. are all valid non-null values, so IsNull rather than
// a zero check signals absence).
type Value struct {
	IsNull bool
	Kind   Kind
	Bool   bool
	Int    int32
	Uuid   uuid.UUID
	Text   string
	Array  []Value
}

// NullValue constructs a null Value.
func NullValue() Value { return Value{IsNull: true} }

// BoolValue, IntValue, UuidValue, TextValue and ArrayValue construct
// non-null values of the corresponding kind.
func BoolValue(b bool) Value           { return Value{Kind: KindBool, Bool: b} }
func IntValue(n int32) Value           { return Value{Kind: KindInteger, Int: n} }
func UuidValue(u uuid.UUID) Value      { return Value{Kind: KindUuid, Uuid: u} }
func TextValue(s string) Value         { return Value{Kind: KindText, Text: s} }
func ArrayValue(elems []Value) Value   { return Value{Kind: KindArray, Array: elems} }

// EncodeValue appends v's wire encoding (without any null marker — that is
// the null bitmap's job) to dst, per the type rules in §3/§6.
func EncodeValue(dst []byte, t ColumnType, v Value) ([]byte, error) {
	switch t.Kind {
	case KindBool:
		var b byte
		if v.Bool {
			b = 1
		}
		return append(dst, b), nil
	case KindInteger:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], uint32(v.Int))
		return append(dst, buf[:]...), nil
	case KindUuid:
		return append(dst, v.Uuid[:]...), nil
	case KindText:
		return encodeText(dst, v.Text), nil
	case KindArray:
		dst = pager.EncodeSize(dst, uint64(len(v.Array)))
		for _, elem := range v.Array {
			var err error
			dst, err = EncodeValue(dst, *t.Elem, elem)
			if err != nil {
				return nil, err
			}
		}
		return dst, nil
	default:
		return nil, fmt.Errorf("%w: unknown column kind %v", ErrColumnParse, t.Kind)
	}
}

// encodeText implements §6's size codec for TEXT, special-casing the
// zero-length value to a single 0x00 byte: the raw varint codec would
// otherwise emit zero bytes for a length of zero, indistinguishable from
// "no bytes left to parse" at the front of a column stream.
func encodeText(dst []byte, s string) []byte {
	if len(s) == 0 {
		return append(dst, 0x00)
	}
	dst = pager.EncodeSize(dst, uint64(len(s)))
	return append(dst, s...)
}

// DecodeValue parses one value of type t from the front of buf, returning
// the value and the number of bytes consumed.
func DecodeValue(buf []byte, t ColumnType) (Value, int, error) {
	switch t.Kind {
	case KindBool:
		if len(buf) < 1 {
			return Value{}, 0, fmt.Errorf("%w: bool needs 1 byte", ErrColumnParse)
		}
		return Value{Kind: KindBool, Bool: buf[0] != 0}, 1, nil
	case KindInteger:
		if len(buf) < 4 {
			return Value{}, 0, fmt.Errorf("%w: integer needs 4 bytes", ErrColumnParse)
		}
		return Value{Kind: KindInteger, Int: int32(binary.LittleEndian.Uint32(buf[:4]))}, 4, nil
	case KindUuid:
		if len(buf) < 16 {
			return Value{}, 0, fmt.Errorf("%w: uuid needs 16 bytes", ErrColumnParse)
		}
		var u uuid.UUID
		copy(u[:], buf[:16])
		return Value{Kind: KindUuid, Uuid: u}, 16, nil
	case KindText:
		return decodeText(buf)
	case KindArray:
		n, consumed, err := pager.DecodeSize(buf)
		if err != nil {
			return Value{}, 0, fmt.Errorf("%w: array count: %v", ErrColumnParse, err)
		}
		total := consumed
		elems := make([]Value, 0, n)
		for i := uint64(0); i < n; i++ {
			v, used, err := DecodeValue(buf[total:], *t.Elem)
			if err != nil {
				return Value{}, 0, err
			}
			elems = append(elems, v)
			total += used
		}
		return Value{Kind: KindArray, Array: elems}, total, nil
	default:
		return Value{}, 0, fmt.Errorf("%w: unknown column kind %v", ErrColumnParse, t.Kind)
	}
}

// decodeText mirrors encodeText's zero-length special case: a leading
// 0x00 with no following length bytes decodes to the empty string,
// consuming exactly that one byte.
func decodeText(buf []byte) (Value, int, error) {
	if len(buf) >= 1 && buf[0] == 0x00 {
		return Value{Kind: KindText, Text: ""}, 1, nil
	}
	n, consumed, err := pager.DecodeSize(buf)
	if err != nil {
		return Value{}, 0, fmt.Errorf("%w: text length: %v", ErrColumnParse, err)
	}
	if uint64(len(buf)-consumed) < n {
		return Value{}, 0, fmt.Errorf("%w: text needs %d bytes, have %d", ErrColumnParse, n, len(buf)-consumed)
	}
	return Value{Kind: KindText, Text: string(buf[consumed : consumed+int(n)])}, consumed + int(n), nil
}
