package btree

import (
	"encoding/binary"
	"fmt"

	"github.com/lanterndb/lantern/internal/storage/pager"
	"github.com/lanterndb/lantern/internal/storage/row"
)

const (
	tagLeaf   = 0
	tagBranch = 1

	offsetSize  = 8 // a PageOffset, little-endian
	headerStart = 1
	parentOff   = headerStart
	leafLeft    = parentOff + offsetSize
	leafRight   = leafLeft + offsetSize
	leafBody    = leafRight + offsetSize
	branchBody  = parentOff + offsetSize
)

// leafBucket is one sorted entry of a leaf page: a key and the non-empty
// list of row pointers that share it.
type leafBucket struct {
	Key      []row.Value
	Pointers []row.ItemPointer
}

type leafNode struct {
	Parent, Left, Right pager.PageOffset
	Buckets             []leafBucket
}

type branchNode struct {
	Parent   pager.PageOffset
	Keys     [][]row.Value
	Children []pager.PageOffset
}

func putOffset(buf []byte, at int, v pager.PageOffset) {
	binary.LittleEndian.PutUint64(buf[at:at+offsetSize], uint64(v))
}

func getOffset(buf []byte, at int) pager.PageOffset {
	return pager.PageOffset(binary.LittleEndian.Uint64(buf[at : at+offsetSize]))
}

func marshalKey(dst []byte, keyTypes []row.ColumnType, key []row.Value) ([]byte, error) {
	maskLen := (len(keyTypes) + 7) / 8
	mask := make([]byte, maskLen)
	for i, v := range key {
		if v.IsNull {
			mask[i/8] |= 1 << uint(i%8)
		}
	}
	dst = append(dst, mask...)
	for i, t := range keyTypes {
		if key[i].IsNull {
			continue
		}
		var err error
		dst, err = row.EncodeValue(dst, t, key[i])
		if err != nil {
			return nil, fmt.Errorf("%w: key column %d: %v", ErrNodeParse, i, err)
		}
	}
	return dst, nil
}

func parseKey(buf []byte, keyTypes []row.ColumnType) ([]row.Value, int, error) {
	maskLen := (len(keyTypes) + 7) / 8
	if len(buf) < maskLen {
		return nil, 0, fmt.Errorf("%w: truncated null mask", ErrNodeParse)
	}
	mask := buf[:maskLen]
	pos := maskLen
	key := make([]row.Value, len(keyTypes))
	for i, t := range keyTypes {
		if mask[i/8]&(1<<uint(i%8)) != 0 {
			key[i] = row.NullValue()
			continue
		}
		v, used, err := row.DecodeValue(buf[pos:], t)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: key column %d: %v", ErrNodeParse, i, err)
		}
		key[i] = v
		pos += used
	}
	return key, pos, nil
}

func marshalItemPointer(dst []byte, p row.ItemPointer) []byte {
	var buf [10]byte
	binary.LittleEndian.PutUint64(buf[0:8], uint64(p.Page))
	binary.LittleEndian.PutUint16(buf[8:10], p.Slot)
	return append(dst, buf[:]...)
}

func parseItemPointer(buf []byte) (row.ItemPointer, int, error) {
	if len(buf) < 10 {
		return row.ItemPointer{}, 0, fmt.Errorf("%w: truncated item pointer", ErrNodeParse)
	}
	return row.ItemPointer{
		Page: pager.PageOffset(binary.LittleEndian.Uint64(buf[0:8])),
		Slot: binary.LittleEndian.Uint16(buf[8:10]),
	}, 10, nil
}

// marshalLeaf serializes n into a fresh PageSize buffer, returning
// ErrKeyTooLarge if it does not fit.
func marshalLeaf(n leafNode, keyTypes []row.ColumnType) ([]byte, error) {
	body := pager.EncodeSize(nil, uint64(len(n.Buckets)))
	for _, b := range n.Buckets {
		var err error
		body, err = marshalKey(body, keyTypes, b.Key)
		if err != nil {
			return nil, err
		}
		body = pager.EncodeSize(body, uint64(len(b.Pointers)))
		for _, p := range b.Pointers {
			body = marshalItemPointer(body, p)
		}
	}
	if leafBody+len(body) > pager.PageSize {
		return nil, ErrKeyTooLarge
	}
	buf := make([]byte, pager.PageSize)
	buf[0] = tagLeaf
	putOffset(buf, parentOff, n.Parent)
	putOffset(buf, leafLeft, n.Left)
	putOffset(buf, leafRight, n.Right)
	copy(buf[leafBody:], body)
	return buf, nil
}

func parseLeaf(buf []byte, keyTypes []row.ColumnType) (leafNode, error) {
	if len(buf) != pager.PageSize || buf[0] != tagLeaf {
		return leafNode{}, fmt.Errorf("%w: not a leaf page", ErrNodeParse)
	}
	n := leafNode{
		Parent: getOffset(buf, parentOff),
		Left:   getOffset(buf, leafLeft),
		Right:  getOffset(buf, leafRight),
	}
	body := buf[leafBody:]
	count, consumed, err := pager.DecodeSize(body)
	if err != nil {
		return leafNode{}, fmt.Errorf("%w: bucket count: %v", ErrNodeParse, err)
	}
	pos := consumed
	n.Buckets = make([]leafBucket, 0, count)
	for i := uint64(0); i < count; i++ {
		key, used, err := parseKey(body[pos:], keyTypes)
		if err != nil {
			return leafNode{}, err
		}
		pos += used
		pcount, used, err := pager.DecodeSize(body[pos:])
		if err != nil {
			return leafNode{}, fmt.Errorf("%w: pointer count: %v", ErrNodeParse, err)
		}
		pos += used
		pointers := make([]row.ItemPointer, 0, pcount)
		for j := uint64(0); j < pcount; j++ {
			p, used, err := parseItemPointer(body[pos:])
			if err != nil {
				return leafNode{}, err
			}
			pointers = append(pointers, p)
			pos += used
		}
		n.Buckets = append(n.Buckets, leafBucket{Key: key, Pointers: pointers})
	}
	return n, nil
}

// marshalBranch serializes n into a fresh PageSize buffer.
func marshalBranch(n branchNode, keyTypes []row.ColumnType) ([]byte, error) {
	if len(n.Keys) == 0 {
		return nil, ErrMissingKeys
	}
	body := pager.EncodeSize(nil, uint64(len(n.Keys)))
	for _, k := range n.Keys {
		var err error
		body, err = marshalKey(body, keyTypes, k)
		if err != nil {
			return nil, err
		}
	}
	for _, c := range n.Children {
		var buf [offsetSize]byte
		binary.LittleEndian.PutUint64(buf[:], uint64(c))
		body = append(body, buf[:]...)
	}
	if branchBody+len(body) > pager.PageSize {
		return nil, ErrKeyTooLarge
	}
	buf := make([]byte, pager.PageSize)
	buf[0] = tagBranch
	putOffset(buf, parentOff, n.Parent)
	copy(buf[branchBody:], body)
	return buf, nil
}

func parseBranch(buf []byte, keyTypes []row.ColumnType) (branchNode, error) {
	if len(buf) != pager.PageSize || buf[0] != tagBranch {
		return branchNode{}, fmt.Errorf("%w: not a branch page", ErrNodeParse)
	}
	n := branchNode{Parent: getOffset(buf, parentOff)}
	body := buf[branchBody:]
	count, consumed, err := pager.DecodeSize(body)
	if err != nil {
		return branchNode{}, fmt.Errorf("%w: key count: %v", ErrNodeParse, err)
	}
	pos := consumed
	n.Keys = make([][]row.Value, 0, count)
	for i := uint64(0); i < count; i++ {
		key, used, err := parseKey(body[pos:], keyTypes)
		if err != nil {
			return branchNode{}, err
		}
		n.Keys = append(n.Keys, key)
		pos += used
	}
	n.Children = make([]pager.PageOffset, 0, count+1)
	for i := uint64(0); i < count+1; i++ {
		if pos+offsetSize > len(body) {
			return branchNode{}, fmt.Errorf("%w: truncated children", ErrNodeParse)
		}
		n.Children = append(n.Children, pager.PageOffset(binary.LittleEndian.Uint64(body[pos:pos+offsetSize])))
		pos += offsetSize
	}
	return n, nil
}

func isLeafPage(buf []byte) bool { return len(buf) > 0 && buf[0] == tagLeaf }

// firstPageMarker occupies the byte right after the root offset field, set
// whenever the first page has been explicitly written. Without it, a fresh
// index (root == 0) would marshal to an all-zero page indistinguishable
// from "never written" under FileManager's scan-or-increment counter,
// which would let the first real node page collide with offset 0.
const firstPageMarker = offsetSize

// marshalFirstPage writes an index's distinguished offset-0 page, whose
// payload is just the current root's offset (0 means "no root yet").
func marshalFirstPage(root pager.PageOffset) []byte {
	buf := make([]byte, pager.PageSize)
	putOffset(buf, 0, root)
	buf[firstPageMarker] = 1
	return buf
}

func parseFirstPage(buf []byte) pager.PageOffset {
	return getOffset(buf, 0)
}
