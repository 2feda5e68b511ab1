package btree

import (
	"testing"

	"github.com/lanterndb/lantern/internal/storage/pager"
	"github.com/lanterndb/lantern/internal/storage/row"
)

func TestLeafRoundTrip(t *testing.T) {
	types := intKeyTypes()
	n := leafNode{
		Parent: 9,
		Left:   3,
		Right:  4,
		Buckets: []leafBucket{
			{Key: intKey(1), Pointers: []row.ItemPointer{{Page: 10, Slot: 0}}},
			{Key: intKey(2), Pointers: []row.ItemPointer{{Page: 11, Slot: 1}, {Page: 12, Slot: 2}}},
		},
	}
	buf, err := marshalLeaf(n, types)
	if err != nil {
		t.Fatalf("marshalLeaf: %v", err)
	}
	if len(buf) != pager.PageSize {
		t.Fatalf("marshalLeaf buf len = %d, want %d", len(buf), pager.PageSize)
	}
	if !isLeafPage(buf) {
		t.Fatal("isLeafPage(marshalLeaf(...)) = false")
	}

	got, err := parseLeaf(buf, types)
	if err != nil {
		t.Fatalf("parseLeaf: %v", err)
	}
	if got.Parent != n.Parent || got.Left != n.Left || got.Right != n.Right {
		t.Fatalf("parseLeaf header = %+v, want %+v", got, n)
	}
	if len(got.Buckets) != 2 {
		t.Fatalf("parseLeaf buckets = %d, want 2", len(got.Buckets))
	}
	if compareKeys(got.Buckets[1].Key, intKey(2)) != 0 {
		t.Fatalf("parseLeaf bucket[1].Key = %v, want 2", got.Buckets[1].Key)
	}
	if len(got.Buckets[1].Pointers) != 2 || got.Buckets[1].Pointers[1].Page != 12 {
		t.Fatalf("parseLeaf bucket[1].Pointers = %v", got.Buckets[1].Pointers)
	}
}

func TestBranchRoundTrip(t *testing.T) {
	types := intKeyTypes()
	n := branchNode{
		Parent:   7,
		Keys:     [][]row.Value{intKey(10), intKey(20)},
		Children: []pager.PageOffset{1, 2, 3},
	}
	buf, err := marshalBranch(n, types)
	if err != nil {
		t.Fatalf("marshalBranch: %v", err)
	}
	if isLeafPage(buf) {
		t.Fatal("isLeafPage(marshalBranch(...)) = true")
	}

	got, err := parseBranch(buf, types)
	if err != nil {
		t.Fatalf("parseBranch: %v", err)
	}
	if got.Parent != 7 {
		t.Fatalf("parseBranch.Parent = %d, want 7", got.Parent)
	}
	if len(got.Keys) != 2 || len(got.Children) != 3 {
		t.Fatalf("parseBranch shape = %d keys, %d children", len(got.Keys), len(got.Children))
	}
	if got.Children[2] != 3 {
		t.Fatalf("parseBranch.Children[2] = %d, want 3", got.Children[2])
	}
}

func TestMarshalBranchRequiresAtLeastOneKey(t *testing.T) {
	_, err := marshalBranch(branchNode{Children: []pager.PageOffset{1}}, intKeyTypes())
	if err != ErrMissingKeys {
		t.Fatalf("marshalBranch with no keys = %v, want ErrMissingKeys", err)
	}
}

func TestFirstPageRoundTrip(t *testing.T) {
	buf := marshalFirstPage(42)
	if pager.IsZeroPage(buf) {
		t.Fatal("marshalFirstPage produced an all-zero page, would collide with the unwritten sentinel")
	}
	if got := parseFirstPage(buf); got != 42 {
		t.Fatalf("parseFirstPage = %d, want 42", got)
	}

	zero := marshalFirstPage(0)
	if pager.IsZeroPage(zero) {
		t.Fatal("marshalFirstPage(0) must still carry the marker byte, not read back as the unwritten sentinel")
	}
	if got := parseFirstPage(zero); got != 0 {
		t.Fatalf("parseFirstPage(marshalFirstPage(0)) = %d, want 0", got)
	}
}

func TestLeafTooLargeToFit(t *testing.T) {
	types := []row.ColumnType{{Kind: row.KindText}}
	huge := make([]byte, pager.PageSize)
	n := leafNode{Buckets: []leafBucket{{
		Key:      []row.Value{row.TextValue(string(huge))},
		Pointers: []row.ItemPointer{{Page: 1}},
	}}}
	_, err := marshalLeaf(n, types)
	if err != ErrKeyTooLarge {
		t.Fatalf("marshalLeaf with an oversized key = %v, want ErrKeyTooLarge", err)
	}
}
