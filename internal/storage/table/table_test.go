package table

import (
	"errors"
	"fmt"
	"testing"

	"github.com/lanterndb/lantern/internal/storage/pager"
	"github.com/lanterndb/lantern/internal/storage/row"
	"github.com/lanterndb/lantern/internal/storage/txn"
)

func testAttrs() []row.Attribute {
	return []row.Attribute{
		{Name: "a", Type: row.ColumnType{Kind: row.KindText}},
		{Name: "b", Type: row.ColumnType{Kind: row.KindUuid}, Nullable: true},
		{Name: "c", Type: row.ColumnType{Kind: row.KindText}},
	}
}

func newTestTable(t *testing.T) (*pager.Pager, *Table) {
	t.Helper()
	p := pager.Open(t.TempDir())
	t.Cleanup(func() { p.Close() })
	return p, New(p, pager.NewResourceKey(), testAttrs())
}

func TestInsertGetRoundTrip(t *testing.T) {
	_, tbl := newTestTable(t)
	tid := txn.ID(1)
	tuple := []row.Value{row.TextValue("zero"), row.NullValue(), row.TextValue("blah")}
	ptr, err := tbl.Insert(tid, tuple)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	got, err := tbl.Get(ptr)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Min != uint64(tid) || got.Max != 0 {
		t.Fatalf("Get row bounds = (%d,%d), want (%d,0)", got.Min, got.Max, tid)
	}
	if got.Forward != ptr {
		t.Fatalf("Get row forward = %v, want self-pointing %v", got.Forward, ptr)
	}
	if got.Values[0].Text != "zero" || !got.Values[1].IsNull || got.Values[2].Text != "blah" {
		t.Fatalf("Get row values = %+v", got.Values)
	}
}

func TestMassInsertReopenStream(t *testing.T) {
	dir := t.TempDir()
	resource := pager.NewResourceKey()

	p1 := pager.Open(dir)
	tbl1 := New(p1, resource, testAttrs())
	tid := txn.ID(1)
	const n = 500
	for i := 0; i < n; i++ {
		tuple := []row.Value{row.TextValue(fmt.Sprintf("%d", i)), row.NullValue(), row.TextValue("blah blah blah blah blah blah blah blah blah blah blah blah blah blah blah blah blah blah blah blah blah blah blah blah blah blah blah blah blah blah blah blah blah blah blah blah")}
		if _, err := tbl1.Insert(tid, tuple); err != nil {
			t.Fatalf("Insert(%d): %v", i, err)
		}
	}
	p1.Close()

	p2 := pager.Open(dir)
	defer p2.Close()
	tbl2 := New(p2, resource, testAttrs())
	entries, err := tbl2.Stream()
	if err != nil {
		t.Fatalf("Stream after reopen: %v", err)
	}
	if len(entries) != n {
		t.Fatalf("Stream returned %d rows, want %d", len(entries), n)
	}
	for i, e := range entries {
		want := fmt.Sprintf("%d", i)
		if e.Row.Values[0].Text != want {
			t.Fatalf("entry %d a = %q, want %q", i, e.Row.Values[0].Text, want)
		}
	}
}

func TestDeleteAlreadyDeleted(t *testing.T) {
	_, tbl := newTestTable(t)
	tid := txn.ID(1)
	ptr, err := tbl.Insert(tid, []row.Value{row.TextValue("x"), row.NullValue(), row.TextValue("y")})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tbl.Delete(txn.ID(2), ptr); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := tbl.Delete(txn.ID(3), ptr); !errors.Is(err, row.ErrAlreadyDeleted) {
		t.Fatalf("second Delete = %v, want ErrAlreadyDeleted", err)
	}
	got, err := tbl.Get(ptr)
	if err != nil {
		t.Fatalf("Get after delete: %v", err)
	}
	if got.Max != 2 {
		t.Fatalf("Get after delete Max = %d, want 2", got.Max)
	}
}

func TestUpdateForwarding(t *testing.T) {
	_, tbl := newTestTable(t)
	tid := txn.ID(1)
	orig, err := tbl.Insert(tid, []row.Value{row.TextValue("one"), row.NullValue(), row.TextValue("y")})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	updateTid := txn.ID(2)
	newPtr, err := tbl.Update(updateTid, orig, []row.Value{row.TextValue("two"), row.NullValue(), row.TextValue("y")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}

	oldRow, err := tbl.Get(orig)
	if err != nil {
		t.Fatalf("Get(orig): %v", err)
	}
	if oldRow.Max != uint64(updateTid) {
		t.Fatalf("old row Max = %d, want %d", oldRow.Max, updateTid)
	}
	if oldRow.Forward != newPtr {
		t.Fatalf("old row Forward = %v, want %v", oldRow.Forward, newPtr)
	}

	newRow, err := tbl.Get(newPtr)
	if err != nil {
		t.Fatalf("Get(newPtr): %v", err)
	}
	if newRow.Values[0].Text != "two" {
		t.Fatalf("new row a = %q, want \"two\"", newRow.Values[0].Text)
	}
	if newRow.Max != 0 {
		t.Fatalf("new row Max = %d, want 0", newRow.Max)
	}
}

func TestUpdateAlreadyDeleted(t *testing.T) {
	_, tbl := newTestTable(t)
	tid := txn.ID(1)
	ptr, err := tbl.Insert(tid, []row.Value{row.TextValue("a"), row.NullValue(), row.TextValue("b")})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := tbl.Delete(txn.ID(2), ptr); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	_, err = tbl.Update(txn.ID(3), ptr, []row.Value{row.TextValue("c"), row.NullValue(), row.TextValue("d")})
	if !errors.Is(err, row.ErrAlreadyDeleted) {
		t.Fatalf("Update on deleted row = %v, want ErrAlreadyDeleted", err)
	}
}

func TestConstraintRejectsSizeAndNullMismatch(t *testing.T) {
	_, tbl := newTestTable(t)
	tid := txn.ID(1)
	if _, err := tbl.Insert(tid, []row.Value{row.TextValue("a")}); !errors.Is(err, row.ErrTableRowSizeMismatch) {
		t.Fatalf("short tuple = %v, want ErrTableRowSizeMismatch", err)
	}
	if _, err := tbl.Insert(tid, []row.Value{row.TextValue("a"), row.NullValue(), row.NullValue()}); !errors.Is(err, row.ErrUnexpectedNull) {
		t.Fatalf("null in non-nullable column = %v, want ErrUnexpectedNull", err)
	}
}

func TestMVCCVisibility(t *testing.T) {
	_, tbl := newTestTable(t)
	txns := txn.NewManager()

	a, err := txns.Start()
	if err != nil {
		t.Fatalf("start a: %v", err)
	}
	b, err := txns.Start()
	if err != nil {
		t.Fatalf("start b: %v", err)
	}
	ptr, err := tbl.Insert(a, []row.Value{row.TextValue("r"), row.NullValue(), row.TextValue("s")})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := txns.Commit(a); err != nil {
		t.Fatalf("commit a: %v", err)
	}

	oracle := txns.StatusOracle()
	if _, err := tbl.GetVisible(b, ptr, oracle); !errors.Is(err, txn.ErrNotVisible) {
		t.Fatalf("b's view of r = %v, want ErrNotVisible (b started before a)", err)
	}

	c, err := txns.Start()
	if err != nil {
		t.Fatalf("start c: %v", err)
	}
	if _, err := tbl.GetVisible(c, ptr, oracle); err != nil {
		t.Fatalf("c's view of r = %v, want visible", err)
	}

	d, err := txns.Start()
	if err != nil {
		t.Fatalf("start d: %v", err)
	}
	if err := tbl.Delete(d, ptr); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := txns.Commit(d); err != nil {
		t.Fatalf("commit d: %v", err)
	}

	e, err := txns.Start()
	if err != nil {
		t.Fatalf("start e: %v", err)
	}
	if _, err := tbl.GetVisible(e, ptr, oracle); !errors.Is(err, txn.ErrNotVisible) {
		t.Fatalf("e's view of r = %v, want ErrNotVisible (e started after d committed)", err)
	}

	if _, err := tbl.GetVisible(c, ptr, oracle); err != nil {
		t.Fatalf("c's view of r after d's delete = %v, want still visible", err)
	}
}

func TestFreeSpaceReuseAfterDelete(t *testing.T) {
	_, tbl := newTestTable(t)
	tid := txn.ID(1)
	big := make([]byte, 400)
	for i := range big {
		big[i] = 'x'
	}

	// Fill page 0 until an insert overflows onto page 1. The overflowing
	// row stays live on page 1 but is not tracked in onPage0.
	var onPage0 []row.ItemPointer
	for {
		ptr, err := tbl.Insert(tid, []row.Value{row.TextValue(string(big)), row.NullValue(), row.TextValue("y")})
		if err != nil {
			t.Fatalf("Insert: %v", err)
		}
		if ptr.Page != 0 {
			break
		}
		onPage0 = append(onPage0, ptr)
	}

	for i, ptr := range onPage0 {
		if i%2 == 0 {
			if err := tbl.Delete(txn.ID(2), ptr); err != nil {
				t.Fatalf("Delete: %v", err)
			}
		}
	}

	// Page 0's free-space bit stays "full" (logical delete only): the next
	// insert must land on a later page, not reuse the freed slots.
	next, err := tbl.Insert(tid, []row.Value{row.TextValue(string(big)), row.NullValue(), row.TextValue("y")})
	if err != nil {
		t.Fatalf("Insert after deletes: %v", err)
	}
	if next.Page == 0 {
		t.Fatalf("insert after delete landed back on page 0, want a later page")
	}

	entries, err := tbl.Stream()
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	live := 0
	for _, e := range entries {
		if e.Row.Max == 0 {
			live++
		}
	}
	wantLive := len(onPage0)/2 + 2 // surviving page-0 rows, plus the row that first spilled onto page 1, plus the new one
	if live != wantLive {
		t.Fatalf("live rows = %d, want %d", live, wantLive)
	}
}
