package table

import (
	"errors"
	"fmt"

	"github.com/lanterndb/lantern/internal/storage/pager"
	"github.com/lanterndb/lantern/internal/storage/row"
	"github.com/lanterndb/lantern/internal/storage/txn"
)

// Table is the Row Manager bound to one resource: insert, delete, update,
// get and stream tuples, each MVCC-tagged by the issuing transaction (§4.6).
type Table struct {
	pager    *pager.Pager
	fsm      *pager.FreeSpaceManager
	resource pager.ResourceKey
	Attrs    []row.Attribute
	schema   []row.ColumnType
}

// New binds a Table to resource with the given attribute list. The
// underlying pages are created lazily on first insert.
func New(p *pager.Pager, resource pager.ResourceKey, attrs []row.Attribute) *Table {
	schema := make([]row.ColumnType, len(attrs))
	for i, a := range attrs {
		schema[i] = a.Type
	}
	return &Table{pager: p, fsm: p.FreeSpaceManager(), resource: resource, Attrs: attrs, schema: schema}
}

func (t *Table) dataID() pager.PageID {
	return pager.PageID{Resource: t.resource, Kind: pager.KindData}
}

// StreamEntry pairs a row with its durable address.
type StreamEntry struct {
	Pointer row.ItemPointer
	Row     row.Row
}

// Insert validates tuple against the table's attributes, then places it:
// ask the free-space manager for a candidate page, try it under a write
// guard, and on a stale or full hint mark it full and retry (§4.6).
func (t *Table) Insert(tid txn.ID, tuple []row.Value) (row.ItemPointer, error) {
	if err := row.ValidateTuple(t.Attrs, tuple); err != nil {
		return row.ItemPointer{}, err
	}
	for {
		candidate, err := t.fsm.GetNextFreePage(t.resource)
		if err != nil {
			return row.ItemPointer{}, err
		}
		ptr, full, err := t.tryInsertInto(candidate, tid, tuple)
		switch {
		case errors.Is(err, errPageNotAllocated):
			return t.insertFreshPage(tid, tuple)
		case err != nil:
			return row.ItemPointer{}, err
		case full:
			if err := t.fsm.MarkPage(t.resource, candidate, true); err != nil {
				return row.ItemPointer{}, err
			}
		default:
			return ptr, nil
		}
	}
}

// tryInsertInto attempts to place tuple on an already-allocated page.
// full is true when the page exists but the tuple does not fit (a stale
// free-space hint); err is errPageNotAllocated when candidate has never
// been written, signalling the caller to reserve a fresh page instead.
func (t *Table) tryInsertInto(candidate pager.PageOffset, tid txn.ID, tuple []row.Value) (ptr row.ItemPointer, full bool, err error) {
	buf, commit, release, err := t.pager.GetPageForUpdate(t.dataID(), candidate)
	if err != nil {
		return row.ItemPointer{}, false, err
	}
	if pager.IsZeroPage(buf) {
		release()
		return row.ItemPointer{}, false, errPageNotAllocated
	}
	dp, err := pager.WrapDataPage(buf)
	if err != nil {
		release()
		return row.ItemPointer{}, false, err
	}

	ptr = row.ItemPointer{Page: candidate, Slot: uint16(dp.ItemCount())}
	encoded, err := row.Marshal(row.Row{Min: uint64(tid), Forward: ptr, Values: tuple}, t.schema)
	if err != nil {
		release()
		return row.ItemPointer{}, false, err
	}
	if !dp.CanFit(len(encoded)) {
		release()
		return row.ItemPointer{}, true, nil
	}
	if _, err := dp.Add(encoded); err != nil {
		release()
		return row.ItemPointer{}, false, err
	}
	if err := commit(dp.Bytes()); err != nil {
		release()
		return row.ItemPointer{}, false, err
	}
	release()
	return ptr, false, nil
}

// insertFreshPage reserves a brand-new data page and writes tuple as its
// sole row, now that the page's own offset (needed for the row's
// self-pointing forwarding pointer) is known.
func (t *Table) insertFreshPage(tid txn.ID, tuple []row.Value) (row.ItemPointer, error) {
	var ptr row.ItemPointer
	_, err := t.pager.AddPageWith(t.dataID(), func(offset pager.PageOffset) ([]byte, error) {
		ptr = row.ItemPointer{Page: offset, Slot: 0}
		encoded, err := row.Marshal(row.Row{Min: uint64(tid), Forward: ptr, Values: tuple}, t.schema)
		if err != nil {
			return nil, err
		}
		dp := pager.NewDataPage()
		if !dp.CanFit(len(encoded)) {
			return nil, fmt.Errorf("%w: row does not fit in an empty page", pager.ErrPageFull)
		}
		if _, err := dp.Add(encoded); err != nil {
			return nil, err
		}
		return dp.Bytes(), nil
	})
	if err != nil {
		return row.ItemPointer{}, err
	}
	return ptr, nil
}

// Delete marks the row at ptr deleted by tid, failing ErrAlreadyDeleted if
// it already carries a non-zero max.
func (t *Table) Delete(tid txn.ID, ptr row.ItemPointer) error {
	buf, commit, release, err := t.pager.GetPageForUpdate(t.dataID(), ptr.Page)
	if err != nil {
		return err
	}
	defer release()
	if pager.IsZeroPage(buf) {
		return row.ErrNonExistentPage
	}
	dp, err := pager.WrapDataPage(buf)
	if err != nil {
		return err
	}
	rec, err := dp.Get(int(ptr.Slot))
	if err != nil {
		return fmt.Errorf("%w: %v", row.ErrNonExistentRow, err)
	}
	r, err := row.Unmarshal(rec, t.schema)
	if err != nil {
		return err
	}
	if r.Max != 0 {
		return row.ErrAlreadyDeleted
	}
	r.Max = uint64(tid)
	newRec, err := row.Marshal(r, t.schema)
	if err != nil {
		return err
	}
	if err := dp.Put(int(ptr.Slot), newRec); err != nil {
		return err
	}
	return commit(dp.Bytes())
}

// Update inserts newTuple as a fresh row, then retires ptr's row by setting
// its max to tid and its forwarding pointer to the new row's address. The
// insert is durable before the retirement write, so no reader ever observes
// a forwarding pointer to a row that doesn't yet exist (§4.6).
//
// The original page's write guard is not held across the nested Insert:
// the free-space manager may legitimately route the new tuple back onto
// ptr.Page itself, and this module's lock guards are not reentrant within
// one caller (§5's "never re-enter a guard already held" applies to a
// single logical task, so Insert must run guard-free here).
func (t *Table) Update(tid txn.ID, ptr row.ItemPointer, newTuple []row.Value) (row.ItemPointer, error) {
	if err := row.ValidateTuple(t.Attrs, newTuple); err != nil {
		return row.ItemPointer{}, err
	}
	if _, err := t.checkNotDeleted(ptr); err != nil {
		return row.ItemPointer{}, err
	}

	newPtr, err := t.Insert(tid, newTuple)
	if err != nil {
		return row.ItemPointer{}, err
	}

	buf, commit, release, err := t.pager.GetPageForUpdate(t.dataID(), ptr.Page)
	if err != nil {
		return row.ItemPointer{}, err
	}
	defer release()
	dp, err := pager.WrapDataPage(buf)
	if err != nil {
		return row.ItemPointer{}, err
	}
	rec, err := dp.Get(int(ptr.Slot))
	if err != nil {
		return row.ItemPointer{}, fmt.Errorf("%w: %v", row.ErrNonExistentRow, err)
	}
	r, err := row.Unmarshal(rec, t.schema)
	if err != nil {
		return row.ItemPointer{}, err
	}
	if r.Max != 0 {
		return row.ItemPointer{}, row.ErrAlreadyDeleted
	}
	r.Max = uint64(tid)
	r.Forward = newPtr
	newRec, err := row.Marshal(r, t.schema)
	if err != nil {
		return row.ItemPointer{}, err
	}
	if err := dp.Put(int(ptr.Slot), newRec); err != nil {
		return row.ItemPointer{}, err
	}
	if err := commit(dp.Bytes()); err != nil {
		return row.ItemPointer{}, err
	}
	return newPtr, nil
}

func (t *Table) checkNotDeleted(ptr row.ItemPointer) (row.Row, error) {
	buf, release, err := t.pager.GetPage(t.dataID(), ptr.Page)
	if err != nil {
		return row.Row{}, err
	}
	defer release()
	if pager.IsZeroPage(buf) {
		return row.Row{}, row.ErrNonExistentPage
	}
	dp, err := pager.WrapDataPage(buf)
	if err != nil {
		return row.Row{}, err
	}
	rec, err := dp.Get(int(ptr.Slot))
	if err != nil {
		return row.Row{}, fmt.Errorf("%w: %v", row.ErrNonExistentRow, err)
	}
	r, err := row.Unmarshal(rec, t.schema)
	if err != nil {
		return row.Row{}, err
	}
	if r.Max != 0 {
		return row.Row{}, row.ErrAlreadyDeleted
	}
	return r, nil
}

// Get reads and parses the row at ptr, with no visibility filtering.
func (t *Table) Get(ptr row.ItemPointer) (row.Row, error) {
	buf, release, err := t.pager.GetPage(t.dataID(), ptr.Page)
	if err != nil {
		return row.Row{}, err
	}
	defer release()
	if pager.IsZeroPage(buf) {
		return row.Row{}, row.ErrNonExistentPage
	}
	dp, err := pager.WrapDataPage(buf)
	if err != nil {
		return row.Row{}, err
	}
	rec, err := dp.Get(int(ptr.Slot))
	if err != nil {
		return row.Row{}, fmt.Errorf("%w: %v", row.ErrNonExistentRow, err)
	}
	return row.Unmarshal(rec, t.schema)
}

// GetVisible wraps Get with the MVCC visibility filter (§4.7), failing
// ErrNotVisible when viewer cannot see the row — an explicit get surfaces
// invisibility as an error, unlike the stream path.
func (t *Table) GetVisible(viewer txn.ID, ptr row.ItemPointer, oracle txn.Oracle) (row.Row, error) {
	r, err := t.Get(ptr)
	if err != nil {
		return row.Row{}, err
	}
	ok, err := txn.Visible(viewer, txn.ID(r.Min), txn.ID(r.Max), oracle)
	if err != nil {
		return row.Row{}, err
	}
	if !ok {
		return row.Row{}, txn.ErrNotVisible
	}
	return r, nil
}

// Stream enumerates data pages in ascending offset order until one is
// absent, yielding every row in slot order within each page. It applies no
// visibility filtering; callers needing that use StreamVisible. Restartable
// by calling again (§4.6).
func (t *Table) Stream() ([]StreamEntry, error) {
	id := t.dataID()
	var out []StreamEntry
	for offset := pager.PageOffset(0); ; offset++ {
		buf, release, err := t.pager.GetPage(id, offset)
		if err != nil {
			return nil, err
		}
		if pager.IsZeroPage(buf) {
			release()
			break
		}
		dp, err := pager.WrapDataPage(buf)
		release()
		if err != nil {
			return nil, err
		}
		records, err := dp.LiveRecords()
		if err != nil {
			return nil, err
		}
		for slot, rec := range records {
			r, err := row.Unmarshal(rec, t.schema)
			if err != nil {
				return nil, err
			}
			out = append(out, StreamEntry{Pointer: row.ItemPointer{Page: offset, Slot: uint16(slot)}, Row: r})
		}
	}
	return out, nil
}

// StreamVisible wraps Stream with the MVCC visibility filter: rows viewer
// cannot see are silently dropped, never reported as an error (§4.7, §7).
func (t *Table) StreamVisible(viewer txn.ID, oracle txn.Oracle) ([]StreamEntry, error) {
	all, err := t.Stream()
	if err != nil {
		return nil, err
	}
	out := make([]StreamEntry, 0, len(all))
	for _, e := range all {
		ok, err := txn.Visible(viewer, txn.ID(e.Row.Min), txn.ID(e.Row.Max), oracle)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, e)
		}
	}
	return out, nil
}
