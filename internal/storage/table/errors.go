// Package table implements the Row Manager (C8): inserting, deleting,
// updating, fetching and streaming tuples on top of the paged slotted-page
// store, plus the MVCC visibility wrapper (C9) and the constraint check
// (C10) on the write path. Grounded on the teacher's internal/storage/db.go
// (the table-level CRUD shape: validate, locate a page, mutate, persist)
// generalized from the teacher's single mmap'd heap file to this format's
// free-space-bitmap-driven page placement and forwarding-pointer updates.
package table

import "errors"

// errPageNotAllocated signals that a free-space candidate offset has never
// been written: the caller must fall back to reserving a brand-new page
// via the pager rather than treating it as an existing, merely-empty one.
var errPageNotAllocated = errors.New("table: candidate page has not been allocated yet")
