// Package txn implements the transaction id allocator and status oracle
// (C11) and the MVCC visibility filter built on top of it (C9), grounded
// on the teacher's internal/storage/mvcc.go MVCCManager (atomic id
// counter, RWMutex-guarded status map, TxStatus enum) narrowed to this
// format's exact start/commit/abort/status/visibility contract.
package txn

import "errors"

var (
	ErrTooOld        = errors.New("txn: transaction id predates the status table")
	ErrInTheFuture   = errors.New("txn: transaction id has not been allocated yet")
	ErrNotInProgress = errors.New("txn: transaction is not in progress")
	ErrIDLimitReached = errors.New("txn: transaction id space exhausted")

	// ErrNotVisible is returned by an explicit get of a row the viewing
	// transaction cannot see (§4.7). Stream paths never return it: they
	// silently filter invisible rows instead.
	ErrNotVisible = errors.New("txn: row is not visible to this transaction")
)
