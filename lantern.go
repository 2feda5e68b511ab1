// Package lantern is the public facade over the storage engine: table and
// index creation, transaction control, and the row/index operations listed
// in the external interface (§6). Grounded on the teacher's top-level
// database.go (a single struct wrapping the storage manager and exposing
// the engine's public verbs), generalized from the teacher's SQL-execution
// entry points to this engine's row-and-index primitives.
package lantern

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/lanterndb/lantern/internal/storage/btree"
	"github.com/lanterndb/lantern/internal/storage/catalog"
	"github.com/lanterndb/lantern/internal/storage/pager"
	"github.com/lanterndb/lantern/internal/storage/row"
	"github.com/lanterndb/lantern/internal/storage/table"
	"github.com/lanterndb/lantern/internal/storage/txn"
)

// RelationIndex is one index bound to a relation: the columns it covers,
// by attribute position, and whether it enforces uniqueness.
type RelationIndex struct {
	Name    string
	Index   *btree.Index
	Columns []int
	Unique  bool
}

// Relation is a user table together with every index registered on it.
type Relation struct {
	ClassID uuid.UUID
	Table   *table.Table
	Indexes []*RelationIndex
}

// Store is the top-level handle to one data directory: the pager, the
// transaction manager, the system catalog, and the in-memory registry of
// open relations built from it (§6).
type Store struct {
	mu       sync.RWMutex
	pager    *pager.Pager
	txns     *txn.Manager
	catalog  *catalog.Catalog
	relations map[string]*Relation
}

// Open binds a Store to dataDir and binds the system catalog tables to their
// fixed resources; their pages are written on first insert.
func Open(dataDir string) (*Store, error) {
	p := pager.Open(dataDir)
	return &Store{
		pager:     p,
		txns:      txn.NewManager(),
		catalog:   catalog.Open(p),
		relations: make(map[string]*Relation),
	}, nil
}

// Close releases the underlying pager's resources.
func (s *Store) Close() error {
	return s.pager.Close()
}

// StartTx, CommitTx and AbortTx wrap the transaction manager (§4.9).
func (s *Store) StartTx() (txn.ID, error)        { return s.txns.Start() }
func (s *Store) CommitTx(id txn.ID) error        { return s.txns.Commit(id) }
func (s *Store) AbortTx(id txn.ID) error         { return s.txns.Abort(id) }

// CreateTable registers attrs as a new table named name, bootstrapping its
// catalog rows under tid and binding it to a fresh resource.
func (s *Store) CreateTable(tid txn.ID, name string, attrs []row.Attribute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.relations[name]; exists {
		return fmt.Errorf("lantern: table %q already exists", name)
	}
	classID, err := s.catalog.RegisterTable(tid, name, attrs)
	if err != nil {
		return err
	}
	tbl := table.New(s.pager, pager.NewResourceKey(), attrs)
	s.relations[name] = &Relation{ClassID: classID, Table: tbl}
	return nil
}

// CreateIndex builds a B+tree over tableName's columns (by attribute
// position), registers it in the catalog, and binds it into the relation.
// unique rejects a second insert of an existing key at the index layer;
// callers that also want a named constraint row should follow with a
// RegisterConstraint call through the catalog directly.
func (s *Store) CreateIndex(tid txn.ID, tableName, indexName string, columns []int, unique bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rel, ok := s.relations[tableName]
	if !ok {
		return fmt.Errorf("lantern: no such table %q", tableName)
	}
	keyTypes := make([]row.ColumnType, len(columns))
	colNums := make([]int32, len(columns))
	for i, c := range columns {
		keyTypes[i] = rel.Table.Attrs[c].Type
		colNums[i] = int32(c)
	}
	idx, err := btree.Open(s.pager, pager.NewResourceKey(), keyTypes, unique)
	if err != nil {
		return err
	}
	if _, err := s.catalog.RegisterIndex(tid, rel.ClassID, indexName, colNums, unique); err != nil {
		return err
	}
	rel.Indexes = append(rel.Indexes, &RelationIndex{Name: indexName, Index: idx, Columns: columns, Unique: unique})
	return nil
}

func (s *Store) relation(name string) (*Relation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rel, ok := s.relations[name]
	if !ok {
		return nil, fmt.Errorf("lantern: no such table %q", name)
	}
	return rel, nil
}

func indexKey(tuple []row.Value, columns []int) []row.Value {
	key := make([]row.Value, len(columns))
	for i, c := range columns {
		key[i] = tuple[c]
	}
	return key
}

// InsertRow validates tuple, checks every unique index on tableName for a
// conflicting key, inserts the row, then inserts its pointer into every
// index on the table (§4.10's constraint coupling).
//
// The uniqueness pre-check happens before the row insert rather than the
// row insert racing a single atomic index-insert-and-rollback: the current
// Index API inserts a key durably on success, with no speculative
// reservation step, so two concurrent inserts of the same key can both
// pass this pre-check; whichever reaches idx.Insert second then fails with
// ErrUniqueViolation after its row is already live. Treat the pre-check as
// a fast-path optimization, not the enforcement point; ErrUniqueViolation
// from the index insert below is the authoritative rejection.
func (s *Store) InsertRow(tid txn.ID, tableName string, tuple []row.Value) (row.ItemPointer, error) {
	rel, err := s.relation(tableName)
	if err != nil {
		return row.ItemPointer{}, err
	}
	for _, ri := range rel.Indexes {
		if !ri.Unique {
			continue
		}
		existing, err := ri.Index.SearchEqual(indexKey(tuple, ri.Columns))
		if err != nil {
			return row.ItemPointer{}, err
		}
		if len(existing) > 0 {
			return row.ItemPointer{}, btree.ErrUniqueViolation
		}
	}

	ptr, err := rel.Table.Insert(tid, tuple)
	if err != nil {
		return row.ItemPointer{}, err
	}
	for _, ri := range rel.Indexes {
		if err := ri.Index.Insert(indexKey(tuple, ri.Columns), ptr); err != nil {
			return row.ItemPointer{}, err
		}
	}
	return ptr, nil
}

// DeleteRow logically deletes the row at ptr. It does not remove the row's
// entries from any index: the spec is silent on index upkeep for deletes,
// and reclaiming stale index entries is left to a future vacuum pass (§9).
func (s *Store) DeleteRow(tid txn.ID, tableName string, ptr row.ItemPointer) error {
	rel, err := s.relation(tableName)
	if err != nil {
		return err
	}
	return rel.Table.Delete(tid, ptr)
}

// UpdateRow inserts newTuple as a fresh row and retires ptr's row, indexing
// the new row the same way InsertRow does. The retired row's old index
// entries are left in place, same as DeleteRow.
func (s *Store) UpdateRow(tid txn.ID, tableName string, ptr row.ItemPointer, newTuple []row.Value) (row.ItemPointer, error) {
	rel, err := s.relation(tableName)
	if err != nil {
		return row.ItemPointer{}, err
	}
	newPtr, err := rel.Table.Update(tid, ptr, newTuple)
	if err != nil {
		return row.ItemPointer{}, err
	}
	for _, ri := range rel.Indexes {
		if err := ri.Index.Insert(indexKey(newTuple, ri.Columns), newPtr); err != nil {
			return row.ItemPointer{}, err
		}
	}
	return newPtr, nil
}

// GetRow reads the row at ptr as visible to viewer (§4.7); invisible rows
// fail with txn.ErrNotVisible, and absent ones with row.ErrNonExistentPage
// or row.ErrNonExistentRow.
func (s *Store) GetRow(viewer txn.ID, tableName string, ptr row.ItemPointer) (row.Row, error) {
	rel, err := s.relation(tableName)
	if err != nil {
		return row.Row{}, err
	}
	return rel.Table.GetVisible(viewer, ptr, s.txns.StatusOracle())
}

// StreamRows enumerates every row visible to viewer, silently skipping
// rows viewer cannot see.
func (s *Store) StreamRows(viewer txn.ID, tableName string) ([]table.StreamEntry, error) {
	rel, err := s.relation(tableName)
	if err != nil {
		return nil, err
	}
	return rel.Table.StreamVisible(viewer, s.txns.StatusOracle())
}

// IndexInsert inserts key/ptr into the named index directly, bypassing the
// row-insert coupling InsertRow performs. Exposed for callers building
// their own index-maintenance policy (e.g. a bulk loader).
func (s *Store) IndexInsert(tableName, indexName string, key []row.Value, ptr row.ItemPointer) error {
	ri, err := s.findIndex(tableName, indexName)
	if err != nil {
		return err
	}
	return ri.Index.Insert(key, ptr)
}

// IndexSearchEqual looks up every pointer stored under key in the named
// index.
func (s *Store) IndexSearchEqual(tableName, indexName string, key []row.Value) ([]row.ItemPointer, error) {
	ri, err := s.findIndex(tableName, indexName)
	if err != nil {
		return nil, err
	}
	return ri.Index.SearchEqual(key)
}

// IndexSearchRange looks up every pointer whose key falls within
// [lower, upper] (bounds inclusive per lowerIncl/upperIncl; a nil bound is
// unbounded on that side) in the named index.
func (s *Store) IndexSearchRange(tableName, indexName string, lower, upper []row.Value, lowerIncl, upperIncl bool) ([]row.ItemPointer, error) {
	ri, err := s.findIndex(tableName, indexName)
	if err != nil {
		return nil, err
	}
	return ri.Index.SearchRange(lower, upper, lowerIncl, upperIncl)
}

func (s *Store) findIndex(tableName, indexName string) (*RelationIndex, error) {
	rel, err := s.relation(tableName)
	if err != nil {
		return nil, err
	}
	for _, ri := range rel.Indexes {
		if ri.Name == indexName {
			return ri, nil
		}
	}
	return nil, fmt.Errorf("lantern: table %q has no index %q", tableName, indexName)
}
