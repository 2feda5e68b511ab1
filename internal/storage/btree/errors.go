// Package btree implements the paged B+tree secondary-index subsystem
// (C12): tag-byte discriminated leaf/branch node pages, bucketed leaves
// mapping a key to a non-empty list of row pointers, sibling-linked
// leaves, and median-split propagation up to the root. Directly grounded
// on the teacher's pager/btree.go + pager/btree_page.go (tag-byte nodes,
// FindLeafEntry/InsertLeafEntry, split-by-median, NextLeaf/PrevLeaf
// sibling links), adapted from a single-file uint32 PageID keyspace to
// this module's per-resource pager.PageOffset addressing and from opaque
// byte keys/values to the bucketed, multi-pointer leaf format this index
// requires.
package btree

import "errors"

var (
	ErrKeyTooLarge    = errors.New("btree: key too large to fit in a page")
	ErrMissingKeys    = errors.New("btree: branch page has no keys")
	ErrSplitImpossible = errors.New("btree: cannot split into two pages under the page size")
	ErrRootNodeEmpty  = errors.New("btree: root page has not been created yet")
	ErrNodeParse      = errors.New("btree: malformed node page")
	ErrUniqueViolation = errors.New("btree: unique index already has an entry for this key")
)
