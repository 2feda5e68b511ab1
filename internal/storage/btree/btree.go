package btree

import (
	"fmt"
	"sort"

	"github.com/lanterndb/lantern/internal/storage/pager"
	"github.com/lanterndb/lantern/internal/storage/row"
)

// Index is a paged B+tree over one resource, mapping packed keys to row
// pointers. Unique indexes reject a second insert of an existing key.
type Index struct {
	p        *pager.Pager
	resource pager.ResourceKey
	keyTypes []row.ColumnType
	Unique   bool
}

// Open binds an Index to resource, creating its distinguished first page
// if this is a brand-new resource.
func Open(p *pager.Pager, resource pager.ResourceKey, keyTypes []row.ColumnType, unique bool) (*Index, error) {
	idx := &Index{p: p, resource: resource, keyTypes: keyTypes, Unique: unique}
	id := idx.id()
	exists, err := p.HasAnyPage(id)
	if err != nil {
		return nil, err
	}
	if !exists {
		offset, err := p.AddPage(id, marshalFirstPage(0))
		if err != nil {
			return nil, err
		}
		if offset != 0 {
			return nil, fmt.Errorf("%w: first page landed at offset %d, want 0", ErrNodeParse, offset)
		}
	}
	return idx, nil
}

func (idx *Index) id() pager.PageID {
	return pager.PageID{Resource: idx.resource, Kind: pager.KindData}
}

func (idx *Index) readRoot() (pager.PageOffset, error) {
	buf, release, err := idx.p.GetPage(idx.id(), 0)
	if err != nil {
		return 0, err
	}
	defer release()
	return parseFirstPage(buf), nil
}

func (idx *Index) setRoot(root pager.PageOffset) error {
	_, commit, release, err := idx.p.GetPageForUpdate(idx.id(), 0)
	if err != nil {
		return err
	}
	defer release()
	return commit(marshalFirstPage(root))
}

// Insert adds key -> ptr to the index. A unique index refuses a second
// insert of an existing key with ErrUniqueViolation. The facade's InsertRow
// calls this after the row insert, once the row's pointer is known.
func (idx *Index) Insert(key []row.Value, ptr row.ItemPointer) error {
	root, err := idx.readRoot()
	if err != nil {
		return err
	}
	if root == 0 {
		leaf := leafNode{Buckets: []leafBucket{{Key: key, Pointers: []row.ItemPointer{ptr}}}}
		buf, err := marshalLeaf(leaf, idx.keyTypes)
		if err != nil {
			return err
		}
		offset, err := idx.p.AddPage(idx.id(), buf)
		if err != nil {
			return err
		}
		return idx.setRoot(offset)
	}

	ancestors, leafOffset, err := idx.descendCollecting(root, key, chooseInsertChild(idx.Unique))
	if err != nil {
		return err
	}
	return idx.insertIntoLeaf(leafOffset, ancestors, key, ptr)
}

// SearchEqual returns the pointers stored under key, or nil if absent.
func (idx *Index) SearchEqual(key []row.Value) ([]row.ItemPointer, error) {
	root, err := idx.readRoot()
	if err != nil {
		return nil, err
	}
	if root == 0 {
		return nil, nil
	}
	_, leafOffset, err := idx.descendCollecting(root, key, chooseSearchChild)
	if err != nil {
		return nil, err
	}
	buf, release, err := idx.p.GetPage(idx.id(), leafOffset)
	if err != nil {
		return nil, err
	}
	defer release()
	leaf, err := parseLeaf(buf, idx.keyTypes)
	if err != nil {
		return nil, err
	}
	pos, found := locateBucket(leaf.Buckets, key)
	if !found {
		return nil, nil
	}
	return leaf.Buckets[pos].Pointers, nil
}

// SearchRange returns every pointer whose key falls within [lower, upper]
// (bounds nil-able and independently inclusive/exclusive), following
// sibling links left to right starting from the leaf lower would descend
// to (§4.10).
func (idx *Index) SearchRange(lower, upper []row.Value, lowerIncl, upperIncl bool) ([]row.ItemPointer, error) {
	root, err := idx.readRoot()
	if err != nil {
		return nil, err
	}
	if root == 0 {
		return nil, nil
	}
	var startOffset pager.PageOffset
	if lower == nil {
		startOffset, err = idx.leftmostLeaf(root)
	} else {
		_, startOffset, err = idx.descendCollecting(root, lower, chooseSearchChild)
	}
	if err != nil {
		return nil, err
	}

	var results []row.ItemPointer
	for cur := startOffset; cur != 0; {
		buf, release, err := idx.p.GetPage(idx.id(), cur)
		if err != nil {
			return nil, err
		}
		leaf, err := parseLeaf(buf, idx.keyTypes)
		next := leaf.Right
		release()
		if err != nil {
			return nil, err
		}
		stop := false
		for _, b := range leaf.Buckets {
			if lower != nil {
				cmp := compareKeys(b.Key, lower)
				if cmp < 0 || (cmp == 0 && !lowerIncl) {
					continue
				}
			}
			if upper != nil {
				cmp := compareKeys(b.Key, upper)
				if cmp > 0 || (cmp == 0 && !upperIncl) {
					stop = true
					break
				}
			}
			results = append(results, b.Pointers...)
		}
		if stop {
			break
		}
		cur = next
	}
	return results, nil
}

// InOrderKeys walks every leaf left to right via sibling links, returning
// every bucket's key in ascending order. Used to verify the leaf
// sibling-link round trip (§8).
func (idx *Index) InOrderKeys() ([][]row.Value, error) {
	root, err := idx.readRoot()
	if err != nil {
		return nil, err
	}
	if root == 0 {
		return nil, nil
	}
	start, err := idx.leftmostLeaf(root)
	if err != nil {
		return nil, err
	}
	var out [][]row.Value
	for cur := start; cur != 0; {
		buf, release, err := idx.p.GetPage(idx.id(), cur)
		if err != nil {
			return nil, err
		}
		leaf, err := parseLeaf(buf, idx.keyTypes)
		next := leaf.Right
		release()
		if err != nil {
			return nil, err
		}
		for _, b := range leaf.Buckets {
			out = append(out, b.Key)
		}
		cur = next
	}
	return out, nil
}

func (idx *Index) leftmostLeaf(root pager.PageOffset) (pager.PageOffset, error) {
	cur := root
	for {
		buf, release, err := idx.p.GetPage(idx.id(), cur)
		if err != nil {
			return 0, err
		}
		if isLeafPage(buf) {
			release()
			return cur, nil
		}
		branch, err := parseBranch(buf, idx.keyTypes)
		release()
		if err != nil {
			return 0, err
		}
		cur = branch.Children[0]
	}
}

// childChooser picks which child of branch to descend into for key.
type childChooser func(branch branchNode, key []row.Value) pager.PageOffset

func chooseInsertChild(unique bool) childChooser {
	return func(branch branchNode, key []row.Value) pager.PageOffset {
		for i, k := range branch.Keys {
			cmp := compareKeys(key, k)
			if (unique && cmp <= 0) || (!unique && cmp < 0) {
				return branch.Children[i]
			}
		}
		return branch.Children[len(branch.Children)-1]
	}
}

func chooseSearchChild(branch branchNode, key []row.Value) pager.PageOffset {
	for i, k := range branch.Keys {
		if compareKeys(k, key) >= 0 {
			return branch.Children[i]
		}
	}
	return branch.Children[len(branch.Children)-1]
}

// descendCollecting walks from root to a leaf, recording every branch
// offset visited (for split propagation), and returns that ancestor stack
// plus the leaf offset reached.
func (idx *Index) descendCollecting(root pager.PageOffset, key []row.Value, choose childChooser) ([]pager.PageOffset, pager.PageOffset, error) {
	var ancestors []pager.PageOffset
	cur := root
	for {
		buf, release, err := idx.p.GetPage(idx.id(), cur)
		if err != nil {
			return nil, 0, err
		}
		if isLeafPage(buf) {
			release()
			return ancestors, cur, nil
		}
		branch, err := parseBranch(buf, idx.keyTypes)
		release()
		if err != nil {
			return nil, 0, err
		}
		ancestors = append(ancestors, cur)
		cur = choose(branch, key)
	}
}

func locateBucket(buckets []leafBucket, key []row.Value) (pos int, found bool) {
	pos = sort.Search(len(buckets), func(i int) bool {
		return compareKeys(buckets[i].Key, key) >= 0
	})
	if pos < len(buckets) && compareKeys(buckets[pos].Key, key) == 0 {
		return pos, true
	}
	return pos, false
}

func (idx *Index) insertIntoLeaf(offset pager.PageOffset, ancestors []pager.PageOffset, key []row.Value, ptr row.ItemPointer) error {
	buf, commit, release, err := idx.p.GetPageForUpdate(idx.id(), offset)
	if err != nil {
		return err
	}
	leaf, err := parseLeaf(buf, idx.keyTypes)
	if err != nil {
		release()
		return err
	}

	pos, found := locateBucket(leaf.Buckets, key)
	if found {
		if idx.Unique {
			release()
			return ErrUniqueViolation
		}
		leaf.Buckets[pos].Pointers = append(leaf.Buckets[pos].Pointers, ptr)
	} else {
		leaf.Buckets = insertBucketAt(leaf.Buckets, pos, leafBucket{Key: key, Pointers: []row.ItemPointer{ptr}})
	}

	newBuf, err := marshalLeaf(leaf, idx.keyTypes)
	if err == nil {
		commitErr := commit(newBuf)
		release()
		return commitErr
	}
	if err != ErrKeyTooLarge {
		release()
		return err
	}
	release()
	return idx.splitLeaf(offset, leaf, ancestors)
}

func (idx *Index) splitLeaf(offset pager.PageOffset, leaf leafNode, ancestors []pager.PageOffset) error {
	if len(leaf.Buckets) < 2 {
		return ErrSplitImpossible
	}
	mid := len(leaf.Buckets) / 2
	leftBuckets := append([]leafBucket(nil), leaf.Buckets[:mid]...)
	rightBuckets := append([]leafBucket(nil), leaf.Buckets[mid:]...)

	newRight := leafNode{Parent: leaf.Parent, Left: offset, Right: leaf.Right, Buckets: rightBuckets}
	rightBuf, err := marshalLeaf(newRight, idx.keyTypes)
	if err != nil {
		return ErrSplitImpossible
	}
	rightOffset, err := idx.p.AddPage(idx.id(), rightBuf)
	if err != nil {
		return err
	}

	if leaf.Right != 0 {
		if err := idx.relinkLeft(leaf.Right, rightOffset); err != nil {
			return err
		}
	}

	newLeft := leafNode{Parent: leaf.Parent, Left: leaf.Left, Right: rightOffset, Buckets: leftBuckets}
	leftBuf, err := marshalLeaf(newLeft, idx.keyTypes)
	if err != nil {
		return ErrSplitImpossible
	}
	_, commit, release, err := idx.p.GetPageForUpdate(idx.id(), offset)
	if err != nil {
		return err
	}
	if err := commit(leftBuf); err != nil {
		release()
		return err
	}
	release()

	medianKey := leftBuckets[len(leftBuckets)-1].Key
	return idx.propagateSplit(ancestors, offset, rightOffset, medianKey)
}

func (idx *Index) relinkLeft(rightSibling, newLeft pager.PageOffset) error {
	buf, commit, release, err := idx.p.GetPageForUpdate(idx.id(), rightSibling)
	if err != nil {
		return err
	}
	leaf, err := parseLeaf(buf, idx.keyTypes)
	if err != nil {
		release()
		return err
	}
	leaf.Left = newLeft
	newBuf, err := marshalLeaf(leaf, idx.keyTypes)
	if err != nil {
		release()
		return err
	}
	commitErr := commit(newBuf)
	release()
	return commitErr
}

func (idx *Index) propagateSplit(ancestors []pager.PageOffset, leftChild, rightChild pager.PageOffset, medianKey []row.Value) error {
	if len(ancestors) == 0 {
		newRoot := branchNode{Keys: [][]row.Value{medianKey}, Children: []pager.PageOffset{leftChild, rightChild}}
		buf, err := marshalBranch(newRoot, idx.keyTypes)
		if err != nil {
			return err
		}
		offset, err := idx.p.AddPage(idx.id(), buf)
		if err != nil {
			return err
		}
		return idx.setRoot(offset)
	}

	parentOffset := ancestors[len(ancestors)-1]
	buf, commit, release, err := idx.p.GetPageForUpdate(idx.id(), parentOffset)
	if err != nil {
		return err
	}
	branch, err := parseBranch(buf, idx.keyTypes)
	if err != nil {
		release()
		return err
	}

	pos := indexOfChild(branch.Children, leftChild)
	if pos < 0 {
		release()
		return fmt.Errorf("%w: split child %d not found in parent", ErrNodeParse, leftChild)
	}
	branch.Keys = insertKeyAt(branch.Keys, pos, medianKey)
	branch.Children = insertChildAt(branch.Children, pos+1, rightChild)

	newBuf, err := marshalBranch(branch, idx.keyTypes)
	if err == nil {
		commitErr := commit(newBuf)
		release()
		return commitErr
	}
	if err != ErrKeyTooLarge {
		release()
		return err
	}
	release()
	return idx.splitBranch(parentOffset, branch, ancestors[:len(ancestors)-1])
}

func (idx *Index) splitBranch(offset pager.PageOffset, branch branchNode, ancestors []pager.PageOffset) error {
	if len(branch.Keys) < 1 {
		return ErrSplitImpossible
	}
	mid := len(branch.Keys) / 2
	medianKey := branch.Keys[mid]
	left := branchNode{Parent: branch.Parent, Keys: append([][]row.Value(nil), branch.Keys[:mid]...), Children: append([]pager.PageOffset(nil), branch.Children[:mid+1]...)}
	right := branchNode{Parent: branch.Parent, Keys: append([][]row.Value(nil), branch.Keys[mid+1:]...), Children: append([]pager.PageOffset(nil), branch.Children[mid+1:]...)}

	rightBuf, err := marshalBranch(right, idx.keyTypes)
	if err != nil {
		return ErrSplitImpossible
	}
	rightOffset, err := idx.p.AddPage(idx.id(), rightBuf)
	if err != nil {
		return err
	}

	leftBuf, err := marshalBranch(left, idx.keyTypes)
	if err != nil {
		return ErrSplitImpossible
	}
	_, commit, release, err := idx.p.GetPageForUpdate(idx.id(), offset)
	if err != nil {
		return err
	}
	if err := commit(leftBuf); err != nil {
		release()
		return err
	}
	release()

	return idx.propagateSplit(ancestors, offset, rightOffset, medianKey)
}

func indexOfChild(children []pager.PageOffset, target pager.PageOffset) int {
	for i, c := range children {
		if c == target {
			return i
		}
	}
	return -1
}

func insertBucketAt(buckets []leafBucket, pos int, b leafBucket) []leafBucket {
	buckets = append(buckets, leafBucket{})
	copy(buckets[pos+1:], buckets[pos:])
	buckets[pos] = b
	return buckets
}

func insertKeyAt(keys [][]row.Value, pos int, k []row.Value) [][]row.Value {
	keys = append(keys, nil)
	copy(keys[pos+1:], keys[pos:])
	keys[pos] = k
	return keys
}

func insertChildAt(children []pager.PageOffset, pos int, c pager.PageOffset) []pager.PageOffset {
	children = append(children, 0)
	copy(children[pos+1:], children[pos:])
	children[pos] = c
	return children
}
