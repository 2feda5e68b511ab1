package btree

import (
	"bytes"
	"strings"

	"github.com/lanterndb/lantern/internal/storage/row"
)

// compareValue orders two values of the same declared kind. A null sorts
// before any non-null value.
func compareValue(a, b row.Value) int {
	if a.IsNull && b.IsNull {
		return 0
	}
	if a.IsNull {
		return -1
	}
	if b.IsNull {
		return 1
	}
	switch a.Kind {
	case row.KindBool:
		switch {
		case a.Bool == b.Bool:
			return 0
		case !a.Bool:
			return -1
		default:
			return 1
		}
	case row.KindInteger:
		switch {
		case a.Int < b.Int:
			return -1
		case a.Int > b.Int:
			return 1
		default:
			return 0
		}
	case row.KindUuid:
		return bytes.Compare(a.Uuid[:], b.Uuid[:])
	case row.KindText:
		return strings.Compare(a.Text, b.Text)
	default:
		return 0
	}
}

// compareKeys orders two multi-column keys lexicographically, column by
// column, in index attribute order.
func compareKeys(a, b []row.Value) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if c := compareValue(a[i], b[i]); c != 0 {
			return c
		}
	}
	return len(a) - len(b)
}
