package pager

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
)

// PageKind distinguishes a resource's data pages from its free-space-map
// pages; each gets its own file family (§3, §6).
type PageKind uint8

const (
	KindData PageKind = iota
	KindFreeSpaceMap
)

func (k PageKind) String() string {
	switch k {
	case KindData:
		return "data"
	case KindFreeSpaceMap:
		return "fs"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// ResourceKey is the 128-bit opaque identifier of one table or index; all
// of a resource's pages live under files named after it.
type ResourceKey uuid.UUID

// NewResourceKey mints a fresh random resource identifier.
func NewResourceKey() ResourceKey {
	return ResourceKey(uuid.New())
}

func (r ResourceKey) String() string {
	return uuid.UUID(r).String()
}

// PageID identifies a logical file family: a resource plus the kind of page
// stored in it.
type PageID struct {
	Resource ResourceKey
	Kind     PageKind
}

// PageOffset is the non-negative, monotonic index of a page within a
// resource's file family.
type PageOffset uint64

// FileNumber returns which backing file holds offset, under PagesPerFile.
func (o PageOffset) FileNumber() uint64 {
	return uint64(o) / PagesPerFile
}

// SlotInFile returns offset's position within its backing file.
func (o PageOffset) SlotInFile() uint64 {
	return uint64(o) % PagesPerFile
}

// FilePath returns the on-disk path for the file holding id's pages at
// fileNumber, rooted at dataDir:
// <data_dir>/<prefix2>/<uuid32>.<page_type>.<file_number>
func FilePath(dataDir string, id PageID, fileNumber uint64) string {
	full := noDashes(id.Resource.String())
	prefix2 := full[:2]
	name := fmt.Sprintf("%s.%s.%d", full, id.Kind, fileNumber)
	return filepath.Join(dataDir, prefix2, name)
}

func noDashes(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '-' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
