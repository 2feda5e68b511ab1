package pager

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

type fileKey struct {
	id         PageID
	fileNumber uint64
}

// FileManager locates and caches the backing files for a logical page
// identity, and tracks each resource's next-free offset (C2).
type FileManager struct {
	dataDir string

	mu      sync.Mutex
	handles *lruCache[fileKey, *chunkFile]

	countersMu sync.Mutex
	counters   map[PageID]uint64
	scanned    map[PageID]bool
}

// NewFileManager opens a file manager rooted at dataDir, bounding its open
// file handle set to MaxFileHandleCount.
func NewFileManager(dataDir string) *FileManager {
	fm := &FileManager{
		dataDir:  dataDir,
		counters: make(map[PageID]uint64),
		scanned:  make(map[PageID]bool),
	}
	fm.handles = newLRUCache(MaxFileHandleCount, func(_ fileKey, f *chunkFile) {
		_ = f.close()
	})
	return fm
}

func (fm *FileManager) handle(id PageID, fileNumber uint64) (*chunkFile, error) {
	key := fileKey{id, fileNumber}
	fm.mu.Lock()
	defer fm.mu.Unlock()
	if f, ok := fm.handles.get(key); ok {
		return f, nil
	}
	path := FilePath(fm.dataDir, id, fileNumber)
	f, err := openChunkFile(path)
	if err != nil {
		return nil, err
	}
	fm.handles.put(key, f)
	return f, nil
}

// ReadPage reads offset's page, returning an all-zero PageSize buffer (the
// "not yet written" sentinel, §6) if the backing file is shorter than
// needed.
func (fm *FileManager) ReadPage(id PageID, offset PageOffset) ([]byte, error) {
	f, err := fm.handle(id, offset.FileNumber())
	if err != nil {
		return nil, err
	}
	count, err := f.pageCount()
	if err != nil {
		return nil, err
	}
	if offset.SlotInFile() >= count {
		return make([]byte, PageSize), nil
	}
	return f.readPage(offset.SlotInFile())
}

// WritePage writes buf at offset, growing the backing file with zero pages
// as needed (add_chunk), then fsyncs.
func (fm *FileManager) WritePage(id PageID, offset PageOffset, buf []byte) error {
	f, err := fm.handle(id, offset.FileNumber())
	if err != nil {
		return err
	}
	count, err := f.pageCount()
	if err != nil {
		return err
	}
	zero := make([]byte, PageSize)
	for slot := count; slot < offset.SlotInFile(); slot++ {
		if err := f.writePage(slot, zero); err != nil {
			return err
		}
	}
	if err := f.writePage(offset.SlotInFile(), buf); err != nil {
		return err
	}
	return f.sync()
}

// NextOffset reserves the next free offset for id. On the first call for a
// given id it scans the highest-numbered backing file backward in
// PageSize strides, skipping all-zero pages, and resumes numbering from the
// last non-empty page; subsequent calls just increment an in-memory
// counter (§4.2).
func (fm *FileManager) NextOffset(id PageID) (PageOffset, error) {
	fm.countersMu.Lock()
	defer fm.countersMu.Unlock()

	if !fm.scanned[id] {
		last, err := fm.scanLastWritten(id)
		if err != nil {
			return 0, err
		}
		fm.counters[id] = last
		fm.scanned[id] = true
	}
	next := fm.counters[id]
	fm.counters[id] = next + 1
	return PageOffset(next), nil
}

// scanLastWritten finds the offset just past the last non-zero page across
// id's file family.
func (fm *FileManager) scanLastWritten(id PageID) (uint64, error) {
	highest, err := fm.highestFileNumber(id)
	if err != nil {
		return 0, err
	}
	if highest < 0 {
		return 0, nil
	}
	f, err := fm.handle(id, uint64(highest))
	if err != nil {
		return 0, err
	}
	count, err := f.pageCount()
	if err != nil {
		return 0, err
	}
	for slot := int64(count) - 1; slot >= 0; slot-- {
		buf, err := f.readPage(uint64(slot))
		if err != nil {
			return 0, err
		}
		if !IsZeroPage(buf) {
			return uint64(highest)*PagesPerFile + uint64(slot) + 1, nil
		}
	}
	return uint64(highest) * PagesPerFile, nil
}

// highestFileNumber returns the largest file_number present on disk for
// id's file family, or -1 if none exists yet.
func (fm *FileManager) highestFileNumber(id PageID) (int64, error) {
	full := noDashes(id.Resource.String())
	pattern := filepath.Join(fm.dataDir, full[:2], fmt.Sprintf("%s.%s.*", full, id.Kind))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return -1, fmt.Errorf("%w: globbing %s: %v", ErrIoError, pattern, err)
	}
	highest := int64(-1)
	for _, m := range matches {
		var n int64
		if _, err := fmt.Sscanf(filepath.Base(m), full+"."+id.Kind.String()+".%d", &n); err == nil && n > highest {
			highest = n
		}
	}
	return highest, nil
}

// hasAnyPage reports whether id's file family has ever been written to,
// checked via a plain stat on file_number 0 so the check itself never
// creates the file (handle() would, via its O_CREATE open).
func (fm *FileManager) hasAnyPage(id PageID) (bool, error) {
	path := FilePath(fm.dataDir, id, 0)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: stat %s: %v", ErrIoError, path, err)
	}
	return info.Size() > 0, nil
}

// Close releases every open file handle.
func (fm *FileManager) Close() error {
	fm.mu.Lock()
	defer fm.mu.Unlock()
	var firstErr error
	for _, n := range fm.handles.entries {
		if err := n.value.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
