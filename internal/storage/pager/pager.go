package pager

import "fmt"

// Pager orchestrates the file manager, lock manager and page cache behind
// the guard-based contracts C2-C4 describe, mirroring the layering of the
// teacher's own Pager (open file + buffer pool coordination) generalized
// from a single database file to one file family per resource.
type Pager struct {
	files *FileManager
	locks *LockManager
	cache *PageCache
}

// Open constructs a Pager rooted at dataDir.
func Open(dataDir string) *Pager {
	return &Pager{
		files: NewFileManager(dataDir),
		locks: NewLockManager(),
		cache: NewPageCache(),
	}
}

// Close releases any held file handles.
func (p *Pager) Close() error {
	return p.files.Close()
}

func (p *Pager) load(id PageID, offset PageOffset) ([]byte, error) {
	if buf, ok := p.cache.Get(id, offset); ok {
		return buf, nil
	}
	buf, err := p.files.ReadPage(id, offset)
	if err != nil {
		return nil, err
	}
	p.cache.Put(id, offset, buf)
	return buf, nil
}

func (p *Pager) persist(id PageID, offset PageOffset, buf []byte) error {
	if err := p.files.WritePage(id, offset, buf); err != nil {
		return err
	}
	p.cache.Put(id, offset, buf)
	return nil
}

// GetPage acquires a reader guard on (id, offset) and returns its current
// bytes. The caller must call release exactly once.
func (p *Pager) GetPage(id PageID, offset PageOffset) (buf []byte, release func(), err error) {
	g := p.locks.Read(id, offset)
	buf, err = p.load(id, offset)
	if err != nil {
		g.Release()
		return nil, nil, err
	}
	return buf, g.Release, nil
}

// GetPageForUpdate acquires a writer guard on (id, offset) and returns its
// current bytes plus a commit function that persists a new version of the
// page. The caller must call commit (if it wrote anything) before release,
// and must call release exactly once.
func (p *Pager) GetPageForUpdate(id PageID, offset PageOffset) (buf []byte, commit func([]byte) error, release func(), err error) {
	g := p.locks.Write(id, offset)
	buf, err = p.load(id, offset)
	if err != nil {
		g.Release()
		return nil, nil, nil, err
	}
	commit = func(newBuf []byte) error {
		return p.persist(id, offset, newBuf)
	}
	return buf, commit, g.Release, nil
}

// AddPage reserves a fresh offset for id (via the file manager's
// scan-or-increment counter), writes buf there under a writer guard, and
// returns the offset.
func (p *Pager) AddPage(id PageID, buf []byte) (PageOffset, error) {
	return p.AddPageWith(id, func(PageOffset) ([]byte, error) { return buf, nil })
}

// HasAnyPage reports whether id's file family has ever had a page written
// to it. Callers use this to distinguish "brand new resource" from
// "existing resource whose distinguished first page happens to be zero".
func (p *Pager) HasAnyPage(id PageID) (bool, error) {
	return p.files.hasAnyPage(id)
}

// AddPageWith reserves a fresh offset for id, lets build construct the
// page's bytes now that it knows that offset (needed when the content
// embeds its own address, e.g. a row's self-pointing forwarding pointer
// on a fresh page), writes them under a writer guard, and returns the
// offset.
func (p *Pager) AddPageWith(id PageID, build func(offset PageOffset) ([]byte, error)) (PageOffset, error) {
	offset, err := p.files.NextOffset(id)
	if err != nil {
		return 0, fmt.Errorf("reserving next offset: %w", err)
	}
	g := p.locks.Write(id, offset)
	defer g.Release()
	buf, err := build(offset)
	if err != nil {
		return 0, err
	}
	if err := p.persist(id, offset, buf); err != nil {
		return 0, err
	}
	return offset, nil
}

// FreeSpaceManager returns a manager bound to this pager, for resource's
// free-space bitmap.
func (p *Pager) FreeSpaceManager() *FreeSpaceManager {
	return &FreeSpaceManager{pager: p}
}
