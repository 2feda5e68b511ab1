package pager

// bitsPerPage is the number of data-page slots one FreeSpaceMap page
// tracks: PageSize bytes, one bit per page (§3).
const bitsPerPage = PageSize * 8

// FreeSpaceManager answers "give me a data offset with room" and "mark
// this offset full/free" over a bitmap of FreeSpaceMap pages (C5). A
// missing FreeSpaceMap page is treated as all-free, matching the original
// source's gap-handling (free_space_manager.rs): the manager never fails
// just because the bitmap hasn't been extended yet.
type FreeSpaceManager struct {
	pager *Pager
}

// GetNextFreePage scans resource's FreeSpaceMap pages in offset order and
// returns the data-page offset of the first free bit found.
func (fsm *FreeSpaceManager) GetNextFreePage(resource ResourceKey) (PageOffset, error) {
	id := PageID{Resource: resource, Kind: KindFreeSpaceMap}
	for fsOffset := PageOffset(0); ; fsOffset++ {
		buf, release, err := fsm.pager.GetPage(id, fsOffset)
		if err != nil {
			return 0, err
		}
		bit, found := firstFreeBit(buf)
		release()
		if found {
			return PageOffset(uint64(fsOffset)*bitsPerPage + uint64(bit)), nil
		}
	}
}

// MarkPage flips the bit for resource's dataOffset to full (if full is
// true) or free.
func (fsm *FreeSpaceManager) MarkPage(resource ResourceKey, dataOffset PageOffset, full bool) error {
	id := PageID{Resource: resource, Kind: KindFreeSpaceMap}
	fsOffset := PageOffset(uint64(dataOffset) / bitsPerPage)
	bit := uint64(dataOffset) % bitsPerPage

	buf, commit, release, err := fsm.pager.GetPageForUpdate(id, fsOffset)
	if err != nil {
		return err
	}
	defer release()

	byteIdx, bitOff := bit/8, bit%8
	if full {
		buf[byteIdx] |= 1 << bitOff
	} else {
		buf[byteIdx] &^= 1 << bitOff
	}
	return commit(buf)
}

// firstFreeBit scans buf byte-by-byte, skipping fully-occupied (0xFF)
// bytes, for the first zero (free) bit. This mirrors the original source's
// free_space_manager.rs skip optimization.
func firstFreeBit(buf []byte) (int, bool) {
	for byteIdx, b := range buf {
		if b == 0xFF {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			if b&(1<<uint(bit)) == 0 {
				return byteIdx*8 + bit, true
			}
		}
	}
	return 0, false
}
