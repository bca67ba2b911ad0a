package vfs

import "github.com/pkg/errors"

// initDir writes the initial "." and ".." entries of a freshly allocated
// directory inode: "." points at ip itself and ".." at parent. Format passes
// the root as its own parent.
func (fs *FileSystem) initDir(ip *Inode, parent uint32) error {
	dot := &Entry{Inum: ip.Inum, Type: TypeDir}
	dot.SetName(".")
	dotdot := &Entry{Inum: parent, Type: TypeDir}
	dotdot.SetName("..")

	buf := make([]byte, 0, EntrySize*2)
	buf = append(buf, dot.MarshalBinary()...)
	buf = append(buf, dotdot.MarshalBinary()...)
	if _, err := fs.writei(ip, buf, 0); err != nil {
		return err
	}
	return nil
}

// dirLookup scans dp (a directory inode) for name, returning the matching
// entry and its byte offset within the directory's data, or ErrNotFound.
func (fs *FileSystem) dirLookup(dp *Inode, name string) (*Entry, uint32, error) {
	if dp.Type != TypeDir {
		return nil, 0, ErrWrongType
	}
	var buf [EntrySize]byte
	for off := uint32(0); off < dp.Size; off += EntrySize {
		n, err := fs.readi(dp, buf[:], off)
		if err != nil {
			return nil, 0, err
		}
		if n < EntrySize {
			break
		}
		e := UnmarshalEntry(buf[:])
		if e.IsFree() {
			continue
		}
		if e.NameString() == name {
			return e, off, nil
		}
	}
	return nil, 0, ErrNotFound
}

// dirList returns every live entry in dp, in on-disk order.
func (fs *FileSystem) dirList(dp *Inode) ([]*Entry, error) {
	if dp.Type != TypeDir {
		return nil, ErrWrongType
	}
	var entries []*Entry
	var buf [EntrySize]byte
	for off := uint32(0); off < dp.Size; off += EntrySize {
		n, err := fs.readi(dp, buf[:], off)
		if err != nil {
			return nil, err
		}
		if n < EntrySize {
			break
		}
		e := UnmarshalEntry(buf[:])
		if !e.IsFree() {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

// dirAdd appends a new entry to dp, reusing the first free slot if one
// exists (left behind by a previous dirRemove) before growing the
// directory.
func (fs *FileSystem) dirAdd(dp *Inode, name string, inum uint32, typ InodeType, mode uint16, uid uint16) error {
	if len(name) == 0 || len(name) >= MaxName {
		return ErrInvalidName
	}
	if _, _, err := fs.dirLookup(dp, name); err == nil {
		return ErrExists
	} else if err != ErrNotFound {
		return err
	}

	e := &Entry{Inum: inum, Type: typ, Mode: mode, UID: uid}
	e.SetName(name)
	payload := e.MarshalBinary()

	var buf [EntrySize]byte
	for off := uint32(0); off < dp.Size; off += EntrySize {
		n, err := fs.readi(dp, buf[:], off)
		if err != nil {
			return err
		}
		if n < EntrySize {
			break
		}
		if UnmarshalEntry(buf[:]).IsFree() {
			_, err := fs.writei(dp, payload, off)
			return err
		}
	}
	_, err := fs.writei(dp, payload, dp.Size)
	return err
}

// dirRemove clears the entry at off by zeroing its slot in place rather than
// compacting the directory; a subsequent dirAdd will reclaim the slot.
func (fs *FileSystem) dirRemove(dp *Inode, off uint32) error {
	var zero [EntrySize]byte
	_, err := fs.writei(dp, zero[:], off)
	return errors.Wrap(err, "vfs: remove directory entry")
}

// dirIsEmpty reports whether dp holds only "." and "..".
func (fs *FileSystem) dirIsEmpty(dp *Inode) (bool, error) {
	entries, err := fs.dirList(dp)
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		name := e.NameString()
		if name != "." && name != ".." {
			return false, nil
		}
	}
	return true, nil
}
