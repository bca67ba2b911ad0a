package vfs

import "github.com/pkg/errors"

// readi reads len(dst) bytes from ip starting at off into dst, returning
// the number of bytes actually read (short if off+len(dst) exceeds the
// inode's current size).
func (fs *FileSystem) readi(ip *Inode, dst []byte, off uint32) (int, error) {
	if off > ip.Size {
		return 0, nil
	}
	n := uint32(len(dst))
	if off+n > ip.Size {
		n = ip.Size - off
	}
	var total uint32
	var buf [BlockSize]byte
	for total < n {
		blockNum := (off + total) / BlockSize
		blockOff := (off + total) % BlockSize
		chunk := BlockSize - blockOff
		if chunk > n-total {
			chunk = n - total
		}
		addr, ok, err := fs.bmapLookup(ip, blockNum)
		if err != nil {
			return int(total), err
		}
		if ok {
			if err := fs.cache.ReadBlock(addr, buf[:]); err != nil {
				return int(total), err
			}
			copy(dst[total:total+chunk], buf[blockOff:blockOff+chunk])
		} else {
			for i := uint32(0); i < chunk; i++ {
				dst[total+i] = 0
			}
		}
		total += chunk
	}
	return int(total), nil
}

// writei writes src to ip at off, allocating blocks and growing ip.Size as
// needed, up to MaxFileBytes.
func (fs *FileSystem) writei(ip *Inode, src []byte, off uint32) (int, error) {
	if off > MaxFileBytes {
		return 0, ErrRange
	}
	n := uint32(len(src))
	if off+n > MaxFileBytes {
		n = MaxFileBytes - off
	}
	if n == 0 && len(src) > 0 {
		return 0, ErrRange
	}

	var total uint32
	var buf [BlockSize]byte
	for total < n {
		blockNum := (off + total) / BlockSize
		blockOff := (off + total) % BlockSize
		chunk := BlockSize - blockOff
		if chunk > n-total {
			chunk = n - total
		}
		addr, err := fs.bmapAlloc(ip, blockNum)
		if err != nil {
			return int(total), errors.Wrap(err, "vfs: writei: allocate block")
		}
		if blockOff != 0 || chunk != BlockSize {
			if err := fs.cache.ReadBlock(addr, buf[:]); err != nil {
				return int(total), err
			}
		}
		copy(buf[blockOff:blockOff+chunk], src[total:total+chunk])
		if err := fs.cache.WriteBlock(addr, buf[:]); err != nil {
			return int(total), err
		}
		total += chunk
	}

	if off+total > ip.Size {
		ip.Size = off + total
		ip.dirty = true
	}
	if ip.dirty {
		if err := fs.writeInode(ip); err != nil {
			return int(total), err
		}
	}
	return int(total), nil
}
