package vfs

import "encoding/binary"

func readAddr(buf []byte, i int) uint32 {
	return binary.LittleEndian.Uint32(buf[i*4:])
}

func writeAddr(buf []byte, i int, v uint32) {
	binary.LittleEndian.PutUint32(buf[i*4:], v)
}

// bmapLookup returns the data block backing logical block n of ip, without
// allocating. ok is false if that block has never been written.
func (fs *FileSystem) bmapLookup(ip *Inode, n uint32) (addr uint32, ok bool, err error) {
	if n < NDirect {
		a := ip.Addrs[n]
		return a, a != 0, nil
	}
	n -= NDirect

	if n < AddrsPerBlock {
		return fs.indirectLookup(ip.Addrs[NDirect], n)
	}
	n -= AddrsPerBlock

	if n < AddrsPerBlock*AddrsPerBlock {
		outer := ip.Addrs[NDirect+1]
		if outer == 0 {
			return 0, false, nil
		}
		var buf [BlockSize]byte
		if err := fs.cache.ReadBlock(outer, buf[:]); err != nil {
			return 0, false, err
		}
		inner := readAddr(buf[:], int(n/AddrsPerBlock))
		return fs.indirectLookup(inner, n%AddrsPerBlock)
	}
	return 0, false, ErrRange
}

func (fs *FileSystem) indirectLookup(indirect uint32, n uint32) (uint32, bool, error) {
	if indirect == 0 {
		return 0, false, nil
	}
	var buf [BlockSize]byte
	if err := fs.cache.ReadBlock(indirect, buf[:]); err != nil {
		return 0, false, err
	}
	a := readAddr(buf[:], int(n))
	return a, a != 0, nil
}

// allocBlock finds a free block via fs.blocks, marks it used and zeroes its
// content before handing it back, matching the reference allocate_block's
// zero-on-alloc behavior.
func (fs *FileSystem) allocBlock() (uint32, error) {
	b, ok := fs.blocks.FindFree()
	if !ok {
		return 0, ErrNoSpace
	}
	if err := fs.blocks.Set(b, true); err != nil {
		return 0, err
	}
	var zero [BlockSize]byte
	if err := fs.cache.WriteBlock(b, zero[:]); err != nil {
		return 0, err
	}
	return b, nil
}

// bmapAlloc is like bmapLookup but allocates (and wires in) any block or
// indirect block along the path that does not yet exist, mutating ip's
// address array and writing through any indirect blocks it touches. Blocks
// bumps by one for every block allocated along the way, direct or indirect.
func (fs *FileSystem) bmapAlloc(ip *Inode, n uint32) (uint32, error) {
	if n >= MaxFileBlocks {
		return 0, ErrRange
	}

	if n < NDirect {
		if ip.Addrs[n] == 0 {
			b, err := fs.allocBlock()
			if err != nil {
				return 0, err
			}
			ip.Addrs[n] = b
			ip.Blocks++
			ip.dirty = true
		}
		return ip.Addrs[n], nil
	}
	n -= NDirect

	if n < AddrsPerBlock {
		return fs.indirectAlloc(ip, &ip.Addrs[NDirect], n)
	}
	n -= AddrsPerBlock

	if ip.Addrs[NDirect+1] == 0 {
		b, err := fs.allocBlock()
		if err != nil {
			return 0, err
		}
		ip.Addrs[NDirect+1] = b
		ip.Blocks++
		ip.dirty = true
	}

	var buf [BlockSize]byte
	if err := fs.cache.ReadBlock(ip.Addrs[NDirect+1], buf[:]); err != nil {
		return 0, err
	}
	idx := n / AddrsPerBlock
	inner := readAddr(buf[:], int(idx))
	addr, err := fs.indirectAlloc(ip, &inner, n%AddrsPerBlock)
	if err != nil {
		return 0, err
	}
	if readAddr(buf[:], int(idx)) != inner {
		writeAddr(buf[:], int(idx), inner)
		if err := fs.cache.WriteBlock(ip.Addrs[NDirect+1], buf[:]); err != nil {
			return 0, err
		}
	}
	return addr, nil
}

// indirectAlloc allocates the indirect block itself on first use, then the
// leaf block at position n within it, writing the updated slot back. ip is
// only used to keep its Blocks count in sync with every block this
// allocates.
func (fs *FileSystem) indirectAlloc(ip *Inode, indirect *uint32, n uint32) (uint32, error) {
	if *indirect == 0 {
		b, err := fs.allocBlock()
		if err != nil {
			return 0, err
		}
		*indirect = b
		ip.Blocks++
		ip.dirty = true
	}
	var buf [BlockSize]byte
	if err := fs.cache.ReadBlock(*indirect, buf[:]); err != nil {
		return 0, err
	}
	addr := readAddr(buf[:], int(n))
	if addr == 0 {
		b, err := fs.allocBlock()
		if err != nil {
			return 0, err
		}
		addr = b
		ip.Blocks++
		ip.dirty = true
		writeAddr(buf[:], int(n), addr)
		if err := fs.cache.WriteBlock(*indirect, buf[:]); err != nil {
			return 0, err
		}
	}
	return addr, nil
}
