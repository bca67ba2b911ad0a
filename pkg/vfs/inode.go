package vfs

import (
	"github.com/pkg/errors"
)

// inodeBlock returns which block of the inode table holds inum, and its
// offset within that block.
func (fs *FileSystem) inodeBlock(inum uint32) (block uint32, offset uint32) {
	block = fs.sb.InodeStart + inum/InodesPerBlock
	offset = (inum % InodesPerBlock) * DinodeSize
	return
}

// readInode loads inum from the inode table. Callers hold fs.mu.
func (fs *FileSystem) readInode(inum uint32) (*Inode, error) {
	if inum >= fs.sb.NInodes {
		return nil, ErrRange
	}
	block, offset := fs.inodeBlock(inum)
	var buf [BlockSize]byte
	if err := fs.cache.ReadBlock(block, buf[:]); err != nil {
		return nil, errors.Wrapf(err, "vfs: read inode block for inum %d", inum)
	}
	d := UnmarshalDinode(buf[offset : offset+DinodeSize])
	if d.IsFree() {
		return nil, ErrNotFound
	}
	return &Inode{Inum: inum, Dinode: *d}, nil
}

// writeInode persists ip to the inode table. Callers hold fs.mu.
func (fs *FileSystem) writeInode(ip *Inode) error {
	if ip.Inum >= fs.sb.NInodes {
		return ErrRange
	}
	block, offset := fs.inodeBlock(ip.Inum)
	var buf [BlockSize]byte
	if err := fs.cache.ReadBlock(block, buf[:]); err != nil {
		return errors.Wrapf(err, "vfs: read inode block for inum %d", ip.Inum)
	}
	copy(buf[offset:offset+DinodeSize], ip.Dinode.MarshalBinary())
	if err := fs.cache.WriteBlock(block, buf[:]); err != nil {
		return errors.Wrapf(err, "vfs: write inode block for inum %d", ip.Inum)
	}
	ip.dirty = false
	return nil
}

// allocInode finds a free inode slot, initializes it with the given type
// and owner, and writes it out.
func (fs *FileSystem) allocInode(typ InodeType, mode uint16, uid uint16) (*Inode, error) {
	inum, ok := fs.inodes.FindFree()
	if !ok {
		return nil, ErrNoSpace
	}
	if err := fs.inodes.Set(inum, true); err != nil {
		return nil, err
	}
	ip := &Inode{Inum: inum, Dinode: Dinode{Type: typ, Mode: mode, UID: uid, Nlink: 1}}
	if err := fs.writeInode(ip); err != nil {
		fs.inodes.Set(inum, false)
		return nil, err
	}
	return ip, nil
}

// freeBlock zeroes b's content and marks it free, matching the reference
// free_block's zero-on-free behavior. Blocks below DataStart are system
// blocks (superblock, bitmaps, inode table, log) and are never released,
// however they got passed in.
func (fs *FileSystem) freeBlock(b uint32) error {
	if b < fs.sb.DataStart {
		return nil
	}
	var zero [BlockSize]byte
	if err := fs.cache.WriteBlock(b, zero[:]); err != nil {
		return err
	}
	return fs.blocks.Set(b, false)
}

// freeBlocks releases every data block ip owns, direct and indirect, but
// leaves the inode slot itself untouched. Shared by freeInode (which goes
// on to erase the slot) and truncate (which keeps the inode alive).
func (fs *FileSystem) freeBlocks(ip *Inode) error {
	nblocks := divCeil(ip.Size, BlockSize)
	for i := uint32(0); i < nblocks; i++ {
		b, ok, err := fs.bmapLookup(ip, i)
		if err != nil {
			return err
		}
		if ok {
			if err := fs.freeBlock(b); err != nil {
				return err
			}
		}
	}
	if ip.Addrs[NDirect] != 0 {
		fs.freeIndirect(ip.Addrs[NDirect], 1)
	}
	if ip.Addrs[NDirect+1] != 0 {
		fs.freeIndirect(ip.Addrs[NDirect+1], 2)
	}
	return nil
}

// truncate frees every data block ip owns and resets it to an empty file,
// keeping the inode itself (and its type/mode/owner) in place. The
// overwrite, insert and delete commands are all built on this: rewrite a
// file's contents by truncating then reappending via writei.
func (fs *FileSystem) truncate(ip *Inode) error {
	if err := fs.freeBlocks(ip); err != nil {
		return err
	}
	for i := range ip.Addrs {
		ip.Addrs[i] = 0
	}
	ip.Size = 0
	ip.Blocks = 0
	ip.dirty = true
	return fs.writeInode(ip)
}

// freeInode releases every data block the inode owns via bmap's indirect
// structures, then clears the inode bitmap bit and zeroes the slot.
func (fs *FileSystem) freeInode(ip *Inode) error {
	if err := fs.freeBlocks(ip); err != nil {
		return err
	}

	zero := &Dinode{}
	block, offset := fs.inodeBlock(ip.Inum)
	var buf [BlockSize]byte
	if err := fs.cache.ReadBlock(block, buf[:]); err != nil {
		return errors.Wrapf(err, "vfs: read inode block for inum %d", ip.Inum)
	}
	copy(buf[offset:offset+DinodeSize], zero.MarshalBinary())
	if err := fs.cache.WriteBlock(block, buf[:]); err != nil {
		return errors.Wrapf(err, "vfs: zero inode block for inum %d", ip.Inum)
	}
	fs.inodes.Set(ip.Inum, false)
	return nil
}

// freeIndirect releases every block addr reachable through an indirect
// block of the given depth (1 = single, 2 = double), then the indirect
// block itself.
func (fs *FileSystem) freeIndirect(addr uint32, depth int) {
	var buf [BlockSize]byte
	if err := fs.cache.ReadBlock(addr, buf[:]); err != nil {
		fs.log.WithError(err).Warnf("vfs: read indirect block %d during free", addr)
		return
	}
	for i := 0; i < AddrsPerBlock; i++ {
		child := readAddr(buf[:], i)
		if child == 0 {
			continue
		}
		if depth == 1 {
			if err := fs.freeBlock(child); err != nil {
				fs.log.WithError(err).Warnf("vfs: free block %d during free", child)
			}
		} else {
			fs.freeIndirect(child, depth-1)
		}
	}
	if err := fs.freeBlock(addr); err != nil {
		fs.log.WithError(err).Warnf("vfs: free indirect block %d", addr)
	}
}
