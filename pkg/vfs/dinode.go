package vfs

import "encoding/binary"

// NAddrs is the number of address slots in a dinode: NDirect direct blocks,
// one single-indirect slot, one double-indirect slot.
const NAddrs = NDirect + 2

// Dinode is the 64-byte on-disk inode. The reference C struct also carries
// a "dirty" flag; that is purely an in-memory cache concern here (see
// Inode) and is dropped from the wire format. The 4 bytes it would have
// shared with alignment padding are used instead for Blocks, the
// reference's allocated-block count (direct, single- and double-indirect
// index blocks included), so DinodeSize stays 64 and InodesPerBlock stays 8.
type Dinode struct {
	Type   InodeType
	Mode   uint16
	UID    uint16
	Nlink  uint16
	Size   uint32
	Blocks uint32
	Addrs  [NAddrs]uint32
}

// dinode field byte offsets within the 64-byte record.
const (
	offType   = 0
	offMode   = 2
	offUID    = 4
	offNlink  = 6
	offSize   = 8
	offBlocks = 12
	offAddrs  = 16
)

// MarshalBinary encodes the dinode into a DinodeSize buffer.
func (d *Dinode) MarshalBinary() []byte {
	buf := make([]byte, DinodeSize)
	binary.LittleEndian.PutUint16(buf[offType:], uint16(d.Type))
	binary.LittleEndian.PutUint16(buf[offMode:], d.Mode)
	binary.LittleEndian.PutUint16(buf[offUID:], d.UID)
	binary.LittleEndian.PutUint16(buf[offNlink:], d.Nlink)
	binary.LittleEndian.PutUint32(buf[offSize:], d.Size)
	binary.LittleEndian.PutUint32(buf[offBlocks:], d.Blocks)
	for i, a := range d.Addrs {
		binary.LittleEndian.PutUint32(buf[offAddrs+i*4:], a)
	}
	return buf
}

// UnmarshalDinode decodes a dinode from a DinodeSize buffer.
func UnmarshalDinode(buf []byte) *Dinode {
	d := &Dinode{
		Type:   InodeType(binary.LittleEndian.Uint16(buf[offType:])),
		Mode:   binary.LittleEndian.Uint16(buf[offMode:]),
		UID:    binary.LittleEndian.Uint16(buf[offUID:]),
		Nlink:  binary.LittleEndian.Uint16(buf[offNlink:]),
		Size:   binary.LittleEndian.Uint32(buf[offSize:]),
		Blocks: binary.LittleEndian.Uint32(buf[offBlocks:]),
	}
	for i := range d.Addrs {
		d.Addrs[i] = binary.LittleEndian.Uint32(buf[offAddrs+i*4:])
	}
	return d
}

// IsFree reports whether the dinode slot holds no live inode.
func (d *Dinode) IsFree() bool {
	return d.Type == TypeUnused
}

// Inode is the in-memory view of a dinode: the same fields plus the
// bookkeeping the cache needs that the disk format does not carry.
type Inode struct {
	Inum  uint32
	Dinode
	dirty bool
}
