package vfs

import "encoding/binary"

// Superblock is the on-disk layout descriptor stored in block 0.
type Superblock struct {
	Magic uint32
	Size  uint32 // total blocks

	BmapStart  uint32
	BmapBlocks uint32

	InodeBmapStart  uint32
	InodeBmapBlocks uint32

	InodeStart uint32
	NInodes    uint32

	LogStart uint32
	NLog     uint32

	DataStart   uint32
	NDataBlocks uint32
}

// superblockFieldCount is how many uint32 fields make up the on-disk
// superblock, in declaration order.
const superblockFieldCount = 12

// MarshalBinary writes the superblock into a BlockSize buffer, zero-padded.
func (sb *Superblock) MarshalBinary() []byte {
	buf := make([]byte, BlockSize)
	fields := sb.fields()
	for i, v := range fields {
		binary.LittleEndian.PutUint32(buf[i*4:], v)
	}
	return buf
}

// UnmarshalSuperblock reads a superblock from a BlockSize buffer.
func UnmarshalSuperblock(buf []byte) *Superblock {
	sb := &Superblock{}
	v := make([]uint32, superblockFieldCount)
	for i := range v {
		v[i] = binary.LittleEndian.Uint32(buf[i*4:])
	}
	sb.Magic = v[0]
	sb.Size = v[1]
	sb.BmapStart = v[2]
	sb.BmapBlocks = v[3]
	sb.InodeBmapStart = v[4]
	sb.InodeBmapBlocks = v[5]
	sb.InodeStart = v[6]
	sb.NInodes = v[7]
	sb.LogStart = v[8]
	sb.NLog = v[9]
	sb.DataStart = v[10]
	sb.NDataBlocks = v[11]
	return sb
}

func (sb *Superblock) fields() []uint32 {
	return []uint32{
		sb.Magic, sb.Size,
		sb.BmapStart, sb.BmapBlocks,
		sb.InodeBmapStart, sb.InodeBmapBlocks,
		sb.InodeStart, sb.NInodes,
		sb.LogStart, sb.NLog,
		sb.DataStart, sb.NDataBlocks,
	}
}

// divCeil is the ⌈a/b⌉ helper used throughout the layout math.
func divCeil(a, b uint32) uint32 {
	return (a + b - 1) / b
}

// newSuperblock lays out a filesystem of size blocks the way the reference
// format routine does: bitmap, then inode bitmap, then inode table, then a
// fixed-size log area, then the data region filling the remainder.
func newSuperblock(size uint32) *Superblock {
	sb := &Superblock{Magic: Magic, Size: size}

	sb.BmapStart = 1
	sb.BmapBlocks = size/BitsPerBlock + 1
	sb.InodeBmapStart = sb.BmapStart + sb.BmapBlocks

	sb.NInodes = size / InodeRate
	sb.InodeBmapBlocks = sb.NInodes/BitsPerBlock + 1
	sb.InodeStart = sb.InodeBmapStart + sb.InodeBmapBlocks

	sb.LogStart = sb.InodeStart + divCeil(sb.NInodes, InodesPerBlock)
	sb.NLog = LogBlocks
	sb.DataStart = sb.LogStart + sb.NLog
	sb.NDataBlocks = size - sb.DataStart

	return sb
}
