package vfs

import "encoding/binary"

// Entry is one 32-byte directory entry: 16 of these pack into a block.
type Entry struct {
	Inum uint32
	Size uint32
	Type InodeType
	Mode uint16
	UID  uint16
	Name [MaxName]byte
}

const (
	entryOffInum = 0
	entryOffSize = 4
	entryOffType = 8
	entryOffMode = 10
	entryOffUID  = 12
	entryOffName = 14
)

// MarshalBinary encodes the entry into an EntrySize buffer.
func (e *Entry) MarshalBinary() []byte {
	buf := make([]byte, EntrySize)
	binary.LittleEndian.PutUint32(buf[entryOffInum:], e.Inum)
	binary.LittleEndian.PutUint32(buf[entryOffSize:], e.Size)
	binary.LittleEndian.PutUint16(buf[entryOffType:], uint16(e.Type))
	binary.LittleEndian.PutUint16(buf[entryOffMode:], e.Mode)
	binary.LittleEndian.PutUint16(buf[entryOffUID:], e.UID)
	copy(buf[entryOffName:], e.Name[:])
	return buf
}

// UnmarshalEntry decodes an entry from an EntrySize buffer.
func UnmarshalEntry(buf []byte) *Entry {
	e := &Entry{
		Inum: binary.LittleEndian.Uint32(buf[entryOffInum:]),
		Size: binary.LittleEndian.Uint32(buf[entryOffSize:]),
		Type: InodeType(binary.LittleEndian.Uint16(buf[entryOffType:])),
		Mode: binary.LittleEndian.Uint16(buf[entryOffMode:]),
		UID:  binary.LittleEndian.Uint16(buf[entryOffUID:]),
	}
	copy(e.Name[:], buf[entryOffName:entryOffName+MaxName])
	return e
}

// IsFree reports whether the slot holds no live directory entry, i.e. it is
// all zero as dirRemove leaves it. Inum alone cannot tell: the root is inode
// 0, so its "." and ".." (and ".." of its children) legitimately hold 0.
func (e *Entry) IsFree() bool {
	return e.Inum == 0 && e.Name[0] == 0
}

// NameString returns the entry name as a Go string, trimmed at the first
// NUL (names shorter than MaxName are zero-padded).
func (e *Entry) NameString() string {
	n := 0
	for n < MaxName && e.Name[n] != 0 {
		n++
	}
	return string(e.Name[:n])
}

// SetName copies name into the fixed-size Name field. The caller is
// responsible for checking name fits within MaxName-1 bytes (leaving room
// for the implicit NUL terminator) before calling this.
func (e *Entry) SetName(name string) {
	var buf [MaxName]byte
	copy(buf[:], name)
	e.Name = buf
}
