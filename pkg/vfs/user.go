package vfs

import "encoding/binary"

// UserRecord is one slot of the reserved user table stored in the
// UserInfoInode. Slots are addressed by position, not by UID, so a UID can
// be reassigned to a fresh slot after its owner is deleted without
// disturbing neighbors.
type UserRecord struct {
	Active bool
	UID    uint16
	Name   [MaxName]byte
}

const userRecordSize = 1 + 2 + MaxName // 21 bytes, packed without alignment padding

func (u *UserRecord) marshal() []byte {
	buf := make([]byte, userRecordSize)
	if u.Active {
		buf[0] = 1
	}
	binary.LittleEndian.PutUint16(buf[1:], u.UID)
	copy(buf[3:], u.Name[:])
	return buf
}

func unmarshalUserRecord(buf []byte) *UserRecord {
	u := &UserRecord{
		Active: buf[0] != 0,
		UID:    binary.LittleEndian.Uint16(buf[1:]),
	}
	copy(u.Name[:], buf[3:3+MaxName])
	return u
}

// NameString returns the stored username, trimmed at the first NUL.
func (u *UserRecord) NameString() string {
	n := 0
	for n < MaxName && u.Name[n] != 0 {
		n++
	}
	return string(u.Name[:n])
}

// userTable manages the fixed MaxUsers-slot array backed by UserInfoInode.
type userTable struct {
	fs *FileSystem
}

func newUserTable(fs *FileSystem) *userTable {
	return &userTable{fs: fs}
}

func (t *userTable) slotOffset(slot int) uint32 {
	return uint32(slot * userRecordSize)
}

func (t *userTable) readSlot(ip *Inode, slot int) (*UserRecord, error) {
	buf := make([]byte, userRecordSize)
	n, err := t.fs.readi(ip, buf, t.slotOffset(slot))
	if err != nil {
		return nil, err
	}
	if n < userRecordSize {
		return &UserRecord{}, nil
	}
	return unmarshalUserRecord(buf), nil
}

func (t *userTable) writeSlot(ip *Inode, slot int, rec *UserRecord) error {
	_, err := t.fs.writei(ip, rec.marshal(), t.slotOffset(slot))
	return err
}

// seedAdmin is run once at format time: it installs uid 0 ("admin") in
// slot 0.
func (t *userTable) seedAdmin() error {
	ip, err := t.fs.readInode(UserInfoInode)
	if err != nil {
		return err
	}
	rec := &UserRecord{Active: true, UID: AdminUID}
	rec.Name = [MaxName]byte{}
	copy(rec.Name[:], "admin")
	return t.writeSlot(ip, 0, rec)
}

// lookup scans the table for an active record matching name, returning the
// found record or ErrInvalidUser.
func (t *userTable) lookup(name string) (*UserRecord, error) {
	ip, err := t.fs.readInode(UserInfoInode)
	if err != nil {
		return nil, err
	}
	for slot := 0; slot < MaxUsers; slot++ {
		rec, err := t.readSlot(ip, slot)
		if err != nil {
			return nil, err
		}
		if rec.Active && rec.NameString() == name {
			return rec, nil
		}
	}
	return nil, ErrInvalidUser
}

// byUID scans the table for an active record with the given UID.
func (t *userTable) byUID(uid uint16) (*UserRecord, error) {
	ip, err := t.fs.readInode(UserInfoInode)
	if err != nil {
		return nil, err
	}
	for slot := 0; slot < MaxUsers; slot++ {
		rec, err := t.readSlot(ip, slot)
		if err != nil {
			return nil, err
		}
		if rec.Active && rec.UID == uid {
			return rec, nil
		}
	}
	return nil, ErrInvalidUser
}

// create installs a new user with the next free UID in the first inactive
// slot found, per the reference allocation policy.
func (t *userTable) create(name string) (*UserRecord, error) {
	if len(name) == 0 || len(name) >= MaxName {
		return nil, ErrInvalidName
	}
	if _, err := t.lookup(name); err == nil {
		return nil, ErrExists
	}

	ip, err := t.fs.readInode(UserInfoInode)
	if err != nil {
		return nil, err
	}

	freeSlot := -1
	usedUIDs := make(map[uint16]bool, MaxUsers)
	for slot := 0; slot < MaxUsers; slot++ {
		rec, err := t.readSlot(ip, slot)
		if err != nil {
			return nil, err
		}
		if rec.Active {
			usedUIDs[rec.UID] = true
		} else if freeSlot == -1 {
			freeSlot = slot
		}
	}
	if freeSlot == -1 {
		return nil, ErrNoSpace
	}

	var uid uint16
	for uid = 1; usedUIDs[uid]; uid++ {
		if uid == MaxUsers-1 {
			return nil, ErrNoSpace
		}
	}

	rec := &UserRecord{Active: true, UID: uid}
	rec.SetName(name)
	if err := t.writeSlot(ip, freeSlot, rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// remove deactivates the slot holding uid, freeing both the slot and the
// UID for reuse.
func (t *userTable) remove(uid uint16) error {
	if uid == AdminUID {
		return ErrPermissionDenied
	}
	ip, err := t.fs.readInode(UserInfoInode)
	if err != nil {
		return err
	}
	for slot := 0; slot < MaxUsers; slot++ {
		rec, err := t.readSlot(ip, slot)
		if err != nil {
			return err
		}
		if rec.Active && rec.UID == uid {
			return t.writeSlot(ip, slot, &UserRecord{})
		}
	}
	return ErrInvalidUser
}

// SetName copies name into the fixed-size Name field of a UserRecord.
func (u *UserRecord) SetName(name string) {
	var buf [MaxName]byte
	copy(buf[:], name)
	u.Name = buf
}
