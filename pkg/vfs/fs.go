package vfs

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/hugo0713/netfs/pkg/bitmap"
	"github.com/hugo0713/netfs/pkg/blockcache"
)

// FileSystem owns the on-disk layout and the in-memory structures built on
// top of it: the block cache, the two bitmap allocators, and the user
// table. All command-surface operations (Read, Write, Mkdir, ...) serialize
// on mu, mirroring the reference implementation's single-threaded design
// made explicit rather than left to chance.
type FileSystem struct {
	mu sync.Mutex

	cache *blockcache.Cache
	log   logrus.FieldLogger

	sb *Superblock

	blocks *bitmap.Bitmap
	inodes *bitmap.Bitmap

	users *userTable
}

// cacheStore adapts *blockcache.Cache to the bitmap.Store interface.
type cacheStore struct {
	c *blockcache.Cache
}

func (s cacheStore) ReadBlock(b uint32, buf []byte) error  { return s.c.ReadBlock(b, buf) }
func (s cacheStore) WriteBlock(b uint32, buf []byte) error { return s.c.WriteBlock(b, buf) }

// Mount reads the superblock from the device behind cache and builds a
// FileSystem view of it. It fails if the superblock's magic does not match,
// which the command surface reports as ErrNotFormatted.
func Mount(cache *blockcache.Cache, log logrus.FieldLogger) (*FileSystem, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	var buf [BlockSize]byte
	if err := cache.ReadBlock(0, buf[:]); err != nil {
		return nil, errors.Wrap(err, "vfs: read superblock")
	}
	sb := UnmarshalSuperblock(buf[:])
	if sb.Magic != Magic {
		return nil, ErrNotFormatted
	}
	fs := &FileSystem{cache: cache, log: log, sb: sb}
	store := cacheStore{cache}
	// The data bitmap tracks every block number in [0, sb.Size), not just
	// the data region: allocation returns absolute block numbers directly,
	// and the blocks below DataStart are pre-marked used at format time so
	// the allocator can never hand out the superblock, bitmaps, inode
	// table or log area.
	fs.blocks = bitmap.New(store, sb.BmapStart, sb.BmapBlocks, sb.Size)
	fs.inodes = bitmap.New(store, sb.InodeBmapStart, sb.InodeBmapBlocks, sb.NInodes)
	fs.users = newUserTable(fs)
	return fs, nil
}

// Format lays out a brand-new filesystem of size blocks: superblock,
// bitmaps, inode table, log area and data region, then creates the root
// directory (inode 0) and the reserved user-table inode (inode 1), seeded
// with a single active admin user.
func Format(cache *blockcache.Cache, size uint32, log logrus.FieldLogger) (*FileSystem, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	sb := newSuperblock(size)

	var zero [BlockSize]byte
	for b := uint32(0); b < size; b++ {
		if err := cache.WriteBlock(b, zero[:]); err != nil {
			return nil, errors.Wrapf(err, "vfs: zero block %d", b)
		}
	}
	if err := cache.WriteBlock(0, sb.MarshalBinary()); err != nil {
		return nil, errors.Wrap(err, "vfs: write superblock")
	}

	fs := &FileSystem{cache: cache, log: log, sb: sb}
	store := cacheStore{cache}
	fs.blocks = bitmap.New(store, sb.BmapStart, sb.BmapBlocks, sb.Size)
	fs.inodes = bitmap.New(store, sb.InodeBmapStart, sb.InodeBmapBlocks, sb.NInodes)
	if err := fs.blocks.ClearAll(); err != nil {
		return nil, err
	}
	if err := fs.inodes.ClearAll(); err != nil {
		return nil, err
	}
	// Mark the superblock, both bitmaps, the inode table and the log area
	// used up front, matching the reference's bitmap_set_system_blocks_used:
	// otherwise FindFree would happily hand out block 0 as the first "free"
	// data block and the allocator would overwrite the filesystem's own
	// metadata.
	if err := fs.blocks.SetRange(0, sb.DataStart, true); err != nil {
		return nil, err
	}

	rootInum, ok := fs.inodes.FindFree()
	if !ok {
		return nil, ErrNoSpace
	}
	if err := fs.inodes.Set(rootInum, true); err != nil {
		return nil, err
	}
	root := &Inode{Inum: rootInum, Dinode: Dinode{Type: TypeDir, Mode: 0755, UID: AdminUID, Nlink: 1}}
	if err := fs.initDir(root, rootInum); err != nil {
		return nil, err
	}
	if err := fs.writeInode(root); err != nil {
		return nil, err
	}

	userInum, ok := fs.inodes.FindFree()
	if !ok || userInum != UserInfoInode {
		return nil, errors.New("vfs: reserved user-table inode unavailable during format")
	}
	if err := fs.inodes.Set(userInum, true); err != nil {
		return nil, err
	}
	userInode := &Inode{Inum: userInum, Dinode: Dinode{Type: TypeFile, Mode: 0600, UID: AdminUID, Nlink: 1}}
	if err := fs.writeInode(userInode); err != nil {
		return nil, err
	}

	fs.users = newUserTable(fs)
	if err := fs.users.seedAdmin(); err != nil {
		return nil, err
	}

	log.Infof("formatted filesystem: %d blocks, %d inodes", sb.Size, sb.NInodes)
	return fs, nil
}

// Sync flushes the write-back cache to the transport.
func (fs *FileSystem) Sync() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.cache.Flush()
}

// RootInum is the inode number of the filesystem root directory.
const RootInum = 0
