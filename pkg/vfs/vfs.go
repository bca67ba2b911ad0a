// Package vfs implements the UNIX-style filesystem that sits on top of the
// simulated block device: superblock and bitmaps, inodes with direct and
// multi-level indirect addressing, directories, path resolution, the
// public command surface, and the user/permission model.
package vfs

import "github.com/pkg/errors"

// Block and addressing constants.
const (
	BlockSize = 512

	NDirect         = 10
	AddrsPerBlock   = BlockSize / 4 // APB
	MaxFileBlocks   = NDirect + AddrsPerBlock + AddrsPerBlock*AddrsPerBlock
	MaxFileBytes    = MaxFileBlocks * BlockSize
	BitsPerBlock    = BlockSize * 8 // BPB
	DinodeSize      = 64
	InodesPerBlock  = BlockSize / DinodeSize
	EntrySize       = 32
	EntriesPerBlock = BlockSize / EntrySize
	MaxName         = 18

	LogBlocks = 20
	// InodeRate sizes the inode table as a fraction of total blocks.
	InodeRate = 50

	Magic = 0x12345678

	MaxUsers       = 256
	UserInfoInode  = 1
	AdminUID       = 0
	MaxConnections = 10
)

// InodeType enumerates the on-disk inode type tag.
type InodeType uint16

const (
	TypeUnused InodeType = 0
	TypeDir    InodeType = 1
	TypeFile   InodeType = 2
)

// Permission operation kinds for checkPerm.
type PermOp int

const (
	PermRead PermOp = iota
	PermWrite
)

// Sentinel errors returned by the command surface. The wire layer in
// pkg/fsserver collapses these (and any other error) to "No <reason>"; the
// taxonomy matches spec.md §7.
var (
	ErrNotFound          = errors.New("not found")
	ErrExists            = errors.New("already exists")
	ErrWrongType         = errors.New("wrong type")
	ErrPermissionDenied  = errors.New("permission denied")
	ErrRange             = errors.New("range or size violation")
	ErrNoSpace           = errors.New("allocation exhausted")
	ErrDirectoryNotEmpty = errors.New("directory not empty")
	ErrInvalidName       = errors.New("invalid name")
	ErrInvalidUser       = errors.New("invalid user")
	ErrNotFormatted      = errors.New("filesystem not formatted")
	ErrUnsupportedPath   = errors.New("unsupported path form")
)
