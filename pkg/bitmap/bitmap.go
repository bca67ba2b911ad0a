// Package bitmap implements the generic bit-set engine used over a fixed
// block range, shared by the data-block and inode allocation maps.
package bitmap

import (
	"github.com/pkg/errors"

	"github.com/hugo0713/netfs/pkg/blockcache"
)

// BitsPerBlock is BPB: the number of items one bitmap block can track.
const BitsPerBlock = blockcache.BlockSize * 8

// Store is the block-granular backing store a Bitmap reads and writes
// through; *blockcache.Cache satisfies it.
type Store interface {
	ReadBlock(b uint32, buf []byte) error
	WriteBlock(b uint32, buf []byte) error
}

// Bitmap tracks the used/free state of maxItems items, one bit each, in
// numBlocks blocks starting at startBlock.
type Bitmap struct {
	store      Store
	startBlock uint32
	numBlocks  uint32
	maxItems   uint32
}

// New returns a Bitmap over the given region of store.
func New(store Store, startBlock, numBlocks, maxItems uint32) *Bitmap {
	return &Bitmap{store: store, startBlock: startBlock, numBlocks: numBlocks, maxItems: maxItems}
}

func position(i uint32) (blockOffset uint32, byteIndex uint32, bitIndex uint32) {
	blockOffset = i / BitsPerBlock
	byteIndex = (i % BitsPerBlock) / 8
	bitIndex = i % 8
	return
}

// IsUsed reports whether item i is marked used.
func (bm *Bitmap) IsUsed(i uint32) (bool, error) {
	if i >= bm.maxItems {
		return false, errors.Errorf("bitmap: item %d out of range (max %d)", i, bm.maxItems)
	}
	blockOffset, byteIndex, bitIndex := position(i)

	var buf [blockcache.BlockSize]byte
	if err := bm.store.ReadBlock(bm.startBlock+blockOffset, buf[:]); err != nil {
		return false, errors.Wrapf(err, "bitmap: read block for item %d", i)
	}
	return buf[byteIndex]&(1<<bitIndex) != 0, nil
}

// Set marks item i used or free.
func (bm *Bitmap) Set(i uint32, used bool) error {
	if i >= bm.maxItems {
		return errors.Errorf("bitmap: item %d out of range (max %d)", i, bm.maxItems)
	}
	blockOffset, byteIndex, bitIndex := position(i)
	blockNo := bm.startBlock + blockOffset

	var buf [blockcache.BlockSize]byte
	if err := bm.store.ReadBlock(blockNo, buf[:]); err != nil {
		return errors.Wrapf(err, "bitmap: read block for item %d", i)
	}
	if used {
		buf[byteIndex] |= 1 << bitIndex
	} else {
		buf[byteIndex] &^= 1 << bitIndex
	}
	if err := bm.store.WriteBlock(blockNo, buf[:]); err != nil {
		return errors.Wrapf(err, "bitmap: write block for item %d", i)
	}
	return nil
}

// FindFree returns the lowest-numbered free item and true, or (0, false)
// when the map is exhausted. Item 0 is a legitimate hit here; callers that
// need to distinguish "item 0 is free" from "nothing is free" must use the
// boolean, not the numeric sentinel the on-disk format still reserves.
func (bm *Bitmap) FindFree() (uint32, bool) {
	for blk := uint32(0); blk < bm.numBlocks; blk++ {
		var buf [blockcache.BlockSize]byte
		if err := bm.store.ReadBlock(bm.startBlock+blk, buf[:]); err != nil {
			return 0, false
		}
		for byteIdx, b := range buf {
			if b == 0xFF {
				continue
			}
			for bit := 0; bit < 8; bit++ {
				if b&(1<<uint(bit)) == 0 {
					item := blk*BitsPerBlock + uint32(byteIdx)*8 + uint32(bit)
					if item >= bm.maxItems {
						return 0, false
					}
					return item, true
				}
			}
		}
	}
	return 0, false
}

// ClearAll zeroes every bitmap block in the region.
func (bm *Bitmap) ClearAll() error {
	var zero [blockcache.BlockSize]byte
	for blk := uint32(0); blk < bm.numBlocks; blk++ {
		if err := bm.store.WriteBlock(bm.startBlock+blk, zero[:]); err != nil {
			return errors.Wrapf(err, "bitmap: clear block %d", blk)
		}
	}
	return nil
}

// SetRange marks count consecutive items starting at start used or free.
func (bm *Bitmap) SetRange(start, count uint32, used bool) error {
	for i := start; i < start+count; i++ {
		if err := bm.Set(i, used); err != nil {
			return err
		}
	}
	return nil
}
