package bitmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	blocks map[uint32][]byte
}

func newMemStore(numBlocks uint32) *memStore {
	s := &memStore{blocks: make(map[uint32][]byte)}
	for i := uint32(0); i < numBlocks; i++ {
		s.blocks[i] = make([]byte, BitsPerBlock/8)
	}
	return s
}

func (s *memStore) ReadBlock(b uint32, buf []byte) error {
	copy(buf, s.blocks[b])
	return nil
}

func (s *memStore) WriteBlock(b uint32, buf []byte) error {
	data := make([]byte, len(buf))
	copy(data, buf)
	s.blocks[b] = data
	return nil
}

func TestFindFreeReturnsLowestUnsetBit(t *testing.T) {
	store := newMemStore(2)
	bm := New(store, 0, 2, 20)

	item, ok := bm.FindFree()
	require.True(t, ok)
	assert.Equal(t, uint32(0), item)

	require.NoError(t, bm.Set(0, true))
	require.NoError(t, bm.Set(1, true))

	item, ok = bm.FindFree()
	require.True(t, ok)
	assert.Equal(t, uint32(2), item)
}

func TestFindFreeRespectsMaxItems(t *testing.T) {
	store := newMemStore(1)
	bm := New(store, 0, 1, 3)

	require.NoError(t, bm.Set(0, true))
	require.NoError(t, bm.Set(1, true))
	require.NoError(t, bm.Set(2, true))

	_, ok := bm.FindFree()
	assert.False(t, ok, "no free item should exist past maxItems")
}

func TestSetAndIsUsedRoundTrip(t *testing.T) {
	store := newMemStore(1)
	bm := New(store, 0, 1, 64)

	used, err := bm.IsUsed(17)
	require.NoError(t, err)
	assert.False(t, used)

	require.NoError(t, bm.Set(17, true))
	used, err = bm.IsUsed(17)
	require.NoError(t, err)
	assert.True(t, used)

	require.NoError(t, bm.Set(17, false))
	used, err = bm.IsUsed(17)
	require.NoError(t, err)
	assert.False(t, used)
}

func TestIsUsedOutOfRange(t *testing.T) {
	store := newMemStore(1)
	bm := New(store, 0, 1, 10)

	_, err := bm.IsUsed(10)
	assert.Error(t, err)
}

func TestClearAllZeroesEveryBlock(t *testing.T) {
	store := newMemStore(2)
	for i := range store.blocks[0] {
		store.blocks[0][i] = 0xFF
		store.blocks[1][i] = 0xFF
	}
	bm := New(store, 0, 2, 20)

	require.NoError(t, bm.ClearAll())
	item, ok := bm.FindFree()
	require.True(t, ok)
	assert.Equal(t, uint32(0), item)
}

func TestSetRangeMarksConsecutiveItems(t *testing.T) {
	store := newMemStore(1)
	bm := New(store, 0, 1, 32)

	require.NoError(t, bm.SetRange(4, 3, true))
	for i := uint32(4); i < 7; i++ {
		used, err := bm.IsUsed(i)
		require.NoError(t, err)
		assert.True(t, used, "item %d should be used", i)
	}
	used, err := bm.IsUsed(7)
	require.NoError(t, err)
	assert.False(t, used)
}
