package blockcache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memTransport struct {
	blocks  map[uint32][BlockSize]byte
	reads   int
	writes  int
	failErr error
}

func newMemTransport() *memTransport {
	return &memTransport{blocks: make(map[uint32][BlockSize]byte)}
}

func (m *memTransport) ReadBlock(b uint32, buf []byte) error {
	m.reads++
	if m.failErr != nil {
		return m.failErr
	}
	data := m.blocks[b]
	copy(buf, data[:])
	return nil
}

func (m *memTransport) WriteBlock(b uint32, buf []byte) error {
	m.writes++
	var data [BlockSize]byte
	copy(data[:], buf)
	m.blocks[b] = data
	return nil
}

func TestReadWriteRoundTrip(t *testing.T) {
	tr := newMemTransport()
	c := New(tr, nil)

	payload := make([]byte, BlockSize)
	copy(payload, "hello block cache")
	require.NoError(t, c.WriteBlock(5, payload))

	var out [BlockSize]byte
	require.NoError(t, c.ReadBlock(5, out[:]))
	assert.Equal(t, payload, out[:])

	// The write should not have hit the transport until Flush.
	assert.Equal(t, 0, tr.writes)
}

func TestWriteBackOnEviction(t *testing.T) {
	tr := newMemTransport()
	c := New(tr, nil)

	var buf [BlockSize]byte
	for i := uint32(0); i < NumSlots; i++ {
		buf[0] = byte(i)
		require.NoError(t, c.WriteBlock(i, buf[:]))
	}
	assert.Equal(t, 0, tr.writes, "no eviction should have happened yet")

	// One more distinct block forces a round-robin eviction of slot 0.
	buf[0] = 0xFF
	require.NoError(t, c.WriteBlock(NumSlots, buf[:]))
	assert.Equal(t, 1, tr.writes, "the evicted dirty slot should have been written back")

	stored := tr.blocks[0]
	assert.Equal(t, byte(0), stored[0])
}

func TestFlushClearsDirtyState(t *testing.T) {
	tr := newMemTransport()
	c := New(tr, nil)

	var buf [BlockSize]byte
	buf[0] = 7
	require.NoError(t, c.WriteBlock(3, buf[:]))
	require.NoError(t, c.Flush())
	assert.Equal(t, 1, tr.writes)

	require.NoError(t, c.Flush())
	assert.Equal(t, 1, tr.writes, "flushing twice should not write back a clean slot again")
}

func TestReadMissFallsThroughToTransport(t *testing.T) {
	tr := newMemTransport()
	var seeded [BlockSize]byte
	seeded[0] = 42
	tr.blocks[9] = seeded

	c := New(tr, nil)
	var out [BlockSize]byte
	require.NoError(t, c.ReadBlock(9, out[:]))
	assert.Equal(t, byte(42), out[0])
	assert.Equal(t, 1, tr.reads)

	// Second read should be served from the cache, not the transport.
	require.NoError(t, c.ReadBlock(9, out[:]))
	assert.Equal(t, 1, tr.reads)
}
