// Package blockcache implements the write-back block cache that sits
// between the filesystem layer and the disk transport.
package blockcache

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// BlockSize is the fixed block size in bytes used across the filesystem.
const BlockSize = 512

// NumSlots is the fixed capacity of the cache (N_CACHE in the spec).
const NumSlots = 500

// Transport is the block-granular read/write contract the cache sits in
// front of. pkg/diskclient implements this against the remote disk server.
type Transport interface {
	ReadBlock(b uint32, buf []byte) error
	WriteBlock(b uint32, buf []byte) error
}

type slot struct {
	block uint32
	data  [BlockSize]byte
	valid bool
	dirty bool
}

// Cache is a fixed-capacity, set-free write-back cache of recently touched
// blocks. At most one slot is ever valid for a given block index; dirty
// implies valid; after Flush no slot is dirty.
type Cache struct {
	mu        sync.Mutex
	transport Transport
	slots     [NumSlots]slot
	nextEvict int
	log       logrus.FieldLogger
}

// New wraps transport with a cache of the fixed NumSlots capacity.
func New(transport Transport, log logrus.FieldLogger) *Cache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Cache{transport: transport, log: log}
}

func (c *Cache) find(b uint32) int {
	for i := range c.slots {
		if c.slots[i].valid && c.slots[i].block == b {
			return i
		}
	}
	return -1
}

// insert finds a home for block b, evicting (and flushing, if dirty) the
// round-robin slot when every slot is already valid. Returns the slot index.
func (c *Cache) insert(b uint32) int {
	for i := range c.slots {
		if !c.slots[i].valid {
			c.slots[i].block = b
			c.slots[i].valid = true
			c.slots[i].dirty = false
			return i
		}
	}

	i := c.nextEvict
	c.nextEvict = (c.nextEvict + 1) % NumSlots
	if c.slots[i].dirty {
		if err := c.transport.WriteBlock(c.slots[i].block, c.slots[i].data[:]); err != nil {
			c.log.WithError(err).Warnf("blockcache: evicting dirty slot for block %d: write-back failed", c.slots[i].block)
		}
	}
	c.slots[i] = slot{block: b, valid: true}
	return i
}

// ReadBlock copies the current contents of block b into buf, which must be
// at least BlockSize bytes. On a transport error the failure is logged, the
// buffer is zero-filled, the zeroed block stays cached, and the error is
// returned wrapped (the transport's error stays reachable through
// errors.As). The pkg/vfs callers return that error to their own caller.
func (c *Cache) ReadBlock(b uint32, buf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if i := c.find(b); i >= 0 {
		copy(buf, c.slots[i].data[:])
		return nil
	}

	var tmp [BlockSize]byte
	err := c.transport.ReadBlock(b, tmp[:])
	i := c.insert(b)
	c.slots[i].data = tmp
	if err != nil {
		c.log.WithError(err).Warnf("blockcache: read-through miss for block %d failed, returning zero block", b)
		for j := range c.slots[i].data {
			c.slots[i].data[j] = 0
		}
	}
	copy(buf, c.slots[i].data[:])
	if err != nil {
		return errors.Wrapf(err, "blockcache: read block %d", b)
	}
	return nil
}

// WriteBlock overwrites block b's contents with buf (which must be exactly
// BlockSize bytes; it is authoritative for the whole block, so a miss does
// not need to read the old contents through) and marks the slot dirty.
func (c *Cache) WriteBlock(b uint32, buf []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.find(b)
	if i < 0 {
		i = c.insert(b)
	}
	copy(c.slots[i].data[:], buf)
	c.slots[i].dirty = true
	return nil
}

// Flush writes back every valid dirty slot and clears its dirty flag.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	var firstErr error
	for i := range c.slots {
		if c.slots[i].valid && c.slots[i].dirty {
			if err := c.transport.WriteBlock(c.slots[i].block, c.slots[i].data[:]); err != nil {
				c.log.WithError(err).Errorf("blockcache: flush of block %d failed", c.slots[i].block)
				if firstErr == nil {
					firstErr = err
				}
				continue
			}
			c.slots[i].dirty = false
		}
	}
	if firstErr != nil {
		return errors.Wrap(firstErr, "blockcache: flush")
	}
	return nil
}
