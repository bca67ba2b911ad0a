// Package diskimage implements the simulated cylinder/sector block device
// that backs the disk server: a plain file on the host filesystem addressed
// by (cylinder, sector), with an artificial seek delay proportional to how
// far the simulated head has to travel between accesses.
package diskimage

import (
	"os"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// SectorSize is the fixed sector size in bytes (one filesystem block).
const SectorSize = 512

// Image is a simulated disk: NCyl cylinders of NSec sectors each, backed by
// a single file of NCyl*NSec*SectorSize bytes.
type Image struct {
	mu  sync.Mutex
	f   *os.File
	ncyl, nsec int
	ttd time.Duration // simulated per-cylinder seek delay
	curCyl int
}

// Open opens (creating if necessary) path as a disk image of ncyl
// cylinders by nsec sectors, growing or truncating it to the exact
// required size.
func Open(path string, ncyl, nsec int, ttd time.Duration) (*Image, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "diskimage: open %s", path)
	}
	size := int64(ncyl) * int64(nsec) * SectorSize
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, errors.Wrapf(err, "diskimage: resize %s to %d bytes", path, size)
	}
	return &Image{f: f, ncyl: ncyl, nsec: nsec, ttd: ttd}, nil
}

// Info returns the device geometry.
func (img *Image) Info() (ncyl, nsec int) {
	return img.ncyl, img.nsec
}

func (img *Image) inRange(cyl, sec int) bool {
	return cyl >= 0 && cyl < img.ncyl && sec >= 0 && sec < img.nsec
}

func (img *Image) seekDelay(cyl int) time.Duration {
	dist := cyl - img.curCyl
	if dist < 0 {
		dist = -dist
	}
	return time.Duration(dist) * img.ttd
}

// ReadSector reads one sector into buf, which must be at least SectorSize
// bytes. An out-of-range request is a hard error; the disk server logs it
// and replies "No" to its client.
func (img *Image) ReadSector(cyl, sec int, buf []byte) error {
	img.mu.Lock()
	defer img.mu.Unlock()

	if !img.inRange(cyl, sec) {
		return errors.Errorf("diskimage: cylinder/sector (%d,%d) out of range", cyl, sec)
	}
	delay := img.seekDelay(cyl)
	img.curCyl = cyl
	img.mu.Unlock()
	time.Sleep(delay)
	img.mu.Lock()

	offset := (int64(cyl)*int64(img.nsec) + int64(sec)) * SectorSize
	if _, err := img.f.ReadAt(buf[:SectorSize], offset); err != nil {
		return errors.Wrapf(err, "diskimage: read sector (%d,%d)", cyl, sec)
	}
	return nil
}

// WriteSector writes data (at most SectorSize bytes, zero-padded) to the
// sector at (cyl, sec).
func (img *Image) WriteSector(cyl, sec int, data []byte) error {
	img.mu.Lock()
	defer img.mu.Unlock()

	if !img.inRange(cyl, sec) {
		return errors.Errorf("diskimage: cylinder/sector (%d,%d) out of range", cyl, sec)
	}
	if len(data) > SectorSize {
		return errors.Errorf("diskimage: write of %d bytes exceeds sector size", len(data))
	}
	delay := img.seekDelay(cyl)
	img.curCyl = cyl
	img.mu.Unlock()
	time.Sleep(delay)
	img.mu.Lock()

	var block [SectorSize]byte
	copy(block[:], data)

	offset := (int64(cyl)*int64(img.nsec) + int64(sec)) * SectorSize
	if _, err := img.f.WriteAt(block[:], offset); err != nil {
		return errors.Wrapf(err, "diskimage: write sector (%d,%d)", cyl, sec)
	}
	return nil
}

// Close flushes and closes the backing file.
func (img *Image) Close() error {
	img.mu.Lock()
	defer img.mu.Unlock()
	if err := img.f.Sync(); err != nil {
		return errors.Wrap(err, "diskimage: sync")
	}
	return errors.Wrap(img.f.Close(), "diskimage: close")
}
