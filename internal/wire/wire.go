package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"time"
)

const (
	version byte = 1
	hdrLen       = 4 + 1 + 1 + 8 + 8 + 4
)

var (
	ErrCorrupt = errors.New("datacache: corrupt entry")
	magic4     = [...]byte{'D', 'C', 'E', 'N'}
)

// Entry is the framed form of a value held by a byte provider.
// A zero Deadline means no absolute deadline.
type Entry struct {
	Priority byte
	Deadline time.Time
	Sliding  time.Duration
	Payload  []byte
}

// Expired reports whether the entry's deadline is at or before now.
func (e Entry) Expired(now time.Time) bool {
	return !e.Deadline.IsZero() && !now.Before(e.Deadline)
}

func hasMagic(b []byte) bool {
	return len(b) >= 4 && bytes.Equal(b[:4], magic4[:])
}

// Encode: magic(4) | ver(1) | prio(1) | deadline(i64 be, unix nanos, 0=none) | sliding(i64 be) | vlen(u32 be) | payload(vlen)
func Encode(e Entry) []byte {
	var buf bytes.Buffer
	buf.Grow(hdrLen + len(e.Payload))

	buf.Write(magic4[:])
	buf.WriteByte(version)
	buf.WriteByte(e.Priority)

	var u8 [8]byte
	var u4 [4]byte

	var deadline int64
	if !e.Deadline.IsZero() {
		deadline = e.Deadline.UnixNano()
	}
	binary.BigEndian.PutUint64(u8[:], uint64(deadline))
	buf.Write(u8[:])

	binary.BigEndian.PutUint64(u8[:], uint64(e.Sliding))
	buf.Write(u8[:])

	binary.BigEndian.PutUint32(u4[:], uint32(len(e.Payload)))
	buf.Write(u4[:])

	buf.Write(e.Payload)
	return buf.Bytes()
}

// Decode parses a frame produced by Encode. The returned payload aliases b.
func Decode(b []byte) (Entry, error) {
	if len(b) < hdrLen || !hasMagic(b) || b[4] != version {
		return Entry{}, ErrCorrupt
	}

	e := Entry{Priority: b[5]}
	off := 6

	if d := int64(binary.BigEndian.Uint64(b[off : off+8])); d != 0 {
		e.Deadline = time.Unix(0, d)
	}
	off += 8

	sliding := int64(binary.BigEndian.Uint64(b[off : off+8]))
	if sliding < 0 {
		return Entry{}, ErrCorrupt
	}
	e.Sliding = time.Duration(sliding)
	off += 8

	vlen := int(binary.BigEndian.Uint32(b[off : off+4]))
	off += 4
	// exact length: trailing bytes mean a foreign or truncated write
	if vlen != len(b)-off {
		return Entry{}, ErrCorrupt
	}
	e.Payload = b[off : off+vlen]
	return e, nil
}
