package msgpack

import (
	"encoding/binary"
	"io"
	"math"
)

// Buffer is a chunked, append-on-write byte store with a linear read
// cursor. Small writes below coalesceThreshold are merged into the
// last segment in place rather than allocating a new one; larger
// writes get their own segment. A Buffer can additionally pull from
// an attached io.Reader source when a read would otherwise block on
// insufficient data, which is how Decoder.FullDecode reads a whole
// message off a blocking stream instead of requiring Feed calls.
//
// Save and Restore snapshot and roll back the read cursor. They must
// not be interleaved with writes between the Save and the matching
// Restore: a write can reallocate or extend the segment list, and
// Restore only undoes cursor movement, not writes.
type Buffer struct {
	segs   [][]byte
	roff   int
	source io.Reader

	scratch [8]byte
}

// Mark is an opaque snapshot of a Buffer's read cursor, produced by
// Save and consumed by Restore.
type Mark struct {
	segs [][]byte
	roff int
}

// SetSource attaches a stream the buffer may pull from when a read
// needs more bytes than are currently buffered. A nil source (the
// default) makes the buffer purely push-based: reads past the end of
// fed data simply report "not enough data".
func (b *Buffer) SetSource(r io.Reader) { b.source = r }

// Feed appends data to the buffer, to be consumed by later reads.
func (b *Buffer) Feed(p []byte) { b.append(p) }

// Reset discards all buffered data and the read cursor, releasing the
// underlying storage.
func (b *Buffer) Reset() {
	b.segs = nil
	b.roff = 0
}

// Available returns the number of unread bytes currently buffered
// (not counting anything an attached source could still produce).
func (b *Buffer) Available() int { return b.available() }

func (b *Buffer) available() int {
	if len(b.segs) == 0 {
		return 0
	}
	n := len(b.segs[0]) - b.roff
	for _, seg := range b.segs[1:] {
		n += len(seg)
	}
	return n
}

// append writes p into the buffer, coalescing into the last segment
// when both it and p are small.
func (b *Buffer) append(p []byte) {
	if len(p) == 0 {
		return
	}
	if n := len(b.segs); n > 0 {
		last := b.segs[n-1]
		if len(last) < coalesceThreshold && len(p) < coalesceThreshold {
			b.segs[n-1] = append(last, p...)
			return
		}
	}
	cp := make([]byte, len(p))
	copy(cp, p)
	b.segs = append(b.segs, cp)
}

func (b *Buffer) trimEmpty() {
	for len(b.segs) > 0 && b.roff >= len(b.segs[0]) {
		b.segs = b.segs[1:]
		b.roff = 0
	}
}

// ensure tries to make at least n bytes available, pulling from the
// attached source (if any) as needed. It returns true once n bytes
// are available; false (with a nil error) means no source is attached
// and the currently-fed data is insufficient. A non-nil error is a
// genuine read failure (including io.EOF) from the source.
func (b *Buffer) ensure(n int) (bool, error) {
	for b.available() < n {
		if b.source == nil {
			return false, nil
		}
		chunk := make([]byte, 4096)
		m, err := b.source.Read(chunk)
		if m > 0 {
			b.append(chunk[:m])
		}
		if b.available() >= n {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		if m == 0 {
			return false, io.ErrNoProgress
		}
	}
	return true, nil
}

// PeekByte returns the next unread byte without consuming it.
func (b *Buffer) PeekByte() (byte, bool, error) {
	ok, err := b.ensure(1)
	if err != nil {
		return 0, false, err
	}
	if !ok {
		return 0, false, nil
	}
	b.trimEmpty()
	return b.segs[0][b.roff], true, nil
}

// ReadByte consumes and returns the next unread byte.
func (b *Buffer) ReadByte() (byte, bool, error) {
	c, ok, err := b.PeekByte()
	if !ok || err != nil {
		return 0, ok, err
	}
	b.roff++
	return c, true, nil
}

// ReadBytes consumes and returns the next n unread bytes. The
// returned slice may alias internal storage and must not be retained
// past the next mutating call; copy it first if it needs to outlive
// that.
func (b *Buffer) ReadBytes(n int) ([]byte, bool, error) { return b.consume(n, true) }

// Discard consumes the next n unread bytes without materializing
// them.
func (b *Buffer) Discard(n int) (bool, error) {
	_, ok, err := b.consume(n, false)
	return ok, err
}

func (b *Buffer) consume(n int, materialize bool) ([]byte, bool, error) {
	if n == 0 {
		if materialize {
			return []byte{}, true, nil
		}
		return nil, true, nil
	}
	ok, err := b.ensure(n)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}

	b.trimEmpty()
	if len(b.segs[0])-b.roff >= n {
		var out []byte
		if materialize {
			out = b.segs[0][b.roff : b.roff+n]
		}
		b.roff += n
		b.trimEmpty()
		return out, true, nil
	}

	var out []byte
	if materialize {
		out = make([]byte, n)
	}
	remaining := n
	for remaining > 0 {
		b.trimEmpty()
		seg := b.segs[0][b.roff:]
		c := len(seg)
		if c > remaining {
			c = remaining
		}
		if materialize {
			copy(out[n-remaining:], seg[:c])
		}
		b.roff += c
		remaining -= c
	}
	b.trimEmpty()
	return out, true, nil
}

// ReadUint16BE, ReadUint32BE, ReadUint64BE read a fixed-width
// big-endian unsigned integer.
func (b *Buffer) ReadUint16BE() (uint16, bool, error) {
	d, ok, err := b.consume(2, true)
	if !ok || err != nil {
		return 0, ok, err
	}
	return binary.BigEndian.Uint16(d), true, nil
}

func (b *Buffer) ReadUint32BE() (uint32, bool, error) {
	d, ok, err := b.consume(4, true)
	if !ok || err != nil {
		return 0, ok, err
	}
	return binary.BigEndian.Uint32(d), true, nil
}

func (b *Buffer) ReadUint64BE() (uint64, bool, error) {
	d, ok, err := b.consume(8, true)
	if !ok || err != nil {
		return 0, ok, err
	}
	return binary.BigEndian.Uint64(d), true, nil
}

// Save snapshots the read cursor.
func (b *Buffer) Save() Mark { return Mark{segs: b.segs, roff: b.roff} }

// Restore rolls the read cursor back to a previously saved Mark. See
// the Buffer doc comment for the write-interleaving caveat.
func (b *Buffer) Restore(m Mark) {
	b.segs = m.segs
	b.roff = m.roff
}

// WriteByte implements io.ByteWriter.
func (b *Buffer) WriteByte(c byte) error {
	b.scratch[0] = c
	b.append(b.scratch[:1])
	return nil
}

// Write implements io.Writer.
func (b *Buffer) Write(p []byte) (int, error) {
	b.append(p)
	return len(p), nil
}

func (b *Buffer) WriteUint16BE(v uint16) {
	binary.BigEndian.PutUint16(b.scratch[:2], v)
	b.append(b.scratch[:2])
}

func (b *Buffer) WriteUint32BE(v uint32) {
	binary.BigEndian.PutUint32(b.scratch[:4], v)
	b.append(b.scratch[:4])
}

func (b *Buffer) WriteUint64BE(v uint64) {
	binary.BigEndian.PutUint64(b.scratch[:8], v)
	b.append(b.scratch[:8])
}

func (b *Buffer) WriteInt64BE(v int64) { b.WriteUint64BE(uint64(v)) }

func (b *Buffer) WriteFloat32BE(v float32) { b.WriteUint32BE(math.Float32bits(v)) }

func (b *Buffer) WriteFloat64BE(v float64) { b.WriteUint64BE(math.Float64bits(v)) }

// Bytes renders the unread remainder of the buffer as a single
// contiguous slice. It is O(total size) and intended for
// finalization, not for use in a read loop.
func (b *Buffer) Bytes() []byte {
	n := b.available()
	out := make([]byte, 0, n)
	if len(b.segs) == 0 {
		return out
	}
	out = append(out, b.segs[0][b.roff:]...)
	for _, seg := range b.segs[1:] {
		out = append(out, seg...)
	}
	return out
}

// FlushTo writes the unread remainder of the buffer to w and resets
// the buffer, without the intermediate allocation Bytes would need.
func (b *Buffer) FlushTo(w io.Writer) error {
	if len(b.segs) == 0 {
		return nil
	}
	if b.roff > 0 {
		if _, err := w.Write(b.segs[0][b.roff:]); err != nil {
			return err
		}
		b.segs = b.segs[1:]
		b.roff = 0
	}
	for _, seg := range b.segs {
		if _, err := w.Write(seg); err != nil {
			return err
		}
	}
	b.segs = nil
	return nil
}
