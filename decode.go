package msgpack

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/segmentio/asm/utf8"
)

// DecoderOptions configures a Decoder (spec §4.4).
type DecoderOptions struct {
	// AllowUnknownExt makes an extension type with no registered
	// unpacker decode as a raw Extension value instead of failing
	// with UnknownExtTypeError.
	AllowUnknownExt bool

	// Freeze deep-copies every decoded string/binary/array/map/
	// extension payload so the returned Value shares no storage with
	// the Decoder's internal buffer, at the cost of extra allocation.
	Freeze bool
}

type partialKind uint8

const (
	partialStr partialKind = iota
	partialBin
	partialExt
)

// partialRead records an in-flight raw payload (string, binary, or
// extension) whose header has already been consumed but whose body
// has not yet fully arrived.
type partialRead struct {
	kind   partialKind
	length int
	typeID int8
}

type headerKind uint8

const (
	hdrScalar headerKind = iota
	hdrArray
	hdrMap
	hdrRaw
)

type headerInfo struct {
	kind      headerKind
	value     Value
	n         int
	rawKind   partialKind
	extTypeID int8
}

// frame is one open array or map container on the decoder's stack.
type frame struct {
	isMap      bool
	remaining  int
	items      []Value
	entries    []MapEntry
	haveKey    bool
	pendingKey Value
}

// Decoder turns a stream of MessagePack bytes into Values, one at a
// time, resuming cleanly across partial feeds: Read reports (ok=false,
// err=nil) when it needs more bytes rather than failing (spec §4.4).
type Decoder struct {
	buf        Buffer
	opts       DecoderOptions
	unpackers  *UnpackerRegistry
	stack      []*frame
	pending    *partialRead
	inProgress bool

	skipCounters []int
	skipPending  *partialRead

	lastArray []Value
	lastMap   []MapEntry
}

// NewDecoder returns a Decoder. unpackers may be nil, in which case
// the decoder only understands built-in values and reports any
// extension it sees as UnknownExtTypeError (unless AllowUnknownExt).
func NewDecoder(opts DecoderOptions, unpackers *UnpackerRegistry) *Decoder {
	if unpackers == nil {
		unpackers = NewUnpackerRegistry()
	}
	return &Decoder{opts: opts, unpackers: unpackers}
}

// SetSource attaches a blocking io.Reader the decoder may pull from
// when Feed-supplied data runs short.
func (d *Decoder) SetSource(r io.Reader) { d.buf.SetSource(r) }

// Feed appends bytes for later reads.
func (d *Decoder) Feed(p []byte) { d.buf.Feed(p) }

// Reset discards all decoder state, including any in-flight value,
// but keeps the attached source (if any).
func (d *Decoder) Reset() {
	src := d.buf.source
	d.buf = Buffer{}
	d.buf.source = src
	d.stack = nil
	d.pending = nil
	d.inProgress = false
	d.skipCounters = nil
	d.skipPending = nil
	d.lastArray = nil
	d.lastMap = nil
}

// Read decodes the next top-level value. ok is false with a nil error
// when more bytes are needed; a non-nil error means the input is
// malformed or otherwise unrecoverable and the decoder should not be
// reused.
func (d *Decoder) Read() (Value, bool, error) {
	for {
		var v Value
		var hasValue, ok bool
		var err error

		if d.pending != nil {
			v, ok, err = d.resumePending()
			hasValue = ok
		} else {
			v, hasValue, ok, err = d.readHeader()
		}
		if err != nil {
			return Value{}, false, err
		}
		if !ok {
			return Value{}, false, nil
		}
		if !hasValue {
			continue
		}
		result, done := d.deliver(v)
		if done {
			d.inProgress = false
			return result, true, nil
		}
	}
}

// deliver folds v into the innermost open container, cascading through
// any containers v's arrival happens to complete, and reports the
// finished top-level value once the stack drains.
func (d *Decoder) deliver(v Value) (Value, bool) {
	for {
		if len(d.stack) == 0 {
			return v, true
		}
		top := d.stack[len(d.stack)-1]
		if top.isMap {
			if !top.haveKey {
				top.pendingKey = v
				top.haveKey = true
				return Value{}, false
			}
			top.entries = append(top.entries, MapEntry{Key: top.pendingKey, Value: v})
			top.haveKey = false
			top.remaining--
		} else {
			top.items = append(top.items, v)
			top.remaining--
		}
		if top.remaining > 0 {
			return Value{}, false
		}

		d.stack = d.stack[:len(d.stack)-1]
		if top.isMap {
			v = Map(top.entries...)
		} else {
			v = Array(top.items...)
		}
		if d.opts.Freeze {
			v = freezeValue(v)
		}
	}
}

func (d *Decoder) readHeader() (Value, bool, bool, error) {
	hi, ok, err := d.parseHeader()
	if err != nil {
		return Value{}, false, false, err
	}
	if !ok {
		return Value{}, false, false, nil
	}
	switch hi.kind {
	case hdrScalar:
		return hi.value, true, true, nil
	case hdrArray:
		if hi.n == 0 {
			return Array(), true, true, nil
		}
		if err := d.pushFrame(false, hi.n); err != nil {
			return Value{}, false, false, err
		}
		return Value{}, false, true, nil
	case hdrMap:
		if hi.n == 0 {
			return Map(), true, true, nil
		}
		if err := d.pushFrame(true, hi.n); err != nil {
			return Value{}, false, false, err
		}
		return Value{}, false, true, nil
	case hdrRaw:
		d.pending = &partialRead{kind: hi.rawKind, length: hi.n, typeID: hi.extTypeID}
		return Value{}, false, true, nil
	default:
		return Value{}, false, false, fmt.Errorf("msgpack: invalid header kind %v", hi.kind)
	}
}

func (d *Decoder) pushFrame(isMap bool, n int) error {
	if len(d.stack) >= maxStackDepth {
		return &StackError{Depth: len(d.stack)}
	}
	f := &frame{isMap: isMap, remaining: n}
	if isMap {
		f.entries = make([]MapEntry, 0, clampCap(n))
	} else {
		f.items = make([]Value, 0, clampCap(n))
	}
	d.stack = append(d.stack, f)
	return nil
}

func (d *Decoder) resumePending() (Value, bool, error) {
	p := d.pending
	switch p.kind {
	case partialStr:
		data, ok, err := d.buf.ReadBytes(p.length)
		if err != nil || !ok {
			return Value{}, false, err
		}
		if !utf8.Valid(data) {
			d.pending = nil
			return Value{}, false, &EncodingError{Reason: "string payload is not valid UTF-8"}
		}
		v := String(string(data))
		d.pending = nil
		return v, true, nil
	case partialBin:
		data, ok, err := d.buf.ReadBytes(p.length)
		if err != nil || !ok {
			return Value{}, false, err
		}
		v := Binary(append([]byte(nil), data...))
		d.pending = nil
		return v, true, nil
	case partialExt:
		data, ok, err := d.buf.ReadBytes(p.length)
		if err != nil || !ok {
			return Value{}, false, err
		}
		payload := append([]byte(nil), data...)
		typeID := p.typeID
		d.pending = nil
		return d.materializeExtension(typeID, payload)
	default:
		return Value{}, false, fmt.Errorf("msgpack: invalid pending read state")
	}
}

func (d *Decoder) materializeExtension(typeID int8, payload []byte) (Value, bool, error) {
	if entry, ok := d.unpackers.Lookup(typeID); ok {
		if entry.recursive != nil {
			sub := NewDecoder(d.opts, d.unpackers)
			sub.Feed(payload)
			result, err := entry.recursive(sub)
			if err != nil {
				return Value{}, false, err
			}
			return AnyValue(result), true, nil
		}
		result, err := entry.simple(payload)
		if err != nil {
			return Value{}, false, err
		}
		return AnyValue(result), true, nil
	}
	if d.opts.AllowUnknownExt {
		return Ext(typeID, payload), true, nil
	}
	return Value{}, false, &UnknownExtTypeError{Type: typeID}
}

// parseHeader reads one value's tag and any inline length/type-id
// fields atomically: if the header turns out to be short, the read
// cursor is rolled back to where it started so the caller can retry
// once more bytes arrive.
func (d *Decoder) parseHeader() (headerInfo, bool, error) {
	mark := d.buf.Save()
	tag, got, err := d.buf.ReadByte()
	if err != nil {
		return headerInfo{}, false, err
	}
	if !got {
		return headerInfo{}, false, nil
	}
	d.inProgress = true

	switch {
	case tag <= tagPosFixIntMax:
		return headerInfo{kind: hdrScalar, value: Int(int64(tag))}, true, nil
	case tag >= tagNegFixIntMin:
		return headerInfo{kind: hdrScalar, value: Int(int64(int8(tag)))}, true, nil
	case tag >= tagFixMapMin && tag <= tagFixMapMax:
		return headerInfo{kind: hdrMap, n: int(tag &^ tagFixMapMin)}, true, nil
	case tag >= tagFixArrayMin && tag <= tagFixArrayMax:
		return headerInfo{kind: hdrArray, n: int(tag &^ tagFixArrayMin)}, true, nil
	case tag >= tagFixStrMin && tag <= tagFixStrMax:
		return headerInfo{kind: hdrRaw, rawKind: partialStr, n: int(tag &^ tagFixStrMin)}, true, nil
	case tag == tagNil:
		return headerInfo{kind: hdrScalar, value: Nil()}, true, nil
	case tag == tagReserved:
		return headerInfo{}, false, &MalformedFormatError{Reason: "tag 0xc1 is reserved"}
	case tag == tagFalse:
		return headerInfo{kind: hdrScalar, value: Bool(false)}, true, nil
	case tag == tagTrue:
		return headerInfo{kind: hdrScalar, value: Bool(true)}, true, nil
	case tag == tagBin8:
		n, ok, err := d.readLen(mark, 1)
		if !ok || err != nil {
			return headerInfo{}, ok, err
		}
		return headerInfo{kind: hdrRaw, rawKind: partialBin, n: n}, true, nil
	case tag == tagBin16:
		n, ok, err := d.readLen(mark, 2)
		if !ok || err != nil {
			return headerInfo{}, ok, err
		}
		return headerInfo{kind: hdrRaw, rawKind: partialBin, n: n}, true, nil
	case tag == tagBin32:
		n, ok, err := d.readLen(mark, 4)
		if !ok || err != nil {
			return headerInfo{}, ok, err
		}
		return headerInfo{kind: hdrRaw, rawKind: partialBin, n: n}, true, nil
	case tag == tagExt8, tag == tagExt16, tag == tagExt32:
		width := 1
		switch tag {
		case tagExt16:
			width = 2
		case tagExt32:
			width = 4
		}
		n, ok, err := d.readLen(mark, width)
		if !ok || err != nil {
			return headerInfo{}, ok, err
		}
		typeID, ok, err := d.readTypeID(mark)
		if !ok || err != nil {
			return headerInfo{}, ok, err
		}
		return headerInfo{kind: hdrRaw, rawKind: partialExt, n: n, extTypeID: typeID}, true, nil
	case tag == tagFloat32:
		u, ok, err := d.buf.ReadUint32BE()
		if err != nil {
			return headerInfo{}, false, err
		}
		if !ok {
			d.buf.Restore(mark)
			return headerInfo{}, false, nil
		}
		return headerInfo{kind: hdrScalar, value: Float(float64(math.Float32frombits(u)))}, true, nil
	case tag == tagFloat64:
		u, ok, err := d.buf.ReadUint64BE()
		if err != nil {
			return headerInfo{}, false, err
		}
		if !ok {
			d.buf.Restore(mark)
			return headerInfo{}, false, nil
		}
		return headerInfo{kind: hdrScalar, value: Float(math.Float64frombits(u))}, true, nil
	case tag == tagUint8:
		b, ok, err := d.buf.ReadByte()
		if err != nil {
			return headerInfo{}, false, err
		}
		if !ok {
			d.buf.Restore(mark)
			return headerInfo{}, false, nil
		}
		return headerInfo{kind: hdrScalar, value: Int(int64(b))}, true, nil
	case tag == tagUint16:
		u, ok, err := d.buf.ReadUint16BE()
		if err != nil {
			return headerInfo{}, false, err
		}
		if !ok {
			d.buf.Restore(mark)
			return headerInfo{}, false, nil
		}
		return headerInfo{kind: hdrScalar, value: Int(int64(u))}, true, nil
	case tag == tagUint32:
		u, ok, err := d.buf.ReadUint32BE()
		if err != nil {
			return headerInfo{}, false, err
		}
		if !ok {
			d.buf.Restore(mark)
			return headerInfo{}, false, nil
		}
		return headerInfo{kind: hdrScalar, value: Int(int64(u))}, true, nil
	case tag == tagUint64:
		u, ok, err := d.buf.ReadUint64BE()
		if err != nil {
			return headerInfo{}, false, err
		}
		if !ok {
			d.buf.Restore(mark)
			return headerInfo{}, false, nil
		}
		if u <= math.MaxInt64 {
			return headerInfo{kind: hdrScalar, value: Int(int64(u))}, true, nil
		}
		return headerInfo{kind: hdrScalar, value: Uint(u)}, true, nil
	case tag == tagInt8:
		b, ok, err := d.buf.ReadByte()
		if err != nil {
			return headerInfo{}, false, err
		}
		if !ok {
			d.buf.Restore(mark)
			return headerInfo{}, false, nil
		}
		return headerInfo{kind: hdrScalar, value: Int(int64(int8(b)))}, true, nil
	case tag == tagInt16:
		u, ok, err := d.buf.ReadUint16BE()
		if err != nil {
			return headerInfo{}, false, err
		}
		if !ok {
			d.buf.Restore(mark)
			return headerInfo{}, false, nil
		}
		return headerInfo{kind: hdrScalar, value: Int(int64(int16(u)))}, true, nil
	case tag == tagInt32:
		u, ok, err := d.buf.ReadUint32BE()
		if err != nil {
			return headerInfo{}, false, err
		}
		if !ok {
			d.buf.Restore(mark)
			return headerInfo{}, false, nil
		}
		return headerInfo{kind: hdrScalar, value: Int(int64(int32(u)))}, true, nil
	case tag == tagInt64:
		u, ok, err := d.buf.ReadUint64BE()
		if err != nil {
			return headerInfo{}, false, err
		}
		if !ok {
			d.buf.Restore(mark)
			return headerInfo{}, false, nil
		}
		return headerInfo{kind: hdrScalar, value: Int(int64(u))}, true, nil
	case tag >= tagFixext1 && tag <= tagFixext16:
		length := fixextLength(tag)
		typeID, ok, err := d.readTypeID(mark)
		if !ok || err != nil {
			return headerInfo{}, ok, err
		}
		return headerInfo{kind: hdrRaw, rawKind: partialExt, n: length, extTypeID: typeID}, true, nil
	case tag == tagStr8:
		n, ok, err := d.readLen(mark, 1)
		if !ok || err != nil {
			return headerInfo{}, ok, err
		}
		return headerInfo{kind: hdrRaw, rawKind: partialStr, n: n}, true, nil
	case tag == tagStr16:
		n, ok, err := d.readLen(mark, 2)
		if !ok || err != nil {
			return headerInfo{}, ok, err
		}
		return headerInfo{kind: hdrRaw, rawKind: partialStr, n: n}, true, nil
	case tag == tagStr32:
		n, ok, err := d.readLen(mark, 4)
		if !ok || err != nil {
			return headerInfo{}, ok, err
		}
		return headerInfo{kind: hdrRaw, rawKind: partialStr, n: n}, true, nil
	case tag == tagArray16:
		n, ok, err := d.readLen(mark, 2)
		if !ok || err != nil {
			return headerInfo{}, ok, err
		}
		return headerInfo{kind: hdrArray, n: n}, true, nil
	case tag == tagArray32:
		n, ok, err := d.readLen(mark, 4)
		if !ok || err != nil {
			return headerInfo{}, ok, err
		}
		return headerInfo{kind: hdrArray, n: n}, true, nil
	case tag == tagMap16:
		n, ok, err := d.readLen(mark, 2)
		if !ok || err != nil {
			return headerInfo{}, ok, err
		}
		return headerInfo{kind: hdrMap, n: n}, true, nil
	case tag == tagMap32:
		n, ok, err := d.readLen(mark, 4)
		if !ok || err != nil {
			return headerInfo{}, ok, err
		}
		return headerInfo{kind: hdrMap, n: n}, true, nil
	default:
		return headerInfo{}, false, &MalformedFormatError{Reason: fmt.Sprintf("unrecognized tag byte 0x%02x", tag)}
	}
}

// readLen reads a big-endian length field of the given byte width,
// restoring mark if it is not yet fully available.
func (d *Decoder) readLen(mark Mark, width int) (int, bool, error) {
	switch width {
	case 1:
		b, ok, err := d.buf.ReadByte()
		if err != nil {
			return 0, false, err
		}
		if !ok {
			d.buf.Restore(mark)
			return 0, false, nil
		}
		return int(b), true, nil
	case 2:
		v, ok, err := d.buf.ReadUint16BE()
		if err != nil {
			return 0, false, err
		}
		if !ok {
			d.buf.Restore(mark)
			return 0, false, nil
		}
		return int(v), true, nil
	case 4:
		v, ok, err := d.buf.ReadUint32BE()
		if err != nil {
			return 0, false, err
		}
		if !ok {
			d.buf.Restore(mark)
			return 0, false, nil
		}
		return int(v), true, nil
	default:
		return 0, false, fmt.Errorf("msgpack: invalid length width %d", width)
	}
}

func (d *Decoder) readTypeID(mark Mark) (int8, bool, error) {
	b, ok, err := d.buf.ReadByte()
	if err != nil {
		return 0, false, err
	}
	if !ok {
		d.buf.Restore(mark)
		return 0, false, nil
	}
	return int8(b), true, nil
}

// ReadBool reads and type-checks the next value as a bool.
func (d *Decoder) ReadBool() (bool, bool, error) {
	v, ok, err := d.Read()
	if !ok || err != nil {
		return false, ok, err
	}
	if v.Kind != KindBool {
		return false, false, &TypeError{Expected: "bool", Actual: v.Kind.String()}
	}
	return v.Bool, true, nil
}

// ReadInt reads and type-checks the next value as a signed integer.
func (d *Decoder) ReadInt() (int64, bool, error) {
	v, ok, err := d.Read()
	if !ok || err != nil {
		return 0, ok, err
	}
	if v.Kind != KindInt {
		return 0, false, &TypeError{Expected: "int", Actual: v.Kind.String()}
	}
	if !v.Signed && v.Uint > math.MaxInt64 {
		return 0, false, &RangeError{Reason: "value does not fit in a signed 64-bit integer"}
	}
	if v.Signed {
		return v.Int, true, nil
	}
	return int64(v.Uint), true, nil
}

// ReadUint reads and type-checks the next value as an integer and
// returns it as uint64, failing if it is negative.
func (d *Decoder) ReadUint() (uint64, bool, error) {
	v, ok, err := d.Read()
	if !ok || err != nil {
		return 0, ok, err
	}
	if v.Kind != KindInt {
		return 0, false, &TypeError{Expected: "int", Actual: v.Kind.String()}
	}
	if v.Signed {
		if v.Int < 0 {
			return 0, false, &RangeError{Reason: "value is negative"}
		}
		return uint64(v.Int), true, nil
	}
	return v.Uint, true, nil
}

// ReadFloat reads and type-checks the next value as a float.
func (d *Decoder) ReadFloat() (float64, bool, error) {
	v, ok, err := d.Read()
	if !ok || err != nil {
		return 0, ok, err
	}
	if v.Kind != KindFloat {
		return 0, false, &TypeError{Expected: "float", Actual: v.Kind.String()}
	}
	return v.Float, true, nil
}

// ReadString reads and type-checks the next value as a string.
func (d *Decoder) ReadString() (string, bool, error) {
	v, ok, err := d.Read()
	if !ok || err != nil {
		return "", ok, err
	}
	if v.Kind != KindString {
		return "", false, &TypeError{Expected: "string", Actual: v.Kind.String()}
	}
	return v.Str, true, nil
}

// ReadBinary reads and type-checks the next value as binary.
func (d *Decoder) ReadBinary() ([]byte, bool, error) {
	v, ok, err := d.Read()
	if !ok || err != nil {
		return nil, ok, err
	}
	if v.Kind != KindBinary {
		return nil, false, &TypeError{Expected: "binary", Actual: v.Kind.String()}
	}
	return v.Bin, true, nil
}

// ReadArrayHeader reads the next value, type-checks it as an array,
// and returns its element count. Unlike Encoder's WriteArrayHeader,
// this does not give the caller a way to stream the elements apart
// from the array's materialization: Read always assembles a
// container fully, through the frame stack, before returning it.
// ReadArrayHeader exists as a typed, fail-fast escape hatch for
// callers that know the expected shape and want TypeError instead of
// a Kind check of their own.
func (d *Decoder) ReadArrayHeader() (int, bool, error) {
	v, ok, err := d.Read()
	if !ok || err != nil {
		return 0, ok, err
	}
	if v.Kind != KindArray {
		return 0, false, &TypeError{Expected: "array", Actual: v.Kind.String()}
	}
	d.lastArray = v.Array
	return len(v.Array), true, nil
}

// ReadMapHeader reads the next value, type-checks it as a map, and
// returns its entry count. See ReadArrayHeader's doc comment for the
// same caveat about materialization.
func (d *Decoder) ReadMapHeader() (int, bool, error) {
	v, ok, err := d.Read()
	if !ok || err != nil {
		return 0, ok, err
	}
	if v.Kind != KindMap {
		return 0, false, &TypeError{Expected: "map", Actual: v.Kind.String()}
	}
	d.lastMap = v.Map
	return len(v.Map), true, nil
}

// LastArrayElements returns the elements materialized by the most
// recent successful ReadArrayHeader call.
func (d *Decoder) LastArrayElements() []Value { return d.lastArray }

// LastMapEntries returns the entries materialized by the most recent
// successful ReadMapHeader call.
func (d *Decoder) LastMapEntries() []MapEntry { return d.lastMap }

// Skip discards exactly one top-level value without materializing it,
// resuming cleanly across partial feeds just like Read.
func (d *Decoder) Skip() (bool, error) {
	for {
		var hasValue, ok bool
		var err error

		if d.skipPending != nil {
			ok, err = d.resumeSkipPending()
			hasValue = ok
		} else {
			hasValue, ok, err = d.skipHeader()
		}
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		if !hasValue {
			continue
		}
		if done := d.skipDeliver(); done {
			d.inProgress = false
			return true, nil
		}
	}
}

func (d *Decoder) skipHeader() (bool, bool, error) {
	hi, ok, err := d.parseHeader()
	if err != nil {
		return false, false, err
	}
	if !ok {
		return false, false, nil
	}
	switch hi.kind {
	case hdrScalar:
		return true, true, nil
	case hdrArray:
		if hi.n == 0 {
			return true, true, nil
		}
		if err := d.pushSkipCounter(hi.n); err != nil {
			return false, false, err
		}
		return false, true, nil
	case hdrMap:
		if hi.n == 0 {
			return true, true, nil
		}
		if err := d.pushSkipCounter(hi.n * 2); err != nil {
			return false, false, err
		}
		return false, true, nil
	case hdrRaw:
		d.skipPending = &partialRead{kind: hi.rawKind, length: hi.n, typeID: hi.extTypeID}
		return false, true, nil
	default:
		return false, false, fmt.Errorf("msgpack: invalid header kind %v", hi.kind)
	}
}

func (d *Decoder) pushSkipCounter(n int) error {
	if len(d.skipCounters) >= maxStackDepth {
		return &StackError{Depth: len(d.skipCounters)}
	}
	d.skipCounters = append(d.skipCounters, n)
	return nil
}

func (d *Decoder) resumeSkipPending() (bool, error) {
	ok, err := d.buf.Discard(d.skipPending.length)
	if err != nil || !ok {
		return false, err
	}
	d.skipPending = nil
	return true, nil
}

func (d *Decoder) skipDeliver() bool {
	for {
		if len(d.skipCounters) == 0 {
			return true
		}
		top := len(d.skipCounters) - 1
		d.skipCounters[top]--
		if d.skipCounters[top] > 0 {
			return false
		}
		d.skipCounters = d.skipCounters[:top]
	}
}

// FullDecode reads exactly one complete top-level value, blocking on
// the attached source as needed, and fails with MalformedFormatError
// if any bytes remain after it. It requires a source (set via
// SetSource) or previously-fed data sufficient to complete a value;
// running out of both surfaces as EOFError.
func (d *Decoder) FullDecode() (Value, error) {
	for {
		v, ok, err := d.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return Value{}, &EOFError{Reason: "unexpected end of stream while decoding a value"}
			}
			return Value{}, err
		}
		if ok {
			if err := d.checkNoTrailingBytes(); err != nil {
				return Value{}, err
			}
			return v, nil
		}
		if d.buf.source == nil {
			return Value{}, &EOFError{Reason: "no more data and no source attached"}
		}
	}
}

// checkNoTrailingBytes reports MalformedFormatError if any bytes
// follow a just-completed full decode.
func (d *Decoder) checkNoTrailingBytes() error {
	_, ok, err := d.buf.PeekByte()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	if ok {
		return &MalformedFormatError{Reason: "extra bytes"}
	}
	return nil
}

// Each calls fn once per top-level value currently decodable. Against
// an attached source it reads until the stream ends cleanly between
// values, reporting a stream that ends partway through a value as
// EOFError. Against Feed-supplied data with no source, it is a thin
// loop over Read that stops without error the moment Read reports
// "need more", so a push-based caller can drain everything currently
// buffered and call Each again after the next Feed.
func (d *Decoder) Each(fn func(Value) error) error {
	for {
		v, ok, err := d.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				if d.inProgress {
					return &EOFError{Reason: "stream ended mid-value"}
				}
				return nil
			}
			return err
		}
		if !ok {
			return nil
		}
		if err := fn(v); err != nil {
			return err
		}
	}
}

func defaultUnpackers() *UnpackerRegistry {
	u := NewUnpackerRegistry()
	registerBuiltinExtensions(NewPackerRegistry(), u)
	return u
}

// Unpack decodes a single complete value out of data, failing with
// MalformedFormatError if bytes remain after it.
func Unpack(data []byte) (Value, error) {
	d := NewDecoder(DecoderOptions{}, defaultUnpackers())
	d.Feed(data)
	v, ok, err := d.Read()
	if err != nil {
		return Value{}, err
	}
	if !ok {
		return Value{}, &EOFError{Reason: "truncated message"}
	}
	if err := d.checkNoTrailingBytes(); err != nil {
		return Value{}, err
	}
	return v, nil
}

// UnpackFrom decodes a single complete value from r, blocking as
// needed.
func UnpackFrom(r io.Reader) (Value, error) {
	d := NewDecoder(DecoderOptions{}, defaultUnpackers())
	d.SetSource(r)
	return d.FullDecode()
}
