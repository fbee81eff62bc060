package msgpack

import (
	"fmt"
	"io"
	"math"
	"math/big"
	"reflect"
	"time"
	"unicode/utf8"
)

// EncoderOptions configures an Encoder (spec §4.3, §9 "Compatibility
// mode").
type EncoderOptions struct {
	// CompatibilityMode suppresses str8 and bin8/16/32: strings are
	// promoted to str16/str32, and binary is emitted using string
	// tags instead of bin tags. It affects only this encoder.
	CompatibilityMode bool
}

// Encoder writes MessagePack-encoded values to an internal buffer,
// optionally flushing to a bound sink on Finalize.
type Encoder struct {
	buf      Buffer
	opts     EncoderOptions
	registry *PackerRegistry
	sink     io.Writer
}

// NewEncoder returns an Encoder. sink may be nil, in which case
// Finalize returns the accumulated bytes instead of flushing them.
// registry may be nil, in which case the encoder supports only
// built-in types.
func NewEncoder(sink io.Writer, opts EncoderOptions, registry *PackerRegistry) *Encoder {
	if registry == nil {
		registry = NewPackerRegistry()
	}
	return &Encoder{opts: opts, registry: registry, sink: sink}
}

// Reset discards any buffered, not-yet-finalized output.
func (e *Encoder) Reset() { e.buf.Reset() }

// BindSink attaches (or replaces) the sink Finalize flushes to.
func (e *Encoder) BindSink(w io.Writer) { e.sink = w }

// Finalize returns the accumulated bytes and resets the encoder, or,
// if a sink is bound, flushes them to the sink and returns nil, nil.
func (e *Encoder) Finalize() ([]byte, error) {
	if e.sink != nil {
		if err := e.buf.FlushTo(e.sink); err != nil {
			return nil, err
		}
		return nil, nil
	}
	out := e.buf.Bytes()
	e.buf.Reset()
	return out, nil
}

// Write dispatches v by its runtime Go type (spec §4.3). Native
// numeric and boolean types always use their built-in tags regardless
// of any registration — spec §4.5 is explicit that in-range integers
// continue to use native tags even when the integer kind carries an
// oversized-integer registration, and the same native-first rule
// extends to bool/float since neither is ever a legitimate registry
// key. Every other type consults the packer registry first, giving a
// registered extension priority over the matching built-in case (for
// instance, a custom packer registered for time.Time wins over the
// built-in timestamp handling); a registry miss falls through to the
// remaining built-in cases.
func (e *Encoder) Write(v interface{}) error {
	if v == nil {
		return e.WriteNil()
	}
	if val, ok := v.(Value); ok {
		return e.writeValue(val)
	}
	switch x := v.(type) {
	case bool:
		return e.WriteBool(x)
	case int:
		return e.WriteInt(int64(x))
	case int8:
		return e.WriteInt(int64(x))
	case int16:
		return e.WriteInt(int64(x))
	case int32:
		return e.WriteInt(int64(x))
	case int64:
		return e.WriteInt(x)
	case uint:
		return e.WriteUint(uint64(x))
	case uint8:
		return e.WriteUint(uint64(x))
	case uint16:
		return e.WriteUint(uint64(x))
	case uint32:
		return e.WriteUint(uint64(x))
	case uint64:
		return e.WriteUint(x)
	case float32:
		return e.WriteFloat32(x)
	case float64:
		return e.WriteFloat(x)
	}

	if entry, ok := e.registry.Lookup(reflect.TypeOf(v)); ok {
		return e.dispatchPacker(entry, v)
	}

	switch x := v.(type) {
	case string:
		return e.WriteString(x)
	case []byte:
		return e.WriteBinary(x)
	case Extension:
		return e.WriteExtension(x.Type, x.Payload)
	case Timestamp:
		return e.writeTimestamp(x)
	case time.Time:
		return e.writeTimestamp(TimestampFromTime(x))
	case []Value:
		return e.writeArray(x)
	case []MapEntry:
		return e.writeMap(x)
	default:
		return fmt.Errorf("msgpack: unsupported type %T", v)
	}
}

func (e *Encoder) dispatchPacker(entry *packerEntry, v interface{}) error {
	if entry.flags&FlagOversizedInteger != 0 {
		if n, ok := v.(*big.Int); ok && n.IsInt64() {
			return e.WriteInt(n.Int64())
		}
	}
	if entry.recursive != nil {
		sub := NewEncoder(nil, e.opts, e.registry)
		if err := entry.recursive(v, sub); err != nil {
			return err
		}
		payload, err := sub.Finalize()
		if err != nil {
			return err
		}
		return e.WriteExtension(entry.typeID, payload)
	}
	payload, err := entry.simple(v)
	if err != nil {
		return err
	}
	return e.WriteExtension(entry.typeID, payload)
}

func (e *Encoder) writeValue(v Value) error {
	switch v.Kind {
	case KindNil:
		return e.WriteNil()
	case KindBool:
		return e.WriteBool(v.Bool)
	case KindInt:
		if v.Signed {
			return e.WriteInt(v.Int)
		}
		return e.WriteUint(v.Uint)
	case KindFloat:
		return e.WriteFloat(v.Float)
	case KindString:
		return e.WriteString(v.Str)
	case KindBinary:
		return e.WriteBinary(v.Bin)
	case KindArray:
		return e.writeArray(v.Array)
	case KindMap:
		return e.writeMap(v.Map)
	case KindExtension:
		return e.WriteExtension(v.Ext.Type, v.Ext.Payload)
	case KindAny:
		return e.Write(v.Any)
	default:
		return fmt.Errorf("msgpack: invalid value kind %v", v.Kind)
	}
}

func (e *Encoder) writeArray(items []Value) error {
	if err := e.WriteArrayHeader(len(items)); err != nil {
		return err
	}
	for _, item := range items {
		if err := e.writeValue(item); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeMap(entries []MapEntry) error {
	if err := e.WriteMapHeader(len(entries)); err != nil {
		return err
	}
	for _, entry := range entries {
		if err := e.writeValue(entry.Key); err != nil {
			return err
		}
		if err := e.writeValue(entry.Value); err != nil {
			return err
		}
	}
	return nil
}

func (e *Encoder) writeTimestamp(ts Timestamp) error {
	return e.WriteExtension(extTypeTimestamp, encodeTimestampPayload(ts))
}

// WriteNil writes the nil tag.
func (e *Encoder) WriteNil() error {
	e.buf.WriteByte(tagNil)
	return nil
}

// WriteBool writes the false or true tag.
func (e *Encoder) WriteBool(v bool) error {
	if v {
		e.buf.WriteByte(tagTrue)
	} else {
		e.buf.WriteByte(tagFalse)
	}
	return nil
}

// WriteInt writes a signed integer using the narrowest tag that fits
// (spec §4.3 width selection).
func (e *Encoder) WriteInt(v int64) error {
	switch {
	case v >= 0:
		return e.writeUintWidths(uint64(v))
	case v >= -32:
		e.buf.WriteByte(byte(v))
		return nil
	case v >= math.MinInt8:
		e.buf.WriteByte(tagInt8)
		e.buf.WriteByte(byte(v))
		return nil
	case v >= math.MinInt16:
		e.buf.WriteByte(tagInt16)
		e.buf.WriteUint16BE(uint16(v))
		return nil
	case v >= math.MinInt32:
		e.buf.WriteByte(tagInt32)
		e.buf.WriteUint32BE(uint32(v))
		return nil
	default:
		e.buf.WriteByte(tagInt64)
		e.buf.WriteUint64BE(uint64(v))
		return nil
	}
}

// WriteUint writes an unsigned integer using the narrowest tag that
// fits.
func (e *Encoder) WriteUint(v uint64) error { return e.writeUintWidths(v) }

func (e *Encoder) writeUintWidths(v uint64) error {
	switch {
	case v <= 0x7f:
		e.buf.WriteByte(byte(v))
	case v <= math.MaxUint8:
		e.buf.WriteByte(tagUint8)
		e.buf.WriteByte(byte(v))
	case v <= math.MaxUint16:
		e.buf.WriteByte(tagUint16)
		e.buf.WriteUint16BE(uint16(v))
	case v <= math.MaxUint32:
		e.buf.WriteByte(tagUint32)
		e.buf.WriteUint32BE(uint32(v))
	default:
		e.buf.WriteByte(tagUint64)
		e.buf.WriteUint64BE(v)
	}
	return nil
}

// WriteFloat32 writes a single-precision float.
func (e *Encoder) WriteFloat32(v float32) error {
	e.buf.WriteByte(tagFloat32)
	e.buf.WriteFloat32BE(v)
	return nil
}

// WriteFloat writes a double-precision float.
func (e *Encoder) WriteFloat(v float64) error {
	e.buf.WriteByte(tagFloat64)
	e.buf.WriteFloat64BE(v)
	return nil
}

// WriteString writes a UTF-8 string using the narrowest tag that fits
// (spec §4.3). Non-UTF-8 input fails with EncodingError.
func (e *Encoder) WriteString(s string) error {
	if !utf8.ValidString(s) {
		return &EncodingError{Reason: "string is not valid UTF-8"}
	}
	n := len(s)
	switch {
	case n < 32:
		e.buf.WriteByte(tagFixStrMin | byte(n))
	case n < 256 && !e.opts.CompatibilityMode:
		e.buf.WriteByte(tagStr8)
		e.buf.WriteByte(byte(n))
	case n < 65536:
		e.buf.WriteByte(tagStr16)
		e.buf.WriteUint16BE(uint16(n))
	case n <= math.MaxUint32:
		e.buf.WriteByte(tagStr32)
		e.buf.WriteUint32BE(uint32(n))
	default:
		return &RangeError{Reason: "string too long to encode"}
	}
	e.buf.Write([]byte(s))
	return nil
}

// WriteBinary writes an opaque byte slice using the narrowest bin tag
// that fits, or (in compatibility mode) string tags.
func (e *Encoder) WriteBinary(b []byte) error {
	if e.opts.CompatibilityMode {
		return e.writeRawAsString(b)
	}
	n := len(b)
	switch {
	case n < 256:
		e.buf.WriteByte(tagBin8)
		e.buf.WriteByte(byte(n))
	case n < 65536:
		e.buf.WriteByte(tagBin16)
		e.buf.WriteUint16BE(uint16(n))
	case n <= math.MaxUint32:
		e.buf.WriteByte(tagBin32)
		e.buf.WriteUint32BE(uint32(n))
	default:
		return &RangeError{Reason: "binary too long to encode"}
	}
	e.buf.Write(b)
	return nil
}

func (e *Encoder) writeRawAsString(b []byte) error {
	n := len(b)
	switch {
	case n < 32:
		e.buf.WriteByte(tagFixStrMin | byte(n))
	case n < 65536:
		e.buf.WriteByte(tagStr16)
		e.buf.WriteUint16BE(uint16(n))
	case n <= math.MaxUint32:
		e.buf.WriteByte(tagStr32)
		e.buf.WriteUint32BE(uint32(n))
	default:
		return &RangeError{Reason: "binary too long to encode"}
	}
	e.buf.Write(b)
	return nil
}

// WriteArrayHeader writes an array tag for n upcoming elements. The
// caller is responsible for writing exactly n elements next.
func (e *Encoder) WriteArrayHeader(n int) error {
	switch {
	case n < 0:
		return &RangeError{Reason: "negative array length"}
	case n < 16:
		e.buf.WriteByte(tagFixArrayMin | byte(n))
	case n < 65536:
		e.buf.WriteByte(tagArray16)
		e.buf.WriteUint16BE(uint16(n))
	case n <= math.MaxUint32:
		e.buf.WriteByte(tagArray32)
		e.buf.WriteUint32BE(uint32(n))
	default:
		return &RangeError{Reason: "array too long to encode"}
	}
	return nil
}

// WriteMapHeader writes a map tag for n upcoming key-value pairs. The
// caller is responsible for writing exactly n keys interleaved with n
// values next.
func (e *Encoder) WriteMapHeader(n int) error {
	switch {
	case n < 0:
		return &RangeError{Reason: "negative map length"}
	case n < 16:
		e.buf.WriteByte(tagFixMapMin | byte(n))
	case n < 65536:
		e.buf.WriteByte(tagMap16)
		e.buf.WriteUint16BE(uint16(n))
	case n <= math.MaxUint32:
		e.buf.WriteByte(tagMap32)
		e.buf.WriteUint32BE(uint32(n))
	default:
		return &RangeError{Reason: "map too long to encode"}
	}
	return nil
}

// WriteExtension writes an extension record, choosing a fix-extension
// tag when the payload length is exactly 1, 2, 4, 8, or 16 bytes and
// an ext8/16/32 tag otherwise.
func (e *Encoder) WriteExtension(typeID int8, payload []byte) error {
	n := len(payload)
	switch n {
	case 1:
		e.buf.WriteByte(tagFixext1)
		e.buf.WriteByte(byte(typeID))
		e.buf.Write(payload)
		return nil
	case 2:
		e.buf.WriteByte(tagFixext2)
		e.buf.WriteByte(byte(typeID))
		e.buf.Write(payload)
		return nil
	case 4:
		e.buf.WriteByte(tagFixext4)
		e.buf.WriteByte(byte(typeID))
		e.buf.Write(payload)
		return nil
	case 8:
		e.buf.WriteByte(tagFixext8)
		e.buf.WriteByte(byte(typeID))
		e.buf.Write(payload)
		return nil
	case 16:
		e.buf.WriteByte(tagFixext16)
		e.buf.WriteByte(byte(typeID))
		e.buf.Write(payload)
		return nil
	}
	switch {
	case n < 256:
		e.buf.WriteByte(tagExt8)
		e.buf.WriteByte(byte(n))
	case n < 65536:
		e.buf.WriteByte(tagExt16)
		e.buf.WriteUint16BE(uint16(n))
	case n <= math.MaxUint32:
		e.buf.WriteByte(tagExt32)
		e.buf.WriteUint32BE(uint32(n))
	default:
		return &RangeError{Reason: "extension payload too long to encode"}
	}
	e.buf.WriteByte(byte(typeID))
	e.buf.Write(payload)
	return nil
}

// Pack encodes v and returns the resulting bytes.
func Pack(v interface{}) ([]byte, error) {
	e := NewEncoder(nil, EncoderOptions{}, nil)
	if err := e.Write(v); err != nil {
		return nil, err
	}
	return e.Finalize()
}

// PackTo encodes v and writes the result to w.
func PackTo(w io.Writer, v interface{}) error {
	e := NewEncoder(w, EncoderOptions{}, nil)
	if err := e.Write(v); err != nil {
		return err
	}
	_, err := e.Finalize()
	return err
}
