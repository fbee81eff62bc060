package msgpack

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeNilBoolScalars(t *testing.T) {
	v, err := Unpack([]byte{tagNil})
	require.NoError(t, err)
	assert.True(t, v.IsNil())

	v, err = Unpack([]byte{tagFalse})
	require.NoError(t, err)
	assert.Equal(t, KindBool, v.Kind)
	assert.False(t, v.Bool)

	v, err = Unpack([]byte{tagTrue})
	require.NoError(t, err)
	assert.True(t, v.Bool)
}

func TestDecodeResumesAcrossPartialFeeds(t *testing.T) {
	d := NewDecoder(DecoderOptions{}, defaultUnpackers())

	d.Feed([]byte{0x81})
	_, ok, err := d.Read()
	require.NoError(t, err)
	assert.False(t, ok, "a map header alone must not be enough to deliver a value")

	d.Feed([]byte{0x01})
	_, ok, err = d.Read()
	require.NoError(t, err)
	assert.False(t, ok, "the key alone must not be enough to deliver a value")

	d.Feed([]byte{0x01})
	v, ok, err := d.Read()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Map(Entry(Int(1), Int(1))), v)
}

func TestDecodeExtensionRoundTripsThroughRecursiveUnpacker(t *testing.T) {
	packers := NewPackerRegistry()
	unpackers := NewUnpackerRegistry()
	require.NoError(t, packers.RegisterRecursive(7, point{}, func(v interface{}, e *Encoder) error {
		p := v.(point)
		if err := e.WriteArrayHeader(2); err != nil {
			return err
		}
		if err := e.Write(int64(p.X)); err != nil {
			return err
		}
		return e.Write(int64(p.Y))
	}, 0))
	require.NoError(t, unpackers.RegisterRecursive(7, point{}, func(d *Decoder) (interface{}, error) {
		v, ok, err := d.Read()
		if err != nil {
			return nil, err
		}
		if !ok || v.Kind != KindArray || len(v.Array) != 2 {
			return nil, &TypeError{Expected: "2-element array", Actual: v.Kind.String()}
		}
		return point{X: int(v.Array[0].Int), Y: int(v.Array[1].Int)}, nil
	}, 0))

	e := NewEncoder(nil, EncoderOptions{}, packers)
	require.NoError(t, e.Write(point{X: 10, Y: 20}))
	out, err := e.Finalize()
	require.NoError(t, err)
	assert.Equal(t, []byte{0xc7, 0x03, 0x07, 0x92, 0x0a, 0x14}, out)

	d := NewDecoder(DecoderOptions{}, unpackers)
	d.Feed(out)
	v, ok, err := d.Read()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, KindAny, v.Kind)
	assert.Equal(t, point{X: 10, Y: 20}, v.Any)
}

type point struct{ X, Y int }

func TestDecodeReservedTagFails(t *testing.T) {
	_, err := Unpack([]byte{0xc1})
	assert.Error(t, err)
	_, ok := err.(*MalformedFormatError)
	assert.True(t, ok)
}

func TestDecodeTruncatedHeaderNeedsMore(t *testing.T) {
	d := NewDecoder(DecoderOptions{}, defaultUnpackers())
	d.Feed([]byte{tagUint32, 0x00, 0x00})
	_, ok, err := d.Read()
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDecodeTrailingBytesFail(t *testing.T) {
	_, err := Unpack([]byte{tagNil, tagNil})
	assert.Error(t, err)
	_, ok := err.(*MalformedFormatError)
	assert.True(t, ok)
}

func TestFullDecodeTrailingBytesFail(t *testing.T) {
	d := NewDecoder(DecoderOptions{}, defaultUnpackers())
	d.SetSource(bytes.NewReader([]byte{tagNil, tagNil}))
	_, err := d.FullDecode()
	assert.Error(t, err)
	_, ok := err.(*MalformedFormatError)
	assert.True(t, ok)
}

func TestDecodeUnknownExtensionFailsUnlessAllowed(t *testing.T) {
	payload := []byte{0xd4, 0x63, 0x00} // fixext1, type 99, one byte payload

	d := NewDecoder(DecoderOptions{}, NewUnpackerRegistry())
	d.Feed(payload)
	_, _, err := d.Read()
	assert.Error(t, err)
	_, ok := err.(*UnknownExtTypeError)
	assert.True(t, ok)

	d2 := NewDecoder(DecoderOptions{AllowUnknownExt: true}, NewUnpackerRegistry())
	d2.Feed(payload)
	v, ok2, err := d2.Read()
	require.NoError(t, err)
	require.True(t, ok2)
	assert.Equal(t, KindExtension, v.Kind)
	assert.EqualValues(t, 99, v.Ext.Type)
}

func TestSkipMatchesReadPosition(t *testing.T) {
	encoded, err := Pack([]Value{Int(1), String("hello"), Array(Int(2), Int(3))})
	require.NoError(t, err)
	tail := []byte{tagTrue}

	skipper := NewDecoder(DecoderOptions{}, defaultUnpackers())
	skipper.Feed(append(append([]byte{}, encoded...), tail...))
	skipped, err := skipper.Skip()
	require.NoError(t, err)
	require.True(t, skipped)
	next, ok, err := skipper.Read()
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, next.Bool)

	reader := NewDecoder(DecoderOptions{}, defaultUnpackers())
	reader.Feed(append(append([]byte{}, encoded...), tail...))
	_, ok, err = reader.Read()
	require.NoError(t, err)
	require.True(t, ok)
	next2, ok, err := reader.Read()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, next, next2, "Skip must leave the cursor at exactly the same position as Read")
}

func TestTypedReadersRejectWrongKind(t *testing.T) {
	d := NewDecoder(DecoderOptions{}, defaultUnpackers())
	d.Feed([]byte{tagNil})
	_, _, err := d.ReadInt()
	assert.Error(t, err)
	_, ok := err.(*TypeError)
	assert.True(t, ok)
}

func TestReadArrayHeaderExposesLastArrayElements(t *testing.T) {
	encoded, err := Pack([]Value{Int(1), Int(2), Int(3)})
	require.NoError(t, err)

	d := NewDecoder(DecoderOptions{}, defaultUnpackers())
	d.Feed(encoded)
	n, ok, err := d.ReadArrayHeader()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 3, n)
	assert.Equal(t, []Value{Int(1), Int(2), Int(3)}, d.LastArrayElements())
}

func TestEachStopsCleanlyBetweenValuesButFailsMidValue(t *testing.T) {
	encoded, err := Pack(Int(1))
	require.NoError(t, err)

	var got []Value
	d := NewDecoder(DecoderOptions{}, defaultUnpackers())
	d.SetSource(bytes.NewReader(encoded))
	require.NoError(t, d.Each(func(v Value) error {
		got = append(got, v)
		return nil
	}))
	assert.Equal(t, []Value{Int(1)}, got)

	d2 := NewDecoder(DecoderOptions{}, defaultUnpackers())
	d2.SetSource(bytes.NewReader([]byte{tagUint32, 0x00}))
	err = d2.Each(func(Value) error { return nil })
	assert.Error(t, err)
	_, ok := err.(*EOFError)
	assert.True(t, ok)
}

func TestEachOnPushBasedDecoderStopsCleanlyAtBoundaryWithoutSource(t *testing.T) {
	first, err := Pack(Int(1))
	require.NoError(t, err)
	second, err := Pack(String("hello"))
	require.NoError(t, err)

	d := NewDecoder(DecoderOptions{}, defaultUnpackers())
	d.Feed(first)
	d.Feed(second[:1])

	var got []Value
	require.NoError(t, d.Each(func(v Value) error {
		got = append(got, v)
		return nil
	}))
	assert.Equal(t, []Value{Int(1)}, got, "Each must drain every complete value and stop cleanly mid-value")

	d.Feed(second[1:])
	require.NoError(t, d.Each(func(v Value) error {
		got = append(got, v)
		return nil
	}))
	assert.Equal(t, []Value{Int(1), String("hello")}, got, "a later Feed followed by Each must resume where the previous call stopped")
}
