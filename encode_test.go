package msgpack

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func packHex(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := Pack(v)
	require.NoError(t, err)
	return hex.EncodeToString(b)
}

func TestEncodeIntegerWidthSelection(t *testing.T) {
	assert.Equal(t, "7f", packHex(t, 127))
	assert.Equal(t, "cc80", packHex(t, 128))
	assert.Equal(t, "cd0100", packHex(t, 256))
	assert.Equal(t, "ff", packHex(t, -1))
	assert.Equal(t, "d0df", packHex(t, -33))
	assert.Equal(t, "d1ff7f", packHex(t, -129))
}

func TestEncodeFloat64(t *testing.T) {
	assert.Equal(t, "cb3ff0000000000000", packHex(t, 1.0))
}

func TestEncodeArrays(t *testing.T) {
	assert.Equal(t, "90", packHex(t, []Value{}))

	fifteen := make([]Value, 15)
	for i := range fifteen {
		fifteen[i] = Int(int64(i))
	}
	assert.Equal(t, "9f000102030405060708090a0b0c0d0e", packHex(t, fifteen))

	sixteen := make([]Value, 16)
	for i := range sixteen {
		sixteen[i] = Int(int64(i))
	}
	assert.Equal(t, "dc0010000102030405060708090a0b0c0d0e0f", packHex(t, sixteen))
}

func TestEncodeMaps(t *testing.T) {
	assert.Equal(t, "80", packHex(t, []MapEntry{}))
	assert.Equal(t, "810101", packHex(t, []MapEntry{Entry(Int(1), Int(1))}))
}

func TestEncodeExtensionChoosesExt8WhenNoFixextWidthFits(t *testing.T) {
	e := NewEncoder(nil, EncoderOptions{}, nil)
	require.NoError(t, e.WriteExtension(7, []byte{0x92, 0x0a, 0x14}))
	out, err := e.Finalize()
	require.NoError(t, err)
	assert.Equal(t, "c70307920a14", hex.EncodeToString(out))
}

func TestEncodeTimestamp4ByteForm(t *testing.T) {
	assert.Equal(t, "d6ff6553f100", packHex(t, Timestamp{Seconds: 1700000000}))
}

func TestEncodeTimestamp8ByteForm(t *testing.T) {
	ts := Timestamp{Seconds: 1700000000, Nanoseconds: 123456789}
	payload := encodeTimestampPayload(ts)
	assert.Equal(t, 8, len(payload))

	decoded, err := decodeTimestampPayload(payload)
	require.NoError(t, err)
	assert.Equal(t, ts, decoded)
}

func TestEncodeStringWidthTiers(t *testing.T) {
	short := "hi"
	assert.Equal(t, byte(tagFixStrMin)|2, mustFirstByte(t, short))

	mid := make([]byte, 200)
	assert.Equal(t, tagStr8, mustFirstByte(t, string(mid)))

	long := make([]byte, 1000)
	assert.Equal(t, tagStr16, mustFirstByte(t, string(long)))
}

func mustFirstByte(t *testing.T, s string) byte {
	t.Helper()
	b, err := Pack(s)
	require.NoError(t, err)
	return b[0]
}

func TestEncodeCompatibilityModeSuppressesStr8AndBin(t *testing.T) {
	e := NewEncoder(nil, EncoderOptions{CompatibilityMode: true}, nil)
	require.NoError(t, e.WriteString(string(make([]byte, 200))))
	out, err := e.Finalize()
	require.NoError(t, err)
	assert.Equal(t, tagStr16, out[0], "compatibility mode must promote str8-sized strings to str16")

	e2 := NewEncoder(nil, EncoderOptions{CompatibilityMode: true}, nil)
	require.NoError(t, e2.WriteBinary([]byte("hi")))
	out2, err := e2.Finalize()
	require.NoError(t, err)
	assert.Equal(t, byte(tagFixStrMin)|2, out2[0], "compatibility mode emits binary using string tags")
}

func TestEncodeInvalidUTF8Fails(t *testing.T) {
	_, err := Pack(string([]byte{0xff, 0xfe}))
	assert.Error(t, err)
	_, ok := err.(*EncodingError)
	assert.True(t, ok)
}

func TestEncodeNegativeLengthHeaderFails(t *testing.T) {
	e := NewEncoder(nil, EncoderOptions{}, nil)
	err := e.WriteArrayHeader(-1)
	assert.Error(t, err)
	_, ok := err.(*RangeError)
	assert.True(t, ok)
}

func TestEncodeRegistryPriorityOverBuiltin(t *testing.T) {
	now := time.Date(2023, time.November, 14, 22, 13, 20, 0, time.UTC)

	registry := NewPackerRegistry()
	require.NoError(t, registry.Register(99, time.Time{}, func(v interface{}) ([]byte, error) {
		return []byte("custom"), nil
	}, 0))

	e := NewEncoder(nil, EncoderOptions{}, registry)
	require.NoError(t, e.Write(now))
	out, err := e.Finalize()
	require.NoError(t, err)

	assert.Equal(t, tagExt8, out[0], "a registered packer for time.Time must win over the built-in timestamp handling")
	assert.Equal(t, byte(6), out[1], "custom payload is 6 bytes")
	assert.EqualValues(t, 99, int8(out[2]))
}

func TestEncodeNativeIntegerIgnoresRegistry(t *testing.T) {
	registry := NewPackerRegistry()
	require.NoError(t, registry.Register(50, int64(0), func(v interface{}) ([]byte, error) {
		return []byte{0xde, 0xad}, nil
	}, FlagOversizedInteger))

	e := NewEncoder(nil, EncoderOptions{}, registry)
	require.NoError(t, e.Write(int64(127)))
	out, err := e.Finalize()
	require.NoError(t, err)

	assert.Equal(t, "7f", hex.EncodeToString(out), "native integers must always use built-in tags even when the exact type carries a registration")
}
