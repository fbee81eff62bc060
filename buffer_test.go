package msgpack

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBufferReadWriteRoundtrip(t *testing.T) {
	var b Buffer
	b.WriteByte('h')
	b.Write([]byte("ello"))
	b.WriteUint16BE(0x0102)

	data, ok, err := b.ReadBytes(5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), data)

	u, ok, err := b.ReadUint16BE()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, uint16(0x0102), u)

	assert.Equal(t, 0, b.Available())
}

func TestBufferPeekDoesNotConsume(t *testing.T) {
	var b Buffer
	b.Feed([]byte{1, 2, 3})

	c, ok, err := b.PeekByte()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, byte(1), c)

	c2, ok, err := b.ReadByte()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, c, c2)
}

func TestBufferNotEnoughDataNoSource(t *testing.T) {
	var b Buffer
	b.Feed([]byte{1, 2})

	_, ok, err := b.ReadBytes(3)
	require.NoError(t, err)
	assert.False(t, ok)

	// the short read must not have consumed anything
	assert.Equal(t, 2, b.Available())
}

func TestBufferSaveRestore(t *testing.T) {
	var b Buffer
	b.Feed([]byte("hello world"))

	mark := b.Save()
	_, _, err := b.ReadBytes(5)
	require.NoError(t, err)
	assert.Equal(t, 6, b.Available())

	b.Restore(mark)
	assert.Equal(t, 11, b.Available())
}

func TestBufferCoalescesSmallWrites(t *testing.T) {
	var b Buffer
	b.Write([]byte("a"))
	b.Write([]byte("b"))
	b.Write([]byte("c"))

	assert.Equal(t, 1, len(b.segs), "small writes below the coalesce threshold should merge into one segment")
	assert.Equal(t, []byte("abc"), b.Bytes())
}

func TestBufferPullsFromSource(t *testing.T) {
	var b Buffer
	b.SetSource(bytes.NewReader([]byte("hello")))

	data, ok, err := b.ReadBytes(5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("hello"), data)
}

func TestBufferSourceEOFPropagates(t *testing.T) {
	var b Buffer
	b.SetSource(bytes.NewReader([]byte("ab")))

	_, ok, err := b.ReadBytes(5)
	assert.False(t, ok)
	assert.ErrorIs(t, err, io.EOF)
}

func TestBufferFlushTo(t *testing.T) {
	var b Buffer
	b.Write([]byte("hello "))
	b.Write(bytes.Repeat([]byte("x"), 1024))

	var out bytes.Buffer
	require.NoError(t, b.FlushTo(&out))
	assert.Equal(t, 6+1024, out.Len())
	assert.Equal(t, 0, b.Available())
}

func TestBufferDiscard(t *testing.T) {
	var b Buffer
	b.Feed([]byte("hello world"))

	ok, err := b.Discard(6)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []byte("world"), b.Bytes())
}
