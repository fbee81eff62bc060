package msgpack

import (
	"math/big"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPackerRegistryDirectLookup(t *testing.T) {
	r := NewPackerRegistry()
	require.NoError(t, r.Register(7, big.NewInt(0), func(v interface{}) ([]byte, error) {
		return []byte(v.(*big.Int).String()), nil
	}, FlagOversizedInteger))

	entry, ok := r.Lookup(reflect.TypeOf(big.NewInt(0)))
	require.True(t, ok)
	assert.EqualValues(t, 7, entry.typeID)
}

func TestPackerRegistryRejectsBareIntegerKind(t *testing.T) {
	r := NewPackerRegistry()
	err := r.Register(7, int64(0), func(v interface{}) ([]byte, error) { return nil, nil }, 0)
	assert.Error(t, err)
	_, isRangeErr := err.(*RangeError)
	assert.True(t, isRangeErr)
}

func TestPackerRegistryAllowsOversizedIntegerKind(t *testing.T) {
	r := NewPackerRegistry()
	err := r.Register(7, int64(0), func(v interface{}) ([]byte, error) { return nil, nil }, FlagOversizedInteger)
	assert.NoError(t, err)
}

func TestPackerRegistryLookupMissReturnsFalse(t *testing.T) {
	r := NewPackerRegistry()
	require.NoError(t, r.Register(1, big.NewInt(0), func(v interface{}) ([]byte, error) { return nil, nil }, FlagOversizedInteger))

	_, ok := r.Lookup(reflect.TypeOf(""))
	assert.False(t, ok)
}

func TestUnpackerRegistrySlotLookup(t *testing.T) {
	r := NewUnpackerRegistry()
	require.NoError(t, r.Register(-5, "", func(payload []byte) (interface{}, error) {
		return string(payload), nil
	}, 0))

	entry, ok := r.Lookup(-5)
	require.True(t, ok)
	v, err := entry.simple([]byte("hi"))
	require.NoError(t, err)
	assert.Equal(t, "hi", v)

	_, ok = r.Lookup(-6)
	assert.False(t, ok)
}

func TestRegistryCloneIsIndependent(t *testing.T) {
	r := NewPackerRegistry()
	require.NoError(t, r.Register(1, "", func(v interface{}) ([]byte, error) { return nil, nil }, 0))

	clone := r.Clone()
	require.NoError(t, clone.Register(2, 0.0, func(v interface{}) ([]byte, error) { return nil, nil }, 0))

	_, ok := r.Lookup(reflect.TypeOf(0.0))
	assert.False(t, ok, "registering on a clone must not affect the original registry")

	_, ok = clone.Lookup(reflect.TypeOf(0.0))
	assert.True(t, ok)
}
