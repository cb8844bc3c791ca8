package store

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryReadMissingKeyReturnsEmptyObject(t *testing.T) {
	m := NewMemory()
	raw, err := m.Read(context.Background(), "missing")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))
}

func TestMemoryWriteReplacesWholeValue(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	require.NoError(t, m.Write(ctx, "k", json.RawMessage(`{"a":1,"b":2}`)))
	require.NoError(t, m.Write(ctx, "k", json.RawMessage(`{"c":3}`)))

	raw, err := m.Read(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"c":3}`, string(raw))
}

func TestMemoryRejectsInvalidJSON(t *testing.T) {
	err := NewMemory().Write(context.Background(), "k", json.RawMessage(`{not json`))
	require.Error(t, err)
	assert.True(t, IsStorageError(err))
}

func TestReadWriteJSON(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	var empty map[string][]int64
	require.NoError(t, ReadJSON(ctx, m, KeyPinCounts, &empty))
	assert.Empty(t, empty)

	in := map[string][]int64{"acct": {1, 2, 3}}
	require.NoError(t, WriteJSON(ctx, m, KeyPinCounts, in))

	var out map[string][]int64
	require.NoError(t, ReadJSON(ctx, m, KeyPinCounts, &out))
	assert.Equal(t, in, out)
}

func TestReadJSONDecodeErrorIsStorageError(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, m.Write(ctx, "k", json.RawMessage(`[1,2]`)))

	var out map[string]string
	err := ReadJSON(ctx, m, "k", &out)
	require.Error(t, err)

	var se *Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "decode", se.Op)
	assert.Equal(t, "k", se.Key)
}
