package sqlite

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/jusunglee/mjpin/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestReadMissingKey(t *testing.T) {
	s := newTestStore(t)
	raw, err := s.Read(context.Background(), "nope")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(raw))
}

func TestUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.Write(ctx, store.KeyModelSettings, json.RawMessage(`{"guild-1":"gpt-4o"}`)))
	require.NoError(t, s.Write(ctx, store.KeyModelSettings, json.RawMessage(`{"guild-1":"gpt-5"}`)))

	raw, err := s.Read(ctx, store.KeyModelSettings)
	require.NoError(t, err)
	assert.JSONEq(t, `{"guild-1":"gpt-5"}`, string(raw))
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "mjpin.db")

	s, err := New(ctx, "sqlite://"+path)
	require.NoError(t, err)
	require.NoError(t, s.Write(ctx, "k", json.RawMessage(`{"v":1}`)))
	require.NoError(t, s.Close())

	s, err = New(ctx, path)
	require.NoError(t, err)
	defer s.Close()

	raw, err := s.Read(ctx, "k")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(raw))
}

func TestWriteRejectsInvalidJSON(t *testing.T) {
	s := newTestStore(t)
	err := s.Write(context.Background(), "k", json.RawMessage(`nope`))
	assert.True(t, store.IsStorageError(err))
}
