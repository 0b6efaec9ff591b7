package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInProcess_StoreRetrieve(t *testing.T) {
	s := NewInProcess()
	ctx := context.Background()

	require.NoError(t, s.Store(ctx, "k", "v"))
	got, err := s.Retrieve(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestInProcess_RetrieveMissing(t *testing.T) {
	s := NewInProcess()
	_, err := s.Retrieve(context.Background(), "missing")
	assert.Error(t, err)
}

func TestInProcess_Search(t *testing.T) {
	s := NewInProcess()
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, "user:1", "alice"))
	require.NoError(t, s.Store(ctx, "user:2", "bob"))
	require.NoError(t, s.Store(ctx, "order:1", "widget"))

	hits, err := s.Search(ctx, "user:")
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestInProcess_DeleteAndExists(t *testing.T) {
	s := NewInProcess()
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, "k", "v"))

	ok, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, s.Delete(ctx, "k"))
	ok, err = s.Exists(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestInProcess_Update(t *testing.T) {
	s := NewInProcess()
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, "counter", 1))

	err := s.Update(ctx, "counter", func(cur interface{}) (interface{}, error) {
		return cur.(int) + 1, nil
	})
	require.NoError(t, err)

	got, err := s.Retrieve(ctx, "counter")
	require.NoError(t, err)
	assert.Equal(t, 2, got)
}

func TestInProcess_Clear(t *testing.T) {
	s := NewInProcess()
	ctx := context.Background()
	require.NoError(t, s.Store(ctx, "k", "v"))
	require.NoError(t, s.Clear(ctx))

	keys, err := s.ListKeys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)
}
