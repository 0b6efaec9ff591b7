package memory

import (
	"context"
	"testing"

	"github.com/flowforge/agentcore/agenterrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_AddSourceBecomesDefault(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	require.NoError(t, m.AddSource(ctx, "scratch", NewInProcess(), nil))
	assert.Equal(t, "scratch", m.DefaultSource())
}

func TestManager_StoreRetrieveDefault(t *testing.T) {
	m := NewManager()
	ctx := context.Background()
	require.NoError(t, m.AddSource(ctx, "scratch", NewInProcess(), nil))

	require.NoError(t, m.Store(ctx, "k", "v", Opts{}))
	got, err := m.Retrieve(ctx, "k", Opts{})
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestManager_UnknownSource(t *testing.T) {
	m := NewManager()
	ctx := context.Background()
	require.NoError(t, m.AddSource(ctx, "scratch", NewInProcess(), nil))

	_, err := m.Retrieve(ctx, "k", Opts{Source: "nope"})
	require.Error(t, err)
	assert.ErrorIs(t, err, agenterrors.ErrUnknownSource)
}

func TestManager_OperationNotSupported(t *testing.T) {
	m := NewManager()
	ctx := context.Background()

	lim := &limitedOnly{}
	require.NoError(t, m.AddSource(ctx, "limited", lim, nil))

	err := m.Clear(ctx, Opts{})
	require.Error(t, err)
	assert.ErrorIs(t, err, agenterrors.ErrOperationNotSupported)
}

// limitedOnly implements just the required Backend surface, nothing more.
type limitedOnly struct {
	data map[string]interface{}
}

func (l *limitedOnly) Store(_ context.Context, key string, value interface{}) error {
	if l.data == nil {
		l.data = map[string]interface{}{}
	}
	l.data[key] = value
	return nil
}
func (l *limitedOnly) Retrieve(_ context.Context, key string) (interface{}, error) {
	return l.data[key], nil
}
func (l *limitedOnly) Search(_ context.Context, _ string) ([]Entry, error) { return nil, nil }
func (l *limitedOnly) Delete(_ context.Context, key string) error         { delete(l.data, key); return nil }
func (l *limitedOnly) ListKeys(_ context.Context) ([]string, error)       { return nil, nil }

func TestManager_RemoveSourceReassignsDefault(t *testing.T) {
	m := NewManager()
	ctx := context.Background()
	require.NoError(t, m.AddSource(ctx, "first", NewInProcess(), nil))
	require.NoError(t, m.AddSource(ctx, "second", NewInProcess(), nil))

	require.NoError(t, m.RemoveSource(ctx, "first"))
	assert.Equal(t, "second", m.DefaultSource())
}

func TestManager_RemoveUnknownSource(t *testing.T) {
	m := NewManager()
	err := m.RemoveSource(context.Background(), "nope")
	require.Error(t, err)
	assert.ErrorIs(t, err, agenterrors.ErrUnknownSource)
}
