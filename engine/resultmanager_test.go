package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultManager_AddAndGet(t *testing.T) {
	rm := NewResultManager()
	rm.Add("fetch", 42)

	v, ok := rm.Get("fetch")
	require.True(t, ok)
	assert.Equal(t, 42, v)

	_, ok = rm.Get("missing")
	assert.False(t, ok)
}

func TestResultManager_CommitBatch_LaterWins(t *testing.T) {
	rm := NewResultManager()
	rm.Add("a", "first")
	rm.CommitBatch(map[string]interface{}{"a": "second", "b": "third"})

	va, _ := rm.Get("a")
	vb, _ := rm.Get("b")
	assert.Equal(t, "second", va)
	assert.Equal(t, "third", vb)
}

func TestResultManager_HasAll(t *testing.T) {
	rm := NewResultManager()
	rm.Add("a", 1)
	assert.False(t, rm.HasAll([]string{"a", "b"}))
	rm.Add("b", 2)
	assert.True(t, rm.HasAll([]string{"a", "b"}))
}

func TestResultManager_ArchiveCurrent(t *testing.T) {
	rm := NewResultManager()
	rm.Add("a", 1)
	rm.ArchiveCurrent()

	assert.Equal(t, 0, rm.CompletedCount())
	history := rm.History()
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0]["a"])
}

func TestResultManager_AllIsACopy(t *testing.T) {
	rm := NewResultManager()
	rm.Add("a", 1)
	snapshot := rm.All()
	snapshot["a"] = 999

	v, _ := rm.Get("a")
	assert.Equal(t, 1, v)
}
