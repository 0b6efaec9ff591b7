package dag

import (
	"errors"
	"testing"

	"github.com/flowforge/agentcore/agenterrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearChain() *DAG {
	return Build([]StageInput{
		{Name: "A"},
		{Name: "B", Dependencies: []string{"A"}},
		{Name: "C", Dependencies: []string{"B"}},
	})
}

func diamond() *DAG {
	return Build([]StageInput{
		{Name: "A"},
		{Name: "B", Dependencies: []string{"A"}},
		{Name: "C", Dependencies: []string{"A"}},
		{Name: "D", Dependencies: []string{"B", "C"}},
	})
}

func TestDAG_Validate_Linear(t *testing.T) {
	d := linearChain()
	require.NoError(t, d.Validate())
}

func TestDAG_Validate_UnresolvedDependency(t *testing.T) {
	d := Build([]StageInput{
		{Name: "A", Dependencies: []string{"ghost"}},
	})
	err := d.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, agenterrors.ErrUnresolvedDependency))
}

func TestDAG_Validate_Cycle(t *testing.T) {
	d := Build([]StageInput{
		{Name: "A", Dependencies: []string{"B"}},
		{Name: "B", Dependencies: []string{"A"}},
	})
	err := d.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, agenterrors.ErrCycleDetected))
}

func TestDAG_Validate_SelfLoop(t *testing.T) {
	d := Build([]StageInput{
		{Name: "A", Dependencies: []string{"A"}},
	})
	err := d.Validate()
	require.Error(t, err)
	assert.True(t, errors.Is(err, agenterrors.ErrCycleDetected))
}

func TestDAG_FindReadyNodes_Linear(t *testing.T) {
	d := linearChain()

	ready := d.FindReadyNodes(map[string]bool{})
	assert.Equal(t, []string{"A"}, ready)

	ready = d.FindReadyNodes(map[string]bool{"A": true})
	assert.Equal(t, []string{"B"}, ready)

	ready = d.FindReadyNodes(map[string]bool{"A": true, "B": true, "C": true})
	assert.Empty(t, ready)
}

func TestDAG_FindReadyNodes_Diamond(t *testing.T) {
	d := diamond()

	ready := d.FindReadyNodes(map[string]bool{})
	assert.Equal(t, []string{"A"}, ready)

	ready = d.FindReadyNodes(map[string]bool{"A": true})
	assert.ElementsMatch(t, []string{"B", "C"}, ready)

	ready = d.FindReadyNodes(map[string]bool{"A": true, "B": true, "C": true})
	assert.Equal(t, []string{"D"}, ready)

	ready = d.FindReadyNodes(map[string]bool{"A": true, "B": true, "C": true, "D": true})
	assert.Empty(t, ready)
}

func TestDAG_FindReadyNodes_EmptyIffCompleteOrBlocked(t *testing.T) {
	d := Build([]StageInput{
		{Name: "A", Dependencies: []string{"B"}},
		{Name: "B", Dependencies: []string{"A"}}, // unreachable without external seed
	})
	// Neither node can ever become ready: every unfinished node has an
	// unfinished dependency.
	ready := d.FindReadyNodes(map[string]bool{})
	assert.Empty(t, ready)
}

func TestDAG_ExecutionLevels_Diamond(t *testing.T) {
	d := diamond()
	levels := d.ExecutionLevels()
	require.Len(t, levels, 3)
	assert.Equal(t, []string{"A"}, levels[0])
	assert.ElementsMatch(t, []string{"B", "C"}, levels[1])
	assert.Equal(t, []string{"D"}, levels[2])
}

func TestDAG_Statistics(t *testing.T) {
	d := diamond()
	stats := d.Statistics()
	assert.Equal(t, 4, stats.TotalNodes)
	assert.Equal(t, 2, stats.MaxDependencies) // D depends on B and C
	assert.Equal(t, 2, stats.MaxDependents)   // A has dependents B and C
	assert.Equal(t, 2, stats.MaxParallelism)  // level {B, C}
	assert.Equal(t, 3, stats.Depth)
}

func TestDAG_Roots(t *testing.T) {
	d := diamond()
	assert.Equal(t, []string{"A"}, d.Roots())
}
