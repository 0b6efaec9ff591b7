// Package dag builds and queries the immutable dependency graph of agent
// stages. It is deliberately the smallest, leaf-most package in the
// runtime: everything else (ResultManager, BatchManager, Coordinator)
// treats a *DAG as a read-only planning oracle.
package dag

import (
	"fmt"

	"github.com/flowforge/agentcore/agenterrors"
)

// Node is one stage in the graph.
type Node struct {
	Name         string
	Dependencies []string
	Dependents   []string
}

// DAG is an immutable (post-Build) directed acyclic graph keyed by stage
// name. Unlike gomind's mutable WorkflowDAG (which tracks per-node
// NodeStatus and is mutated in place as a workflow runs), this DAG never
// changes after Build: stage completion state lives in the engine's
// ResultManager instead, and FindReadyNodes here is a pure function of a
// caller-supplied completed set.
type DAG struct {
	nodes map[string]*Node
	order []string // insertion order, for deterministic iteration
	roots []string
}

// StageInput is the minimal shape Build needs from a stage definition.
type StageInput struct {
	Name         string
	Dependencies []string
}

// Build constructs nodes, edges and roots in one pass. It does not
// validate; call Validate separately.
func Build(stages []StageInput) *DAG {
	d := &DAG{nodes: make(map[string]*Node, len(stages))}

	for _, s := range stages {
		d.nodes[s.Name] = &Node{Name: s.Name, Dependencies: append([]string(nil), s.Dependencies...)}
		d.order = append(d.order, s.Name)
	}

	for _, name := range d.order {
		node := d.nodes[name]
		for _, dep := range node.Dependencies {
			if depNode, ok := d.nodes[dep]; ok {
				depNode.Dependents = append(depNode.Dependents, name)
			}
		}
		if len(node.Dependencies) == 0 {
			d.roots = append(d.roots, name)
		}
	}

	return d
}

// Validate detects cycles via three-color DFS (unseen/on-stack/done) and
// rejects any depends_on reference to a name that is not a node in the
// graph
func (d *DAG) Validate() error {
	for _, node := range d.nodes {
		for _, dep := range node.Dependencies {
			if _, ok := d.nodes[dep]; !ok {
				return fmt.Errorf("%w: stage %q depends on %q", agenterrors.ErrUnresolvedDependency, node.Name, dep)
			}
		}
	}

	const (
		unseen = 0
		onStack = 1
		done = 2
	)
	color := make(map[string]int, len(d.nodes))

	var visit func(name string) (string, bool)
	visit = func(name string) (string, bool) {
		color[name] = onStack
		node := d.nodes[name]
		for _, dep := range node.Dependencies {
			switch color[dep] {
			case onStack:
				return dep, true
			case unseen:
				if cyc, found := visit(dep); found {
					return cyc, true
				}
			}
		}
		color[name] = done
		return "", false
	}

	for _, name := range d.order {
		if color[name] == unseen {
			if cyc, found := visit(name); found {
				return fmt.Errorf("%w: involving stage %q", agenterrors.ErrCycleDetected, cyc)
			}
		}
	}
	return nil
}

// FindReadyNodes returns every node not already in completed whose
// dependencies are all present in completed. Order is deterministic by
// the insertion order Build saw
func (d *DAG) FindReadyNodes(completed map[string]bool) []string {
	var ready []string
	for _, name := range d.order {
		if completed[name] {
			continue
		}
		node := d.nodes[name]
		allDone := true
		for _, dep := range node.Dependencies {
			if !completed[dep] {
				allDone = false
				break
			}
		}
		if allDone {
			ready = append(ready, name)
		}
	}
	return ready
}

// Roots returns the stage names that have no dependencies, in insertion
// order.
func (d *DAG) Roots() []string {
	return append([]string(nil), d.roots...)
}

// Node returns the node for name, or nil if it does not exist.
func (d *DAG) Node(name string) *Node {
	return d.nodes[name]
}

// Names returns all node names in insertion order.
func (d *DAG) Names() []string {
	return append([]string(nil), d.order...)
}

// Len returns the number of nodes in the graph.
func (d *DAG) Len() int {
	return len(d.nodes)
}

// ExecutionLevels groups nodes by the round in which they could run if
// every ready node in a round were dispatched together — i.e. the
// parallelism structure of the graph, independent of any particular run's
// completion order. Grounded on gomind's WorkflowDAG.GetExecutionLevels;
// used for debugging/visualization, not by the scheduler itself (which
// always calls FindReadyNodes against the live completed set).
func (d *DAG) ExecutionLevels() [][]string {
	var levels [][]string
	processed := make(map[string]bool, len(d.nodes))

	for {
		var level []string
		for _, name := range d.order {
			if processed[name] {
				continue
			}
			node := d.nodes[name]
			ready := true
			for _, dep := range node.Dependencies {
				if !processed[dep] {
					ready = false
					break
				}
			}
			if ready {
				level = append(level, name)
			}
		}
		if len(level) == 0 {
			break
		}
		for _, name := range level {
			processed[name] = true
		}
		levels = append(levels, level)
	}
	return levels
}

// Statistics summarizes graph shape for observability.
type Statistics struct {
	TotalNodes      int
	MaxDependencies int
	MaxDependents   int
	MaxParallelism  int
	Depth           int
}

// Statistics computes Statistics for the graph.
func (d *DAG) Statistics() Statistics {
	stats := Statistics{TotalNodes: len(d.nodes)}
	for _, node := range d.nodes {
		if len(node.Dependencies) > stats.MaxDependencies {
			stats.MaxDependencies = len(node.Dependencies)
		}
		if len(node.Dependents) > stats.MaxDependents {
			stats.MaxDependents = len(node.Dependents)
		}
	}
	levels := d.ExecutionLevels()
	stats.Depth = len(levels)
	for _, level := range levels {
		if len(level) > stats.MaxParallelism {
			stats.MaxParallelism = len(level)
		}
	}
	return stats
}
