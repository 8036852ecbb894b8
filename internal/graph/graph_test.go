package graph

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestFlatten_Linear(t *testing.T) {
	g := New[string, string]()
	g.AddEdge("a", "dep", "b")
	g.AddEdge("b", "dep", "c")
	g.AddEdge("a", "dep", "c")

	order, err := g.Flatten()
	require.NoError(t, err)

	pos := make(map[string]int, len(order))
	for i, v := range order {
		pos[v] = i
	}
	require.Less(t, pos["a"], pos["b"])
	require.Less(t, pos["b"], pos["c"])
	require.Less(t, pos["a"], pos["c"])
}

func TestFlatten_Deterministic(t *testing.T) {
	build := func() *Graph[string, string] {
		g := New[string, string]()
		g.AddVertex("x")
		g.AddVertex("y")
		g.AddVertex("z")
		return g
	}

	first, err := build().Flatten()
	require.NoError(t, err)
	second, err := build().Flatten()
	require.NoError(t, err)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("Flatten order not deterministic across identical builds (-first +second):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"x", "y", "z"}, first); diff != "" {
		t.Fatalf("unexpected order (-want +got):\n%s", diff)
	}
}

func TestFlatten_Cycle(t *testing.T) {
	g := New[string, string]()
	g.AddEdge("x", "needs", "y")
	g.AddEdge("y", "needs", "x")

	_, err := g.Flatten()
	require.Error(t, err)

	var cycleErr *CycleError[string]
	require.ErrorAs(t, err, &cycleErr)
	require.ElementsMatch(t, []string{"x", "y"}, cycleErr.Remaining)
}

func TestFlatten_Empty(t *testing.T) {
	g := New[int, struct{}]()
	order, err := g.Flatten()
	require.NoError(t, err)
	require.Empty(t, order)
}
