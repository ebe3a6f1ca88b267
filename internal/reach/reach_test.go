package reach

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cpptrim/cpptrim/internal/sema"
)

func buildGraph(entries []uint32, edges [][2]uint32) *sema.Graph {
	g := sema.NewGraph()
	for _, e := range entries {
		g.AddEntry(e)
	}
	for _, edge := range edges {
		g.AddEdge(edge[0], edge[1])
	}
	return g
}

func TestUsedSimpleChain(t *testing.T) {
	g := buildGraph([]uint32{0}, [][2]uint32{{0, 1}, {1, 2}, {3, 4}})

	used := Used(g)

	assert.True(t, used.Contains(0))
	assert.True(t, used.Contains(1))
	assert.True(t, used.Contains(2))
	assert.False(t, used.Contains(3))
	assert.False(t, used.Contains(4))
}

func TestUsedTerminatesOnCycles(t *testing.T) {
	// Mutual recursion plus a self-loop must not loop forever.
	g := buildGraph([]uint32{0}, [][2]uint32{{0, 1}, {1, 0}, {1, 1}, {1, 2}})

	used := Used(g)

	assert.Equal(t, uint64(3), used.GetCardinality())
}

func TestUsedMultipleEntries(t *testing.T) {
	g := buildGraph([]uint32{0, 5}, [][2]uint32{{0, 1}, {5, 6}})

	used := Used(g)

	for _, id := range []uint32{0, 1, 5, 6} {
		assert.True(t, used.Contains(id), "id %d should be used", id)
	}
}

func TestUsedOrderIndependent(t *testing.T) {
	forward := buildGraph([]uint32{0}, [][2]uint32{{0, 1}, {0, 2}, {1, 3}, {2, 3}})
	reverse := buildGraph([]uint32{0}, [][2]uint32{{2, 3}, {1, 3}, {0, 2}, {0, 1}})

	a := Used(forward)
	b := Used(reverse)

	assert.True(t, a.Equals(b))
}

func TestUsedEmptyGraph(t *testing.T) {
	used := Used(sema.NewGraph())
	assert.True(t, used.IsEmpty())
}
