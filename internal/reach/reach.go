// Package reach computes the set of declarations transitively reachable from
// the entry points of the dependency graph.
package reach

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/cpptrim/cpptrim/internal/sema"
)

// Used computes the used set: every canonical declaration reachable from an
// entry point. Standard worklist search; the visited bitmap breaks cycles,
// and traversal order does not affect the result.
func Used(graph *sema.Graph) *roaring.Bitmap {
	used := roaring.New()

	queue := make([]uint32, 0, len(graph.Entries()))
	queue = append(queue, graph.Entries()...)

	for len(queue) > 0 {
		id := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		if used.Contains(id) {
			continue
		}
		used.Add(id)

		queue = append(queue, graph.Successors(id)...)
	}

	return used
}
