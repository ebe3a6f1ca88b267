package prune

import (
	"sort"

	"github.com/cpptrim/cpptrim/internal/rewrite"
	"github.com/cpptrim/cpptrim/internal/sema"
)

// MergeStats summarizes the namespace cleanup pass.
type MergeStats struct {
	RemovedBlocks int
	MergedBlocks  int
}

// MergeNamespaces cleans up namespace blocks after pruning: blocks whose
// every child was deleted are removed outright, and consecutive reopenings
// of the same namespace separated only by whitespace are fused into one.
//
// blocks must arrive innermost-first, so an emptied inner namespace is
// already a scheduled deletion when its parent is considered.
func MergeNamespaces(blocks []sema.NamespaceBlock, ed *rewrite.Editor) MergeStats {
	var stats MergeStats

	removed := make([]bool, len(blocks))
	for i, b := range blocks {
		if !blockEmpty(b, ed) {
			continue
		}
		removed[i] = true
		stats.RemovedBlocks++
		ext := extendRange(ed.Source(), b.Range, false)
		ed.Delete(ext.Start, ext.End)
	}

	survivors := make([]sema.NamespaceBlock, 0, len(blocks))
	for i, b := range blocks {
		if !removed[i] {
			survivors = append(survivors, b)
		}
	}
	sort.Slice(survivors, func(i, j int) bool {
		return survivors[i].Range.Start < survivors[j].Range.Start
	})

	source := ed.Source()
	for i := 0; i+1 < len(survivors); i++ {
		a, b := survivors[i], survivors[i+1]
		if a.Name == "" || a.Name != b.Name {
			continue
		}
		if a.Range.End > b.Range.Start {
			continue // nested, not adjacent
		}
		if !whitespaceBetween(source, a.Range.End, b.Range.Start, ed) {
			continue
		}
		// Drop a's closing brace through b's opener; the bodies join.
		ed.Delete(a.Body.End, b.Body.Start)
		stats.MergedBlocks++
	}

	return stats
}

// blockEmpty reports whether every child of the block is already scheduled
// for deletion. A block that never had children is empty too.
func blockEmpty(b sema.NamespaceBlock, ed *rewrite.Editor) bool {
	for _, child := range b.Children {
		if child.Len() == 0 {
			continue
		}
		if !ed.Deleted(child.Start) || !ed.Deleted(child.End-1) {
			return false
		}
	}
	return true
}

// whitespaceBetween reports whether [from, to) holds nothing but whitespace
// or already-deleted bytes.
func whitespaceBetween(source []byte, from, to uint32, ed *rewrite.Editor) bool {
	for off := from; off < to; off++ {
		switch source[off] {
		case ' ', '\t', '\r', '\n':
		default:
			if !ed.Deleted(off) {
				return false
			}
		}
	}
	return true
}
