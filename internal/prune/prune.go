// Package prune turns reachability results into scheduled deletions. It
// decides which lexical occurrences go, extends each deletion over the
// separators around it so the remaining text stays well-formed, and hands
// the final removed set to later passes.
package prune

import (
	"github.com/RoaringBitmap/roaring/v2"

	"github.com/cpptrim/cpptrim/internal/rewrite"
	"github.com/cpptrim/cpptrim/internal/sema"
)

// Stats summarizes one pruning pass.
type Stats struct {
	Decls         int
	RemovedDecls  int
	RemovedRanges int
}

// Result reports which declarations were removed and the extended byte
// ranges scheduled for deletion, in scheduling order.
type Result struct {
	Removed *roaring.Bitmap
	Ranges  []sema.Range
	Stats   Stats
}

// occupant is one declaration's claim on a shared lexical range.
type occupant struct {
	decl *sema.Decl
	occ  sema.Occurrence
}

// Prune schedules deletion of every lexical range owned exclusively by
// unused declarations, plus redundant forward declarations of kept classes.
// used holds the declaration IDs reachable from the entry points.
func Prune(info *sema.SourceInfo, used *roaring.Bitmap, ed *rewrite.Editor) *Result {
	res := &Result{Removed: roaring.New()}
	res.Stats.Decls = info.Table.Len()

	for _, d := range info.Table.All() {
		if !used.Contains(d.ID) {
			res.Removed.Add(d.ID)
			res.Stats.RemovedDecls++
		}
	}

	// Declarators may share one statement, and a forward declaration may
	// share its wrapper with another entity. A range goes only when every
	// declaration occupying it is unused.
	groups := make(map[sema.Range][]occupant)
	var order []sema.Range
	for _, d := range info.Table.All() {
		for _, occ := range d.Occurrences {
			if _, ok := groups[occ.Range]; !ok {
				order = append(order, occ.Range)
			}
			groups[occ.Range] = append(groups[occ.Range], occupant{decl: d, occ: occ})
		}
	}

	for _, r := range order {
		occupants := groups[r]
		if !allRemoved(occupants, res.Removed) {
			continue
		}
		res.scheduleDelete(ed, r, anySpecifierOnly(occupants))
	}

	// A kept class whose definition survives does not need its forward
	// declarations, unless another kept declaration shares the range.
	for _, d := range info.Table.All() {
		if res.Removed.Contains(d.ID) || !d.HasDefinition() {
			continue
		}
		if d.Kind != sema.KindClass && d.Kind != sema.KindClassTemplate {
			continue
		}
		for _, occ := range d.Occurrences {
			if occ.IsDefinition {
				continue
			}
			if sharedWithKept(groups[occ.Range], d, res.Removed) {
				continue
			}
			res.scheduleDelete(ed, occ.Range, occ.SpecifierOnly)
		}
	}

	return res
}

func (res *Result) scheduleDelete(ed *rewrite.Editor, r sema.Range, specifierOnly bool) {
	ext := extendRange(ed.Source(), r, specifierOnly)
	ed.Delete(ext.Start, ext.End)
	res.Ranges = append(res.Ranges, ext)
	res.Stats.RemovedRanges++
}

func allRemoved(occupants []occupant, removed *roaring.Bitmap) bool {
	for _, o := range occupants {
		if !removed.Contains(o.decl.ID) {
			return false
		}
	}
	return len(occupants) > 0
}

func anySpecifierOnly(occupants []occupant) bool {
	for _, o := range occupants {
		if o.occ.SpecifierOnly {
			return true
		}
	}
	return false
}

func sharedWithKept(occupants []occupant, self *sema.Decl, removed *roaring.Bitmap) bool {
	for _, o := range occupants {
		if o.decl.ID != self.ID && !removed.Contains(o.decl.ID) {
			return true
		}
	}
	return false
}

// extendRange widens a deletion over the separators that would otherwise be
// orphaned: horizontal whitespace before it, the trailing semicolon of a
// bare specifier, and at most one line break after it.
func extendRange(source []byte, r sema.Range, specifierOnly bool) sema.Range {
	start, end := r.Start, r.End
	size := uint32(len(source))
	if end > size {
		end = size
	}

	for start > 0 && isHorizontalSpace(source[start-1]) {
		start--
	}

	if specifierOnly {
		probe := end
		for probe < size && isHorizontalSpace(source[probe]) {
			probe++
		}
		if probe < size && source[probe] == ';' {
			end = probe + 1
		}
	}

	for end < size && isHorizontalSpace(source[end]) {
		end++
	}

	// Swallow the line break only when the deletion owns the whole line;
	// otherwise kept text before it would merge with the next line.
	if start == 0 || source[start-1] == '\n' {
		if end < size && source[end] == '\r' {
			end++
		}
		if end < size && source[end] == '\n' {
			end++
		}
	}

	return sema.Range{Start: start, End: end}
}

func isHorizontalSpace(b byte) bool {
	return b == ' ' || b == '\t'
}
