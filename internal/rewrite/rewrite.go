// Package rewrite collects range-based edits from independent passes and
// applies them to the original buffer in one coherent pass.
//
// Every edit is expressed in original-buffer byte offsets, so passes compose
// without knowing of each other. Overlapping delete ranges (e.g. a
// preprocessor-branch deletion that is a superset of an already-scheduled
// declaration deletion) are merged before application, so a region is
// removed exactly once.
package rewrite

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Degraded is the fixed output returned when the rewritten buffer cannot be
// materialized. By the time edits are applied other passes have already
// committed their decisions, so the applier degrades instead of panicking
// partway through emission.
const Degraded = "cpptrim error"

// ErrInvalidRange reports a delete or insert outside the original buffer.
var ErrInvalidRange = errors.New("edit range outside original buffer")

type deleteEdit struct {
	start uint32
	end   uint32
}

type insertEdit struct {
	offset uint32
	text   string
}

// Editor accumulates edits against one original buffer.
type Editor struct {
	source  []byte
	deletes []deleteEdit
	inserts []insertEdit
}

// NewEditor creates an editor for the given original buffer.
func NewEditor(source []byte) *Editor {
	return &Editor{source: source}
}

// Source returns the original buffer the editor was created with.
func (e *Editor) Source() []byte {
	return e.source
}

// Delete schedules removal of the half-open byte range [start, end).
func (e *Editor) Delete(start, end uint32) {
	if start == end {
		return
	}
	e.deletes = append(e.deletes, deleteEdit{start: start, end: end})
}

// InsertAt schedules insertion of text at the given byte offset.
func (e *Editor) InsertAt(offset uint32, text string) {
	if text == "" {
		return
	}
	e.inserts = append(e.inserts, insertEdit{offset: offset, text: text})
}

// HasEdits reports whether any edit has been scheduled.
func (e *Editor) HasEdits() bool {
	return len(e.deletes) > 0 || len(e.inserts) > 0
}

// Deleted reports whether the byte offset falls inside a scheduled delete.
func (e *Editor) Deleted(offset uint32) bool {
	for _, d := range e.deletes {
		if d.start <= offset && offset < d.end {
			return true
		}
	}
	return false
}

// Apply produces the rewritten buffer. With no edits the output is
// byte-identical to the input. On an invalid edit it returns the Degraded
// sentinel alongside the error rather than emitting a partial buffer.
func (e *Editor) Apply() (string, error) {
	if !e.HasEdits() {
		return string(e.source), nil
	}

	size := uint32(len(e.source))
	for _, d := range e.deletes {
		if d.start > d.end || d.end > size {
			return Degraded, fmt.Errorf("%w: delete [%d, %d) of %d bytes", ErrInvalidRange, d.start, d.end, size)
		}
	}
	for _, ins := range e.inserts {
		if ins.offset > size {
			return Degraded, fmt.Errorf("%w: insert at %d of %d bytes", ErrInvalidRange, ins.offset, size)
		}
	}

	merged := mergeDeletes(e.deletes)

	inserts := make([]insertEdit, len(e.inserts))
	copy(inserts, e.inserts)
	sort.SliceStable(inserts, func(i, j int) bool { return inserts[i].offset < inserts[j].offset })

	var out strings.Builder
	out.Grow(len(e.source))

	cursor := uint32(0)
	next := 0 // next insert to emit

	emitInserts := func(upto uint32) {
		for next < len(inserts) && inserts[next].offset <= upto {
			out.WriteString(inserts[next].text)
			next++
		}
	}

	flush := func(upto uint32) {
		for cursor < upto {
			end := upto
			if next < len(inserts) && inserts[next].offset < end {
				end = inserts[next].offset
			}
			out.Write(e.source[cursor:end])
			cursor = end
			emitInserts(cursor)
		}
		emitInserts(upto)
	}

	for _, d := range merged {
		flush(d.start)
		// Inserts inside a deleted region vanish with it.
		for next < len(inserts) && inserts[next].offset < d.end {
			next++
		}
		cursor = d.end
	}
	flush(size)

	return out.String(), nil
}

// mergeDeletes sorts delete ranges and coalesces overlapping or touching
// ones into single ranges.
func mergeDeletes(deletes []deleteEdit) []deleteEdit {
	if len(deletes) == 0 {
		return nil
	}

	sorted := make([]deleteEdit, len(deletes))
	copy(sorted, deletes)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].start != sorted[j].start {
			return sorted[i].start < sorted[j].start
		}
		return sorted[i].end < sorted[j].end
	})

	merged := sorted[:1]
	for _, d := range sorted[1:] {
		last := &merged[len(merged)-1]
		if d.start <= last.end {
			if d.end > last.end {
				last.end = d.end
			}
			continue
		}
		merged = append(merged, d)
	}
	return merged
}
