// Package pp tracks preprocessor facts while the tree is scanned and, once
// pruning decisions are final, removes inactive conditional branches and
// dead macro definitions.
//
// The package follows a strict two-phase protocol. Scan records raw facts in
// document order: which branch of every conditional group was taken (decided
// solely by directive evaluation, never by declaration reachability), the
// byte range of every branch, and every macro definition and expansion site.
// Finalize consumes those facts only after the removed-declaration set is
// known, because macro liveness depends on which code survives.
package pp

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/cpptrim/cpptrim/internal/rewrite"
	"github.com/cpptrim/cpptrim/internal/sema"
)

// Branch is one arm of a conditional-inclusion group.
type Branch struct {
	DirStart  uint32 // start of the guarding directive line
	BodyStart uint32 // first byte after the directive line
	End       uint32 // start of the next directive of the group
	Taken     bool
}

// Group is one #if/#ifdef ... #endif chain.
type Group struct {
	Range    sema.Range // directive of the first branch through the #endif line
	Branches []Branch
	AnyTaken bool
	// Indeterminate groups had a condition the evaluator could not decide;
	// they are never pruned and every branch is treated as active.
	Indeterminate bool
}

// Macro records one #define with its observed expansion sites.
type Macro struct {
	Name         string
	FunctionLike bool
	Definition   sema.Range
	Expansions   []sema.Range
}

// Tracker accumulates preprocessor facts for one translation unit.
type Tracker struct {
	source   []byte
	defines  map[string]string // current values for condition evaluation
	groups   []*Group
	macros   []*Macro
	byName   map[string]*Macro
	inactive []sema.Range // body ranges excluded by directive evaluation
}

// NewTracker creates a tracker seeded with command-line style defines
// (NAME -> replacement text, "1" for bare defines).
func NewTracker(source []byte, defines map[string]string) *Tracker {
	t := &Tracker{
		source:  source,
		defines: make(map[string]string, len(defines)),
		byName:  make(map[string]*Macro),
	}
	for k, v := range defines {
		t.defines[k] = v
	}
	return t
}

// Scan walks the tree in document order recording directive and macro facts.
// Subtrees excluded by an untaken branch are not descended into: they
// contribute no macro definitions and no expansion sites.
func (t *Tracker) Scan(root *sitter.Node) {
	t.scanChildren(root)
	t.recordMacroCrossReferences()
}

// Groups returns the recorded conditional groups in document order.
func (t *Tracker) Groups() []*Group {
	return t.groups
}

// Macros returns the recorded macros in definition order.
func (t *Tracker) Macros() []*Macro {
	return t.macros
}

// InactiveRanges returns the body ranges excluded by directive evaluation.
// The collector uses these to keep excluded declarations out of the graph.
func (t *Tracker) InactiveRanges() []sema.Range {
	return t.inactive
}

// IsActive reports whether the byte offset lies outside every untaken
// branch.
func (t *Tracker) IsActive(off uint32) bool {
	for _, r := range t.inactive {
		if r.ContainsOffset(off) {
			return false
		}
	}
	return true
}

func (t *Tracker) scanChildren(node *sitter.Node) {
	for i := range int(node.ChildCount()) {
		t.scanNode(node.Child(i))
	}
}

func (t *Tracker) scanNode(node *sitter.Node) {
	switch node.Type() {
	case "preproc_ifdef", "preproc_if":
		t.scanConditional(node)
	case "preproc_def", "preproc_function_def":
		t.scanDefine(node)
	case "preproc_call":
		t.scanCall(node)
	case "identifier", "type_identifier", "field_identifier":
		t.recordExpansion(node)
	default:
		t.scanChildren(node)
	}
}

// scanConditional records one whole #if chain and descends only into the
// branches that directive evaluation keeps.
func (t *Tracker) scanConditional(top *sitter.Node) {
	group := &Group{}

	endifStart := top.EndByte()
	for i := range int(top.ChildCount()) {
		if c := top.Child(i); c.Type() == "#endif" {
			endifStart = c.StartByte()
		}
	}
	group.Range = sema.Range{Start: top.StartByte(), End: t.lineEnd(endifStart)}

	type arm struct {
		node *sitter.Node
		body []*sitter.Node
	}
	var arms []arm

	node := top
	for node != nil {
		var alt *sitter.Node
		a := arm{node: node}
		for _, child := range namedChildren(node) {
			switch child.Type() {
			case "preproc_elif", "preproc_else", "preproc_elifdef":
				alt = child
			default:
				if fieldIsCondition(node, child) {
					continue
				}
				a.body = append(a.body, child)
			}
		}
		arms = append(arms, a)
		node = alt
	}

	// Macro names tested by the directives are usage sites: a surviving
	// directive keeps the macros it reads. References inside directives
	// that are later deleted fall inside the deleted ranges and do not
	// count against liveness.
	for _, a := range arms {
		if cond := a.node.ChildByFieldName("condition"); cond != nil {
			t.recordConditionRefs(cond)
		} else if name := a.node.ChildByFieldName("name"); name != nil {
			t.recordConditionRefs(name)
		}
	}

	prevTaken := false
	for i, a := range arms {
		dirStart := a.node.StartByte()
		bodyStart := t.branchBodyStart(a.node)
		end := endifStart
		if i+1 < len(arms) {
			end = arms[i+1].node.StartByte()
		}

		taken, known := t.armTaken(a.node, prevTaken)
		if !known {
			group.Indeterminate = true
		}
		prevTaken = prevTaken || taken

		group.Branches = append(group.Branches, Branch{
			DirStart:  dirStart,
			BodyStart: bodyStart,
			End:       end,
			Taken:     taken,
		})
	}
	group.AnyTaken = prevTaken

	t.groups = append(t.groups, group)

	// Descend. Indeterminate groups keep every branch alive.
	for i, a := range arms {
		b := group.Branches[i]
		if b.Taken || group.Indeterminate {
			for _, child := range a.body {
				t.scanNode(child)
			}
		} else {
			t.inactive = append(t.inactive, sema.Range{Start: b.BodyStart, End: b.End})
		}
	}
}

// armTaken evaluates whether one arm of a chain is the taken branch.
func (t *Tracker) armTaken(node *sitter.Node, prevTaken bool) (taken, known bool) {
	if prevTaken {
		return false, true
	}

	switch node.Type() {
	case "preproc_else":
		return true, true
	case "preproc_ifdef":
		name := parserText(node.ChildByFieldName("name"), t.source)
		_, defined := t.defines[name]
		negated := strings.HasPrefix(parserText(node.Child(0), t.source), "#ifndef")
		return defined != negated, true
	default: // preproc_if, preproc_elif
		cond := node.ChildByFieldName("condition")
		v, ok := t.eval(cond, 0)
		if !ok {
			return true, false
		}
		return v != 0, true
	}
}

// branchBodyStart returns the first byte after the arm's directive line.
func (t *Tracker) branchBodyStart(node *sitter.Node) uint32 {
	anchor := node.StartByte()
	if cond := node.ChildByFieldName("condition"); cond != nil {
		anchor = cond.EndByte()
	} else if name := node.ChildByFieldName("name"); name != nil {
		anchor = name.EndByte()
	}
	return t.lineEnd(anchor)
}

func (t *Tracker) scanDefine(node *sitter.Node) {
	name := parserText(node.ChildByFieldName("name"), t.source)
	if name == "" {
		return
	}

	value := strings.TrimSpace(parserText(node.ChildByFieldName("value"), t.source))
	t.defines[name] = value

	m := &Macro{
		Name:         name,
		FunctionLike: node.Type() == "preproc_function_def",
		Definition:   sema.Range{Start: node.StartByte(), End: t.lineEnd(node.EndByte() - 1)},
	}
	t.macros = append(t.macros, m)
	t.byName[name] = m
}

// scanCall handles non-structural directives. An #undef of a tracked macro
// counts as an expansion site so a surviving #undef keeps its #define.
func (t *Tracker) scanCall(node *sitter.Node) {
	directive := parserText(node.ChildByFieldName("directive"), t.source)
	if directive != "#undef" {
		return
	}
	name := strings.TrimSpace(parserText(node.ChildByFieldName("argument"), t.source))
	delete(t.defines, name)
	if m, ok := t.byName[name]; ok {
		m.Expansions = append(m.Expansions, sema.Range{Start: node.StartByte(), End: node.EndByte()})
	}
}

// recordConditionRefs records expansion sites for every identifier inside
// a directive condition.
func (t *Tracker) recordConditionRefs(node *sitter.Node) {
	if node == nil {
		return
	}
	if node.Type() == "identifier" {
		t.recordExpansion(node)
		return
	}
	for i := range int(node.ChildCount()) {
		t.recordConditionRefs(node.Child(i))
	}
}

// recordExpansion notes an identifier that names an already-defined macro.
func (t *Tracker) recordExpansion(node *sitter.Node) {
	name := parserText(node, t.source)
	m, ok := t.byName[name]
	if !ok {
		return
	}
	r := sema.Range{Start: node.StartByte(), End: node.EndByte()}
	if m.Definition.Contains(r) {
		return
	}
	m.Expansions = append(m.Expansions, r)
}

// recordMacroCrossReferences scans macro replacement texts for names of
// other macros. tree-sitter keeps replacement text opaque, so a macro used
// only inside another macro's body would otherwise look unused; the
// reference is recorded at the referring macro's definition range.
func (t *Tracker) recordMacroCrossReferences() {
	for _, referrer := range t.macros {
		body := string(t.source[referrer.Definition.Start:min(referrer.Definition.End, uint32(len(t.source)))])
		for _, m := range t.macros {
			if m == referrer {
				continue
			}
			if containsWord(body, m.Name) {
				m.Expansions = append(m.Expansions, referrer.Definition)
			}
		}
	}
}

// Finalize prunes never-taken branches and dead macro definitions. removed
// holds the source ranges the lexical pruner deleted; keep lists macro names
// exempt from pruning.
func (t *Tracker) Finalize(removed []sema.Range, keep map[string]struct{}, ed *rewrite.Editor) {
	// Directive deletions count as removed ranges too: an expansion site
	// inside a deleted directive line keeps nothing alive.
	dead := make([]sema.Range, 0, len(removed)+len(t.groups))
	dead = append(dead, removed...)

	for _, g := range t.groups {
		if g.Indeterminate {
			continue
		}
		if !g.AnyTaken {
			ed.Delete(g.Range.Start, g.Range.End)
			dead = append(dead, g.Range)
			continue
		}
		for i, b := range g.Branches {
			if b.Taken {
				continue
			}
			if i == 0 {
				// The first directive anchors the chain's #elif/#else;
				// drop only the excluded body.
				ed.Delete(b.BodyStart, b.End)
				dead = append(dead, sema.Range{Start: b.BodyStart, End: b.End})
			} else {
				ed.Delete(b.DirStart, b.End)
				dead = append(dead, sema.Range{Start: b.DirStart, End: b.End})
			}
		}
	}

	for _, m := range t.macros {
		if _, ok := keep[m.Name]; ok {
			continue
		}
		if t.macroLive(m, dead) {
			continue
		}
		ed.Delete(m.Definition.Start, m.Definition.End)
	}
}

// macroLive reports whether any expansion site survives pruning. A macro
// with no expansion sites at all is dead.
func (t *Tracker) macroLive(m *Macro, removed []sema.Range) bool {
	for _, exp := range m.Expansions {
		if !insideAny(exp, removed) {
			return true
		}
	}
	return false
}

func insideAny(r sema.Range, ranges []sema.Range) bool {
	for _, outer := range ranges {
		if outer.Contains(r) {
			return true
		}
	}
	return false
}

// lineEnd returns the offset just past the newline of the line containing
// off, or the buffer end.
func (t *Tracker) lineEnd(off uint32) uint32 {
	i := off
	for i < uint32(len(t.source)) {
		if t.source[i] == '\n' {
			return i + 1
		}
		i++
	}
	return i
}

func namedChildren(node *sitter.Node) []*sitter.Node {
	count := int(node.NamedChildCount())
	children := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		children = append(children, node.NamedChild(i))
	}
	return children
}

func fieldIsCondition(parent, child *sitter.Node) bool {
	if c := parent.ChildByFieldName("condition"); c != nil && c.Equal(child) {
		return true
	}
	if n := parent.ChildByFieldName("name"); n != nil && n.Equal(child) {
		return true
	}
	return false
}

func parserText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start, end := node.StartByte(), node.EndByte()
	if start > end || end > uint32(len(source)) {
		return ""
	}
	return string(source[start:end])
}

// containsWord reports whether name appears in text delimited by
// non-identifier characters.
func containsWord(text, name string) bool {
	for i := 0; ; {
		j := strings.Index(text[i:], name)
		if j < 0 {
			return false
		}
		j += i
		before := j == 0 || !identChar(text[j-1])
		afterIdx := j + len(name)
		after := afterIdx >= len(text) || !identChar(text[afterIdx])
		if before && after {
			return true
		}
		i = j + 1
	}
}

func identChar(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}
