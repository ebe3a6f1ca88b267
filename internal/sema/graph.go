package sema

// Graph is the directed dependency graph over canonical declarations.
// An edge A -> B means A's definition or initializer names B. Cycles are
// expected (mutual recursion); self-loops are harmless.
type Graph struct {
	succ    map[uint32][]uint32
	seen    map[uint64]struct{} // edge dedup
	entries []uint32
	entrySet map[uint32]struct{}
}

// NewGraph creates an empty dependency graph.
func NewGraph() *Graph {
	return &Graph{
		succ:     make(map[uint32][]uint32),
		seen:     make(map[uint64]struct{}),
		entrySet: make(map[uint32]struct{}),
	}
}

// AddEdge records a dependency from one declaration to another.
// Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to uint32) {
	key := uint64(from)<<32 | uint64(to)
	if _, ok := g.seen[key]; ok {
		return
	}
	g.seen[key] = struct{}{}
	g.succ[from] = append(g.succ[from], to)
}

// Successors returns the outgoing edge targets of a declaration in
// insertion order.
func (g *Graph) Successors(id uint32) []uint32 {
	return g.succ[id]
}

// AddEntry marks a declaration as an entry point that must always be kept.
func (g *Graph) AddEntry(id uint32) {
	if _, ok := g.entrySet[id]; ok {
		return
	}
	g.entrySet[id] = struct{}{}
	g.entries = append(g.entries, id)
}

// Entries returns entry-point declarations in insertion order.
func (g *Graph) Entries() []uint32 {
	return g.entries
}

// EdgeCount returns the number of distinct edges.
func (g *Graph) EdgeCount() int {
	return len(g.seen)
}

// NamespaceBlock is one lexical namespace body: a reopening of namespace
// Name covering Range, with the ranges of its direct children. The merger
// reads these to collapse reopenings and drop blocks emptied by removal.
type NamespaceBlock struct {
	Name     string
	Range    Range // "namespace n { ... }"
	Body     Range // inside the braces
	Children []Range
}

// SourceInfo bundles everything the collection phase produces: the canonical
// declaration table, the dependency graph, the set of declarations whose
// body parsing was deferred, and the namespace layout.
type SourceInfo struct {
	Table      *Table
	Graph      *Graph
	Delayed    []uint32 // decl IDs with untrusted ranges until force-parsed
	Namespaces []NamespaceBlock
}

// NewSourceInfo creates an empty SourceInfo.
func NewSourceInfo() *SourceInfo {
	return &SourceInfo{
		Table: NewTable(),
		Graph: NewGraph(),
	}
}
