// Package sema holds the semantic declaration model: canonical identities,
// their lexical occurrences, and the dependency graph between them.
//
// A semantic declaration is what a programmer means by a name: *the* function
// f(), *the* class A. A lexical occurrence is one concrete appearance of that
// entity at a specific source range. A class may have several forward
// declarations and one definition; all of them resolve to one canonical
// identity.
package sema

import (
	"github.com/cespare/xxhash/v2"
)

// Kind classifies a semantic declaration.
type Kind int

const (
	KindFunction Kind = iota
	KindFunctionTemplate
	KindClass
	KindClassTemplate
	KindVariable
	KindTypedef
	KindTypeAlias
	KindEnum
	KindUsing
	KindNamespace
)

func (k Kind) String() string {
	switch k {
	case KindFunction:
		return "function"
	case KindFunctionTemplate:
		return "function_template"
	case KindClass:
		return "class"
	case KindClassTemplate:
		return "class_template"
	case KindVariable:
		return "variable"
	case KindTypedef:
		return "typedef"
	case KindTypeAlias:
		return "type_alias"
	case KindEnum:
		return "enum"
	case KindUsing:
		return "using"
	case KindNamespace:
		return "namespace"
	default:
		return "unknown"
	}
}

// Range is a half-open byte range [Start, End) in the original buffer.
type Range struct {
	Start uint32
	End   uint32
}

// Valid reports whether the range is well-formed.
func (r Range) Valid() bool {
	return r.Start <= r.End
}

// Len returns the number of bytes covered.
func (r Range) Len() uint32 {
	if !r.Valid() {
		return 0
	}
	return r.End - r.Start
}

// Contains reports whether other lies entirely within r.
func (r Range) Contains(other Range) bool {
	return r.Start <= other.Start && other.End <= r.End
}

// ContainsOffset reports whether the byte offset lies within r.
func (r Range) ContainsOffset(off uint32) bool {
	return r.Start <= off && off < r.End
}

// Occurrence is one lexical appearance of a declaration.
type Occurrence struct {
	Range        Range
	IsDefinition bool
	// SpecifierOnly marks occurrences whose node range excludes the
	// trailing semicolon (bare class/struct/enum specifiers).
	SpecifierOnly bool
}

// Decl is a canonical semantic declaration with its ordered occurrences.
// Overloads of a function share one identity: references resolve by name,
// so keeping one overload keeps them all.
type Decl struct {
	ID          uint32
	Kind        Kind
	Name        string // fully qualified, e.g. "util::max3"
	Occurrences []Occurrence
}

// Definition returns the defining occurrence, if one was recorded.
func (d *Decl) Definition() (Occurrence, bool) {
	for _, occ := range d.Occurrences {
		if occ.IsDefinition {
			return occ, true
		}
	}
	return Occurrence{}, false
}

// HasDefinition reports whether any occurrence carries the definition.
func (d *Decl) HasDefinition() bool {
	_, ok := d.Definition()
	return ok
}

// canonicalKey derives the stable identity key for a declaration. The same
// entity yields the same key regardless of which occurrence is visited first.
func canonicalKey(kind Kind, name string) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(kind.String())
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(name)
	return h.Sum64()
}

// Table interns declarations by canonical key and assigns dense IDs.
type Table struct {
	byKey  map[uint64]*Decl
	decls  []*Decl
	byName map[string][]uint32 // unqualified name -> decl IDs, insertion order
}

// NewTable creates an empty declaration table.
func NewTable() *Table {
	return &Table{
		byKey:  make(map[uint64]*Decl),
		byName: make(map[string][]uint32),
	}
}

// Declare interns the declaration identified by (kind, name) and returns
// its canonical Decl, creating it on first sight.
func (t *Table) Declare(kind Kind, name string) *Decl {
	key := canonicalKey(kind, name)
	if d, ok := t.byKey[key]; ok {
		return d
	}

	d := &Decl{
		ID:   uint32(len(t.decls)),
		Kind: kind,
		Name: name,
	}
	t.byKey[key] = d
	t.decls = append(t.decls, d)
	t.byName[unqualified(name)] = append(t.byName[unqualified(name)], d.ID)
	return d
}

// AddOccurrence appends a lexical occurrence to the declaration.
func (t *Table) AddOccurrence(d *Decl, occ Occurrence) {
	d.Occurrences = append(d.Occurrences, occ)
}

// Get returns the declaration with the given dense ID.
func (t *Table) Get(id uint32) *Decl {
	if int(id) >= len(t.decls) {
		return nil
	}
	return t.decls[id]
}

// LookupName returns all declarations whose unqualified name matches.
// Overloads of the same function are distinct entries.
func (t *Table) LookupName(name string) []*Decl {
	ids := t.byName[unqualified(name)]
	decls := make([]*Decl, 0, len(ids))
	for _, id := range ids {
		decls = append(decls, t.decls[id])
	}
	return decls
}

// Len returns the number of canonical declarations.
func (t *Table) Len() int {
	return len(t.decls)
}

// All returns declarations in ID order.
func (t *Table) All() []*Decl {
	return t.decls
}

// unqualified strips any namespace qualification from a name.
func unqualified(name string) string {
	for i := len(name) - 2; i > 0; i-- {
		if name[i] == ':' && name[i-1] == ':' {
			return name[i+1:]
		}
	}
	return name
}
