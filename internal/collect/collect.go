// Package collect walks the parsed tree once and populates the declaration
// model: canonical declarations, their lexical occurrences, the dependency
// edges between them, and the entry-point set.
package collect

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/cpptrim/cpptrim/internal/sema"
	"github.com/cpptrim/cpptrim/pkg/parser"
)

// ActiveFunc reports whether a byte offset lies in code kept by directive
// evaluation. Declarations in excluded branches never enter the graph.
type ActiveFunc func(offset uint32) bool

// Collector builds a SourceInfo from one translation unit.
type Collector struct {
	source []byte
	info   *sema.SourceInfo
	active ActiveFunc

	// lexical declarations in document order, resolved in a second phase so
	// forward references bind to the same canonical identity
	lex []lexDecl
}

type lexDecl struct {
	decl    *sema.Decl
	node    *sitter.Node
	delayed bool
	// reverse ties the declaration to the entities it mentions instead of
	// the other way around (operators, using-declarations): keeping the
	// type keeps the helper, not vice versa.
	reverse bool
}

// Collect runs both phases over the tree and returns the populated model.
// pins are caller-supplied symbol names that join main as entry points.
func Collect(result *parser.ParseResult, active ActiveFunc, pins []string) *sema.SourceInfo {
	c := &Collector{
		source: result.Source,
		info:   sema.NewSourceInfo(),
		active: active,
	}
	if c.active == nil {
		c.active = func(uint32) bool { return true }
	}

	c.declareScope(result.Tree.RootNode(), nil)
	c.resolveAll()

	for _, d := range c.info.Table.All() {
		if d.Kind == sema.KindFunction && unqualified(d.Name) == "main" {
			c.info.Graph.AddEntry(d.ID)
		}
	}
	for _, pin := range pins {
		for _, d := range c.info.Table.LookupName(pin) {
			c.info.Graph.AddEntry(d.ID)
		}
	}

	return c.info
}

// declareScope registers every declaration directly inside a scope node
// (translation unit, namespace body, linkage block, or the kept branches of
// a preprocessor conditional).
func (c *Collector) declareScope(scope *sitter.Node, ns []string) {
	for i := range int(scope.ChildCount()) {
		c.declareItem(scope.Child(i), ns)
	}
}

func (c *Collector) declareItem(node *sitter.Node, ns []string) {
	if !c.active(node.StartByte()) {
		return
	}

	switch node.Type() {
	case "function_definition":
		c.declareFunction(node, node, ns, true, false)

	case "declaration":
		c.declareDeclaration(node, node, ns, false)

	case "class_specifier", "struct_specifier", "union_specifier":
		c.declareClass(node, node, ns, sema.KindClass)

	case "enum_specifier":
		c.declareNamed(node, node, node.ChildByFieldName("name"), ns, sema.KindEnum, node.ChildByFieldName("body") != nil, true)

	case "type_definition":
		c.declareNamed(node, node, typedefName(node), ns, sema.KindTypedef, true, false)

	case "alias_declaration":
		c.declareNamed(node, node, node.ChildByFieldName("name"), ns, sema.KindTypeAlias, true, false)

	case "using_declaration":
		c.declareUsing(node, ns)

	case "template_declaration":
		c.declareTemplate(node, ns)

	case "namespace_definition":
		c.declareNamespace(node, ns)

	case "linkage_specification":
		if body := node.ChildByFieldName("body"); body != nil && body.Type() == "declaration_list" {
			c.declareScope(body, ns)
		} else if body != nil {
			c.declareItem(body, ns)
		}

	case "preproc_ifdef", "preproc_if", "preproc_elif", "preproc_else", "preproc_elifdef":
		// Branch activity is enforced per item by the active check.
		c.declareScope(node, ns)

	default:
		// comments, raw directives, stray tokens
	}
}

// declareFunction registers a function (or function template) declaration.
// wrapper is the outermost lexical node whose range removal would delete.
func (c *Collector) declareFunction(wrapper, fn *sitter.Node, ns []string, isDefinition, templated bool) {
	nameNode := functionNameNode(fn)
	if nameNode == nil {
		return
	}
	name := qualify(ns, parser.GetNodeText(nameNode, c.source))

	kind := sema.KindFunction
	if templated {
		kind = sema.KindFunctionTemplate
	}

	// Overloads merge into one canonical identity: references are resolved
	// by name, so keeping one overload keeps them all.
	d := c.info.Table.Declare(kind, name)
	c.info.Table.AddOccurrence(d, sema.Occurrence{
		Range:        nodeRange(wrapper),
		IsDefinition: isDefinition,
	})

	delayed := templated && isDefinition
	c.lex = append(c.lex, lexDecl{
		decl:    d,
		node:    wrapper,
		delayed: delayed,
		reverse: strings.HasPrefix(unqualified(name), "operator"),
	})
	if delayed {
		c.info.Delayed = append(c.info.Delayed, d.ID)
	}
}

// declareDeclaration handles plain declarations: function prototypes and
// variables, possibly several declarators sharing one statement.
func (c *Collector) declareDeclaration(wrapper, node *sitter.Node, ns []string, templated bool) {
	declared := false
	for _, child := range namedChildren(node) {
		target := child
		if target.Type() == "init_declarator" {
			target = target.ChildByFieldName("declarator")
			if target == nil {
				continue
			}
		}
		if fn := functionDeclarator(target); fn != nil {
			c.declareFunction(wrapper, node, ns, false, templated)
			declared = true
			continue
		}
		if nameNode := declaratorName(target); nameNode != nil {
			name := qualify(ns, parser.GetNodeText(nameNode, c.source))
			d := c.info.Table.Declare(sema.KindVariable, name)
			c.info.Table.AddOccurrence(d, sema.Occurrence{
				Range:        nodeRange(wrapper),
				IsDefinition: true,
			})
			c.lex = append(c.lex, lexDecl{decl: d, node: wrapper})
			declared = true
		}
	}

	// "class A;" style forward declarations parse as a declaration wrapping
	// a bare specifier.
	if !declared {
		for _, child := range namedChildren(node) {
			switch child.Type() {
			case "class_specifier", "struct_specifier", "union_specifier":
				c.declareClass(wrapper, child, ns, sema.KindClass)
			case "enum_specifier":
				c.declareNamed(wrapper, child, child.ChildByFieldName("name"), ns, sema.KindEnum, child.ChildByFieldName("body") != nil, false)
			}
		}
	}
}

func (c *Collector) declareClass(wrapper, spec *sitter.Node, ns []string, kind sema.Kind) {
	nameNode := spec.ChildByFieldName("name")
	if nameNode == nil {
		return // anonymous
	}
	isDefinition := spec.ChildByFieldName("body") != nil
	c.declareNamed(wrapper, spec, nameNode, ns, kind, isDefinition, wrapper == spec)
}

// declareNamed registers a single named declaration of the given kind.
func (c *Collector) declareNamed(wrapper, node *sitter.Node, nameNode *sitter.Node, ns []string, kind sema.Kind, isDefinition, specifierOnly bool) {
	if nameNode == nil {
		return
	}
	name := qualify(ns, parser.GetNodeText(nameNode, c.source))

	d := c.info.Table.Declare(kind, name)
	c.info.Table.AddOccurrence(d, sema.Occurrence{
		Range:         nodeRange(wrapper),
		IsDefinition:  isDefinition,
		SpecifierOnly: specifierOnly,
	})
	c.lex = append(c.lex, lexDecl{decl: d, node: wrapper})
}

// declareUsing ties a using-declaration to its target: the using survives
// exactly when the entity it re-exports survives.
func (c *Collector) declareUsing(node *sitter.Node, ns []string) {
	name := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(parser.GetNodeText(node, c.source), "using"), ";"))
	if name == "" {
		return
	}

	d := c.info.Table.Declare(sema.KindUsing, qualify(ns, name))
	c.info.Table.AddOccurrence(d, sema.Occurrence{
		Range:        nodeRange(node),
		IsDefinition: true,
	})
	c.lex = append(c.lex, lexDecl{decl: d, node: node, reverse: true})
}

func (c *Collector) declareTemplate(node *sitter.Node, ns []string) {
	for _, child := range namedChildren(node) {
		switch child.Type() {
		case "function_definition":
			c.declareFunction(node, child, ns, true, true)
		case "declaration":
			c.declareDeclaration(node, child, ns, true)
		case "class_specifier", "struct_specifier", "union_specifier":
			c.declareClass(node, child, ns, sema.KindClassTemplate)
		case "alias_declaration":
			c.declareNamed(node, child, child.ChildByFieldName("name"), ns, sema.KindTypeAlias, true, false)
		}
	}
}

func (c *Collector) declareNamespace(node *sitter.Node, ns []string) {
	name := parser.GetNodeText(node.ChildByFieldName("name"), c.source)
	body := node.ChildByFieldName("body")
	if body == nil {
		return
	}

	inner := ns
	if name != "" {
		inner = append(append([]string{}, ns...), name)
	}
	c.declareScope(body, inner)

	block := sema.NamespaceBlock{
		Name:  name,
		Range: nodeRange(node),
		Body:  sema.Range{Start: body.StartByte() + 1, End: body.EndByte() - 1},
	}
	for _, child := range namedChildren(body) {
		if child.Type() == "comment" {
			continue
		}
		block.Children = append(block.Children, nodeRange(child))
	}
	c.info.Namespaces = append(c.info.Namespaces, block)
}

// resolveAll is the reference-resolution phase. Delayed declarations
// (function templates) are force-parsed afterwards with diagnostics
// suppressed: their bodies may be malformed in isolation, which must never
// abort the run.
func (c *Collector) resolveAll() {
	for _, ld := range c.lex {
		if ld.delayed {
			continue
		}
		c.resolve(ld)
	}

	sink := &DiagnosticSink{Suppressed: true}
	for _, ld := range c.lex {
		if !ld.delayed {
			continue
		}
		c.forceParse(ld, sink)
	}
}

// resolve walks one declaration's subtree and records an edge for every
// name it mentions that resolves to another declaration.
func (c *Collector) resolve(ld lexDecl) {
	parser.Walk(ld.node, c.source, func(n *sitter.Node, src []byte) bool {
		switch n.Type() {
		case "identifier", "type_identifier", "field_identifier", "namespace_identifier", "destructor_name":
			name := parser.GetNodeText(n, src)
			for _, target := range c.info.Table.LookupName(name) {
				if target.ID == ld.decl.ID {
					continue
				}
				c.info.Graph.AddEdge(ld.decl.ID, target.ID)
				if ld.reverse {
					c.info.Graph.AddEdge(target.ID, ld.decl.ID)
				}
			}
		}
		return true
	})
}

// forceParse resolves a delayed function template. Errors inside the body
// go to the sink; forced code may be discarded later and need not be
// well-formed on its own.
func (c *Collector) forceParse(ld lexDecl, sink *DiagnosticSink) {
	parser.Walk(ld.node, c.source, func(n *sitter.Node, src []byte) bool {
		if n.Type() == "ERROR" || n.IsMissing() {
			sink.Report(n.StartByte(), parser.GetNodeText(n, src))
		}
		return true
	})
	c.resolve(ld)
}

// DiagnosticSink receives diagnostics from force-parsing. When Suppressed,
// reports are counted but not retained.
type DiagnosticSink struct {
	Suppressed bool
	Count      int
	Messages   []string
}

// Report records one diagnostic.
func (s *DiagnosticSink) Report(offset uint32, text string) {
	s.Count++
	if s.Suppressed {
		return
	}
	s.Messages = append(s.Messages, text)
}

func nodeRange(n *sitter.Node) sema.Range {
	return sema.Range{Start: n.StartByte(), End: n.EndByte()}
}

func namedChildren(node *sitter.Node) []*sitter.Node {
	count := int(node.NamedChildCount())
	out := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		out = append(out, node.NamedChild(i))
	}
	return out
}

// functionNameNode digs through declarator wrappers to the name of a
// function definition or prototype.
func functionNameNode(fn *sitter.Node) *sitter.Node {
	decl := functionDeclarator(fn.ChildByFieldName("declarator"))
	if decl == nil {
		return nil
	}
	return declaratorName(decl.ChildByFieldName("declarator"))
}

// functionDeclarator unwraps pointer/reference declarators down to a
// function_declarator, or nil if the declarator is not function-shaped.
func functionDeclarator(node *sitter.Node) *sitter.Node {
	for node != nil {
		switch node.Type() {
		case "function_declarator":
			return node
		case "pointer_declarator", "reference_declarator", "parenthesized_declarator":
			node = node.ChildByFieldName("declarator")
			if node == nil {
				return nil
			}
		default:
			return nil
		}
	}
	return nil
}

// declaratorName returns the identifier-ish node naming a declarator.
func declaratorName(node *sitter.Node) *sitter.Node {
	for node != nil {
		switch node.Type() {
		case "identifier", "field_identifier", "type_identifier", "operator_name", "destructor_name", "qualified_identifier":
			return node
		case "pointer_declarator", "reference_declarator", "array_declarator", "parenthesized_declarator", "function_declarator":
			node = node.ChildByFieldName("declarator")
		default:
			return nil
		}
	}
	return nil
}

// typedefName finds the declarator of a type_definition.
func typedefName(node *sitter.Node) *sitter.Node {
	if d := node.ChildByFieldName("declarator"); d != nil {
		return declaratorName(d)
	}
	return nil
}

func qualify(ns []string, name string) string {
	if len(ns) == 0 || strings.Contains(name, "::") {
		return name
	}
	return strings.Join(ns, "::") + "::" + name
}

func unqualified(name string) string {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return name[i+2:]
	}
	return name
}
