// Package parser wraps tree-sitter for parsing merged C++ translation units.
// It is the collaborator the pruning passes consume: a concrete syntax tree
// with byte-accurate source ranges, including preprocessor directive nodes.
package parser

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/c"
	"github.com/smacker/go-tree-sitter/cpp"
)

// Language represents a supported input language.
type Language string

const (
	LangC       Language = "c"
	LangCPP     Language = "cpp"
	LangUnknown Language = "unknown"
)

// Parser wraps a tree-sitter parser configured for C or C++.
type Parser struct {
	parser *sitter.Parser
}

// ParseResult contains the parsed tree and the buffer it was parsed from.
// All source ranges elsewhere in the pipeline are byte offsets into Source.
type ParseResult struct {
	Tree     *sitter.Tree
	Language Language
	Source   []byte
	Path     string
}

// New creates a new parser instance.
func New() *Parser {
	return &Parser{
		parser: sitter.NewParser(),
	}
}

// ParseFile reads and parses a source file.
func (p *Parser) ParseFile(path string) (*ParseResult, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	lang := DetectLanguage(path)
	if lang == LangUnknown {
		return nil, fmt.Errorf("unsupported language for file: %s", path)
	}

	return p.Parse(source, lang, path)
}

// Parse parses source code with the specified language.
func (p *Parser) Parse(source []byte, lang Language, path string) (*ParseResult, error) {
	tsLang, err := treeSitterLanguage(lang)
	if err != nil {
		return nil, err
	}

	p.parser.SetLanguage(tsLang)
	tree, err := p.parser.ParseCtx(context.Background(), nil, source)
	if err != nil {
		return nil, fmt.Errorf("failed to parse: %w", err)
	}
	if tree == nil || tree.RootNode() == nil {
		return nil, fmt.Errorf("no syntax tree produced for %s", path)
	}

	return &ParseResult{
		Tree:     tree,
		Language: lang,
		Source:   source,
		Path:     path,
	}, nil
}

// treeSitterLanguage returns the tree-sitter grammar for a Language.
func treeSitterLanguage(lang Language) (*sitter.Language, error) {
	switch lang {
	case LangC:
		return c.GetLanguage(), nil
	case LangCPP:
		return cpp.GetLanguage(), nil
	default:
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
}

// DetectLanguage determines the language from a file path.
func DetectLanguage(path string) Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".c":
		return LangC
	case ".cpp", ".cc", ".cxx", ".h", ".hpp", ".hxx", ".inl":
		// Merged competitive-programming sources are C++ even when the
		// extension says header.
		return LangCPP
	default:
		return LangUnknown
	}
}

// Close releases parser resources.
func (p *Parser) Close() {
	p.parser.Close()
}

// NodeVisitor is a function that visits syntax nodes. Returning false stops
// descent into the node's children.
type NodeVisitor func(node *sitter.Node, source []byte) bool

// Walk traverses the tree calling visitor for each node.
func Walk(node *sitter.Node, source []byte, visitor NodeVisitor) {
	if node == nil {
		return
	}

	if !visitor(node, source) {
		return
	}

	for i := range int(node.ChildCount()) {
		Walk(node.Child(i), source, visitor)
	}
}

// FindNodes returns all nodes matching a predicate.
func FindNodes(root *sitter.Node, source []byte, predicate func(*sitter.Node) bool) []*sitter.Node {
	var results []*sitter.Node
	Walk(root, source, func(node *sitter.Node, source []byte) bool {
		if predicate(node) {
			results = append(results, node)
		}
		return true
	})
	return results
}

// FindNodesByType returns all nodes of a specific type.
func FindNodesByType(root *sitter.Node, source []byte, nodeType string) []*sitter.Node {
	return FindNodes(root, source, func(n *sitter.Node) bool {
		return n.Type() == nodeType
	})
}

// GetNodeText extracts the source text for a node.
// Returns empty string if node is nil or byte offsets are out of bounds.
func GetNodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start > end || end > uint32(len(source)) {
		return ""
	}
	return string(source[start:end])
}

// NamedChildren returns the named children of a node.
func NamedChildren(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	count := int(node.NamedChildCount())
	children := make([]*sitter.Node, 0, count)
	for i := 0; i < count; i++ {
		children = append(children, node.NamedChild(i))
	}
	return children
}
