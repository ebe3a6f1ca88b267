package pp

import (
	"strconv"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

const maxEvalDepth = 16

// eval computes the value of a preprocessor condition expression. The second
// result is false when the expression cannot be decided, in which case the
// whole group is left untouched.
func (t *Tracker) eval(node *sitter.Node, depth int) (int64, bool) {
	if node == nil || depth > maxEvalDepth {
		return 0, false
	}

	switch node.Type() {
	case "number_literal":
		return parseNumber(parserText(node, t.source))

	case "identifier":
		return t.evalIdentifier(parserText(node, t.source), depth)

	case "preproc_defined":
		for _, child := range namedChildren(node) {
			if child.Type() == "identifier" {
				if _, ok := t.defines[parserText(child, t.source)]; ok {
					return 1, true
				}
				return 0, true
			}
		}
		return 0, false

	case "parenthesized_expression":
		if inner := node.NamedChild(0); inner != nil {
			return t.eval(inner, depth+1)
		}
		return 0, false

	case "unary_expression":
		op := parserText(node.ChildByFieldName("operator"), t.source)
		v, ok := t.eval(node.ChildByFieldName("argument"), depth+1)
		if !ok {
			return 0, false
		}
		switch op {
		case "!":
			return boolVal(v == 0), true
		case "-":
			return -v, true
		case "+":
			return v, true
		case "~":
			return ^v, true
		}
		return 0, false

	case "binary_expression":
		return t.evalBinary(node, depth)

	default:
		return 0, false
	}
}

func (t *Tracker) evalBinary(node *sitter.Node, depth int) (int64, bool) {
	op := parserText(node.ChildByFieldName("operator"), t.source)

	left, okL := t.eval(node.ChildByFieldName("left"), depth+1)

	// Short-circuit so that "defined(X) && X > 2" with X undefined stays
	// decidable.
	switch op {
	case "&&":
		if okL && left == 0 {
			return 0, true
		}
	case "||":
		if okL && left != 0 {
			return 1, true
		}
	}

	right, okR := t.eval(node.ChildByFieldName("right"), depth+1)
	if !okL || !okR {
		return 0, false
	}

	switch op {
	case "&&":
		return boolVal(left != 0 && right != 0), true
	case "||":
		return boolVal(left != 0 || right != 0), true
	case "==":
		return boolVal(left == right), true
	case "!=":
		return boolVal(left != right), true
	case "<":
		return boolVal(left < right), true
	case "<=":
		return boolVal(left <= right), true
	case ">":
		return boolVal(left > right), true
	case ">=":
		return boolVal(left >= right), true
	case "+":
		return left + right, true
	case "-":
		return left - right, true
	case "*":
		return left * right, true
	case "/":
		if right == 0 {
			return 0, false
		}
		return left / right, true
	case "%":
		if right == 0 {
			return 0, false
		}
		return left % right, true
	case "<<":
		return left << uint64(right&63), true
	case ">>":
		return left >> uint64(right&63), true
	case "&":
		return left & right, true
	case "|":
		return left | right, true
	case "^":
		return left ^ right, true
	}
	return 0, false
}

// evalIdentifier resolves a name per cpp rules: defined macros substitute
// their replacement text, unknown names evaluate to 0.
func (t *Tracker) evalIdentifier(name string, depth int) (int64, bool) {
	if depth > maxEvalDepth {
		return 0, false
	}
	switch name {
	case "true":
		return 1, true
	case "false":
		return 0, true
	}

	value, ok := t.defines[name]
	if !ok {
		return 0, true
	}
	value = strings.TrimSpace(value)
	if value == "" {
		// An empty replacement in an arithmetic context is a cpp error;
		// leave the group alone.
		return 0, false
	}
	if v, ok := parseNumber(value); ok {
		return v, true
	}
	// Single-identifier replacement chains (#define A B).
	if isIdentifier(value) {
		return t.evalIdentifier(value, depth+1)
	}
	return 0, false
}

// parseNumber parses a C integer literal including hex/octal/binary prefixes
// and integer suffixes.
func parseNumber(text string) (int64, bool) {
	s := strings.TrimSpace(text)
	s = strings.TrimRight(s, "uUlL")
	s = strings.ReplaceAll(s, "'", "") // digit separators
	if s == "" {
		return 0, false
	}

	base := 10
	switch {
	case strings.HasPrefix(s, "0x"), strings.HasPrefix(s, "0X"):
		base, s = 16, s[2:]
	case strings.HasPrefix(s, "0b"), strings.HasPrefix(s, "0B"):
		base, s = 2, s[2:]
	case len(s) > 1 && s[0] == '0':
		base, s = 8, s[1:]
	}

	v, err := strconv.ParseInt(s, base, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !identChar(s[i]) {
			return false
		}
		if i == 0 && s[0] >= '0' && s[0] <= '9' {
			return false
		}
	}
	return true
}

func boolVal(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
