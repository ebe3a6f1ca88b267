package prune

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpptrim/cpptrim/internal/collect"
	"github.com/cpptrim/cpptrim/internal/reach"
	"github.com/cpptrim/cpptrim/internal/rewrite"
	"github.com/cpptrim/cpptrim/internal/sema"
	"github.com/cpptrim/cpptrim/pkg/parser"
)

// pruneSource runs parse, collect, reachability, prune and namespace merge
// over one buffer and returns the rewritten text plus the pass result.
func pruneSource(t *testing.T, src string) (string, *Result) {
	t.Helper()

	p := parser.New()
	t.Cleanup(p.Close)

	result, err := p.Parse([]byte(src), parser.LangCPP, "main.cpp")
	require.NoError(t, err)

	info := collect.Collect(result, nil, nil)
	used := reach.Used(info.Graph)

	ed := rewrite.NewEditor([]byte(src))
	res := Prune(info, used, ed)
	MergeNamespaces(info.Namespaces, ed)

	out, err := ed.Apply()
	require.NoError(t, err)
	return out, res
}

func TestPruneUnusedFunction(t *testing.T) {
	out, res := pruneSource(t, "int unused(){return 1;}\nint main(){return 0;}\n")

	assert.Equal(t, "int main(){return 0;}\n", out)
	assert.Equal(t, 1, res.Stats.RemovedDecls)
}

func TestPruneKeepsCalledFunction(t *testing.T) {
	src := "int helper(){return 1;}\nint main(){return helper();}\n"
	out, res := pruneSource(t, src)

	assert.Equal(t, src, out)
	assert.Equal(t, 0, res.Stats.RemovedDecls)
}

func TestPruneTransitiveChain(t *testing.T) {
	src := "int leaf(){return 1;}\nint dead(){return leaf();}\nint main(){return 0;}\n"
	out, _ := pruneSource(t, src)

	// dead pulls in leaf, but nothing pulls in dead.
	assert.Equal(t, "int main(){return 0;}\n", out)
}

func TestPruneRemovesUnusedClassEverywhere(t *testing.T) {
	src := "class A;\nclass A { public: int v; };\nint main(){return 0;}\n"
	out, _ := pruneSource(t, src)

	assert.Equal(t, "int main(){return 0;}\n", out)
}

func TestPruneDropsRedundantForwardDeclaration(t *testing.T) {
	src := "class A;\nclass A { public: int v; };\nint main(){ A a; return a.v; }\n"
	out, _ := pruneSource(t, src)

	assert.Equal(t, "class A { public: int v; };\nint main(){ A a; return a.v; }\n", out)
}

func TestPruneSharedStatementKeptWhenAnyDeclaratorUsed(t *testing.T) {
	src := "int a, b;\nint main(){return a;}\n"
	out, res := pruneSource(t, src)

	// b is unreachable, but its statement survives because a shares it.
	assert.Equal(t, src, out)
	assert.Equal(t, 1, res.Stats.RemovedDecls)
	assert.Equal(t, 0, res.Stats.RemovedRanges)
}

func TestPruneUnusedVariable(t *testing.T) {
	src := "int answer = 42;\nint main(){return 0;}\n"
	out, _ := pruneSource(t, src)

	assert.Equal(t, "int main(){return 0;}\n", out)
}

func TestPruneMidLineDeletionKeepsLineBreak(t *testing.T) {
	src := "int keep(); int gone();\nint keep(){return 1;}\nint main(){return keep();}\n"
	out, _ := pruneSource(t, src)

	assert.Equal(t, "int keep();\nint keep(){return 1;}\nint main(){return keep();}\n", out)
}

func TestPruneEmptiedNamespaceRemoved(t *testing.T) {
	src := "namespace util {\nint helper(){return 1;}\n}\nint main(){return 0;}\n"
	out, _ := pruneSource(t, src)

	assert.Equal(t, "int main(){return 0;}\n", out)
}

func TestPruneNamespaceWithSurvivorKept(t *testing.T) {
	src := "namespace util {\nint helper(){return 1;}\nint dead(){return 2;}\n}\nint main(){return util::helper();}\n"
	out, _ := pruneSource(t, src)

	assert.Equal(t, "namespace util {\nint helper(){return 1;}\n}\nint main(){return util::helper();}\n", out)
}

func TestPruneEmptyInnerNamespaceRemovedOuterKept(t *testing.T) {
	src := "namespace outer {\nnamespace inner {\nint dead(){return 1;}\n}\nint live(){return 2;}\n}\nint main(){return outer::live();}\n"
	out, _ := pruneSource(t, src)

	assert.Equal(t, "namespace outer {\nint live(){return 2;}\n}\nint main(){return outer::live();}\n", out)
}

func TestMergeAdjacentNamespaceReopenings(t *testing.T) {
	src := "namespace n {\nint f(){return 1;}\n}\nnamespace n {\nint g(){return f();}\n}\nint main(){return n::g();}\n"
	out, _ := pruneSource(t, src)

	assert.Equal(t, "namespace n {\nint f(){return 1;}\n\nint g(){return f();}\n}\nint main(){return n::g();}\n", out)
}

func TestMergeSkipsDifferentNames(t *testing.T) {
	src := "namespace a {\nint f(){return 1;}\n}\nnamespace b {\nint g(){return a::f();}\n}\nint main(){return b::g();}\n"
	out, _ := pruneSource(t, src)

	assert.Equal(t, src, out)
}

func TestPruneIdentityWhenEverythingUsed(t *testing.T) {
	src := "int helper(){return 1;}\nint main(){return helper();}\n"

	p := parser.New()
	t.Cleanup(p.Close)
	result, err := p.Parse([]byte(src), parser.LangCPP, "main.cpp")
	require.NoError(t, err)

	info := collect.Collect(result, nil, nil)
	used := reach.Used(info.Graph)

	ed := rewrite.NewEditor([]byte(src))
	res := Prune(info, used, ed)

	assert.False(t, ed.HasEdits())
	assert.Empty(t, res.Ranges)

	out, err := ed.Apply()
	require.NoError(t, err)
	assert.Equal(t, src, out)
}

func TestExtendRange(t *testing.T) {
	src := []byte("  class A \t ;\nint x;\n")
	r := sema.Range{Start: 2, End: 9} // "class A"

	ext := extendRange(src, r, true)
	assert.Equal(t, sema.Range{Start: 0, End: 14}, ext)

	// Without specifier handling the semicolon stays.
	ext = extendRange(src, r, false)
	assert.Equal(t, uint32(0), ext.Start)
	assert.Less(t, ext.End, uint32(14))
}
