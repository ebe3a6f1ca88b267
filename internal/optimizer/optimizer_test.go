package optimizer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpptrim/cpptrim/pkg/parser"
)

func run(t *testing.T, src string, opts Options) (string, *Report) {
	t.Helper()

	o := New(opts)
	t.Cleanup(o.Close)

	out, report, err := o.Optimize([]byte(src), parser.LangCPP, "main.cpp")
	require.NoError(t, err)
	require.False(t, report.Degraded)
	return out, report
}

func TestOptimizeRemovesUnusedFunction(t *testing.T) {
	out, report := run(t, "int unused(){return 1;}\nint main(){return 0;}\n", Options{})

	assert.Equal(t, "int main(){return 0;}\n", out)
	assert.Equal(t, 1, report.RemovedDecls)
	assert.Less(t, report.OutputBytes, report.InputBytes)
}

func TestOptimizeKeepsReachableChain(t *testing.T) {
	src := "int leaf(){return 1;}\nint mid(){return leaf();}\nint main(){return mid();}\n"
	out, report := run(t, src, Options{})

	assert.Equal(t, src, out)
	assert.Equal(t, 0, report.RemovedDecls)
}

func TestOptimizeIdentityWhenNothingToRemove(t *testing.T) {
	src := "int main(){return 0;}\n"
	out, _ := run(t, src, Options{})

	assert.Equal(t, src, out)
}

func TestOptimizeUntakenBranchBodyRemoved(t *testing.T) {
	src := "#ifdef FOO\nint a;\n#else\nint b;\n#endif\nint main(){return b;}\n"
	out, _ := run(t, src, Options{})

	assert.NotContains(t, out, "int a;")
	assert.Contains(t, out, "int b;")
	assert.Contains(t, out, "#ifdef FOO")
}

func TestOptimizeWholeUntakenGroupRemoved(t *testing.T) {
	src := "#ifdef DEBUG\nint trace(){return 1;}\n#endif\nint main(){return 0;}\n"
	out, _ := run(t, src, Options{})

	assert.Equal(t, "int main(){return 0;}\n", out)
}

func TestOptimizeDefinesActivateBranch(t *testing.T) {
	src := "#ifdef DEBUG\nint trace(){return 1;}\n#endif\nint main(){return trace();}\n"
	out, _ := run(t, src, Options{Defines: map[string]string{"DEBUG": "1"}})

	assert.Contains(t, out, "int trace(){return 1;}")
	assert.Contains(t, out, "#ifdef DEBUG")
}

func TestOptimizeDeadMacroFollowsItsUser(t *testing.T) {
	src := "#define M 5\nint unused(){return M;}\nint main(){return 0;}\n"
	out, _ := run(t, src, Options{})

	assert.Equal(t, "int main(){return 0;}\n", out)
}

func TestOptimizeLiveMacroKept(t *testing.T) {
	src := "#define M 5\nint main(){return M;}\n"
	out, _ := run(t, src, Options{})

	assert.Equal(t, src, out)
}

func TestOptimizeKeepMacros(t *testing.T) {
	src := "#define TOGGLE 1\nint main(){return 0;}\n"
	out, _ := run(t, src, Options{KeepMacros: []string{"TOGGLE"}})

	assert.Contains(t, out, "#define TOGGLE 1")
}

func TestOptimizeEmptiedNamespaceRemoved(t *testing.T) {
	src := "namespace util {\nint helper(){return 1;}\n}\nint main(){return 0;}\n"
	out, report := run(t, src, Options{})

	assert.Equal(t, "int main(){return 0;}\n", out)
	assert.Equal(t, 1, report.RemovedBlocks)
}

func TestOptimizeEntryPointsPinSymbols(t *testing.T) {
	src := "int exported(){return 7;}\nint main(){return 0;}\n"
	out, _ := run(t, src, Options{EntryPoints: []string{"exported"}})

	assert.Equal(t, src, out)
}

func TestOptimizeIdempotent(t *testing.T) {
	srcs := []string{
		"int unused(){return 1;}\nint main(){return 0;}\n",
		"#ifdef FOO\nint a;\n#else\nint b;\n#endif\nint main(){return b;}\n",
		"#define SEL 1\n#if SEL\nint a;\n#else\nint b;\n#endif\nint main(){return a;}\n",
		"namespace n {\nint f(){return 1;}\n}\nnamespace n {\nint g(){return f();}\n}\nint main(){return n::g();}\n",
	}

	for _, src := range srcs {
		first, _ := run(t, src, Options{})
		second, _ := run(t, first, Options{})
		assert.Equal(t, first, second, "second pass changed output for %q", src)
	}
}

func TestOptimizeFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sol.cpp")
	src := "int unused(){return 1;}\nint main(){return 0;}\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	o := New(Options{})
	t.Cleanup(o.Close)

	out, report, err := o.OptimizeFile(path)
	require.NoError(t, err)
	assert.Equal(t, "int main(){return 0;}\n", out)
	assert.Equal(t, path, report.Path)
}

func TestOptimizeFileRejectsUnknownExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sol.rs")
	require.NoError(t, os.WriteFile(path, []byte("fn main(){}"), 0o644))

	o := New(Options{})
	t.Cleanup(o.Close)

	_, _, err := o.OptimizeFile(path)
	assert.Error(t, err)
}
