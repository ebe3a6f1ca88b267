// Package optimizer drives the whole pruning pipeline over one merged
// translation unit: directive scan, declaration collection, reachability,
// lexical pruning, namespace cleanup, macro cleanup, and edit application.
package optimizer

import (
	"fmt"
	"os"

	"github.com/cpptrim/cpptrim/internal/collect"
	"github.com/cpptrim/cpptrim/internal/pp"
	"github.com/cpptrim/cpptrim/internal/prune"
	"github.com/cpptrim/cpptrim/internal/reach"
	"github.com/cpptrim/cpptrim/internal/rewrite"
	"github.com/cpptrim/cpptrim/pkg/parser"
)

// Options configures one pruning run.
type Options struct {
	// EntryPoints pins symbols that must survive in addition to main.
	EntryPoints []string
	// Defines seeds directive evaluation, command-line style
	// (NAME -> replacement text, "1" for bare defines).
	Defines map[string]string
	// KeepMacros names macros that are never deleted even when unused.
	KeepMacros []string
}

// Report describes what one run did to the buffer.
type Report struct {
	Path          string
	InputBytes    int
	OutputBytes   int
	Decls         int
	RemovedDecls  int
	RemovedRanges int
	RemovedBlocks int
	MergedBlocks  int
	// Degraded is set when the rewritten buffer could not be materialized
	// and the fixed error sentinel was emitted instead.
	Degraded bool
}

// Optimizer prunes unused code from merged C and C++ sources. It owns a
// parser instance and is not safe for concurrent use; create one per worker.
type Optimizer struct {
	parser *parser.Parser
	opts   Options
}

// New creates an optimizer with the given options.
func New(opts Options) *Optimizer {
	return &Optimizer{
		parser: parser.New(),
		opts:   opts,
	}
}

// Close releases the underlying parser.
func (o *Optimizer) Close() {
	o.parser.Close()
}

// OptimizeFile reads, prunes and returns one source file. The language is
// detected from the path.
func (o *Optimizer) OptimizeFile(path string) (string, *Report, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return "", nil, fmt.Errorf("failed to read file: %w", err)
	}

	lang := parser.DetectLanguage(path)
	if lang == parser.LangUnknown {
		return "", nil, fmt.Errorf("unsupported language for file: %s", path)
	}

	return o.Optimize(source, lang, path)
}

// Optimize prunes one in-memory buffer. Setup failures (the buffer cannot
// be parsed at all) return a hard error; failures after decisions are
// committed degrade to the fixed sentinel output instead.
func (o *Optimizer) Optimize(source []byte, lang parser.Language, path string) (string, *Report, error) {
	result, err := o.parser.Parse(source, lang, path)
	if err != nil {
		return "", nil, err
	}

	tracker := pp.NewTracker(source, o.opts.Defines)
	tracker.Scan(result.Tree.RootNode())

	info := collect.Collect(result, tracker.IsActive, o.opts.EntryPoints)
	used := reach.Used(info.Graph)

	ed := rewrite.NewEditor(source)
	res := prune.Prune(info, used, ed)
	merge := prune.MergeNamespaces(info.Namespaces, ed)

	keep := make(map[string]struct{}, len(o.opts.KeepMacros))
	for _, name := range o.opts.KeepMacros {
		keep[name] = struct{}{}
	}
	tracker.Finalize(res.Ranges, keep, ed)

	report := &Report{
		Path:          path,
		InputBytes:    len(source),
		Decls:         res.Stats.Decls,
		RemovedDecls:  res.Stats.RemovedDecls,
		RemovedRanges: res.Stats.RemovedRanges,
		RemovedBlocks: merge.RemovedBlocks,
		MergedBlocks:  merge.MergedBlocks,
	}

	out, err := ed.Apply()
	if err != nil {
		report.Degraded = true
		report.OutputBytes = len(out)
		return out, report, nil
	}
	report.OutputBytes = len(out)
	return out, report, nil
}
