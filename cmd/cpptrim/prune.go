package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cpptrim/cpptrim/internal/cache"
	"github.com/cpptrim/cpptrim/internal/fileproc"
	"github.com/cpptrim/cpptrim/internal/optimizer"
	"github.com/cpptrim/cpptrim/internal/output"
	"github.com/cpptrim/cpptrim/internal/progress"
	"github.com/cpptrim/cpptrim/pkg/config"
)

var pruneCmd = &cobra.Command{
	Use:   "prune [file...]",
	Short: "Remove unreachable declarations from C++ source files",
	Long: `Prunes each file down to the declarations reachable from main and any
configured entry points.

Examples:
  cpptrim prune merged.cpp --stdout        # Print pruned source
  cpptrim prune merged.cpp -w              # Rewrite the file in place
  cpptrim prune *.cpp --out-dir pruned/    # Write results next to originals
  cpptrim prune merged.cpp -D ONLINE_JUDGE --entry solve`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPrune,
}

func init() {
	pruneCmd.Flags().StringSlice("entry", nil, "Additional entry point symbols kept alive")
	pruneCmd.Flags().StringSliceP("define", "D", nil, "Predefined macros (NAME or NAME=VALUE)")
	pruneCmd.Flags().StringSlice("keep-macro", nil, "Macro names never removed")
	pruneCmd.Flags().Int("workers", 0, "Maximum parallel workers (0 = 2x CPU count)")
	pruneCmd.Flags().BoolP("write", "w", false, "Rewrite input files in place")
	pruneCmd.Flags().String("out-dir", "", "Write pruned files into this directory")
	pruneCmd.Flags().Bool("stdout", false, "Print pruned source to stdout (single file only)")
	pruneCmd.Flags().StringP("format", "f", "", "Report format: text, json, markdown")
	pruneCmd.Flags().StringP("output", "o", "", "Write report to file instead of stdout")
	pruneCmd.Flags().Bool("no-cache", false, "Bypass the result cache")

	rootCmd.AddCommand(pruneCmd)
}

func runPrune(cmd *cobra.Command, args []string) error {
	cfg, err := loadEffectiveConfig()
	if err != nil {
		return err
	}

	toStdout, _ := cmd.Flags().GetBool("stdout")
	inPlace, _ := cmd.Flags().GetBool("write")
	outDir, _ := cmd.Flags().GetString("out-dir")
	if toStdout && len(args) != 1 {
		return fmt.Errorf("--stdout requires exactly one input file, got %d", len(args))
	}
	if toStdout && (inPlace || outDir != "") {
		return fmt.Errorf("--stdout cannot be combined with --write or --out-dir")
	}

	opts := pruneOptions(cmd, cfg)

	workers := cfg.Prune.Workers
	if w, _ := cmd.Flags().GetInt("workers"); w > 0 {
		workers = w
	}

	noCache, _ := cmd.Flags().GetBool("no-cache")
	store, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.Enabled && !noCache)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	optionsKey := cache.OptionsKey(opts)

	outcomes, toProcess, hashes := lookupCached(store, args, optionsKey)

	if len(toProcess) > 0 {
		var onProgress fileproc.ProgressFunc
		var tracker *progress.Tracker
		if !toStdout {
			tracker = progress.NewTracker("Pruning files...", len(toProcess))
			onProgress = tracker.Tick
		}

		fresh, errs := fileproc.PruneFiles(context.Background(), toProcess, opts, workers, onProgress)
		if tracker != nil {
			tracker.FinishSuccess()
		}

		for _, o := range fresh {
			if !o.Report.Degraded {
				if err := store.Store(o.Path, hashes[o.Path], optionsKey, o.Output, o.Report); err != nil && verbose {
					color.Yellow("cache store failed for %s: %v", o.Path, err)
				}
			}
			outcomes = append(outcomes, o)
		}

		if errs != nil {
			for _, pe := range errs.Errors {
				color.Red("%s: %v", pe.Path, pe.Err)
			}
			if len(outcomes) == 0 {
				return errs
			}
		}
	}

	if toStdout {
		if len(outcomes) == 0 {
			return fmt.Errorf("no output produced for %s", args[0])
		}
		fmt.Print(outcomes[0].Output)
		return nil
	}

	if err := writeOutcomes(outcomes, inPlace, outDir); err != nil {
		return err
	}

	return renderReport(cmd, cfg, outcomes)
}

// loadEffectiveConfig honors the global --config flag, searching the
// standard locations otherwise.
func loadEffectiveConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.Load(cfgFile)
	}
	return config.LoadOrDefault(), nil
}

// pruneOptions layers command-line flags over the config file settings.
func pruneOptions(cmd *cobra.Command, cfg *config.Config) optimizer.Options {
	opts := optimizer.Options{
		EntryPoints: append([]string(nil), cfg.Prune.EntryPoints...),
		Defines:     map[string]string{},
		KeepMacros:  append([]string(nil), cfg.Prune.KeepMacros...),
	}
	for name, value := range cfg.Prune.Defines {
		opts.Defines[name] = value
	}

	entries, _ := cmd.Flags().GetStringSlice("entry")
	opts.EntryPoints = append(opts.EntryPoints, entries...)

	defines, _ := cmd.Flags().GetStringSlice("define")
	for _, d := range defines {
		name, value, _ := strings.Cut(d, "=")
		opts.Defines[name] = value
	}

	keep, _ := cmd.Flags().GetStringSlice("keep-macro")
	opts.KeepMacros = append(opts.KeepMacros, keep...)

	return opts
}

// lookupCached splits the input files into cache hits and files that still
// need pruning. Unreadable files are passed through so the batch reports
// the real error.
func lookupCached(store *cache.Cache, files []string, optionsKey string) (hits []fileproc.Outcome, misses []string, hashes map[string]string) {
	hashes = make(map[string]string, len(files))
	for _, path := range files {
		hash, err := cache.HashFile(path)
		if err != nil {
			misses = append(misses, path)
			continue
		}
		hashes[path] = hash

		if entry, ok := store.Lookup(path, hash, optionsKey); ok {
			hits = append(hits, fileproc.Outcome{Path: path, Output: entry.Output, Report: entry.Report})
			continue
		}
		misses = append(misses, path)
	}
	return hits, misses, hashes
}

func writeOutcomes(outcomes []fileproc.Outcome, inPlace bool, outDir string) error {
	if !inPlace && outDir == "" {
		return nil
	}
	if outDir != "" {
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	for _, o := range outcomes {
		if o.Report.Degraded {
			color.Yellow("skipping %s: pruning degraded, original left untouched", o.Path)
			continue
		}

		dest := o.Path
		if outDir != "" {
			dest = filepath.Join(outDir, filepath.Base(o.Path))
		}
		if err := os.WriteFile(dest, []byte(o.Output), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", dest, err)
		}
	}
	return nil
}

func renderReport(cmd *cobra.Command, cfg *config.Config, outcomes []fileproc.Outcome) error {
	format := cfg.Output.Format
	if f, _ := cmd.Flags().GetString("format"); f != "" {
		format = f
	}
	outputFile, _ := cmd.Flags().GetString("output")

	formatter, err := output.NewFormatter(output.ParseFormat(format), outputFile, cfg.Output.Color)
	if err != nil {
		return err
	}
	defer formatter.Close()

	reports := make([]*optimizer.Report, 0, len(outcomes))
	for _, o := range outcomes {
		reports = append(reports, o.Report)
	}
	return formatter.Output(output.NewBatchSummary(reports))
}
