package output

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"

	"github.com/cpptrim/cpptrim/internal/optimizer"
)

// BatchSummary renders the pruning results for a batch of files.
type BatchSummary struct {
	Reports []*optimizer.Report
}

// NewBatchSummary creates a summary sorted by file path.
func NewBatchSummary(reports []*optimizer.Report) *BatchSummary {
	sorted := make([]*optimizer.Report, len(reports))
	copy(sorted, reports)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Path < sorted[j].Path })
	return &BatchSummary{Reports: sorted}
}

func (s *BatchSummary) RenderData() any {
	return map[string]any{
		"files":   s.Reports,
		"summary": s.totals(),
	}
}

func (s *BatchSummary) RenderText(w io.Writer, colored bool) error {
	return s.table(colored).RenderText(w, colored)
}

func (s *BatchSummary) RenderMarkdown(w io.Writer) error {
	return s.table(false).RenderMarkdown(w)
}

type batchTotals struct {
	Files        int     `json:"files"`
	InputBytes   int     `json:"input_bytes"`
	OutputBytes  int     `json:"output_bytes"`
	RemovedDecls int     `json:"removed_decls"`
	Degraded     int     `json:"degraded"`
	Saved        float64 `json:"saved_percent"`
}

func (s *BatchSummary) totals() batchTotals {
	t := batchTotals{Files: len(s.Reports)}
	for _, r := range s.Reports {
		t.InputBytes += r.InputBytes
		t.OutputBytes += r.OutputBytes
		t.RemovedDecls += r.RemovedDecls
		if r.Degraded {
			t.Degraded++
		}
	}
	if t.InputBytes > 0 {
		t.Saved = 100 * float64(t.InputBytes-t.OutputBytes) / float64(t.InputBytes)
	}
	return t
}

func (s *BatchSummary) table(colored bool) *Table {
	rows := make([][]string, 0, len(s.Reports))
	for _, r := range s.Reports {
		status := "ok"
		if r.Degraded {
			status = "degraded"
			if colored {
				status = color.RedString(status)
			}
		}

		rows = append(rows, []string{
			r.Path,
			fmt.Sprintf("%d", r.InputBytes),
			fmt.Sprintf("%d", r.OutputBytes),
			savedPercent(r, colored),
			fmt.Sprintf("%d/%d", r.RemovedDecls, r.Decls),
			fmt.Sprintf("%d", r.RemovedBlocks),
			status,
		})
	}

	t := s.totals()
	return NewTable(
		"Pruning Results",
		[]string{"File", "In", "Out", "Saved", "Decls Removed", "Namespaces", "Status"},
		rows,
		[]string{
			fmt.Sprintf("Files: %d", t.Files),
			fmt.Sprintf("In: %d", t.InputBytes),
			fmt.Sprintf("Out: %d", t.OutputBytes),
			fmt.Sprintf("Saved: %.1f%%", t.Saved),
			fmt.Sprintf("Decls: %d", t.RemovedDecls),
			"",
			fmt.Sprintf("Degraded: %d", t.Degraded),
		},
		s.RenderData(),
	)
}

func savedPercent(r *optimizer.Report, colored bool) string {
	if r.InputBytes == 0 {
		return "0.0%"
	}
	pct := 100 * float64(r.InputBytes-r.OutputBytes) / float64(r.InputBytes)
	out := fmt.Sprintf("%.1f%%", pct)
	if colored && pct >= 50 {
		return color.GreenString(out)
	}
	return out
}
