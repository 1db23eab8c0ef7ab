package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/afep/internal/model"
)

// timestampLayout matches the file name stamps downstream tooling expects
const timestampLayout = "20060102_150405"

// dictionaryHeader is the column order of afep_dict_<ts>.csv
var dictionaryHeader = []string{"cui", "preferredname", "conceptstring", "matchedtext", "all_sources", "all_semantictypes"}

// OutputFiles lists the files written for one run
type OutputFiles struct {
	Dictionary string
	Selected   string
	Report     string
}

// Renderer writes run outputs
type Renderer struct{}

// NewRenderer creates a new renderer
func NewRenderer() *Renderer {
	return &Renderer{}
}

// Write creates outPath and writes the dictionary CSV, the selected concept
// list and the JSON run report, all stamped with the run start time
func (r *Renderer) Write(outPath string, report *model.RunReport) (OutputFiles, error) {
	if outPath == "" {
		outPath = "."
	}
	if err := os.MkdirAll(outPath, 0o755); err != nil {
		return OutputFiles{}, fmt.Errorf("create output dir: %w", err)
	}

	ts := report.StartedAt.Local().Format(timestampLayout)
	files := OutputFiles{
		Dictionary: filepath.Join(outPath, "afep_dict_"+ts+".csv"),
		Selected:   filepath.Join(outPath, "afep_selected_cuis_"+ts+".csv"),
		Report:     filepath.Join(outPath, "afep_report_"+ts+".json"),
	}

	if err := r.RenderDictionary(report.Dictionary, files.Dictionary); err != nil {
		return OutputFiles{}, fmt.Errorf("render dictionary: %w", err)
	}
	if err := r.RenderSelected(report.Selection, files.Selected); err != nil {
		return OutputFiles{}, fmt.Errorf("render selected concepts: %w", err)
	}
	if err := r.RenderJSON(report, files.Report); err != nil {
		return OutputFiles{}, fmt.Errorf("render report: %w", err)
	}

	return files, nil
}

// RenderDictionary writes the dictionary CSV, one row per entry sorted by cui.
// Pick order stays in the JSON report.
func (r *Renderer) RenderDictionary(entries []model.DictionaryEntry, path string) error {
	entries = append([]model.DictionaryEntry(nil), entries...)
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ConceptID < entries[j].ConceptID })

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create file: %w", err)
	}

	w := csv.NewWriter(f)
	if err := w.Write(dictionaryHeader); err != nil {
		_ = f.Close()
		return fmt.Errorf("write header: %w", err)
	}
	for _, e := range entries {
		row := []string{e.ConceptID, e.PreferredName, e.ConceptStrings, e.MatchedTexts, e.Sources, e.SemanticTypes}
		if err := w.Write(row); err != nil {
			_ = f.Close()
			return fmt.Errorf("write %s: %w", e.ConceptID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return fmt.Errorf("flush csv: %w", err)
	}

	return f.Close()
}

// RenderSelected writes the selected concept ids sorted, one per line, without a header
func (r *Renderer) RenderSelected(picks []model.Pick, path string) error {
	ids := make([]string, len(picks))
	for i, p := range picks {
		ids[i] = p.ConceptID
	}
	sort.Strings(ids)

	if err := os.WriteFile(path, []byte(strings.Join(ids, "\n")), 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// RenderJSON writes the run report as indented JSON
func (r *Renderer) RenderJSON(report *model.RunReport, path string) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}

	return nil
}

// RenderSummary prints a human-readable summary of the run
func (r *Renderer) RenderSummary(w io.Writer, report *model.RunReport) {
	_, _ = fmt.Fprintf(w, "\n=== AFEP Run %s ===\n", report.RunID)
	_, _ = fmt.Fprintf(w, "Documents: %d  Mentions: %d\n", report.Documents, report.Mentions)
	_, _ = fmt.Fprintf(w, "Sources: %d (%s), threshold %d\n",
		len(report.Sources), strings.Join(report.Sources, ", "), report.Threshold)
	_, _ = fmt.Fprintf(w, "Concepts: %d loaded → %d corroborated → %d in matrix → %d selected\n",
		report.Counts.ConceptsLoaded, report.Counts.ConceptsCorroborated,
		report.Counts.ConceptsInMatrix, report.Counts.ConceptsSelected)
	_, _ = fmt.Fprintf(w, "Locations covered: %d\n", report.Locations)

	if len(report.Dictionary) > 0 {
		_, _ = fmt.Fprintf(w, "\nSelected concepts:\n")
		for i, e := range report.Dictionary {
			weight := 0
			if i < len(report.Selection) {
				weight = report.Selection[i].Weight
			}
			_, _ = fmt.Fprintf(w, "  %2d. %s  %-30s (weight %d)\n", i+1, e.ConceptID, e.PreferredName, weight)
		}
	}

	var notable []model.Signal
	for _, s := range report.Signals {
		if s.Severity != model.SeverityInfo {
			notable = append(notable, s)
		}
	}
	if len(notable) > 0 {
		_, _ = fmt.Fprintf(w, "\nSignals:\n")
		for _, s := range notable {
			_, _ = fmt.Fprintf(w, "  [%s] %s: %s\n", s.Severity, s.Type, s.Description)
		}
	}
	_, _ = fmt.Fprintln(w)
}
