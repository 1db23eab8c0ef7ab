package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/ppiankov/afep/internal/afep"
	"github.com/ppiankov/afep/internal/cache"
	"github.com/ppiankov/afep/internal/diagnostics"
	"github.com/ppiankov/afep/internal/logging"
	"github.com/ppiankov/afep/internal/model"
)

// RunStore persists finished runs
type RunStore interface {
	SaveRun(ctx context.Context, report *model.RunReport) error
}

// Pipeline orchestrates a complete selection run
type Pipeline struct {
	loader     *Loader
	renderer   *Renderer
	calculator *diagnostics.Calculator
	store      RunStore // nil when runs are not persisted
	config     *model.Config
	logger     *logging.Logger
	now        func() time.Time
}

// NewPipeline creates a new pipeline with the given configuration. c and st
// may be nil.
func NewPipeline(cfg *model.Config, c cache.Cache, st RunStore, logger *logging.Logger) *Pipeline {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Pipeline{
		loader:     NewLoader(cfg, c, logger),
		renderer:   NewRenderer(),
		calculator: diagnostics.NewCalculator(),
		store:      st,
		config:     cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// WithProgress shows a parse progress bar on w
func (p *Pipeline) WithProgress(w io.Writer) *Pipeline {
	p.loader.WithProgress(w)
	return p
}

// RunResult contains the report and the files written for it
type RunResult struct {
	Report *model.RunReport
	Files  OutputFiles
}

// Run selects concepts from the extractor output in dirs, writes the outputs
// to the configured path and stores the run when a store is attached
func (p *Pipeline) Run(ctx context.Context, dirs []string) (*RunResult, error) {
	report, err := p.Select(ctx, dirs)
	if err != nil {
		return nil, err
	}

	files, err := p.renderer.Write(p.config.Run.OutPath, report)
	if err != nil {
		return nil, fmt.Errorf("write outputs: %w", err)
	}
	p.logger.Info("outputs written", "dictionary", files.Dictionary, "selected", files.Selected, "report", files.Report)

	if p.store != nil {
		if err := p.store.SaveRun(ctx, report); err != nil {
			return nil, fmt.Errorf("store run: %w", err)
		}
		p.logger.Debug("run stored", "run_id", report.RunID)
	}

	return &RunResult{Report: report, Files: files}, nil
}

// Select runs load, filter, matrix, greedy cover and aggregation without
// writing anything
func (p *Pipeline) Select(ctx context.Context, dirs []string) (*model.RunReport, error) {
	report := &model.RunReport{
		RunID:     uuid.NewString(),
		StartedAt: p.now(),
		DataDirs:  dirs,
		OutFormat: p.config.Run.OutFormat,
	}
	log := p.logger.With("run_id", report.RunID)

	// 1. Load and validate extractor output
	corpus, err := p.loader.Load(ctx, p.config.Run.OutFormat, dirs)
	if err != nil {
		return nil, fmt.Errorf("load corpus: %w", err)
	}
	report.Documents = corpus.Documents
	report.Mentions = len(corpus.Records)

	// 2. Keep concepts corroborated by half of the sources
	filtered := afep.FilterBySourceCoverage(corpus.Records)
	report.Sources = filtered.Sources
	report.Threshold = filtered.Threshold
	report.Counts.ConceptsLoaded = filtered.ConceptsBefore
	report.Counts.ConceptsCorroborated = filtered.ConceptsAfter
	log.Info("source coverage filter",
		"sources", len(filtered.Sources),
		"threshold", filtered.Threshold,
		"concepts_before", filtered.ConceptsBefore,
		"concepts_after", filtered.ConceptsAfter)

	// 3. Optional semantic-type restriction, matrix only
	allowed := afep.AllowedSemanticTypes(p.config.Run.SemanticTypes)
	matrixRecords := afep.RestrictSemanticTypes(filtered.Records, allowed)
	if len(allowed) > 0 {
		log.Info("semantic type restriction",
			"allowed", allowed,
			"mentions_before", len(filtered.Records),
			"mentions_after", len(matrixRecords),
			"concepts_after", afep.DistinctConcepts(matrixRecords))
	}

	// 4. Coverage matrix
	matrix := afep.BuildMatrix(matrixRecords)
	if err := matrix.Validate(); err != nil {
		return nil, err
	}
	report.Locations = matrix.NumRows()
	report.Counts.ConceptsInMatrix = len(matrix.Concepts())

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// 5. Greedy weighted set cover
	selector := afep.NewSelector(afep.ConceptSourceCounts(filtered.Records), afep.WithLogger(log))
	selection, err := selector.Select(matrix)
	if err != nil {
		return nil, fmt.Errorf("select concepts: %w", err)
	}
	report.Selection = selection.Picks
	report.Counts.ConceptsSelected = len(selection.Concepts)

	// 6. Dictionary over every corroborated record of the selected concepts
	report.Dictionary = afep.Aggregate(filtered.Records, selection.Concepts)

	report.Signals = p.calculator.Calculate(diagnostics.Input{
		Sources:         filtered.Sources,
		Threshold:       filtered.Threshold,
		Mentions:        len(corpus.Records),
		NegatedMentions: diagnostics.CountNegated(corpus.Records),
		SemanticTypes:   allowed,
		Locations:       report.Locations,
		Counts:          report.Counts,
		Picks:           selection.Picks,
	})
	for _, s := range report.Signals {
		if s.Severity != model.SeverityInfo {
			log.Warn(s.Description, "signal", s.Type, "severity", s.Severity)
		}
	}

	report.FinishedAt = p.now()
	return report, nil
}

// RenderSummary prints the run summary to w
func (p *Pipeline) RenderSummary(w io.Writer, report *model.RunReport) {
	p.renderer.RenderSummary(w, report)
}
