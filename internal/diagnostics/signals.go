package diagnostics

import (
	"fmt"

	"github.com/ppiankov/afep/internal/model"
)

// Input summarizes one run for signal generation
type Input struct {
	Sources         []string
	Threshold       int
	Mentions        int
	NegatedMentions int
	SemanticTypes   []string // Matrix allow-list; empty when unrestricted
	Locations       int
	Counts          model.StageCounts
	Picks           []model.Pick
}

// Calculator generates transparent diagnostic signals for a run. Signals
// describe the run; they never change the selection.
type Calculator struct{}

// NewCalculator creates a new calculator
func NewCalculator() *Calculator {
	return &Calculator{}
}

// Calculate generates every applicable signal
func (c *Calculator) Calculate(in Input) []model.Signal {
	var signals []model.Signal

	if sig, ok := c.detectSingleSource(in); ok {
		signals = append(signals, sig)
	}

	signals = append(signals, c.sourceCoverage(in))

	if len(in.SemanticTypes) > 0 {
		signals = append(signals, c.semanticRestriction(in))
	}

	signals = append(signals, c.setCover(in))

	if in.NegatedMentions > 0 {
		signals = append(signals, c.negatedMentions(in))
	}

	return signals
}

// detectSingleSource warns when corroboration across sources cannot happen
func (c *Calculator) detectSingleSource(in Input) (model.Signal, bool) {
	switch len(in.Sources) {
	case 0:
		return model.Signal{
			Type:        model.SignalSingleSource,
			Severity:    model.SeverityCritical,
			Description: "No sources in corpus",
			Data: map[string]interface{}{
				"sources": 0,
			},
		}, true
	case 1:
		return model.Signal{
			Type:        model.SignalSingleSource,
			Severity:    model.SeverityWarning,
			Description: fmt.Sprintf("Only one source (%s); every concept passes the coverage filter", in.Sources[0]),
			Data: map[string]interface{}{
				"sources":   1,
				"source":    in.Sources[0],
				"threshold": in.Threshold,
			},
		}, true
	}
	return model.Signal{}, false
}

func (c *Calculator) sourceCoverage(in Input) model.Signal {
	before := in.Counts.ConceptsLoaded
	after := in.Counts.ConceptsCorroborated

	kept := 0.0
	if before > 0 {
		kept = float64(after) / float64(before)
	}

	severity := model.SeverityInfo
	if before > 0 && after == 0 {
		severity = model.SeverityCritical
	}

	return model.Signal{
		Type:     model.SignalSourceCoverage,
		Severity: severity,
		Description: fmt.Sprintf("%d of %d concepts mentioned by at least %d of %d sources",
			after, before, in.Threshold, len(in.Sources)),
		Data: map[string]interface{}{
			"sources":         len(in.Sources),
			"threshold":       in.Threshold,
			"concepts_before": before,
			"concepts_after":  after,
			"kept_ratio":      kept,
			"formula":         "keep concept if distinct_sources(concept) >= ceil(total_sources / 2)",
		},
	}
}

func (c *Calculator) semanticRestriction(in Input) model.Signal {
	before := in.Counts.ConceptsCorroborated
	after := in.Counts.ConceptsInMatrix

	severity := model.SeverityInfo
	if before > 0 && after == 0 {
		severity = model.SeverityWarning
	}

	return model.Signal{
		Type:        model.SignalSemanticRestriction,
		Severity:    severity,
		Description: fmt.Sprintf("%d of %d corroborated concepts carry an allowed semantic type", after, before),
		Data: map[string]interface{}{
			"allowed":         in.SemanticTypes,
			"concepts_before": before,
			"concepts_after":  after,
		},
	}
}

func (c *Calculator) setCover(in Input) model.Signal {
	before := in.Counts.ConceptsInMatrix
	after := len(in.Picks)

	reduction := 0.0
	if before > 0 {
		reduction = 1 - float64(after)/float64(before)
	}

	return model.Signal{
		Type:     model.SignalSetCover,
		Severity: model.SeverityInfo,
		Description: fmt.Sprintf("%d concepts cover %d locations (%.0f%% fewer than the %d candidates)",
			after, in.Locations, reduction*100, before),
		Data: map[string]interface{}{
			"locations":       in.Locations,
			"concepts_before": before,
			"concepts_after":  after,
			"iterations":      after,
			"reduction_ratio": reduction,
			"formula":         "1 - selected / candidates",
		},
	}
}

func (c *Calculator) negatedMentions(in Input) model.Signal {
	ratio := 0.0
	if in.Mentions > 0 {
		ratio = float64(in.NegatedMentions) / float64(in.Mentions)
	}

	severity := model.SeverityInfo
	if ratio > 0.25 {
		severity = model.SeverityWarning
	}

	return model.Signal{
		Type:        model.SignalNegatedMentions,
		Severity:    severity,
		Description: fmt.Sprintf("%.1f%% of mentions are negated; negation does not affect selection", ratio*100),
		Data: map[string]interface{}{
			"mentions": in.Mentions,
			"negated":  in.NegatedMentions,
			"ratio":    ratio,
			"formula":  "negated_mentions / mentions",
		},
	}
}

// CountNegated counts records flagged as negated
func CountNegated(records []model.MentionRecord) int {
	n := 0
	for _, r := range records {
		if r.Negated != nil && *r.Negated {
			n++
		}
	}
	return n
}

// HasCritical reports whether any signal is critical
func HasCritical(signals []model.Signal) bool {
	for _, s := range signals {
		if s.Severity == model.SeverityCritical {
			return true
		}
	}
	return false
}
