package afep

import (
	"errors"
	"fmt"

	"github.com/ppiankov/afep/internal/logging"
	"github.com/ppiankov/afep/internal/model"
)

// ErrInconsistentMatrix means a location remained with no positive concept,
// so the greedy cover cannot make progress.
var ErrInconsistentMatrix = errors.New("inconsistent coverage matrix")

// SelectionResult is the ordered output of the greedy set cover
type SelectionResult struct {
	Concepts       []string     // Selection order, no duplicates
	Picks          []model.Pick // One per iteration, parallel to Concepts
	ConceptsBefore int
	ConceptsAfter  int
}

// Selector runs the greedy weighted set cover over a Matrix
type Selector struct {
	sourceCounts map[string]int
	logger       *logging.Logger
}

// Option configures a Selector
type Option func(*Selector)

// WithLogger logs every pick at debug level
func WithLogger(l *logging.Logger) Option {
	return func(s *Selector) {
		s.logger = l
	}
}

// NewSelector creates a selector breaking ties with the given source counts
func NewSelector(sourceCounts map[string]int, opts ...Option) *Selector {
	s := &Selector{
		sourceCounts: sourceCounts,
		logger:       logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Select repeatedly picks the concept with the largest summed count over the
// uncovered locations until every location is covered. Ties go to the higher
// source count, then to the lexicographically smaller concept id.
func (s *Selector) Select(m *Matrix) (SelectionResult, error) {
	result := SelectionResult{
		Concepts:       []string{},
		Picks:          []model.Pick{},
		ConceptsBefore: len(m.concepts),
	}

	live := make([]bool, len(m.rows))
	for i := range live {
		live[i] = true
	}
	remaining := len(m.rows)

	for remaining > 0 {
		best, bestWeight, bestSources := "", 0, -1
		// m.concepts is ascending, so only a strict improvement replaces best
		for _, cui := range m.concepts {
			weight := 0
			for _, c := range m.columns[cui] {
				if live[c.row] {
					weight += c.count
				}
			}
			if weight == 0 {
				continue
			}
			sources := s.sourceCounts[cui]
			if weight > bestWeight || (weight == bestWeight && sources > bestSources) {
				best, bestWeight, bestSources = cui, weight, sources
			}
		}

		if bestWeight == 0 {
			return result, fmt.Errorf("%w: %d locations remain with no positive concept", ErrInconsistentMatrix, remaining)
		}

		covered := 0
		for _, c := range m.columns[best] {
			if live[c.row] && c.count > 0 {
				live[c.row] = false
				covered++
			}
		}
		remaining -= covered

		result.Concepts = append(result.Concepts, best)
		result.Picks = append(result.Picks, model.Pick{
			ConceptID:   best,
			Weight:      bestWeight,
			Covered:     covered,
			SourceCount: bestSources,
			Remaining:   remaining,
		})
		s.logger.Debug("selected concept", "cui", best, "weight", bestWeight, "covered", covered, "remaining", remaining)
	}

	result.ConceptsAfter = len(result.Concepts)
	s.logger.Info("greedy set cover complete", "concepts_before", result.ConceptsBefore, "concepts_after", result.ConceptsAfter)
	return result, nil
}
