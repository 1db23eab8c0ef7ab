package afep

import (
	"sort"
	"strings"

	"github.com/ppiankov/afep/internal/model"
)

// FilterResult is the outcome of the source-coverage filter
type FilterResult struct {
	Records        []model.MentionRecord
	Sources        []string       // Distinct corpus sources, sorted
	Threshold      int            // ceil(len(Sources) / 2)
	Corroboration  map[string]int // concept -> distinct sources mentioning it
	ConceptsBefore int
	ConceptsAfter  int
}

// SourceThreshold returns ceil(totalSources / 2)
func SourceThreshold(totalSources int) int {
	return (totalSources + 1) / 2
}

// FilterBySourceCoverage keeps records whose concept is mentioned by at least
// half of the distinct sources in the corpus.
func FilterBySourceCoverage(records []model.MentionRecord) FilterResult {
	sources := make(map[string]bool)
	conceptSources := make(map[string]map[string]bool)
	for _, r := range records {
		sources[r.SourceName] = true
		if conceptSources[r.ConceptID] == nil {
			conceptSources[r.ConceptID] = make(map[string]bool)
		}
		conceptSources[r.ConceptID][r.SourceName] = true
	}

	threshold := SourceThreshold(len(sources))
	corroboration := make(map[string]int, len(conceptSources))
	for cui, srcs := range conceptSources {
		corroboration[cui] = len(srcs)
	}

	kept := make([]model.MentionRecord, 0, len(records))
	after := make(map[string]bool)
	for _, r := range records {
		if corroboration[r.ConceptID] >= threshold {
			kept = append(kept, r)
			after[r.ConceptID] = true
		}
	}

	return FilterResult{
		Records:        kept,
		Sources:        sortedKeys(sources),
		Threshold:      threshold,
		Corroboration:  corroboration,
		ConceptsBefore: len(conceptSources),
		ConceptsAfter:  len(after),
	}
}

// AllowedSemanticTypes normalizes a configured allow-list: TUIs become
// abbreviations, blanks and duplicates are dropped. It returns nil when the
// list is empty or contains "all".
func AllowedSemanticTypes(configured []string) []string {
	seen := make(map[string]bool, len(configured))
	var out []string
	for _, st := range configured {
		st = strings.TrimSpace(st)
		if strings.EqualFold(st, model.AllSemanticTypes) {
			return nil
		}
		if st == "" {
			continue
		}
		st = model.SemanticTypeAbbrev(st)
		if !seen[st] {
			seen[st] = true
			out = append(out, st)
		}
	}
	return out
}

// RestrictSemanticTypes keeps records carrying at least one allowed semantic
// type. An empty allow-list, or one containing "all", keeps everything.
func RestrictSemanticTypes(records []model.MentionRecord, allowed []string) []model.MentionRecord {
	allowed = AllowedSemanticTypes(allowed)
	if len(allowed) == 0 {
		return records
	}

	allow := make(map[string]bool, len(allowed))
	for _, st := range allowed {
		allow[st] = true
	}

	kept := make([]model.MentionRecord, 0, len(records))
	for _, r := range records {
		if r.HasSemanticType(allow) {
			kept = append(kept, r)
		}
	}
	return kept
}

// ConceptSourceCounts maps each concept to the number of distinct contributing
// vocabulary sources observed across the records. Used only for tie-breaking.
func ConceptSourceCounts(records []model.MentionRecord) map[string]int {
	vocab := make(map[string]map[string]bool)
	for _, r := range records {
		if vocab[r.ConceptID] == nil {
			vocab[r.ConceptID] = make(map[string]bool)
		}
		for _, s := range r.ContributingSources {
			vocab[r.ConceptID][s] = true
		}
	}

	counts := make(map[string]int, len(vocab))
	for cui, srcs := range vocab {
		counts[cui] = len(srcs)
	}
	return counts
}

// DistinctConcepts counts distinct concept ids
func DistinctConcepts(records []model.MentionRecord) int {
	seen := make(map[string]bool)
	for _, r := range records {
		seen[r.ConceptID] = true
	}
	return len(seen)
}

func sortedKeys(m map[string]bool) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
