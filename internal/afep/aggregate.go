package afep

import (
	"sort"
	"strings"

	"github.com/ppiankov/afep/internal/model"
	"github.com/xtgo/set"
)

// Aggregate merges the metadata of every selected concept into one
// dictionary entry, in selection order. Merged fields are deduplicated,
// sorted and comma-joined so the output does not depend on record order.
func Aggregate(records []model.MentionRecord, selected []string) []model.DictionaryEntry {
	byConcept := make(map[string][]model.MentionRecord, len(selected))
	want := make(map[string]bool, len(selected))
	for _, cui := range selected {
		want[cui] = true
	}
	for _, r := range records {
		if want[r.ConceptID] {
			byConcept[r.ConceptID] = append(byConcept[r.ConceptID], r)
		}
	}

	entries := make([]model.DictionaryEntry, 0, len(selected))
	for _, cui := range selected {
		group := byConcept[cui]

		var names, conceptStrings, matched, sources, semtypes []string
		for _, r := range group {
			names = append(names, r.PreferredName)
			conceptStrings = append(conceptStrings, r.ConceptString)
			matched = append(matched, r.MatchedText)
			sources = append(sources, r.ContributingSources...)
			semtypes = append(semtypes, r.SemanticTypes...)
		}

		entries = append(entries, model.DictionaryEntry{
			ConceptID:      cui,
			PreferredName:  preferredName(names),
			ConceptStrings: joinUnique(conceptStrings),
			MatchedTexts:   joinUnique(matched),
			Sources:        joinUnique(sources),
			SemanticTypes:  joinUnique(semtypes),
		})
	}
	return entries
}

// joinUnique sorts, deduplicates and comma-joins non-empty values
func joinUnique(values []string) string {
	data := make(sort.StringSlice, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			data = append(data, v)
		}
	}
	sort.Sort(data)
	n := set.Uniq(data)
	return strings.Join(data[:n], ",")
}

// preferredName picks the most frequent name; ties go to the smaller string
func preferredName(names []string) string {
	freq := make(map[string]int)
	for _, n := range names {
		if n != "" {
			freq[n]++
		}
	}

	best, bestN := "", 0
	for n, c := range freq {
		if c > bestN || (c == bestN && n < best) {
			best, bestN = n, c
		}
	}
	return best
}
