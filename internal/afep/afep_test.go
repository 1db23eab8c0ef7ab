package afep

import (
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"github.com/ppiankov/afep/internal/model"
)

// mention builds a record with the fields the core looks at
func mention(doc string, start int, text string, cui string, vocab ...string) model.MentionRecord {
	if len(vocab) == 0 {
		vocab = []string{"MTH"}
	}
	return model.MentionRecord{
		EventID:             fmt.Sprintf("%s_%d", doc, start),
		DocumentID:          doc,
		SourceName:          sourceOf(doc),
		Start:               start,
		Length:              len(text),
		MatchedText:         text,
		ConceptID:           cui,
		PreferredName:       "name " + cui,
		ConceptString:       "string " + cui,
		ContributingSources: vocab,
		SemanticTypes:       []string{"dsyn"},
	}
}

func sourceOf(doc string) string {
	for i := 0; i < len(doc); i++ {
		if doc[i] == '_' {
			return doc[:i]
		}
	}
	return doc
}

func repeat(n int, r model.MentionRecord) []model.MentionRecord {
	out := make([]model.MentionRecord, n)
	for i := range out {
		out[i] = r
	}
	return out
}

func TestSourceThreshold(t *testing.T) {
	cases := map[int]int{0: 0, 1: 1, 2: 1, 3: 2, 4: 2, 5: 3, 6: 3}
	for total, want := range cases {
		if got := SourceThreshold(total); got != want {
			t.Errorf("SourceThreshold(%d) = %d, want %d", total, got, want)
		}
	}
}

func TestFilterBySourceCoverage_ThresholdExactness(t *testing.T) {
	records := []model.MentionRecord{
		// C1 is seen in A, B, C (kept at threshold 3)
		mention("A_doc", 0, "flu", "C1"),
		mention("B_doc", 0, "flu", "C1"),
		mention("C_doc", 0, "flu", "C1"),
		// C2 is seen in A, B only (dropped)
		mention("A_doc", 10, "fever", "C2"),
		mention("B_doc", 10, "fever", "C2"),
		// C3 brings in sources D and E
		mention("D_doc", 0, "cough", "C3"),
		mention("E_doc", 0, "cough", "C3"),
	}

	result := FilterBySourceCoverage(records)

	if result.Threshold != 3 {
		t.Fatalf("Expected threshold 3 for 5 sources, got %d", result.Threshold)
	}
	if !reflect.DeepEqual(result.Sources, []string{"A", "B", "C", "D", "E"}) {
		t.Errorf("Unexpected sources: %v", result.Sources)
	}
	if result.ConceptsBefore != 3 || result.ConceptsAfter != 1 {
		t.Errorf("Expected 3 -> 1 concepts, got %d -> %d", result.ConceptsBefore, result.ConceptsAfter)
	}
	if len(result.Records) != 3 {
		t.Fatalf("Expected 3 records kept, got %d", len(result.Records))
	}
	for _, r := range result.Records {
		if r.ConceptID != "C1" {
			t.Errorf("Unexpected concept kept: %s", r.ConceptID)
		}
	}
	if result.Corroboration["C2"] != 2 {
		t.Errorf("Expected C2 corroborated by 2 sources, got %d", result.Corroboration["C2"])
	}
}

func TestFilterBySourceCoverage_Idempotent(t *testing.T) {
	records := []model.MentionRecord{
		mention("A_1", 0, "flu", "C1"),
		mention("B_1", 0, "flu", "C1"),
		mention("A_1", 5, "cold", "C2"),
		mention("C_1", 5, "cold", "C3"),
		mention("D_1", 5, "cold", "C3"),
	}

	first := FilterBySourceCoverage(records)
	second := FilterBySourceCoverage(first.Records)

	if !reflect.DeepEqual(first.Records, second.Records) {
		t.Errorf("Filter is not idempotent:\nfirst:  %v\nsecond: %v", first.Records, second.Records)
	}
}

func TestFilterBySourceCoverage_Empty(t *testing.T) {
	result := FilterBySourceCoverage(nil)

	if result.Threshold != 0 {
		t.Errorf("Expected threshold 0 for empty input, got %d", result.Threshold)
	}
	if len(result.Records) != 0 {
		t.Errorf("Expected no records, got %d", len(result.Records))
	}
}

func TestRestrictSemanticTypes(t *testing.T) {
	a := mention("A_1", 0, "flu", "C1")
	b := mention("A_1", 5, "covid", "C2")
	b.SemanticTypes = []string{"virs", "dsyn"}
	c := mention("A_1", 9, "mask", "C3")
	c.SemanticTypes = []string{"mnob"}

	all := RestrictSemanticTypes([]model.MentionRecord{a, b, c}, nil)
	if len(all) != 3 {
		t.Errorf("Expected empty allow-list to keep all records, got %d", len(all))
	}

	kept := RestrictSemanticTypes([]model.MentionRecord{a, b, c}, []string{"virs"})
	if len(kept) != 1 || kept[0].ConceptID != "C2" {
		t.Errorf("Expected only C2 to carry virs, got %v", kept)
	}
}

func TestRestrictSemanticTypes_AllAndTUIs(t *testing.T) {
	a := mention("A_1", 0, "flu", "C1")
	c := mention("A_1", 9, "mask", "C3")
	c.SemanticTypes = []string{"mnob"}

	if got := RestrictSemanticTypes([]model.MentionRecord{a, c}, []string{"all"}); len(got) != 2 {
		t.Errorf("Expected \"all\" to keep every record, got %d", len(got))
	}

	kept := RestrictSemanticTypes([]model.MentionRecord{a, c}, []string{"T047"})
	if len(kept) != 1 || kept[0].ConceptID != "C1" {
		t.Errorf("Expected TUI T047 to match dsyn, got %v", kept)
	}

	defaults := RestrictSemanticTypes([]model.MentionRecord{a, c}, model.DefaultSemanticTypes())
	if len(defaults) != 1 || defaults[0].ConceptID != "C1" {
		t.Errorf("Expected clinical defaults to drop mnob, got %v", defaults)
	}
}

func TestAllowedSemanticTypes(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, nil},
		{"all", []string{"dsyn", "all"}, nil},
		{"all uppercase", []string{" ALL "}, nil},
		{"tui mapped", []string{"T047", "sosy"}, []string{"dsyn", "sosy"}},
		{"deduped", []string{"dsyn", "T047", "dsyn"}, []string{"dsyn"}},
		{"blanks skipped", []string{"", "  ", "fndg"}, []string{"fndg"}},
		{"unknown kept", []string{"T999"}, []string{"T999"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AllowedSemanticTypes(tt.in)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("AllowedSemanticTypes(%v) = %v, want %v", tt.in, got, tt.want)
			}
			if tt.want == nil && got != nil {
				t.Errorf("Expected nil, got %v", got)
			}
		})
	}
}

func TestConceptSourceCounts_Union(t *testing.T) {
	records := []model.MentionRecord{
		mention("A_1", 0, "flu", "C1", "MTH", "MSH"),
		mention("B_1", 0, "flu", "C1", "MSH", "NCI"),
		mention("B_1", 3, "cold", "C2", "MTH"),
	}

	counts := ConceptSourceCounts(records)

	if counts["C1"] != 3 {
		t.Errorf("Expected C1 to have 3 distinct vocabulary sources, got %d", counts["C1"])
	}
	if counts["C2"] != 1 {
		t.Errorf("Expected C2 to have 1 vocabulary source, got %d", counts["C2"])
	}
}

func TestBuildMatrix_CountsOverlappingMentions(t *testing.T) {
	var records []model.MentionRecord
	records = append(records, repeat(3, mention("A_1", 0, "flu", "C1"))...)
	records = append(records, mention("A_1", 0, "flu", "C2"))
	records = append(records, mention("A_1", 0, "flu shot", "C3"))

	m := BuildMatrix(records)

	if m.NumRows() != 2 {
		t.Fatalf("Expected 2 locations, got %d", m.NumRows())
	}
	if !reflect.DeepEqual(m.Concepts(), []string{"C1", "C2", "C3"}) {
		t.Errorf("Unexpected concepts: %v", m.Concepts())
	}

	loc := model.Location{DocumentID: "A_1", Start: 0, MatchedText: "flu"}
	if got := m.Cell(loc, "C1"); got != 3 {
		t.Errorf("Expected C1 count 3 at %s, got %d", loc, got)
	}
	if got := m.Cell(loc, "C3"); got != 0 {
		t.Errorf("Expected absent cell to be 0, got %d", got)
	}
	if err := m.Validate(); err != nil {
		t.Errorf("Expected valid matrix, got %v", err)
	}
}

func TestBuildMatrix_FilteredLocationsVanish(t *testing.T) {
	records := []model.MentionRecord{
		mention("A_1", 0, "flu", "C1"),
		mention("B_1", 0, "flu", "C1"),
		mention("C_1", 0, "flu", "C1"),
		mention("A_1", 7, "rare", "C9"), // only in A, below the threshold of 2
	}

	filtered := FilterBySourceCoverage(records)
	if filtered.Threshold != 2 {
		t.Fatalf("Expected threshold 2 for 3 sources, got %d", filtered.Threshold)
	}
	m := BuildMatrix(filtered.Records)

	for _, loc := range m.Rows() {
		if loc.MatchedText == "rare" {
			t.Errorf("Location %s should not survive filtering", loc)
		}
	}
	if m.NumRows() != 3 {
		t.Errorf("Expected 3 flu rows, got %d", m.NumRows())
	}
}

func TestSelect_Scenario(t *testing.T) {
	var records []model.MentionRecord
	// L1 = {A:2, B:1}
	records = append(records, repeat(2, mention("Doc_1", 0, "l1", "A"))...)
	records = append(records, mention("Doc_1", 0, "l1", "B"))
	// L2 = {A:1}
	records = append(records, mention("Doc_1", 10, "l2", "A"))
	// L3 = {B:3}
	records = append(records, repeat(3, mention("Doc_1", 20, "l3", "B"))...)

	m := BuildMatrix(records)
	result, err := NewSelector(map[string]int{"A": 2, "B": 3}).Select(m)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	if !reflect.DeepEqual(result.Concepts, []string{"B", "A"}) {
		t.Fatalf("Expected [B A], got %v", result.Concepts)
	}

	want := []model.Pick{
		{ConceptID: "B", Weight: 4, Covered: 2, SourceCount: 3, Remaining: 1},
		{ConceptID: "A", Weight: 1, Covered: 1, SourceCount: 2, Remaining: 0},
	}
	if !reflect.DeepEqual(result.Picks, want) {
		t.Errorf("Unexpected picks:\ngot  %+v\nwant %+v", result.Picks, want)
	}
	if result.ConceptsBefore != 2 || result.ConceptsAfter != 2 {
		t.Errorf("Expected 2 -> 2 concepts, got %d -> %d", result.ConceptsBefore, result.ConceptsAfter)
	}
}

func TestSelect_TieBreakBySourceCount(t *testing.T) {
	records := []model.MentionRecord{
		mention("Doc_1", 0, "x", "C1"),
		mention("Doc_1", 5, "y", "C2"),
	}

	result, err := NewSelector(map[string]int{"C1": 1, "C2": 4}).Select(BuildMatrix(records))
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	if result.Concepts[0] != "C2" {
		t.Errorf("Expected C2 (more sources) to win the tie, got %v", result.Concepts)
	}
}

func TestSelect_TieBreakByConceptID(t *testing.T) {
	records := []model.MentionRecord{
		mention("Doc_1", 0, "x", "C7"),
		mention("Doc_1", 5, "y", "C3"),
		mention("Doc_1", 9, "z", "C5"),
	}
	counts := map[string]int{"C3": 2, "C5": 2, "C7": 2}

	first, err := NewSelector(counts).Select(BuildMatrix(records))
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if !reflect.DeepEqual(first.Concepts, []string{"C3", "C5", "C7"}) {
		t.Errorf("Expected lexicographic order on full ties, got %v", first.Concepts)
	}

	for i := 0; i < 20; i++ {
		again, err := NewSelector(counts).Select(BuildMatrix(records))
		if err != nil {
			t.Fatalf("Select failed: %v", err)
		}
		if !reflect.DeepEqual(first.Concepts, again.Concepts) {
			t.Fatalf("Run %d differs: %v vs %v", i, again.Concepts, first.Concepts)
		}
	}
}

func TestSelect_WeightSumsRawCounts(t *testing.T) {
	var records []model.MentionRecord
	// C1 covers one location three times; C2 covers two locations once each
	records = append(records, repeat(3, mention("Doc_1", 0, "a", "C1"))...)
	records = append(records, mention("Doc_1", 5, "b", "C2"))
	records = append(records, mention("Doc_1", 9, "c", "C2"))

	result, err := NewSelector(map[string]int{}).Select(BuildMatrix(records))
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if result.Concepts[0] != "C1" {
		t.Errorf("Expected C1 (weight 3) before C2 (weight 2), got %v", result.Concepts)
	}
}

func TestSelect_Empty(t *testing.T) {
	result, err := NewSelector(nil).Select(BuildMatrix(nil))
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if len(result.Concepts) != 0 || len(result.Picks) != 0 {
		t.Errorf("Expected empty selection, got %v", result.Concepts)
	}
}

func TestSelect_InconsistentMatrix(t *testing.T) {
	m := &Matrix{
		rows:     []model.Location{{DocumentID: "Doc_1", Start: 0, MatchedText: "x"}},
		concepts: []string{"C1"},
		columns:  map[string][]cell{"C1": {{row: 0, count: 0}}},
		rowTotal: []int{0},
	}

	if err := m.Validate(); !errors.Is(err, ErrInconsistentMatrix) {
		t.Errorf("Expected Validate to report ErrInconsistentMatrix, got %v", err)
	}

	_, err := NewSelector(nil).Select(m)
	if !errors.Is(err, ErrInconsistentMatrix) {
		t.Errorf("Expected ErrInconsistentMatrix, got %v", err)
	}
}

func TestSelect_CoverageProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	sources := []string{"Wikipedia", "Medscape", "Mayo", "Merck", "Medline"}

	var records []model.MentionRecord
	for i := 0; i < 400; i++ {
		doc := sources[rng.Intn(len(sources))] + "_COVID-19"
		start := rng.Intn(120)
		cui := fmt.Sprintf("C%03d", rng.Intn(40))
		records = append(records, mention(doc, start, fmt.Sprintf("t%d", start%7), cui))
	}

	filtered := FilterBySourceCoverage(records)
	m := BuildMatrix(filtered.Records)
	if err := m.Validate(); err != nil {
		t.Fatalf("Validate failed: %v", err)
	}
	counts := ConceptSourceCounts(filtered.Records)

	result, err := NewSelector(counts).Select(m)
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	// Coverage completeness
	covered := make(map[model.Location]bool)
	for _, cui := range result.Concepts {
		for _, loc := range m.Rows() {
			if m.Cell(loc, cui) > 0 {
				covered[loc] = true
			}
		}
	}
	if len(covered) != m.NumRows() {
		t.Errorf("Selection covers %d of %d locations", len(covered), m.NumRows())
	}

	// No wasted picks and monotonic shrink
	prev := m.NumRows()
	seen := make(map[string]bool)
	for _, p := range result.Picks {
		if p.Weight <= 0 || p.Covered <= 0 {
			t.Errorf("Pick %s had weight %d, covered %d", p.ConceptID, p.Weight, p.Covered)
		}
		if p.Remaining >= prev {
			t.Errorf("Rows did not shrink after %s: %d -> %d", p.ConceptID, prev, p.Remaining)
		}
		if seen[p.ConceptID] {
			t.Errorf("Concept %s selected twice", p.ConceptID)
		}
		seen[p.ConceptID] = true
		prev = p.Remaining
	}
	if prev != 0 {
		t.Errorf("Expected 0 rows remaining, got %d", prev)
	}
}

func TestAggregate_MergesAndDeduplicates(t *testing.T) {
	a := mention("Src1_doc", 0, "flu", "C1", "MSH", "MTH")
	b := mention("Src2_doc", 4, "Flu", "C1", "MTH")
	c := mention("Src2_doc", 9, "flu", "C1", "NCI")
	c.SemanticTypes = []string{"dsyn", "virs"}
	other := mention("Src1_doc", 20, "cold", "C2")

	forward := Aggregate([]model.MentionRecord{a, b, c, other}, []string{"C1"})
	backward := Aggregate([]model.MentionRecord{other, c, b, a}, []string{"C1"})

	if len(forward) != 1 {
		t.Fatalf("Expected 1 entry, got %d", len(forward))
	}
	entry := forward[0]
	if entry.MatchedTexts != "Flu,flu" {
		t.Errorf("Expected matched texts 'Flu,flu', got %q", entry.MatchedTexts)
	}
	if entry.Sources != "MSH,MTH,NCI" {
		t.Errorf("Expected sources 'MSH,MTH,NCI', got %q", entry.Sources)
	}
	if entry.SemanticTypes != "dsyn,virs" {
		t.Errorf("Expected semantic types 'dsyn,virs', got %q", entry.SemanticTypes)
	}
	if entry.PreferredName != "name C1" {
		t.Errorf("Unexpected preferred name %q", entry.PreferredName)
	}
	if !reflect.DeepEqual(forward, backward) {
		t.Errorf("Aggregate depends on input order:\n%+v\n%+v", forward, backward)
	}
}

func TestAggregate_SelectionOrder(t *testing.T) {
	records := []model.MentionRecord{
		mention("A_1", 0, "x", "C1"),
		mention("A_1", 5, "y", "C2"),
	}

	entries := Aggregate(records, []string{"C2", "C1"})
	if len(entries) != 2 || entries[0].ConceptID != "C2" || entries[1].ConceptID != "C1" {
		t.Errorf("Expected entries in selection order, got %+v", entries)
	}
}

func TestPreferredName_MostFrequent(t *testing.T) {
	if got := preferredName([]string{"B", "A", "B"}); got != "B" {
		t.Errorf("Expected most frequent name B, got %q", got)
	}
	if got := preferredName([]string{"B", "A"}); got != "A" {
		t.Errorf("Expected tie to resolve to A, got %q", got)
	}
}
