package model

import "time"

// RunReport is the complete record of one selection run
type RunReport struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	DataDirs   []string          `json:"data_dirs"`
	OutFormat  string            `json:"out_format"`
	Documents  int               `json:"documents"`
	Mentions   int               `json:"mentions"`
	Sources    []string          `json:"sources"`   // Distinct corpus sources, sorted
	Threshold  int               `json:"threshold"` // ceil(len(Sources) / 2)
	Locations  int               `json:"locations"` // Rows of the coverage matrix
	Selection  []Pick            `json:"selection"` // Greedy picks in order
	Dictionary []DictionaryEntry `json:"dictionary"`

	Counts  StageCounts `json:"counts"`
	Signals []Signal    `json:"signals"`
}

// StageCounts tracks distinct concept counts through the pipeline
type StageCounts struct {
	ConceptsLoaded       int `json:"concepts_loaded"`
	ConceptsCorroborated int `json:"concepts_corroborated"` // After the source-coverage filter
	ConceptsInMatrix     int `json:"concepts_in_matrix"`    // After the semantic-type restriction
	ConceptsSelected     int `json:"concepts_selected"`
}

// Pick records one iteration of the greedy set cover
type Pick struct {
	ConceptID   string `json:"cui"`
	Weight      int    `json:"weight"`       // Summed occurrence counts over live rows
	Covered     int    `json:"covered"`      // Rows removed by this pick
	SourceCount int    `json:"source_count"` // Distinct contributing vocabulary sources
	Remaining   int    `json:"remaining"`    // Live rows after this pick
}

// DictionaryEntry is the merged metadata of one selected concept
type DictionaryEntry struct {
	ConceptID      string `json:"cui"`
	PreferredName  string `json:"preferredname"`
	ConceptStrings string `json:"conceptstring"`
	MatchedTexts   string `json:"matchedtext"`
	Sources        string `json:"all_sources"`
	SemanticTypes  string `json:"all_semantictypes"`
}

// Signal represents a diagnostic signal with transparent data
type Signal struct {
	Type        SignalType             `json:"type"`
	Severity    SignalSeverity         `json:"severity"`
	Description string                 `json:"description"`
	Data        map[string]interface{} `json:"data,omitempty"` // Inputs and formula behind the signal
}

// SignalType classifies the type of diagnostic signal
type SignalType string

const (
	SignalSourceCoverage      SignalType = "source_coverage"      // Half-of-sources corroboration filter
	SignalSemanticRestriction SignalType = "semantic_restriction" // Semantic-type allow-list
	SignalSetCover            SignalType = "set_cover"            // Greedy reduction
	SignalSingleSource        SignalType = "single_source_corpus" // Corroboration is meaningless
	SignalNegatedMentions     SignalType = "negated_mentions"     // Share of negated mentions in the corpus
)

// SignalSeverity indicates the importance of the signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
