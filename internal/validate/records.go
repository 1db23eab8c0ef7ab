package validate

import (
	"fmt"
	"strings"

	"github.com/ppiankov/afep/internal/model"
)

// RecordError reports a mention record that breaks the extractor contract
type RecordError struct {
	Index      int    // Position in the input slice
	EventID    string // Event id, when present
	DocumentID string
	Field      string
	Reason     string
}

func (e *RecordError) Error() string {
	id := e.EventID
	if id == "" {
		id = fmt.Sprintf("#%d", e.Index)
	}
	if e.DocumentID != "" {
		return fmt.Sprintf("invalid mention %s in %s: %s %s", id, e.DocumentID, e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid mention %s: %s %s", id, e.Field, e.Reason)
}

// Record checks one mention record. idx is only used for error context.
func Record(idx int, r model.MentionRecord) error {
	fail := func(field, reason string) error {
		return &RecordError{
			Index:      idx,
			EventID:    r.EventID,
			DocumentID: r.DocumentID,
			Field:      field,
			Reason:     reason,
		}
	}

	switch {
	case blank(r.DocumentID):
		return fail("document_id", "is empty")
	case blank(r.SourceName):
		return fail("source_name", "is empty")
	case r.Start < 0:
		return fail("start", fmt.Sprintf("is negative (%d)", r.Start))
	case blank(r.MatchedText):
		return fail("matched_text", "is empty")
	case blank(r.ConceptID):
		return fail("concept_id", "is empty")
	case blank(r.PreferredName):
		return fail("preferred_name", "is empty")
	case blank(r.ConceptString):
		return fail("concept_string", "is empty")
	case !hasValue(r.ContributingSources):
		return fail("contributing_sources", "has no values")
	case !hasValue(r.SemanticTypes):
		return fail("semantic_types", "has no values")
	}
	return nil
}

// Records checks every record and fails on the first violation
func Records(records []model.MentionRecord) error {
	for i, r := range records {
		if err := Record(i, r); err != nil {
			return err
		}
	}
	return nil
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}

func hasValue(values []string) bool {
	for _, v := range values {
		if !blank(v) {
			return true
		}
	}
	return false
}
