package model

import "fmt"

// MentionRecord is one detected occurrence of a concept in one document
type MentionRecord struct {
	EventID             string   `json:"event_id"`             // <DocumentID>_<n>, n = event index in the document
	DocumentID          string   `json:"document_id"`          // File stem of the annotated document
	SourceName          string   `json:"source_name"`          // Corroborating source (document id prefix)
	Start               int      `json:"start"`                // Character offset of the mention
	Length              int      `json:"length"`               // Mention length; not part of the location key
	MatchedText         string   `json:"matched_text"`         // Literal surface string
	ConceptID           string   `json:"concept_id"`           // CUI
	PreferredName       string   `json:"preferred_name"`       // UMLS preferred name
	ConceptString       string   `json:"concept_string"`       // Concept string matched by the extractor
	ContributingSources []string `json:"contributing_sources"` // Vocabulary provenance tags (MSH, SNOMEDCT_US, ...)
	SemanticTypes       []string `json:"semantic_types"`       // Semantic type abbreviations (dsyn, virs, ...)
	Negated             *bool    `json:"negated,omitempty"`    // Negation flag of the enclosing entity, if reported
}

// Location identifies a unique place in the corpus where concepts were detected
type Location struct {
	DocumentID  string `json:"document_id"`
	Start       int    `json:"start"`
	MatchedText string `json:"matched_text"`
}

// Location returns the location key of the record
func (r MentionRecord) Location() Location {
	return Location{
		DocumentID:  r.DocumentID,
		Start:       r.Start,
		MatchedText: r.MatchedText,
	}
}

// HasSemanticType reports whether the record carries any of the given types
func (r MentionRecord) HasSemanticType(allowed map[string]bool) bool {
	for _, st := range r.SemanticTypes {
		if allowed[st] {
			return true
		}
	}
	return false
}

// Less orders locations by document, then offset, then matched text
func (l Location) Less(o Location) bool {
	if l.DocumentID != o.DocumentID {
		return l.DocumentID < o.DocumentID
	}
	if l.Start != o.Start {
		return l.Start < o.Start
	}
	return l.MatchedText < o.MatchedText
}

func (l Location) String() string {
	return fmt.Sprintf("%s@%d:%q", l.DocumentID, l.Start, l.MatchedText)
}
