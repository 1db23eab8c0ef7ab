package adapters

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ppiankov/afep/internal/model"
)

// ErrMissingSpan is returned for an event without a start offset or length
var ErrMissingSpan = errors.New("event has no span")

// MetaMapLiteJSONAdapter parses MetaMapLite's JSON output (--outputformat=json)
type MetaMapLiteJSONAdapter struct{}

// NewMetaMapLiteJSONAdapter creates a new MetaMapLite JSON adapter
func NewMetaMapLiteJSONAdapter() *MetaMapLiteJSONAdapter {
	return &MetaMapLiteJSONAdapter{}
}

// Name returns the adapter name
func (a *MetaMapLiteJSONAdapter) Name() string {
	return "json"
}

// CanHandle checks if the format is MetaMapLite JSON
func (a *MetaMapLiteJSONAdapter) CanHandle(format string) bool {
	return format == "json"
}

// Pattern returns the output file glob
func (a *MetaMapLiteJSONAdapter) Pattern() string {
	return "*.json"
}

// mmlEntity is one entity of the MetaMapLite JSON array
type mmlEntity struct {
	MatchedText string     `json:"matchedtext"`
	Negated     *flexBool  `json:"negated"`
	EvList      []mmlEvent `json:"evlist"`
	DocID       string     `json:"docid"`
	Start       int        `json:"start"`
	Length      int        `json:"length"`
	ID          string     `json:"id"`
}

// mmlEvent is one candidate concept of an entity
type mmlEvent struct {
	Score       float64        `json:"score"`
	MatchedText string         `json:"matchedtext"`
	Pos         string         `json:"pos"`
	Start       *int           `json:"start"`
	Length      *int           `json:"length"`
	ID          string         `json:"id"`
	ConceptInfo mmlConceptInfo `json:"conceptinfo"`
}

type mmlConceptInfo struct {
	ConceptString string   `json:"conceptstring"`
	Sources       []string `json:"sources"`
	CUI           string   `json:"cui"`
	PreferredName string   `json:"preferredname"`
	SemanticTypes []string `json:"semantictypes"`
}

// flexBool accepts true/false as JSON booleans or strings
type flexBool bool

func (b *flexBool) UnmarshalJSON(data []byte) error {
	s := strings.Trim(strings.TrimSpace(string(data)), `"`)
	if s == "" || s == "null" {
		*b = false
		return nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return fmt.Errorf("negated: %w", err)
	}
	*b = flexBool(v)
	return nil
}

// Parse flattens every event of every entity into a mention record
func (a *MetaMapLiteJSONAdapter) Parse(r io.Reader, doc Document) ([]model.MentionRecord, error) {
	var entities []mmlEntity
	if err := json.NewDecoder(r).Decode(&entities); err != nil {
		return nil, fmt.Errorf("decode %s: %w", doc.ID, err)
	}

	records := make([]model.MentionRecord, 0, len(entities))
	n := 0
	for _, ent := range entities {
		var negated *bool
		if ent.Negated != nil {
			v := bool(*ent.Negated)
			negated = &v
		}

		for _, ev := range ent.EvList {
			eventID := fmt.Sprintf("%s_%d", doc.ID, n)
			// Start is part of the location key; a zero default would merge unrelated mentions
			if ev.Start == nil || ev.Length == nil {
				return nil, fmt.Errorf("parse %s: event %s (%q, cui %s): %w",
					doc.ID, eventID, ev.MatchedText, ev.ConceptInfo.CUI, ErrMissingSpan)
			}
			records = append(records, model.MentionRecord{
				EventID:             eventID,
				DocumentID:          doc.ID,
				SourceName:          doc.Source,
				Start:               *ev.Start,
				Length:              *ev.Length,
				MatchedText:         ev.MatchedText,
				ConceptID:           ev.ConceptInfo.CUI,
				PreferredName:       ev.ConceptInfo.PreferredName,
				ConceptString:       ev.ConceptInfo.ConceptString,
				ContributingSources: ev.ConceptInfo.Sources,
				SemanticTypes:       ev.ConceptInfo.SemanticTypes,
				Negated:             negated,
			})
			n++
		}
	}

	return records, nil
}
