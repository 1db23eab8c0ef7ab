package model

import "time"

// FetchTarget is one knowledge-source article to download into the corpus
type FetchTarget struct {
	URL    string `json:"url"`
	Source string `json:"source"` // Corpus source name; becomes the file name prefix
}

// FetchedDocument is a downloaded article reduced to plain text
type FetchedDocument struct {
	Target    FetchTarget `json:"target"`
	Subject   string      `json:"subject"`   // Human-readable subject derived from the URL or title
	Text      string      `json:"text"`      // Readable text handed to the concept extractor
	FinalURL  string      `json:"final_url"` // URL after redirects
	Path      string      `json:"path"`      // Corpus file the text was written to
	FetchedAt time.Time   `json:"fetched_at"`
	FetchMeta FetchMeta   `json:"fetch_meta"`
	Cached    bool        `json:"cached"`
}

// FetchMeta contains HTTP metadata from fetching the source
type FetchMeta struct {
	StatusCode   int               `json:"status_code"`
	ContentType  string            `json:"content_type,omitempty"`
	LastModified string            `json:"last_modified,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
}
