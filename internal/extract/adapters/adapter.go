package adapters

import (
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ppiankov/afep/internal/model"
)

// ErrUnsupportedFormat is returned when no adapter handles an extractor output format
var ErrUnsupportedFormat = errors.New("unsupported output format")

// Document identifies the annotated document an output file belongs to
type Document struct {
	ID     string // File stem
	Source string // Corpus source (ID prefix before the delimiter)
}

// Adapter parses one concept-extractor output format into mention records
type Adapter interface {
	// Name returns the format name used on the command line
	Name() string

	// CanHandle checks if this adapter parses the given format
	CanHandle(format string) bool

	// Pattern returns the file glob of this format's output files
	Pattern() string

	// Parse reads one output file
	Parse(r io.Reader, doc Document) ([]model.MentionRecord, error)
}

// Registry manages format adapters
type Registry struct {
	adapters []Adapter
}

// NewRegistry creates a registry with the built-in adapters
func NewRegistry() *Registry {
	registry := &Registry{
		adapters: make([]Adapter, 0),
	}

	registry.Register(NewMetaMapLiteJSONAdapter())

	return registry
}

// Register registers a new adapter
func (r *Registry) Register(adapter Adapter) {
	r.adapters = append(r.adapters, adapter)
}

// FindAdapter finds the adapter for the given format. Unknown formats are an
// error, never silently skipped.
func (r *Registry) FindAdapter(format string) (Adapter, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	for _, adapter := range r.adapters {
		if adapter.CanHandle(format) {
			return adapter, nil
		}
	}
	return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnsupportedFormat, format, strings.Join(r.Names(), ", "))
}

// Names lists the registered format names
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for _, a := range r.adapters {
		names = append(names, a.Name())
	}
	sort.Strings(names)
	return names
}

// DocumentFromPath derives the document id and source from an output file
// name: Mayo_COVID-19_2.json is document "Mayo_COVID-19_2" of source "Mayo".
func DocumentFromPath(path string, delimiter string) Document {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	source := stem
	if delimiter != "" {
		source, _, _ = strings.Cut(stem, delimiter)
	}
	return Document{ID: stem, Source: source}
}
