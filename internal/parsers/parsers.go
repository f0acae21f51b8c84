// Package parsers turns raw file content into plain text for chunking.
// Each supported format registers a Parser; the router maps an incoming
// reference (path or URL) to a source type.
package parsers

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

// ErrUnsupported is returned when no parser accepts the file. The
// message carries the unsupported_format identifier so persisted
// failure records stay classifiable.
var ErrUnsupported = errors.New("unsupported_format: no parser for file")

// Parser extracts plain text from one file format.
type Parser interface {
	// Name identifies the parser in file records.
	Name() string
	// Extensions lists the lowercase extensions the parser accepts.
	Extensions() []string
	// Parse extracts plain text from raw file content.
	Parse(ctx context.Context, data []byte) (string, error)
}

// Registry routes files to parsers by extension.
type Registry struct {
	byExt map[string]Parser
}

// NewRegistry creates an empty parser registry.
func NewRegistry() *Registry {
	return &Registry{byExt: map[string]Parser{}}
}

// NewDefaultRegistry creates a registry with all built-in parsers.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(NewTextParser())
	r.Register(NewJSONParser())
	r.Register(NewCSVParser())
	r.Register(NewExcelParser())
	r.Register(NewPDFParser())
	r.Register(NewDOCXParser())
	return r
}

// Register adds a parser for its declared extensions.
func (r *Registry) Register(p Parser) {
	for _, ext := range p.Extensions() {
		r.byExt[strings.ToLower(ext)] = p
	}
}

// ForPath returns the parser for a file path, or ErrUnsupported.
func (r *Registry) ForPath(path string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(path))
	p, ok := r.byExt[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, ext)
	}
	return p, nil
}

// Supported reports whether the registry can parse the file.
func (r *Registry) Supported(path string) bool {
	_, err := r.ForPath(path)
	return err == nil
}

// Extensions lists every extension the registry accepts.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	return out
}
