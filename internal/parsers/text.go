package parsers

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// TextParser passes plain text files through unchanged.
type TextParser struct{}

// NewTextParser creates a plain text parser.
func NewTextParser() *TextParser {
	return &TextParser{}
}

func (p *TextParser) Name() string         { return "text" }
func (p *TextParser) Extensions() []string { return []string{".txt"} }

func (p *TextParser) Parse(ctx context.Context, data []byte) (string, error) {
	return string(data), nil
}

// JSONParser flattens JSON documents into "key: value" lines so the
// chunker sees prose-like text instead of raw syntax.
type JSONParser struct{}

// NewJSONParser creates a JSON parser.
func NewJSONParser() *JSONParser {
	return &JSONParser{}
}

func (p *JSONParser) Name() string         { return "json" }
func (p *JSONParser) Extensions() []string { return []string{".json"} }

func (p *JSONParser) Parse(ctx context.Context, data []byte) (string, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return "", fmt.Errorf("failed to parse JSON; %w", err)
	}

	var b strings.Builder
	flattenJSON(&b, "", doc)
	return strings.TrimRight(b.String(), "\n"), nil
}

func flattenJSON(b *strings.Builder, prefix string, v any) {
	switch val := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			flattenJSON(b, joinKey(prefix, k), val[k])
		}
	case []any:
		for i, item := range val {
			flattenJSON(b, fmt.Sprintf("%s[%d]", prefix, i), item)
		}
	case nil:
		fmt.Fprintf(b, "%s:\n", prefix)
	default:
		fmt.Fprintf(b, "%s: %v\n", prefix, val)
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}
