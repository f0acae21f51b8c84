// Package chunker implements recursive semantic segmentation of
// cleaned text. Splitting descends from paragraph boundaries to
// sentence boundaries to a halving fallback, so chunking terminates
// for any input, punctuated or not.
package chunker

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/krishnm10/MarketingAdvantage-AI-v1/internal/textutil"
)

const (
	// DefaultMaxChunkSize bounds chunk length in characters.
	DefaultMaxChunkSize = 600
	// DefaultMinChunkSize is the threshold below which adjacent
	// fragments are merged.
	DefaultMinChunkSize = 150
)

var (
	paragraphRe = regexp.MustCompile(`\n[ \t]*\n`)
	sentenceRe  = regexp.MustCompile(`[.!?] +`)
)

// Options configure a SemanticChunker.
type Options struct {
	MaxChunkSize int
	MinChunkSize int
}

// DefaultOptions returns the standard size bounds.
func DefaultOptions() Options {
	return Options{
		MaxChunkSize: DefaultMaxChunkSize,
		MinChunkSize: DefaultMinChunkSize,
	}
}

// SemanticChunker splits text into size-bounded semantic chunks.
// Chunking is pure and deterministic per input and options.
type SemanticChunker struct {
	opts Options
}

// New creates a chunker with the given options. Non-positive bounds
// fall back to the defaults.
func New(opts Options) *SemanticChunker {
	if opts.MaxChunkSize <= 0 {
		opts.MaxChunkSize = DefaultMaxChunkSize
	}
	if opts.MinChunkSize <= 0 {
		opts.MinChunkSize = DefaultMinChunkSize
	}
	return &SemanticChunker{opts: opts}
}

// Chunk cleans text and returns ordered chunks. Every chunk is at most
// MaxChunkSize characters long unless it is a single token exceeding
// the bound, which is emitted unsplit. Fragments shorter than
// MinChunkSize are merged with the preceding accumulator.
func (c *SemanticChunker) Chunk(text string) []string {
	cleaned := strings.TrimSpace(textutil.Clean(text))
	if cleaned == "" {
		return nil
	}

	segments := c.split(cleaned)
	return mergeSmall(segments, c.opts.MinChunkSize, c.opts.MaxChunkSize)
}

func (c *SemanticChunker) split(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= c.opts.MaxChunkSize {
		return []string{text}
	}

	// Paragraph boundaries first.
	if paras := splitNonEmpty(paragraphRe, text); len(paras) > 1 {
		var out []string
		for _, p := range paras {
			out = append(out, c.split(p)...)
		}
		return out
	}

	sentences := splitSentences(text)
	if len(sentences) <= 1 {
		return c.halve(text)
	}

	// Accumulate sentences up to the size bound.
	var chunks []string
	current := ""
	for _, sent := range sentences {
		if len(current)+len(sent) < c.opts.MaxChunkSize {
			current += " " + sent
		} else {
			if s := strings.TrimSpace(current); s != "" {
				chunks = append(chunks, s)
			}
			current = sent
		}
	}
	if s := strings.TrimSpace(current); s != "" {
		chunks = append(chunks, s)
	}

	// A single sentence can still exceed the bound.
	var refined []string
	for _, ch := range chunks {
		if len(ch) > c.opts.MaxChunkSize {
			refined = append(refined, c.split(ch)...)
		} else {
			refined = append(refined, ch)
		}
	}
	return refined
}

// halve splits unpunctuated text at its midpoint. A single token is
// emitted unsplit regardless of length.
func (c *SemanticChunker) halve(text string) []string {
	if !strings.ContainsAny(text, " \t\n") {
		return []string{text}
	}

	mid := len(text) / 2
	for mid < len(text) && !utf8.RuneStart(text[mid]) {
		mid++
	}

	out := c.split(text[:mid])
	return append(out, c.split(text[mid:])...)
}

// splitSentences cuts after terminal punctuation followed by spaces,
// keeping the punctuation with the preceding sentence.
func splitSentences(text string) []string {
	locs := sentenceRe.FindAllStringIndex(text, -1)
	if len(locs) == 0 {
		return []string{text}
	}

	var out []string
	prev := 0
	for _, loc := range locs {
		out = append(out, text[prev:loc[0]+1])
		prev = loc[1]
	}
	if prev < len(text) {
		out = append(out, text[prev:])
	}
	return out
}

func splitNonEmpty(re *regexp.Regexp, text string) []string {
	var out []string
	for _, p := range re.Split(text, -1) {
		if strings.TrimSpace(p) != "" {
			out = append(out, p)
		}
	}
	return out
}

// mergeSmall folds fragments below min into a running buffer, flushing
// the buffer before each full-size chunk and whenever another fragment
// would push it past max.
func mergeSmall(chunks []string, min, max int) []string {
	var merged []string
	buffer := ""

	for _, ch := range chunks {
		if strings.TrimSpace(ch) == "" {
			continue
		}
		if len(ch) < min {
			if buffer != "" && len(buffer)+1+len(ch) > max {
				merged = append(merged, strings.TrimSpace(buffer))
				buffer = ""
			}
			buffer += " " + ch
			continue
		}
		if buffer != "" {
			merged = append(merged, strings.TrimSpace(buffer))
			buffer = ""
		}
		merged = append(merged, ch)
	}

	if buffer != "" {
		merged = append(merged, strings.TrimSpace(buffer))
	}
	return merged
}
