package parsers

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFParser extracts text from PDF content streams page by page.
type PDFParser struct{}

// NewPDFParser creates a PDF parser.
func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

func (p *PDFParser) Name() string         { return "pdf" }
func (p *PDFParser) Extensions() []string { return []string{".pdf"} }

func (p *PDFParser) Parse(ctx context.Context, data []byte) (string, error) {
	conf := model.NewDefaultConfiguration()
	pdfCtx, err := api.ReadValidateAndOptimize(bytes.NewReader(data), conf)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF; %w", err)
	}

	var b strings.Builder
	for i := 1; i <= pdfCtx.PageCount; i++ {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		reader, err := pdfcpu.ExtractPageContent(pdfCtx, i)
		if err != nil {
			// Pages without extractable content are skipped, not fatal.
			continue
		}

		contentBytes, err := io.ReadAll(reader)
		if err != nil {
			continue
		}

		text := extractContentStreamText(contentBytes)
		if text == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(text)
	}

	return b.String(), nil
}

// extractContentStreamText pulls literal strings out of a PDF content
// stream. Text shows up inside Tj/TJ operators as parenthesized
// literals with backslash escapes.
func extractContentStreamText(content []byte) string {
	var text strings.Builder
	str := string(content)

	inParens := 0
	var current strings.Builder

	for i := 0; i < len(str); i++ {
		ch := str[i]

		switch {
		case ch == '(' && (i == 0 || str[i-1] != '\\'):
			inParens++
			if inParens == 1 {
				current.Reset()
			}
		case ch == ')' && (i == 0 || str[i-1] != '\\'):
			if inParens > 0 {
				inParens--
				if inParens == 0 {
					extracted := current.String()
					if len(extracted) > 0 {
						text.WriteString(extracted)
						text.WriteString(" ")
					}
				}
			}
		case inParens > 0:
			if ch == '\\' && i+1 < len(str) {
				next := str[i+1]
				switch next {
				case 'n':
					current.WriteString("\n")
					i++
				case 'r':
					current.WriteString("\r")
					i++
				case 't':
					current.WriteString("\t")
					i++
				case '(', ')', '\\':
					current.WriteByte(next)
					i++
				default:
					current.WriteByte(ch)
				}
			} else {
				current.WriteByte(ch)
			}
		}
	}

	return strings.Join(strings.Fields(text.String()), " ")
}
