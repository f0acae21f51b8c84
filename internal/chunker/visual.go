package chunker

import "strings"

const (
	visualMinLength    = 80
	visualDigitRatio   = 0.35
	visualKeywordCount = 2
)

// visualKeywords mark chart, graph, and table renderings that survive
// text extraction as number-dense fragments.
var visualKeywords = []string{
	"%", "chart", "graph", "table", "figure", "axis", "source:", "year",
	"2019", "2020", "2021", "2022", "2023", "2024", "2025", "2026",
}

// IsVisual reports whether a chunk looks like extracted chart or table
// content rather than prose. Short texts are never flagged.
func IsVisual(text string) bool {
	if len(text) < visualMinLength {
		return false
	}

	digits := 0
	for _, r := range text {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	if float64(digits)/float64(len(text)) > visualDigitRatio {
		return true
	}

	lower := strings.ToLower(text)
	hits := 0
	for _, kw := range visualKeywords {
		if strings.Contains(lower, kw) {
			hits++
			if hits >= visualKeywordCount {
				return true
			}
		}
	}
	return false
}
