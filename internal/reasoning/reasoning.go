// Package reasoning derives rule-based ingestion metadata for chunks.
// All classification here is deterministic keyword matching; no model
// calls are involved.
package reasoning

import (
	"strings"
	"time"
)

// Signal types.
const (
	SignalMetric      = "metric"
	SignalInstruction = "instruction"
	SignalInsight     = "insight"
	SignalNarrative   = "narrative"
)

// Content types. Only visual-derived chunks carry an explicit type.
const ContentTypeVisual = "visual"

const extractionConfidence = 0.90

// Block is the reasoning-ingestion metadata attached to every chunk.
type Block struct {
	SignalType           string  `json:"signal_type"`
	BusinessFunction     string  `json:"business_function"`
	TimeHorizon          string  `json:"time_horizon"`
	OriginAuthority      string  `json:"origin_authority"`
	ExtractionConfidence float64 `json:"extraction_confidence"`
	Granularity          string  `json:"granularity"`
	DataLineageID        string  `json:"data_lineage_id"`
	PotentiallyRegulated bool    `json:"potentially_regulated"`
	ExtractionTimestamp  string  `json:"extraction_timestamp"`
	ContentType          string  `json:"content_type,omitempty"`
	OriginalTextHash     string  `json:"original_text_hash,omitempty"`
}

var (
	metricKeywords      = []string{"%", "revenue", "growth", "cost", "rate"}
	instructionKeywords = []string{"how to", "steps", "process", "guide"}
	insightKeywords     = []string{"will", "expected", "forecast", "trend"}

	financeKeywords   = []string{"finance", "revenue", "profit", "cost"}
	opsKeywords       = []string{"operation", "supply", "logistics"}
	marketingKeywords = []string{"marketing", "brand", "campaign"}
	legalKeywords     = []string{"legal", "compliance", "regulation"}
	techKeywords      = []string{"software", "system", "api", "tech"}
	hrKeywords        = []string{"hiring", "people", "hr", "talent"}

	forecastKeywords   = []string{"will", "forecast", "expected", "future"}
	currentKeywords    = []string{"currently", "today", "now"}
	historicalKeywords = []string{"was", "last year", "previous"}

	regulatedKeywords = []string{"gdpr", "hipaa", "sox", "regulation"}
)

// primarySourceTypes are formats authored directly by the originating
// organization; everything else is treated as secondhand.
var primarySourceTypes = map[string]bool{
	"pdf":  true,
	"docx": true,
	"csv":  true,
	"xls":  true,
	"xlsx": true,
}

// Build computes the reasoning block for a cleaned chunk.
func Build(cleanedText, sourceType, semanticHash string) Block {
	lower := strings.ToLower(cleanedText)

	return Block{
		SignalType:           signalType(lower),
		BusinessFunction:     businessFunction(lower),
		TimeHorizon:          timeHorizon(lower),
		OriginAuthority:      originAuthority(sourceType),
		ExtractionConfidence: extractionConfidence,
		Granularity:          granularity(cleanedText),
		DataLineageID:        semanticHash,
		PotentiallyRegulated: containsAny(lower, regulatedKeywords),
		ExtractionTimestamp:  time.Now().UTC().Format("2006-01-02T15:04:05.000000Z"),
	}
}

func signalType(lower string) string {
	switch {
	case containsAny(lower, metricKeywords):
		return SignalMetric
	case containsAny(lower, instructionKeywords):
		return SignalInstruction
	case containsAny(lower, insightKeywords):
		return SignalInsight
	default:
		return SignalNarrative
	}
}

func businessFunction(lower string) string {
	switch {
	case containsAny(lower, financeKeywords):
		return "finance"
	case containsAny(lower, opsKeywords):
		return "ops"
	case containsAny(lower, marketingKeywords):
		return "marketing"
	case containsAny(lower, legalKeywords):
		return "legal"
	case containsAny(lower, techKeywords):
		return "tech"
	case containsAny(lower, hrKeywords):
		return "hr"
	default:
		return "general"
	}
}

func timeHorizon(lower string) string {
	switch {
	case containsAny(lower, forecastKeywords):
		return "forecast"
	case containsAny(lower, currentKeywords):
		return "current"
	case containsAny(lower, historicalKeywords):
		return "historical"
	default:
		return "timeless"
	}
}

func originAuthority(sourceType string) string {
	if primarySourceTypes[sourceType] {
		return "primary_source"
	}
	return "secondary_source"
}

func granularity(text string) string {
	switch {
	case len(text) < 300:
		return "executive_summary"
	case len(text) < 1200:
		return "tactical_detail"
	default:
		return "raw_data"
	}
}

func containsAny(lower string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
